// Package tools exposes every assistant capability as a named,
// schema-validated tool and routes invocations through the result
// cache. The registry is the single seam between the reasoning loop
// and the outside world: the loop never talks to a source adapter or
// an analyzer directly.
package tools
