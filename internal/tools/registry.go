package tools

import (
	"context"
	"fmt"
	"sort"
	"time"
)

// ComputeFunc executes a tool against normalized arguments.
type ComputeFunc func(ctx context.Context, args Args) (any, error)

// Tool binds a name and argument schema to a compute function.
type Tool struct {
	Name        string
	Description string
	Schema      Schema

	// TTL is how long a successful result stays cacheable. Zero means
	// the result is never cached.
	TTL time.Duration

	// Write marks tools with upstream side effects. Write tools bypass
	// the cache entirely and are withheld in read-only mode.
	Write bool

	// Backend names the source backend the tool talks to ("gmail",
	// "calendar"), or empty for pure tools. Used with the account
	// argument to target credential invalidation after a 401.
	Backend string

	// Operation names the upstream call class ("list", "get", "search",
	// "create") for backend telemetry. Empty for pure tools.
	Operation string

	Compute ComputeFunc
}

// Registry is the closed set of tools known at startup. Registration
// happens during construction; lookups are read-only afterwards, so no
// locking is needed.
type Registry struct {
	tools map[string]*Tool
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]*Tool)}
}

// Register adds a tool. Duplicate names are a programming error.
func (r *Registry) Register(t *Tool) error {
	if t.Name == "" {
		return fmt.Errorf("tool has no name")
	}
	if t.Compute == nil {
		return fmt.Errorf("tool %q has no compute function", t.Name)
	}
	if _, exists := r.tools[t.Name]; exists {
		return fmt.Errorf("tool %q already registered", t.Name)
	}
	r.tools[t.Name] = t
	return nil
}

// Lookup returns the named tool.
func (r *Registry) Lookup(name string) (*Tool, bool) {
	t, ok := r.tools[name]
	return t, ok
}

// Names returns the registered tool names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// All returns the registered tools ordered by name.
func (r *Registry) All() []*Tool {
	all := make([]*Tool, 0, len(r.tools))
	for _, name := range r.Names() {
		all = append(all, r.tools[name])
	}
	return all
}
