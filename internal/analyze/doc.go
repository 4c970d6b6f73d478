// Package analyze contains the content analyzers: pure functions that
// turn raw email and calendar records into structured signals. Analyzers
// never touch the network and never fail hard on malformed input —
// missing headers become empty fields and ambiguous text yields no
// signals rather than an error.
package analyze
