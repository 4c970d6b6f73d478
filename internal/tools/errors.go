package tools

import "errors"

var (
	// ErrInvalidArguments covers caller errors: unknown tool name,
	// missing required argument, or a wrongly typed value. Never
	// retried; surfaced to the reasoner immediately.
	ErrInvalidArguments = errors.New("invalid arguments")

	// ErrToolFailed means a tool's compute exhausted its retry budget
	// or failed in a non-retryable way. The underlying classified
	// error remains reachable through errors.Is.
	ErrToolFailed = errors.New("tool failed")
)
