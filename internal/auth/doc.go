// Package auth owns the credential lifecycle for all sources. The
// Manager hands out tokens that are guaranteed valid for at least the
// configured safety margin, refreshing and persisting them as needed.
// Adapters borrow a credential per call and never store it.
package auth
