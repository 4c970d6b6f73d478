package auth

import (
	"context"

	"golang.org/x/oauth2"
)

// managerTokenSource adapts the Manager to oauth2.TokenSource so API
// clients borrow a valid credential on every HTTP call instead of
// holding one for the client's lifetime.
type managerTokenSource struct {
	ctx      context.Context
	mgr      *Manager
	sourceID string
}

// TokenSource returns an oauth2.TokenSource that acquires a credential
// from the manager for each token request. The context bounds refresh
// I/O triggered by the source.
func TokenSource(ctx context.Context, mgr *Manager, sourceID string) oauth2.TokenSource {
	return &managerTokenSource{ctx: ctx, mgr: mgr, sourceID: sourceID}
}

func (ts *managerTokenSource) Token() (*oauth2.Token, error) {
	cred, err := ts.mgr.Acquire(ts.ctx, ts.sourceID)
	if err != nil {
		return nil, err
	}
	return cred.Token(), nil
}
