package server

import (
	"context"
	"fmt"
	"sync"

	"github.com/mwain/inboxpilot/internal/auth"
	"github.com/mwain/inboxpilot/internal/source"
	calendarsrc "github.com/mwain/inboxpilot/internal/source/calendar"
	gmailsrc "github.com/mwain/inboxpilot/internal/source/gmail"
)

// ServerContext holds the shared state behind a running assistant: the
// credential manager and one source adapter per backend and account.
// Adapters are created lazily on first use and cached for the lifetime
// of the context, the same way credentials are cached by the auth
// manager underneath them.
//
// It implements tools.Sources.
type ServerContext struct {
	ctx    context.Context
	cancel context.CancelFunc

	auth *auth.Manager

	mu       sync.Mutex
	email    map[string]source.Source // account name -> Gmail adapter
	calendar map[string]source.Source // account name -> Calendar adapter
	shutdown bool
}

// NewServerContext creates a new server context. Adapters are not
// created up front; an account with no stored token only fails when a
// tool first touches it.
func NewServerContext(ctx context.Context, mgr *auth.Manager) *ServerContext {
	shutdownCtx, cancel := context.WithCancel(ctx)

	return &ServerContext{
		ctx:      shutdownCtx,
		cancel:   cancel,
		auth:     mgr,
		email:    make(map[string]source.Source),
		calendar: make(map[string]source.Source),
	}
}

// Context returns the server's lifetime context. It is cancelled when
// Shutdown is called.
func (sc *ServerContext) Context() context.Context {
	return sc.ctx
}

// Auth returns the credential manager.
func (sc *ServerContext) Auth() *auth.Manager {
	return sc.auth
}

// Email returns the Gmail adapter for the given account, creating and
// caching it on first use.
func (sc *ServerContext) Email(ctx context.Context, account string) (source.Source, error) {
	if account == "" {
		account = "default"
	}

	sc.mu.Lock()
	defer sc.mu.Unlock()

	if sc.shutdown {
		return nil, fmt.Errorf("server context is shut down")
	}
	if src, ok := sc.email[account]; ok {
		return src, nil
	}

	// Adapters outlive the request that triggered their creation, so
	// they are bound to the server context rather than the caller's.
	src, err := gmailsrc.New(sc.ctx, sc.auth, account)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gmail adapter for account %s: %w", account, err)
	}

	sc.email[account] = src
	return src, nil
}

// Calendar returns the Calendar adapter for the given account, creating
// and caching it on first use.
func (sc *ServerContext) Calendar(ctx context.Context, account string) (source.Source, error) {
	if account == "" {
		account = "default"
	}

	sc.mu.Lock()
	defer sc.mu.Unlock()

	if sc.shutdown {
		return nil, fmt.Errorf("server context is shut down")
	}
	if src, ok := sc.calendar[account]; ok {
		return src, nil
	}

	src, err := calendarsrc.New(sc.ctx, sc.auth, account)
	if err != nil {
		return nil, fmt.Errorf("failed to create Calendar adapter for account %s: %w", account, err)
	}

	sc.calendar[account] = src
	return src, nil
}

// IsShutdown returns whether the server has been shutdown
func (sc *ServerContext) IsShutdown() bool {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return sc.shutdown
}

// Shutdown shuts down the server context
func (sc *ServerContext) Shutdown() error {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	if sc.shutdown {
		return nil
	}

	sc.shutdown = true
	sc.cancel()
	return nil
}
