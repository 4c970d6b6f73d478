package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/mwain/inboxpilot/internal/logging"
)

// Failure modes of credential acquisition.
var (
	// ErrExpired means the refresh token itself is invalid. Fatal for
	// the session; requires out-of-band re-authentication.
	ErrExpired = errors.New("authentication expired, re-authentication required")

	// ErrUnavailable means the token endpoint could not be reached.
	// Retried with bounded backoff before being surfaced.
	ErrUnavailable = errors.New("authentication service unavailable")
)

// Refresher exchanges a stale credential for a fresh one against the
// identity provider. Implementations classify their failures into
// ErrExpired (refresh token rejected) or ErrUnavailable (transient).
type Refresher interface {
	Refresh(ctx context.Context, cred Credential) (Credential, error)
}

// RefreshObserver receives token refresh telemetry. Implemented by the
// instrumentation metrics recorder; a nil observer disables it. Result
// values are "success", "failure" and "expired".
type RefreshObserver interface {
	RecordTokenRefresh(ctx context.Context, result string)
}

const (
	// DefaultRefreshMargin is how close to expiry a token may be before
	// Acquire refreshes it. One call duration of headroom.
	DefaultRefreshMargin = 60 * time.Second

	// DefaultMaxRetries bounds refresh attempts against a flaky token
	// endpoint.
	DefaultMaxRetries = 3
)

// Manager holds the credential table for all sources. It is safe for
// concurrent use; the table is mutated only by the Manager itself.
// Refresh I/O runs outside the table lock, serialized per source: one
// slow refresh never blocks acquires for other sources, and concurrent
// acquires for the same stale source share a single refresh.
type Manager struct {
	store     Store
	refresher Refresher
	margin    time.Duration
	retries   uint
	logger    *slog.Logger
	observer  RefreshObserver

	mu          sync.Mutex
	creds       map[string]Credential
	invalidated map[string]bool
	refreshing  map[string]*refreshFlight
}

// refreshFlight is one in-progress refresh shared by every caller that
// needs the same source refreshed.
type refreshFlight struct {
	done chan struct{}
	cred Credential
	err  error
}

// Option configures a Manager.
type Option func(*Manager)

// WithRefreshMargin overrides the expiry safety margin.
func WithRefreshMargin(margin time.Duration) Option {
	return func(m *Manager) {
		if margin > 0 {
			m.margin = margin
		}
	}
}

// WithMaxRetries overrides the refresh retry budget.
func WithMaxRetries(n uint) Option {
	return func(m *Manager) {
		if n > 0 {
			m.retries = n
		}
	}
}

// WithLogger sets the logger used for refresh events.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithRefreshObserver wires in token refresh telemetry.
func WithRefreshObserver(obs RefreshObserver) Option {
	return func(m *Manager) {
		m.observer = obs
	}
}

// NewManager creates a credential manager backed by the given store and
// refresher.
func NewManager(store Store, refresher Refresher, opts ...Option) *Manager {
	m := &Manager{
		store:       store,
		refresher:   refresher,
		margin:      DefaultRefreshMargin,
		retries:     DefaultMaxRetries,
		logger:      slog.Default(),
		creds:       make(map[string]Credential),
		invalidated: make(map[string]bool),
		refreshing:  make(map[string]*refreshFlight),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Acquire returns a credential for the source that is valid for at least
// the refresh margin. It refreshes (and persists) the credential when it
// is close to expiry or when the source was invalidated. Transient
// refresh failures are retried with exponential backoff up to the
// configured budget. Concurrent callers needing the same refresh share
// one refresh call.
func (m *Manager) Acquire(ctx context.Context, sourceID string) (Credential, error) {
	m.mu.Lock()

	cred, ok := m.creds[sourceID]
	if !ok {
		loaded, err := m.store.Load(sourceID)
		if err != nil {
			m.mu.Unlock()
			if errors.Is(err, ErrCredentialNotFound) {
				return Credential{}, fmt.Errorf("%w: no stored credential for %s", ErrExpired, sourceID)
			}
			return Credential{}, fmt.Errorf("loading credential for %s: %w", sourceID, err)
		}
		cred = loaded
		m.creds[sourceID] = cred
	}

	// An invalidated source refreshes unconditionally: its stored
	// expiry may still be in the future, but the upstream has already
	// rejected the access token.
	if !m.invalidated[sourceID] && cred.ValidFor(m.margin) {
		m.mu.Unlock()
		return cred, nil
	}

	if f, ok := m.refreshing[sourceID]; ok {
		m.mu.Unlock()
		select {
		case <-f.done:
			return f.cred, f.err
		case <-ctx.Done():
			return Credential{}, ctx.Err()
		}
	}

	f := &refreshFlight{done: make(chan struct{})}
	m.refreshing[sourceID] = f
	m.mu.Unlock()

	refreshed, err := m.refresh(ctx, cred)

	m.mu.Lock()
	delete(m.refreshing, sourceID)
	if err == nil {
		delete(m.invalidated, sourceID)
		m.creds[sourceID] = refreshed
	}
	m.mu.Unlock()

	f.cred, f.err = refreshed, err
	close(f.done)

	if err != nil {
		return Credential{}, err
	}
	if err := m.store.Save(refreshed); err != nil {
		// The in-memory credential is still good; the next restart will
		// need to refresh again.
		m.logger.Warn("failed to persist refreshed credential",
			logging.Source(sourceID), logging.Err(err))
	}
	return refreshed, nil
}

// Invalidate marks the source so the next Acquire refreshes
// unconditionally, and drops the cached credential so that refresh
// starts from the freshest persisted one. Called after an upstream 401.
func (m *Manager) Invalidate(sourceID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.creds, sourceID)
	m.invalidated[sourceID] = true
	m.logger.Debug("credential invalidated", logging.Source(sourceID))
}

func (m *Manager) refresh(ctx context.Context, cred Credential) (Credential, error) {
	if cred.RefreshToken == "" {
		return Credential{}, fmt.Errorf("%w: no refresh token for %s", ErrExpired, cred.SourceID)
	}

	log := logging.WithOperation(m.logger, "token_refresh")

	operation := func() (Credential, error) {
		refreshed, err := m.refresher.Refresh(ctx, cred)
		if err != nil {
			if errors.Is(err, ErrExpired) {
				return Credential{}, backoff.Permanent(err)
			}
			log.Warn("token refresh attempt failed", logging.Source(cred.SourceID), logging.Err(err))
			return Credential{}, fmt.Errorf("%w: %w", ErrUnavailable, err)
		}
		return refreshed, nil
	}

	refreshed, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(m.retries),
	)
	if err != nil {
		m.observeRefresh(ctx, err)
		return Credential{}, err
	}

	m.observeRefresh(ctx, nil)
	log.Debug("credential refreshed",
		logging.Source(cred.SourceID),
		slog.Time("expiry", refreshed.Expiry))
	return refreshed, nil
}

func (m *Manager) observeRefresh(ctx context.Context, err error) {
	if m.observer == nil {
		return
	}
	switch {
	case err == nil:
		m.observer.RecordTokenRefresh(ctx, "success")
	case errors.Is(err, ErrExpired):
		m.observer.RecordTokenRefresh(ctx, "expired")
	default:
		m.observer.RecordTokenRefresh(ctx, "failure")
	}
}
