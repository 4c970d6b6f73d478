package tools

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/mwain/inboxpilot/internal/auth"
	"github.com/mwain/inboxpilot/internal/cache"
	"github.com/mwain/inboxpilot/internal/instrumentation"
	"github.com/mwain/inboxpilot/internal/logging"
	"github.com/mwain/inboxpilot/internal/source"
)

const (
	// DefaultCallTimeout bounds a single upstream attempt.
	DefaultCallTimeout = 30 * time.Second

	// DefaultMaxAttempts is the total try budget for retryable
	// failures (rate limits, transient errors, a 401 after credential
	// invalidation).
	DefaultMaxAttempts = 4
)

// CredentialInvalidator is the slice of the auth manager the
// dispatcher needs after an upstream 401.
type CredentialInvalidator interface {
	Invalidate(sourceID string)
}

// Recorder receives dispatch telemetry. Implemented by the
// instrumentation metrics recorder; a nil Recorder disables it.
type Recorder interface {
	RecordToolInvocation(ctx context.Context, tool, status string, elapsed time.Duration)
	RecordCacheAccess(ctx context.Context, tool string, hit bool)
	RecordUpstreamOperationWithAccount(ctx context.Context, backend, operation, status, account string, elapsed time.Duration)
}

// Auditor receives a structured record for every completed invocation.
// Implemented by the instrumentation audit logger; a nil Auditor
// disables the trail.
type Auditor interface {
	LogToolInvocation(ti *instrumentation.ToolInvocation)
}

// Result is a completed tool invocation.
type Result struct {
	Tool        string `json:"tool"`
	Fingerprint string `json:"fingerprint"`

	// Value is the tool's output. Nil when Missing is set.
	Value any `json:"value,omitempty"`

	// Missing reports that the upstream record does not exist. The
	// reasoner sees an absent result rather than a failure so it can
	// answer "no such record".
	Missing bool `json:"missing,omitempty"`

	// CacheHit reports that the value was served from a resident cache
	// entry. A caller that waited on another caller's in-flight compute
	// is not a hit; the flag agrees with the cache's own counters.
	CacheHit bool `json:"cacheHit,omitempty"`
}

// Dispatcher validates invocations against the registry, fingerprints
// them and routes them through the cache. It is the only component
// that retries: adapters classify errors, the dispatcher decides what
// to do with them.
type Dispatcher struct {
	registry      *Registry
	cache         *cache.Cache
	creds         CredentialInvalidator
	callTimeout   time.Duration
	maxAttempts   uint
	retryInterval time.Duration
	logger        *slog.Logger
	recorder      Recorder
	auditor       Auditor
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithCredentialInvalidator wires the auth manager in for post-401
// credential invalidation.
func WithCredentialInvalidator(creds CredentialInvalidator) DispatcherOption {
	return func(d *Dispatcher) {
		d.creds = creds
	}
}

// WithCallTimeout bounds each upstream attempt.
func WithCallTimeout(timeout time.Duration) DispatcherOption {
	return func(d *Dispatcher) {
		if timeout > 0 {
			d.callTimeout = timeout
		}
	}
}

// WithMaxAttempts sets the total try budget for retryable failures.
func WithMaxAttempts(n uint) DispatcherOption {
	return func(d *Dispatcher) {
		if n > 0 {
			d.maxAttempts = n
		}
	}
}

// WithRetryInterval sets the initial backoff interval between tries.
func WithRetryInterval(interval time.Duration) DispatcherOption {
	return func(d *Dispatcher) {
		if interval > 0 {
			d.retryInterval = interval
		}
	}
}

// WithDispatchLogger sets the logger.
func WithDispatchLogger(logger *slog.Logger) DispatcherOption {
	return func(d *Dispatcher) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// WithRecorder wires in dispatch telemetry.
func WithRecorder(rec Recorder) DispatcherOption {
	return func(d *Dispatcher) {
		d.recorder = rec
	}
}

// WithAuditor wires in the audit trail.
func WithAuditor(a Auditor) DispatcherOption {
	return func(d *Dispatcher) {
		d.auditor = a
	}
}

// NewDispatcher creates a dispatcher over a registry and cache.
func NewDispatcher(registry *Registry, resultCache *cache.Cache, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		registry:      registry,
		cache:         resultCache,
		callTimeout:   DefaultCallTimeout,
		maxAttempts:   DefaultMaxAttempts,
		retryInterval: 500 * time.Millisecond,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Invoke validates, fingerprints and executes one tool invocation.
// Read tools go through the cache; write tools always execute. A
// missing upstream record comes back as Result.Missing rather than an
// error.
func (d *Dispatcher) Invoke(ctx context.Context, name string, args Args) (*Result, error) {
	tool, ok := d.registry.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("%w: unknown tool %q", ErrInvalidArguments, name)
	}

	normalized, err := tool.Schema.Normalize(args)
	if err != nil {
		return nil, err
	}

	fp := Fingerprint(name, normalized)
	account := stringArg(normalized, "account")
	log := d.logger.With(logging.Tool(name), logging.Fingerprint(fp))

	computeFn := func(ctx context.Context) (any, error) {
		return d.computeWithRetry(ctx, tool, normalized)
	}

	inv := instrumentation.NewToolInvocation(name).
		WithAccount(account).
		WithBackend(tool.Backend, tool.Operation).
		WithSpanContext(ctx)

	start := time.Now()
	var (
		value any
		hit   bool
	)
	if tool.Write || tool.TTL <= 0 {
		value, err = computeFn(ctx)
	} else {
		value, hit, err = d.cache.GetOrCompute(ctx, fp, tool.TTL, computeFn)
	}
	elapsed := time.Since(start)
	inv.WithDispatch(fp, hit)

	switch {
	case err == nil:
		d.record(ctx, tool, account, logging.StatusSuccess, elapsed, !tool.Write, hit)
		d.audit(inv.CompleteSuccess())
		log.DebugContext(ctx, "tool invocation succeeded",
			slog.Bool("cache_hit", hit),
			slog.Duration(logging.KeyDuration, elapsed))
		return &Result{Tool: name, Fingerprint: fp, Value: value, CacheHit: hit}, nil

	case errors.Is(err, source.ErrNotFound):
		d.record(ctx, tool, account, logging.StatusSuccess, elapsed, !tool.Write, false)
		d.audit(inv.CompleteSuccess())
		log.DebugContext(ctx, "tool target not found")
		return &Result{Tool: name, Fingerprint: fp, Missing: true}, nil

	case errors.Is(err, context.Canceled), errors.Is(err, auth.ErrExpired), errors.Is(err, ErrInvalidArguments):
		d.record(ctx, tool, account, logging.StatusError, elapsed, false, false)
		d.audit(inv.CompleteWithError(err))
		return nil, err

	default:
		d.record(ctx, tool, account, logging.StatusError, elapsed, false, false)
		d.audit(inv.CompleteWithError(err))
		log.WarnContext(ctx, "tool invocation failed", logging.Err(err))
		return nil, fmt.Errorf("%w: %s: %w", ErrToolFailed, name, err)
	}
}

// computeWithRetry runs the tool's compute function under the per-call
// timeout, retrying rate-limited and transient failures with bounded
// exponential backoff. A 401 invalidates the cached credential so the
// retry acquires a fresh one.
func (d *Dispatcher) computeWithRetry(ctx context.Context, tool *Tool, args Args) (any, error) {
	var sourceID string
	if tool.Backend != "" {
		sourceID = source.MakeID(tool.Backend, stringArg(args, "account"))
	}

	operation := func() (any, error) {
		callCtx := ctx
		if d.callTimeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, d.callTimeout)
			defer cancel()
		}

		value, err := tool.Compute(callCtx, args)
		if err == nil {
			return value, nil
		}
		err = source.ClassifyError(err)

		switch {
		case errors.Is(err, context.Canceled),
			errors.Is(err, auth.ErrExpired),
			errors.Is(err, ErrInvalidArguments),
			errors.Is(err, source.ErrNotFound),
			errors.Is(err, source.ErrUnsupported):
			return nil, backoff.Permanent(err)
		case errors.Is(err, source.ErrUnauthorized):
			if d.creds != nil && sourceID != "" {
				d.creds.Invalidate(sourceID)
			}
			return nil, err
		case errors.Is(err, source.ErrRateLimited), errors.Is(err, source.ErrTransient):
			return nil, err
		default:
			return nil, backoff.Permanent(err)
		}
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = d.retryInterval

	return backoff.Retry(ctx, operation,
		backoff.WithBackOff(policy),
		backoff.WithMaxTries(d.maxAttempts))
}

func (d *Dispatcher) record(ctx context.Context, tool *Tool, account, status string, elapsed time.Duration, cacheable, hit bool) {
	if d.recorder == nil {
		return
	}
	d.recorder.RecordToolInvocation(ctx, tool.Name, status, elapsed)
	if cacheable {
		d.recorder.RecordCacheAccess(ctx, tool.Name, hit)
	}
	// A cache hit never reached the backend.
	if tool.Backend != "" && !hit {
		d.recorder.RecordUpstreamOperationWithAccount(ctx, tool.Backend, tool.Operation, status, account, elapsed)
	}
}

func (d *Dispatcher) audit(inv *instrumentation.ToolInvocation) {
	if d.auditor == nil {
		return
	}
	d.auditor.LogToolInvocation(inv)
}
