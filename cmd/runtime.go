package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/mwain/inboxpilot/internal/analyze"
	"github.com/mwain/inboxpilot/internal/auth"
	"github.com/mwain/inboxpilot/internal/cache"
	"github.com/mwain/inboxpilot/internal/google"
	"github.com/mwain/inboxpilot/internal/instrumentation"
	"github.com/mwain/inboxpilot/internal/server"
	"github.com/mwain/inboxpilot/internal/tools"
)

// runtime bundles the wired collaborators every command needs: the
// credential manager, the per-account source adapters, the tool
// registry and the dispatcher in front of it.
type runtime struct {
	settings Settings
	logger   *slog.Logger

	provider      *instrumentation.Provider
	authManager   *auth.Manager
	serverContext *server.ServerContext
	registry      *tools.Registry
	dispatcher    *tools.Dispatcher
}

// newRuntime wires the full stack. The MCP transport is stdio, so all
// logging goes to stderr.
func newRuntime(ctx context.Context, settings Settings) (*runtime, error) {
	level := slog.LevelInfo
	if settings.Debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	instrConfig := instrumentation.DefaultConfig()
	instrConfig.ServiceVersion = version
	provider, err := instrumentation.NewProvider(ctx, instrConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create instrumentation provider: %w", err)
	}

	oauthConf, err := google.OAuthConfig()
	if err != nil {
		return nil, err
	}

	authManager := auth.NewManager(
		google.NewFileStore(google.CacheDir()),
		google.NewTokenRefresher(oauthConf),
		auth.WithRefreshMargin(settings.RefreshMargin),
		auth.WithLogger(logger),
		auth.WithRefreshObserver(provider.Metrics()),
	)

	serverContext := server.NewServerContext(ctx, authManager)

	registry := tools.NewRegistry()
	env := tools.Env{
		Sources: serverContext,
		Analyze: analyze.Config{
			NeutralBand:   settings.NeutralBand,
			TaskThreshold: settings.TaskThreshold,
		},
		ReadOnly:       settings.ReadOnly,
		MaxListResults: settings.MaxListResults,
	}
	if err := tools.RegisterBuiltins(registry, env); err != nil {
		return nil, fmt.Errorf("failed to register tools: %w", err)
	}

	resultCache := cache.New(cache.WithCapacity(settings.CacheCapacity))

	auditLogger := instrumentation.NewAuditLoggerWithConfig(logger, instrConfig.AuditLogging)

	dispatcher := tools.NewDispatcher(registry, resultCache,
		tools.WithCredentialInvalidator(authManager),
		tools.WithCallTimeout(settings.CallTimeout),
		tools.WithMaxAttempts(settings.MaxAttempts),
		tools.WithDispatchLogger(logger),
		tools.WithRecorder(provider.Metrics()),
		tools.WithAuditor(auditLogger),
	)

	return &runtime{
		settings:      settings,
		logger:        logger,
		provider:      provider,
		authManager:   authManager,
		serverContext: serverContext,
		registry:      registry,
		dispatcher:    dispatcher,
	}, nil
}

// close shuts down the runtime in reverse dependency order.
func (r *runtime) close(ctx context.Context) {
	if err := r.serverContext.Shutdown(); err != nil {
		r.logger.Error("server context shutdown failed", "error", err)
	}
	if err := r.provider.Shutdown(ctx); err != nil {
		r.logger.Error("instrumentation shutdown failed", "error", err)
	}
}
