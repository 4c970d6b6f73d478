package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/mwain/inboxpilot/internal/server"
	"github.com/mwain/inboxpilot/internal/tools"
)

func newServeCmd() *cobra.Command {
	var (
		yolo        bool
		metricsAddr string
		noMetrics   bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the MCP server over stdio",
		Long: `Expose the assistant's tool set to MCP clients over stdio. Every tool
goes through the dispatcher, so results are fingerprint-cached and
credential refresh happens transparently.

The server starts in read-only mode; pass --yolo to expose tools with
upstream side effects (event creation).`,
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := loadSettings()
			if err != nil {
				return err
			}
			settings.ReadOnly = !yolo
			if metricsAddr != "" {
				settings.MetricsAddr = metricsAddr
			}
			if noMetrics {
				settings.MetricsEnabled = false
			}
			return runServe(settings)
		},
	}

	cmd.Flags().BoolVar(&yolo, "yolo", false,
		"Enable write operations (default is read-only)")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "",
		"Metrics server listen address (default :9090)")
	cmd.Flags().BoolVar(&noMetrics, "no-metrics", false,
		"Disable the metrics server")

	return cmd
}

func runServe(settings Settings) error {
	shutdownCtx, cancel := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM)
	defer cancel()

	rt, err := newRuntime(shutdownCtx, settings)
	if err != nil {
		return err
	}
	defer rt.close(context.Background())

	health := server.NewHealthChecker(rt.serverContext)
	health.SetReady(false)

	var metricsServer *server.MetricsServer
	if settings.MetricsEnabled && rt.provider.Enabled() {
		metricsServer, err = server.NewMetricsServer(server.MetricsServerConfig{
			Addr:                    settings.MetricsAddr,
			Enabled:                 true,
			InstrumentationProvider: rt.provider,
			HealthChecker:           health,
		})
		if err != nil {
			return fmt.Errorf("failed to create metrics server: %w", err)
		}

		// Confirm the listener is bound before serving MCP traffic.
		metricsReady := make(chan struct{})
		metricsErr := make(chan error, 1)
		go func() {
			if err := metricsServer.StartWithReadySignal(metricsReady); err != nil && !errors.Is(err, http.ErrServerClosed) {
				metricsErr <- err
			}
			close(metricsErr)
		}()

		select {
		case <-metricsReady:
			rt.logger.Info("metrics server started", "addr", metricsServer.Addr())
		case err := <-metricsErr:
			return fmt.Errorf("metrics server failed to start: %w", err)
		case <-time.After(5 * time.Second):
			return fmt.Errorf("metrics server startup timed out")
		}

		defer func() {
			stopCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
			defer stop()
			if err := metricsServer.Shutdown(stopCtx); err != nil {
				rt.logger.Error("metrics server shutdown failed", "error", err)
			}
		}()
	}

	mcpSrv := mcpserver.NewMCPServer("inboxpilot", version,
		mcpserver.WithToolCapabilities(true),
	)

	if err := registerDispatchedTools(mcpSrv, rt); err != nil {
		return err
	}

	health.SetReady(true)
	return runStdioServer(shutdownCtx, mcpSrv)
}

// registerDispatchedTools exposes every registry tool over MCP. The
// handler funnels calls through the dispatcher rather than the tool's
// compute func so MCP clients share the cache and retry policy.
func registerDispatchedTools(mcpSrv *mcpserver.MCPServer, rt *runtime) error {
	for _, tool := range rt.registry.All() {
		schema, err := json.Marshal(tool.Schema.JSONSchema())
		if err != nil {
			return fmt.Errorf("failed to encode schema for tool %s: %w", tool.Name, err)
		}

		name := tool.Name
		mcpTool := mcp.NewToolWithRawSchema(name, tool.Description, schema)
		mcpSrv.AddTool(mcpTool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			result, err := rt.dispatcher.Invoke(ctx, name, request.GetArguments())
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			return renderToolResult(result)
		})
	}
	return nil
}

func renderToolResult(result *tools.Result) (*mcp.CallToolResult, error) {
	if result.Missing {
		return mcp.NewToolResultText(`{"missing":true}`), nil
	}
	payload, err := json.Marshal(result.Value)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to encode result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(payload)), nil
}

func runStdioServer(ctx context.Context, mcpSrv *mcpserver.MCPServer) error {
	serverDone := make(chan error, 1)
	go func() {
		defer close(serverDone)
		if err := mcpserver.ServeStdio(mcpSrv); err != nil {
			serverDone <- err
		}
	}()

	select {
	case err := <-serverDone:
		if err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("server stopped with error: %w", err)
		}
		return nil
	case <-ctx.Done():
		return nil
	}
}
