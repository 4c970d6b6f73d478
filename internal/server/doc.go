// Package server provides the shared runtime context for the assistant
// and the operational HTTP surface.
//
// # Key Components
//
// ServerContext manages the credential manager and the Gmail and
// Calendar source adapters with lazy initialization and caching. It
// supports multiple accounts and implements tools.Sources, so the tool
// layer never constructs backend clients itself.
//
// MetricsServer serves Prometheus metrics on a dedicated port, isolated
// from the MCP stdio transport. When a HealthChecker is attached it also
// serves /healthz and /readyz for liveness and readiness probes.
package server
