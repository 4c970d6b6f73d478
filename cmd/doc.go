// Package cmd implements the command-line interface for inboxpilot.
//
// This package provides the following commands:
//   - chat: Run a one-shot reasoning episode and print the answer
//   - serve: Start the MCP server exposing the tool set over stdio
//   - auth: Authorize Google accounts and inspect stored credentials
//   - version: Display version information
//
// Commands share a wired runtime: credential manager, per-account
// source adapters, tool registry and the caching dispatcher.
package cmd
