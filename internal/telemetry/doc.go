// Package telemetry holds the observability plumbing shared by the CLI,
// the executor and the MCP server:
//   - logging.go: structured logging through slog
//   - metrics.go: Prometheus counters and histograms for recipe runs
package telemetry
