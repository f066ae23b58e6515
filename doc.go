// Package airbyte is the root of a small Extract & Load toolkit whose first
// connector reads a Notion workspace incrementally.
//
// # Architecture
//
// A sync wires three parts together:
//
//  1. A source (pkg/connector/sources/notion) reads streams in order on one
//     goroutine and emits records followed by a STATE message per stream.
//  2. The pipeline (internal/pipeline) batches records into a destination
//     and persists each STATE once the records before it are flushed.
//  3. A destination (pkg/connector/destinations/json) writes JSON Lines or
//     a JSON array to a file or stdout, optionally gzip or zstd compressed.
//
// Connectors register themselves with pkg/connector/registry in init and
// embed base.BaseConnector for retries, health, metrics and progress.
//
// # Quick Start
//
//	notion-sync streams
//	NOTION_TOKEN=secret_... notion-sync sync --state state.json --output pages.jsonl --streams pages
//
// # Key Packages
//
//	pkg/connector    - Connector contracts, base connector and registry
//	pkg/clients      - HTTP/2 client with rate limiting and bearer auth
//	pkg/config       - Unified configuration, YAML and environment loading
//	pkg/state        - Per-stream cursor persistence
//	pkg/errors       - Structured error handling
//	pkg/logger       - Structured logging
//	pkg/metrics      - Prometheus metrics
//	pkg/observability - OpenTelemetry tracing
package airbyte
