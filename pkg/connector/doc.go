// Package connector groups the connector framework.
//
//   - core: the Source and Destination contracts, the stream catalog and
//     the message types of a read.
//
//   - base: BaseConnector, embedded by every connector. It owns the retry
//     policy, health checker, error handler, metrics collector and progress
//     reporter.
//
//   - registry: factories keyed by connector type. Connectors register in
//     init, so importing a connector package makes it available.
//
//   - sources/notion: the Notion API source.
//
//   - destinations/json: the JSON file destination.
//
// A source read is a single producer. Records of a stream are followed by
// one STATE message carrying the cursor to persist; a fatal error ends the
// read and is reported on RecordStream.Errors after Messages is closed.
package connector
