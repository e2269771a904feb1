// Package pipeline implements the vecli operations on top of an embedding
// provider and a vector index:
//
//   - Ingestor reads a table, embeds the text column and writes a snapshot
//   - Syncer replaces a collection with the contents of a snapshot
//   - Searcher embeds a query and returns nearest neighbours, optionally one per title
//   - Exporter writes scrolled records or search results as JSON or CSV
//   - Inspector previews stored records
//   - Admin checks for, lists and deletes collections
//
// Every operation runs sequentially on the caller's goroutine. Payload fields
// are keyed by the source column names recorded in the snapshot's
// ColumnMapping, so callers pass that mapping to every read path.
package pipeline
