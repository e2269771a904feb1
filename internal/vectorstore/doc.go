// Package vectorstore defines the collection-scoped vector index contract
// used by the pipelines and provides an embedded implementation on top of
// chromem-go.
//
// An Index stores points (numeric id, vector, string payload) in named
// collections, scrolls them back unordered, answers nearest-neighbour
// queries by cosine similarity, and lists and drops collections. The
// remote Qdrant implementation lives in internal/qdrant.
//
// Wrap any Index with Instrument to get OpenTelemetry spans and Prometheus
// counters per operation.
package vectorstore
