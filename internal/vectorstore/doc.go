// Package vectorstore writes file vectors into a searchable index.
//
// Records are grouped by namespace (the repository full name) and keyed by
// ID (namespace/path). Upsert overwrites an existing record with the same
// namespace and ID, so re-running a crawl is idempotent.
//
// # Provider Selection
//
// ChromemStore (default):
//   - Embedded chromem-go storage, one collection per namespace
//   - In memory when no path is configured, gob files otherwise
//
// QdrantStore:
//   - External Qdrant service via gRPC
//   - One collection for every namespace, namespace kept as a payload field
//   - Point IDs are UUIDv5 of namespace and record ID
//
// Provider selection via config:
//
//	vectorstore:
//	  provider: chromem  # "chromem" (default) or "qdrant"
package vectorstore
