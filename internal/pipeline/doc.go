// Package pipeline drives a crawl for one account.
//
// A run moves through four states:
//
//	INIT -> ENUMERATING -> PROCESSING -> DONE
//
// Repositories are enumerated once, then processed by a bounded worker pool
// in enumeration order. Each repository resolves its details (shared cache),
// optionally gathers enrichment, lists its tree with branch fallback and
// applies the selection policy. Selected files are fetched, embedded and
// written one at a time.
//
// Failure scope is strict: a file failure never aborts its repository and a
// repository failure never aborts the run. Only an invalid account reference
// or a failed enumeration aborts Run. Every recoverable failure is counted
// in the Summary.
//
// In analyze mode (SkipIndexing) files are listed and selected but never
// fetched, embedded or written.
package pipeline
