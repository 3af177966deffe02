// Package embeddings turns file text into fixed-length vectors.
//
// Two providers are available: FastEmbed (local ONNX, requires cgo) and TEI
// (text-embeddings-inference over HTTP). Generator wraps a provider with
// front-anchored truncation, lazy one-time initialization, an LRU vector
// cache and a fixed-dimension check.
package embeddings
