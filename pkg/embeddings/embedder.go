// Package embeddings defines the embedding collaborator boundary. How
// embeddings are computed is opaque to this system; retrieval drivers that
// need a query vector take an Embedder through their constructor.
package embeddings

import "context"

// Embedder provides text embedding capabilities.
type Embedder interface {
	// Embed converts text into a vector embedding.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Close releases any resources held by the embedder.
	Close() error
}
