// Package retrieval provides the vector retrieval collaborator interface and
// the match type shared by its implementations and the reranker.
package retrieval

import "context"

// MetadataContentKey is the metadata field holding a match's retrievable text.
const MetadataContentKey = "content"

// Match is a scored candidate document returned by a retrieval backend.
// Matches are ephemeral: they live for a single request and embeddings are
// stripped before any match leaves the core.
type Match struct {
	// ID is the backend's unique identifier for the document.
	ID string `json:"id"`

	// Score is the backend's relevance score (higher = more relevant).
	Score float64 `json:"score"`

	// Embedding is the document's vector. Internal to reranking; omitted
	// from serialized responses.
	Embedding []float32 `json:"-"`

	// Metadata carries the document payload; Metadata["content"] is the
	// retrievable text.
	Metadata map[string]any `json:"metadata"`
}

// Content returns the match's retrievable text, or "" if absent.
func (m Match) Content() string {
	if s, ok := m.Metadata[MetadataContentKey].(string); ok {
		return s
	}
	return ""
}

// Driver is the vector retrieval collaborator contract.
type Driver interface {
	// Search returns up to topK scored candidates for the query text within
	// the given namespace, restricted by the metadata filter. Returned
	// matches include embeddings; they are required by the reranker.
	Search(ctx context.Context, query string, filter map[string]any, topK int, namespace string) ([]Match, error)

	// Close releases any resources held by the driver.
	Close() error
}
