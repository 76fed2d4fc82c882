// Package pinecone provides a retrieval.Driver over Pinecone's REST API.
// Query text is embedded through the injected embeddings.Embedder before
// the index is queried.
package pinecone

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/twinfold/contextd/pkg/embeddings"
	"github.com/twinfold/contextd/pkg/retrieval"
)

// Config holds configuration for the Pinecone driver.
type Config struct {
	// URL is the index endpoint (e.g. "https://my-index-abc123.svc.pinecone.io").
	URL string

	// APIKey is the Pinecone API key.
	APIKey string
}

// Driver implements retrieval.Driver using Pinecone's /query endpoint.
type Driver struct {
	baseURL    string
	apiKey     string
	embedder   embeddings.Embedder
	httpClient *http.Client
	logger     *zap.Logger
}

// NewDriver creates a new Pinecone retrieval driver.
func NewDriver(c Config, embedder embeddings.Embedder, logger *zap.Logger) (*Driver, error) {
	if c.URL == "" {
		return nil, fmt.Errorf("pinecone URL is required")
	}
	if c.APIKey == "" {
		return nil, fmt.Errorf("pinecone API key is required")
	}
	if embedder == nil {
		return nil, fmt.Errorf("pinecone driver requires an embedder")
	}

	return &Driver{
		baseURL:    strings.TrimRight(c.URL, "/"),
		apiKey:     c.APIKey,
		embedder:   embedder,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logger,
	}, nil
}

type queryRequest struct {
	Vector          []float32      `json:"vector"`
	Filter          map[string]any `json:"filter,omitempty"`
	TopK            int            `json:"topK"`
	Namespace       string         `json:"namespace"`
	IncludeMetadata bool           `json:"includeMetadata"`
	IncludeValues   bool           `json:"includeValues"`
}

type queryResponse struct {
	Matches []struct {
		ID       string         `json:"id"`
		Score    float64        `json:"score"`
		Values   []float32      `json:"values"`
		Metadata map[string]any `json:"metadata"`
	} `json:"matches"`
}

// Search embeds the query text and returns up to topK scored matches from
// the namespace, with embeddings included for reranking.
func (d *Driver) Search(ctx context.Context, query string, filter map[string]any, topK int, namespace string) ([]retrieval.Match, error) {
	vector, err := d.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: embedding query: %v", retrieval.ErrBackend, err)
	}

	body, err := json.Marshal(queryRequest{
		Vector:          vector,
		Filter:          filter,
		TopK:            topK,
		Namespace:       namespace,
		IncludeMetadata: true,
		IncludeValues:   true,
	})
	if err != nil {
		return nil, fmt.Errorf("marshaling query request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.baseURL+"/query", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating query request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Api-Key", d.apiKey)

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", retrieval.ErrBackend, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		d.logger.Error("pinecone query failed",
			zap.Int("status", resp.StatusCode),
			zap.String("namespace", namespace),
		)
		return nil, fmt.Errorf("%w: status %d: %s", retrieval.ErrBackend, resp.StatusCode, string(respBody))
	}

	var parsed queryResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("%w: decoding query response: %v", retrieval.ErrBackend, err)
	}

	matches := make([]retrieval.Match, 0, len(parsed.Matches))
	for _, m := range parsed.Matches {
		matches = append(matches, retrieval.Match{
			ID:        m.ID,
			Score:     m.Score,
			Embedding: m.Values,
			Metadata:  m.Metadata,
		})
	}

	return matches, nil
}

// Close releases resources held by the driver.
func (d *Driver) Close() error {
	d.httpClient.CloseIdleConnections()
	return d.embedder.Close()
}
