// Package qdrant provides a retrieval.Driver over Qdrant's gRPC API.
// Namespaces map to Qdrant collections.
package qdrant

import (
	"context"
	"fmt"

	qdrantgo "github.com/qdrant/go-client/qdrant"
	"go.uber.org/zap"

	"github.com/twinfold/contextd/pkg/embeddings"
	"github.com/twinfold/contextd/pkg/retrieval"
)

// Config holds configuration for the Qdrant driver.
type Config struct {
	// Host is the Qdrant gRPC host (e.g. "localhost").
	Host string

	// Port is the Qdrant gRPC port (typically 6334).
	Port int

	// APIKey is the optional Qdrant API key.
	APIKey string
}

// Driver implements retrieval.Driver using the Qdrant gRPC client.
type Driver struct {
	client   *qdrantgo.Client
	embedder embeddings.Embedder
	logger   *zap.Logger
}

// NewDriver creates a new Qdrant retrieval driver.
func NewDriver(c Config, embedder embeddings.Embedder, logger *zap.Logger) (*Driver, error) {
	if c.Host == "" {
		return nil, fmt.Errorf("qdrant host is required")
	}
	if embedder == nil {
		return nil, fmt.Errorf("qdrant driver requires an embedder")
	}

	client, err := qdrantgo.NewClient(&qdrantgo.Config{
		Host:   c.Host,
		Port:   c.Port,
		APIKey: c.APIKey,
	})
	if err != nil {
		return nil, fmt.Errorf("connecting to qdrant: %w", err)
	}

	logger.Info("connected to qdrant",
		zap.String("host", c.Host),
		zap.Int("port", c.Port),
	)

	return &Driver{client: client, embedder: embedder, logger: logger}, nil
}

// Search embeds the query text and returns up to topK scored matches from
// the collection named by namespace, with payloads and vectors included.
func (d *Driver) Search(ctx context.Context, query string, filter map[string]any, topK int, namespace string) ([]retrieval.Match, error) {
	vector, err := d.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: embedding query: %v", retrieval.ErrBackend, err)
	}

	limit := uint64(topK)
	points, err := d.client.Query(ctx, &qdrantgo.QueryPoints{
		CollectionName: namespace,
		Query:          qdrantgo.NewQuery(vector...),
		Filter:         buildFilter(filter),
		Limit:          &limit,
		WithPayload:    qdrantgo.NewWithPayload(true),
		WithVectors:    qdrantgo.NewWithVectors(true),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: querying collection %q: %v", retrieval.ErrBackend, namespace, err)
	}

	matches := make([]retrieval.Match, 0, len(points))
	for _, p := range points {
		matches = append(matches, retrieval.Match{
			ID:        pointIDString(p.GetId()),
			Score:     float64(p.GetScore()),
			Embedding: p.GetVectors().GetVector().GetData(),
			Metadata:  payloadToMetadata(p.GetPayload()),
		})
	}

	return matches, nil
}

// Close releases the gRPC connection and the embedder.
func (d *Driver) Close() error {
	if err := d.client.Close(); err != nil {
		return err
	}
	return d.embedder.Close()
}

// buildFilter converts a metadata filter into Qdrant match conditions.
// Every key must match (AND semantics), mirroring the metadata_filters
// contract of the retrieval interface.
func buildFilter(filter map[string]any) *qdrantgo.Filter {
	if len(filter) == 0 {
		return nil
	}

	must := make([]*qdrantgo.Condition, 0, len(filter))
	for field, value := range filter {
		switch v := value.(type) {
		case string:
			must = append(must, qdrantgo.NewMatch(field, v))
		case int:
			must = append(must, qdrantgo.NewMatchInt(field, int64(v)))
		case int64:
			must = append(must, qdrantgo.NewMatchInt(field, v))
		case bool:
			must = append(must, qdrantgo.NewMatchBool(field, v))
		default:
			must = append(must, qdrantgo.NewMatch(field, fmt.Sprint(v)))
		}
	}

	return &qdrantgo.Filter{Must: must}
}

func pointIDString(id *qdrantgo.PointId) string {
	if id == nil {
		return ""
	}
	if uuid := id.GetUuid(); uuid != "" {
		return uuid
	}
	return fmt.Sprintf("%d", id.GetNum())
}

func payloadToMetadata(payload map[string]*qdrantgo.Value) map[string]any {
	if payload == nil {
		return nil
	}

	metadata := make(map[string]any, len(payload))
	for key, value := range payload {
		metadata[key] = valueToAny(value)
	}
	return metadata
}

func valueToAny(v *qdrantgo.Value) any {
	switch kind := v.GetKind().(type) {
	case *qdrantgo.Value_StringValue:
		return kind.StringValue
	case *qdrantgo.Value_IntegerValue:
		return kind.IntegerValue
	case *qdrantgo.Value_DoubleValue:
		return kind.DoubleValue
	case *qdrantgo.Value_BoolValue:
		return kind.BoolValue
	case *qdrantgo.Value_ListValue:
		items := make([]any, 0, len(kind.ListValue.GetValues()))
		for _, item := range kind.ListValue.GetValues() {
			items = append(items, valueToAny(item))
		}
		return items
	case *qdrantgo.Value_StructValue:
		fields := make(map[string]any, len(kind.StructValue.GetFields()))
		for name, field := range kind.StructValue.GetFields() {
			fields[name] = valueToAny(field)
		}
		return fields
	default:
		return nil
	}
}
