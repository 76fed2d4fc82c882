// Package rerank implements Maximal Marginal Relevance reranking over raw
// retrieval candidates. Candidates from one or more queries are pooled,
// deduplicated, and greedily reordered to balance relevance against
// redundancy with the already-selected set.
package rerank

import (
	"context"
	"fmt"
	"math"
	"sort"

	"go.uber.org/zap"

	"github.com/twinfold/contextd/pkg/retrieval"
)

// DefaultLambda is the diversity weight used when none is configured.
// Lambda 1 degenerates to pure relevance ranking, 0 to pure diversity.
const DefaultLambda = 0.5

// Config holds configuration for the reranker.
type Config struct {
	// Lambda is the MMR diversity weight in [0, 1]. Zero is a valid value
	// (pure diversity); the service config supplies DefaultLambda when the
	// option is unset.
	Lambda float64
}

// Input describes a single rerank request.
type Input struct {
	// Queries are the query strings; each is retrieved independently.
	Queries []string `json:"queries"`

	// Filter restricts candidates by metadata.
	Filter map[string]any `json:"filter,omitempty"`

	// TopN is the per-query candidate count requested from the backend.
	TopN int `json:"topN"`

	// Namespace is the retrieval index partition to search.
	Namespace string `json:"namespace,omitempty"`

	// K is the desired final set size. Must not exceed TopN.
	K int `json:"k"`
}

// Reranker pools, deduplicates, and MMR-reorders retrieval candidates.
type Reranker struct {
	driver retrieval.Driver
	lambda float64
	logger *zap.Logger
}

// NewReranker creates a reranker over the given retrieval driver.
func NewReranker(c Config, driver retrieval.Driver, logger *zap.Logger) (*Reranker, error) {
	if driver == nil {
		return nil, fmt.Errorf("reranker requires a retrieval driver")
	}
	if c.Lambda < 0 || c.Lambda > 1 {
		return nil, fmt.Errorf("%w: %v", ErrLambdaOutOfRange, c.Lambda)
	}

	return &Reranker{
		driver: driver,
		lambda: c.Lambda,
		logger: logger,
	}, nil
}

// Rerank retrieves TopN candidates per query, deduplicates the pool by ID
// (first occurrence wins), sorts by relevance, then greedily selects K items
// by MMR score. The returned matches have their embeddings stripped and are
// ordered by selection.
func (r *Reranker) Rerank(ctx context.Context, in Input) ([]retrieval.Match, error) {
	if in.TopN < in.K {
		return nil, fmt.Errorf("%w: top_n %d < final set size %d", ErrFinalSetTooLarge, in.TopN, in.K)
	}

	var pool []retrieval.Match
	for _, query := range in.Queries {
		matches, err := r.driver.Search(ctx, query, in.Filter, in.TopN, in.Namespace)
		if err != nil {
			return nil, fmt.Errorf("retrieving candidates for query %q: %w", query, err)
		}
		r.logger.Debug("retrieved candidates",
			zap.String("query", query),
			zap.Int("count", len(matches)),
		)
		pool = append(pool, matches...)
	}

	candidates := dedupeByID(pool)

	// Stable keeps first-appearance order among equal scores so the
	// selection below is deterministic.
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Score > candidates[j].Score
	})

	selected := selectMMR(candidates, in.K, r.lambda)

	for i := range selected {
		selected[i].Embedding = nil
	}

	r.logger.Debug("reranked candidates",
		zap.Int("pooled", len(pool)),
		zap.Int("deduplicated", len(candidates)),
		zap.Int("selected", len(selected)),
	)

	return selected, nil
}

// dedupeByID keeps the first occurrence of each candidate ID, preserving
// encounter order.
func dedupeByID(matches []retrieval.Match) []retrieval.Match {
	seen := make(map[string]struct{}, len(matches))
	deduped := make([]retrieval.Match, 0, len(matches))
	for _, m := range matches {
		if _, ok := seen[m.ID]; ok {
			continue
		}
		seen[m.ID] = struct{}{}
		deduped = append(deduped, m)
	}
	return deduped
}

// selectMMR greedily picks up to k candidates, each step taking the
// candidate with the highest MMR score against the already-selected set.
// Ties break toward the earlier candidate.
func selectMMR(candidates []retrieval.Match, k int, lambda float64) []retrieval.Match {
	remaining := make([]retrieval.Match, len(candidates))
	copy(remaining, candidates)

	selected := make([]retrieval.Match, 0, k)
	var selectedEmbeddings [][]float32

	for len(selected) < k && len(remaining) > 0 {
		bestIdx := 0
		bestScore := math.Inf(-1)
		for i, candidate := range remaining {
			score := mmrScore(candidate.Score, candidate.Embedding, selectedEmbeddings, lambda)
			if score > bestScore {
				bestScore = score
				bestIdx = i
			}
		}

		best := remaining[bestIdx]
		remaining = append(remaining[:bestIdx], remaining[bestIdx+1:]...)
		selected = append(selected, best)
		selectedEmbeddings = append(selectedEmbeddings, best.Embedding)
	}

	return selected
}

// mmrScore computes lambda*relevance - (1-lambda)*maxSimilarity, where
// maxSimilarity is the candidate's highest cosine similarity to any
// already-selected embedding (0 when nothing is selected yet).
func mmrScore(relevance float64, embedding []float32, selected [][]float32, lambda float64) float64 {
	if len(selected) == 0 {
		return lambda * relevance
	}

	maxSim := math.Inf(-1)
	for _, other := range selected {
		if sim := cosineSimilarity(embedding, other); sim > maxSim {
			maxSim = sim
		}
	}
	return lambda*relevance - (1-lambda)*maxSim
}

// cosineSimilarity returns the cosine similarity of two vectors.
// A zero-magnitude vector has similarity 0 against anything.
func cosineSimilarity(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}

	var dot, magA, magB float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
	}
	for _, v := range a {
		magA += float64(v) * float64(v)
	}
	for _, v := range b {
		magB += float64(v) * float64(v)
	}

	if magA == 0 || magB == 0 {
		return 0
	}
	return dot / (math.Sqrt(magA) * math.Sqrt(magB))
}
