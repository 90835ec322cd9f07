package rag

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/spectrumops/spectrumgpt/internal/logging"
)

// Default retrieval sizes: how many neighbours to pull from the index and how
// many re-ranked results to return.
const (
	DefaultCandidatePool = 50
	DefaultTopK          = 5
)

// defaultCallTimeout bounds each external call (embedding, vector search)
// when the config does not set an explicit timeout.
const defaultCallTimeout = 30 * time.Second

// RetrieverConfig holds the tuning knobs for a HybridRetriever.
type RetrieverConfig struct {
	// Fusion controls score combination. Zero value means DefaultFusionConfig.
	Fusion FusionConfig

	// EmbedTimeout bounds the embedding call. Defaults to 30s if zero.
	EmbedTimeout time.Duration

	// SearchTimeout bounds the vector search call. Defaults to 30s if zero.
	SearchTimeout time.Duration
}

// HybridRetriever implements Retriever by combining an Embedder, a
// VectorIndex, and per-call BM25 re-ranking. It holds no mutable state
// between calls: the lexical index is rebuilt from each call's candidate
// batch, so concurrent retrievals never share corpus statistics.
type HybridRetriever struct {
	// embedder converts the query text to a dense vector.
	embedder Embedder

	// index performs the vector similarity search.
	index VectorIndex

	// cfg holds the resolved retrieval configuration.
	cfg RetrieverConfig
}

// NewHybridRetriever constructs a HybridRetriever from the given Embedder and
// VectorIndex. The fusion config is validated here so a bad weight set fails
// at startup rather than on the first query.
func NewHybridRetriever(embedder Embedder, index VectorIndex, cfg RetrieverConfig) (*HybridRetriever, error) {
	if embedder == nil {
		return nil, fmt.Errorf("rag: embedder must not be nil")
	}
	if index == nil {
		return nil, fmt.Errorf("rag: vector index must not be nil")
	}
	if cfg.Fusion.SourceBoosts == nil && cfg.Fusion.VectorWeight == 0 && cfg.Fusion.LexicalWeight == 0 {
		cfg.Fusion = DefaultFusionConfig()
	}
	if err := cfg.Fusion.Validate(); err != nil {
		return nil, err
	}
	if cfg.EmbedTimeout <= 0 {
		cfg.EmbedTimeout = defaultCallTimeout
	}
	if cfg.SearchTimeout <= 0 {
		cfg.SearchTimeout = defaultCallTimeout
	}

	return &HybridRetriever{embedder: embedder, index: index, cfg: cfg}, nil
}

// Retrieve runs the full hybrid pipeline: embed → vector search → BM25 over
// the candidate batch → score fusion → truncate to topKFinal.
//
// A query that is empty after trimming fails with ErrInvalidQuery. Dependency
// failures surface as ErrEmbedding*/ErrIndex* wrapped around the cause; they
// are never retried here. An under-filled or empty candidate set is not an
// error — retrieval proceeds with what the index returned, and "no results"
// yields an empty slice.
func (r *HybridRetriever) Retrieve(ctx context.Context, query string, topKCandidates, topKFinal int) ([]RankedResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrInvalidQuery
	}

	if topKFinal <= 0 {
		topKFinal = DefaultTopK
	}
	if topKCandidates <= 0 {
		topKCandidates = DefaultCandidatePool
	}
	if topKCandidates < topKFinal {
		topKCandidates = topKFinal
	}

	log := logging.FromContext(ctx)

	embedCtx, cancel := context.WithTimeout(ctx, r.cfg.EmbedTimeout)
	vectors, err := r.embedder.Embed(embedCtx, []string{query})
	cancel()
	if err != nil {
		return nil, wrapDependencyErr(ctx, err, ErrEmbeddingTimeout, ErrEmbeddingUnavailable)
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("%w: embedder returned no vector", ErrEmbeddingUnavailable)
	}

	searchCtx, cancel := context.WithTimeout(ctx, r.cfg.SearchTimeout)
	candidates, err := r.index.Search(searchCtx, vectors[0], topKCandidates)
	cancel()
	if err != nil {
		return nil, wrapDependencyErr(ctx, err, ErrIndexTimeout, ErrIndexUnavailable)
	}

	if len(candidates) == 0 {
		log.Info("retrieve: no candidates from vector search", slog.String("query", truncateForLog(query)))
		return nil, nil
	}

	texts := make([]string, len(candidates))
	for i, c := range candidates {
		texts[i] = c.Chunk.Text
	}
	lexScores, err := newLexicalIndex(texts).scoreAll(ctx, tokenize(query))
	if err != nil {
		return nil, fmt.Errorf("rag: lexical scoring cancelled: %w", err)
	}

	results := fuse(candidates, lexScores, r.cfg.Fusion)
	if len(results) > topKFinal {
		results = results[:topKFinal]
	}

	log.Debug("retrieve: re-ranked candidates",
		slog.Int("candidates", len(candidates)),
		slog.Int("returned", len(results)),
	)

	return results, nil
}

// wrapDependencyErr maps an external-call failure onto the retrieval error
// taxonomy: a deadline hit on the per-call timeout (while the caller's own
// context is still live) becomes the timeout sentinel, everything else the
// unavailable sentinel. The cause stays in the chain for logging.
func wrapDependencyErr(parent context.Context, err error, timeout, unavailable error) error {
	if errors.Is(err, context.DeadlineExceeded) && parent.Err() == nil {
		return fmt.Errorf("%w: %w", timeout, err)
	}
	return fmt.Errorf("%w: %w", unavailable, err)
}

// truncateForLog bounds query text included in log lines without splitting a
// multi-byte rune.
func truncateForLog(q string) string {
	const max = 50
	if utf8.RuneCountInString(q) <= max {
		return q
	}
	return string([]rune(q)[:max])
}
