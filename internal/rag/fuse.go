package rag

import (
	"fmt"
	"math"
	"sort"
)

// Default fusion weights: 70% vector similarity, 30% lexical. The weights
// must sum to 1.0 — FusionConfig.Validate rejects anything else.
const (
	DefaultVectorWeight  = 0.7
	DefaultLexicalWeight = 0.3
)

// scoreEpsilon is the tolerance for treating two fused scores as equal during
// tie-breaking, and for the weight-sum check.
const scoreEpsilon = 1e-9

// FusionConfig controls how vector and lexical scores are combined into the
// final ranking key.
type FusionConfig struct {
	// VectorWeight is the weight applied to the normalised vector score.
	VectorWeight float64

	// LexicalWeight is the weight applied to the normalised lexical score.
	// VectorWeight + LexicalWeight must equal 1.0.
	LexicalWeight float64

	// SourceBoosts maps a chunk's source tag to a positive multiplier applied
	// after weighting. Tags absent from the table multiply by 1.0.
	SourceBoosts map[string]float64
}

// DefaultFusionConfig returns the standard weights and boost table:
// documentation 1.3, Slack 1.1, GitHub 1.0.
func DefaultFusionConfig() FusionConfig {
	return FusionConfig{
		VectorWeight:  DefaultVectorWeight,
		LexicalWeight: DefaultLexicalWeight,
		SourceBoosts: map[string]float64{
			SourceDocs: 1.3,
			SourceChat: 1.1,
			SourceCode: 1.0,
		},
	}
}

// Validate rejects weight sets that do not sum to 1.0 and non-positive boosts.
func (c FusionConfig) Validate() error {
	if c.VectorWeight < 0 || c.LexicalWeight < 0 {
		return fmt.Errorf("rag: fusion weights must be non-negative (vector=%g lexical=%g)", c.VectorWeight, c.LexicalWeight)
	}
	if math.Abs(c.VectorWeight+c.LexicalWeight-1.0) > scoreEpsilon {
		return fmt.Errorf("rag: fusion weights must sum to 1.0, got %g", c.VectorWeight+c.LexicalWeight)
	}
	for tag, boost := range c.SourceBoosts {
		if boost <= 0 || math.IsNaN(boost) || math.IsInf(boost, 0) {
			return fmt.Errorf("rag: source boost for %q must be a positive finite number, got %g", tag, boost)
		}
	}
	return nil
}

// boost returns the multiplier for a source tag, defaulting to 1.0 for tags
// not present in the table.
func (c FusionConfig) boost(source string) float64 {
	if b, ok := c.SourceBoosts[source]; ok {
		return b
	}
	return 1.0
}

// fuse combines each candidate's vector and lexical scores into a final
// ranking key and sorts the batch descending by that key. Both score
// dimensions are min-max normalised within the batch so the unbounded BM25
// values become comparable to the bounded cosine similarity; a dimension with
// identical raw values across the batch normalises to the constant 0.5.
//
// Ties within scoreEpsilon are broken by higher raw vector score, then by
// lexicographic chunk ID, making the ordering fully deterministic.
func fuse(candidates []Candidate, lexScores []float64, cfg FusionConfig) []RankedResult {
	if len(candidates) == 0 {
		return nil
	}

	vecRaw := make([]float64, len(candidates))
	for i, c := range candidates {
		vecRaw[i] = c.VectorScore
	}
	vecNorm := minMaxNormalize(vecRaw)
	lexNorm := minMaxNormalize(lexScores)

	results := make([]RankedResult, len(candidates))
	for i, c := range candidates {
		weighted := cfg.VectorWeight*vecNorm[i] + cfg.LexicalWeight*lexNorm[i]
		results[i] = RankedResult{
			Candidate:    c,
			LexicalScore: lexScores[i],
			FinalScore:   weighted * cfg.boost(c.Chunk.Source),
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if math.Abs(a.FinalScore-b.FinalScore) > scoreEpsilon {
			return a.FinalScore > b.FinalScore
		}
		if math.Abs(a.VectorScore-b.VectorScore) > scoreEpsilon {
			return a.VectorScore > b.VectorScore
		}
		return a.Chunk.ID < b.Chunk.ID
	})

	return results
}

// minMaxNormalize maps the values onto [0, 1] within the batch. When every
// value is identical the dimension collapses to the constant 0.5 rather than
// dividing by zero.
func minMaxNormalize(values []float64) []float64 {
	if len(values) == 0 {
		return nil
	}

	lo, hi := values[0], values[0]
	for _, v := range values[1:] {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}

	out := make([]float64, len(values))
	if hi-lo <= scoreEpsilon {
		for i := range out {
			out[i] = 0.5
		}
		return out
	}

	for i, v := range values {
		out[i] = (v - lo) / (hi - lo)
	}
	return out
}
