package config

import (
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"
)

// RetrievalSettings is the typed form of the RETRIEVAL_* env vars, resolved
// with defaults applied. Callers use it to build the retriever and packer.
type RetrievalSettings struct {
	// VectorWeight is the semantic score weight in fusion.
	VectorWeight float64

	// LexicalWeight is the keyword score weight in fusion.
	LexicalWeight float64

	// CandidatePool is how many neighbours the vector search returns.
	CandidatePool int

	// TopK is how many re-ranked results are returned.
	TopK int

	// MaxContextChars bounds the packed context.
	MaxContextChars int

	// SourceBoosts maps source tags to score multipliers.
	SourceBoosts map[string]float64

	// EmbedTimeout bounds the embedding call.
	EmbedTimeout time.Duration

	// SearchTimeout bounds the vector search call.
	SearchTimeout time.Duration
}

// Retrieval defaults, applied when the corresponding env var is unset.
const (
	defaultVectorWeight    = 0.7
	defaultLexicalWeight   = 0.3
	defaultCandidatePool   = 50
	defaultTopK            = 5
	defaultMaxContextChars = 12000
)

// defaultSourceBoosts favours curated documentation over chat transcripts.
func defaultSourceBoosts() map[string]float64 {
	return map[string]float64{
		"swc_docs": 1.3,
		"slack":    1.1,
		"github":   1.0,
	}
}

// RetrievalFromEnv reads the RETRIEVAL_* env vars into RetrievalSettings,
// applying defaults for anything unset and validating the result. Call after
// Load so YAML values have been projected into the environment.
func RetrievalFromEnv() (*RetrievalSettings, error) {
	s := &RetrievalSettings{
		VectorWeight:    defaultVectorWeight,
		LexicalWeight:   defaultLexicalWeight,
		CandidatePool:   defaultCandidatePool,
		TopK:            defaultTopK,
		MaxContextChars: defaultMaxContextChars,
		SourceBoosts:    defaultSourceBoosts(),
	}

	var err error
	if s.VectorWeight, err = envFloat("RETRIEVAL_VECTOR_WEIGHT", s.VectorWeight); err != nil {
		return nil, err
	}
	if s.LexicalWeight, err = envFloat("RETRIEVAL_LEXICAL_WEIGHT", s.LexicalWeight); err != nil {
		return nil, err
	}
	if s.CandidatePool, err = envInt("RETRIEVAL_CANDIDATE_POOL", s.CandidatePool); err != nil {
		return nil, err
	}
	if s.TopK, err = envInt("RETRIEVAL_TOP_K", s.TopK); err != nil {
		return nil, err
	}
	if s.MaxContextChars, err = envInt("RETRIEVAL_MAX_CONTEXT_CHARS", s.MaxContextChars); err != nil {
		return nil, err
	}
	if v := os.Getenv("RETRIEVAL_SOURCE_BOOSTS"); v != "" {
		boosts, err := ParseSourceBoosts(v)
		if err != nil {
			return nil, err
		}
		s.SourceBoosts = boosts
	}
	if s.EmbedTimeout, err = envDuration("RETRIEVAL_EMBED_TIMEOUT"); err != nil {
		return nil, err
	}
	if s.SearchTimeout, err = envDuration("RETRIEVAL_SEARCH_TIMEOUT"); err != nil {
		return nil, err
	}

	if err := s.validate(); err != nil {
		return nil, err
	}

	return s, nil
}

// validate checks cross-field constraints that per-key parsing cannot see.
func (s *RetrievalSettings) validate() error {
	if math.Abs(s.VectorWeight+s.LexicalWeight-1.0) > 1e-9 {
		return fmt.Errorf("config: retrieval weights must sum to 1.0, got %g + %g",
			s.VectorWeight, s.LexicalWeight)
	}
	if s.VectorWeight < 0 || s.LexicalWeight < 0 {
		return fmt.Errorf("config: retrieval weights must be non-negative")
	}
	if s.CandidatePool <= 0 {
		return fmt.Errorf("config: RETRIEVAL_CANDIDATE_POOL must be positive, got %d", s.CandidatePool)
	}
	if s.TopK <= 0 {
		return fmt.Errorf("config: RETRIEVAL_TOP_K must be positive, got %d", s.TopK)
	}
	if s.MaxContextChars <= 0 {
		return fmt.Errorf("config: RETRIEVAL_MAX_CONTEXT_CHARS must be positive, got %d", s.MaxContextChars)
	}
	return nil
}

// ParseSourceBoosts parses a "tag=factor,tag=factor" list into a boost map.
// Whitespace around tags and factors is tolerated; factors must be positive
// finite numbers.
func ParseSourceBoosts(spec string) (map[string]float64, error) {
	boosts := make(map[string]float64)
	for _, pair := range strings.Split(spec, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		tag, factorStr, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, fmt.Errorf("config: invalid source boost %q, want tag=factor", pair)
		}
		tag = strings.TrimSpace(tag)
		if tag == "" {
			return nil, fmt.Errorf("config: invalid source boost %q, empty tag", pair)
		}
		factor, err := strconv.ParseFloat(strings.TrimSpace(factorStr), 64)
		if err != nil {
			return nil, fmt.Errorf("config: invalid source boost factor in %q: %w", pair, err)
		}
		if factor <= 0 || math.IsInf(factor, 0) || math.IsNaN(factor) {
			return nil, fmt.Errorf("config: source boost factor must be positive and finite, got %q", pair)
		}
		boosts[tag] = factor
	}
	if len(boosts) == 0 {
		return nil, fmt.Errorf("config: source boost list %q contains no entries", spec)
	}
	return boosts, nil
}

func envFloat(key string, def float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("config: invalid %s=%q: %w", key, v, err)
	}
	return f, nil
}

func envInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("config: invalid %s=%q: %w", key, v, err)
	}
	return n, nil
}

func envDuration(key string) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("config: invalid %s=%q: %w", key, v, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("config: %s must not be negative, got %s", key, v)
	}
	return d, nil
}
