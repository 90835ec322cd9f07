// Package generation turns re-ranked retrieval results into a grounded answer.
// Two implementations exist: a model-backed generator that calls an LLM
// through the provider factory, and a stub generator used for retrieval-only
// deployments and local development.
package generation

import (
	"context"

	"github.com/spectrumops/spectrumgpt/internal/rag"
)

// Turn is one prior question/answer exchange carried into a follow-up
// request so the model can resolve references to earlier turns.
type Turn struct {
	// Question is the user's earlier question.
	Question string

	// Answer is the answer that was given.
	Answer string
}

// Generator produces an answer for a query from retrieved passages.
// Implementations must be safe for concurrent use.
type Generator interface {
	// Answer generates a grounded answer from the query, prior conversation
	// turns (oldest first, may be nil), and ranked results.
	// An empty result set yields the no-answer fallback, not an error.
	Answer(ctx context.Context, query string, history []Turn, results []rag.RankedResult) (string, error)

	// Name identifies the generator for logging and health reporting.
	Name() string
}

// NoAnswerMessage is returned when retrieval produced nothing to ground an
// answer on. The wording is part of the product contract: the UI matches on
// it to suggest rephrasing.
const NoAnswerMessage = "I couldn't find an authoritative answer in the indexed Spectrum docs or Slack corpus."
