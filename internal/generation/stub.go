package generation

import (
	"context"
	"fmt"

	"github.com/spectrumops/spectrumgpt/internal/rag"
)

// StubGenerator returns a canned answer citing the top-ranked result. It
// exists so the retrieval pipeline can run end to end without an LLM backend,
// in local development and in retrieval-only deployments.
type StubGenerator struct{}

// NewStub constructs a StubGenerator.
func NewStub() *StubGenerator { return &StubGenerator{} }

// Name identifies the generator for logging and health reporting.
func (g *StubGenerator) Name() string { return "stub" }

// Answer returns a canned response naming the top result's title and URL, or
// the no-answer fallback when retrieval came back empty.
func (g *StubGenerator) Answer(_ context.Context, _ string, _ []Turn, results []rag.RankedResult) (string, error) {
	if len(results) == 0 {
		return NoAnswerMessage, nil
	}

	top := results[0].Chunk
	title := top.Title
	if title == "" {
		title = "documentation"
	}

	return fmt.Sprintf(`Based on the retrieved documentation about %s, here's what I found:

The relevant information can be found in the Spectrum documentation. Please refer to the source for complete details.

**Sources:**
- [%s](%s)

Note: This is a stub response. Configure a real LLM backend for production use.`,
		title, title, top.URL), nil
}
