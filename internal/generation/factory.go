package generation

import (
	"context"
	"fmt"
	"os"

	"github.com/spectrumops/spectrumgpt/internal/provider"
)

// NewFromEnv constructs a Generator selected by the GENERATION_MODE env var:
// "model" (default) builds an LLM-backed generator through the provider
// factory; "stub" builds the canned generator.
//
// MODEL_MAX_TOKENS and friends are read by the provider factory; the context
// budget for retrieved passages comes from RETRIEVAL_MAX_CONTEXT_CHARS via
// the caller.
func NewFromEnv(ctx context.Context, maxContextTokens int) (Generator, error) {
	mode := os.Getenv("GENERATION_MODE")
	if mode == "" {
		mode = "model"
	}

	switch mode {
	case "stub":
		return NewStub(), nil
	case "model":
		chatModel, err := provider.NewFromEnv(ctx)
		if err != nil {
			return nil, fmt.Errorf("generation: failed to build chat model: %w", err)
		}
		return NewModelGenerator(chatModel, maxContextTokens)
	default:
		return nil, fmt.Errorf("generation: unknown GENERATION_MODE %q — valid values: model, stub", mode)
	}
}
