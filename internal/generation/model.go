package generation

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/cloudwego/eino/components/model"

	"github.com/spectrumops/spectrumgpt/internal/logging"
	"github.com/spectrumops/spectrumgpt/internal/rag"
)

// ModelGenerator answers queries by calling an LLM through the eino chat
// model abstraction. The backend (Ollama, OpenAI, Azure, Bedrock, Gemini) is
// selected by the provider factory.
type ModelGenerator struct {
	// chatModel is the LLM backend constructed by the provider factory.
	chatModel model.ToolCallingChatModel

	// maxContextTokens is the budget for the retrieved-passages block.
	maxContextTokens int
}

// NewModelGenerator constructs a ModelGenerator around the given chat model.
func NewModelGenerator(chatModel model.ToolCallingChatModel, maxContextTokens int) (*ModelGenerator, error) {
	if chatModel == nil {
		return nil, fmt.Errorf("generation: chat model must not be nil")
	}
	if maxContextTokens <= 0 {
		maxContextTokens = DefaultMaxContextTokens
	}
	return &ModelGenerator{chatModel: chatModel, maxContextTokens: maxContextTokens}, nil
}

// Name identifies the generator for logging and health reporting.
func (g *ModelGenerator) Name() string { return "model" }

// Answer composes the grounded prompt and invokes the model. An empty result
// set short-circuits to the no-answer fallback without a model call.
func (g *ModelGenerator) Answer(ctx context.Context, query string, history []Turn, results []rag.RankedResult) (string, error) {
	if len(results) == 0 {
		return NoAnswerMessage, nil
	}

	messages, packed := composeMessages(query, history, results, g.maxContextTokens)
	log := logging.FromContext(ctx)
	log.Debug("generation: composed prompt",
		slog.Int("passages_packed", len(packed.IncludedIDs)),
		slog.Int("passages_total", len(results)),
		slog.Int("context_chars", packed.TotalChars),
	)

	msg, err := g.chatModel.Generate(ctx, messages)
	if err != nil {
		return "", fmt.Errorf("generation: model call failed: %w", err)
	}
	if msg == nil {
		return "", fmt.Errorf("generation: model returned no message")
	}

	return strings.TrimSpace(msg.Content), nil
}
