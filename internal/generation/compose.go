package generation

import (
	"fmt"
	"strings"

	"github.com/cloudwego/eino/schema"

	"github.com/spectrumops/spectrumgpt/internal/budget"
	"github.com/spectrumops/spectrumgpt/internal/rag"
)

// systemPromptTemplate is the grounding prompt injected into every request.
// %s is replaced with the packed context block.
const systemPromptTemplate = `You are SpectrumGPT — an assistant restricted to answering only from the provided retrieved passages.

Rules:
1. Use only the retrieved passages for Spectrum-specific facts. If the answer isn't present, say "I couldn't find an authoritative answer in the indexed Spectrum docs or Slack corpus."
2. Cite every factual claim with the snippet source in brackets: [title — heading — url].
3. Preserve code blocks and include them verbatim with citations.
4. At the end include a "Sources" section listing used snippets.
5. Do not hallucinate versions, commits, or private user data.

Retrieved passages:
%s`

// DefaultMaxContextTokens is the token budget for the retrieved-passages
// block inside the system prompt.
const DefaultMaxContextTokens = 3000

// maxHistoryTokens is the token allowance for prior conversation turns, on
// top of the retrieved-passages budget. Oldest turns are dropped first.
const maxHistoryTokens = 1000

// composeMessages builds the chat messages for the model: a system message
// carrying the packed context, prior conversation turns (oldest first,
// trimmed to the history budget), and the current user question. Passages
// are admitted greedily in rank order under the character budget; the
// returned PackedContext reports which snippets made it in.
func composeMessages(query string, history []Turn, results []rag.RankedResult, maxContextTokens int) ([]*schema.Message, rag.PackedContext) {
	if maxContextTokens <= 0 {
		maxContextTokens = DefaultMaxContextTokens
	}

	packed := rag.Pack(results, budget.ContextChars(maxContextTokens))
	context := formatContext(packed.Results)

	fixed := []*schema.Message{
		schema.SystemMessage(fmt.Sprintf(systemPromptTemplate, context)),
		schema.UserMessage(query),
	}

	histMsgs := historyMessages(history)
	histMsgs = budget.TrimHistory(fixed, histMsgs, maxContextTokens+maxHistoryTokens)

	messages := make([]*schema.Message, 0, len(histMsgs)+2)
	messages = append(messages, fixed[0])
	messages = append(messages, histMsgs...)
	messages = append(messages, fixed[1])

	return messages, packed
}

// historyMessages converts prior turns into alternating user/assistant
// messages, oldest first.
func historyMessages(history []Turn) []*schema.Message {
	msgs := make([]*schema.Message, 0, len(history)*2)
	for _, t := range history {
		msgs = append(msgs, schema.UserMessage(t.Question), schema.AssistantMessage(t.Answer, nil))
	}
	return msgs
}

// formatContext renders packed results as citation-ready passage blocks
// separated by horizontal rules.
func formatContext(results []rag.RankedResult) string {
	blocks := make([]string, 0, len(results))
	for _, r := range results {
		var b strings.Builder
		fmt.Fprintf(&b, "[%s] %s", r.Chunk.ID, r.Chunk.Title)
		if r.Chunk.HeadingPath != "" {
			fmt.Fprintf(&b, " > %s", r.Chunk.HeadingPath)
		}
		if r.Chunk.URL != "" {
			fmt.Fprintf(&b, " (%s)", r.Chunk.URL)
		}
		b.WriteString("\n")
		b.WriteString(r.Chunk.Text)
		b.WriteString("\n")
		blocks = append(blocks, b.String())
	}
	return strings.Join(blocks, "\n---\n")
}
