package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/spectrumops/spectrumgpt/internal/budget"
	"github.com/spectrumops/spectrumgpt/internal/generation"
	"github.com/spectrumops/spectrumgpt/internal/logging"
	"github.com/spectrumops/spectrumgpt/internal/rag"
)

// NewAskCmd constructs the `spectrumgpt ask` command, which answers a single
// question from the indexed corpus and prints the result to stdout.
func NewAskCmd() *cobra.Command {
	var topK int
	var showSources bool

	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Ask a question answered from the indexed corpus",
		Long: `Ask SpectrumGPT a natural language question about the design system.

The answer is grounded in the indexed documentation, Slack archive, and GitHub
corpus. When no authoritative passage exists, SpectrumGPT declines to answer
rather than inventing one.

Examples:
  spectrumgpt ask "how do I dismiss a popover programmatically?"
  spectrumgpt ask --sources "which tokens control focus ring color?"
  GENERATION_MODE=stub spectrumgpt ask "smoke test without an LLM"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			stack, err := buildRetrievalStack(ctx, log)
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}
			defer stack.close()

			maxTokens := budget.ContextTokens(stack.settings.MaxContextChars)
			gen, err := generation.NewFromEnv(ctx, maxTokens)
			if err != nil {
				return fmt.Errorf("ask: failed to initialise generator: %w", err)
			}

			question := args[0]
			if topK <= 0 {
				topK = stack.settings.TopK
			}

			results, err := stack.retriever.Retrieve(ctx, question, stack.settings.CandidatePool, topK)
			if err != nil {
				return fmt.Errorf("ask: retrieval failed: %w", err)
			}

			packed := rag.Pack(results, stack.settings.MaxContextChars)

			answer, err := gen.Answer(ctx, question, nil, packed.Results)
			if err != nil {
				return fmt.Errorf("ask: generation failed: %w", err)
			}

			fmt.Fprintln(os.Stdout, answer)

			if showSources && len(results) > 0 {
				fmt.Fprintln(os.Stdout, "\nSources:")
				for i, r := range results {
					line := fmt.Sprintf("  %d. [%s] %s", i+1, r.Chunk.Source, r.Chunk.Title)
					if r.Chunk.URL != "" {
						line += " — " + r.Chunk.URL
					}
					fmt.Fprintln(os.Stdout, line)
				}
			}

			return nil
		},
	}

	cmd.Flags().IntVarP(&topK, "top-k", "k", 0, "Number of passages to retrieve (default: RETRIEVAL_TOP_K)")
	cmd.Flags().BoolVarP(&showSources, "sources", "s", false, "Print the cited source documents after the answer")

	return cmd
}
