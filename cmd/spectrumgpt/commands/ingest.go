package commands

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/spectrumops/spectrumgpt/internal/ingestion"
	"github.com/spectrumops/spectrumgpt/internal/logging"
)

// NewIngestCmd constructs the `spectrumgpt ingest` command, which loads JSONL
// chunk files into the Qdrant vector store.
func NewIngestCmd() *cobra.Command {
	var batchSize int
	var redact bool
	var defaultSource string

	cmd := &cobra.Command{
		Use:   "ingest [file.jsonl ...]",
		Short: "Ingest JSONL chunk files into the vector store",
		Long: `Embed and index pre-chunked corpus files into the Qdrant vector store.

Each input file is JSON Lines: one chunk record per line with at least a
chunk_text field. Records missing id, source, or author are filled from the
URL and defaults. Slack exports should be ingested with --redact so emails,
IPs, user mentions, and tokens are replaced with stable hashes.

Required environment variables:
  QDRANT_HOST          Qdrant server hostname (default: localhost)
  QDRANT_PORT          Qdrant gRPC port (default: 6334)
  QDRANT_COLLECTION    Collection name (default: spectrumgpt-chunks)
  QDRANT_API_KEY       Optional API key for authenticated clusters
  MODEL_PROVIDER       Embedding backend: ollama, openai, azure (default: ollama)
  EMBEDDING_*          Provider-specific overrides (see README)

Examples:
  spectrumgpt ingest docs_chunks.jsonl
  spectrumgpt ingest --redact slack_chunks.jsonl
  spectrumgpt ingest --source swc_docs --batch-size 128 docs_chunks.jsonl`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			stack, err := buildRetrievalStack(ctx, log)
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}
			defer stack.close()

			pipeline, err := ingestion.NewPipeline(stack.embedder, stack.index, &ingestion.Config{
				BatchSize:     batchSize,
				Redact:        redact,
				DefaultSource: defaultSource,
			})
			if err != nil {
				return fmt.Errorf("ingest: failed to create pipeline: %w", err)
			}

			total := 0
			for _, path := range args {
				log.Info("ingesting file", slog.String("path", path))

				n, err := pipeline.IngestFile(ctx, path, func(msg string) {
					log.Info(msg)
				})
				if err != nil {
					return fmt.Errorf("ingest: %s: %w", path, err)
				}

				log.Info("file complete", slog.String("path", path), slog.Int("chunks", n))
				total += n
			}

			log.Info("ingestion complete", slog.Int("files", len(args)), slog.Int("chunks", total))
			return nil
		},
	}

	cmd.Flags().IntVarP(&batchSize, "batch-size", "b", 0, "Chunks embedded and upserted per batch (default: 64)")
	cmd.Flags().BoolVarP(&redact, "redact", "r", false, "Redact emails, IPs, mentions, and tokens before indexing")
	cmd.Flags().StringVarP(&defaultSource, "source", "s", "", "Source tag for records without one (default: inferred from URL)")

	return cmd
}
