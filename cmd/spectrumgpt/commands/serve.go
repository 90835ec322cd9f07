package commands

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/cloudwego/eino/callbacks"
	"github.com/spf13/cobra"

	"github.com/spectrumops/spectrumgpt/internal/budget"
	"github.com/spectrumops/spectrumgpt/internal/generation"
	"github.com/spectrumops/spectrumgpt/internal/ingestion"
	"github.com/spectrumops/spectrumgpt/internal/logging"
	"github.com/spectrumops/spectrumgpt/internal/server"
	"github.com/spectrumops/spectrumgpt/internal/store"
	"github.com/spectrumops/spectrumgpt/internal/tracing"
)

// NewServeCmd constructs the `spectrumgpt serve` command, which starts the
// HTTP server exposing the answer API.
func NewServeCmd() *cobra.Command {
	var host string
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the SpectrumGPT HTTP answer server",
		Long: `Start the SpectrumGPT HTTP server on localhost.

The server exposes POST /api/answer for grounded question answering,
POST /api/ingest for streaming JSONL corpus updates, plus health, readiness,
and Prometheus metrics endpoints.

Examples:
  spectrumgpt serve
  spectrumgpt serve --port 9090
  MODEL_PROVIDER=azure spectrumgpt serve`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			log.Info("serve starting", slog.String("provider", os.Getenv("MODEL_PROVIDER")))

			// Setup Langfuse tracing — opt-in, no-op if keys are absent.
			handler, flush, ok := tracing.Setup()
			if ok {
				callbacks.AppendGlobalHandlers(handler)
				defer flush()
				log.Info("langfuse tracing enabled")
			} else {
				log.Info("langfuse tracing disabled", slog.String("reason", "LANGFUSE_PUBLIC_KEY not set"))
			}

			stack, err := buildRetrievalStack(ctx, log)
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}
			defer stack.close()

			maxTokens := budget.ContextTokens(stack.settings.MaxContextChars)
			gen, err := generation.NewFromEnv(ctx, maxTokens)
			if err != nil {
				return fmt.Errorf("serve: failed to initialise generator: %w", err)
			}
			log.Info("generator initialised", slog.String("mode", gen.Name()))

			// Open conversation history store. SPECTRUMGPT_HISTORY_DB overrides
			// the default path (~/.spectrumgpt/history.db). Set to "disabled"
			// to turn history off.
			var historyStore server.HistoryStore
			dbPath := os.Getenv("SPECTRUMGPT_HISTORY_DB")
			if dbPath != "disabled" {
				if dbPath == "" {
					dbPath, err = store.DefaultDBPath()
					if err != nil {
						log.Warn("history: could not resolve default DB path, disabling", slog.Any("error", err))
					}
				}
				if dbPath != "" {
					hs, hsErr := store.Open(dbPath)
					if hsErr != nil {
						log.Warn("history: failed to open store, disabling", slog.Any("error", hsErr))
					} else {
						historyStore = hs
						defer func() { _ = hs.Close() }()
						log.Info("history: store opened", slog.String("path", dbPath))
					}
				}
			} else {
				log.Info("history: disabled via SPECTRUMGPT_HISTORY_DB=disabled")
			}

			// The server's ingest endpoint shares the retrieval stack's
			// embedder and index. Redaction is always on for API ingestion
			// since the payload origin is unknown.
			pipeline, err := ingestion.NewPipeline(stack.embedder, stack.index, &ingestion.Config{
				Redact: true,
			})
			if err != nil {
				return fmt.Errorf("serve: failed to create ingestion pipeline: %w", err)
			}

			srv, err := server.New(stack.retriever, gen, &server.Config{
				Host:             host,
				Port:             port,
				Logger:           log,
				Pingers:          buildPingers(stack),
				APIKey:           os.Getenv("SPECTRUMGPT_API_KEY"),
				MaxContextTokens: maxTokens,
				CandidatePool:    stack.settings.CandidatePool,
				TopK:             stack.settings.TopK,
				History:          historyStore,
				Ingester:         pipeline,
			})
			if err != nil {
				return fmt.Errorf("serve: failed to create server: %w", err)
			}

			return srv.Start(ctx)
		},
	}

	cmd.Flags().StringVar(&host, "host", "127.0.0.1", "Host address to bind to")
	cmd.Flags().IntVarP(&port, "port", "p", 8080, "TCP port to listen on")

	return cmd
}
