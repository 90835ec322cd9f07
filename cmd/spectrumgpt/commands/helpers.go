package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/spectrumops/spectrumgpt/internal/config"
	"github.com/spectrumops/spectrumgpt/internal/embedder"
	"github.com/spectrumops/spectrumgpt/internal/rag"
	"github.com/spectrumops/spectrumgpt/internal/server"
)

// defaultCollection is the Qdrant collection holding the indexed corpus.
const defaultCollection = "spectrumgpt-chunks"

// retrievalStack bundles everything needed to answer a query: the embedding
// backend, the vector index, the hybrid retriever on top of them, and the
// resolved retrieval settings.
type retrievalStack struct {
	// embedder is the embedding backend.
	embedder rag.Embedder
	// index is the Qdrant-backed vector index.
	index *rag.QdrantIndex
	// retriever is the hybrid retriever over embedder and index.
	retriever rag.Retriever
	// settings are the resolved RETRIEVAL_* settings.
	settings *config.RetrievalSettings
}

// close releases the stack's network resources.
func (s *retrievalStack) close() {
	if s.index != nil {
		_ = s.index.Close()
	}
}

// buildRetrievalStack constructs the embedder, Qdrant index, and hybrid
// retriever from the environment. The caller must call close on the returned
// stack when done.
func buildRetrievalStack(ctx context.Context, log *slog.Logger) (*retrievalStack, error) {
	embedder.Validate(log)

	emb, err := embedder.NewFromEnv()
	if err != nil {
		return nil, fmt.Errorf("failed to initialise embedder: %w", err)
	}

	settings, err := config.RetrievalFromEnv()
	if err != nil {
		return nil, err
	}

	embBackend := getEnvOrDefault("EMBEDDING_PROVIDER", getEnvOrDefault("MODEL_PROVIDER", "ollama"))
	qdrantHost := getEnvOrDefault("QDRANT_HOST", "localhost")
	qdrantPort := getEnvInt("QDRANT_PORT", 6334)
	collection := getEnvOrDefault("QDRANT_COLLECTION", defaultCollection)
	vectorSize := uint64(embedder.DefaultDimensions(embBackend)) //nolint:gosec // dimensions are bounded

	index, err := rag.NewQdrantIndex(ctx, &rag.QdrantConfig{
		Host:       qdrantHost,
		Port:       qdrantPort,
		Collection: collection,
		VectorSize: vectorSize,
		APIKey:     os.Getenv("QDRANT_API_KEY"),
		UseTLS:     os.Getenv("QDRANT_TLS") == "true",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Qdrant at %s:%d: %w", qdrantHost, qdrantPort, err)
	}
	log.Info("qdrant index ready",
		slog.String("host", qdrantHost),
		slog.Int("port", qdrantPort),
		slog.String("collection", collection),
	)

	retriever, err := rag.NewHybridRetriever(emb, index, rag.RetrieverConfig{
		Fusion: rag.FusionConfig{
			VectorWeight:  settings.VectorWeight,
			LexicalWeight: settings.LexicalWeight,
			SourceBoosts:  settings.SourceBoosts,
		},
		EmbedTimeout:  settings.EmbedTimeout,
		SearchTimeout: settings.SearchTimeout,
	})
	if err != nil {
		_ = index.Close()
		return nil, fmt.Errorf("failed to build retriever: %w", err)
	}

	return &retrievalStack{
		embedder:  emb,
		index:     index,
		retriever: retriever,
		settings:  settings,
	}, nil
}

// buildPingers assembles the readiness probes for the serve command.
func buildPingers(stack *retrievalStack) []server.Pinger {
	embBackend := getEnvOrDefault("EMBEDDING_PROVIDER", getEnvOrDefault("MODEL_PROVIDER", "ollama"))
	return []server.Pinger{
		server.NewEmbedderPinger(stack.embedder, embBackend),
		server.NewQdrantPinger(stack.index.Client()),
	}
}

// getEnvOrDefault returns the value of the named environment variable, or
// fallback if the variable is unset or empty.
func getEnvOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// getEnvInt returns the integer value of the named environment variable, or
// fallback if the variable is unset, empty, or not parseable.
func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}
