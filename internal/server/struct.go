package server

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/spectrumops/spectrumgpt/internal/generation"
	"github.com/spectrumops/spectrumgpt/internal/rag"
	"github.com/spectrumops/spectrumgpt/internal/store"
)

// Config holds the HTTP server configuration.
type Config struct {
	// Host is the address to bind to (default: 127.0.0.1).
	Host string
	// Port is the TCP port to listen on (default: 8080).
	Port int
	// ReadTimeout is the maximum duration for reading the request.
	ReadTimeout time.Duration
	// WriteTimeout is the maximum duration for writing the response.
	WriteTimeout time.Duration
	// ShutdownTimeout is the maximum duration for a graceful shutdown.
	ShutdownTimeout time.Duration
	// Logger is the structured logger used by the server and its handlers.
	// If nil, [logging.New] is used.
	Logger *slog.Logger
	// Pingers is the ordered list of dependency probes run by GET /api/ready.
	// If empty, /api/ready returns 200 with no checks (liveness-only mode).
	Pingers []Pinger
	// RateLimit is the sustained request rate allowed per IP on rate-limited
	// endpoints (requests/second). Defaults to 10 if zero.
	RateLimit float64
	// RateBurst is the maximum instantaneous burst per IP. Defaults to 20 if zero.
	RateBurst int
	// APIKey is the Bearer token required on all protected /api/* routes.
	// If empty, authentication is disabled (development mode).
	APIKey string
	// MaxContextTokens caps the approximate token budget of retrieved context
	// sent to the generator. Defaults to generation.DefaultMaxContextTokens.
	MaxContextTokens int
	// CandidatePool is the number of vector candidates fetched before
	// re-ranking. Zero means the retriever's default.
	CandidatePool int
	// TopK is the number of passages returned when the request does not set
	// top_k. Zero means the retriever's default.
	TopK int
	// History records question/answer exchanges when non-nil. Failures to
	// record are logged, never surfaced to the client.
	History HistoryStore
	// Ingester handles POST /api/ingest when non-nil. If nil, the endpoint
	// returns 503.
	Ingester Ingester
	// MetricsRegistry receives the server's Prometheus metrics.
	// Defaults to prometheus.DefaultRegisterer.
	MetricsRegistry prometheus.Registerer
	// MetricsGatherer backs the GET /metrics endpoint.
	// Defaults to prometheus.DefaultGatherer.
	MetricsGatherer prometheus.Gatherer
}

// HistoryStore is the subset of the exchange store the server needs.
// *store.SQLiteStore satisfies it; tests inject a fake.
type HistoryStore interface {
	// Append records one question/answer exchange under conversationID.
	Append(ctx context.Context, conversationID, question, answer string) error
	// Recent returns up to n prior exchanges for conversationID, oldest first.
	Recent(ctx context.Context, conversationID string, n int) ([]store.Exchange, error)
}

// Ingester accepts a JSONL chunk stream and indexes it.
// *ingestion.Pipeline satisfies it; tests inject a fake.
type Ingester interface {
	// IngestReader reads JSONL chunk records from r and indexes them.
	// Returns the number of chunks indexed.
	IngestReader(ctx context.Context, r io.Reader, progress func(msg string)) (int, error)
}

// Server is the HTTP server that exposes retrieval-augmented answering.
type Server struct {
	// retriever produces ranked passages for a query.
	retriever rag.Retriever
	// generator turns a query plus packed passages into an answer.
	generator generation.Generator
	// cfg holds the resolved server configuration.
	cfg *Config
	// httpServer is the underlying net/http server.
	httpServer *http.Server
	// log is the structured logger for this server instance.
	log *slog.Logger
	// pingers is the ordered list of dependency probes for GET /api/ready.
	pingers []Pinger
	// metrics holds this instance's Prometheus collectors.
	metrics *serverMetrics
	// stopRL stops the rate limiter's background eviction goroutine on shutdown.
	stopRL func()
}

// answerRequest is the JSON body for POST /api/answer.
type answerRequest struct {
	// Query is the user's natural language question.
	Query string `json:"query"`
	// TopK overrides the number of passages returned as sources.
	// Zero means the server's configured default.
	TopK int `json:"top_k,omitempty"`
	// ConversationID groups exchanges in the history store. Optional.
	ConversationID string `json:"conversation_id,omitempty"`
}

// sourceRef is one cited passage in an answer response.
type sourceRef struct {
	// ID is the chunk identifier.
	ID string `json:"id"`
	// Title is the parent document title.
	Title string `json:"title"`
	// HeadingPath locates the passage within the document (e.g.
	// "Components > Popover > Dismissal"). Empty when unknown.
	HeadingPath string `json:"heading_path,omitempty"`
	// URL points at the origin document.
	URL string `json:"url,omitempty"`
	// Source is the corpus tag (e.g. "swc_docs", "slack", "github").
	Source string `json:"source"`
	// Score is the fused ranking score.
	Score float64 `json:"score"`
	// Snippet is a short excerpt of the passage text.
	Snippet string `json:"snippet"`
}

// answerMeta carries per-request diagnostics in an answer response.
type answerMeta struct {
	// LatencyMS is the end-to-end handler latency in milliseconds.
	LatencyMS int64 `json:"latency_ms"`
	// Retrieved is the number of passages the retriever returned.
	Retrieved int `json:"retrieved"`
	// Packed is the number of passages that fit the context budget.
	Packed int `json:"packed"`
	// Generator identifies the answer backend ("model" or "stub").
	Generator string `json:"generator"`
}

// answerResponse is the JSON response for POST /api/answer.
type answerResponse struct {
	// Answer is the generated answer text.
	Answer string `json:"answer"`
	// Sources lists the retrieved passages in rank order.
	Sources []sourceRef `json:"sources"`
	// UsedSnippetIDs are the chunk IDs actually sent to the generator,
	// in rank order.
	UsedSnippetIDs []string `json:"used_snippet_ids"`
	// Meta carries per-request diagnostics.
	Meta answerMeta `json:"meta"`
}

// ingestResponse is the JSON response for POST /api/ingest.
type ingestResponse struct {
	// Ingested is the number of chunks indexed from the request body.
	Ingested int `json:"ingested"`
}
