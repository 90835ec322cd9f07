// Package server implements the HTTP server that exposes retrieval-augmented
// answering over the indexed corpus via a small JSON API.
// The server is started by the `spectrumgpt serve` CLI command.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/spectrumops/spectrumgpt/internal/budget"
	"github.com/spectrumops/spectrumgpt/internal/generation"
	"github.com/spectrumops/spectrumgpt/internal/logging"
	"github.com/spectrumops/spectrumgpt/internal/rag"
)

// New constructs a Server from the provided retriever, generator, and config.
func New(retriever rag.Retriever, generator generation.Generator, cfg *Config) (*Server, error) {
	if retriever == nil {
		return nil, fmt.Errorf("server: retriever must not be nil")
	}
	if generator == nil {
		return nil, fmt.Errorf("server: generator must not be nil")
	}
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.Port == 0 {
		cfg.Port = 8080
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 30 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		// WriteTimeout must cover retrieval plus a full model generation.
		cfg.WriteTimeout = 5 * time.Minute
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.New()
	}
	if cfg.RateLimit == 0 {
		cfg.RateLimit = defaultRateLimit
	}
	if cfg.RateBurst == 0 {
		cfg.RateBurst = defaultRateBurst
	}
	if cfg.MaxContextTokens == 0 {
		cfg.MaxContextTokens = generation.DefaultMaxContextTokens
	}
	if cfg.MetricsRegistry == nil {
		cfg.MetricsRegistry = prometheus.DefaultRegisterer
	}
	if cfg.MetricsGatherer == nil {
		cfg.MetricsGatherer = prometheus.DefaultGatherer
	}

	s := &Server{
		retriever: retriever,
		generator: generator,
		cfg:       cfg,
		log:       cfg.Logger,
		pingers:   cfg.Pingers,
		metrics:   newServerMetrics(cfg.MetricsRegistry),
	}

	rl, stopRL := newRateLimiter(cfg.RateLimit, cfg.RateBurst, cfg.Logger)
	s.stopRL = stopRL

	// Protected routes get auth and per-IP rate limiting; health, readiness,
	// and metrics stay open so probes and scrapers work without credentials.
	protected := func(name string, h http.HandlerFunc) http.Handler {
		return s.instrument(name, authMiddleware(cfg.APIKey, rl.middleware(h)))
	}

	mux := http.NewServeMux()
	mux.Handle("POST /api/answer", protected("answer", s.handleAnswer))
	mux.Handle("POST /api/ingest", protected("ingest", s.handleIngest))
	mux.Handle("GET /api/health", s.instrument("health", http.HandlerFunc(s.handleHealth)))
	mux.Handle("GET /api/ready", s.instrument("ready", http.HandlerFunc(s.handleReady)))
	mux.Handle("GET /metrics", promhttp.HandlerFor(cfg.MetricsGatherer, promhttp.HandlerOpts{}))

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      requestLogger(cfg.Logger, mux),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	return s, nil
}

// Start begins listening and serving HTTP requests. It blocks until the
// context is cancelled, then performs a graceful shutdown.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		s.log.Info("server listening", "addr", "http://"+s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		s.stopRL()
		return fmt.Errorf("server: listen error: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		defer s.stopRL()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server: graceful shutdown failed: %w", err)
		}
		return nil
	}
}

// handleAnswer handles POST /api/answer: retrieve, pack, generate, respond.
func (s *Server) handleAnswer(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())
	start := time.Now()

	var req answerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.metrics.answerRequestsTotal.WithLabelValues(outcomeInvalid).Inc()
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Query == "" {
		s.metrics.answerRequestsTotal.WithLabelValues(outcomeInvalid).Inc()
		http.Error(w, "query is required", http.StatusBadRequest)
		return
	}

	s.metrics.answerInFlight.Inc()
	defer s.metrics.answerInFlight.Dec()

	topK := req.TopK
	if topK <= 0 {
		topK = s.cfg.TopK
	}
	results, err := s.retriever.Retrieve(r.Context(), req.Query, s.cfg.CandidatePool, topK)
	if err != nil {
		s.finishAnswer(start, outcomeError)
		log.Error("retrieval failed", "error", err)
		status := http.StatusBadGateway
		if errors.Is(err, rag.ErrInvalidQuery) {
			status = http.StatusBadRequest
		}
		http.Error(w, err.Error(), status)
		return
	}

	packed := rag.Pack(results, budget.ContextChars(s.cfg.MaxContextTokens))
	history := s.loadHistory(r.Context(), req.ConversationID)

	answer, err := s.generator.Answer(r.Context(), req.Query, history, packed.Results)
	if err != nil {
		s.finishAnswer(start, outcomeError)
		log.Error("generation failed", "error", err)
		http.Error(w, "answer generation failed", http.StatusBadGateway)
		return
	}

	if s.cfg.History != nil && req.ConversationID != "" {
		if err := s.cfg.History.Append(r.Context(), req.ConversationID, req.Query, answer); err != nil {
			log.Warn("history append failed", "error", err)
		}
	}

	resp := answerResponse{
		Answer:         answer,
		Sources:        make([]sourceRef, 0, len(results)),
		UsedSnippetIDs: packed.IncludedIDs,
		Meta: answerMeta{
			LatencyMS: time.Since(start).Milliseconds(),
			Retrieved: len(results),
			Packed:    len(packed.Results),
			Generator: s.generator.Name(),
		},
	}
	for _, res := range results {
		resp.Sources = append(resp.Sources, sourceRef{
			ID:          res.Chunk.ID,
			Title:       res.Chunk.Title,
			HeadingPath: res.Chunk.HeadingPath,
			URL:         res.Chunk.URL,
			Source:      res.Chunk.Source,
			Score:       res.FinalScore,
			Snippet:     res.Snippet(),
		})
	}

	s.finishAnswer(start, outcomeOK)
	writeJSON(w, http.StatusOK, resp)
}

// maxHistoryExchanges caps how many prior exchanges are replayed into the
// generator per request. The token budget trims further if needed.
const maxHistoryExchanges = 10

// loadHistory fetches prior exchanges for conversationID, oldest first.
// A missing store, empty conversation ID, or lookup failure yields nil:
// answering proceeds without history.
func (s *Server) loadHistory(ctx context.Context, conversationID string) []generation.Turn {
	if s.cfg.History == nil || conversationID == "" {
		return nil
	}
	exchanges, err := s.cfg.History.Recent(ctx, conversationID, maxHistoryExchanges)
	if err != nil {
		logging.FromContext(ctx).Warn("history lookup failed", "error", err)
		return nil
	}
	turns := make([]generation.Turn, 0, len(exchanges))
	for _, ex := range exchanges {
		turns = append(turns, generation.Turn{Question: ex.Question, Answer: ex.Answer})
	}
	return turns
}

// handleIngest handles POST /api/ingest: the request body is a JSONL stream
// of chunk records, embedded and upserted into the vector index.
func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	if s.cfg.Ingester == nil {
		http.Error(w, "ingestion not configured", http.StatusServiceUnavailable)
		return
	}

	n, err := s.cfg.Ingester.IngestReader(r.Context(), r.Body, nil)
	if err != nil {
		log.Error("ingest failed", "error", err, "ingested", n)
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}

	log.Info("ingest complete", "chunks", n)
	writeJSON(w, http.StatusOK, ingestResponse{Ingested: n})
}

// handleHealth handles GET /api/health for liveness checks.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// finishAnswer records the outcome metrics for one /api/answer request.
func (s *Server) finishAnswer(start time.Time, outcome string) {
	s.metrics.answerRequestsTotal.WithLabelValues(outcome).Inc()
	s.metrics.answerDurationSeconds.WithLabelValues(outcome).Observe(time.Since(start).Seconds())
}

// writeJSON encodes v as the JSON response body with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
