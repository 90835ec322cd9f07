package rag

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
	"unicode/utf8"
)

// ---------------------------------------------------------------------------
// Fakes
// ---------------------------------------------------------------------------

// fakeEmbedder is a test double for the Embedder interface.
type fakeEmbedder struct {
	// vector is returned for every input text.
	vector []float32
	// err, if set, is returned instead.
	err error
	// blockUntilCancel makes Embed wait for context cancellation, simulating
	// a hung provider so timeout mapping can be exercised.
	blockUntilCancel bool
}

func (f *fakeEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if f.blockUntilCancel {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = f.vector
	}
	return out, nil
}

// fakeIndex is a test double for the VectorIndex interface.
type fakeIndex struct {
	candidates       []Candidate
	err              error
	blockUntilCancel bool
	// lastTopK records the topK the retriever requested.
	lastTopK int
}

func (f *fakeIndex) Search(ctx context.Context, _ []float32, topK int) ([]Candidate, error) {
	f.lastTopK = topK
	if f.blockUntilCancel {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if f.err != nil {
		return nil, f.err
	}
	if len(f.candidates) > topK {
		return f.candidates[:topK], nil
	}
	return f.candidates, nil
}

func (f *fakeIndex) Upsert(context.Context, []Chunk, [][]float32) error { return nil }
func (f *fakeIndex) Delete(context.Context, []string) error            { return nil }
func (f *fakeIndex) Close() error                                      { return nil }

func newTestRetriever(t *testing.T, emb Embedder, idx VectorIndex) *HybridRetriever {
	t.Helper()
	r, err := NewHybridRetriever(emb, idx, RetrieverConfig{})
	if err != nil {
		t.Fatalf("NewHybridRetriever: %v", err)
	}
	return r
}

// ---------------------------------------------------------------------------
// Construction
// ---------------------------------------------------------------------------

func Test_NewHybridRetriever_NilDependencies(t *testing.T) {
	t.Parallel()
	if _, err := NewHybridRetriever(nil, &fakeIndex{}, RetrieverConfig{}); err == nil {
		t.Error("want error for nil embedder")
	}
	if _, err := NewHybridRetriever(&fakeEmbedder{}, nil, RetrieverConfig{}); err == nil {
		t.Error("want error for nil index")
	}
}

func Test_NewHybridRetriever_RejectsBadWeights(t *testing.T) {
	t.Parallel()
	cfg := RetrieverConfig{Fusion: FusionConfig{VectorWeight: 0.9, LexicalWeight: 0.3}}
	if _, err := NewHybridRetriever(&fakeEmbedder{}, &fakeIndex{}, cfg); err == nil {
		t.Error("want error for weights not summing to 1.0")
	}
}

// ---------------------------------------------------------------------------
// Retrieval behaviour
// ---------------------------------------------------------------------------

func Test_Retrieve_EmptyQuery(t *testing.T) {
	t.Parallel()
	r := newTestRetriever(t, &fakeEmbedder{vector: []float32{1}}, &fakeIndex{})

	for _, q := range []string{"", "   ", "\n\t"} {
		_, err := r.Retrieve(context.Background(), q, 0, 0)
		if !errors.Is(err, ErrInvalidQuery) {
			t.Errorf("Retrieve(%q) error = %v, want ErrInvalidQuery", q, err)
		}
	}
}

// Test_Retrieve_ExactKeywordMatchRanksFirst is the end-to-end hybrid ranking
// check: a chunk with an exact keyword hit must overtake a pure-semantic
// neighbour under the default 0.7/0.3 weights.
func Test_Retrieve_ExactKeywordMatchRanksFirst(t *testing.T) {
	t.Parallel()
	idx := &fakeIndex{candidates: []Candidate{
		{Chunk: Chunk{ID: "semantic", Source: SourceCode, Text: "overlay panel attached to an anchor element"}, VectorScore: 0.9},
		{Chunk: Chunk{ID: "exact", Source: SourceCode, Text: "the popover opens a popover above the trigger"}, VectorScore: 0.8},
		{Chunk: Chunk{ID: "noise", Source: SourceCode, Text: "release notes for the build pipeline"}, VectorScore: 0.2},
	}}
	r := newTestRetriever(t, &fakeEmbedder{vector: []float32{1, 0}}, idx)

	results, err := r.Retrieve(context.Background(), "popover", 50, 3)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("want 3 results, got %d", len(results))
	}
	if results[0].Chunk.ID != "exact" {
		t.Errorf("top result = %s, want the exact keyword match", results[0].Chunk.ID)
	}
}

func Test_Retrieve_EmptyCandidateSet(t *testing.T) {
	t.Parallel()
	r := newTestRetriever(t, &fakeEmbedder{vector: []float32{1}}, &fakeIndex{})

	results, err := r.Retrieve(context.Background(), "anything", 50, 5)
	if err != nil {
		t.Fatalf("empty candidate set must not error, got %v", err)
	}
	if len(results) != 0 {
		t.Errorf("want empty result, got %d", len(results))
	}
}

// Test_Retrieve_UnderfilledPool: the index returning fewer candidates than
// requested is tolerated, and a topKFinal above the available count returns
// everything without padding.
func Test_Retrieve_UnderfilledPool(t *testing.T) {
	t.Parallel()
	idx := &fakeIndex{candidates: []Candidate{
		{Chunk: Chunk{ID: "only-1", Text: "alpha"}, VectorScore: 0.7},
		{Chunk: Chunk{ID: "only-2", Text: "beta"}, VectorScore: 0.5},
	}}
	r := newTestRetriever(t, &fakeEmbedder{vector: []float32{1}}, idx)

	results, err := r.Retrieve(context.Background(), "alpha", 50, 10)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if len(results) != 2 {
		t.Errorf("want all 2 available results, got %d", len(results))
	}
}

func Test_Retrieve_TruncatesToTopKFinal(t *testing.T) {
	t.Parallel()
	var cands []Candidate
	for i := 0; i < 20; i++ {
		cands = append(cands, Candidate{
			Chunk:       Chunk{ID: fmt.Sprintf("c%02d", i), Text: fmt.Sprintf("text %d", i)},
			VectorScore: float64(20-i) / 20,
		})
	}
	idx := &fakeIndex{candidates: cands}
	r := newTestRetriever(t, &fakeEmbedder{vector: []float32{1}}, idx)

	results, err := r.Retrieve(context.Background(), "text", 20, 5)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if len(results) != 5 {
		t.Errorf("want 5 results, got %d", len(results))
	}
}

// Test_Retrieve_PoolNeverBelowFinal: a candidate pool smaller than topKFinal
// is widened so the re-ranker always sees at least topKFinal neighbours.
func Test_Retrieve_PoolNeverBelowFinal(t *testing.T) {
	t.Parallel()
	idx := &fakeIndex{}
	r := newTestRetriever(t, &fakeEmbedder{vector: []float32{1}}, idx)

	if _, err := r.Retrieve(context.Background(), "q", 3, 10); err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if idx.lastTopK != 10 {
		t.Errorf("index queried with topK %d, want 10", idx.lastTopK)
	}
}

// Test_Retrieve_Deterministic: the same query against an unchanged index
// yields an identical ordering on every call.
func Test_Retrieve_Deterministic(t *testing.T) {
	t.Parallel()
	idx := &fakeIndex{candidates: []Candidate{
		{Chunk: Chunk{ID: "b", Source: SourceDocs, Text: "rollout guide for the gateway"}, VectorScore: 0.5},
		{Chunk: Chunk{ID: "a", Source: SourceChat, Text: "thread about gateway rollout"}, VectorScore: 0.5},
		{Chunk: Chunk{ID: "c", Source: SourceCode, Text: "gateway handler implementation"}, VectorScore: 0.5},
	}}
	r := newTestRetriever(t, &fakeEmbedder{vector: []float32{1}}, idx)

	first, err := r.Retrieve(context.Background(), "gateway rollout", 10, 3)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	second, err := r.Retrieve(context.Background(), "gateway rollout", 10, 3)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}

	for i := range first {
		if first[i].Chunk.ID != second[i].Chunk.ID {
			t.Errorf("ordering differs at %d: %s vs %s", i, first[i].Chunk.ID, second[i].Chunk.ID)
		}
		if first[i].FinalScore != second[i].FinalScore {
			t.Errorf("score differs at %d: %g vs %g", i, first[i].FinalScore, second[i].FinalScore)
		}
	}
}

// ---------------------------------------------------------------------------
// Error taxonomy
// ---------------------------------------------------------------------------

func Test_Retrieve_EmbeddingUnavailable(t *testing.T) {
	t.Parallel()
	r := newTestRetriever(t, &fakeEmbedder{err: errors.New("connection refused")}, &fakeIndex{})

	_, err := r.Retrieve(context.Background(), "q", 0, 0)
	if !errors.Is(err, ErrEmbeddingUnavailable) {
		t.Errorf("error = %v, want ErrEmbeddingUnavailable", err)
	}
}

func Test_Retrieve_EmbeddingTimeout(t *testing.T) {
	t.Parallel()
	emb := &fakeEmbedder{blockUntilCancel: true}
	r, err := NewHybridRetriever(emb, &fakeIndex{}, RetrieverConfig{EmbedTimeout: 10 * time.Millisecond})
	if err != nil {
		t.Fatalf("NewHybridRetriever: %v", err)
	}

	_, err = r.Retrieve(context.Background(), "q", 0, 0)
	if !errors.Is(err, ErrEmbeddingTimeout) {
		t.Errorf("error = %v, want ErrEmbeddingTimeout", err)
	}
}

func Test_Retrieve_IndexUnavailable(t *testing.T) {
	t.Parallel()
	idx := &fakeIndex{err: errors.New("rpc error")}
	r := newTestRetriever(t, &fakeEmbedder{vector: []float32{1}}, idx)

	_, err := r.Retrieve(context.Background(), "q", 0, 0)
	if !errors.Is(err, ErrIndexUnavailable) {
		t.Errorf("error = %v, want ErrIndexUnavailable", err)
	}
}

func Test_Retrieve_IndexTimeout(t *testing.T) {
	t.Parallel()
	idx := &fakeIndex{blockUntilCancel: true}
	r, err := NewHybridRetriever(&fakeEmbedder{vector: []float32{1}}, idx, RetrieverConfig{SearchTimeout: 10 * time.Millisecond})
	if err != nil {
		t.Fatalf("NewHybridRetriever: %v", err)
	}

	_, err = r.Retrieve(context.Background(), "q", 0, 0)
	if !errors.Is(err, ErrIndexTimeout) {
		t.Errorf("error = %v, want ErrIndexTimeout", err)
	}
}

// Test_Retrieve_CallerCancellation: when the caller's own context is already
// cancelled the failure is reported as unavailability, not as a per-call
// timeout — the deadline was never the limiting factor.
func Test_Retrieve_CallerCancellation(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := newTestRetriever(t, &fakeEmbedder{blockUntilCancel: true}, &fakeIndex{})

	_, err := r.Retrieve(ctx, "q", 0, 0)
	if err == nil {
		t.Fatal("want error from cancelled context")
	}
	if errors.Is(err, ErrEmbeddingTimeout) {
		t.Errorf("caller cancellation misreported as embedding timeout: %v", err)
	}
}

func Test_Snippet(t *testing.T) {
	t.Parallel()
	short := RankedResult{Candidate: Candidate{Chunk: Chunk{Text: "short text"}}}
	if got := short.Snippet(); got != "short text" {
		t.Errorf("Snippet() = %q, want unmodified text", got)
	}

	long := RankedResult{Candidate: Candidate{Chunk: Chunk{Text: string(make([]byte, 300))}}}
	if got := long.Snippet(); len(got) != snippetLen+3 {
		t.Errorf("Snippet() length = %d, want %d", len(got), snippetLen+3)
	}
}

// Test_Snippet_MultiByteText verifies truncation never splits a rune: a chunk
// of multi-byte characters must yield a valid UTF-8 snippet.
func Test_Snippet_MultiByteText(t *testing.T) {
	t.Parallel()

	r := RankedResult{Candidate: Candidate{Chunk: Chunk{Text: strings.Repeat("€", 250)}}}
	got := r.Snippet()

	if !utf8.ValidString(got) {
		t.Fatalf("Snippet() produced invalid UTF-8: % x", got[len(got)-6:])
	}
	if want := strings.Repeat("€", snippetLen) + "..."; got != want {
		t.Errorf("Snippet() kept %d runes, want %d", utf8.RuneCountInString(got)-3, snippetLen)
	}
}

func Test_TruncateForLog_MultiByteText(t *testing.T) {
	t.Parallel()

	got := truncateForLog(strings.Repeat("é", 80))
	if !utf8.ValidString(got) {
		t.Fatalf("truncateForLog produced invalid UTF-8: % x", got)
	}
	if utf8.RuneCountInString(got) != 50 {
		t.Errorf("truncateForLog kept %d runes, want 50", utf8.RuneCountInString(got))
	}
}
