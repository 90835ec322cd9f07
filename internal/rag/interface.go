// Package rag implements the hybrid retrieval core: vector similarity search
// over a Qdrant index, BM25 lexical re-ranking over the candidate batch, score
// fusion with per-source boosts, and budget-constrained context packing.
// The Embedder and VectorIndex interfaces decouple the core from concrete
// backends so the generation layer never depends on a specific service.
package rag

import (
	"context"
	"unicode/utf8"
)

// Well-known source tags carried in chunk payloads. The boost table is keyed
// by these values; unrecognised tags are valid and boost to 1.0.
const (
	// SourceDocs marks chunks ingested from the documentation crawl.
	SourceDocs = "swc_docs"
	// SourceCode marks chunks ingested from GitHub repositories.
	SourceCode = "github"
	// SourceChat marks chunks ingested from Slack thread exports.
	SourceChat = "slack"
)

// Chunk is the unit of retrieval: a bounded slice of a source document stored
// in the vector index. The identifier is content-derived and stable; chunk
// text never changes after creation — updates are full replacements keyed by ID.
type Chunk struct {
	// ID is the stable, content-derived identifier, unique within the index.
	ID string `json:"id"`

	// Source is the origin category tag (SourceDocs, SourceCode, SourceChat,
	// or any other tag the ingestion side emits).
	Source string `json:"source"`

	// URL is the origin URL or reference of the parent document.
	URL string `json:"url"`

	// Title is the display title of the parent document.
	Title string `json:"title"`

	// HeadingPath is the hierarchical heading path within the document
	// (e.g. "# Overview > ## Installation"). Optional; empty when absent.
	HeadingPath string `json:"heading_path"`

	// Text is the raw text content of the chunk.
	Text string `json:"chunk_text"`

	// ChunkIndex is the ordinal position of this chunk within its parent.
	ChunkIndex int `json:"chunk_index"`

	// Type distinguishes prose from code content.
	Type string `json:"type"`

	// Timestamp is the creation time of the source material, recorded by the
	// ingestion side and treated as opaque here.
	Timestamp string `json:"timestamp"`

	// Author is the attribution of the source material. Defaults to
	// "unknown" when the payload omits it.
	Author string `json:"author"`

	// Metadata holds free-form extension fields (e.g. total chunk count for
	// the parent document). Never nil after payload decoding.
	Metadata map[string]string `json:"metadata"`
}

// Candidate is a Chunk plus the cosine similarity score the vector index
// assigned it for one query. Candidates exist only for the duration of a
// single retrieval call.
type Candidate struct {
	// Chunk is the retrieved record.
	Chunk Chunk

	// VectorScore is the cosine similarity in [0, 1] reported by the index.
	VectorScore float64
}

// RankedResult is a Candidate after lexical scoring and score fusion. The
// ordering of RankedResults for one query is the primary output contract.
type RankedResult struct {
	// Candidate is the underlying candidate with its raw vector score.
	Candidate

	// LexicalScore is the raw BM25 score (>= 0, unbounded) for this query.
	LexicalScore float64

	// FinalScore is the fused ranking key: weighted sum of the batch-normalised
	// vector and lexical scores, multiplied by the source boost.
	FinalScore float64
}

// snippetLen is the number of leading characters of chunk text exposed as the
// citation snippet.
const snippetLen = 200

// Snippet returns the first characters of the chunk text for citation
// rendering, suffixed with an ellipsis when the text was cut. Truncation is
// rune-aware so the result is always valid UTF-8.
func (r RankedResult) Snippet() string {
	if utf8.RuneCountInString(r.Chunk.Text) <= snippetLen {
		return r.Chunk.Text
	}
	return string([]rune(r.Chunk.Text)[:snippetLen]) + "..."
}

// PackedContext is an ordered subset of ranked results whose concatenated
// text fits within a character budget.
type PackedContext struct {
	// Results are the included results, in rank order.
	Results []RankedResult

	// IncludedIDs are the chunk IDs of the included results, in rank order.
	IncludedIDs []string

	// TotalChars is the sum of the included chunk text lengths.
	TotalChars int
}

// Embedder converts text into dense vector embeddings.
// Implementations must be safe to call from multiple goroutines.
type Embedder interface {
	// Embed converts a batch of texts into their corresponding embeddings.
	// The returned slice is parallel to the input slice.
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// VectorIndex is the nearest-neighbour service backing retrieval.
// Implementations must be safe to call from multiple goroutines.
type VectorIndex interface {
	// Search returns up to topK candidates nearest to the query embedding
	// by cosine similarity, best first. Returning fewer than topK is not an
	// error — small corpora under-fill.
	Search(ctx context.Context, queryEmbedding []float32, topK int) ([]Candidate, error)

	// Upsert stores or replaces chunks with their pre-computed embeddings.
	// embeddings[i] is the vector for chunks[i].
	Upsert(ctx context.Context, chunks []Chunk, embeddings [][]float32) error

	// Delete removes chunks by their IDs.
	Delete(ctx context.Context, ids []string) error

	// Close releases any resources held by the index client.
	Close() error
}

// Retriever returns the re-ranked, truncated result set for a query.
// Implementations must be safe to call from multiple goroutines.
type Retriever interface {
	// Retrieve embeds the query, pulls topKCandidates neighbours from the
	// index, re-ranks them lexically, and returns the top topKFinal results.
	// An empty result is a valid terminal state, not an error.
	Retrieve(ctx context.Context, query string, topKCandidates, topKFinal int) ([]RankedResult, error)
}
