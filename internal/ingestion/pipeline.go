// Package ingestion implements the chunk ingestion pipeline.
// It reads pre-chunked corpus records from JSONL files (one chunk per line,
// the same record shape the crawlers emit), redacts PII, embeds each chunk,
// and upserts the results into the vector index in batches.
// This pipeline is invoked by the `spectrumgpt ingest` CLI command.
package ingestion

import (
	"bufio"
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spectrumops/spectrumgpt/internal/rag"
)

// Config holds the configuration for the ingestion pipeline.
type Config struct {
	// BatchSize is how many chunks are embedded and upserted per round trip.
	// Defaults to 64 if zero.
	BatchSize int

	// Redact enables PII redaction on chunk text before embedding.
	// Chat transcripts should always be ingested with this on.
	Redact bool

	// DefaultSource is the source tag applied to chunks whose record carries
	// none and whose URL gives no hint. Defaults to "unknown".
	DefaultSource string
}

// Pipeline orchestrates the read → redact → embed → upsert flow for a set of
// JSONL chunk files.
type Pipeline struct {
	// embedder converts chunk text into dense vector embeddings.
	embedder rag.Embedder

	// index persists the embedded chunks.
	index rag.VectorIndex

	// cfg holds the resolved pipeline configuration.
	cfg *Config

	// redactor scrubs PII from chunk text when cfg.Redact is set.
	redactor *Redactor
}

// NewPipeline constructs a Pipeline from the provided dependencies and config.
func NewPipeline(embedder rag.Embedder, index rag.VectorIndex, cfg *Config) (*Pipeline, error) {
	if embedder == nil {
		return nil, fmt.Errorf("ingestion: embedder must not be nil")
	}
	if index == nil {
		return nil, fmt.Errorf("ingestion: index must not be nil")
	}
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 64
	}
	if cfg.DefaultSource == "" {
		cfg.DefaultSource = "unknown"
	}

	return &Pipeline{
		embedder: embedder,
		index:    index,
		cfg:      cfg,
		redactor: NewRedactor(),
	}, nil
}

// IngestFile reads a JSONL chunk file and ingests every record in it.
// It returns the number of chunks ingested. Progress is reported via the
// optional progress callback.
func (p *Pipeline) IngestFile(ctx context.Context, path string, progress func(msg string)) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("ingestion: open %s: %w", path, err)
	}
	defer f.Close()

	n, err := p.IngestReader(ctx, f, progress)
	if err != nil {
		return n, fmt.Errorf("ingestion: %s: %w", path, err)
	}
	return n, nil
}

// IngestReader reads JSONL chunk records from r and ingests them in batches.
// Blank lines are skipped; a malformed line fails the run with its line
// number so the corpus file can be fixed.
func (p *Pipeline) IngestReader(ctx context.Context, r io.Reader, progress func(msg string)) (int, error) {
	if progress == nil {
		progress = func(string) {}
	}

	scanner := bufio.NewScanner(r)
	// Chunks with embedded code blocks can exceed the default 64 KiB line limit.
	scanner.Buffer(make([]byte, 0, 1024*1024), 1024*1024)

	var batch []rag.Chunk
	total := 0
	lineNo := 0

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := p.ingestBatch(ctx, batch); err != nil {
			return err
		}
		total += len(batch)
		progress(fmt.Sprintf("ingested %d chunks", total))
		batch = batch[:0]
		return nil
	}

	for scanner.Scan() {
		lineNo++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var c rag.Chunk
		if err := json.Unmarshal(line, &c); err != nil {
			return total, fmt.Errorf("line %d: %w", lineNo, err)
		}
		if c.Text == "" {
			continue
		}

		p.normalizeChunk(&c)
		batch = append(batch, c)

		if len(batch) >= p.cfg.BatchSize {
			if err := flush(); err != nil {
				return total, err
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return total, fmt.Errorf("read: %w", err)
	}

	if err := flush(); err != nil {
		return total, err
	}
	return total, nil
}

// ingestBatch embeds one batch of chunks and upserts it into the index.
func (p *Pipeline) ingestBatch(ctx context.Context, batch []rag.Chunk) error {
	texts := make([]string, len(batch))
	for i, c := range batch {
		texts[i] = c.Text
	}

	embeddings, err := p.embedder.Embed(ctx, texts)
	if err != nil {
		return fmt.Errorf("embedding failed: %w", err)
	}
	if len(embeddings) != len(batch) {
		return fmt.Errorf("embedder returned %d vectors for %d chunks", len(embeddings), len(batch))
	}

	if err := p.index.Upsert(ctx, batch, embeddings); err != nil {
		return fmt.Errorf("upsert failed: %w", err)
	}
	return nil
}

// normalizeChunk fills defaulted fields and applies redaction so every chunk
// entering the index satisfies the payload contract.
func (p *Pipeline) normalizeChunk(c *rag.Chunk) {
	if c.Source == "" {
		c.Source = InferSource(c.URL)
		if c.Source == "" {
			c.Source = p.cfg.DefaultSource
		}
	}
	if c.Author == "" {
		c.Author = "unknown"
	}
	if c.Metadata == nil {
		c.Metadata = map[string]string{}
	}
	if c.ID == "" {
		c.ID = chunkID(c.URL, c.ChunkIndex)
	}
	if p.cfg.Redact {
		c.Text = p.redactor.Redact(c.Text)
	}
}

// chunkID generates a deterministic ID for a chunk based on its source URL
// and chunk index.
func chunkID(sourceURL string, index int) string {
	h := sha256.Sum256([]byte(fmt.Sprintf("%s#%d", sourceURL, index)))
	return fmt.Sprintf("%x", h[:16])
}
