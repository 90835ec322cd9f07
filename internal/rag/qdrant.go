package rag

import (
	"context"
	"fmt"
	"hash/fnv"

	"github.com/qdrant/go-client/qdrant"
)

// QdrantConfig holds connection parameters for a Qdrant vector index.
type QdrantConfig struct {
	// Host is the Qdrant server hostname (default: localhost).
	Host string

	// Port is the Qdrant gRPC port (default: 6334).
	Port int

	// Collection is the Qdrant collection name to use.
	Collection string

	// VectorSize is the dimensionality of the embeddings stored in this collection.
	VectorSize uint64

	// APIKey is the optional Qdrant API key for authenticated clusters.
	APIKey string

	// UseTLS enables TLS for the gRPC connection.
	UseTLS bool
}

// QdrantIndex implements VectorIndex backed by a Qdrant instance.
type QdrantIndex struct {
	// client is the underlying Qdrant gRPC client.
	client *qdrant.Client

	// cfg holds the resolved configuration for this index.
	cfg *QdrantConfig
}

// NewQdrantIndex creates a QdrantIndex, ensuring the target collection exists
// (creating it with cosine distance if necessary).
func NewQdrantIndex(ctx context.Context, cfg *QdrantConfig) (*QdrantIndex, error) {
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.Port == 0 {
		cfg.Port = 6334
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant: failed to create client: %w", err)
	}

	idx := &QdrantIndex{client: client, cfg: cfg}
	if err := idx.ensureCollection(ctx); err != nil {
		return nil, err
	}

	return idx, nil
}

// Client exposes the underlying gRPC client for health probes.
func (s *QdrantIndex) Client() *qdrant.Client { return s.client }

// ensureCollection creates the Qdrant collection if it does not already exist.
func (s *QdrantIndex) ensureCollection(ctx context.Context) error {
	exists, err := s.client.CollectionExists(ctx, s.cfg.Collection)
	if err != nil {
		return fmt.Errorf("qdrant: failed to check collection existence: %w", err)
	}
	if exists {
		return nil
	}

	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: s.cfg.Collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     s.cfg.VectorSize,
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("qdrant: failed to create collection %q: %w", s.cfg.Collection, err)
	}

	return nil
}

// Upsert stores or replaces a batch of chunks with their pre-computed
// embeddings. Updates are full replacements keyed by the chunk's
// content-derived ID, matching the retrieval data model.
func (s *QdrantIndex) Upsert(ctx context.Context, chunks []Chunk, embeddings [][]float32) error {
	if len(chunks) != len(embeddings) {
		return fmt.Errorf("qdrant: %d chunks but %d embeddings", len(chunks), len(embeddings))
	}

	points := make([]*qdrant.PointStruct, 0, len(chunks))
	for i, c := range chunks {
		points = append(points, &qdrant.PointStruct{
			Id:      pointID(c.ID),
			Vectors: qdrant.NewVectors(embeddings[i]...),
			Payload: payloadFromChunk(c),
		})
	}

	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.cfg.Collection,
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("qdrant: upsert failed: %w", err)
	}

	return nil
}

// Search performs a cosine similarity search and returns up to topK
// candidates, best first. Payloads are decoded into Chunk records at this
// boundary so nothing downstream handles raw payload maps.
func (s *QdrantIndex) Search(ctx context.Context, queryEmbedding []float32, topK int) ([]Candidate, error) {
	limit := uint64(topK)
	results, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: s.cfg.Collection,
		Query:          qdrant.NewQuery(queryEmbedding...),
		Limit:          &limit,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant: search failed: %w", err)
	}

	candidates := make([]Candidate, 0, len(results))
	for _, r := range results {
		candidates = append(candidates, Candidate{
			Chunk:       chunkFromPayload(r.Payload),
			VectorScore: float64(r.Score),
		})
	}

	return candidates, nil
}

// Delete removes chunks from the collection by their IDs.
func (s *QdrantIndex) Delete(ctx context.Context, ids []string) error {
	pointIDs := make([]*qdrant.PointId, 0, len(ids))
	for _, id := range ids {
		pointIDs = append(pointIDs, pointID(id))
	}

	_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: s.cfg.Collection,
		Points:         qdrant.NewPointsSelector(pointIDs...),
	})
	if err != nil {
		return fmt.Errorf("qdrant: delete failed: %w", err)
	}

	return nil
}

// Close closes the underlying Qdrant gRPC connection.
func (s *QdrantIndex) Close() error {
	return s.client.Close()
}

// pointID derives the numeric Qdrant point ID from the chunk's string ID.
// Qdrant point IDs must be UUIDs or integers; chunk IDs are content-derived
// hex strings, so they are hashed to a stable uint64 and the original string
// travels in the payload.
func pointID(chunkID string) *qdrant.PointId {
	h := fnv.New64a()
	h.Write([]byte(chunkID))
	return qdrant.NewIDNum(h.Sum64())
}

// payloadFromChunk encodes a Chunk into the Qdrant payload wire format: one
// field per Chunk attribute, with free-form metadata as a nested map.
func payloadFromChunk(c Chunk) map[string]*qdrant.Value {
	meta := make(map[string]any, len(c.Metadata))
	for k, v := range c.Metadata {
		meta[k] = v
	}

	return qdrant.NewValueMap(map[string]any{
		"id":           c.ID,
		"source":       c.Source,
		"url":          c.URL,
		"title":        c.Title,
		"heading_path": c.HeadingPath,
		"chunk_text":   c.Text,
		"chunk_index":  int64(c.ChunkIndex),
		"type":         c.Type,
		"timestamp":    c.Timestamp,
		"author":       c.Author,
		"metadata":     meta,
	})
}

// chunkFromPayload decodes a Qdrant payload into a Chunk, tolerating missing
// optional fields: heading_path defaults to empty, author to "unknown", and
// metadata to an empty map. This is the single place payload shape is
// interpreted.
func chunkFromPayload(p map[string]*qdrant.Value) Chunk {
	c := Chunk{
		Author:   "unknown",
		Metadata: map[string]string{},
	}
	if p == nil {
		return c
	}

	if v, ok := p["id"]; ok {
		c.ID = v.GetStringValue()
	}
	if v, ok := p["source"]; ok {
		c.Source = v.GetStringValue()
	}
	if v, ok := p["url"]; ok {
		c.URL = v.GetStringValue()
	}
	if v, ok := p["title"]; ok {
		c.Title = v.GetStringValue()
	}
	if v, ok := p["heading_path"]; ok {
		c.HeadingPath = v.GetStringValue()
	}
	if v, ok := p["chunk_text"]; ok {
		c.Text = v.GetStringValue()
	}
	if v, ok := p["chunk_index"]; ok {
		c.ChunkIndex = int(v.GetIntegerValue())
	}
	if v, ok := p["type"]; ok {
		c.Type = v.GetStringValue()
	}
	if v, ok := p["timestamp"]; ok {
		c.Timestamp = v.GetStringValue()
	}
	if v, ok := p["author"]; ok {
		if a := v.GetStringValue(); a != "" {
			c.Author = a
		}
	}
	if v, ok := p["metadata"]; ok {
		if s := v.GetStructValue(); s != nil {
			for k, mv := range s.GetFields() {
				c.Metadata[k] = mv.GetStringValue()
			}
		}
	}

	return c
}
