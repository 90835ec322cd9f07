package rag

import (
	"testing"

	"github.com/qdrant/go-client/qdrant"
)

func Test_PointID_Stable(t *testing.T) {
	t.Parallel()
	a := pointID("swc_docs:popover.md:3")
	b := pointID("swc_docs:popover.md:3")
	if a.GetNum() != b.GetNum() {
		t.Errorf("point ID not stable: %d vs %d", a.GetNum(), b.GetNum())
	}
	c := pointID("swc_docs:popover.md:4")
	if a.GetNum() == c.GetNum() {
		t.Error("distinct chunk IDs hashed to the same point ID")
	}
}

func Test_ChunkPayloadRoundTrip(t *testing.T) {
	t.Parallel()
	in := Chunk{
		ID:          "swc_docs:popover.md:3",
		Source:      SourceDocs,
		URL:         "https://docs.example.com/components/popover",
		Title:       "Popover",
		HeadingPath: "Popover > Usage",
		Text:        "The popover opens above its trigger element.",
		ChunkIndex:  3,
		Type:        "markdown",
		Timestamp:   "2025-11-03T10:00:00Z",
		Author:      "design-systems",
		Metadata:    map[string]string{"version": "4.2"},
	}

	out := chunkFromPayload(payloadFromChunk(in))

	if out.ID != in.ID || out.Source != in.Source || out.URL != in.URL {
		t.Errorf("identity fields mangled: %+v", out)
	}
	if out.Text != in.Text || out.HeadingPath != in.HeadingPath || out.ChunkIndex != in.ChunkIndex {
		t.Errorf("content fields mangled: %+v", out)
	}
	if out.Author != "design-systems" {
		t.Errorf("author = %q, want design-systems", out.Author)
	}
	if out.Metadata["version"] != "4.2" {
		t.Errorf("metadata = %v, want version=4.2", out.Metadata)
	}
}

// Test_ChunkFromPayload_Defaults: decoding a sparse payload fills the
// documented defaults rather than leaving zero values that downstream
// rendering would print verbatim.
func Test_ChunkFromPayload_Defaults(t *testing.T) {
	t.Parallel()
	p := qdrant.NewValueMap(map[string]any{
		"id":         "slack:C123:169",
		"source":     SourceChat,
		"chunk_text": "we worked around it by pinning the dependency",
	})

	c := chunkFromPayload(p)

	if c.Author != "unknown" {
		t.Errorf("author = %q, want unknown", c.Author)
	}
	if c.HeadingPath != "" {
		t.Errorf("heading_path = %q, want empty", c.HeadingPath)
	}
	if c.Metadata == nil || len(c.Metadata) != 0 {
		t.Errorf("metadata = %v, want empty non-nil map", c.Metadata)
	}
}

func Test_ChunkFromPayload_NilPayload(t *testing.T) {
	t.Parallel()
	c := chunkFromPayload(nil)
	if c.Author != "unknown" || c.Metadata == nil {
		t.Errorf("nil payload defaults wrong: %+v", c)
	}
}
