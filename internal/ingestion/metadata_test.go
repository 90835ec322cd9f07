package ingestion

import (
	"testing"

	"github.com/spectrumops/spectrumgpt/internal/rag"
)

func Test_InferSource(t *testing.T) {
	t.Parallel()

	tests := []struct {
		url  string
		want string
	}{
		{"slack://C04AB12CD/1699372845.003200", rag.SourceChat},
		{"https://spectrumops.slack.com/archives/C04AB12CD/p1699372845", rag.SourceChat},
		{"https://github.com/spectrumops/spectrum-web-components/blob/main/README.md", rag.SourceCode},
		{"https://spectrumops.github.io/components/", rag.SourceCode},
		{"https://docs.spectrum.example.com/components/popover", rag.SourceDocs},
		{"https://spectrum.example.design/page/popover/", rag.SourceDocs},
		{"https://random.example.com/blog/post", ""},
		{"", ""},
		{"://not a url", ""},
	}

	for _, tt := range tests {
		if got := InferSource(tt.url); got != tt.want {
			t.Errorf("InferSource(%q) = %q, want %q", tt.url, got, tt.want)
		}
	}
}
