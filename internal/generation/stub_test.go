package generation

import (
	"context"
	"strings"
	"testing"

	"github.com/spectrumops/spectrumgpt/internal/rag"
)

func Test_Stub_EmptyResults(t *testing.T) {
	t.Parallel()
	got, err := NewStub().Answer(context.Background(), "anything", nil, nil)
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if got != NoAnswerMessage {
		t.Errorf("Answer = %q, want the no-answer fallback", got)
	}
}

func Test_Stub_CitesTopResult(t *testing.T) {
	t.Parallel()
	results := []rag.RankedResult{
		mkRanked("d1", "Popover", "", "https://docs.example.com/popover", "text"),
		mkRanked("d2", "Tooltip", "", "https://docs.example.com/tooltip", "text"),
	}

	got, err := NewStub().Answer(context.Background(), "q", nil, results)
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if !strings.Contains(got, "[Popover](https://docs.example.com/popover)") {
		t.Errorf("answer does not cite the top result: %q", got)
	}
	if strings.Contains(got, "Tooltip") {
		t.Errorf("stub should cite only the top result: %q", got)
	}
}

func Test_Stub_UntitledResult(t *testing.T) {
	t.Parallel()
	got, err := NewStub().Answer(context.Background(), "q", nil, []rag.RankedResult{
		mkRanked("s1", "", "", "https://example.com", "text"),
	})
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if !strings.Contains(got, "documentation") {
		t.Errorf("untitled result should fall back to a generic label: %q", got)
	}
}

func Test_NewFromEnv_StubMode(t *testing.T) {
	t.Setenv("GENERATION_MODE", "stub")

	g, err := NewFromEnv(context.Background(), 0)
	if err != nil {
		t.Fatalf("NewFromEnv: %v", err)
	}
	if g.Name() != "stub" {
		t.Errorf("Name() = %q, want stub", g.Name())
	}
}

func Test_NewFromEnv_UnknownMode(t *testing.T) {
	t.Setenv("GENERATION_MODE", "oracle")

	if _, err := NewFromEnv(context.Background(), 0); err == nil {
		t.Error("want error for unknown GENERATION_MODE")
	}
}
