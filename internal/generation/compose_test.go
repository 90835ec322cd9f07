package generation

import (
	"strings"
	"testing"

	"github.com/cloudwego/eino/schema"

	"github.com/spectrumops/spectrumgpt/internal/rag"
)

func mkRanked(id, title, heading, url, text string) rag.RankedResult {
	return rag.RankedResult{
		Candidate: rag.Candidate{
			Chunk: rag.Chunk{ID: id, Title: title, HeadingPath: heading, URL: url, Text: text},
		},
	}
}

func Test_ComposeMessages_Shape(t *testing.T) {
	t.Parallel()
	results := []rag.RankedResult{
		mkRanked("d1", "Popover", "Popover > Usage", "https://docs.example.com/popover", "Opens above the trigger."),
	}

	msgs, packed := composeMessages("how does the popover open?", nil, results, 0)

	if len(msgs) != 2 {
		t.Fatalf("want 2 messages, got %d", len(msgs))
	}
	if msgs[0].Role != "system" || msgs[1].Role != "user" {
		t.Errorf("roles = %s/%s, want system/user", msgs[0].Role, msgs[1].Role)
	}
	if msgs[1].Content != "how does the popover open?" {
		t.Errorf("user message = %q", msgs[1].Content)
	}
	if len(packed.IncludedIDs) != 1 || packed.IncludedIDs[0] != "d1" {
		t.Errorf("included IDs = %v, want [d1]", packed.IncludedIDs)
	}

	sys := msgs[0].Content
	for _, want := range []string{"[d1] Popover > Popover > Usage", "https://docs.example.com/popover", "Opens above the trigger."} {
		if !strings.Contains(sys, want) {
			t.Errorf("system prompt missing %q", want)
		}
	}
}

func Test_ComposeMessages_BudgetDropsOversized(t *testing.T) {
	t.Parallel()
	results := []rag.RankedResult{
		mkRanked("big", "Big", "", "", strings.Repeat("x", 100000)),
		mkRanked("small", "Small", "", "", "fits fine"),
	}

	// 10 tokens ≈ 40 chars: the oversized head is skipped, the small passage
	// still makes it in.
	msgs, packed := composeMessages("q", nil, results, 10)

	if len(packed.IncludedIDs) != 1 || packed.IncludedIDs[0] != "small" {
		t.Fatalf("included IDs = %v, want [small]", packed.IncludedIDs)
	}
	if strings.Contains(msgs[0].Content, strings.Repeat("x", 100)) {
		t.Error("oversized passage leaked into the prompt")
	}
}

func Test_ComposeMessages_HistoryBetweenSystemAndQuery(t *testing.T) {
	t.Parallel()
	results := []rag.RankedResult{
		mkRanked("d1", "Popover", "", "", "Opens above the trigger."),
	}
	history := []Turn{
		{Question: "what is a popover?", Answer: "A floating container anchored to a trigger."},
		{Question: "can it be modal?", Answer: "Yes, via the modal prop."},
	}

	msgs, _ := composeMessages("how do I dismiss it?", history, results, 0)

	if len(msgs) != 6 {
		t.Fatalf("want 6 messages (system + 2 turns + query), got %d", len(msgs))
	}
	wantRoles := []schema.RoleType{
		schema.System, schema.User, schema.Assistant, schema.User, schema.Assistant, schema.User,
	}
	for i, want := range wantRoles {
		if msgs[i].Role != want {
			t.Errorf("msgs[%d].Role = %s, want %s", i, msgs[i].Role, want)
		}
	}
	if msgs[1].Content != "what is a popover?" || msgs[2].Content != "A floating container anchored to a trigger." {
		t.Errorf("oldest turn not first: %q / %q", msgs[1].Content, msgs[2].Content)
	}
	if msgs[5].Content != "how do I dismiss it?" {
		t.Errorf("current question must come last, got %q", msgs[5].Content)
	}
}

func Test_ComposeMessages_HistoryTrimmedOldestFirst(t *testing.T) {
	t.Parallel()
	results := []rag.RankedResult{
		mkRanked("d1", "Popover", "", "", "Opens above the trigger."),
	}

	// Each turn costs ~2100 tokens, well past the history allowance, so only
	// the newest turn can survive trimming.
	bulky := strings.Repeat("w ", 4200)
	history := []Turn{
		{Question: "old question", Answer: bulky},
		{Question: "newest question", Answer: bulky},
	}

	msgs, _ := composeMessages("follow-up", history, results, 0)

	var kept []string
	for _, m := range msgs[1 : len(msgs)-1] {
		kept = append(kept, m.Content)
	}
	for _, c := range kept {
		if c == "old question" {
			t.Error("oldest turn should have been trimmed first")
		}
	}
	if len(msgs) >= 6 {
		t.Errorf("history not trimmed: %d messages", len(msgs))
	}
}

func Test_FormatContext_OmitsEmptyFields(t *testing.T) {
	t.Parallel()
	got := formatContext([]rag.RankedResult{mkRanked("s1", "Thread", "", "", "workaround discussion")})

	if strings.Contains(got, " > \n") || strings.Contains(got, "()") {
		t.Errorf("empty heading/url rendered: %q", got)
	}
	if !strings.HasPrefix(got, "[s1] Thread\n") {
		t.Errorf("block header = %q", got)
	}
}

func Test_FormatContext_SeparatesBlocks(t *testing.T) {
	t.Parallel()
	got := formatContext([]rag.RankedResult{
		mkRanked("a", "A", "", "", "first"),
		mkRanked("b", "B", "", "", "second"),
	})
	if strings.Count(got, "\n---\n") != 1 {
		t.Errorf("want one separator between two blocks, got %q", got)
	}
}
