package ingestion

import (
	"net/url"
	"strings"

	"github.com/spectrumops/spectrumgpt/internal/rag"
)

// InferSource inspects a chunk's URL and returns the best-effort source tag
// for it. Explicit record values take precedence over inferred ones — this is
// the fallback when a record carries no source field.
//
// Recognised URL patterns:
//
//	slack://{channel}/{thread}          → slack
//	*.slack.com/...                     → slack
//	github.com/... / *.github.io/...    → github
//	docs hosts (docs.*, *.design)       → swc_docs
//
// Anything else returns the empty string so the caller can apply its own
// default.
func InferSource(rawURL string) string {
	if rawURL == "" {
		return ""
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}

	if strings.EqualFold(parsed.Scheme, "slack") {
		return rag.SourceChat
	}

	host := strings.ToLower(parsed.Hostname())
	switch {
	case host == "slack.com" || strings.HasSuffix(host, ".slack.com"):
		return rag.SourceChat
	case host == "github.com" || strings.HasSuffix(host, ".github.io"):
		return rag.SourceCode
	case strings.HasPrefix(host, "docs.") || strings.HasSuffix(host, ".design"):
		return rag.SourceDocs
	}

	return ""
}
