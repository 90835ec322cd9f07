package embedder

import (
	"log/slog"
	"os"
	"strings"
)

// chatModelPrefixes are model name prefixes that indicate a chat/completion
// model rather than an embedding model. Pointing EMBEDDING_MODEL at one of
// these is a common misconfiguration: the request usually succeeds but
// returns garbage vectors, so retrieval silently degrades.
var chatModelPrefixes = []string{
	"gpt-3", "gpt-4", "gpt-5", "o1", "o3", "o4",
	"llama", "mistral", "mixtral", "qwen", "phi", "gemma",
	"claude", "deepseek",
}

// Validate performs a pre-flight sanity check of the embedding configuration
// and logs warnings for likely misconfigurations. It never fails the startup:
// the definitive check is the first real Embed call.
func Validate(log *slog.Logger) {
	provider := os.Getenv("EMBEDDING_PROVIDER")
	if provider == "" {
		provider = getEnvOrDefault("MODEL_PROVIDER", "ollama")
		log.Debug("EMBEDDING_PROVIDER not set, inheriting chat provider",
			"provider", provider)
	}

	model := os.Getenv("EMBEDDING_MODEL")
	if model != "" && looksLikeChatModel(model) {
		log.Warn("EMBEDDING_MODEL looks like a chat model, not an embedding model — retrieval quality will suffer",
			"model", model,
			"hint", "use a dedicated embedding model such as nomic-embed-text or text-embedding-3-small")
	}

	if dims := os.Getenv("EMBEDDING_DIMENSIONS"); dims != "" {
		if getEnvInt("EMBEDDING_DIMENSIONS", 0) <= 0 {
			log.Warn("EMBEDDING_DIMENSIONS is not a positive integer, ignoring",
				"value", dims)
		}
	}
}

// looksLikeChatModel reports whether the model name matches a known
// chat-model family.
func looksLikeChatModel(model string) bool {
	name := strings.ToLower(model)
	// Strip a registry prefix like "library/llama3".
	if i := strings.LastIndex(name, "/"); i >= 0 {
		name = name[i+1:]
	}
	for _, p := range chatModelPrefixes {
		if strings.HasPrefix(name, p) {
			return true
		}
	}
	return false
}
