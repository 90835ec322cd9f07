package ingestion

import (
	"crypto/md5" //nolint:gosec // non-cryptographic: short stable replacement labels
	"fmt"
	"regexp"
	"strings"
)

// Redaction patterns, in the order they are applied. The token pattern runs
// last so earlier replacements are not re-matched.
var (
	emailPattern   = regexp.MustCompile(`[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}`)
	ipPattern      = regexp.MustCompile(`\b\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3}\b`)
	mentionPattern = regexp.MustCompile(`<@[A-Z0-9]+>`)
	// Long unbroken alphanumeric runs are treated as potential credentials.
	tokenPattern = regexp.MustCompile(`\b[A-Za-z0-9]{32,}\b`)
)

// Redactor scrubs PII and credential-shaped strings from chunk text before it
// is embedded and stored. Each match is replaced with a stable labelled hash
// so repeated mentions of the same value remain correlatable without
// exposing it.
type Redactor struct{}

// NewRedactor constructs a Redactor.
func NewRedactor() *Redactor {
	return &Redactor{}
}

// Redact returns text with emails, IP addresses, chat mentions, and
// credential-shaped tokens replaced by labelled hashes.
func (r *Redactor) Redact(text string) string {
	text = emailPattern.ReplaceAllStringFunc(text, func(m string) string {
		return "EMAIL_" + shortHash(m)
	})
	text = ipPattern.ReplaceAllStringFunc(text, func(m string) string {
		return "IP_" + shortHash(m)
	})
	text = mentionPattern.ReplaceAllStringFunc(text, func(m string) string {
		return "USER_" + shortHash(m)
	})
	text = tokenPattern.ReplaceAllStringFunc(text, func(m string) string {
		return "TOKEN_" + shortHash(m)
	})
	return text
}

// shortHash returns a short stable uppercase hash for the matched value.
func shortHash(s string) string {
	sum := md5.Sum([]byte(s)) //nolint:gosec // labelling only
	return strings.ToUpper(fmt.Sprintf("%x", sum[:4]))
}
