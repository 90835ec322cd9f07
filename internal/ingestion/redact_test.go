package ingestion

import (
	"strings"
	"testing"
)

func Test_Redact_Email(t *testing.T) {
	t.Parallel()
	r := NewRedactor()
	got := r.Redact("ping alice@example.com about it")
	if strings.Contains(got, "alice@example.com") {
		t.Errorf("email survived: %q", got)
	}
	if !strings.Contains(got, "EMAIL_") {
		t.Errorf("no email label: %q", got)
	}
}

func Test_Redact_IPAddress(t *testing.T) {
	t.Parallel()
	r := NewRedactor()
	got := r.Redact("the box at 10.1.2.3 is flapping")
	if strings.Contains(got, "10.1.2.3") {
		t.Errorf("IP survived: %q", got)
	}
	if !strings.Contains(got, "IP_") {
		t.Errorf("no IP label: %q", got)
	}
}

func Test_Redact_SlackMention(t *testing.T) {
	t.Parallel()
	r := NewRedactor()
	got := r.Redact("<@U04AB12CD> can you check?")
	if strings.Contains(got, "U04AB12CD") {
		t.Errorf("mention survived: %q", got)
	}
	if !strings.Contains(got, "USER_") {
		t.Errorf("no user label: %q", got)
	}
}

func Test_Redact_LongToken(t *testing.T) {
	t.Parallel()
	r := NewRedactor()
	token := strings.Repeat("a1B2", 10) // 40 alphanumeric chars
	got := r.Redact("key is " + token + " keep it safe")
	if strings.Contains(got, token) {
		t.Errorf("token survived: %q", got)
	}
	if !strings.Contains(got, "TOKEN_") {
		t.Errorf("no token label: %q", got)
	}
}

// Test_Redact_Stable: the same value always maps to the same label, so
// repeated mentions stay correlatable across chunks.
func Test_Redact_Stable(t *testing.T) {
	t.Parallel()
	r := NewRedactor()
	a := r.Redact("alice@example.com")
	b := r.Redact("mail alice@example.com again")
	label := strings.TrimSpace(a)
	if !strings.Contains(b, label) {
		t.Errorf("labels differ: %q vs %q", a, b)
	}
}

func Test_Redact_PlainTextUntouched(t *testing.T) {
	t.Parallel()
	r := NewRedactor()
	in := "the popover opens above the trigger element"
	if got := r.Redact(in); got != in {
		t.Errorf("clean text modified: %q", got)
	}
}
