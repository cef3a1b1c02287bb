package logutil

import (
	"net/http"
	"strings"
	"testing"

	"pgregory.net/rapid"
)

func TestIsSensitiveLogField(t *testing.T) {
	t.Parallel()
	sensitive := []string{"Authorization", "X-Api-Key", "Set-Cookie", "password", "Confirm Password", "session_token", "client-secret"}
	for _, key := range sensitive {
		if !IsSensitiveLogField(key) {
			t.Fatalf("expected %q to be sensitive", key)
		}
	}
	plain := []string{"Full Name", "Email", "Content-Type", "Phone Number"}
	for _, key := range plain {
		if IsSensitiveLogField(key) {
			t.Fatalf("expected %q to be non-sensitive", key)
		}
	}
}

func testRedactValue_ForceAlwaysRedacts(t *rapid.T) {
	field := rapid.StringMatching(`[A-Za-z ]{0,20}`).Draw(t, "field")
	value := rapid.StringMatching(`[A-Za-z0-9@.]{1,30}`).Draw(t, "value")

	if got := RedactValue(field, value, true); got != Redacted {
		t.Fatalf("forced redaction leaked value: %q", got)
	}
	if got := RedactValue("", "", true); got != "" {
		t.Fatalf("empty value should stay empty, got %q", got)
	}
}

func TestRedactValue_ForceAlwaysRedacts(t *testing.T) {
	t.Parallel()
	rapid.Check(t, testRedactValue_ForceAlwaysRedacts)
}

func TestRedactValue_ByField(t *testing.T) {
	t.Parallel()
	if got := RedactValue("Password", "Admin@123", false); got != Redacted {
		t.Fatalf("password value not redacted: %q", got)
	}
	if got := RedactValue("Full Name", "Dr. Test", false); got != "Dr. Test" {
		t.Fatalf("plain value changed: %q", got)
	}
}

func TestFormatHeadersForLog_RedactsAndSorts(t *testing.T) {
	t.Parallel()
	h := http.Header{}
	h.Set("Set-Cookie", "sid=abc")
	h.Set("Content-Type", "text/html")

	got := FormatHeadersForLog(h)
	if strings.Contains(got, "sid=abc") {
		t.Fatalf("cookie leaked: %s", got)
	}
	if !strings.HasPrefix(got, "content-type=") {
		t.Fatalf("headers not sorted: %s", got)
	}
	if FormatHeadersForLog(nil) != "{}" {
		t.Fatal("empty headers should format as {}")
	}
}

func testTruncateForLog_Bounded(t *rapid.T) {
	value := rapid.StringMatching(`[a-z \n]{0,200}`).Draw(t, "value")
	limit := rapid.IntRange(1, 50).Draw(t, "limit")

	got := TruncateForLog(value, limit)
	if strings.Contains(got, "\n") {
		t.Fatalf("preview contains raw newline: %q", got)
	}
	if len(got) > limit+len("... [truncated]") {
		t.Fatalf("preview too long: len=%d limit=%d", len(got), limit)
	}
}

func TestTruncateForLog_Bounded(t *testing.T) {
	t.Parallel()
	rapid.Check(t, testTruncateForLog_Bounded)
}
