package security

import (
	"strings"
	"testing"
)

func TestValidateURL(t *testing.T) {
	testCases := []struct {
		name string
		url  string
		want bool
	}{
		{"https host", "https://wikipedia.org/x", true},
		{"http host with port", "http://example.com:8080/page?q=1", true},
		{"ftp scheme", "ftp://example.com/file", false},
		{"javascript scheme", "javascript:alert(1)", false},
		{"no scheme", "example.com/page", false},
		{"angle bracket", "https://example.com/<script>", false},
		{"double quote", `https://example.com/"x"`, false},
		{"single quote", "https://example.com/'x'", false},
		{"control char", "https://example.com/\x01", false},
		{"delete char", "https://example.com/\x7f", false},
		{"bare ipv4", "http://192.168.0.1/admin", false},
		{"bare ipv4 with port", "http://10.0.0.1:8080/", false},
		{"bare ipv4 trailing dot", "http://1.2.3.4./", false},
		{"bare ipv4 trailing dot with port", "http://1.2.3.4.:80/x", false},
		{"fqdn trailing dot", "https://example.com./page", true},
		{"empty host", "https:///path", false},
		{"empty", "", false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ValidateURL(tc.url); got != tc.want {
				t.Errorf("ValidateURL(%q) = %v, expected %v", tc.url, got, tc.want)
			}
		})
	}
}

func TestValidateURL_RejectsAnyLessThan(t *testing.T) {
	for _, u := range []string{"https://a.org/<", "http://<b.org", "https://c.org/?q=<x"} {
		if ValidateURL(u) {
			t.Errorf("expected %q to be rejected", u)
		}
	}
}

func TestSanitizeText(t *testing.T) {
	testCases := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "The sky is blue.", "The sky is blue."},
		{"keeps newlines and tabs", "a\tb\nc\r\nd", "a\tb\nc\r\nd"},
		{"control chars", "a\x00b\x08c\x0bd\x0ce\x1ff\x7fg", "abcdefg"},
		{"tags", "<p>Hello <b>world</b></p>", "Hello world"},
		{"attributes", `<a href="http://x" onclick="evil()">link</a>`, "link"},
		{"comment", "before<!-- hidden -->after", "beforeafter"},
		{"javascript", "click JavaScript:alert(1) now", "click alert(1) now"},
		{"nested javascript", "javajavascript:script:go", "go"},
		{"stray brackets", "1 < 2 > 0", "1  2  0"},
		{"entities kept raw", "&lt;b&gt; &amp;", "&lt;b&gt; &amp;"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := SanitizeText(tc.in, 0); got != tc.want {
				t.Errorf("expected %q, got %q", tc.want, got)
			}
		})
	}
}

func TestSanitizeText_Properties(t *testing.T) {
	inputs := []string{
		"",
		"plain text",
		"<script>alert('x')</script>text",
		"<<p>>double<</p>>",
		"java<b>script:</b>alert(1)",
		"<img src=x onerror=javascript:alert(1)>",
		"JAVASCRIPT:JaVaScRiPt:",
		"tail <unterminated",
		"\x00<div>\x1b[31mred\x7f</div>",
		"über <em>naïve</em> café",
	}

	for _, in := range inputs {
		once := SanitizeText(in, 0)
		twice := SanitizeText(once, 0)
		if once != twice {
			t.Errorf("not idempotent for %q: %q then %q", in, once, twice)
		}
		if strings.ContainsAny(once, "<>") {
			t.Errorf("output for %q still contains tag delimiters: %q", in, once)
		}
		if strings.Contains(strings.ToLower(once), "javascript:") {
			t.Errorf("output for %q still contains javascript: %q", in, once)
		}
	}
}

func TestSanitizeText_Truncates(t *testing.T) {
	got := SanitizeText("héllo wörld", 5)
	if got != "héllo" {
		t.Errorf("expected %q, got %q", "héllo", got)
	}

	long := strings.Repeat("a", DefaultMaxLength+10)
	if n := len(SanitizeText(long, 0)); n != DefaultMaxLength {
		t.Errorf("expected default cap %d, got %d", DefaultMaxLength, n)
	}
}

func TestContentHash(t *testing.T) {
	a := ContentHash("same input")
	b := ContentHash("same input")
	c := ContentHash("other input")

	if a != b {
		t.Error("expected identical digests for identical input")
	}
	if a == c {
		t.Error("expected different digests for different input")
	}
	if len(a) != 64 {
		t.Errorf("expected 64 hex chars, got %d", len(a))
	}
	if ContentHash("") != "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855" {
		t.Error("unexpected digest for empty input")
	}
}
