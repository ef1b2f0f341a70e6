// Package security validates and sanitizes externally sourced text before it
// enters the ingestion pipeline.
package security

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

// DefaultMaxLength is the character cap applied by SanitizeText.
const DefaultMaxLength = 500000

var (
	suspiciousURLChars = regexp.MustCompile(`[<>"'\x00-\x1F\x7F]`)
	dottedQuad         = regexp.MustCompile(`^(\d{1,3}\.){3}\d{1,3}$`)
	controlChars       = regexp.MustCompile(`[\x00-\x08\x0B\x0C\x0E-\x1F\x7F]`)
	javascriptScheme   = regexp.MustCompile(`(?i)javascript:`)
)

// ValidateURL reports whether raw is acceptable for a web import. Only http
// and https are allowed; URLs carrying control characters or markup quotes
// and URLs addressed to a bare IPv4 literal are refused.
func ValidateURL(raw string) bool {
	if suspiciousURLChars.MatchString(raw) {
		return false
	}
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	// A fully qualified name may end in a dot; "1.2.3.4." still resolves
	// to the literal address.
	host := strings.TrimSuffix(u.Hostname(), ".")
	if host == "" {
		return false
	}
	if dottedQuad.MatchString(host) {
		return false
	}
	return true
}

// SanitizeText strips control characters, markup and javascript: schemes from
// text and truncates the result to maxLength characters. A non-positive
// maxLength uses DefaultMaxLength. The function is idempotent.
func SanitizeText(text string, maxLength int) string {
	if maxLength <= 0 {
		maxLength = DefaultMaxLength
	}

	s := controlChars.ReplaceAllString(text, "")
	s = stripTags(s)
	s = strings.NewReplacer("<", "", ">", "").Replace(s)
	for javascriptScheme.MatchString(s) {
		s = javascriptScheme.ReplaceAllString(s, "")
	}
	return truncate(s, maxLength)
}

// ContentHash returns the hex SHA-256 digest of content. It is meant for
// duplicate and signature logging only.
func ContentHash(content string) string {
	h := sha256.Sum256([]byte(content))
	return hex.EncodeToString(h[:])
}

// stripTags keeps the raw bytes of every text token and drops tags, comments
// and doctypes. Raw bytes are kept so entities are not decoded back into
// markup.
func stripTags(s string) string {
	if !strings.Contains(s, "<") {
		return s
	}
	var sb strings.Builder
	z := html.NewTokenizer(strings.NewReader(s))
	for {
		switch z.Next() {
		case html.ErrorToken:
			return sb.String()
		case html.TextToken:
			sb.Write(z.Raw())
		}
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
