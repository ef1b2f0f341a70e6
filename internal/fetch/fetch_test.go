package fetch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
	"unicode/utf8"
)

func newTestFetcher(opts Options) *Fetcher {
	if opts.MinInterval == 0 {
		opts.MinInterval = time.Millisecond
	}
	f := New(opts, nil)
	f.validate = func(string) bool { return true }
	return f
}

func TestFetch_Success(t *testing.T) {
	var got http.Header
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte("<p>The sky is blue.</p>"))
	}))
	defer server.Close()

	f := newTestFetcher(Options{})
	page, err := f.Fetch(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if string(page.Body) != "<p>The sky is blue.</p>" {
		t.Errorf("Unexpected body: %q", page.Body)
	}
	if page.ContentType != "text/html" {
		t.Errorf("Expected text/html, got %q", page.ContentType)
	}
	if len(page.Hash) != 64 {
		t.Errorf("Expected sha256 hex hash, got %q", page.Hash)
	}

	headers := map[string]string{
		"User-Agent":                DefaultUserAgent,
		"Accept-Language":           "en-US,en;q=0.5",
		"Dnt":                       "1",
		"Upgrade-Insecure-Requests": "1",
	}
	for k, v := range headers {
		if got.Get(k) != v {
			t.Errorf("Expected header %s=%q, got %q", k, v, got.Get(k))
		}
	}
}

func TestFetch_Non200(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer server.Close()

	f := newTestFetcher(Options{})
	page, err := f.Fetch(context.Background(), server.URL)
	if !errors.Is(err, ErrFetchFailed) {
		t.Errorf("Expected ErrFetchFailed, got %v", err)
	}
	if page.Body != nil {
		t.Error("Expected no body on failure")
	}
}

func TestFetch_NoRedirects(t *testing.T) {
	var followed bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/target" {
			followed = true
			w.Write([]byte("target"))
			return
		}
		http.Redirect(w, r, "/target", http.StatusFound)
	}))
	defer server.Close()

	f := newTestFetcher(Options{})
	_, err := f.Fetch(context.Background(), server.URL+"/start")
	if !errors.Is(err, ErrFetchFailed) {
		t.Errorf("Expected ErrFetchFailed for redirect, got %v", err)
	}
	if followed {
		t.Error("Expected redirect not to be followed")
	}
}

func TestFetch_ContentLengthCap(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(strings.Repeat("a", 64)))
	}))
	defer server.Close()

	f := newTestFetcher(Options{MaxBytes: 16})
	_, err := f.Fetch(context.Background(), server.URL)
	if !errors.Is(err, ErrContentTooLarge) {
		t.Errorf("Expected ErrContentTooLarge, got %v", err)
	}
}

func TestFetch_TruncatesUndeclaredLength(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.(http.Flusher).Flush()
		w.Write([]byte(strings.Repeat("b", 64)))
	}))
	defer server.Close()

	f := newTestFetcher(Options{MaxBytes: 16})
	page, err := f.Fetch(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if len(page.Body) != 16 {
		t.Errorf("Expected body truncated to 16 bytes, got %d", len(page.Body))
	}
}

func TestFetch_TruncatesOnCharacterBoundary(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.(http.Flusher).Flush()
		w.Write([]byte("a" + strings.Repeat("é", 40)))
	}))
	defer server.Close()

	f := newTestFetcher(Options{MaxBytes: 16})
	page, err := f.Fetch(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if want := "a" + strings.Repeat("é", 7); string(page.Body) != want {
		t.Errorf("Expected %q, got %q", want, page.Body)
	}
	if !utf8.Valid(page.Body) {
		t.Error("Expected valid UTF-8 after truncation")
	}
}

func TestFetch_DecodesDeclaredCharset(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=iso-8859-1")
		w.Write([]byte("<p>Caf\xe9</p>"))
	}))
	defer server.Close()

	f := newTestFetcher(Options{})
	page, err := f.Fetch(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if string(page.Body) != "<p>Café</p>" {
		t.Errorf("Expected <p>Café</p>, got %q", page.Body)
	}
}

func TestTrimPartialRune(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"abc", "abc"},
		{"ab\xc3", "ab"},
		{"ab\xe2\x82", "ab"},
		{"ab€", "ab€"},
		{"\xf0\x9f\x98", ""},
	}
	for _, tt := range tests {
		if got := string(trimPartialRune([]byte(tt.in))); got != tt.want {
			t.Errorf("Expected %q, got %q", tt.want, got)
		}
	}
}

func TestFetch_UnsafeURL(t *testing.T) {
	f := New(Options{}, nil)

	for _, u := range []string{"ftp://example.com/file", "http://127.0.0.1/", "https://example.com/<x>"} {
		if _, err := f.Fetch(context.Background(), u); !errors.Is(err, ErrUnsafeURL) {
			t.Errorf("Expected ErrUnsafeURL for %s, got %v", u, err)
		}
	}
}

func TestFetch_MinInterval(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}))
	defer server.Close()

	f := newTestFetcher(Options{MinInterval: 100 * time.Millisecond})
	start := time.Now()
	for i := 0; i < 3; i++ {
		if _, err := f.Fetch(context.Background(), server.URL); err != nil {
			t.Fatalf("Fetch %d failed: %v", i, err)
		}
	}
	if elapsed := time.Since(start); elapsed < 180*time.Millisecond {
		t.Errorf("Expected consecutive fetches to be spaced, took %v", elapsed)
	}
}

func TestOptions_Defaults(t *testing.T) {
	o := Options{}.withDefaults()
	if o.MaxBytes != DefaultMaxBytes || o.ConnectTimeout != DefaultConnectTimeout ||
		o.ReadTimeout != DefaultReadTimeout || o.MinInterval != DefaultMinInterval {
		t.Errorf("Unexpected defaults: %+v", o)
	}
	if o.UserAgent != DefaultUserAgent {
		t.Errorf("Expected default user agent, got %q", o.UserAgent)
	}
}
