// Package fetch downloads web pages for import under a fixed safety policy:
// validated URLs, no automatic redirects, bounded time and size, and a
// minimum spacing between consecutive requests.
package fetch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"
	"unicode/utf8"

	"github.com/felixgeelhaar/persona/internal/observe"
	"github.com/felixgeelhaar/persona/internal/security"
	"golang.org/x/net/html/charset"
	"golang.org/x/time/rate"
)

const (
	DefaultMaxBytes       = 10 * 1024 * 1024
	DefaultConnectTimeout = 5 * time.Second
	DefaultReadTimeout    = 10 * time.Second
	DefaultMinInterval    = time.Second
	DefaultUserAgent      = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"
)

var (
	ErrUnsafeURL       = errors.New("unsafe url")
	ErrContentTooLarge = errors.New("content too large")
	ErrFetchFailed     = errors.New("fetch failed")
)

// Options configures a Fetcher. Zero fields take the package defaults.
type Options struct {
	MaxBytes       int64
	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
	MinInterval    time.Duration
	UserAgent      string
}

func (o Options) withDefaults() Options {
	if o.MaxBytes <= 0 {
		o.MaxBytes = DefaultMaxBytes
	}
	if o.ConnectTimeout <= 0 {
		o.ConnectTimeout = DefaultConnectTimeout
	}
	if o.ReadTimeout <= 0 {
		o.ReadTimeout = DefaultReadTimeout
	}
	if o.MinInterval <= 0 {
		o.MinInterval = DefaultMinInterval
	}
	if o.UserAgent == "" {
		o.UserAgent = DefaultUserAgent
	}
	return o
}

// Page is a fetched response. Body is converted to UTF-8 from the declared or
// sniffed charset and never ends in a partial character.
type Page struct {
	URL         string
	ContentType string
	Body        []byte
	Hash        string
}

// Fetcher performs rate-limited, size-capped GET requests.
type Fetcher struct {
	client  *http.Client
	limiter *rate.Limiter
	opts    Options
	obs     *observe.Observer

	// validate is swapped in tests so loopback servers can be reached.
	validate func(string) bool
}

func New(opts Options, obs *observe.Observer) *Fetcher {
	opts = opts.withDefaults()
	if obs == nil {
		obs = observe.Nop()
	}

	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: opts.ConnectTimeout}).DialContext,
		TLSHandshakeTimeout:   opts.ConnectTimeout,
		ResponseHeaderTimeout: opts.ReadTimeout,
	}

	return &Fetcher{
		client: &http.Client{
			Transport: transport,
			Timeout:   opts.ConnectTimeout + opts.ReadTimeout,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		limiter:  rate.NewLimiter(rate.Every(opts.MinInterval), 1),
		opts:     opts,
		obs:      obs,
		validate: security.ValidateURL,
	}
}

// Fetch downloads url. Redirect responses are returned as failures rather
// than followed.
func (f *Fetcher) Fetch(ctx context.Context, url string) (Page, error) {
	ctx, span := f.obs.StartSpan(ctx, "Fetch")
	defer span.End()

	if !f.validate(url) {
		return Page{}, fmt.Errorf("%w: %s", ErrUnsafeURL, url)
	}

	if err := f.limiter.Wait(ctx); err != nil {
		return Page{}, fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Page{}, fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}
	req.Header.Set("User-Agent", f.opts.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")
	req.Header.Set("DNT", "1")
	req.Header.Set("Upgrade-Insecure-Requests", "1")

	resp, err := f.client.Do(req)
	if err != nil {
		f.obs.Log().Error().Str("url", url).Err(err).Msg("fetch request failed")
		return Page{}, fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		f.obs.Log().Warn().Str("url", url).Int("status", resp.StatusCode).Msg("fetch rejected non-200 response")
		return Page{}, fmt.Errorf("%w: status %d", ErrFetchFailed, resp.StatusCode)
	}

	if resp.ContentLength > f.opts.MaxBytes {
		return Page{}, fmt.Errorf("%w: %d bytes exceeds limit of %d", ErrContentTooLarge, resp.ContentLength, f.opts.MaxBytes)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, f.opts.MaxBytes))
	if err != nil {
		return Page{}, fmt.Errorf("%w: reading body: %v", ErrFetchFailed, err)
	}

	contentType := resp.Header.Get("Content-Type")
	body, err := toUTF8(raw, contentType, f.opts.MaxBytes)
	if err != nil {
		return Page{}, fmt.Errorf("%w: decoding body: %v", ErrFetchFailed, err)
	}

	page := Page{
		URL:         url,
		ContentType: contentType,
		Body:        body,
		Hash:        security.ContentHash(string(body)),
	}
	f.obs.Log().Info().Str("url", url).Int("bytes", len(body)).Str("hash", page.Hash).Msg("page fetched")
	return page, nil
}

// toUTF8 decodes raw using the charset from contentType or the document,
// caps the result at maxBytes and drops a trailing partial character.
func toUTF8(raw []byte, contentType string, maxBytes int64) ([]byte, error) {
	r, err := charset.NewReader(bytes.NewReader(raw), contentType)
	if err != nil {
		return nil, err
	}
	body, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	if int64(len(body)) > maxBytes {
		body = body[:maxBytes]
	}
	return trimPartialRune(body), nil
}

// trimPartialRune cuts an incomplete UTF-8 sequence off the end of b.
func trimPartialRune(b []byte) []byte {
	for i := len(b) - 1; i >= 0 && i >= len(b)-utf8.UTFMax; i-- {
		if utf8.RuneStart(b[i]) {
			if !utf8.FullRune(b[i:]) {
				return b[:i]
			}
			return b
		}
	}
	return b
}
