// Package ingest turns uploaded files and fetched pages into one normalized
// plaintext document.
package ingest

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/felixgeelhaar/persona/internal/observe"
	"github.com/felixgeelhaar/persona/internal/security"
	"github.com/ledongthuc/pdf"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported format")
	ErrEmptyContent      = errors.New("empty content")
	ErrDecode            = errors.New("decode error")
)

// Source is raw input with its declared format.
type Source struct {
	Name   string
	Format Format
	Data   []byte
}

// Document is the normalized text of one source.
type Document struct {
	Name   string
	Format Format
	Text   string
	Hash   string
}

type decodeFunc func(data []byte) (string, error)

// Ingestor normalizes sources. It never returns partial output: on error the
// Document is zero.
type Ingestor struct {
	obs       *observe.Observer
	maxLength int
	decoders  map[Format]decodeFunc
}

// New returns an Ingestor. maxLength caps every sanitized HTML fragment;
// non-positive uses security.DefaultMaxLength.
func New(obs *observe.Observer, maxLength int) *Ingestor {
	if obs == nil {
		obs = observe.Nop()
	}
	in := &Ingestor{obs: obs, maxLength: maxLength}
	in.decoders = map[Format]decodeFunc{
		FormatText: decodeLines,
		FormatCode: decodeLines,
		FormatPDF:  decodePDF,
		FormatCSV:  decodeCSV,
		FormatHTML: in.decodeHTML,
	}
	return in
}

func (in *Ingestor) Ingest(ctx context.Context, src Source) (Document, error) {
	_, span := in.obs.StartSpan(ctx, "Ingest")
	defer span.End()

	decode, ok := in.decoders[src.Format]
	if !ok {
		return Document{}, fmt.Errorf("%w: %q", ErrUnsupportedFormat, src.Format)
	}

	text, err := decode(src.Data)
	if err != nil {
		in.obs.Log().Error().Str("source", src.Name).Str("format", string(src.Format)).Err(err).Msg("failed to decode source")
		return Document{}, err
	}
	if strings.TrimSpace(text) == "" {
		return Document{}, fmt.Errorf("%w: %s", ErrEmptyContent, src.Name)
	}

	doc := Document{
		Name:   src.Name,
		Format: src.Format,
		Text:   text,
		Hash:   security.ContentHash(text),
	}
	in.obs.Log().Info().
		Str("source", src.Name).
		Str("format", string(src.Format)).
		Int("length", utf8.RuneCountInString(text)).
		Str("hash", doc.Hash).
		Msg("document normalized")
	return doc, nil
}

func decodeUTF8(data []byte) (string, error) {
	if !utf8.Valid(data) {
		return "", fmt.Errorf("%w: input is not valid UTF-8", ErrDecode)
	}
	return string(data), nil
}

// decodeLines keeps every line holding non-whitespace text, joined by "\n".
func decodeLines(data []byte) (string, error) {
	text, err := decodeUTF8(data)
	if err != nil {
		return "", err
	}
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	var kept []string
	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) != "" {
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, "\n"), nil
}

// decodeCSV drops rows whose fields are all blank and re-joins the rest with
// commas.
func decodeCSV(data []byte) (string, error) {
	text, err := decodeUTF8(data)
	if err != nil {
		return "", err
	}

	r := csv.NewReader(strings.NewReader(text))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	var rows []string
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrDecode, err)
		}
		blank := true
		for _, field := range record {
			if strings.TrimSpace(field) != "" {
				blank = false
				break
			}
		}
		if !blank {
			rows = append(rows, strings.Join(record, ","))
		}
	}
	return strings.Join(rows, "\n"), nil
}

// decodePDF extracts text page by page, skipping pages without text.
func decodePDF(data []byte) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("%w: malformed pdf: %v", ErrDecode, r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecode, err)
	}

	var pages []string
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		content, err := page.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("%w: page %d: %v", ErrDecode, i, err)
		}
		if strings.TrimSpace(content) == "" {
			continue
		}
		pages = append(pages, content)
	}
	return strings.Join(pages, "\n"), nil
}
