package session

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/felixgeelhaar/persona/internal/event"
	"github.com/felixgeelhaar/persona/internal/ingest"
	"github.com/felixgeelhaar/persona/internal/store"
)

// ImportResult describes a successful ingestion.
type ImportResult struct {
	Name   string
	Format ingest.Format
	Chunks int
	Hash   string
}

// ImportFile ingests a local file and replaces the knowledge store with its
// chunks. On any failure the existing store is untouched.
func (s *Session) ImportFile(ctx context.Context, path string) (ImportResult, error) {
	name := filepath.Base(path)
	s.bus.PublishWithData(event.IngestStarted, s.id, map[string]any{"source": name})

	size, err := fileSize(path)
	if err != nil {
		return ImportResult{}, s.importFailed(name, err)
	}
	if v := s.guard.Check(path, size); v != nil {
		return ImportResult{}, s.importFailed(name, fmt.Errorf("%w: %v", ErrImportRejected, v))
	}

	format, err := ingest.FormatFromName(path)
	if err != nil {
		return ImportResult{}, s.importFailed(name, err)
	}

	data, err := os.ReadFile(path) // #nosec G304
	if err != nil {
		return ImportResult{}, s.importFailed(name, err)
	}

	return s.ingest(ctx, ingest.Source{Name: name, Format: format, Data: data}, string(format))
}

// ImportURL fetches a web page, extracts its text and replaces the knowledge
// store with its chunks.
func (s *Session) ImportURL(ctx context.Context, url string) (ImportResult, error) {
	s.bus.PublishWithData(event.IngestStarted, s.id, map[string]any{"source": url})

	if s.fetcher == nil {
		return ImportResult{}, s.importFailed(url, errors.New("web import is not configured"))
	}
	page, err := s.fetcher.Fetch(ctx, url)
	if err != nil {
		return ImportResult{}, s.importFailed(url, err)
	}

	return s.ingest(ctx, ingest.Source{Name: url, Format: ingest.FormatHTML, Data: page.Body}, "url")
}

func (s *Session) ingest(ctx context.Context, src ingest.Source, kind string) (ImportResult, error) {
	doc, err := s.ingestor.Ingest(ctx, src)
	if err != nil {
		return ImportResult{}, s.importFailed(src.Name, err)
	}

	chunks := s.chunker.Split(doc.Text)
	if len(chunks) == 0 {
		return ImportResult{}, s.importFailed(src.Name, ingest.ErrEmptyContent)
	}

	if err := s.knowledge.Build(ctx, chunks); err != nil {
		return ImportResult{}, s.importFailed(src.Name, err)
	}

	res := ImportResult{Name: src.Name, Format: doc.Format, Chunks: len(chunks), Hash: doc.Hash}

	if s.ledger != nil {
		if err := s.ledger.AddSource(ctx, &store.Source{
			SessionID: s.id,
			Name:      src.Name,
			Kind:      kind,
			Digest:    doc.Hash,
			Chunks:    len(chunks),
		}); err != nil {
			s.obs.Log().Warn().Str("source", src.Name).Err(err).Msg("failed to record source")
		}
	}

	s.obs.Log().Info().Str("session", s.id).Str("source", src.Name).Int("chunks", len(chunks)).Msg("source imported")
	s.bus.PublishWithData(event.IngestCompleted, s.id, map[string]any{
		"source": src.Name,
		"chunks": len(chunks),
		"hash":   doc.Hash,
	})
	return res, nil
}

func (s *Session) importFailed(name string, err error) error {
	s.obs.Log().Error().Str("session", s.id).Str("source", name).Err(err).Msg("import failed")
	s.bus.PublishWithData(event.IngestFailed, s.id, map[string]any{
		"source": name,
		"error":  err.Error(),
	})
	return err
}

// fileSize returns the size of path, failing for directories.
func fileSize(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	if info.IsDir() {
		return 0, fmt.Errorf("%s is a directory", filepath.Base(path))
	}
	return info.Size(), nil
}
