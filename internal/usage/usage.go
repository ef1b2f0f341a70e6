// Package usage records per-turn token accounting. Records are write-only
// observability output; the chat pipeline never reads them back.
package usage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// DefaultFile is the usage log file name inside the data directory.
const DefaultFile = "token_log.txt"

// Record is the token accounting for one completed turn.
type Record struct {
	SessionID       string
	InputTokens     int
	RetrievedTokens int
	OutputTokens    int
	CreatedAt       time.Time
}

// Total is the sum of input, retrieved and output tokens.
func (r Record) Total() int {
	return r.InputTokens + r.RetrievedTokens + r.OutputTokens
}

// String renders the record as one usage log line.
func (r Record) String() string {
	return fmt.Sprintf("Input Tokens: %d, Retrieved Tokens: %d, Full Output Tokens: %d, Total Tokens: %d",
		r.InputTokens, r.RetrievedTokens, r.OutputTokens, r.Total())
}

// Recorder accepts usage records.
type Recorder interface {
	Record(ctx context.Context, r Record) error
}

// FileLog appends one line per record to a text file.
type FileLog struct {
	path string
	mu   sync.Mutex
}

func NewFileLog(path string) *FileLog {
	return &FileLog{path: path}
}

func (l *FileLog) Path() string { return l.path }

func (l *FileLog) Record(ctx context.Context, r Record) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if dir := filepath.Dir(l.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create usage log directory: %w", err)
		}
	}

	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644) // #nosec G304
	if err != nil {
		return fmt.Errorf("failed to open usage log: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(r.String() + "\n"); err != nil {
		return fmt.Errorf("failed to write usage log: %w", err)
	}
	return nil
}

// Multi fans a record out to every recorder. All recorders are attempted;
// their errors are joined.
type Multi []Recorder

func (m Multi) Record(ctx context.Context, r Record) error {
	var errs []error
	for _, rec := range m {
		if rec == nil {
			continue
		}
		if err := rec.Record(ctx, r); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Summary aggregates recorded usage.
type Summary struct {
	Turns           int
	InputTokens     int
	RetrievedTokens int
	OutputTokens    int
}

func (s Summary) Total() int {
	return s.InputTokens + s.RetrievedTokens + s.OutputTokens
}

// Add folds r into the summary.
func (s *Summary) Add(r Record) {
	s.Turns++
	s.InputTokens += r.InputTokens
	s.RetrievedTokens += r.RetrievedTokens
	s.OutputTokens += r.OutputTokens
}
