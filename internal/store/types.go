package store

import (
	"context"
	"time"

	"github.com/felixgeelhaar/persona/internal/usage"
)

// Session statuses.
const (
	StatusActive = "active"
	StatusClosed = "closed"
)

// Session is the record of one chat session. Transcripts are not stored.
type Session struct {
	ID          string
	PersonaName string
	Status      string
	Turns       int
	CreatedAt   time.Time
	UpdatedAt   time.Time
	Metadata    map[string]string
}

// Source is the ledger entry for one successful ingestion.
type Source struct {
	ID        string
	SessionID string
	Name      string
	Kind      string // file format or "url"
	Digest    string // content hash
	Chunks    int
	CreatedAt time.Time
}

// Storage defines the interface for persistence
type Storage interface {
	// Session Management
	CreateSession(ctx context.Context, session *Session) error
	GetSession(ctx context.Context, id string) (*Session, error)
	UpdateSession(ctx context.Context, session *Session) error

	// Source ledger
	AddSource(ctx context.Context, source *Source) error
	ListSources(ctx context.Context, sessionID string) ([]*Source, error)

	// Usage accounting
	Record(ctx context.Context, r usage.Record) error
	UsageSummary(ctx context.Context, sessionID string) (usage.Summary, error)

	// Configuration Management
	SetConfig(key, value string) error
	GetConfig(key string) (string, error)

	Close() error
}
