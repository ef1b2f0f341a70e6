package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/felixgeelhaar/persona/internal/usage"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

var ErrNotFound = errors.New("not found")

type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0750); err != nil {
		return nil, fmt.Errorf("failed to create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// SQLite allows one writer; a single connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, err
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			persona TEXT,
			status TEXT,
			turns INTEGER DEFAULT 0,
			created_at DATETIME,
			updated_at DATETIME,
			metadata TEXT
		);`,
		`CREATE TABLE IF NOT EXISTS sources (
			id TEXT PRIMARY KEY,
			session_id TEXT,
			name TEXT,
			kind TEXT,
			digest TEXT,
			chunks INTEGER,
			created_at DATETIME
		);`,
		`CREATE TABLE IF NOT EXISTS usage (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT,
			input_tokens INTEGER,
			retrieved_tokens INTEGER,
			output_tokens INTEGER,
			created_at DATETIME
		);`,
		`CREATE TABLE IF NOT EXISTS configuration (
			key TEXT PRIMARY KEY,
			value TEXT
		);`,
	}

	for _, query := range queries {
		if _, err := s.db.Exec(query); err != nil {
			return fmt.Errorf("failed to init schema: %w", err)
		}
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Configuration Implementation

func (s *SQLiteStore) SetConfig(key, value string) error {
	query := `INSERT INTO configuration (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value`
	_, err := s.db.Exec(query, key, value)
	return err
}

// GetConfig returns the stored value, or "" when the key is unset.
func (s *SQLiteStore) GetConfig(key string) (string, error) {
	query := `SELECT value FROM configuration WHERE key = ?`
	row := s.db.QueryRow(query, key)
	var value string
	if err := row.Scan(&value); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", err
	}
	return value, nil
}

// Session Implementation

func (s *SQLiteStore) CreateSession(ctx context.Context, session *Session) error {
	if session.ID == "" {
		session.ID = uuid.NewString()
	}
	now := time.Now()
	if session.CreatedAt.IsZero() {
		session.CreatedAt = now
	}
	session.UpdatedAt = now

	metaJSON, err := json.Marshal(session.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	query := `INSERT INTO sessions (id, persona, status, turns, created_at, updated_at, metadata) VALUES (?, ?, ?, ?, ?, ?, ?)`
	_, err = s.db.ExecContext(ctx, query, session.ID, session.PersonaName, session.Status, session.Turns,
		session.CreatedAt, session.UpdatedAt, string(metaJSON))
	return err
}

func (s *SQLiteStore) GetSession(ctx context.Context, id string) (*Session, error) {
	query := `SELECT id, persona, status, turns, created_at, updated_at, metadata FROM sessions WHERE id = ?`
	row := s.db.QueryRowContext(ctx, query, id)

	var session Session
	var metaJSON string
	if err := row.Scan(&session.ID, &session.PersonaName, &session.Status, &session.Turns,
		&session.CreatedAt, &session.UpdatedAt, &metaJSON); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("session %s: %w", id, ErrNotFound)
		}
		return nil, err
	}

	if err := json.Unmarshal([]byte(metaJSON), &session.Metadata); err != nil {
		return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
	}

	return &session, nil
}

func (s *SQLiteStore) UpdateSession(ctx context.Context, session *Session) error {
	metaJSON, err := json.Marshal(session.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	session.UpdatedAt = time.Now()
	query := `UPDATE sessions SET persona = ?, status = ?, turns = ?, updated_at = ?, metadata = ? WHERE id = ?`
	_, err = s.db.ExecContext(ctx, query, session.PersonaName, session.Status, session.Turns,
		session.UpdatedAt, string(metaJSON), session.ID)
	return err
}

// Source ledger

func (s *SQLiteStore) AddSource(ctx context.Context, source *Source) error {
	if source.ID == "" {
		source.ID = uuid.NewString()
	}
	if source.CreatedAt.IsZero() {
		source.CreatedAt = time.Now()
	}

	query := `INSERT INTO sources (id, session_id, name, kind, digest, chunks, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, query, source.ID, source.SessionID, source.Name, source.Kind,
		source.Digest, source.Chunks, source.CreatedAt)
	return err
}

// ListSources returns the ledger for a session, oldest first. An empty
// sessionID lists every source.
func (s *SQLiteStore) ListSources(ctx context.Context, sessionID string) ([]*Source, error) {
	query := `SELECT id, session_id, name, kind, digest, chunks, created_at FROM sources`
	var args []any
	if sessionID != "" {
		query += ` WHERE session_id = ?`
		args = append(args, sessionID)
	}
	query += ` ORDER BY created_at, rowid`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sources []*Source
	for rows.Next() {
		var src Source
		if err := rows.Scan(&src.ID, &src.SessionID, &src.Name, &src.Kind, &src.Digest, &src.Chunks, &src.CreatedAt); err != nil {
			return nil, err
		}
		sources = append(sources, &src)
	}
	return sources, rows.Err()
}

// Usage accounting

func (s *SQLiteStore) Record(ctx context.Context, r usage.Record) error {
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now()
	}
	query := `INSERT INTO usage (session_id, input_tokens, retrieved_tokens, output_tokens, created_at) VALUES (?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, query, r.SessionID, r.InputTokens, r.RetrievedTokens, r.OutputTokens, r.CreatedAt)
	return err
}

// UsageSummary totals usage for a session, or for all sessions when
// sessionID is empty.
func (s *SQLiteStore) UsageSummary(ctx context.Context, sessionID string) (usage.Summary, error) {
	query := `SELECT COUNT(*), COALESCE(SUM(input_tokens), 0), COALESCE(SUM(retrieved_tokens), 0), COALESCE(SUM(output_tokens), 0) FROM usage`
	var args []any
	if sessionID != "" {
		query += ` WHERE session_id = ?`
		args = append(args, sessionID)
	}

	var sum usage.Summary
	row := s.db.QueryRowContext(ctx, query, args...)
	if err := row.Scan(&sum.Turns, &sum.InputTokens, &sum.RetrievedTokens, &sum.OutputTokens); err != nil {
		return usage.Summary{}, err
	}
	return sum, nil
}
