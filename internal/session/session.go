// Package session holds the state of one conversation: the persona, the
// conversation log and the knowledge store. Every operation goes through an
// explicit *Session; there is no package-level state.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/felixgeelhaar/persona/internal/chat"
	"github.com/felixgeelhaar/persona/internal/chunk"
	"github.com/felixgeelhaar/persona/internal/event"
	"github.com/felixgeelhaar/persona/internal/fetch"
	"github.com/felixgeelhaar/persona/internal/guard"
	"github.com/felixgeelhaar/persona/internal/history"
	"github.com/felixgeelhaar/persona/internal/ingest"
	"github.com/felixgeelhaar/persona/internal/knowledge"
	"github.com/felixgeelhaar/persona/internal/observe"
	"github.com/felixgeelhaar/persona/internal/persona"
	"github.com/felixgeelhaar/persona/internal/store"
	"github.com/google/uuid"
)

var ErrImportRejected = errors.New("import rejected by policy")

// Ledger persists session and source records. Optional.
type Ledger interface {
	CreateSession(ctx context.Context, s *store.Session) error
	UpdateSession(ctx context.Context, s *store.Session) error
	AddSource(ctx context.Context, src *store.Source) error
}

// PersonaStore loads and saves the persona record.
type PersonaStore interface {
	Load() (persona.Config, error)
	Save(cfg persona.Config) error
	Reset() (persona.Config, error)
}

// Deps are the collaborators of a Session. Personas and Orchestrator are
// required; Generator, Ledger and Bus may be nil.
type Deps struct {
	Observer     *observe.Observer
	Bus          *event.Bus
	Personas     PersonaStore
	Orchestrator *chat.Orchestrator
	Generator    chat.Generator
	Knowledge    *knowledge.Store
	Chunker      *chunk.Chunker
	Ingestor     *ingest.Ingestor
	Fetcher      *fetch.Fetcher
	Guard        *guard.Guard
	Ledger       Ledger
}

// Session is one live conversation.
type Session struct {
	id string

	obs       *observe.Observer
	bus       *event.Bus
	personas  PersonaStore
	orch      *chat.Orchestrator
	generator chat.Generator
	knowledge *knowledge.Store
	chunker   *chunk.Chunker
	ingestor  *ingest.Ingestor
	fetcher   *fetch.Fetcher
	guard     *guard.Guard
	ledger    Ledger

	// turnMu serializes whole turns so user and assistant entries pair up.
	turnMu sync.Mutex

	mu      sync.Mutex
	persona persona.Config
	log     []history.Turn
	record  *store.Session
}

// New loads the persona and opens a session.
func New(ctx context.Context, d Deps) (*Session, error) {
	if d.Personas == nil || d.Orchestrator == nil {
		return nil, errors.New("session requires a persona store and an orchestrator")
	}
	if d.Observer == nil {
		d.Observer = observe.Nop()
	}
	if d.Chunker == nil {
		d.Chunker = chunk.Default()
	}
	if d.Ingestor == nil {
		d.Ingestor = ingest.New(d.Observer, 0)
	}
	if d.Guard == nil {
		d.Guard = guard.New(guard.DefaultPolicy)
	}
	if d.Knowledge == nil {
		d.Knowledge = knowledge.NewStore(knowledge.NewTFIDF(), d.Observer)
	}

	cfg, err := d.Personas.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load persona: %w", err)
	}

	s := &Session{
		id:        uuid.NewString(),
		obs:       d.Observer,
		bus:       d.Bus,
		personas:  d.Personas,
		orch:      d.Orchestrator,
		generator: d.Generator,
		knowledge: d.Knowledge,
		chunker:   d.Chunker,
		ingestor:  d.Ingestor,
		fetcher:   d.Fetcher,
		guard:     d.Guard,
		ledger:    d.Ledger,
		persona:   cfg,
	}

	if s.ledger != nil {
		s.record = &store.Session{ID: s.id, PersonaName: cfg.Name, Status: store.StatusActive}
		if err := s.ledger.CreateSession(ctx, s.record); err != nil {
			s.obs.Log().Warn().Str("session", s.id).Err(err).Msg("failed to record session")
			s.record = nil
		}
	}

	s.obs.Log().Info().Str("session", s.id).Str("persona", cfg.Name).Msg("session started")
	return s, nil
}

func (s *Session) ID() string { return s.id }

// Send runs one chat turn. The user turn and the reply, including degraded
// replies, are appended to the log exactly once.
func (s *Session) Send(ctx context.Context, input string) chat.Result {
	s.turnMu.Lock()
	defer s.turnMu.Unlock()

	s.mu.Lock()
	s.log = append(s.log, history.Turn{Role: history.RoleUser, Content: input})
	req := chat.Request{
		SessionID: s.id,
		Input:     input,
		Log:       append([]history.Turn(nil), s.log...),
		Persona:   s.persona,
		Generator: s.generator,
	}
	if s.knowledge.Built() {
		req.Knowledge = s.knowledge
	}
	s.mu.Unlock()

	res := s.orch.Respond(ctx, req)

	s.mu.Lock()
	s.log = append(s.log, history.Turn{Role: history.RoleAssistant, Content: res.Text})
	turns := len(s.log)
	s.mu.Unlock()

	s.touch(ctx, func(r *store.Session) { r.Turns = turns })
	return res
}

// Search returns up to k passages from the knowledge store scoring at least
// threshold. It is empty when nothing has been imported.
func (s *Session) Search(ctx context.Context, query string, k int, threshold float64) ([]knowledge.Result, error) {
	if !s.knowledge.Built() {
		return nil, nil
	}
	return s.knowledge.Retrieve(ctx, query, k, threshold)
}

// History returns a copy of the conversation log.
func (s *Session) History() []history.Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]history.Turn(nil), s.log...)
}

// ResetHistory clears the conversation log.
func (s *Session) ResetHistory() {
	s.mu.Lock()
	s.log = nil
	s.mu.Unlock()

	s.bus.PublishSimple(event.HistoryReset, s.id)
	s.touch(context.Background(), func(r *store.Session) { r.Turns = 0 })
}

// Persona returns the current persona.
func (s *Session) Persona() persona.Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.persona
}

// UpdatePersona applies updates in memory; they take effect on the next
// turn and are persisted only by SavePersona.
func (s *Session) UpdatePersona(updates map[string]string) (ignored []string, err error) {
	s.mu.Lock()
	next := s.persona
	ignored, err = next.Apply(updates)
	if err == nil {
		s.persona = next
	}
	name := s.persona.Name
	s.mu.Unlock()

	if err != nil {
		return ignored, err
	}
	s.bus.PublishWithData(event.PersonaUpdated, s.id, map[string]any{"name": name})
	s.touch(context.Background(), func(r *store.Session) { r.PersonaName = name })
	return ignored, nil
}

// SavePersona persists the current persona as a whole record.
func (s *Session) SavePersona() error {
	return s.personas.Save(s.Persona())
}

// ResetPersona restores, saves and activates the default persona.
func (s *Session) ResetPersona() (persona.Config, error) {
	cfg, err := s.personas.Reset()
	if err != nil {
		return persona.Config{}, err
	}
	s.mu.Lock()
	s.persona = cfg
	s.mu.Unlock()

	s.bus.PublishWithData(event.PersonaUpdated, s.id, map[string]any{"name": cfg.Name})
	return cfg, nil
}

// Close marks the session finished in the ledger.
func (s *Session) Close(ctx context.Context) error {
	s.touch(ctx, func(r *store.Session) { r.Status = store.StatusClosed })
	return nil
}

func (s *Session) touch(ctx context.Context, mutate func(*store.Session)) {
	if s.ledger == nil || s.record == nil {
		return
	}
	s.mu.Lock()
	mutate(s.record)
	rec := *s.record
	s.mu.Unlock()

	if err := s.ledger.UpdateSession(ctx, &rec); err != nil {
		s.obs.Log().Warn().Str("session", s.id).Err(err).Msg("failed to update session record")
	}
}
