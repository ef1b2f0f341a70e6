// Package chat runs one persona chat turn: bound the history, retrieve
// evidence, compose the prompt, call the generator and account for tokens.
// Query-stage failures never escape; they degrade to fixed replies.
package chat

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/felixgeelhaar/persona/internal/event"
	"github.com/felixgeelhaar/persona/internal/history"
	"github.com/felixgeelhaar/persona/internal/knowledge"
	"github.com/felixgeelhaar/persona/internal/observe"
	"github.com/felixgeelhaar/persona/internal/persona"
	"github.com/felixgeelhaar/persona/internal/prompt"
	"github.com/felixgeelhaar/persona/internal/provider"
	"github.com/felixgeelhaar/persona/internal/tokens"
	"github.com/felixgeelhaar/persona/internal/usage"
)

const (
	// NoGeneratorReply is returned when no language model is configured.
	NoGeneratorReply = "I'm having trouble connecting to my language model. Please try again later."
	// FallbackReply is returned when generation fails.
	FallbackReply = "I'm having trouble responding right now. Please try again."

	DefaultTimeout = 60 * time.Second
)

var (
	ErrNoGenerator      = errors.New("no text generator configured")
	ErrGenerationFailed = errors.New("generation failed")
)

// Generator produces text for a composed prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string, opts provider.Options) (string, error)
}

// Retriever is the read side of the knowledge store.
type Retriever interface {
	RetrieveTopK(ctx context.Context, query string, k int) ([]knowledge.Result, error)
}

// Request carries everything one turn needs. Log holds the conversation
// including the in-flight user turn as its last entry. Knowledge and
// Generator may be nil.
type Request struct {
	SessionID string
	Input     string
	Log       []history.Turn
	Persona   persona.Config
	Knowledge Retriever
	Generator Generator
}

// Result is the outcome of one turn. Text is always safe to show the user.
// Err carries the recovered cause of a degraded turn.
type Result struct {
	Text      string
	State     State
	Prompt    prompt.Prompt
	Retrieved []knowledge.Result
	Usage     usage.Record
	Err       error
}

// Orchestrator runs turns one at a time.
type Orchestrator struct {
	mu sync.Mutex

	selector *history.Selector
	budget   int
	counter  tokens.Counter
	recorder usage.Recorder
	bus      *event.Bus
	obs      *observe.Observer
	topK     int
	timeout  time.Duration
}

type Option func(*Orchestrator)

func WithCounter(c tokens.Counter) Option {
	return func(o *Orchestrator) {
		if c != nil {
			o.counter = c
		}
	}
}

// WithHistoryBudget sets the token budget for selected history.
func WithHistoryBudget(budget int) Option {
	return func(o *Orchestrator) { o.budget = budget }
}

func WithTopK(k int) Option {
	return func(o *Orchestrator) {
		if k > 0 {
			o.topK = k
		}
	}
}

// WithTimeout bounds each generator call.
func WithTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.timeout = d
		}
	}
}

func WithRecorder(r usage.Recorder) Option {
	return func(o *Orchestrator) { o.recorder = r }
}

func WithBus(b *event.Bus) Option {
	return func(o *Orchestrator) { o.bus = b }
}

func New(obs *observe.Observer, opts ...Option) *Orchestrator {
	if obs == nil {
		obs = observe.Nop()
	}
	o := &Orchestrator{
		counter: tokens.Estimator{},
		budget:  history.DefaultBudget,
		obs:     obs,
		topK:    knowledge.DefaultTopK,
		timeout: DefaultTimeout,
	}
	for _, opt := range opts {
		opt(o)
	}
	o.selector = history.NewSelector(o.counter, o.budget)
	return o
}

// Respond runs one turn. It never returns an error; failures are reported
// through Result.State and Result.Err. The conversation log is not modified.
func (o *Orchestrator) Respond(ctx context.Context, req Request) Result {
	o.mu.Lock()
	defer o.mu.Unlock()

	ctx, span := o.obs.StartSpan(ctx, "Respond")
	defer span.End()

	o.bus.PublishSimple(event.TurnStarted, req.SessionID)

	if req.Generator == nil {
		return o.degrade(req, Result{Text: NoGeneratorReply}, ErrNoGenerator)
	}

	turns := o.selector.Select(req.Log, true)
	o.transition(req, HistorySelected)

	retrieved := o.retrieve(ctx, req)
	o.transition(req, RetrievalDone)

	p := prompt.Compose(req.Persona, turns, req.Input, retrieved)
	res := Result{
		Prompt:    p,
		Retrieved: retrieved,
		Usage: usage.Record{
			SessionID:       req.SessionID,
			InputTokens:     o.counter.Count(p.Body),
			RetrievedTokens: o.counter.Count(p.Context),
		},
	}
	o.transition(req, PromptComposed)

	genCtx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	o.transition(req, GeneratorInvoked)
	text, err := req.Generator.Generate(genCtx, p.String(), provider.Options{
		Temperature: req.Persona.Temperature,
		MaxTokens:   req.Persona.ResponseLength,
	})
	if err != nil {
		res.Text = FallbackReply
		return o.degrade(req, res, fmt.Errorf("%w: %v", ErrGenerationFailed, err))
	}

	res.Text = text
	res.State = Completed
	res.Usage.OutputTokens = o.counter.Count(text)
	res.Usage.CreatedAt = time.Now()

	if o.recorder != nil {
		if err := o.recorder.Record(ctx, res.Usage); err != nil {
			o.obs.Log().Warn().Str("session", req.SessionID).Err(err).Msg("failed to record token usage")
		}
	}

	o.obs.Log().Info().
		Str("session", req.SessionID).
		Int("input_tokens", res.Usage.InputTokens).
		Int("retrieved_tokens", res.Usage.RetrievedTokens).
		Int("output_tokens", res.Usage.OutputTokens).
		Int("total_tokens", res.Usage.Total()).
		Msg("turn completed")
	o.bus.PublishWithData(event.TurnCompleted, req.SessionID, map[string]any{
		"state": Completed.String(),
		"total": res.Usage.Total(),
	})
	return res
}

// retrieve returns the top matches, or nothing when there is no store or the
// lookup fails.
func (o *Orchestrator) retrieve(ctx context.Context, req Request) []knowledge.Result {
	if req.Knowledge == nil {
		return nil
	}
	results, err := req.Knowledge.RetrieveTopK(ctx, req.Input, o.topK)
	if err != nil {
		o.obs.Log().Warn().Str("session", req.SessionID).Err(err).Msg("retrieval failed, continuing without context")
		o.bus.PublishWithData(event.RetrievalFailed, req.SessionID, map[string]any{"error": err.Error()})
		return nil
	}
	return results
}

func (o *Orchestrator) transition(req Request, s State) {
	o.bus.PublishWithData(event.StateChanged, req.SessionID, map[string]any{"state": s.String()})
}

func (o *Orchestrator) degrade(req Request, res Result, cause error) Result {
	res.State = Degraded
	res.Err = cause
	o.obs.Log().Warn().Str("session", req.SessionID).Err(cause).Msg("turn degraded")
	o.bus.PublishWithData(event.TurnDegraded, req.SessionID, map[string]any{
		"state": Degraded.String(),
		"error": cause.Error(),
	})
	return res
}
