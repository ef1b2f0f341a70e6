package ui

import (
	"fmt"
	"io"
	"sync"

	"github.com/felixgeelhaar/persona/internal/event"
)

// UI receives progress and replies from a running session.
type UI interface {
	UpdateStatus(status string)
	Log(msg string)
	Reply(name, text string)
}

type SilentUI struct{}

func (s SilentUI) UpdateStatus(status string) {}
func (s SilentUI) Log(msg string)             {}
func (s SilentUI) Reply(name, text string)    {}

// Console writes replies and log lines to a writer. Status updates are
// dropped unless Verbose is set.
type Console struct {
	Out     io.Writer
	Verbose bool

	mu sync.Mutex
}

func NewConsole(out io.Writer, verbose bool) *Console {
	return &Console{Out: out, Verbose: verbose}
}

func (c *Console) UpdateStatus(status string) {
	if !c.Verbose {
		return
	}
	c.write("[%s]\n", status)
}

func (c *Console) Log(msg string) {
	c.write("%s\n", msg)
}

func (c *Console) Reply(name, text string) {
	c.write("%s: %s\n", name, text)
}

func (c *Console) write(format string, args ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.Out, format, args...)
}

// Follow forwards bus events for sessionID to u. An empty sessionID follows
// every session.
func Follow(b *event.Bus, sessionID string, u UI) {
	subscribe(b, sessionID, u, true)
}

// FollowStatus forwards only turn and import progress as status updates.
func FollowStatus(b *event.Bus, sessionID string, u UI) {
	subscribe(b, sessionID, u, false)
}

func subscribe(b *event.Bus, sessionID string, u UI, logs bool) {
	if b == nil || u == nil {
		return
	}
	b.SubscribeAll(func(e event.Event) {
		if sessionID != "" && e.SessionID != sessionID {
			return
		}
		switch e.Type {
		case event.StateChanged:
			if s, ok := e.Data["state"].(string); ok {
				u.UpdateStatus(s)
			}
		case event.TurnDegraded:
			u.UpdateStatus("degraded")
		case event.TurnCompleted:
			u.UpdateStatus("idle")
		case event.IngestStarted:
			u.UpdateStatus(fmt.Sprintf("importing %v", e.Data["source"]))
		}
		if !logs {
			return
		}
		switch e.Type {
		case event.IngestCompleted:
			u.Log(fmt.Sprintf("Imported %v (%v chunks)", e.Data["source"], e.Data["chunks"]))
		case event.IngestFailed:
			u.Log(fmt.Sprintf("Import of %v failed: %v", e.Data["source"], e.Data["error"]))
		case event.HistoryReset:
			u.Log("Chat history cleared.")
		case event.PersonaUpdated:
			u.Log(fmt.Sprintf("Persona is now %v.", e.Data["name"]))
		}
	})
}
