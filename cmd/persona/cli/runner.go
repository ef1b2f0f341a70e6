package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/felixgeelhaar/persona/internal/chat"
	"github.com/felixgeelhaar/persona/internal/observe"
	"github.com/felixgeelhaar/persona/internal/prompt"
	"github.com/felixgeelhaar/persona/internal/session"
	"github.com/felixgeelhaar/persona/internal/ui"
	"github.com/felixgeelhaar/persona/internal/ui/tui"
)

// Runner drives a session from plain text input.
type Runner struct {
	Observer *observe.Observer
	Session  tui.Chatter
	UI       ui.UI
}

func NewRunner(obs *observe.Observer, s tui.Chatter, u ui.UI) *Runner {
	if obs == nil {
		obs = observe.Nop()
	}
	if u == nil {
		u = ui.SilentUI{}
	}
	return &Runner{
		Observer: obs,
		Session:  s,
		UI:       u,
	}
}

// Ask runs one turn and reports the reply.
func (r *Runner) Ask(ctx context.Context, question string) chat.Result {
	res := r.Session.Send(ctx, question)
	r.UI.Reply(r.Session.Persona().Name, res.Text)
	return res
}

// Import loads a file, or a web page when src is an http(s) URL.
func (r *Runner) Import(ctx context.Context, src string) (session.ImportResult, error) {
	var res session.ImportResult
	var err error
	if isURL(src) {
		res, err = r.Session.ImportURL(ctx, src)
	} else {
		res, err = r.Session.ImportFile(ctx, src)
	}
	if err != nil {
		r.UI.Log(fmt.Sprintf("Import of %s failed: %v", src, err))
		return res, err
	}
	r.UI.Log(fmt.Sprintf("Imported %s (%d chunks)", res.Name, res.Chunks))
	return res, nil
}

// Loop reads one message per line until EOF or /quit.
func (r *Runner) Loop(ctx context.Context, in io.Reader) error {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		cmd, arg, _ := strings.Cut(line, " ")
		arg = strings.TrimSpace(arg)
		switch cmd {
		case "/quit", "/exit":
			return nil
		case "/reset":
			r.Session.ResetHistory()
			r.UI.Log("Chat history cleared.")
		case "/history":
			h := prompt.FormatHistory(r.Session.History())
			if h == "" {
				h = "(empty)"
			}
			r.UI.Log(h)
		case "/import", "/url":
			if arg == "" {
				r.UI.Log("usage: " + cmd + " <source>")
				continue
			}
			_, _ = r.Import(ctx, arg)
		default:
			r.Ask(ctx, line)
		}
	}
	return scanner.Err()
}

func isURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}
