package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/felixgeelhaar/persona/internal/chat"
	"github.com/felixgeelhaar/persona/internal/history"
	"github.com/felixgeelhaar/persona/internal/persona"
	"github.com/felixgeelhaar/persona/internal/prompt"
	"github.com/felixgeelhaar/persona/internal/session"
)

// Chatter is the session surface the chat screen drives.
type Chatter interface {
	Send(ctx context.Context, input string) chat.Result
	History() []history.Turn
	ResetHistory()
	ImportFile(ctx context.Context, path string) (session.ImportResult, error)
	ImportURL(ctx context.Context, url string) (session.ImportResult, error)
	Persona() persona.Config
}

// TUI forwards ui.UI calls into a running program.
type TUI struct {
	program *tea.Program
}

func NewTUI(p *tea.Program) *TUI {
	return &TUI{program: p}
}

func (t *TUI) UpdateStatus(status string) {
	t.program.Send(StatusMsg(status))
}

func (t *TUI) Log(msg string) {
	t.program.Send(LogMsg(msg))
}

func (t *TUI) Reply(name, text string) {
	t.program.Send(LogMsg(name + ": " + text))
}

var (
	titleStyle = lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#FAFAFA")).
		Background(lipgloss.Color("#7D56F4")).
		Padding(0, 1)

	infoStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#04B575"))

	userStyle = lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#7D56F4"))

	errorStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#FF0000"))
)

const helpText = "Commands: /import <path>, /url <url>, /history, /reset, /quit"

type LogMsg string
type StatusMsg string

type replyMsg struct {
	result chat.Result
}

type importMsg struct {
	result session.ImportResult
	err    error
}

type Model struct {
	Title    string
	Status   string
	Lines    []string
	Input    textinput.Model
	Spinner  spinner.Model
	Viewport viewport.Model
	Busy     bool
	Quitting bool
	Ready    bool
	Width    int
	Height   int

	chatter Chatter
	ctx     context.Context
}

func NewModel(ctx context.Context, c Chatter) Model {
	in := textinput.New()
	in.Placeholder = "Say something, or /import <path>"
	in.CharLimit = 2000
	in.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	return Model{
		Title:   c.Persona().Name,
		Status:  "ready",
		Lines:   []string{helpText},
		Input:   in,
		Spinner: sp,
		chatter: c,
		ctx:     ctx,
	}
}

func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			m.Quitting = true
			return m, tea.Quit
		case tea.KeyEnter:
			if m.Busy {
				return m, nil
			}
			line := strings.TrimSpace(m.Input.Value())
			m.Input.SetValue("")
			if line == "" {
				return m, nil
			}
			return m.submit(line)
		}

	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height
		if !m.Ready {
			m.Viewport = viewport.New(msg.Width, msg.Height-5)
			m.Ready = true
		} else {
			m.Viewport.Width = msg.Width
			m.Viewport.Height = msg.Height - 5
		}
		m.Input.Width = msg.Width - 4
		m.refresh()

	case replyMsg:
		m.Busy = false
		m.Status = msg.result.State.String()
		line := m.Title + ": " + msg.result.Text
		if msg.result.State == chat.Degraded {
			line = errorStyle.Render(line)
		}
		m.appendLine(line)

	case importMsg:
		m.Busy = false
		m.Status = "ready"
		if msg.err != nil {
			m.appendLine(errorStyle.Render("Import failed: " + msg.err.Error()))
		} else {
			m.appendLine(infoStyle.Render(fmt.Sprintf("Imported %s (%d chunks)", msg.result.Name, msg.result.Chunks)))
		}

	case LogMsg:
		m.appendLine(string(msg))

	case StatusMsg:
		m.Status = string(msg)

	case spinner.TickMsg:
		if !m.Busy {
			return m, nil
		}
		var cmd tea.Cmd
		m.Spinner, cmd = m.Spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.Input, cmd = m.Input.Update(msg)
	cmds = append(cmds, cmd)
	m.Viewport, cmd = m.Viewport.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

// submit handles one input line: a slash command or a chat message.
func (m Model) submit(line string) (tea.Model, tea.Cmd) {
	cmd, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)

	switch cmd {
	case "/quit", "/exit":
		m.Quitting = true
		return m, tea.Quit
	case "/help":
		m.appendLine(helpText)
		return m, nil
	case "/reset":
		m.chatter.ResetHistory()
		m.appendLine(infoStyle.Render("Chat history cleared."))
		return m, nil
	case "/history":
		h := prompt.FormatHistory(m.chatter.History())
		if h == "" {
			h = "(empty)"
		}
		m.appendLine(h)
		return m, nil
	case "/import", "/url":
		if arg == "" {
			m.appendLine(errorStyle.Render("usage: " + cmd + " <source>"))
			return m, nil
		}
		m.Busy = true
		m.Status = "importing"
		return m, tea.Batch(m.Spinner.Tick, m.importCmd(cmd == "/url", arg))
	}

	m.appendLine(userStyle.Render("You: ") + line)
	m.Busy = true
	m.Status = "thinking"
	return m, tea.Batch(m.Spinner.Tick, m.sendCmd(line))
}

func (m Model) sendCmd(input string) tea.Cmd {
	c, ctx := m.chatter, m.ctx
	return func() tea.Msg {
		return replyMsg{result: c.Send(ctx, input)}
	}
}

func (m Model) importCmd(isURL bool, src string) tea.Cmd {
	c, ctx := m.chatter, m.ctx
	return func() tea.Msg {
		var res session.ImportResult
		var err error
		if isURL {
			res, err = c.ImportURL(ctx, src)
		} else {
			res, err = c.ImportFile(ctx, src)
		}
		return importMsg{result: res, err: err}
	}
}

func (m *Model) appendLine(line string) {
	m.Lines = append(m.Lines, line)
	m.refresh()
}

func (m *Model) refresh() {
	if !m.Ready {
		return
	}
	m.Viewport.SetContent(lipgloss.NewStyle().Width(m.Width).Render(strings.Join(m.Lines, "\n\n")))
	m.Viewport.GotoBottom()
}

func (m Model) View() string {
	if !m.Ready {
		return "\n  Initializing..."
	}

	header := titleStyle.Render(" " + m.Title + " ")
	status := infoStyle.Render(fmt.Sprintf(" %s ", m.Status))
	if m.Busy {
		status = m.Spinner.View() + status
	}

	view := fmt.Sprintf("%s%s\n%s\n%s", header, status, m.Viewport.View(), m.Input.View())
	if m.Quitting {
		return view + "\n  Goodbye.\n"
	}
	return view
}
