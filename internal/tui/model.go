// Package tui is a terminal front end for an assistant session built on
// bubbletea.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/omochice/assistant-session/internal/chat"
	"github.com/omochice/assistant-session/internal/transcript"
)

const (
	promptPlaceholder  = "Ask the assistant, or /help"
	waitingPlaceholder = "Waiting for the assistant... (/cancel to stop)"
	offlinePlaceholder = "Offline, reconnecting..."
)

var errInputDisabled = errors.New("input is disabled")

// Controller is the session API driven by the model. *client.Client
// implements it.
type Controller interface {
	SubmitUserPrompt(ctx context.Context, text string) error
	SubmitSystemPrompt(ctx context.Context, text string) error
	CancelUserPrompt(ctx context.Context) error
	ResetHistory(ctx context.Context) error
	EnableHistory(ctx context.Context) error
	DisableHistory(ctx context.Context) error
	LoadSystemPrompt(ctx context.Context) error
	ClearChat(ctx context.Context) error
	ClearSystemPrompt(ctx context.Context) error
	RestoreLog(ctx context.Context, entries []chat.Entry) error
	Snapshot(ctx context.Context) (chat.State, error)
}

// Options configures a Model.
type Options struct {
	// UserName labels the user's entries.
	UserName string
	// Style is a glamour style name or AutoStyle.
	Style string
	// TranscriptPath is used by /save and /open when no path is given.
	TranscriptPath string
	// Timeout bounds each call into the Controller. Defaults to 5s.
	Timeout time.Duration
}

// resultMsg reports the outcome of a Controller call.
type resultMsg struct {
	action string
	info   string
	err    error
}

// Model is the bubbletea model. It mirrors what the session reports through
// ProgramView and never calls the Controller from Update; every call runs in
// a tea.Cmd.
type Model struct {
	ctrl     Controller
	opts     Options
	renderer *Renderer

	input    textinput.Model
	spinner  spinner.Model
	viewport viewport.Model

	entries        []chat.Entry
	spinnerActive  bool
	inputEnabled   bool
	offline        bool
	busy           bool
	systemPrompt   string
	enableVisible  bool
	disableVisible bool

	status    string
	statusErr bool
	showHelp  bool
	width     int
	height    int
}

// NewModel creates a Model. Bind must be called before the program runs.
func NewModel(opts Options) *Model {
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}

	input := textinput.New()
	input.Prompt = "> "
	input.Placeholder = offlinePlaceholder
	input.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("#5fafff"))

	return &Model{
		opts:     opts,
		renderer: NewRenderer(opts.Style, opts.UserName, 78),
		input:    input,
		spinner:  sp,
		viewport: viewport.New(80, 20),
		offline:  true,
	}
}

// Bind sets the Controller.
func (m *Model) Bind(c Controller) {
	m.ctrl = c
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return textinput.Blink
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC:
			return m, tea.Quit
		case tea.KeyEnter:
			return m, m.submit()
		case tea.KeyPgUp, tea.KeyPgDown:
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}

	case spinner.TickMsg:
		if !m.spinnerActive {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case entryMsg:
		m.entries = append(m.entries, chat.Entry(msg))
		m.refresh()
		return m, nil

	case clearEntriesMsg:
		m.entries = nil
		m.refresh()
		return m, nil

	case spinnerMsg:
		wasActive := m.spinnerActive
		m.spinnerActive = bool(msg)
		if m.spinnerActive && !wasActive {
			return m, m.spinner.Tick
		}
		return m, nil

	case inputEnabledMsg:
		m.inputEnabled = bool(msg)
		m.updatePlaceholder()
		return m, nil

	case systemPromptMsg:
		m.systemPrompt = string(msg)
		return m, nil

	case offlineMsg:
		m.offline = bool(msg)
		m.updatePlaceholder()
		return m, nil

	case assistantIconMsg:
		m.busy = chat.AssistantIcon(msg) == chat.IconBusy
		m.updatePlaceholder()
		return m, nil

	case historyControlMsg:
		if msg.control == chat.EnableHistoryControl {
			m.enableVisible = msg.visible
		} else {
			m.disableVisible = msg.visible
		}
		return m, nil

	case resultMsg:
		if msg.err != nil {
			m.setStatus(fmt.Sprintf("%s: %v", msg.action, msg.err), true)
		} else if msg.info != "" {
			m.setStatus(msg.info, false)
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// View implements tea.Model.
func (m *Model) View() string {
	var b strings.Builder

	b.WriteString(m.header())
	b.WriteString("\n")
	if m.systemPrompt != "" {
		b.WriteString(helpStyle.Render("system: " + firstLine(m.systemPrompt)))
		b.WriteString("\n")
	}
	b.WriteString(m.viewport.View())
	b.WriteString("\n")
	if m.status != "" {
		style := helpStyle
		if m.statusErr {
			style = errorStyle
		}
		b.WriteString(style.Render(m.status))
		b.WriteString("\n")
	}
	b.WriteString(m.input.View())
	b.WriteString("\n")
	b.WriteString(helpStyle.Render(m.footer()))
	return b.String()
}

func (m *Model) header() string {
	parts := []string{headerStyle.Render("Assistant")}

	switch {
	case m.spinnerActive:
		parts = append(parts, m.spinner.View())
	case m.busy:
		parts = append(parts, "◐")
	default:
		parts = append(parts, "●")
	}
	if m.offline {
		parts = append(parts, offlineStyle.Render("offline"))
	}
	if m.disableVisible {
		parts = append(parts, helpStyle.Render("history on"))
	} else if m.enableVisible {
		parts = append(parts, helpStyle.Render("history off"))
	}
	return strings.Join(parts, " ")
}

func (m *Model) footer() string {
	if m.showHelp {
		return HelpText
	}
	hints := []string{"enter send", "/help commands", "ctrl+c quit"}
	if m.enableVisible {
		hints = append(hints, "/history on")
	}
	if m.disableVisible {
		hints = append(hints, "/history off")
	}
	return strings.Join(hints, " · ")
}

func (m *Model) resize(width, height int) {
	m.width, m.height = width, height
	m.input.Width = max(width-4, 10)
	m.viewport.Width = width
	m.viewport.Height = max(height-6, 3)
	m.renderer.SetWidth(width - 2)
	m.refresh()
}

func (m *Model) refresh() {
	m.viewport.SetContent(m.renderer.Entries(m.entries))
	m.viewport.GotoBottom()
}

func (m *Model) updatePlaceholder() {
	switch {
	case m.offline:
		m.input.Placeholder = offlinePlaceholder
	case !m.inputEnabled || m.busy:
		m.input.Placeholder = waitingPlaceholder
	default:
		m.input.Placeholder = promptPlaceholder
	}
}

func (m *Model) setStatus(text string, isErr bool) {
	m.status = text
	m.statusErr = isErr
}

// submit handles the input line and returns the command doing the work.
func (m *Model) submit() tea.Cmd {
	line := m.input.Value()
	if strings.TrimSpace(line) == "" {
		return nil
	}

	cmd, err := ParseCommand(line)
	if err != nil {
		m.setStatus(err.Error(), true)
		return nil
	}

	switch cmd.Kind {
	case CmdQuit:
		return tea.Quit
	case CmdHelp:
		m.input.Reset()
		m.showHelp = !m.showHelp
		return nil
	case CmdPrompt:
		if !m.inputEnabled {
			m.setStatus(errInputDisabled.Error(), true)
			return nil
		}
	case CmdSave, CmdOpen:
		if cmd.Arg == "" {
			cmd.Arg = m.opts.TranscriptPath
		}
		if cmd.Arg == "" {
			m.setStatus("no transcript path", true)
			return nil
		}
	}

	if m.ctrl == nil {
		m.setStatus("no session", true)
		return nil
	}
	m.input.Reset()
	m.setStatus("", false)
	return m.dispatch(cmd)
}

func (m *Model) dispatch(cmd Command) tea.Cmd {
	ctrl := m.ctrl
	switch cmd.Kind {
	case CmdPrompt:
		return m.call("prompt", func(ctx context.Context) (string, error) {
			return "", ctrl.SubmitUserPrompt(ctx, cmd.Arg)
		})
	case CmdSystem:
		text := cmd.Arg
		if text == "" {
			text = m.systemPrompt
		}
		return m.call("system prompt", func(ctx context.Context) (string, error) {
			return "", ctrl.SubmitSystemPrompt(ctx, text)
		})
	case CmdLoad:
		return m.call("load", func(ctx context.Context) (string, error) {
			return "", ctrl.LoadSystemPrompt(ctx)
		})
	case CmdCancel:
		return m.call("cancel", func(ctx context.Context) (string, error) {
			return "", ctrl.CancelUserPrompt(ctx)
		})
	case CmdReset:
		return m.call("reset", func(ctx context.Context) (string, error) {
			return "", ctrl.ResetHistory(ctx)
		})
	case CmdHistoryOn:
		return m.call("history", func(ctx context.Context) (string, error) {
			return "", ctrl.EnableHistory(ctx)
		})
	case CmdHistoryOff:
		return m.call("history", func(ctx context.Context) (string, error) {
			return "", ctrl.DisableHistory(ctx)
		})
	case CmdClear:
		return m.call("clear", func(ctx context.Context) (string, error) {
			return "", ctrl.ClearChat(ctx)
		})
	case CmdClearSystem:
		return m.call("clear system prompt", func(ctx context.Context) (string, error) {
			return "", ctrl.ClearSystemPrompt(ctx)
		})
	case CmdSave:
		path := cmd.Arg
		return m.call("save", func(ctx context.Context) (string, error) {
			state, err := ctrl.Snapshot(ctx)
			if err != nil {
				return "", err
			}
			if err := transcript.Save(path, state.ChatLog); err != nil {
				return "", err
			}
			return fmt.Sprintf("saved %d entries to %s", len(state.ChatLog), path), nil
		})
	case CmdOpen:
		path := cmd.Arg
		return m.call("open", func(ctx context.Context) (string, error) {
			entries, err := transcript.Load(path)
			if err != nil {
				return "", err
			}
			if err := ctrl.RestoreLog(ctx, entries); err != nil {
				return "", err
			}
			return fmt.Sprintf("restored %d entries from %s", len(entries), path), nil
		})
	}
	return nil
}

func (m *Model) call(action string, fn func(ctx context.Context) (string, error)) tea.Cmd {
	timeout := m.opts.Timeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		info, err := fn(ctx)
		return resultMsg{action: action, info: info, err: err}
	}
}

func firstLine(s string) string {
	line, _, cut := strings.Cut(strings.TrimSpace(s), "\n")
	if cut {
		return line + " ..."
	}
	return line
}
