package chat

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/omochice/assistant-session/pkg/protocol"
)

// DefaultGreeting is shown when the session starts and after the chat is cleared.
const DefaultGreeting = "Hello! How can I help you today?"

// Status lines appended when the backend confirms a command.
const (
	StatusSystemPromptApplied = "Applied submitted by user system prompt."
	StatusHistoryReset        = "Reset request history."
	StatusHistoryEnabled      = "Request history has been enabled."
	StatusHistoryDisabled     = "Request history has been disabled."
	StatusPromptCanceled      = "User request has been canceled."
)

// pongPayload is the payload of the reply to a PING.
const pongPayload = "pong"

// ErrEmptyPrompt is returned when a prompt is blank after trimming whitespace.
var ErrEmptyPrompt = errors.New("prompt is empty")

// Sender delivers encoded frames to the backend.
type Sender interface {
	Send(raw string) error
}

// SenderFunc adapts a function to the Sender interface.
type SenderFunc func(raw string) error

// Send implements Sender.
func (f SenderFunc) Send(raw string) error { return f(raw) }

// Options configures a Session.
type Options struct {
	// Greeting is the assistant entry that seeds the chat log. Empty disables it.
	Greeting       string
	HistoryEnabled bool
	Logger         zerolog.Logger
	// Now defaults to time.Now.
	Now func() time.Time
}

// Session is the session state machine. It is not safe for concurrent use:
// every method must be called from the single goroutine that owns it.
type Session struct {
	state    State
	view     View
	sender   Sender
	greeting string
	logger   zerolog.Logger
	now      func() time.Time

	inbound       map[protocol.EventCode]func(protocol.Frame)
	confirmations map[protocol.EventCode]func(protocol.Confirmation)
}

// NewSession creates a Session in its initial state. Nothing is rendered
// until Start is called.
func NewSession(view View, sender Sender, opts Options) *Session {
	if view == nil {
		view = NopView{}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	s := &Session{
		view:     view,
		sender:   sender,
		greeting: opts.Greeting,
		logger:   opts.Logger.With().Str("component", "session").Logger(),
		now:      opts.Now,
		state: State{
			Connection:            Disconnected,
			HistoryEnabled:        opts.HistoryEnabled,
			OfflineVisible:        true,
			EnableControlVisible:  !opts.HistoryEnabled,
			DisableControlVisible: opts.HistoryEnabled,
		},
	}
	if s.greeting != "" {
		s.state.ChatLog = []Entry{s.newEntry(RoleAssistant, s.greeting)}
	}

	s.inbound = map[protocol.EventCode]func(protocol.Frame){
		protocol.EventAssistantWait:    s.onAssistantWait,
		protocol.EventAssistantOutput:  s.onAssistantOutput,
		protocol.EventDiagnostic:       s.onDiagnostic,
		protocol.EventAssistantFinish:  s.onAssistantFinish,
		protocol.EventLoadSystemPrompt: s.onLoadSystemPrompt,
		protocol.EventPing:             s.onPing,
		protocol.EventPong:             func(protocol.Frame) {},
		protocol.EventConfirmed:        s.onConfirmed,
	}
	s.confirmations = map[protocol.EventCode]func(protocol.Confirmation){
		protocol.EventSystemPrompt:     func(protocol.Confirmation) { s.appendEntry(RoleStatus, StatusSystemPromptApplied) },
		protocol.EventUserPrompt:       func(protocol.Confirmation) { s.setSpinner(true) },
		protocol.EventResetHistory:     func(protocol.Confirmation) { s.appendEntry(RoleStatus, StatusHistoryReset) },
		protocol.EventEnableHistory:    s.onHistoryEnabled,
		protocol.EventDisableHistory:   s.onHistoryDisabled,
		protocol.EventCancelUserPrompt: func(protocol.Confirmation) { s.appendEntry(RoleStatus, StatusPromptCanceled) },
	}

	return s
}

// Start renders the initial state to the view.
func (s *Session) Start() {
	s.view.ClearEntries()
	for _, e := range s.state.ChatLog {
		s.view.AppendEntry(e)
	}
	s.view.SetInputEnabled(s.state.InputEnabled)
	s.view.SetSpinner(s.state.SpinnerActive)
	s.view.SetAssistantIcon(IconIdle)
	s.view.SetOfflineVisible(s.state.OfflineVisible)
	s.view.SetSystemPromptText(s.state.SystemPromptText)
	s.view.SetHistoryControlVisible(EnableHistoryControl, s.state.EnableControlVisible)
	s.view.SetHistoryControlVisible(DisableHistoryControl, s.state.DisableControlVisible)
}

// State returns a copy of the current session state.
func (s *Session) State() State {
	return s.state.clone()
}

// HandleMessage decodes a raw inbound message and applies it. Malformed
// messages are logged and dropped.
func (s *Session) HandleMessage(raw string) {
	frame, err := protocol.Decode(raw)
	if err != nil {
		s.logger.Warn().Err(err).Msg("dropping inbound message")
		return
	}
	s.HandleFrame(frame)
}

// HandleFrame applies one inbound frame. Codes without an inbound transition
// are logged and ignored.
func (s *Session) HandleFrame(frame protocol.Frame) {
	handler, ok := s.inbound[frame.Code]
	if !ok {
		s.logger.Warn().
			Str("tag", frame.Tag).
			Str("code", frame.Code.String()).
			Msg("unexpected event type")
		return
	}
	handler(frame)
}

func (s *Session) onAssistantWait(protocol.Frame) {
	s.setSpinner(true)
}

func (s *Session) onAssistantOutput(f protocol.Frame) {
	s.setSpinner(false)
	s.appendEntry(RoleAssistant, f.Payload)
}

func (s *Session) onDiagnostic(f protocol.Frame) {
	s.setSpinner(false)
	s.appendEntry(RoleDiagnostic, f.Payload)
}

func (s *Session) onAssistantFinish(protocol.Frame) {
	s.setSpinner(false)
	s.setAssistantBusy(false)
	s.setInputEnabled(true)
}

func (s *Session) onLoadSystemPrompt(f protocol.Frame) {
	s.setSystemPromptText(f.Payload)
}

func (s *Session) onPing(protocol.Frame) {
	_ = s.send(protocol.EventPong, pongPayload)
}

func (s *Session) onConfirmed(f protocol.Frame) {
	conf, err := f.Confirmation()
	if err != nil {
		s.logger.Warn().Err(err).Str("payload", f.Payload).Msg("dropping confirmation")
		return
	}
	handler, ok := s.confirmations[conf.Of]
	if !ok {
		s.logger.Warn().
			Str("tag", conf.Tag).
			Str("payload", f.Payload).
			Msg("unexpected confirmed event type")
		return
	}
	handler(conf)
}

func (s *Session) onHistoryEnabled(protocol.Confirmation) {
	s.appendEntry(RoleStatus, StatusHistoryEnabled)
	s.state.HistoryEnabled = true
	s.setHistoryControl(DisableHistoryControl, true)
	s.setHistoryControl(EnableHistoryControl, false)
}

func (s *Session) onHistoryDisabled(protocol.Confirmation) {
	s.appendEntry(RoleStatus, StatusHistoryDisabled)
	s.state.HistoryEnabled = false
	s.setHistoryControl(EnableHistoryControl, true)
	s.setHistoryControl(DisableHistoryControl, false)
}

// SubmitUserPrompt appends the prompt to the chat log, locks input until the
// assistant finishes and sends the prompt. Blank prompts are ignored with
// ErrEmptyPrompt.
func (s *Session) SubmitUserPrompt(text string) error {
	if strings.TrimSpace(text) == "" {
		return ErrEmptyPrompt
	}
	s.appendEntry(RoleUser, text)
	s.setInputEnabled(false)
	s.setAssistantBusy(true)
	return s.send(protocol.EventUserPrompt, text)
}

// SubmitSystemPrompt sends a system prompt unless it is blank.
func (s *Session) SubmitSystemPrompt(text string) error {
	if strings.TrimSpace(text) == "" {
		return ErrEmptyPrompt
	}
	s.state.SystemPromptText = text
	return s.send(protocol.EventSystemPrompt, text)
}

// CancelUserPrompt asks the backend to cancel the request in flight.
func (s *Session) CancelUserPrompt() error {
	return s.send(protocol.EventCancelUserPrompt, "")
}

// ResetHistory asks the backend to forget the request history.
func (s *Session) ResetHistory() error {
	return s.send(protocol.EventResetHistory, "")
}

// EnableHistory hides the enable control right away and asks the backend to
// keep request history. The control swap happens on confirmation.
func (s *Session) EnableHistory() error {
	s.setHistoryControl(EnableHistoryControl, false)
	return s.send(protocol.EventEnableHistory, "")
}

// DisableHistory is the counterpart of EnableHistory.
func (s *Session) DisableHistory() error {
	s.setHistoryControl(DisableHistoryControl, false)
	return s.send(protocol.EventDisableHistory, "")
}

// LoadSystemPrompt requests the backend's current system prompt. The answer
// arrives as an inbound LOAD_SYSTEM_PROMPT frame.
func (s *Session) LoadSystemPrompt() error {
	return s.send(protocol.EventLoadSystemPrompt, "")
}

// ClearChat resets the chat log to the greeting. Nothing is sent.
func (s *Session) ClearChat() {
	s.state.ChatLog = nil
	s.view.ClearEntries()
	if s.greeting != "" {
		s.appendEntry(RoleAssistant, s.greeting)
	}
}

// ClearSystemPrompt empties the system prompt field. Nothing is sent.
func (s *Session) ClearSystemPrompt() {
	s.setSystemPromptText("")
}

// RestoreLog replaces the chat log with entries, for example from a saved
// transcript.
func (s *Session) RestoreLog(entries []Entry) {
	s.state.ChatLog = nil
	s.view.ClearEntries()
	for _, e := range entries {
		if e.ID == "" {
			e.ID = uuid.NewString()
		}
		s.state.ChatLog = append(s.state.ChatLog, e)
		s.view.AppendEntry(e)
	}
}

// ConnectionConnecting records that a connection attempt is in progress.
func (s *Session) ConnectionConnecting() {
	s.state.Connection = Connecting
}

// ConnectionOpened enables input and hides the offline indicator.
func (s *Session) ConnectionOpened() {
	s.state.Connection = Open
	s.setInputEnabled(true)
	s.setOffline(false)
}

// ConnectionClosed disables input and shows the offline indicator. No entry
// is added to the chat log.
func (s *Session) ConnectionClosed(err error) {
	s.state.Connection = Disconnected
	s.setInputEnabled(false)
	s.setOffline(true)
	if err != nil {
		s.logger.Debug().Err(err).Msg("connection closed")
	}
}

func (s *Session) send(code protocol.EventCode, payload string) error {
	if s.sender == nil {
		return fmt.Errorf("failed to send %s: no sender", code)
	}
	if err := s.sender.Send(protocol.Encode(code, payload)); err != nil {
		s.logger.Warn().Err(err).Str("code", code.String()).Msg("send failed")
		return fmt.Errorf("failed to send %s: %w", code, err)
	}
	return nil
}

func (s *Session) newEntry(role Role, text string) Entry {
	return Entry{ID: uuid.NewString(), Role: role, Text: text, At: s.now()}
}

func (s *Session) appendEntry(role Role, text string) {
	e := s.newEntry(role, text)
	s.state.ChatLog = append(s.state.ChatLog, e)
	s.view.AppendEntry(e)
}

func (s *Session) setSpinner(active bool) {
	s.state.SpinnerActive = active
	s.view.SetSpinner(active)
}

func (s *Session) setInputEnabled(enabled bool) {
	s.state.InputEnabled = enabled
	s.view.SetInputEnabled(enabled)
}

func (s *Session) setAssistantBusy(busy bool) {
	s.state.AssistantBusy = busy
	icon := IconIdle
	if busy {
		icon = IconBusy
	}
	s.view.SetAssistantIcon(icon)
}

func (s *Session) setOffline(visible bool) {
	s.state.OfflineVisible = visible
	s.view.SetOfflineVisible(visible)
}

func (s *Session) setSystemPromptText(text string) {
	s.state.SystemPromptText = text
	s.view.SetSystemPromptText(text)
}

func (s *Session) setHistoryControl(control HistoryControl, visible bool) {
	if control == EnableHistoryControl {
		s.state.EnableControlVisible = visible
	} else {
		s.state.DisableControlVisible = visible
	}
	s.view.SetHistoryControlVisible(control, visible)
}
