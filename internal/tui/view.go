package tui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/omochice/assistant-session/internal/chat"
)

// MessageSender is implemented by *tea.Program.
type MessageSender interface {
	Send(msg tea.Msg)
}

type (
	entryMsg         chat.Entry
	clearEntriesMsg  struct{}
	spinnerMsg       bool
	inputEnabledMsg  bool
	systemPromptMsg  string
	offlineMsg       bool
	assistantIconMsg chat.AssistantIcon
)

type historyControlMsg struct {
	control chat.HistoryControl
	visible bool
}

// ProgramView implements chat.View by forwarding every notification to a
// bubbletea program as a message.
type ProgramView struct {
	sender MessageSender
}

// NewProgramView creates a ProgramView sending to s.
func NewProgramView(s MessageSender) *ProgramView {
	return &ProgramView{sender: s}
}

func (v *ProgramView) AppendEntry(e chat.Entry)                 { v.sender.Send(entryMsg(e)) }
func (v *ProgramView) ClearEntries()                            { v.sender.Send(clearEntriesMsg{}) }
func (v *ProgramView) SetSpinner(active bool)                   { v.sender.Send(spinnerMsg(active)) }
func (v *ProgramView) SetInputEnabled(enabled bool)             { v.sender.Send(inputEnabledMsg(enabled)) }
func (v *ProgramView) SetSystemPromptText(text string)          { v.sender.Send(systemPromptMsg(text)) }
func (v *ProgramView) SetAssistantIcon(icon chat.AssistantIcon) { v.sender.Send(assistantIconMsg(icon)) }
func (v *ProgramView) SetOfflineVisible(visible bool)           { v.sender.Send(offlineMsg(visible)) }

func (v *ProgramView) SetHistoryControlVisible(control chat.HistoryControl, visible bool) {
	v.sender.Send(historyControlMsg{control: control, visible: visible})
}

var _ chat.View = (*ProgramView)(nil)
