// Package chat provides the session state machine that interprets protocol
// frames and drives an injected View.
package chat

import "time"

// Role identifies who produced a chat entry.
type Role int

const (
	RoleUser Role = iota
	RoleAssistant
	RoleDiagnostic
	RoleStatus
)

// String returns the string representation of Role
func (r Role) String() string {
	switch r {
	case RoleUser:
		return "user"
	case RoleAssistant:
		return "assistant"
	case RoleDiagnostic:
		return "diagnostic"
	case RoleStatus:
		return "status"
	default:
		return "unknown"
	}
}

// ParseRole is the inverse of Role.String. Unknown names map to RoleStatus.
func ParseRole(s string) Role {
	switch s {
	case "user":
		return RoleUser
	case "assistant":
		return RoleAssistant
	case "diagnostic":
		return RoleDiagnostic
	default:
		return RoleStatus
	}
}

// Entry is one rendered item of the chat log. Assistant and diagnostic text
// is HTML as produced by the backend.
type Entry struct {
	ID   string
	Role Role
	Text string
	At   time.Time
}

// HistoryControl names one of the two request-history toggles.
type HistoryControl int

const (
	EnableHistoryControl HistoryControl = iota
	DisableHistoryControl
)

// String returns the string representation of HistoryControl
func (h HistoryControl) String() string {
	if h == EnableHistoryControl {
		return "enable-history"
	}
	return "disable-history"
}

// AssistantIcon is the state of the assistant's activity indicator.
type AssistantIcon int

const (
	IconIdle AssistantIcon = iota
	IconBusy
)

// View renders session changes. Every method is called from the goroutine
// that drives the Session and must not block.
type View interface {
	AppendEntry(Entry)
	ClearEntries()
	SetSpinner(active bool)
	SetInputEnabled(enabled bool)
	SetSystemPromptText(text string)
	SetHistoryControlVisible(control HistoryControl, visible bool)
	SetAssistantIcon(icon AssistantIcon)
	SetOfflineVisible(visible bool)
}

// NopView discards every notification.
type NopView struct{}

func (NopView) AppendEntry(Entry)                             {}
func (NopView) ClearEntries()                                 {}
func (NopView) SetSpinner(bool)                               {}
func (NopView) SetInputEnabled(bool)                          {}
func (NopView) SetSystemPromptText(string)                    {}
func (NopView) SetHistoryControlVisible(HistoryControl, bool) {}
func (NopView) SetAssistantIcon(AssistantIcon)                {}
func (NopView) SetOfflineVisible(bool)                        {}
