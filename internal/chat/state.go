package chat

// ConnectionState is the lifecycle state of the transport connection.
type ConnectionState int

const (
	Disconnected ConnectionState = iota
	Connecting
	Open
)

// String returns the string representation of ConnectionState
func (s ConnectionState) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Open:
		return "open"
	default:
		return "unknown"
	}
}

// State is the session state owned by a Session.
type State struct {
	Connection       ConnectionState
	InputEnabled     bool
	HistoryEnabled   bool
	SpinnerActive    bool
	AssistantBusy    bool
	OfflineVisible   bool
	SystemPromptText string

	// EnableControlVisible and DisableControlVisible track the two
	// request-history toggles.
	EnableControlVisible  bool
	DisableControlVisible bool

	ChatLog []Entry
}

// clone returns a copy that shares no memory with s.
func (s State) clone() State {
	out := s
	out.ChatLog = append([]Entry(nil), s.ChatLog...)
	return out
}
