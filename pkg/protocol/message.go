// Package protocol implements the framed text protocol spoken between the
// session client and the assistant backend.
package protocol

// EventCode identifies the meaning and direction of a frame.
type EventCode int

const (
	// EventUnknown is used for tags that are not part of the protocol.
	EventUnknown EventCode = iota
	EventUserPrompt
	EventSystemPrompt
	EventAssistantWait
	EventAssistantOutput
	EventAssistantFinish
	EventPing
	EventPong
	EventDiagnostic
	EventConfirmed
	EventResetHistory
	EventEnableHistory
	EventDisableHistory
	EventCancelUserPrompt
	EventLoadSystemPrompt
)

// Direction tells which side of the connection originates a code.
type Direction int

const (
	DirectionUnknown Direction = iota
	ClientToServer
	ServerToClient
	// Both is used by LOAD_SYSTEM_PROMPT, which is a request from the client
	// and an answer from the server.
	Both
)

// String returns the string representation of Direction
func (d Direction) String() string {
	switch d {
	case ClientToServer:
		return "client->server"
	case ServerToClient:
		return "server->client"
	case Both:
		return "both"
	default:
		return "unknown"
	}
}

type codeInfo struct {
	tag       string
	name      string
	direction Direction
}

var codes = map[EventCode]codeInfo{
	EventUserPrompt:       {"01", "USER_PROMPT", ClientToServer},
	EventSystemPrompt:     {"02", "SYSTEM_PROMPT", ClientToServer},
	EventAssistantWait:    {"03", "ASSISTANT_WAIT", ServerToClient},
	EventAssistantOutput:  {"04", "ASSISTANT_OUTPUT", ServerToClient},
	EventAssistantFinish:  {"05", "ASSISTANT_FINISH", ServerToClient},
	EventPing:             {"06", "PING", ServerToClient},
	EventPong:             {"07", "PONG", ClientToServer},
	EventDiagnostic:       {"08", "DIAGNOSTIC", ServerToClient},
	EventConfirmed:        {"09", "CONFIRMED", ServerToClient},
	EventResetHistory:     {"10", "RESET_HISTORY", ClientToServer},
	EventEnableHistory:    {"11", "ENABLE_HISTORY", ClientToServer},
	EventDisableHistory:   {"12", "DISABLE_HISTORY", ClientToServer},
	EventCancelUserPrompt: {"14", "CANCEL_USER_PROMPT", ClientToServer},
	EventLoadSystemPrompt: {"15", "LOAD_SYSTEM_PROMPT", Both},
}

var tags = func() map[string]EventCode {
	m := make(map[string]EventCode, len(codes))
	for code, info := range codes {
		m[info.tag] = code
	}
	return m
}()

// Codes returns every known event code in wire order.
func Codes() []EventCode {
	return []EventCode{
		EventUserPrompt,
		EventSystemPrompt,
		EventAssistantWait,
		EventAssistantOutput,
		EventAssistantFinish,
		EventPing,
		EventPong,
		EventDiagnostic,
		EventConfirmed,
		EventResetHistory,
		EventEnableHistory,
		EventDisableHistory,
		EventCancelUserPrompt,
		EventLoadSystemPrompt,
	}
}

// ParseEventCode maps a 2-character wire tag to its EventCode.
// Unrecognized tags map to EventUnknown.
func ParseEventCode(tag string) EventCode {
	if code, ok := tags[tag]; ok {
		return code
	}
	return EventUnknown
}

// Tag returns the 2-character wire tag, or "" for EventUnknown.
func (c EventCode) Tag() string {
	return codes[c].tag
}

// String returns the string representation of EventCode
func (c EventCode) String() string {
	if info, ok := codes[c]; ok {
		return info.name
	}
	return "UNKNOWN"
}

// Direction returns which side originates the code.
func (c EventCode) Direction() Direction {
	return codes[c].direction
}

// IsKnown reports whether c is one of the protocol's codes.
func (c EventCode) IsKnown() bool {
	_, ok := codes[c]
	return ok
}
