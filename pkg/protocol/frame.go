package protocol

import (
	"errors"
	"fmt"
	"unicode/utf8"
)

const (
	tagLen    = 2
	separator = ":"
)

var (
	// ErrMalformedFrame is returned when a raw message does not start with a
	// 2-byte ASCII tag.
	ErrMalformedFrame = errors.New("malformed frame")
	// ErrNotConfirmation is returned when a confirmation is requested from a
	// frame that is not CONFIRMED.
	ErrNotConfirmation = errors.New("frame is not a confirmation")
)

// Frame is one protocol message.
type Frame struct {
	Code EventCode
	// Tag is the raw 2-character tag as read from the wire. It is kept for
	// unknown codes so they can be logged.
	Tag     string
	Payload string
}

// NewFrame builds a frame for a known code.
func NewFrame(code EventCode, payload string) Frame {
	return Frame{Code: code, Tag: code.Tag(), Payload: payload}
}

// Encode produces the wire form "<tag>:<payload>". The payload is not escaped.
func Encode(code EventCode, payload string) string {
	return code.Tag() + separator + payload
}

// Decode parses a raw wire message. The first two bytes are the tag and
// everything after the separator is the payload. Tags are ASCII. A bare tag
// decodes with an empty payload. Unknown tags decode successfully with Code
// set to EventUnknown.
func Decode(raw string) (Frame, error) {
	if len(raw) < tagLen || !isASCII(raw[:tagLen]) {
		return Frame{}, fmt.Errorf("failed to decode %q: %w", raw, ErrMalformedFrame)
	}

	tag := raw[:tagLen]
	var payload string
	if len(raw) > tagLen {
		payload = raw[tagLen+len(separator):]
	}

	return Frame{
		Code:    ParseEventCode(tag),
		Tag:     tag,
		Payload: payload,
	}, nil
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= utf8.RuneSelf {
			return false
		}
	}
	return true
}

// String returns the wire form of the frame.
func (f Frame) String() string {
	tag := f.Tag
	if tag == "" {
		tag = f.Code.Tag()
	}
	return tag + separator + f.Payload
}

// Confirmation is the decoded content of a CONFIRMED frame.
type Confirmation struct {
	Of      EventCode
	Tag     string
	Payload string
}

// DecodeConfirmation decodes a CONFIRMED payload, which is itself a frame.
func DecodeConfirmation(payload string) (Confirmation, error) {
	inner, err := Decode(payload)
	if err != nil {
		return Confirmation{}, fmt.Errorf("failed to decode confirmation: %w", err)
	}
	return Confirmation{Of: inner.Code, Tag: inner.Tag, Payload: inner.Payload}, nil
}

// Confirmation returns the acknowledged command of a CONFIRMED frame.
func (f Frame) Confirmation() (Confirmation, error) {
	if f.Code != EventConfirmed {
		return Confirmation{}, fmt.Errorf("%s: %w", f.Code, ErrNotConfirmation)
	}
	return DecodeConfirmation(f.Payload)
}

// Confirm wraps a command code in a CONFIRMED frame as the backend sends it.
func Confirm(code EventCode) string {
	return Encode(EventConfirmed, code.Tag())
}
