// Package transcript saves and restores the chat log.
//
// A transcript is a protobuf Struct. It is written as protojson when the file
// name ends in .json and as binary protobuf otherwise.
package transcript

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/timestamppb"

	"github.com/omochice/assistant-session/internal/chat"
)

// Version is the transcript layout written by Encode.
const Version = 1

// Format selects the transcript encoding.
type Format int

const (
	FormatBinary Format = iota
	FormatJSON
)

// String returns the string representation of Format
func (f Format) String() string {
	switch f {
	case FormatBinary:
		return "binary"
	case FormatJSON:
		return "json"
	default:
		return "unknown"
	}
}

// ErrUnsupportedVersion is returned when a transcript was written by a newer layout.
var ErrUnsupportedVersion = errors.New("unsupported transcript version")

// FormatFor picks the format from a file name.
func FormatFor(path string) Format {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return FormatJSON
	}
	return FormatBinary
}

// Encode serializes entries.
func Encode(entries []chat.Entry, format Format) ([]byte, error) {
	doc, err := toProto(entries)
	if err != nil {
		return nil, fmt.Errorf("failed to encode transcript: %w", err)
	}

	var data []byte
	switch format {
	case FormatJSON:
		data, err = protojson.MarshalOptions{Multiline: true, Indent: "  "}.Marshal(doc)
	default:
		data, err = proto.Marshal(doc)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to encode transcript: %w", err)
	}
	return data, nil
}

// Decode parses data written by Encode.
func Decode(data []byte, format Format) ([]chat.Entry, error) {
	doc := &structpb.Struct{}

	var err error
	switch format {
	case FormatJSON:
		err = protojson.Unmarshal(data, doc)
	default:
		err = proto.Unmarshal(data, doc)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to decode transcript: %w", err)
	}

	entries, err := fromProto(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to decode transcript: %w", err)
	}
	return entries, nil
}

// Save writes entries to path.
func Save(path string, entries []chat.Entry) error {
	data, err := Encode(entries, FormatFor(path))
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write transcript: %w", err)
	}
	return nil
}

// Load reads entries from path.
func Load(path string) ([]chat.Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read transcript: %w", err)
	}
	return Decode(data, FormatFor(path))
}

func toProto(entries []chat.Entry) (*structpb.Struct, error) {
	list := make([]any, 0, len(entries))
	for _, e := range entries {
		ts := timestamppb.New(e.At)
		list = append(list, map[string]any{
			"id":   e.ID,
			"role": e.Role.String(),
			"text": e.Text,
			"at": map[string]any{
				"seconds": float64(ts.GetSeconds()),
				"nanos":   float64(ts.GetNanos()),
			},
		})
	}

	return structpb.NewStruct(map[string]any{
		"version": float64(Version),
		"entries": list,
	})
}

func fromProto(doc *structpb.Struct) ([]chat.Entry, error) {
	fields := doc.GetFields()
	if v := int(fields["version"].GetNumberValue()); v != Version {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, v)
	}

	values := fields["entries"].GetListValue().GetValues()
	entries := make([]chat.Entry, 0, len(values))
	for i, v := range values {
		item := v.GetStructValue().GetFields()
		if item == nil {
			return nil, fmt.Errorf("entry %d is not an object", i)
		}

		at, err := entryTime(item["at"].GetStructValue())
		if err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
		entries = append(entries, chat.Entry{
			ID:   item["id"].GetStringValue(),
			Role: chat.ParseRole(item["role"].GetStringValue()),
			Text: item["text"].GetStringValue(),
			At:   at,
		})
	}
	return entries, nil
}

func entryTime(s *structpb.Struct) (time.Time, error) {
	if s == nil {
		return time.Time{}, nil
	}
	fields := s.GetFields()
	ts := &timestamppb.Timestamp{
		Seconds: int64(fields["seconds"].GetNumberValue()),
		Nanos:   int32(fields["nanos"].GetNumberValue()),
	}
	if err := ts.CheckValid(); err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp: %w", err)
	}
	return ts.AsTime(), nil
}
