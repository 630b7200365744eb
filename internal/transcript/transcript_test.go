package transcript_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/omochice/assistant-session/internal/chat"
	"github.com/omochice/assistant-session/internal/transcript"
)

func sampleEntries() []chat.Entry {
	at := time.Date(2026, 10, 19, 9, 30, 0, 123456789, time.UTC)
	return []chat.Entry{
		{ID: "a", Role: chat.RoleAssistant, Text: chat.DefaultGreeting, At: at},
		{ID: "b", Role: chat.RoleUser, Text: "what is 2+2?", At: at.Add(time.Second)},
		{ID: "c", Role: chat.RoleAssistant, Text: "<p><strong>4</strong></p>", At: at.Add(2 * time.Second)},
		{ID: "d", Role: chat.RoleStatus, Text: chat.StatusHistoryReset, At: at.Add(3 * time.Second)},
		{ID: "e", Role: chat.RoleDiagnostic, Text: "<p>boom</p>", At: at.Add(4 * time.Second)},
	}
}

func TestEncodeDecode(t *testing.T) {
	for _, format := range []transcript.Format{transcript.FormatBinary, transcript.FormatJSON} {
		t.Run(format.String(), func(t *testing.T) {
			entries := sampleEntries()

			data, err := transcript.Encode(entries, format)
			require.NoError(t, err)

			got, err := transcript.Decode(data, format)
			require.NoError(t, err)
			assert.Equal(t, entries, got)
		})
	}
}

func TestEncode_JSONLayout(t *testing.T) {
	data, err := transcript.Encode(sampleEntries()[:1], transcript.FormatJSON)
	require.NoError(t, err)

	doc := &structpb.Struct{}
	require.NoError(t, protojson.Unmarshal(data, doc))
	assert.Equal(t, float64(transcript.Version), doc.Fields["version"].GetNumberValue())

	entry := doc.Fields["entries"].GetListValue().GetValues()[0].GetStructValue()
	assert.Equal(t, "assistant", entry.Fields["role"].GetStringValue())
	assert.Equal(t, chat.DefaultGreeting, entry.Fields["text"].GetStringValue())
}

func TestDecode_Errors(t *testing.T) {
	tests := []struct {
		name string
		json string
	}{
		{name: "not json", json: "nope"},
		{name: "future version", json: `{"version": 2, "entries": []}`},
		{name: "entry not an object", json: `{"version": 1, "entries": ["x"]}`},
		{name: "bad timestamp", json: `{"version": 1, "entries": [{"at": {"seconds": 1e15}}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := transcript.Decode([]byte(tt.json), transcript.FormatJSON)
			assert.Error(t, err)
		})
	}

	_, err := transcript.Decode([]byte(`{"version": 7}`), transcript.FormatJSON)
	assert.ErrorIs(t, err, transcript.ErrUnsupportedVersion)
}

func TestDecode_Empty(t *testing.T) {
	got, err := transcript.Decode([]byte(`{"version": 1}`), transcript.FormatJSON)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSaveLoad(t *testing.T) {
	dir := t.TempDir()
	entries := sampleEntries()

	for _, name := range []string{"chat.json", "chat.pb"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name)
			require.NoError(t, transcript.Save(path, entries))

			got, err := transcript.Load(path)
			require.NoError(t, err)
			assert.Equal(t, entries, got)
		})
	}

	raw, err := os.ReadFile(filepath.Join(dir, "chat.json"))
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"what is 2+2?"`)
}

func TestLoad_Missing(t *testing.T) {
	_, err := transcript.Load(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestFormatFor(t *testing.T) {
	assert.Equal(t, transcript.FormatJSON, transcript.FormatFor("a/b/chat.JSON"))
	assert.Equal(t, transcript.FormatBinary, transcript.FormatFor("chat.pb"))
	assert.Equal(t, transcript.FormatBinary, transcript.FormatFor("chat"))
}
