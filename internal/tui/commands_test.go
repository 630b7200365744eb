package tui_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omochice/assistant-session/internal/tui"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		line string
		want tui.Command
	}{
		{"hello there", tui.Command{Kind: tui.CmdPrompt, Arg: "hello there"}},
		{"//etc/hosts is a path", tui.Command{Kind: tui.CmdPrompt, Arg: "/etc/hosts is a path"}},
		{"/system Be brief.", tui.Command{Kind: tui.CmdSystem, Arg: "Be brief."}},
		{"/system", tui.Command{Kind: tui.CmdSystem}},
		{"/load", tui.Command{Kind: tui.CmdLoad}},
		{"/cancel", tui.Command{Kind: tui.CmdCancel}},
		{"/reset", tui.Command{Kind: tui.CmdReset}},
		{"/history on", tui.Command{Kind: tui.CmdHistoryOn}},
		{"/history OFF", tui.Command{Kind: tui.CmdHistoryOff}},
		{"/clear", tui.Command{Kind: tui.CmdClear}},
		{"/clearsystem", tui.Command{Kind: tui.CmdClearSystem}},
		{"/save chat.json", tui.Command{Kind: tui.CmdSave, Arg: "chat.json"}},
		{"/OPEN  chat.pb ", tui.Command{Kind: tui.CmdOpen, Arg: "chat.pb"}},
		{"/save", tui.Command{Kind: tui.CmdSave}},
		{"/help", tui.Command{Kind: tui.CmdHelp}},
		{"  /quit", tui.Command{Kind: tui.CmdQuit}},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			got, err := tui.ParseCommand(tt.line)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseCommand_Errors(t *testing.T) {
	_, err := tui.ParseCommand("/frobnicate")
	assert.ErrorIs(t, err, tui.ErrUnknownCommand)

	for _, line := range []string{"/history", "/history maybe"} {
		_, err := tui.ParseCommand(line)
		assert.Error(t, err, line)
	}
}
