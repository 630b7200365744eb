package tui

import (
	"errors"
	"fmt"
	"strings"
)

// CommandKind identifies what an input line asks for.
type CommandKind int

const (
	CmdPrompt CommandKind = iota
	CmdSystem
	CmdLoad
	CmdCancel
	CmdReset
	CmdHistoryOn
	CmdHistoryOff
	CmdClear
	CmdClearSystem
	CmdSave
	CmdOpen
	CmdHelp
	CmdQuit
)

// Command is one parsed input line.
type Command struct {
	Kind CommandKind
	Arg  string
}

// ErrUnknownCommand is returned for a slash command that does not exist.
var ErrUnknownCommand = errors.New("unknown command")

// HelpText lists the slash commands.
const HelpText = `/system [text]   send a system prompt (the loaded one when text is empty)
/load            load the backend's system prompt
/cancel          cancel the request in flight
/reset           reset request history
/history on|off  toggle request history
/clear           clear the chat log
/clearsystem     clear the system prompt
/save [path]     save the chat log
/open [path]     restore a saved chat log
/help            show this help
/quit            exit`

// ParseCommand parses an input line. Lines not starting with a slash are
// user prompts; a doubled slash escapes a prompt that starts with one.
func ParseCommand(line string) (Command, error) {
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, "/") {
		return Command{Kind: CmdPrompt, Arg: line}, nil
	}
	if strings.HasPrefix(trimmed, "//") {
		return Command{Kind: CmdPrompt, Arg: trimmed[1:]}, nil
	}

	name, arg, _ := strings.Cut(trimmed[1:], " ")
	name = strings.ToLower(name)
	arg = strings.TrimSpace(arg)

	switch name {
	case "system":
		return Command{Kind: CmdSystem, Arg: arg}, nil
	case "load":
		return Command{Kind: CmdLoad}, nil
	case "cancel":
		return Command{Kind: CmdCancel}, nil
	case "reset":
		return Command{Kind: CmdReset}, nil
	case "history":
		switch strings.ToLower(arg) {
		case "on", "enable":
			return Command{Kind: CmdHistoryOn}, nil
		case "off", "disable":
			return Command{Kind: CmdHistoryOff}, nil
		}
		return Command{}, errors.New("usage: /history on|off")
	case "clear":
		return Command{Kind: CmdClear}, nil
	case "clearsystem":
		return Command{Kind: CmdClearSystem}, nil
	case "save":
		return Command{Kind: CmdSave, Arg: arg}, nil
	case "open":
		return Command{Kind: CmdOpen, Arg: arg}, nil
	case "help", "?":
		return Command{Kind: CmdHelp}, nil
	case "quit", "exit", "q":
		return Command{Kind: CmdQuit}, nil
	default:
		return Command{}, fmt.Errorf("%w: /%s", ErrUnknownCommand, name)
	}
}
