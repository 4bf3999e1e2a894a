package chat

import (
	"errors"
	"fmt"
	"strings"
)

// Command kinds recognized in deck chat. Anything not starting with "/" is
// free text and goes through the conversational path.
type CommandKind string

const (
	CmdNone        CommandKind = ""
	CmdOutline     CommandKind = "outline"
	CmdExport      CommandKind = "export"
	CmdConfig      CommandKind = "config"
	CmdAutoApprove CommandKind = "auto-approve"
)

var ErrUnknownCommand = errors.New("unknown command")

// Command is one parsed chat instruction.
type Command struct {
	Kind CommandKind
	Args []string
}

// Parse splits a chat message into a command and its arguments. Free text
// returns CmdNone with the original message as the single argument.
func Parse(input string) (Command, error) {
	trimmed := strings.TrimSpace(input)
	if !strings.HasPrefix(trimmed, "/") {
		return Command{Kind: CmdNone, Args: []string{trimmed}}, nil
	}

	fields := strings.Fields(trimmed)
	name := strings.TrimPrefix(fields[0], "/")
	args := fields[1:]

	switch CommandKind(name) {
	case CmdOutline:
		if len(args) == 0 {
			return Command{}, errors.New("usage: /outline <topic>")
		}
		// The topic is everything after the command word, spaces intact.
		topic := strings.TrimSpace(strings.TrimPrefix(trimmed, fields[0]))
		return Command{Kind: CmdOutline, Args: []string{topic}}, nil
	case CmdExport:
		if len(args) != 1 {
			return Command{}, errors.New("usage: /export <pptx|pdf|html>")
		}
		return Command{Kind: CmdExport, Args: []string{strings.ToLower(args[0])}}, nil
	case CmdConfig:
		if len(args) != 2 {
			return Command{}, errors.New("usage: /config <key> <value>")
		}
		return Command{Kind: CmdConfig, Args: args}, nil
	case CmdAutoApprove:
		if len(args) != 1 || (args[0] != "on" && args[0] != "off") {
			return Command{}, errors.New("usage: /auto-approve on|off")
		}
		return Command{Kind: CmdAutoApprove, Args: args}, nil
	default:
		return Command{}, fmt.Errorf("%w: /%s", ErrUnknownCommand, name)
	}
}
