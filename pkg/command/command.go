// Package command classifies inbound chat messages.
//
// A message starting with Prefix is a command; everything else is
// conversation for the model:
//
//	!pwd          print the working directory
//	!cd           reset the working directory to the default
//	!cd <path>    change the working directory
//	!<anything>   run <anything> through the shell
package command

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Prefix marks a message as a command.
const Prefix = "!"

// Command is one of Shell, PrintDir, ResetDir, ChangeDir or Chat.
type Command interface {
	command()
}

// Shell is a raw command line for the platform shell.
type Shell struct{ Text string }

// PrintDir asks for the current working directory.
type PrintDir struct{}

// ResetDir moves the user back to the default working directory.
type ResetDir struct{}

// ChangeDir moves the user to Path (relative paths resolve against the
// current working directory).
type ChangeDir struct{ Path string }

// Chat is a conversational message for the model.
type Chat struct{ Text string }

func (Shell) command()     {}
func (PrintDir) command()  {}
func (ResetDir) command()  {}
func (ChangeDir) command() {}
func (Chat) command()      {}

// Classify maps every message to exactly one Command.
func Classify(message string) Command {
	rest, ok := strings.CutPrefix(message, Prefix)
	if !ok {
		return Chat{Text: message}
	}
	text := strings.TrimSpace(rest)

	switch {
	case text == "pwd":
		return PrintDir{}
	case text == "cd":
		return ResetDir{}
	case strings.HasPrefix(text, "cd") && startsWithSpace(text[2:]):
		return ChangeDir{Path: strings.TrimSpace(text[2:])}
	}
	return Shell{Text: text}
}

func startsWithSpace(s string) bool {
	r, _ := utf8.DecodeRuneInString(s)
	return unicode.IsSpace(r)
}
