package runner

import (
	"errors"
	"fmt"
)

// ErrShellNotFound is returned by New when no command interpreter can be
// resolved for the host platform. It is a startup configuration error.
var ErrShellNotFound = errors.New("runner: no command shell available")

// ToolErrorKind classifies a failed coding-tool invocation.
type ToolErrorKind int

const (
	ToolNotFound ToolErrorKind = iota + 1
	ToolFailed
	ToolOSError
)

func (k ToolErrorKind) String() string {
	switch k {
	case ToolNotFound:
		return "tool_not_found"
	case ToolFailed:
		return "tool_failed"
	case ToolOSError:
		return "tool_os_error"
	}
	return "unknown"
}

// ToolError is returned by RunTool for every non-success outcome of the
// external tool process.
type ToolError struct {
	Kind     ToolErrorKind
	Tool     string
	ExitCode int    // ToolFailed only; -1 when the process was killed on timeout
	Stderr   string // ToolFailed only, trimmed
	Detail   string // ToolOSError / ToolNotFound
}

func (e *ToolError) Error() string {
	switch e.Kind {
	case ToolNotFound:
		return fmt.Sprintf("executable '%s' not found. Is it installed and on PATH?", e.Tool)
	case ToolFailed:
		return fmt.Sprintf("%s exited with status %d: %s", e.Tool, e.ExitCode, e.Stderr)
	default:
		return fmt.Sprintf("OS error while running %s: %s", e.Tool, e.Detail)
	}
}

// WorkdirNotFoundError reports that the directory a tool was asked to run in
// does not exist (or is not a directory).
type WorkdirNotFoundError struct {
	Path string
}

func (e *WorkdirNotFoundError) Error() string {
	return fmt.Sprintf("workdir '%s' is not an existing directory", e.Path)
}
