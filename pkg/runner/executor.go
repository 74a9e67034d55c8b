// Package runner executes raw shell commands and the external coding tool on
// behalf of a user, inside that user's working directory.
//
// Execution goes through the Executor interface. The default LocalExecutor
// spawns a local subprocess; tests and alternative backends (SSH, containers)
// can supply their own implementation.
package runner

import (
	"bytes"
	"context"
	"errors"
	"io/fs"
	"os/exec"
	"time"

	"golang.org/x/text/encoding/unicode"
)

// Status classifies how a process invocation ended.
type Status int

const (
	StatusSucceeded Status = iota
	StatusFailed           // ran and exited non-zero
	StatusNotFound         // executable could not be located
	StatusOSError          // any other launch or wait failure
	StatusTimedOut         // killed after the configured timeout
)

func (s Status) String() string {
	switch s {
	case StatusSucceeded:
		return "succeeded"
	case StatusFailed:
		return "failed"
	case StatusNotFound:
		return "not_found"
	case StatusOSError:
		return "os_error"
	case StatusTimedOut:
		return "timed_out"
	}
	return "unknown"
}

// Result is the outcome of one process invocation.
type Result struct {
	Stdout   string
	Stderr   string
	Status   Status
	ExitCode int    // meaningful for StatusSucceeded and StatusFailed
	Detail   string // error detail for StatusNotFound / StatusOSError
}

// Executor runs argv[0] with argv[1:] in dir and reports the outcome.
// It never returns a Go error: every failure mode is classified in Result.
type Executor interface {
	Exec(ctx context.Context, argv []string, dir string) Result
}

// ---------------------------------------------------------------------------
// LocalExecutor: default implementation
// ---------------------------------------------------------------------------

// waitDelay bounds how long Wait blocks on inherited pipes after the process
// is killed (a shell's background children can hold them open).
const waitDelay = 5 * time.Second

// LocalExecutor runs processes on the local machine.
type LocalExecutor struct{}

// Exec implements Executor. Output streams are captured separately and
// decoded as UTF-8; invalid byte sequences become U+FFFD and a leading BOM is
// dropped.
func (LocalExecutor) Exec(ctx context.Context, argv []string, dir string) Result {
	if len(argv) == 0 {
		return Result{Status: StatusOSError, ExitCode: -1, Detail: "empty command"}
	}

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = dir
	cmd.WaitDelay = waitDelay

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	res := Result{
		Stdout: decodeUTF8(stdout.Bytes()),
		Stderr: decodeUTF8(stderr.Bytes()),
	}

	var exitErr *exec.ExitError
	switch {
	case err == nil:
		res.Status = StatusSucceeded
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		res.Status = StatusTimedOut
		res.ExitCode = -1
		res.Detail = ctx.Err().Error()
	case errors.Is(err, exec.ErrNotFound), errors.Is(err, fs.ErrNotExist):
		res.Status = StatusNotFound
		res.ExitCode = -1
		res.Detail = err.Error()
	case errors.As(err, &exitErr):
		res.Status = StatusFailed
		res.ExitCode = exitErr.ExitCode()
	default:
		res.Status = StatusOSError
		res.ExitCode = -1
		res.Detail = err.Error()
	}
	return res
}

func decodeUTF8(b []byte) string {
	if len(b) == 0 {
		return ""
	}
	out, err := unicode.UTF8BOM.NewDecoder().Bytes(b)
	if err != nil {
		return string(bytes.ToValidUTF8(b, []byte("�")))
	}
	return string(out)
}
