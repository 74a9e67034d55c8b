package runner

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	// DefaultTool is the coding-assistant executable invoked for directives.
	DefaultTool = "gemini"

	// NoOutput is returned by RunShell when the command printed nothing.
	NoOutput = "Command executed successfully with no output."
)

// Options configures a Runner.
type Options struct {
	// ToolPath is the coding-assistant executable (name on PATH or a path).
	// Defaults to DefaultTool.
	ToolPath string

	// ShellTimeout and ToolTimeout bound each invocation's wall-clock time.
	// Zero means no limit.
	ShellTimeout time.Duration
	ToolTimeout  time.Duration

	// Executor runs the processes. Defaults to LocalExecutor.
	Executor Executor

	Logger *zap.Logger
}

// Runner executes shell commands and the coding tool. It is stateless apart
// from its configuration and safe for concurrent use.
type Runner struct {
	shell        []string
	tool         string
	shellTimeout time.Duration
	toolTimeout  time.Duration
	exec         Executor
	log          *zap.Logger
}

// New resolves the platform shell and returns a Runner. It fails with
// ErrShellNotFound when no interpreter is available.
func New(opts Options) (*Runner, error) {
	shell, err := defaultShell()
	if err != nil {
		return nil, err
	}
	return newRunner(shell, opts), nil
}

func newRunner(shell []string, opts Options) *Runner {
	r := &Runner{
		shell:        shell,
		tool:         opts.ToolPath,
		shellTimeout: opts.ShellTimeout,
		toolTimeout:  opts.ToolTimeout,
		exec:         opts.Executor,
		log:          opts.Logger,
	}
	if r.tool == "" {
		r.tool = DefaultTool
	}
	if r.exec == nil {
		r.exec = LocalExecutor{}
	}
	if r.log == nil {
		r.log = zap.NewNop()
	}
	return r
}

// Tool returns the configured coding-tool executable.
func (r *Runner) Tool() string { return r.tool }

// RunShell runs command through the platform shell inside workdir and returns
// text suitable for sending to the user as-is. It never fails: a missing
// workdir, a non-zero exit and launch errors are all rendered as text.
func (r *Runner) RunShell(ctx context.Context, command, workdir string) string {
	dir, ok := resolveDir(workdir)
	if !ok {
		return fmt.Sprintf("Error: Directory '%s' not found.", dir)
	}

	ctx, cancel := r.bound(ctx, r.shellTimeout)
	defer cancel()

	start := time.Now()
	argv := append(append([]string(nil), r.shell...), command)
	res := r.exec.Exec(ctx, argv, dir)
	r.log.Debug("shell command finished",
		zap.String("workdir", dir),
		zap.Stringer("status", res.Status),
		zap.Int("exit_code", res.ExitCode),
		zap.Duration("duration", time.Since(start)),
	)

	switch res.Status {
	case StatusNotFound, StatusOSError:
		return fmt.Sprintf("An unexpected error occurred: %s", res.Detail)
	case StatusTimedOut:
		out := FormatOutput(res.Stdout, res.Stderr)
		notice := fmt.Sprintf("Command timed out after %s", r.shellTimeout)
		if out == NoOutput {
			return notice
		}
		return out + "\n\n" + notice
	}
	return FormatOutput(res.Stdout, res.Stderr)
}

// RunTool invokes `<tool> -p <instruction> -y` inside workdir. The instruction
// is passed as a single argv element and is never interpreted by a shell.
// On success the tool's stdout is returned verbatim.
//
// Errors are *WorkdirNotFoundError or *ToolError.
func (r *Runner) RunTool(ctx context.Context, instruction, workdir string) (string, error) {
	dir, ok := resolveDir(workdir)
	if !ok {
		return "", &WorkdirNotFoundError{Path: dir}
	}

	ctx, cancel := r.bound(ctx, r.toolTimeout)
	defer cancel()

	start := time.Now()
	res := r.exec.Exec(ctx, []string{r.tool, "-p", instruction, "-y"}, dir)
	r.log.Info("coding tool finished",
		zap.String("tool", r.tool),
		zap.String("workdir", dir),
		zap.Stringer("status", res.Status),
		zap.Int("exit_code", res.ExitCode),
		zap.Duration("duration", time.Since(start)),
	)

	switch res.Status {
	case StatusSucceeded:
		return res.Stdout, nil
	case StatusFailed:
		return "", &ToolError{Kind: ToolFailed, Tool: r.tool, ExitCode: res.ExitCode, Stderr: strings.TrimSpace(res.Stderr)}
	case StatusTimedOut:
		return "", &ToolError{Kind: ToolFailed, Tool: r.tool, ExitCode: -1, Stderr: fmt.Sprintf("timed out after %s", r.toolTimeout)}
	case StatusNotFound:
		return "", &ToolError{Kind: ToolNotFound, Tool: r.tool, Detail: res.Detail}
	default:
		return "", &ToolError{Kind: ToolOSError, Tool: r.tool, Detail: res.Detail}
	}
}

// FormatOutput renders captured shell output for the user.
func FormatOutput(stdout, stderr string) string {
	stdout = strings.TrimSpace(stdout)
	stderr = strings.TrimSpace(stderr)
	switch {
	case stdout != "" && stderr != "":
		return "--- stdout ---\n" + stdout + "\n--- stderr ---\n" + stderr
	case stdout != "":
		return stdout
	case stderr != "":
		return stderr
	default:
		return NoOutput
	}
}

// bound detaches ctx from caller cancellation (a started process always runs
// to completion) and applies the optional timeout.
func (r *Runner) bound(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	ctx = context.WithoutCancel(ctx)
	if timeout > 0 {
		return context.WithTimeout(ctx, timeout)
	}
	return context.WithCancel(ctx)
}

// resolveDir makes workdir absolute and reports whether it is an existing
// directory. The resolved path is returned either way for error messages.
func resolveDir(workdir string) (string, bool) {
	dir := workdir
	if dir == "" {
		dir = "."
	}
	if abs, err := filepath.Abs(dir); err == nil {
		dir = abs
	}
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return dir, false
	}
	return dir, true
}
