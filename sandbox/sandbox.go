// Package sandbox runs shell commands proposed by the model under a hard
// time limit and classifies how each run ended.
package sandbox

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"syscall"
	"time"

	"github.com/berkucuk/archchan/index"
)

// exitNotFound is the shell's exit status for an unknown command.
const exitNotFound = 127

// waitDelay bounds how long Run waits for output pipes after the process group is killed.
const waitDelay = 2 * time.Second

// Outcome classifies a finished execution.
type Outcome int

const (
	Success Outcome = iota
	NonZeroExit
	TimedOut
	NotFound
	SpawnError
)

func (o Outcome) String() string {
	switch o {
	case Success:
		return "success"
	case NonZeroExit:
		return "non_zero_exit"
	case TimedOut:
		return "timed_out"
	case NotFound:
		return "not_found"
	default:
		return "spawn_error"
	}
}

// Result describes one command execution. It is never retried.
type Result struct {
	Command  string
	Outcome  Outcome
	ExitCode int
	// Output is combined stdout and stderr, trimmed. For TimedOut it is
	// whatever was produced before the process group was killed.
	Output   string
	Timeout  time.Duration
	Duration time.Duration
	// Err holds the cause for NotFound and SpawnError.
	Err error
}

// Render returns the user-facing description of the result.
func (r *Result) Render() string {
	switch r.Outcome {
	case Success:
		return "Command executed successfully:\n" + r.Output
	case NonZeroExit:
		out := r.Output
		if out == "" {
			out = "No specific error message from command."
		}
		return fmt.Sprintf("Error executing command (exit code %d):\n%s", r.ExitCode, out)
	case TimedOut:
		msg := fmt.Sprintf("The command '%s' timed out after %d seconds, nya~! It seems to be a very long-running process. "+
			"I had to stop it, so I don't have the full results. You could run it in a separate terminal, sweetie!",
			r.Command, int(r.Timeout.Seconds()))
		if r.Output != "" {
			msg += "\nPartial output before timeout:\n" + r.Output
		}
		return msg
	case NotFound:
		name := r.Command
		var nf *NotFoundError
		if errors.As(r.Err, &nf) {
			name = nf.Name
		}
		return fmt.Sprintf("Error: The command '%s' was not found on the system, nya~.", name)
	default:
		reason := "unknown error"
		var se *SyntaxError
		switch {
		case errors.As(r.Err, &se):
			reason = "it is not a valid shell command"
		case r.Err != nil:
			reason = r.Err.Error()
		}
		return "Error: The command could not be started: " + reason
	}
}

// Executor runs commands with /bin/sh -c in their own process group.
type Executor struct {
	shell     string
	dir       string
	maxOutput int
	lookPath  func(string) (string, error)
}

// Option configures an Executor.
type Option func(*Executor)

// WithShell sets the shell binary (default /bin/sh).
func WithShell(path string) Option {
	return func(e *Executor) {
		if path != "" {
			e.shell = path
		}
	}
}

// WithWorkDir sets the working directory for commands.
func WithWorkDir(dir string) Option {
	return func(e *Executor) { e.dir = dir }
}

// WithMaxOutput bounds captured output; earlier bytes are discarded first.
func WithMaxOutput(n int) Option {
	return func(e *Executor) {
		if n > 0 {
			e.maxOutput = n
		}
	}
}

// NewExecutor creates an executor.
func NewExecutor(opts ...Option) *Executor {
	e := &Executor{
		shell:     "/bin/sh",
		maxOutput: DefaultMaxOutput,
		lookPath:  exec.LookPath,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run executes command and waits at most timeout for it to finish.
// On timeout the whole process group is killed.
func (e *Executor) Run(ctx context.Context, command string, timeout time.Duration) *Result {
	if timeout <= 0 {
		timeout = Short.Timeout()
	}
	res := &Result{Command: command, Timeout: timeout, ExitCode: -1}
	logger := slog.With("command", index.RedactCommand(command), "timeout", timeout)

	if strings.TrimSpace(command) == "" {
		res.Outcome = SpawnError
		res.Err = errors.New("empty command")
		return res
	}

	if err := preflight(command, e.lookPath); err != nil {
		var nf *NotFoundError
		if errors.As(err, &nf) {
			res.Outcome = NotFound
		} else {
			res.Outcome = SpawnError
		}
		res.Err = err
		logger.Warn("command rejected before execution", "outcome", res.Outcome, "error", err)
		return res
	}

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	out := newRingBuffer(e.maxOutput)
	cmd := exec.CommandContext(runCtx, e.shell, "-c", command)
	cmd.Dir = e.dir
	cmd.Stdout = out
	cmd.Stderr = out
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		// Negative pid signals the whole group, including children of the shell.
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
	cmd.WaitDelay = waitDelay

	logger.Info("executing command")
	start := time.Now()
	err := cmd.Run()
	res.Duration = time.Since(start)
	res.Output = strings.TrimSpace(out.String())
	if dropped := out.Dropped(); dropped > 0 {
		res.Output = fmt.Sprintf("[... %d earlier bytes omitted ...]\n%s", dropped, res.Output)
	}

	var exitErr *exec.ExitError
	switch {
	case errors.Is(runCtx.Err(), context.DeadlineExceeded):
		res.Outcome = TimedOut
	case ctx.Err() != nil:
		res.Outcome = SpawnError
		res.Err = ctx.Err()
	case err == nil:
		res.Outcome = Success
		res.ExitCode = 0
	case errors.As(err, &exitErr):
		res.ExitCode = exitErr.ExitCode()
		if res.ExitCode == exitNotFound {
			res.Outcome = NotFound
			res.Err = &NotFoundError{Name: missingName(command, e.lookPath)}
		} else {
			res.Outcome = NonZeroExit
		}
	default:
		res.Outcome = SpawnError
		res.Err = err
	}

	logger.Info("command finished", "outcome", res.Outcome, "exit_code", res.ExitCode, "duration", res.Duration)
	return res
}
