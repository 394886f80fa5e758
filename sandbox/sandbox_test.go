package sandbox

import (
	"context"
	"errors"
	"os/exec"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func requireShell(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("no shell available")
	}
}

func TestRunSuccess(t *testing.T) {
	requireShell(t)
	res := NewExecutor().Run(context.Background(), "echo hello && echo world", time.Second*5)
	require.Equal(t, Success, res.Outcome, "err: %v", res.Err)
	assert.Equal(t, 0, res.ExitCode)
	assert.Equal(t, "hello\nworld", res.Output)
	assert.Equal(t, "Command executed successfully:\nhello\nworld", res.Render())
}

func TestRunNonZeroExit(t *testing.T) {
	requireShell(t)
	res := NewExecutor().Run(context.Background(), "echo oops >&2; exit 3", 5*time.Second)
	require.Equal(t, NonZeroExit, res.Outcome)
	assert.Equal(t, 3, res.ExitCode)
	assert.Equal(t, "oops", res.Output)
	assert.Equal(t, "Error executing command (exit code 3):\noops", res.Render())
}

func TestRunTimeoutKeepsPartialOutput(t *testing.T) {
	requireShell(t)
	start := time.Now()
	res := NewExecutor().Run(context.Background(), "echo partial; sleep 5", 500*time.Millisecond)
	elapsed := time.Since(start)

	require.Equal(t, TimedOut, res.Outcome)
	assert.Equal(t, "partial", res.Output)
	assert.Less(t, elapsed, 4*time.Second, "process group should be killed promptly")

	rendered := res.Render()
	assert.Contains(t, rendered, "timed out after 0 seconds")
	assert.Contains(t, rendered, "I had to stop it")
	assert.True(t, strings.HasSuffix(rendered, "Partial output before timeout:\npartial"))
}

func TestRunNotFoundBeforeExecution(t *testing.T) {
	e := NewExecutor()
	e.lookPath = func(string) (string, error) { return "", exec.ErrNotFound }

	res := e.Run(context.Background(), "frobnicate --all", time.Second)
	require.Equal(t, NotFound, res.Outcome)
	var nf *NotFoundError
	require.ErrorAs(t, res.Err, &nf)
	assert.Equal(t, "frobnicate", nf.Name)
	assert.Equal(t, "Error: The command 'frobnicate' was not found on the system, nya~.", res.Render())
}

func TestRunExitNotFoundStatus(t *testing.T) {
	requireShell(t)
	res := NewExecutor().Run(context.Background(), "exit 127", time.Second*5)
	assert.Equal(t, NotFound, res.Outcome)
	assert.Equal(t, 127, res.ExitCode)
}

func TestRunGuardedFallbackReachesShell(t *testing.T) {
	requireShell(t)
	res := NewExecutor().Run(context.Background(), "nosuchcmd-archchan-xyz || echo no GPU found", 5*time.Second)
	require.Equal(t, Success, res.Outcome, "err: %v", res.Err)
	assert.Contains(t, res.Output, "no GPU found")
}

func TestRunListWithMissingCommandKeepsGoing(t *testing.T) {
	requireShell(t)
	res := NewExecutor().Run(context.Background(), "echo before; nosuchcmd-archchan-xyz; echo after", 5*time.Second)
	require.Equal(t, Success, res.Outcome, "err: %v", res.Err)
	assert.Contains(t, res.Output, "before")
	assert.Contains(t, res.Output, "after")
}

func TestRunMissingCommandInPipelineNamesIt(t *testing.T) {
	requireShell(t)
	res := NewExecutor().Run(context.Background(), "echo hi | nosuchcmd-archchan-xyz", 5*time.Second)
	require.Equal(t, NotFound, res.Outcome)
	var nf *NotFoundError
	require.ErrorAs(t, res.Err, &nf)
	assert.Equal(t, "nosuchcmd-archchan-xyz", nf.Name)
}

func TestRunSyntaxError(t *testing.T) {
	res := NewExecutor().Run(context.Background(), "echo 'unterminated", time.Second)
	require.Equal(t, SpawnError, res.Outcome)
	var se *SyntaxError
	assert.True(t, errors.As(res.Err, &se))
	assert.Equal(t, "Error: The command could not be started: it is not a valid shell command", res.Render())
}

func TestRunEmptyCommand(t *testing.T) {
	res := NewExecutor().Run(context.Background(), "   ", time.Second)
	assert.Equal(t, SpawnError, res.Outcome)
}

func TestRunCancelledContext(t *testing.T) {
	requireShell(t)
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(200 * time.Millisecond)
		cancel()
	}()
	res := NewExecutor().Run(ctx, "sleep 5", 10*time.Second)
	assert.Equal(t, SpawnError, res.Outcome)
	assert.ErrorIs(t, res.Err, context.Canceled)
}

func TestRunOutputIsBounded(t *testing.T) {
	requireShell(t)
	res := NewExecutor(WithMaxOutput(16)).Run(context.Background(), "echo 0123456789abcdefghijklmnop", 5*time.Second)
	require.Equal(t, Success, res.Outcome)
	assert.True(t, strings.HasPrefix(res.Output, "[... "))
	assert.True(t, strings.HasSuffix(res.Output, "ghijklmnop"))
}

func TestPreflight(t *testing.T) {
	known := map[string]bool{"ls": true, "grep": true}
	lookPath := func(name string) (string, error) {
		if known[name] {
			return "/usr/bin/" + name, nil
		}
		return "", exec.ErrNotFound
	}

	tests := []struct {
		command string
		missing string
	}{
		{"ls -l | grep foo", ""},
		{"cd /tmp && ls", ""},
		{"f() { ls; }; f", ""},
		{"$EDITOR file", ""},
		{"if true; then ls; fi", ""},
		{"ls | nosuchtool", ""},
		{"for i in 1 2; do missing $i; done", ""},
		{"nosuchtool || echo fallback", ""},
		{"which nmap && nmap -sn 10.0.0.0/24", ""},
		{"nosuchtool --version", "nosuchtool"},
		{"LANG=C nosuchtool", "nosuchtool"},
		{"./missing-script.sh", "./missing-script.sh"},
	}
	for _, tt := range tests {
		err := preflight(tt.command, lookPath)
		if tt.missing == "" {
			assert.NoError(t, err, tt.command)
			continue
		}
		var nf *NotFoundError
		if assert.ErrorAs(t, err, &nf, tt.command) {
			assert.Equal(t, tt.missing, nf.Name)
		}
	}
}

func TestParseTier(t *testing.T) {
	assert.Equal(t, Short, ParseTier("short"))
	assert.Equal(t, Medium, ParseTier(" Medium "))
	assert.Equal(t, Long, ParseTier("LONG"))
	assert.Equal(t, Short, ParseTier("forever"))
	assert.Equal(t, Short, ParseTier(""))

	assert.Equal(t, 15*time.Second, Short.Timeout())
	assert.Equal(t, 60*time.Second, Medium.Timeout())
	assert.Equal(t, 300*time.Second, Long.Timeout())
	assert.Equal(t, 15*time.Second, Tier(9).Timeout())
}

func TestRingBuffer(t *testing.T) {
	rb := newRingBuffer(8)
	rb.Write([]byte("abc"))
	assert.Equal(t, "abc", rb.String())
	assert.Zero(t, rb.Dropped())

	rb.Write([]byte("defghij"))
	assert.Equal(t, "cdefghij", rb.String())
	assert.EqualValues(t, 2, rb.Dropped())

	rb.Write([]byte("0123456789"))
	assert.Equal(t, "23456789", rb.String())
	assert.EqualValues(t, 12, rb.Dropped())
}
