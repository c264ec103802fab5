package speech

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// DefaultTimeout bounds a subprocess that was given no deadline.
const DefaultTimeout = 30 * time.Second

// Command describes one subprocess run.
type Command struct {
	Name string
	Args []string
	// Stdin is written to the process. Text is always passed this way and
	// never spliced into an argument string.
	Stdin []byte
	// Timeout overrides DefaultTimeout.
	Timeout time.Duration
	Env     []string
}

// Runner executes engine subprocesses.
type Runner interface {
	Run(ctx context.Context, cmd Command) ([]byte, error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

// Run starts cmd with stdin attached before start, waits for it and returns
// its stdout.
func (ExecRunner) Run(ctx context.Context, c Command) ([]byte, error) {
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, c.Name, c.Args...)
	cmd.Stdin = bytes.NewReader(c.Stdin)
	cmd.WaitDelay = 500 * time.Millisecond
	if len(c.Env) > 0 {
		cmd.Env = append(cmd.Environ(), c.Env...)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			if errors.Is(ctxErr, context.DeadlineExceeded) {
				return nil, fmt.Errorf("%s timed out: %w", c.Name, ctxErr)
			}
			return nil, fmt.Errorf("%s cancelled: %w", c.Name, ctxErr)
		}
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("%s failed: %w: %s", c.Name, err, msg)
		}
		return nil, fmt.Errorf("%s failed: %w", c.Name, err)
	}
	return stdout.Bytes(), nil
}

// CheckBinary reports whether name is on PATH.
func CheckBinary(name string) error {
	if _, err := exec.LookPath(name); err != nil {
		return fmt.Errorf("%w: %s not found in PATH", ErrEngineUnavailable, name)
	}
	return nil
}
