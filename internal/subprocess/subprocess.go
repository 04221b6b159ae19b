// Package subprocess runs external tools in their own process group so a
// canceled job can stop the tool and everything it spawned.
package subprocess

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
)

// DefaultGrace is how long a canceled process gets between SIGTERM and SIGKILL.
const DefaultGrace = 5 * time.Second

const stderrTailBytes = 8 * 1024

// Command describes one tool invocation.
type Command struct {
	Binary string
	Args   []string
	// Env entries are appended to the current environment.
	Env    []string
	Dir    string
	Grace  time.Duration
	Stdout io.Writer
}

// Result carries what the process left behind for operator logs.
type Result struct {
	ExitCode   int
	StderrTail string
	Elapsed    time.Duration
}

// Run starts cmd in a new process group and waits for it. When ctx ends the
// whole group receives SIGTERM; if it has not exited after the grace period
// it is killed. The returned error wraps ctx.Err() in that case so callers
// can tell a timeout from a tool failure.
func Run(ctx context.Context, cmd Command) (Result, error) {
	if strings.TrimSpace(cmd.Binary) == "" {
		return Result{}, errors.New("subprocess: empty binary")
	}
	grace := cmd.Grace
	if grace <= 0 {
		grace = DefaultGrace
	}

	c := exec.CommandContext(ctx, cmd.Binary, cmd.Args...) //nolint:gosec
	c.Dir = cmd.Dir
	if len(cmd.Env) > 0 {
		c.Env = append(os.Environ(), cmd.Env...)
	}
	c.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	c.Cancel = func() error {
		return signalGroup(c.Process, unix.SIGTERM)
	}
	c.WaitDelay = grace
	tail := &tailBuffer{limit: stderrTailBytes}
	c.Stderr = tail
	if cmd.Stdout != nil {
		c.Stdout = cmd.Stdout
	}

	started := time.Now()
	if err := c.Start(); err != nil {
		return Result{}, fmt.Errorf("start %s: %w", cmd.Binary, err)
	}
	err := c.Wait()
	// Reap anything the leader left running in its group.
	_ = signalGroup(c.Process, unix.SIGKILL)

	result := Result{
		StderrTail: strings.TrimSpace(tail.String()),
		Elapsed:    time.Since(started),
	}
	if c.ProcessState != nil {
		result.ExitCode = c.ProcessState.ExitCode()
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return result, fmt.Errorf("%s interrupted: %w", cmd.Binary, ctxErr)
	}
	if err != nil {
		return result, fmt.Errorf("%s: %w", cmd.Binary, err)
	}
	return result, nil
}

func signalGroup(p *os.Process, sig unix.Signal) error {
	if p == nil || p.Pid <= 0 {
		return nil
	}
	err := unix.Kill(-p.Pid, sig)
	if errors.Is(err, unix.ESRCH) {
		return os.ErrProcessDone
	}
	return err
}

// tailBuffer keeps only the last limit bytes written to it.
type tailBuffer struct {
	mu    sync.Mutex
	buf   bytes.Buffer
	limit int
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := len(p)
	if len(p) > t.limit {
		p = p[len(p)-t.limit:]
	}
	t.buf.Write(p)
	if over := t.buf.Len() - t.limit; over > 0 {
		t.buf.Next(over)
	}
	return n, nil
}

func (t *tailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.buf.String()
}
