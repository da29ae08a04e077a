package engine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"syscall"
	"time"
)

const (
	// DefaultTimeout bounds one engine run when no timeout is configured.
	DefaultTimeout = 30 * time.Second
	// waitDelay bounds how long Wait blocks on output pipes after the
	// process has been killed.
	waitDelay = 2 * time.Second
)

// Exec runs the engine as a local child process.
type Exec struct {
	Path    string
	Timeout time.Duration
	// Env is appended to the parent environment, KEY=VALUE.
	Env []string
}

// Check verifies that Path resolves to an executable file.
func (e *Exec) Check(ctx context.Context) error {
	if e.Path == "" {
		return fmt.Errorf("%w: no engine path configured", ErrUnavailable)
	}
	if _, err := exec.LookPath(e.Path); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

func (e *Exec) Invoke(ctx context.Context, s Sample) (*Result, error) {
	res := &Result{Sample: s}
	if err := ctx.Err(); err != nil {
		res.Err = err
		res.ExitCode = -1
		return res, nil
	}

	runCtx, cancel := context.WithTimeout(ctx, e.timeout())
	defer cancel()

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(runCtx, e.Path, s.Args()...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = waitDelay
	if len(e.Env) > 0 {
		cmd.Env = append(os.Environ(), e.Env...)
	}

	start := time.Now()
	err := cmd.Run()
	res.Duration = time.Since(start)
	res.Stdout = stdout.String()
	res.Stderr = stderr.String()
	if err == nil {
		return res, nil
	}

	if cmd.Process == nil && launchFailure(err) {
		return nil, fmt.Errorf("%w: starting %s: %v", ErrUnavailable, e.Path, err)
	}
	switch {
	case ctx.Err() != nil:
		res.Err = ctx.Err()
		res.ExitCode = -1
	case errors.Is(runCtx.Err(), context.DeadlineExceeded):
		res.TimedOut = true
		res.ExitCode = 124
	default:
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			res.ExitCode = exitErr.ExitCode()
		} else {
			res.Err = err
			res.ExitCode = -1
		}
	}
	return res, nil
}

func (e *Exec) timeout() time.Duration {
	if e.Timeout > 0 {
		return e.Timeout
	}
	return DefaultTimeout
}

func launchFailure(err error) bool {
	return errors.Is(err, exec.ErrNotFound) ||
		errors.Is(err, fs.ErrNotExist) ||
		errors.Is(err, fs.ErrPermission) ||
		errors.Is(err, syscall.ENOEXEC)
}
