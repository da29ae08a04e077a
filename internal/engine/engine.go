// Package engine invokes the external pricing engine for one sample and
// captures what it printed.
package engine

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ErrUnavailable means the engine cannot be launched at all. It aborts a
// sweep instead of skipping a sample.
var ErrUnavailable = errors.New("engine unavailable")

// Sample is one point of a sweep: the five positional engine arguments.
type Sample struct {
	S     float64 `json:"s" yaml:"s"`
	K     float64 `json:"k" yaml:"k"`
	T     float64 `json:"t" yaml:"t"`
	R     float64 `json:"r" yaml:"r"`
	Sigma float64 `json:"sigma" yaml:"sigma"`
}

// Args returns the engine argv in contract order: S K T r sigma.
func (s Sample) Args() []string {
	return []string{
		FormatFloat(s.S),
		FormatFloat(s.K),
		FormatFloat(s.T),
		FormatFloat(s.R),
		FormatFloat(s.Sigma),
	}
}

// FormatFloat renders v in the shortest form that parses back to v.
func FormatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// Result is the captured outcome of one engine process.
type Result struct {
	Sample   Sample        `json:"sample"`
	Stdout   string        `json:"stdout"`
	Stderr   string        `json:"stderr"`
	ExitCode int           `json:"exit_code"`
	TimedOut bool          `json:"timed_out"`
	Duration time.Duration `json:"duration_ns"`
	// Err is a process-level failure other than a non-zero exit, such as a
	// cancelled sweep or a broken output pipe.
	Err error `json:"-"`
}

// OK reports whether the engine exited cleanly.
func (r *Result) OK() bool {
	return r.Err == nil && !r.TimedOut && r.ExitCode == 0
}

// ExitReason classifies the result the same way for every invoker.
func (r *Result) ExitReason() string {
	if r.Err != nil {
		return "failed"
	}
	return ExitReasonFromCode(r.ExitCode, r.TimedOut)
}

// Reason describes a failed invocation for the operator. It returns "" when
// the invocation succeeded.
func (r *Result) Reason() string {
	switch {
	case r.Err != nil:
		return fmt.Sprintf("invocation error: %v", r.Err)
	case r.TimedOut:
		return fmt.Sprintf("timed out after %s", r.Duration.Round(time.Millisecond))
	case r.ExitCode != 0:
		msg := fmt.Sprintf("exited with status %d", r.ExitCode)
		if line := firstLine(r.Stderr); line != "" {
			msg += ": " + line
		}
		return msg
	}
	return ""
}

func ExitReasonFromCode(code int, timedOut bool) string {
	if timedOut {
		return "timeout"
	}
	if code == 0 {
		return "completed"
	}
	return "crashed"
}

// Invoker runs the engine. Invoke returns a non-nil error only when the
// engine is unavailable (wrapping ErrUnavailable); every other failure is
// reported on the Result.
type Invoker interface {
	Check(ctx context.Context) error
	Invoke(ctx context.Context, s Sample) (*Result, error)
}

func firstLine(s string) string {
	for _, line := range strings.Split(s, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			return line
		}
	}
	return ""
}
