package sweep

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sync"

	"github.com/signalnine/greeksweep/internal/engine"
)

// Driver runs a sweep against one Invoker.
type Driver struct {
	Invoker engine.Invoker
	Mode    Mode
	// Parallel is the worker pool size; 1 or less runs samples one by one.
	Parallel int
	// Epsilon is the configured finite-difference step. It is not sent to
	// the engine, only compared with the step the engine reports.
	Epsilon float64
	// Out receives one progress line per sample.
	Out io.Writer

	mu          sync.Mutex
	epsilonOnce sync.Once
}

// Run processes samples and returns their outcomes in sample order. An
// unavailable engine aborts the sweep with an error wrapping
// engine.ErrUnavailable; if that is detected by the preflight check no
// outcome is recorded. On cancellation the outcomes collected so far are
// returned together with ctx.Err().
func (d *Driver) Run(ctx context.Context, samples []engine.Sample) ([]Outcome, error) {
	if err := d.Invoker.Check(ctx); err != nil {
		return nil, fmt.Errorf("engine preflight: %w", err)
	}
	mode := d.Mode
	if mode == "" {
		mode = ModeBoth
	}
	if d.Parallel > 1 {
		return d.runParallel(ctx, mode, samples)
	}

	var outcomes []Outcome
	for i, s := range samples {
		if err := ctx.Err(); err != nil {
			return outcomes, err
		}
		o, err := d.process(ctx, mode, i, len(samples), s)
		if err != nil {
			return outcomes, err
		}
		if o == nil {
			return outcomes, ctx.Err()
		}
		outcomes = append(outcomes, *o)
	}
	return outcomes, nil
}

func (d *Driver) runParallel(ctx context.Context, mode Mode, samples []engine.Sample) ([]Outcome, error) {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	slots := make([]*Outcome, len(samples))
	jobs := make([]Job, len(samples))
	for i, s := range samples {
		i, s := i, s
		jobs[i] = func(ctx context.Context) error {
			o, err := d.process(ctx, mode, i, len(samples), s)
			if err != nil {
				cancel()
				return err
			}
			slots[i] = o
			return nil
		}
	}
	errs := RunPool(runCtx, d.Parallel, jobs)

	var outcomes []Outcome
	for _, o := range slots {
		if o != nil {
			outcomes = append(outcomes, *o)
		}
	}
	for _, err := range errs {
		if errors.Is(err, engine.ErrUnavailable) {
			return outcomes, err
		}
	}
	if len(errs) > 0 {
		return outcomes, errs[0]
	}
	return outcomes, ctx.Err()
}

// process returns nil without error when the invocation was cut short by
// cancellation; such a sample is not recorded at all.
func (d *Driver) process(ctx context.Context, mode Mode, i, total int, s engine.Sample) (*Outcome, error) {
	res, err := d.Invoker.Invoke(ctx, s)
	if err != nil {
		return nil, fmt.Errorf("sample %d (S=%s): %w", i+1, engine.FormatFloat(s.S), err)
	}
	if res == nil {
		res = &engine.Result{ExitCode: -1, Err: errors.New("invoker returned no result")}
	}
	if ctx.Err() != nil && !res.OK() {
		return nil, nil
	}
	res.Sample = s
	o := Classify(i, s, res, mode)
	d.report(i, total, &o)
	return &o, nil
}

func (d *Driver) report(i, total int, o *Outcome) {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := d.Out
	if out == nil {
		out = io.Discard
	}
	spot := engine.FormatFloat(o.Sample.S)
	switch {
	case o.Status == Skipped:
		fmt.Fprintf(out, "Sample %d/%d S=%s: skipped\n", i+1, total, spot)
		log.Printf("warning: sample S=%s skipped: %s", spot, o.Reason)
		return
	case !o.Complete():
		fmt.Fprintf(out, "Sample %d/%d S=%s: partial\n", i+1, total, spot)
		log.Printf("warning: sample S=%s partly skipped: %s", spot, o.Reason)
	default:
		fmt.Fprintf(out, "Sample %d/%d S=%s: ok\n", i+1, total, spot)
	}
	if o.EngineEpsilon != nil && d.Epsilon > 0 && *o.EngineEpsilon != d.Epsilon {
		d.epsilonOnce.Do(func() {
			log.Printf("warning: engine reports epsilon %s but %s is configured; the configured step is not passed to the engine",
				engine.FormatFloat(*o.EngineEpsilon), engine.FormatFloat(d.Epsilon))
		})
	}
}
