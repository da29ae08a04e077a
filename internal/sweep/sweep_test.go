package sweep_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/signalnine/greeksweep/internal/engine"
	"github.com/signalnine/greeksweep/internal/engine/enginetest"
	"github.com/signalnine/greeksweep/internal/sweep"
)

var fixed = sweep.Fixed{K: 100.0, T: 1.0, R: 0.05, Sigma: 0.2}

func greeksAt(s float64) enginetest.Greeks {
	return enginetest.Greeks{
		Price: s / 10, Delta: 0.5, Gamma: 0.02, Vega: 20, Theta: -5, Rho: 50,
		FDDelta: 0.51, FDGamma: 0.021, FDVega: 19.8, FDTheta: -4.9, FDRho: 49.5,
		AADMicros: 10, FDMicros: 30,
	}
}

// failing returns a fake engine that exits 1 for the listed spots and prints
// a full document for every other spot.
func failing(spots ...float64) *enginetest.Fake {
	bad := map[float64]bool{}
	for _, s := range spots {
		bad[s] = true
	}
	return &enginetest.Fake{
		Respond: func(ctx context.Context, s engine.Sample) (*engine.Result, error) {
			if bad[s.S] {
				return enginetest.Failure(s, 1, "engine blew up"), nil
			}
			return enginetest.Success(s, enginetest.Output(greeksAt(s.S))), nil
		},
	}
}

func TestLinspace(t *testing.T) {
	tests := []struct {
		name       string
		start, end float64
		count      int
		want       []float64
	}{
		{"three points", 90, 110, 3, []float64{90, 100, 110}},
		{"single point", 100, 100, 1, []float64{100}},
		{"zero count", 1, 2, 0, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := sweep.Linspace(tt.start, tt.end, tt.count)
			if fmt.Sprint(got) != fmt.Sprint(tt.want) {
				t.Errorf("Linspace = %v, want %v", got, tt.want)
			}
		})
	}

	got := sweep.Linspace(80, 120, 100)
	if len(got) != 100 || got[0] != 80 || got[99] != 120 {
		t.Fatalf("default grid endpoints: len=%d first=%v last=%v", len(got), got[0], got[len(got)-1])
	}
	for i := 1; i < len(got); i++ {
		if !(got[i] > got[i-1]) {
			t.Fatalf("grid not strictly increasing at %d: %v <= %v", i, got[i], got[i-1])
		}
	}
}

func TestSamples(t *testing.T) {
	samples, err := sweep.Samples(sweep.Range{Start: 90, End: 110, Count: 3}, fixed)
	if err != nil {
		t.Fatalf("Samples: %v", err)
	}
	for _, s := range samples {
		if s.K != 100 || s.T != 1 || s.R != 0.05 || s.Sigma != 0.2 {
			t.Errorf("fixed parameters not carried: %+v", s)
		}
	}

	bad := []sweep.Range{
		{Start: 1, End: 2, Count: 0},
		{Start: 2, End: 1, Count: 5},
		{Start: 1, End: 1, Count: 5},
		{Start: 1, End: 2, Count: 1},
	}
	for _, r := range bad {
		if _, err := sweep.Samples(r, fixed); err == nil {
			t.Errorf("Samples(%+v) should fail", r)
		}
	}
}

func TestParseMode(t *testing.T) {
	for _, s := range []string{"greeks", "timing", "both"} {
		if _, err := sweep.ParseMode(s); err != nil {
			t.Errorf("ParseMode(%q): %v", s, err)
		}
	}
	if _, err := sweep.ParseMode("all"); err == nil {
		t.Error("expected error for unknown mode")
	}
}

func TestClassify(t *testing.T) {
	s := engine.Sample{S: 100}
	full := enginetest.Output(greeksAt(100))
	greeksOnly := strings.Split(full, "\nExecution Times:")[0]

	tests := []struct {
		name     string
		res      *engine.Result
		mode     sweep.Mode
		status   sweep.Status
		greeks   sweep.Status
		timing   sweep.Status
		kind     sweep.SkipKind
		reason   string
		complete bool
	}{
		{"full document both", enginetest.Success(s, full), sweep.ModeBoth, sweep.Success, sweep.Success, sweep.Success, "", "", true},
		{"greeks only in greeks mode", enginetest.Success(s, greeksOnly), sweep.ModeGreeks, sweep.Success, sweep.Success, "", "", "", true},
		{"greeks only in both mode", enginetest.Success(s, greeksOnly), sweep.ModeBoth, sweep.Success, sweep.Success, sweep.Skipped, sweep.SkipParse, "parsing timing", false},
		{"greeks only in timing mode", enginetest.Success(s, greeksOnly), sweep.ModeTiming, sweep.Skipped, "", sweep.Skipped, sweep.SkipParse, "parsing timing", false},
		{"garbage", enginetest.Success(s, "segfault\n"), sweep.ModeGreeks, sweep.Skipped, sweep.Skipped, "", sweep.SkipParse, "parsing greeks: too_few_lines", false},
		{"non-zero exit", enginetest.Failure(s, 2, "oops"), sweep.ModeBoth, sweep.Skipped, sweep.Skipped, sweep.Skipped, sweep.SkipInvocation, "invocation failed: exited with status 2: oops", false},
		{"timeout", &engine.Result{Sample: s, TimedOut: true, ExitCode: 124, Stdout: full}, sweep.ModeBoth, sweep.Skipped, sweep.Skipped, sweep.Skipped, sweep.SkipInvocation, "timed out", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := sweep.Classify(7, s, tt.res, tt.mode)
			if o.Index != 7 || o.Sample != s {
				t.Errorf("identity lost: %+v", o)
			}
			if o.Status != tt.status {
				t.Fatalf("status: got %s, want %s (reason %q)", o.Status, tt.status, o.Reason)
			}
			if got := partStatus(o.GreeksPart); got != tt.greeks {
				t.Errorf("greeks status: got %q, want %q", got, tt.greeks)
			}
			if got := partStatus(o.TimingPart); got != tt.timing {
				t.Errorf("timing status: got %q, want %q", got, tt.timing)
			}
			if !strings.Contains(o.Reason, tt.reason) {
				t.Errorf("reason %q does not contain %q", o.Reason, tt.reason)
			}
			if o.Complete() != tt.complete {
				t.Errorf("Complete() = %v, want %v", o.Complete(), tt.complete)
			}
			if tt.kind != "" && o.Reparsable() != (tt.kind == sweep.SkipParse) {
				t.Errorf("Reparsable() = %v for kind %s", o.Reparsable(), tt.kind)
			}
			if o.GreeksPart != nil && o.GreeksPart.Status == sweep.Skipped && (o.AAD != nil || o.FD != nil) {
				t.Errorf("skipped greeks carry records: %+v", o)
			}
			if o.TimingPart != nil && o.TimingPart.Status == sweep.Skipped && o.Timing != nil {
				t.Errorf("skipped timing carries a record: %+v", o)
			}
			if tt.complete != (o.Raw == nil) {
				t.Errorf("raw result kept = %v, want %v", o.Raw != nil, !tt.complete)
			}
		})
	}
}

func partStatus(p *sweep.Part) sweep.Status {
	if p == nil {
		return ""
	}
	return p.Status
}

func TestClassifyKeysByDispatchedSample(t *testing.T) {
	s := engine.Sample{S: 104, K: 100, T: 1, R: 0.05, Sigma: 0.2}
	o := sweep.Classify(3, s, &engine.Result{Stdout: enginetest.Output(greeksAt(104))}, sweep.ModeBoth)
	if o.Sample != s || o.Status != sweep.Success {
		t.Errorf("outcome keyed by %+v (%s), want %+v", o.Sample, o.Status, s)
	}
}

// scenarioDoc is the twelve-line Greeks document without timing lines.
const scenarioDoc = "Price: 10.45\nDelta: 0.5\nGamma: 0.02\nVega: 20.0\nTheta: -5.0\nRho: 50.0\n\n" +
	"Delta: 0.51\nGamma: 0.021\nVega: 19.8\nTheta: -4.9\nRho: 49.5\n"

func TestDriverScenario(t *testing.T) {
	samples, _ := sweep.Samples(sweep.Range{Start: 90, End: 110, Count: 3}, fixed)
	fake := &enginetest.Fake{
		Respond: func(ctx context.Context, s engine.Sample) (*engine.Result, error) {
			if s.S == 100 {
				return enginetest.Success(s, scenarioDoc), nil
			}
			return enginetest.Failure(s, 1, ""), nil
		},
	}
	for _, mode := range []sweep.Mode{"", sweep.ModeBoth, sweep.ModeGreeks} {
		t.Run("mode "+string(mode), func(t *testing.T) {
			var out bytes.Buffer
			d := &sweep.Driver{Invoker: fake, Mode: mode, Out: &out}
			outcomes, err := d.Run(context.Background(), samples)
			if err != nil {
				t.Fatalf("Run: %v", err)
			}
			if d.Mode != mode {
				t.Errorf("Run changed the driver mode to %q", d.Mode)
			}
			if len(outcomes) != 3 {
				t.Fatalf("expected 3 outcomes, got %d", len(outcomes))
			}
			wantStatus := []sweep.Status{sweep.Skipped, sweep.Success, sweep.Skipped}
			for i, o := range outcomes {
				if o.Status != wantStatus[i] {
					t.Errorf("outcome %d (S=%v): got %s, want %s", i, o.Sample.S, o.Status, wantStatus[i])
				}
			}
			got := outcomes[1]
			if got.GreeksPart == nil || got.GreeksPart.Status != sweep.Success {
				t.Fatalf("S=100 greeks not obtained: %+v", got.GreeksPart)
			}
			if *got.AAD.Price != 10.45 || got.AAD.Delta != 0.5 || got.FD.Rho != 49.5 {
				t.Errorf("S=100 records: aad=%+v fd=%+v", got.AAD, got.FD)
			}
			if !strings.Contains(outcomes[0].Reason, "invocation failed") {
				t.Errorf("skip reason: %q", outcomes[0].Reason)
			}
			if !strings.Contains(out.String(), "Sample 2/3 S=100:") {
				t.Errorf("progress output missing: %q", out.String())
			}
		})
	}
}

func TestDriverIgnoresEchoedSample(t *testing.T) {
	samples, _ := sweep.Samples(sweep.Range{Start: 90, End: 110, Count: 3}, fixed)
	fake := &enginetest.Fake{
		Respond: func(ctx context.Context, s engine.Sample) (*engine.Result, error) {
			return &engine.Result{Stdout: enginetest.Output(greeksAt(s.S))}, nil
		},
	}
	for _, parallel := range []int{1, 3} {
		outcomes, err := (&sweep.Driver{Invoker: fake, Parallel: parallel}).Run(context.Background(), samples)
		if err != nil {
			t.Fatalf("parallel=%d: Run: %v", parallel, err)
		}
		for i, o := range outcomes {
			if o.Sample != samples[i] || o.Status != sweep.Success {
				t.Errorf("parallel=%d: outcome %d keyed by S=%v (%s), want S=%v", parallel, i, o.Sample.S, o.Status, samples[i].S)
			}
		}
	}
}

func TestDriverTotalFailure(t *testing.T) {
	samples, _ := sweep.Samples(sweep.Range{Start: 1, End: 10, Count: 10}, fixed)
	fake := &enginetest.Fake{
		Respond: func(ctx context.Context, s engine.Sample) (*engine.Result, error) {
			return enginetest.Failure(s, 1, "no"), nil
		},
	}
	outcomes, err := (&sweep.Driver{Invoker: fake}).Run(context.Background(), samples)
	if err != nil {
		t.Fatalf("total failure must not be an error: %v", err)
	}
	if len(outcomes) != 10 {
		t.Fatalf("expected 10 outcomes, got %d", len(outcomes))
	}
	for _, o := range outcomes {
		if o.Status != sweep.Skipped || o.Reason == "" {
			t.Errorf("expected skip with reason, got %+v", o)
		}
	}
}

func TestDriverFatalPreflight(t *testing.T) {
	samples, _ := sweep.Samples(sweep.Range{Start: 1, End: 10, Count: 10}, fixed)
	fake := &enginetest.Fake{CheckErr: fmt.Errorf("%w: ./european_option not found", engine.ErrUnavailable)}
	outcomes, err := (&sweep.Driver{Invoker: fake}).Run(context.Background(), samples)
	if !errors.Is(err, engine.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	if len(outcomes) != 0 {
		t.Errorf("expected zero outcomes, got %d", len(outcomes))
	}
	if n := len(fake.Calls()); n != 0 {
		t.Errorf("expected no invocations, got %d", n)
	}
}

func TestDriverFatalMidSweep(t *testing.T) {
	samples, _ := sweep.Samples(sweep.Range{Start: 1, End: 5, Count: 5}, fixed)
	fake := &enginetest.Fake{
		Respond: func(ctx context.Context, s engine.Sample) (*engine.Result, error) {
			if s.S == 3 {
				return nil, fmt.Errorf("%w: binary removed", engine.ErrUnavailable)
			}
			return enginetest.Success(s, enginetest.Output(greeksAt(s.S))), nil
		},
	}
	outcomes, err := (&sweep.Driver{Invoker: fake}).Run(context.Background(), samples)
	if !errors.Is(err, engine.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	if len(outcomes) != 2 {
		t.Errorf("expected the two outcomes before the failure, got %d", len(outcomes))
	}
}

func TestDriverParallelKeepsOrder(t *testing.T) {
	samples, _ := sweep.Samples(sweep.Range{Start: 80, End: 120, Count: 40}, fixed)
	inner := failing(samples[3].S, samples[17].S, samples[39].S)
	fake := &enginetest.Fake{
		Respond: func(ctx context.Context, s engine.Sample) (*engine.Result, error) {
			time.Sleep(time.Duration(rand.Intn(3)) * time.Millisecond)
			return inner.Respond(ctx, s)
		},
	}
	outcomes, err := (&sweep.Driver{Invoker: fake, Parallel: 8}).Run(context.Background(), samples)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(outcomes) != len(samples) {
		t.Fatalf("expected %d outcomes, got %d", len(samples), len(outcomes))
	}
	skipped := 0
	for i, o := range outcomes {
		if o.Index != i || o.Sample != samples[i] {
			t.Fatalf("outcome %d out of order: %+v", i, o.Sample)
		}
		if o.Status == sweep.Skipped {
			skipped++
		}
	}
	if skipped != 3 {
		t.Errorf("expected 3 skips, got %d", skipped)
	}
}

func TestDriverCancellation(t *testing.T) {
	samples, _ := sweep.Samples(sweep.Range{Start: 1, End: 10, Count: 10}, fixed)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	fake := &enginetest.Fake{
		Respond: func(ctx context.Context, s engine.Sample) (*engine.Result, error) {
			if s.S == 3 {
				cancel()
				return &engine.Result{Sample: s, ExitCode: -1, Err: ctx.Err()}, nil
			}
			return enginetest.Success(s, enginetest.Output(greeksAt(s.S))), nil
		},
	}
	outcomes, err := (&sweep.Driver{Invoker: fake}).Run(ctx, samples)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if len(outcomes) != 2 {
		t.Errorf("expected 2 completed outcomes, got %d", len(outcomes))
	}
	if n := len(fake.Calls()); n != 3 {
		t.Errorf("expected invocations to stop after cancellation, got %d", n)
	}
}

func TestPool(t *testing.T) {
	var count atomic.Int32
	jobs := make([]sweep.Job, 10)
	for i := range jobs {
		jobs[i] = func(ctx context.Context) error {
			count.Add(1)
			return nil
		}
	}
	errs := sweep.RunPool(context.Background(), 3, jobs)
	if len(errs) != 0 {
		t.Errorf("expected no errors, got %v", errs)
	}
	if count.Load() != 10 {
		t.Errorf("expected 10 jobs, got %d", count.Load())
	}
}

func TestPoolWithErrors(t *testing.T) {
	jobs := []sweep.Job{
		func(ctx context.Context) error { return nil },
		func(ctx context.Context) error { return fmt.Errorf("fail") },
		func(ctx context.Context) error { return nil },
	}
	errs := sweep.RunPool(context.Background(), 2, jobs)
	if len(errs) != 1 {
		t.Errorf("expected 1 error, got %d", len(errs))
	}
}

func TestPoolStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var started atomic.Int32
	jobs := make([]sweep.Job, 20)
	for i := range jobs {
		jobs[i] = func(ctx context.Context) error {
			if started.Add(1) == 2 {
				cancel()
			}
			return nil
		}
	}
	sweep.RunPool(ctx, 1, jobs)
	if n := started.Load(); n >= 20 {
		t.Errorf("expected dispatch to stop after cancel, ran %d jobs", n)
	}
}
