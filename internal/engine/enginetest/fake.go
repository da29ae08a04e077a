// Package enginetest provides an in-memory engine for tests.
package enginetest

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/signalnine/greeksweep/internal/engine"
)

// Fake answers invocations from Respond without spawning processes.
type Fake struct {
	// CheckErr is returned by Check.
	CheckErr error
	// Respond builds the result for a sample. A nil Respond returns an
	// empty successful result.
	Respond func(ctx context.Context, s engine.Sample) (*engine.Result, error)

	mu    sync.Mutex
	calls []engine.Sample
}

func (f *Fake) Check(ctx context.Context) error { return f.CheckErr }

func (f *Fake) Invoke(ctx context.Context, s engine.Sample) (*engine.Result, error) {
	f.mu.Lock()
	f.calls = append(f.calls, s)
	f.mu.Unlock()
	if f.Respond == nil {
		return &engine.Result{Sample: s}, nil
	}
	return f.Respond(ctx, s)
}

// Calls returns the samples invoked so far, in invocation order.
func (f *Fake) Calls() []engine.Sample {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]engine.Sample(nil), f.calls...)
}

// Greeks holds the values written by Output.
type Greeks struct {
	Price, Delta, Gamma, Vega, Theta, Rho float64
	FDDelta, FDGamma, FDVega, FDTheta, FDRho float64
	AADMicros, FDMicros                      float64
}

// Output renders g in the engine's stdout layout, including the FD header
// and timing section.
func Output(g Greeks) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Price (AAD): %v\n", g.Price)
	fmt.Fprintf(&b, "Delta (AAD): %v\n", g.Delta)
	fmt.Fprintf(&b, "Gamma (AAD): %v\n", g.Gamma)
	fmt.Fprintf(&b, "Vega (AAD): %v\n", g.Vega)
	fmt.Fprintf(&b, "Theta (AAD): %v\n", g.Theta)
	fmt.Fprintf(&b, "Rho (AAD): %v\n", g.Rho)
	b.WriteString("\nFinite Differences Results (epsilon = 0.01):\n")
	fmt.Fprintf(&b, "Delta (FD): %v\n", g.FDDelta)
	fmt.Fprintf(&b, "Gamma (FD): %v\n", g.FDGamma)
	fmt.Fprintf(&b, "Vega (FD): %v\n", g.FDVega)
	fmt.Fprintf(&b, "Theta (FD): %v\n", g.FDTheta)
	fmt.Fprintf(&b, "Rho (FD): %v\n", g.FDRho)
	b.WriteString("\nExecution Times:\n")
	fmt.Fprintf(&b, "AAD Calculation Time: %v microseconds\n", g.AADMicros)
	fmt.Fprintf(&b, "Finite Differences Calculation Time: %v microseconds\n", g.FDMicros)
	return b.String()
}

// Success returns a clean result carrying stdout.
func Success(s engine.Sample, stdout string) *engine.Result {
	return &engine.Result{Sample: s, Stdout: stdout}
}

// Failure returns a result that exited with code and printed stderr.
func Failure(s engine.Sample, code int, stderr string) *engine.Result {
	return &engine.Result{Sample: s, ExitCode: code, Stderr: stderr}
}
