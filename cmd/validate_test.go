package cmd

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/signalnine/greeksweep/internal/engine"
	"github.com/signalnine/greeksweep/internal/engine/enginetest"
	"github.com/signalnine/greeksweep/internal/result"
	"github.com/signalnine/greeksweep/internal/sweep"
)

// storeRun writes a two-sample run: S=90 lost its invocation to a pipe error
// after printing a full document, S=100 printed output that did not parse at
// the time but reads as a full document now.
func storeRun(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	doc := enginetest.Output(enginetest.Greeks{Price: 10.45, Delta: 0.63, FDDelta: 0.63, AADMicros: 12, FDMicros: 40})

	broken := engine.Sample{S: 90, K: 100, T: 1, R: 0.05, Sigma: 0.2}
	pipe := sweep.Classify(0, broken, &engine.Result{Sample: broken, Stdout: doc, Err: errors.New("broken pipe")}, sweep.ModeBoth)

	garbled := engine.Sample{S: 100, K: 100, T: 1, R: 0.05, Sigma: 0.2}
	parse := sweep.Classify(1, garbled, enginetest.Success(garbled, "Price (AAD): oops\n"), sweep.ModeBoth)
	parse.Raw.Stdout = doc

	outcomes := []sweep.Outcome{pipe, parse}
	meta := result.NewRunMeta(time.Now())
	meta.Mode = sweep.ModeBoth
	meta.Requested = len(outcomes)
	meta.Tally(outcomes)
	if err := result.WriteRunMeta(dir, meta); err != nil {
		t.Fatal(err)
	}
	if err := result.WriteOutcomes(dir, outcomes); err != nil {
		t.Fatal(err)
	}
	return dir
}

func TestValidateRecoversOnlyParseSkips(t *testing.T) {
	dir := storeRun(t)

	out, err := execute(t, "validate", dir)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	for _, want := range []string{
		"Sample 1 (S=90): still skipped: invocation failed",
		"Sample 2 (S=100): now parses",
		"2 incomplete samples checked, 1 recovered",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if meta, _ := result.ReadRunMeta(dir); meta.Succeeded != 0 {
		t.Errorf("run rewritten without --write: %+v", meta)
	}

	if _, err := execute(t, "validate", "--write", dir); err != nil {
		t.Fatalf("validate --write: %v", err)
	}
	meta, err := result.ReadRunMeta(dir)
	if err != nil {
		t.Fatal(err)
	}
	if meta.Succeeded != 1 || meta.Skipped != 1 {
		t.Errorf("meta after --write = %+v", meta)
	}
	outcomes, err := result.ReadOutcomes(dir)
	if err != nil {
		t.Fatal(err)
	}
	if !outcomes[1].Complete() || outcomes[0].Status != sweep.Skipped {
		t.Errorf("stored outcomes after --write: %+v", outcomes)
	}
}
