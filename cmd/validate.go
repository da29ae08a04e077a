package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/signalnine/greeksweep/internal/engine"
	"github.com/signalnine/greeksweep/internal/result"
	"github.com/signalnine/greeksweep/internal/sweep"
)

var flagWrite bool

func newValidateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <run-dir>",
		Short: "Re-parse the output kept for incomplete samples",
		Long:  "Walk the samples of a run directory that skipped a record because their output did not parse, and parse the retained engine output again. With --write, samples that now parse are stored back.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return revalidate(cmd, args[0])
		},
	}
	cmd.Flags().BoolVar(&flagWrite, "write", false, "store recovered samples back into the run")
	return cmd
}

func revalidate(cmd *cobra.Command, runDir string) error {
	out := cmd.OutOrStdout()
	meta, err := result.ReadRunMeta(runDir)
	if err != nil {
		return err
	}
	outcomes, err := result.ReadOutcomes(runDir)
	if err != nil {
		return err
	}

	var checked, recovered int
	for i, o := range outcomes {
		if o.SkippedParts() == 0 {
			continue
		}
		checked++
		spot := engine.FormatFloat(o.Sample.S)
		// Only output that failed to parse can change; a crash stays a crash.
		if !o.Reparsable() || o.Raw == nil || !o.Raw.OK() {
			fmt.Fprintf(out, "Sample %d (S=%s): still skipped: %s\n", o.Index+1, spot, o.Reason)
			continue
		}
		re := sweep.Classify(o.Index, o.Sample, o.Raw, meta.Mode)
		if re.SkippedParts() >= o.SkippedParts() {
			fmt.Fprintf(out, "Sample %d (S=%s): still skipped: %s\n", o.Index+1, spot, re.Reason)
			continue
		}
		recovered++
		fmt.Fprintf(out, "Sample %d (S=%s): now parses\n", o.Index+1, spot)
		outcomes[i] = re
	}
	fmt.Fprintf(out, "%d incomplete samples checked, %d recovered\n", checked, recovered)

	if !flagWrite || recovered == 0 {
		return nil
	}
	meta.Tally(outcomes)
	if err := result.WriteOutcomes(runDir, outcomes); err != nil {
		return err
	}
	if err := result.WriteRunMeta(runDir, meta); err != nil {
		return err
	}
	fmt.Fprintf(out, "Updated %s\n", runDir)
	return nil
}
