package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/signalnine/greeksweep/internal/report"
	"github.com/signalnine/greeksweep/internal/result"
	"github.com/signalnine/greeksweep/internal/series"
)

var flagNoPlots bool

func newReportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report [run-dir]",
		Short: "Re-render plots and summary from a stored run",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			format, err := report.ParseFormat(flagFormat)
			if err != nil {
				return err
			}
			runDir := filepath.Join(cfg.Results.Dir, "latest")
			if len(args) > 0 {
				runDir = args[0]
			}
			resolved, err := filepath.EvalSymlinks(runDir)
			if err != nil {
				return fmt.Errorf("resolving run dir: %w", err)
			}
			set, err := loadSet(resolved)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if !flagNoPlots {
				if err := renderReports(out, resolved, cfg.Report, set); err != nil {
					return err
				}
			}
			return report.WriteSummary(out, set, format)
		},
	}
	cmd.Flags().StringVar(&flagFormat, "format", "table", "output format (table, markdown, json)")
	cmd.Flags().BoolVar(&flagNoPlots, "no-plots", false, "print the summary only")
	return cmd
}

func loadSet(runDir string) (*series.Set, error) {
	meta, err := result.ReadRunMeta(runDir)
	if err != nil {
		return nil, err
	}
	outcomes, err := result.ReadOutcomes(runDir)
	if err != nil {
		return nil, err
	}
	set, err := series.Build(outcomes, meta.Mode, meta.Requested)
	if err != nil {
		return nil, fmt.Errorf("aggregating %s: %w", runDir, err)
	}
	return set, nil
}
