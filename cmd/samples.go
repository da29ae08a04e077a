package cmd

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/signalnine/greeksweep/internal/engine"
	"github.com/signalnine/greeksweep/internal/sweep"
)

func newSamplesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "samples",
		Short: "List the sample grid and the engine command for each sample",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			applySweepFlags(cmd, cfg)
			samples, err := sweep.Samples(cfg.Sweep, cfg.Fixed)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "#\tS\tCOMMAND")
			for i, s := range samples {
				fmt.Fprintf(tw, "%d\t%s\t%s %s\n", i+1, engine.FormatFloat(s.S), cfg.Engine.Path, strings.Join(s.Args(), " "))
			}
			return tw.Flush()
		},
	}
	addSweepFlags(cmd)
	return cmd
}
