package cmd

import (
	"github.com/spf13/cobra"

	"github.com/signalnine/greeksweep/internal/config"
)

var cfgFile string

func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "greeksweep",
		Short:        "Sweep an option pricing engine and compare AAD against finite differences",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file path (defaults are used when empty)")
	root.AddCommand(newRunCmd())
	root.AddCommand(newSamplesCmd())
	root.AddCommand(newReportCmd())
	root.AddCommand(newValidateCmd())
	return root
}

func loadConfig() (*config.Config, error) {
	if cfgFile == "" {
		cfg := config.Default()
		return cfg, config.Validate(cfg)
	}
	return config.Load(cfgFile)
}
