package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/signalnine/greeksweep/internal/config"
	"github.com/signalnine/greeksweep/internal/docker"
	"github.com/signalnine/greeksweep/internal/engine"
	"github.com/signalnine/greeksweep/internal/report"
	"github.com/signalnine/greeksweep/internal/result"
	"github.com/signalnine/greeksweep/internal/series"
	"github.com/signalnine/greeksweep/internal/sweep"
)

var (
	flagStart    float64
	flagEnd      float64
	flagCount    int
	flagParallel int
	flagMode     string
	flagEngine   string
	flagTimeout  time.Duration
	flagOut      string
	flagFormat   string
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Sweep the engine and render the comparison reports",
		RunE:  runSweep,
	}
	addSweepFlags(cmd)
	cmd.Flags().IntVar(&flagParallel, "parallel", 1, "max concurrent engine invocations")
	cmd.Flags().StringVar(&flagMode, "mode", "", "records to collect (greeks, timing, both)")
	cmd.Flags().StringVar(&flagEngine, "engine", "", "engine binary path")
	cmd.Flags().DurationVar(&flagTimeout, "timeout", 0, "per-invocation timeout")
	cmd.Flags().StringVar(&flagOut, "out", "", "write results here instead of a new run directory")
	cmd.Flags().StringVar(&flagFormat, "format", "table", "summary format (table, markdown, json)")
	return cmd
}

func addSweepFlags(cmd *cobra.Command) {
	cmd.Flags().Float64Var(&flagStart, "start", 0, "first spot price")
	cmd.Flags().Float64Var(&flagEnd, "end", 0, "last spot price")
	cmd.Flags().IntVar(&flagCount, "count", 0, "number of samples")
}

func applySweepFlags(cmd *cobra.Command, cfg *config.Config) {
	f := cmd.Flags()
	if f.Changed("start") {
		cfg.Sweep.Start = flagStart
	}
	if f.Changed("end") {
		cfg.Sweep.End = flagEnd
	}
	if f.Changed("count") {
		cfg.Sweep.Count = flagCount
	}
}

func applyRunFlags(cmd *cobra.Command, cfg *config.Config) error {
	applySweepFlags(cmd, cfg)
	f := cmd.Flags()
	if f.Changed("parallel") {
		cfg.Parallel = flagParallel
	}
	if f.Changed("mode") {
		cfg.Mode = flagMode
	}
	if f.Changed("engine") {
		cfg.Engine.Path = flagEngine
	}
	if f.Changed("timeout") {
		cfg.Engine.TimeoutSeconds = flagTimeout.Seconds()
	}
	return config.Validate(cfg)
}

func runSweep(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := applyRunFlags(cmd, cfg); err != nil {
		return err
	}
	format, err := report.ParseFormat(flagFormat)
	if err != nil {
		return err
	}
	mode, err := sweep.ParseMode(cfg.Mode)
	if err != nil {
		return err
	}
	samples, err := sweep.Samples(cfg.Sweep, cfg.Fixed)
	if err != nil {
		return err
	}
	inv, closeInvoker, err := newInvoker(cfg)
	if err != nil {
		return err
	}
	defer closeInvoker()

	out := cmd.OutOrStdout()
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	meta := result.NewRunMeta(time.Now())
	meta.Engine = cfg.Engine.Path
	meta.Invoker = cfg.Engine.Mode
	meta.Mode = mode
	meta.Range = cfg.Sweep
	meta.Fixed = cfg.Fixed
	meta.Epsilon = cfg.Epsilon
	meta.Requested = len(samples)

	fmt.Fprintf(out, "Sweeping S from %s to %s (%d samples, mode %s)\n",
		engine.FormatFloat(cfg.Sweep.Start), engine.FormatFloat(cfg.Sweep.End), len(samples), mode)
	driver := &sweep.Driver{
		Invoker:  inv,
		Mode:     mode,
		Parallel: cfg.Parallel,
		Epsilon:  cfg.Epsilon,
		Out:      out,
	}
	outcomes, runErr := driver.Run(ctx, samples)
	switch {
	case errors.Is(runErr, engine.ErrUnavailable):
		return fmt.Errorf("aborting sweep: %w", runErr)
	case errors.Is(runErr, context.Canceled):
		fmt.Fprintf(out, "Sweep cancelled after %d of %d samples\n", len(outcomes), len(samples))
		meta.Aborted = runErr.Error()
	case runErr != nil:
		return runErr
	}
	meta.FinishedAt = time.Now().UTC()
	meta.Tally(outcomes)

	set, err := series.Build(outcomes, mode, len(samples))
	if err != nil {
		return fmt.Errorf("aggregating outcomes: %w", err)
	}

	runDir, err := outputDir(cfg, meta)
	if err != nil {
		return err
	}
	if err := result.WriteRunMeta(runDir, meta); err != nil {
		return err
	}
	if err := result.WriteOutcomes(runDir, outcomes); err != nil {
		return err
	}
	fmt.Fprintf(out, "Run directory: %s\n", runDir)

	if err := renderReports(out, runDir, cfg.Report, set); err != nil {
		return err
	}
	fmt.Fprintln(out, "\n--- Results ---")
	return report.WriteSummary(out, set, format)
}

func newInvoker(cfg *config.Config) (engine.Invoker, func(), error) {
	var env []string
	if cfg.Engine.EnvFile != "" {
		var err error
		if env, err = engine.LoadEnvFile(cfg.Engine.EnvFile); err != nil {
			return nil, nil, err
		}
	}
	if cfg.Engine.Mode == config.EngineDocker {
		inv := &docker.Invoker{
			Image:       cfg.Engine.Image,
			Binary:      cfg.Engine.Path,
			Timeout:     cfg.Engine.Timeout(),
			Env:         env,
			CPULimit:    cfg.Engine.CPULimit,
			MemoryLimit: cfg.Engine.MemoryLimit,
		}
		return inv, func() { inv.Close() }, nil
	}
	inv := &engine.Exec{Path: cfg.Engine.Path, Timeout: cfg.Engine.Timeout(), Env: env}
	return inv, func() {}, nil
}

func outputDir(cfg *config.Config, meta *result.RunMeta) (string, error) {
	if flagOut == "" {
		return result.CreateRunDir(cfg.Results.Dir, meta)
	}
	dir, err := filepath.Abs(flagOut)
	if err != nil {
		return "", fmt.Errorf("resolving output dir: %w", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating output dir: %w", err)
	}
	return dir, nil
}

// renderReports writes one plot per series the set carries.
func renderReports(out io.Writer, dir string, files config.Report, set *series.Set) error {
	if set.Empty() {
		fmt.Fprintln(out, "No data: every sample was skipped, writing empty reports")
	}
	type artifact struct {
		name   string
		file   string
		render func(io.Writer, *series.Series) error
		data   *series.Series
	}
	artifacts := []artifact{
		{"Timing comparison", files.TimingFile, report.RenderTiming, set.Timing},
		{"Greeks comparison", files.GreeksFile, report.RenderGreeks, set.Greeks},
	}
	for _, a := range artifacts {
		if a.data == nil {
			continue
		}
		path := filepath.Join(dir, a.file)
		if err := writeFile(path, func(w io.Writer) error { return a.render(w, a.data) }); err != nil {
			return fmt.Errorf("rendering %s: %w", a.file, err)
		}
		fmt.Fprintf(out, "%s plot saved to %s\n", a.name, path)
	}
	return nil
}

func writeFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
