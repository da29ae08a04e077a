package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/signalnine/greeksweep/internal/sweep"
)

type Config struct {
	Engine   Engine      `yaml:"engine"`
	Sweep    sweep.Range `yaml:"sweep"`
	Fixed    sweep.Fixed `yaml:"fixed"`
	Epsilon  float64     `yaml:"epsilon"`
	Mode     string      `yaml:"mode"`
	Parallel int         `yaml:"parallel"`
	Results  Results     `yaml:"results"`
	Report   Report      `yaml:"report"`
}

type Engine struct {
	Path           string  `yaml:"path"`
	Mode           string  `yaml:"mode"`
	Image          string  `yaml:"image"`
	TimeoutSeconds float64 `yaml:"timeout_seconds"`
	EnvFile        string  `yaml:"env_file"`
	CPULimit       float64 `yaml:"cpu_limit"`
	MemoryLimit    int64   `yaml:"memory_limit"`
}

// Timeout is the per-invocation bound.
func (e Engine) Timeout() time.Duration {
	return time.Duration(e.TimeoutSeconds * float64(time.Second))
}

type Results struct {
	Dir string `yaml:"dir"`
}

type Report struct {
	TimingFile string `yaml:"timing_file"`
	GreeksFile string `yaml:"greeks_file"`
}

const (
	EngineExec   = "exec"
	EngineDocker = "docker"
)

// Default returns the configuration of the reference analysis: S from 80
// to 120 in 100 points against K=100, T=1, r=0.05, sigma=0.2.
func Default() *Config {
	return &Config{
		Engine: Engine{
			Path:           "./european_option",
			Mode:           EngineExec,
			TimeoutSeconds: 30,
		},
		Sweep:    sweep.Range{Start: 80.0, End: 120.0, Count: 100},
		Fixed:    sweep.Fixed{K: 100.0, T: 1.0, R: 0.05, Sigma: 0.2},
		Epsilon:  0.01,
		Mode:     string(sweep.ModeBoth),
		Parallel: 1,
		Results:  Results{Dir: "results"},
		Report: Report{
			TimingFile: "timing_comparison.pdf",
			GreeksFile: "option_greeks_comparison.pdf",
		},
	}
}

// Load reads path over the defaults, so a file only needs the keys it
// changes.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks cfg and fills in defaults for empty optional fields.
func Validate(cfg *Config) error {
	if err := cfg.Sweep.Validate(); err != nil {
		return fmt.Errorf("sweep: %w", err)
	}
	if _, err := sweep.ParseMode(cfg.Mode); err != nil {
		return err
	}
	if cfg.Engine.Mode == "" {
		cfg.Engine.Mode = EngineExec
	}
	switch cfg.Engine.Mode {
	case EngineExec:
	case EngineDocker:
		if cfg.Engine.Image == "" {
			return fmt.Errorf("engine: image is required in docker mode")
		}
	default:
		return fmt.Errorf("engine: unknown mode %q (want exec or docker)", cfg.Engine.Mode)
	}
	if cfg.Engine.Path == "" {
		return fmt.Errorf("engine: path is required")
	}
	if cfg.Engine.TimeoutSeconds <= 0 {
		return fmt.Errorf("engine: timeout_seconds must be positive")
	}
	if cfg.Epsilon < 0 {
		return fmt.Errorf("epsilon must not be negative")
	}
	if cfg.Parallel < 1 {
		cfg.Parallel = 1
	}
	if cfg.Results.Dir == "" {
		cfg.Results.Dir = "results"
	}
	if cfg.Report.TimingFile == "" {
		cfg.Report.TimingFile = "timing_comparison.pdf"
	}
	if cfg.Report.GreeksFile == "" {
		cfg.Report.GreeksFile = "option_greeks_comparison.pdf"
	}
	return nil
}
