// Package result stores sweep runs on disk: run metadata, every outcome and
// the raw engine output of skipped samples.
package result

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/signalnine/greeksweep/internal/engine"
	"github.com/signalnine/greeksweep/internal/sweep"
)

const (
	metaFile     = "meta.json"
	outcomesFile = "outcomes.json"
	rawDir       = "raw"
)

// CreateRunDir makes the directory of run under baseDir/runs, named by its
// start time and run ID, and repoints baseDir/latest at it.
func CreateRunDir(baseDir string, run *RunMeta) (string, error) {
	name := run.StartedAt.UTC().Format("20060102T150405") + "-" + shortID(run.RunID)
	rel := filepath.Join("runs", name)
	runDir, err := filepath.Abs(filepath.Join(baseDir, rel))
	if err != nil {
		return "", fmt.Errorf("resolving run dir: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(runDir), 0o755); err != nil {
		return "", fmt.Errorf("creating runs dir: %w", err)
	}
	if err := os.Mkdir(runDir, 0o755); err != nil {
		return "", fmt.Errorf("creating run dir: %w", err)
	}
	if err := pointLatest(baseDir, rel); err != nil {
		return "", err
	}
	return runDir, nil
}

// pointLatest swaps baseDir/latest to target in one rename, so readers never
// see the link missing. target is relative to baseDir.
func pointLatest(baseDir, target string) error {
	latest := filepath.Join(baseDir, "latest")
	tmp := latest + ".new"
	os.Remove(tmp)
	if err := os.Symlink(target, tmp); err != nil {
		return fmt.Errorf("creating latest symlink: %w", err)
	}
	if err := os.Rename(tmp, latest); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replacing latest symlink: %w", err)
	}
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// RawPath is where the captured output of the sample at index is kept.
func RawPath(runDir string, index int, ext string) string {
	return filepath.Join(runDir, rawDir, fmt.Sprintf("sample-%03d.%s", index, ext))
}

func WriteRunMeta(runDir string, meta *RunMeta) error {
	return writeJSON(filepath.Join(runDir, metaFile), meta)
}

func ReadRunMeta(runDir string) (*RunMeta, error) {
	var meta RunMeta
	if err := readJSON(filepath.Join(runDir, metaFile), &meta); err != nil {
		return nil, fmt.Errorf("reading run meta: %w", err)
	}
	return &meta, nil
}

// WriteOutcomes stores outcomes and, for every outcome that kept its raw
// result, its stdout, stderr and exit details.
func WriteOutcomes(runDir string, outcomes []sweep.Outcome) error {
	if err := writeJSON(filepath.Join(runDir, outcomesFile), outcomes); err != nil {
		return fmt.Errorf("writing outcomes: %w", err)
	}
	for _, o := range outcomes {
		if o.Raw == nil {
			continue
		}
		if err := writeJSON(RawPath(runDir, o.Index, "json"), o.Raw); err != nil {
			return fmt.Errorf("writing raw output of sample %d: %w", o.Index, err)
		}
		if err := os.WriteFile(RawPath(runDir, o.Index, "stdout"), []byte(o.Raw.Stdout), 0o644); err != nil {
			return fmt.Errorf("writing raw stdout of sample %d: %w", o.Index, err)
		}
	}
	return nil
}

// ReadOutcomes loads outcomes and reattaches the raw results kept for
// samples with a skipped record.
func ReadOutcomes(runDir string) ([]sweep.Outcome, error) {
	var outcomes []sweep.Outcome
	if err := readJSON(filepath.Join(runDir, outcomesFile), &outcomes); err != nil {
		return nil, fmt.Errorf("reading outcomes: %w", err)
	}
	for i := range outcomes {
		o := &outcomes[i]
		if o.SkippedParts() == 0 {
			continue
		}
		var raw engine.Result
		err := readJSON(RawPath(runDir, o.Index, "json"), &raw)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("reading raw output of sample %d: %w", o.Index, err)
		}
		o.Raw = &raw
	}
	return outcomes, nil
}

func writeJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", filepath.Dir(path), err)
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling %s: %w", filepath.Base(path), err)
	}
	return os.WriteFile(path, data, 0o644)
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parsing %s: %w", filepath.Base(path), err)
	}
	return nil
}
