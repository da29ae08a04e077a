package sweep

import (
	"fmt"
	"strings"

	"github.com/signalnine/greeksweep/internal/engine"
	"github.com/signalnine/greeksweep/internal/protocol"
)

// Mode selects which records are collected from each sample.
type Mode string

const (
	ModeGreeks Mode = "greeks"
	ModeTiming Mode = "timing"
	ModeBoth   Mode = "both"
)

func ParseMode(s string) (Mode, error) {
	switch m := Mode(s); m {
	case ModeGreeks, ModeTiming, ModeBoth:
		return m, nil
	}
	return "", fmt.Errorf("unknown mode %q (want greeks, timing or both)", s)
}

func (m Mode) NeedsGreeks() bool { return m == ModeGreeks || m == ModeBoth }
func (m Mode) NeedsTiming() bool { return m == ModeTiming || m == ModeBoth }

type Status string

const (
	Success Status = "success"
	Skipped Status = "skipped"
)

// SkipKind says why a record is missing.
type SkipKind string

const (
	// SkipInvocation means the engine did not run cleanly.
	SkipInvocation SkipKind = "invocation"
	// SkipParse means the engine ran but its output did not follow the
	// protocol. Only these can change when the output is parsed again.
	SkipParse SkipKind = "parse"
)

// Part classifies one record type of a sample.
type Part struct {
	Status Status   `json:"status"`
	Kind   SkipKind `json:"kind,omitempty"`
	Reason string   `json:"reason,omitempty"`
}

func (p *Part) ok() bool { return p != nil && p.Status == Success }

// Outcome is the immutable result of processing one sample. The greeks and
// timing records are classified separately, so a sample can feed one series
// and be skipped by the other. GreeksPart and TimingPart are nil when the
// mode does not collect that record.
type Outcome struct {
	Index  int           `json:"index"`
	Sample engine.Sample `json:"sample"`
	// Status is Success when at least one collected record was obtained.
	Status        Status                 `json:"status"`
	GreeksPart    *Part                  `json:"greeks_status,omitempty"`
	TimingPart    *Part                  `json:"timing_status,omitempty"`
	AAD           *protocol.GreeksRecord `json:"aad,omitempty"`
	FD            *protocol.GreeksRecord `json:"fd,omitempty"`
	Timing        *protocol.TimingRecord `json:"timing,omitempty"`
	EngineEpsilon *float64               `json:"engine_epsilon,omitempty"`
	// Reason joins the reasons of every skipped record.
	Reason string `json:"reason,omitempty"`
	// Raw is kept when any record was skipped and persisted separately.
	Raw *engine.Result `json:"-"`
}

// Complete reports whether every collected record was obtained.
func (o Outcome) Complete() bool {
	for _, p := range o.parts() {
		if !p.ok() {
			return false
		}
	}
	return o.Status == Success
}

// Reparsable reports whether some record was skipped only because the
// output did not parse.
func (o Outcome) Reparsable() bool {
	for _, p := range o.parts() {
		if p != nil && p.Status == Skipped && p.Kind == SkipParse {
			return true
		}
	}
	return false
}

// SkippedParts counts the collected records that were not obtained.
func (o Outcome) SkippedParts() int {
	n := 0
	for _, p := range o.parts() {
		if p != nil && !p.ok() {
			n++
		}
	}
	return n
}

func (o Outcome) parts() []*Part { return []*Part{o.GreeksPart, o.TimingPart} }

// Classify turns the engine result for sample s into an outcome for the
// given mode. The outcome is keyed by s, never by what the invoker echoed.
func Classify(index int, s engine.Sample, res *engine.Result, mode Mode) Outcome {
	o := Outcome{Index: index, Sample: s, Status: Skipped}
	if !res.OK() {
		reason := "invocation failed: " + res.Reason()
		if mode.NeedsGreeks() {
			o.GreeksPart = &Part{Status: Skipped, Kind: SkipInvocation, Reason: reason}
		}
		if mode.NeedsTiming() {
			o.TimingPart = &Part{Status: Skipped, Kind: SkipInvocation, Reason: reason}
		}
		o.Reason, o.Raw = reason, res
		return o
	}

	var reasons []string
	if mode.NeedsGreeks() {
		aad, fd, err := protocol.ParseGreeks(res.Stdout)
		if err != nil {
			reason := fmt.Sprintf("parsing greeks: %v", err)
			o.GreeksPart = &Part{Status: Skipped, Kind: SkipParse, Reason: reason}
			reasons = append(reasons, reason)
		} else {
			o.GreeksPart = &Part{Status: Success}
			o.AAD, o.FD = &aad, &fd
			if eps, ok := protocol.ParseEpsilon(res.Stdout); ok {
				o.EngineEpsilon = &eps
			}
		}
	}
	if mode.NeedsTiming() {
		timing, err := protocol.ParseTiming(res.Stdout)
		if err != nil {
			reason := fmt.Sprintf("parsing timing: %v", err)
			o.TimingPart = &Part{Status: Skipped, Kind: SkipParse, Reason: reason}
			reasons = append(reasons, reason)
		} else {
			o.TimingPart = &Part{Status: Success}
			o.Timing = &timing
		}
	}
	if o.GreeksPart.ok() || o.TimingPart.ok() {
		o.Status = Success
	}
	if len(reasons) > 0 {
		o.Reason = strings.Join(reasons, "; ")
		o.Raw = res
	}
	return o
}
