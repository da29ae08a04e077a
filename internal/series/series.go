// Package series aggregates sweep outcomes into one series per record type,
// keyed by sample value. Every (x, y) pair it hands out comes from the same sample.
package series

import (
	"errors"
	"fmt"
	"sort"

	"github.com/signalnine/greeksweep/internal/protocol"
	"github.com/signalnine/greeksweep/internal/sweep"
)

// ErrInconsistent flags an outcome that breaks the sweep's own contract,
// such as a success without its records. It indicates a bug upstream.
var ErrInconsistent = errors.New("inconsistent sweep outcome")

// Record names the record type a series is built from.
type Record string

const (
	RecordGreeks Record = "greeks"
	RecordTiming Record = "timing"
)

// Entry is one sample that yielded the series' record.
type Entry struct {
	S      float64                `json:"s"`
	Index  int                    `json:"index"`
	AAD    *protocol.GreeksRecord `json:"aad,omitempty"`
	FD     *protocol.GreeksRecord `json:"fd,omitempty"`
	Timing *protocol.TimingRecord `json:"timing,omitempty"`
}

// Skip is one excluded sample and why.
type Skip struct {
	S      float64        `json:"s"`
	Index  int            `json:"index"`
	Kind   sweep.SkipKind `json:"kind,omitempty"`
	Reason string         `json:"reason"`
}

// Point is one plotted pair.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Series is the finalized, read-only aggregate of one record type. Entries
// and Skipped are ordered by ascending sample value.
type Series struct {
	Record    Record  `json:"record"`
	Requested int     `json:"requested"`
	Entries   []Entry `json:"entries"`
	Skipped   []Skip  `json:"skipped"`
}

// Set is the pair of series a sweep produces. A series is nil when the mode
// does not collect its record.
type Set struct {
	Mode      sweep.Mode `json:"mode"`
	Requested int        `json:"requested"`
	// Complete counts the samples that yielded every collected record.
	Complete int     `json:"complete"`
	Greeks   *Series `json:"greeks,omitempty"`
	Timing   *Series `json:"timing,omitempty"`
}

// Empty reports whether no series has an entry.
func (s *Set) Empty() bool {
	return s == nil || (s.Greeks.Empty() && s.Timing.Empty())
}

// Builder accumulates outcomes in any order.
type Builder struct {
	mode     sweep.Mode
	seen     map[float64]bool
	complete int
	greeks   []Entry
	timing   []Entry
	gSkipped []Skip
	tSkipped []Skip
}

func NewBuilder(mode sweep.Mode) *Builder {
	return &Builder{mode: mode, seen: make(map[float64]bool)}
}

// Add records one outcome.
func (b *Builder) Add(o sweep.Outcome) error {
	if b.seen[o.Sample.S] {
		return fmt.Errorf("%w: sample S=%v reported twice", ErrInconsistent, o.Sample.S)
	}
	if o.Status != sweep.Success && o.Status != sweep.Skipped {
		return fmt.Errorf("%w: sample S=%v has status %q", ErrInconsistent, o.Sample.S, o.Status)
	}

	var obtained int
	if b.mode.NeedsGreeks() {
		ok, err := checkPart(o, RecordGreeks, o.GreeksPart, o.AAD != nil || o.FD != nil)
		if err != nil {
			return err
		}
		if ok {
			if o.AAD == nil || o.FD == nil {
				return fmt.Errorf("%w: sample S=%v has only one greeks block", ErrInconsistent, o.Sample.S)
			}
			if o.AAD.Price == nil {
				return fmt.Errorf("%w: sample S=%v has no AAD price", ErrInconsistent, o.Sample.S)
			}
			obtained++
		}
	}
	if b.mode.NeedsTiming() {
		ok, err := checkPart(o, RecordTiming, o.TimingPart, o.Timing != nil)
		if err != nil {
			return err
		}
		if ok {
			obtained++
		}
	}
	if (obtained > 0) != (o.Status == sweep.Success) {
		return fmt.Errorf("%w: sample S=%v is %s with %d records", ErrInconsistent, o.Sample.S, o.Status, obtained)
	}

	if b.mode.NeedsGreeks() {
		if o.GreeksPart.Status == sweep.Success {
			b.greeks = append(b.greeks, Entry{S: o.Sample.S, Index: o.Index, AAD: o.AAD, FD: o.FD})
		} else {
			b.gSkipped = append(b.gSkipped, skipOf(o, o.GreeksPart))
		}
	}
	if b.mode.NeedsTiming() {
		if o.TimingPart.Status == sweep.Success {
			b.timing = append(b.timing, Entry{S: o.Sample.S, Index: o.Index, Timing: o.Timing})
		} else {
			b.tSkipped = append(b.tSkipped, skipOf(o, o.TimingPart))
		}
	}
	if o.Complete() {
		b.complete++
	}
	b.seen[o.Sample.S] = true
	return nil
}

// checkPart validates one collected record of o and reports whether it was
// obtained. present says whether o carries the record's data.
func checkPart(o sweep.Outcome, rec Record, p *sweep.Part, present bool) (bool, error) {
	switch {
	case p == nil:
		return false, fmt.Errorf("%w: sample S=%v has no %s status", ErrInconsistent, o.Sample.S, rec)
	case p.Status == sweep.Success && !present:
		return false, fmt.Errorf("%w: sample S=%v succeeded without %s", ErrInconsistent, o.Sample.S, rec)
	case p.Status == sweep.Skipped && present:
		return false, fmt.Errorf("%w: sample S=%v skipped %s but carries it", ErrInconsistent, o.Sample.S, rec)
	case p.Status != sweep.Success && p.Status != sweep.Skipped:
		return false, fmt.Errorf("%w: sample S=%v has %s status %q", ErrInconsistent, o.Sample.S, rec, p.Status)
	}
	return p.Status == sweep.Success, nil
}

func skipOf(o sweep.Outcome, p *sweep.Part) Skip {
	return Skip{S: o.Sample.S, Index: o.Index, Kind: p.Kind, Reason: p.Reason}
}

// Finalize sorts what was added and returns the set. requested is the
// number of samples the sweep asked for.
func (b *Builder) Finalize(requested int) *Set {
	set := &Set{Mode: b.mode, Requested: requested, Complete: b.complete}
	if b.mode.NeedsGreeks() {
		set.Greeks = finalize(RecordGreeks, requested, b.greeks, b.gSkipped)
	}
	if b.mode.NeedsTiming() {
		set.Timing = finalize(RecordTiming, requested, b.timing, b.tSkipped)
	}
	return set
}

func finalize(rec Record, requested int, entries []Entry, skipped []Skip) *Series {
	entries = append([]Entry{}, entries...)
	skipped = append([]Skip{}, skipped...)
	sort.Slice(entries, func(i, j int) bool { return entries[i].S < entries[j].S })
	sort.Slice(skipped, func(i, j int) bool { return skipped[i].S < skipped[j].S })
	return &Series{Record: rec, Requested: requested, Entries: entries, Skipped: skipped}
}

// Build aggregates a slice of outcomes. requested defaults to len(outcomes)
// when zero or smaller.
func Build(outcomes []sweep.Outcome, mode sweep.Mode, requested int) (*Set, error) {
	b := NewBuilder(mode)
	for _, o := range outcomes {
		if err := b.Add(o); err != nil {
			return nil, err
		}
	}
	if requested <= 0 {
		requested = len(outcomes)
	}
	return b.Finalize(requested), nil
}

// Len and Empty treat a nil series as empty.
func (s *Series) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Entries)
}

func (s *Series) Empty() bool { return s.Len() == 0 }

// Xs returns the sample values of the retained entries.
func (s *Series) Xs() []float64 {
	xs := make([]float64, len(s.Entries))
	for i, e := range s.Entries {
		xs[i] = e.S
	}
	return xs
}

// Lookup returns the entry for sample value x.
func (s *Series) Lookup(x float64) (Entry, bool) {
	i := sort.Search(len(s.Entries), func(i int) bool { return s.Entries[i].S >= x })
	if i < len(s.Entries) && s.Entries[i].S == x {
		return s.Entries[i], true
	}
	return Entry{}, false
}

// Greeks returns (S, value) pairs for q as computed by m. Entries whose
// record does not carry q are left out.
func (s *Series) Greeks(m protocol.Method, q protocol.Quantity) []Point {
	var pts []Point
	if s == nil {
		return nil
	}
	for _, e := range s.Entries {
		rec := e.AAD
		if m == protocol.FD {
			rec = e.FD
		}
		if rec == nil {
			continue
		}
		if v, ok := rec.Get(q); ok {
			pts = append(pts, Point{X: e.S, Y: v})
		}
	}
	return pts
}

// Timing returns (S, microseconds) pairs for m.
func (s *Series) Timing(m protocol.Method) []Point {
	var pts []Point
	if s == nil {
		return nil
	}
	for _, e := range s.Entries {
		if e.Timing == nil {
			continue
		}
		y := e.Timing.AADMicros
		if m == protocol.FD {
			y = e.Timing.FDMicros
		}
		pts = append(pts, Point{X: e.S, Y: y})
	}
	return pts
}
