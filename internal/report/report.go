// Package report renders the AAD vs finite-difference comparison of a
// finalized series: PDF plots and a text summary.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strings"
	"text/tabwriter"

	"github.com/signalnine/greeksweep/internal/engine"
	"github.com/signalnine/greeksweep/internal/protocol"
	"github.com/signalnine/greeksweep/internal/series"
)

// Format selects how a summary is printed.
type Format string

const (
	FormatTable    Format = "table"
	FormatMarkdown Format = "markdown"
	FormatJSON     Format = "json"
)

func ParseFormat(s string) (Format, error) {
	switch f := Format(s); f {
	case FormatTable, FormatMarkdown, FormatJSON:
		return f, nil
	}
	return "", fmt.Errorf("unknown format %q (want table, markdown or json)", s)
}

// GreekSummary compares both methods for one Greek.
type GreekSummary struct {
	Quantity    protocol.Quantity `json:"quantity"`
	Points      int               `json:"points"`
	MaxAbsDiff  float64           `json:"max_abs_diff"`
	MeanAbsDiff float64           `json:"mean_abs_diff"`
}

// Summary describes a sweep. The greeks and timing fields are only filled
// when the mode collects that record.
type Summary struct {
	Requested int `json:"requested"`
	// Succeeded counts samples that yielded every collected record.
	Succeeded     int            `json:"succeeded"`
	GreeksSamples int            `json:"greeks_samples"`
	Greeks        []GreekSummary `json:"greeks,omitempty"`
	TimedSamples  int            `json:"timed_samples"`
	MeanAADMicros float64        `json:"mean_aad_time_us"`
	MeanFDMicros  float64        `json:"mean_fd_time_us"`
	GreeksSkipped []series.Skip  `json:"greeks_skipped,omitempty"`
	TimingSkipped []series.Skip  `json:"timing_skipped,omitempty"`
}

// NoData reports whether s has nothing to plot.
func NoData(s *series.Series) bool {
	return s.Empty()
}

// Summarize compares AAD against FD at every retained sample.
func Summarize(set *series.Set) Summary {
	sum := Summary{Requested: set.Requested, Succeeded: set.Complete}
	if g := set.Greeks; g != nil {
		sum.GreeksSamples = g.Len()
		sum.GreeksSkipped = g.Skipped
	}
	for _, q := range protocol.Greeks {
		aad, fd := set.Greeks.Greeks(protocol.AAD, q), set.Greeks.Greeks(protocol.FD, q)
		if len(aad) == 0 || len(aad) != len(fd) {
			continue
		}
		g := GreekSummary{Quantity: q, Points: len(aad)}
		var total float64
		for i := range aad {
			d := math.Abs(aad[i].Y - fd[i].Y)
			total += d
			g.MaxAbsDiff = math.Max(g.MaxAbsDiff, d)
		}
		g.MeanAbsDiff = total / float64(len(aad))
		sum.Greeks = append(sum.Greeks, g)
	}
	if t := set.Timing; t != nil {
		sum.TimingSkipped = t.Skipped
		aadTimes, fdTimes := t.Timing(protocol.AAD), t.Timing(protocol.FD)
		if n := len(aadTimes); n > 0 {
			sum.TimedSamples = n
			sum.MeanAADMicros = mean(aadTimes)
			sum.MeanFDMicros = mean(fdTimes)
		}
	}
	return sum
}

// WriteSummary prints the summary of set in format f.
func WriteSummary(w io.Writer, set *series.Set, f Format) error {
	sum := Summarize(set)
	noData := set.Empty()
	switch f {
	case FormatTable:
		return writeTable(sum, noData, w)
	case FormatMarkdown:
		return writeMarkdown(sum, noData, w)
	case FormatJSON:
		return writeJSON(sum, w)
	}
	return fmt.Errorf("unknown format %q", f)
}

func mean(pts []series.Point) float64 {
	var total float64
	for _, p := range pts {
		total += p.Y
	}
	return total / float64(len(pts))
}

func writeTable(sum Summary, noData bool, w io.Writer) error {
	fmt.Fprintf(w, "Samples: %d requested, %d succeeded\n", sum.Requested, sum.Succeeded)
	if noData {
		fmt.Fprintln(w, "No data: every sample was skipped")
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	if len(sum.Greeks) > 0 {
		fmt.Fprintln(tw, "GREEK\tPOINTS\tMAX |AAD-FD|\tMEAN |AAD-FD|")
		fmt.Fprintln(tw, strings.Repeat("-", 56))
		for _, g := range sum.Greeks {
			fmt.Fprintf(tw, "%s\t%d\t%.6g\t%.6g\n", g.Quantity, g.Points, g.MaxAbsDiff, g.MeanAbsDiff)
		}
	}
	if sum.TimedSamples > 0 {
		fmt.Fprintf(tw, "\nTIMING\tSAMPLES\tMEAN AAD (us)\tMEAN FD (us)\n")
		fmt.Fprintf(tw, "\t%d\t%.2f\t%.2f\n", sum.TimedSamples, sum.MeanAADMicros, sum.MeanFDMicros)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	writeSkips(w, "greeks", sum.GreeksSkipped)
	writeSkips(w, "timing", sum.TimingSkipped)
	return nil
}

func writeSkips(w io.Writer, record string, skips []series.Skip) {
	if len(skips) == 0 {
		return
	}
	fmt.Fprintf(w, "\nSkipped for %s (%d):\n", record, len(skips))
	for _, sk := range skips {
		fmt.Fprintf(w, "  S=%s: %s\n", engine.FormatFloat(sk.S), sk.Reason)
	}
}

func writeMarkdown(sum Summary, noData bool, w io.Writer) error {
	fmt.Fprintf(w, "**Samples:** %d requested, %d succeeded\n\n", sum.Requested, sum.Succeeded)
	if noData {
		fmt.Fprintln(w, "_No data: every sample was skipped._")
		fmt.Fprintln(w)
	}
	if len(sum.Greeks) > 0 {
		fmt.Fprintln(w, "| Greek | Points | Max \\|AAD-FD\\| | Mean \\|AAD-FD\\| |")
		fmt.Fprintln(w, "|---|---|---|---|")
		for _, g := range sum.Greeks {
			fmt.Fprintf(w, "| %s | %d | %.6g | %.6g |\n", g.Quantity, g.Points, g.MaxAbsDiff, g.MeanAbsDiff)
		}
		fmt.Fprintln(w)
	}
	if sum.TimedSamples > 0 {
		fmt.Fprintln(w, "| Samples | Mean AAD (us) | Mean FD (us) |")
		fmt.Fprintln(w, "|---|---|---|")
		fmt.Fprintf(w, "| %d | %.2f | %.2f |\n\n", sum.TimedSamples, sum.MeanAADMicros, sum.MeanFDMicros)
	}
	if len(sum.GreeksSkipped)+len(sum.TimingSkipped) > 0 {
		fmt.Fprintln(w, "| Record | Skipped S | Reason |")
		fmt.Fprintln(w, "|---|---|---|")
		for _, part := range []struct {
			name  string
			skips []series.Skip
		}{{"greeks", sum.GreeksSkipped}, {"timing", sum.TimingSkipped}} {
			for _, sk := range part.skips {
				fmt.Fprintf(w, "| %s | %s | %s |\n", part.name, engine.FormatFloat(sk.S), strings.ReplaceAll(sk.Reason, "|", "\\|"))
			}
		}
	}
	return nil
}

func writeJSON(sum Summary, w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(sum)
}
