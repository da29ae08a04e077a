package protocol

import (
	"math"
	"strconv"
	"strings"
)

const (
	AADTimeLabel = "AAD Calculation Time"
	FDTimeLabel  = "Finite Differences Calculation Time"
)

// ParseTiming finds the two timing lines anywhere in the document. The unit
// after the number is not interpreted; the engine reports microseconds.
func ParseTiming(doc string) (TimingRecord, error) {
	var rec TimingRecord
	lines := splitLines(doc)
	if n := nonBlank(lines); n < 2 {
		return rec, parseErr(KindTooFewLines, "", -1, "%d non-blank lines, need at least 2", n)
	}

	var haveAAD, haveFD bool
	for i, line := range lines {
		var dst *float64
		var label string
		switch {
		case !haveAAD && strings.Contains(line, AADTimeLabel):
			dst, label, haveAAD = &rec.AADMicros, AADTimeLabel, true
		case !haveFD && strings.Contains(line, FDTimeLabel):
			dst, label, haveFD = &rec.FDMicros, FDTimeLabel, true
		default:
			continue
		}
		v, err := leadingValue(line)
		if err != nil {
			err.Label, err.Line = label, i
			return rec, err
		}
		*dst = v
	}
	if !haveAAD {
		return rec, parseErr(KindMissingLabel, AADTimeLabel, -1, "")
	}
	if !haveFD {
		return rec, parseErr(KindMissingLabel, FDTimeLabel, -1, "")
	}
	return rec, nil
}

func leadingValue(line string) (float64, *ParseError) {
	idx := strings.IndexByte(line, ':')
	if idx < 0 {
		return 0, parseErr(KindBadValue, "", -1, "no colon")
	}
	tokens := strings.Fields(line[idx+1:])
	if len(tokens) == 0 {
		return 0, parseErr(KindBadValue, "", -1, "no value after colon")
	}
	v, err := strconv.ParseFloat(tokens[0], 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, parseErr(KindBadValue, "", -1, "%q is not a number", tokens[0])
	}
	return v, nil
}
