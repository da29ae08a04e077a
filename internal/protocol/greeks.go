package protocol

import (
	"fmt"
	"regexp"
	"strconv"
)

// MinGreeksLines is the fewest non-blank lines a price/Greeks document can
// have and still be considered.
const MinGreeksLines = 8

type slot struct {
	method Method
	q      Quantity
}

var greeksLayout = []slot{
	{AAD, Price}, {AAD, Delta}, {AAD, Gamma}, {AAD, Vega}, {AAD, Theta}, {AAD, Rho},
	{FD, Delta}, {FD, Gamma}, {FD, Vega}, {FD, Theta}, {FD, Rho},
}

func isGreekLabel(base string) bool {
	switch Quantity(base) {
	case Price, Delta, Gamma, Vega, Theta, Rho:
		return true
	}
	return false
}

// ParseGreeks extracts the AAD block (price and five Greeks) followed by the
// FD block (five Greeks). Greek-labelled lines must appear exactly in that
// order. A method tag on a label, as in "Delta (FD)", must match its block.
func ParseGreeks(doc string) (aad, fd GreeksRecord, err error) {
	if n := nonBlank(splitLines(doc)); n < MinGreeksLines {
		return aad, fd, parseErr(KindTooFewLines, "", -1, "%d non-blank lines, need at least %d", n, MinGreeksLines)
	}

	var greekFields []Field
	for _, f := range Scan(doc) {
		if base, _ := splitKey(f.Label); isGreekLabel(base) {
			greekFields = append(greekFields, f)
		}
	}

	aad.Method, fd.Method = AAD, FD
	for i, want := range greeksLayout {
		label := fmt.Sprintf("%s (%s)", want.q, want.method)
		if i >= len(greekFields) {
			return aad, fd, parseErr(KindMissingLabel, label, -1, "")
		}
		f := greekFields[i]
		base, tag := splitKey(f.Label)
		if Quantity(base) != want.q {
			return aad, fd, parseErr(KindStructure, label, f.Line, "found %q", f.Label)
		}
		if tag != "" && Method(tag) != want.method {
			return aad, fd, parseErr(KindStructure, label, f.Line, "found %q in the %s block", f.Label, want.method)
		}
		if !f.Numeric {
			return aad, fd, parseErr(KindBadValue, label, f.Line, "%q is not a number", f.Token)
		}
		if want.method == AAD {
			aad.set(want.q, f.Value)
		} else {
			fd.set(want.q, f.Value)
		}
	}
	if len(greekFields) > len(greeksLayout) {
		f := greekFields[len(greeksLayout)]
		return aad, fd, parseErr(KindStructure, f.Label, f.Line, "unexpected line after the FD block")
	}
	return aad, fd, nil
}

var epsilonRe = regexp.MustCompile(`epsilon\s*=\s*([-+0-9.eE]+)`)

// ParseEpsilon returns the finite-difference step the engine reports in its
// FD block header, if it reports one.
func ParseEpsilon(doc string) (float64, bool) {
	m := epsilonRe.FindStringSubmatch(doc)
	if m == nil {
		return 0, false
	}
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
