package protocol

import (
	"math"
	"strconv"
	"strings"
)

// Field is one "<Label>: <token>" line.
type Field struct {
	Line    int
	Label   string
	Token   string
	Value   float64
	Numeric bool
}

// Scan returns every line that has a label, a colon and at least one token
// after the colon, in document order. Labels may repeat.
func Scan(doc string) []Field {
	var fields []Field
	for i, line := range splitLines(doc) {
		idx := strings.IndexByte(line, ':')
		if idx < 0 {
			continue
		}
		label := strings.TrimSpace(line[:idx])
		rest := strings.Fields(line[idx+1:])
		if label == "" || len(rest) == 0 {
			continue
		}
		f := Field{Line: i, Label: label, Token: rest[0]}
		if v, err := strconv.ParseFloat(f.Token, 64); err == nil && !math.IsNaN(v) && !math.IsInf(v, 0) {
			f.Value = v
			f.Numeric = true
		}
		fields = append(fields, f)
	}
	return fields
}

// Values maps each label with a numeric value to that value. When a label
// repeats the last occurrence wins, so it is only meaningful for labels that
// are unique in the document.
func Values(doc string) map[string]float64 {
	values := make(map[string]float64)
	for _, f := range Scan(doc) {
		if f.Numeric {
			values[f.Label] = f.Value
		}
	}
	return values
}

// splitKey separates a trailing parenthesised tag from a label:
// "Delta (FD)" -> ("Delta", "FD").
func splitKey(label string) (base, tag string) {
	if strings.HasSuffix(label, ")") {
		if open := strings.LastIndexByte(label, '('); open > 0 {
			return strings.TrimSpace(label[:open]), strings.TrimSpace(label[open+1 : len(label)-1])
		}
	}
	return label, ""
}

func splitLines(doc string) []string {
	lines := strings.Split(doc, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSuffix(l, "\r")
	}
	return lines
}

func nonBlank(lines []string) int {
	n := 0
	for _, l := range lines {
		if strings.TrimSpace(l) != "" {
			n++
		}
	}
	return n
}
