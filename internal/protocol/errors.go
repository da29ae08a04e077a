package protocol

import "fmt"

// ErrorKind classifies why a document was rejected.
type ErrorKind string

const (
	KindTooFewLines  ErrorKind = "too_few_lines"
	KindMissingLabel ErrorKind = "missing_label"
	KindBadValue     ErrorKind = "bad_value"
	KindStructure    ErrorKind = "bad_structure"
)

// ParseError reports a document that does not follow the engine protocol.
// Line is zero-based, or -1 when the problem is not tied to a line.
type ParseError struct {
	Kind  ErrorKind
	Label string
	Line  int
	Err   error
}

func (e *ParseError) Error() string {
	msg := string(e.Kind)
	if e.Label != "" {
		msg += " " + e.Label
	}
	if e.Line >= 0 {
		msg += fmt.Sprintf(" (line %d)", e.Line+1)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ParseError) Unwrap() error { return e.Err }

func parseErr(kind ErrorKind, label string, line int, format string, args ...any) *ParseError {
	var err error
	if format != "" {
		err = fmt.Errorf(format, args...)
	}
	return &ParseError{Kind: kind, Label: label, Line: line, Err: err}
}
