package textcodec

import "fmt"

// ParseErrorKind enumerates the distinct ways a content line can be malformed.
type ParseErrorKind string

const (
	KindInvalidPropertyName ParseErrorKind = "invalid_property_name"
	KindMissingPropertyName ParseErrorKind = "missing_property_name"
	KindMissingColon        ParseErrorKind = "missing_colon"
	KindInvalidParameter    ParseErrorKind = "invalid_parameter"
	KindUnclosedQuote       ParseErrorKind = "unclosed_quote"
)

// ParseError carries the line/column of the failure alongside its kind,
// so callers can render precise diagnostics.
type ParseError struct {
	Kind    ParseErrorKind
	Line    int
	Column  int
	Context string
}

func (e *ParseError) Error() string {
	if e.Context != "" {
		return fmt.Sprintf("%s at line %d, column %d: %s", e.Kind, e.Line, e.Column, e.Context)
	}
	return fmt.Sprintf("%s at line %d, column %d", e.Kind, e.Line, e.Column)
}

func newErr(kind ParseErrorKind, line, col int) *ParseError {
	return &ParseError{Kind: kind, Line: line, Column: col}
}

func (e *ParseError) withContext(ctx string) *ParseError {
	e.Context = ctx
	return e
}
