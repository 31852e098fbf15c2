// Package filter translates calendar-query and addressbook-query filter
// ASTs (RFC 4791 §9.7, RFC 6352 §10.5) into index-backed matches over
// the shredded store, with RFC 4790 collation for text comparison.
package filter

import (
	"time"

	"github.com/sonroyaalmerol/go-davcore/internal/textcodec"
)

// PropValue is one concrete property occurrence: its decoded text plus
// the parameters attached to it, so param-filters can be evaluated
// against the same occurrence the text-match saw. Index-backed lookups
// produce parameterless PropValues; matchers that need parameters fall
// back to the record's full property lookup.
type PropValue struct {
	Text   string
	Params []textcodec.Parameter
}

// Collation selects the RFC 4790 comparison applied by TextMatch.
type Collation string

const (
	CollationOctet          Collation = "i;octet"
	CollationASCIICasemap   Collation = "i;ascii-casemap"
	CollationUnicodeCasemap Collation = "i;unicode-casemap"
)

// MatchType is the text-match comparison kind.
type MatchType string

const (
	MatchContains   MatchType = "contains"
	MatchEquals     MatchType = "equals"
	MatchStartsWith MatchType = "starts-with"
	MatchEndsWith   MatchType = "ends-with"
)

// TextMatch is a single CALDAV:text-match / CARDDAV:text-match element.
type TextMatch struct {
	Value     string
	Collation Collation
	Negate    bool
	Match     MatchType
}

// TimeRange is a CALDAV:time-range element; Start/End are UTC, either may
// be zero meaning unbounded.
type TimeRange struct {
	Start time.Time
	End   time.Time
}

// ParamFilter is a CALDAV:param-filter / CARDDAV:param-filter element.
type ParamFilter struct {
	Name         string
	IsNotDefined bool
	TextMatch    *TextMatch
}

// PropFilter is a CALDAV:prop-filter / CARDDAV:prop-filter element.
type PropFilter struct {
	Name         string
	IsNotDefined bool
	TimeRange    *TimeRange
	TextMatch    *TextMatch
	ParamFilters []ParamFilter
}

// CompFilter is a CALDAV:comp-filter element (iCalendar only).
type CompFilter struct {
	Name         string
	IsNotDefined bool
	TimeRange    *TimeRange
	PropFilters  []PropFilter
	CompFilters  []CompFilter
}

// Test selects anyof (union) or allof (intersection) combination of
// addressbook-query prop-filters.
type Test string

const (
	TestAnyOf Test = "anyof"
	TestAllOf Test = "allof"
)

// AddressbookFilter is the CARDDAV:filter element.
type AddressbookFilter struct {
	Test        Test
	PropFilters []PropFilter
}

// UnsupportedCollationError reports a collation outside the three RFC 4790
// collations this evaluator implements, surfaced as the
// CALDAV:/CARDDAV:supported-collation precondition.
type UnsupportedCollationError struct {
	Collation string
}

func (e *UnsupportedCollationError) Error() string {
	return "unsupported collation: " + e.Collation
}
