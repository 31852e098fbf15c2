package textcodec

import "strings"

// ValueType is the tagged-union discriminant for property values.
// Unknown property names default to Text.
type ValueType string

const (
	ValueText       ValueType = "TEXT"
	ValueTextList   ValueType = "TEXT-LIST"
	ValueInteger    ValueType = "INTEGER"
	ValueFloat      ValueType = "FLOAT"
	ValueBoolean    ValueType = "BOOLEAN"
	ValueDate       ValueType = "DATE"
	ValueDateTime   ValueType = "DATE-TIME"
	ValueDuration   ValueType = "DURATION"
	ValuePeriod     ValueType = "PERIOD"
	ValueRecur      ValueType = "RECUR"
	ValueTime       ValueType = "TIME"
	ValueUTCOffset  ValueType = "UTC-OFFSET"
	ValueBinary     ValueType = "BINARY"
	ValueURI        ValueType = "URI"
	ValueCalAddr    ValueType = "CAL-ADDRESS"
	ValueStructured ValueType = "STRUCTURED" // vCard N/ADR/ORG/GENDER/CLIENTPIDMAP
)

// defaultValueTypes maps well-known iCalendar property names to their
// default VALUE type when no VALUE= parameter overrides it.
var defaultValueTypes = map[string]ValueType{
	"DTSTART":          ValueDateTime,
	"DTEND":            ValueDateTime,
	"DTSTAMP":          ValueDateTime,
	"DUE":              ValueDateTime,
	"COMPLETED":        ValueDateTime,
	"CREATED":          ValueDateTime,
	"LAST-MODIFIED":    ValueDateTime,
	"RECURRENCE-ID":    ValueDateTime,
	"EXDATE":           ValueDateTime,
	"RDATE":            ValueDateTime,
	"DURATION":         ValueDuration,
	"FREEBUSY":         ValuePeriod,
	"RRULE":            ValueRecur,
	"SEQUENCE":         ValueInteger,
	"PRIORITY":         ValueInteger,
	"PERCENT-COMPLETE": ValueInteger,
	"GEO":              ValueFloat,
	"TZOFFSETFROM":     ValueUTCOffset,
	"TZOFFSETTO":       ValueUTCOffset,
	"ATTACH":           ValueURI,
	"URL":              ValueURI,
	"TZURL":            ValueURI,
	"ORGANIZER":        ValueCalAddr,
	"ATTENDEE":         ValueCalAddr,
	"CATEGORIES":       ValueTextList,
	"RESOURCES":        ValueTextList,
	// vCard structured
	"N":            ValueStructured,
	"ADR":          ValueStructured,
	"ORG":          ValueStructured,
	"GENDER":       ValueStructured,
	"CLIENTPIDMAP": ValueStructured,
	"NICKNAME":     ValueTextList,
}

// ResolveValueType picks the ValueType for a property: an explicit VALUE=
// parameter wins, otherwise the property-name default, otherwise TEXT.
func ResolveValueType(propName string, params []Parameter) ValueType {
	for _, p := range params {
		if p.Name == "VALUE" {
			if vt, ok := knownValueTokens[strings.ToUpper(p.Value())]; ok {
				return vt
			}
			return ValueText
		}
	}
	if vt, ok := defaultValueTypes[strings.ToUpper(propName)]; ok {
		return vt
	}
	return ValueText
}

var knownValueTokens = map[string]ValueType{
	"TEXT":        ValueText,
	"INTEGER":     ValueInteger,
	"FLOAT":       ValueFloat,
	"BOOLEAN":     ValueBoolean,
	"DATE":        ValueDate,
	"DATE-TIME":   ValueDateTime,
	"DURATION":    ValueDuration,
	"PERIOD":      ValuePeriod,
	"RECUR":       ValueRecur,
	"TIME":        ValueTime,
	"UTC-OFFSET":  ValueUTCOffset,
	"BINARY":      ValueBinary,
	"URI":         ValueURI,
	"CAL-ADDRESS": ValueCalAddr,
}
