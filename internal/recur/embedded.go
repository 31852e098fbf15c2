package recur

import (
	"time"

	"github.com/sonroyaalmerol/go-davcore/internal/icalendar"
)

// RegisterEmbedded walks obj's VTIMEZONE components and seeds resolver's
// cache with a location for each TZID, so embedded definitions win over
// the IANA database in the resolution order. A TZID that
// also names a real IANA zone resolves to the full IANA rules; otherwise
// the embedded STANDARD offset is used as a fixed zone, which is what
// clients exporting private zone names (e.g. legacy Outlook) expect.
func RegisterEmbedded(resolver *Resolver, obj *icalendar.Object) {
	if obj == nil || obj.Root == nil {
		return
	}
	for _, tz := range obj.Root.ChildrenOfKind("VTIMEZONE") {
		tzid := ""
		if p := tz.GetProperty("TZID"); p != nil {
			tzid = p.Text
			if tzid == "" {
				tzid = p.RawValue
			}
		}
		if tzid == "" {
			continue
		}
		if loc, err := time.LoadLocation(tzid); err == nil {
			resolver.cache[tzid] = loc
			continue
		}
		if loc := buildFixedLocation(tzid, tz); loc != nil {
			resolver.cache[tzid] = loc
		}
	}
}

// buildFixedLocation derives a fixed-offset location from the zone's
// STANDARD rule (falling back to DAYLIGHT when no STANDARD is present).
func buildFixedLocation(tzid string, tz *icalendar.Component) *time.Location {
	rules := tz.ChildrenOfKind("STANDARD")
	if len(rules) == 0 {
		rules = tz.ChildrenOfKind("DAYLIGHT")
	}
	if len(rules) == 0 {
		return nil
	}
	p := rules[0].GetProperty("TZOFFSETTO")
	if p == nil {
		return nil
	}
	offset, err := ParseUTCOffset(p.RawValue)
	if err != nil {
		return nil
	}
	return time.FixedZone(tzid, offset)
}

// ParseUTCOffset parses an RFC 5545 UTC-OFFSET value ("+HHMM[SS]" /
// "-HHMM[SS]") into seconds east of UTC.
func ParseUTCOffset(v string) (int, error) {
	if len(v) != 5 && len(v) != 7 {
		return 0, &InvalidOffsetError{Value: v}
	}
	sign := 1
	switch v[0] {
	case '+':
	case '-':
		sign = -1
	default:
		return 0, &InvalidOffsetError{Value: v}
	}
	digits := v[1:]
	for _, c := range digits {
		if c < '0' || c > '9' {
			return 0, &InvalidOffsetError{Value: v}
		}
	}
	h := int(digits[0]-'0')*10 + int(digits[1]-'0')
	m := int(digits[2]-'0')*10 + int(digits[3]-'0')
	s := 0
	if len(digits) == 6 {
		s = int(digits[4]-'0')*10 + int(digits[5]-'0')
	}
	return sign * (h*3600 + m*60 + s), nil
}

// InvalidOffsetError reports a malformed UTC-OFFSET value.
type InvalidOffsetError struct{ Value string }

func (e *InvalidOffsetError) Error() string { return "invalid UTC-OFFSET value: " + e.Value }
