package recur

import (
	"strings"
	"time"

	"github.com/sonroyaalmerol/go-davcore/internal/icalendar"
)

// ExtractMaster builds a Master from a VEVENT/VTODO component, resolving
// DTSTART/DTEND/DUE/DURATION/RRULE/RDATE/EXDATE. Duration is zero when
// none of DTEND, DUE and DURATION is present.
func ExtractMaster(comp *icalendar.Component, resolver *Resolver, strict bool) (Master, error) {
	dtstartProp := comp.GetProperty("DTSTART")
	if dtstartProp == nil {
		return Master{}, &MissingPropertyError{Name: "DTSTART"}
	}
	dtstart, err := resolveDateTime(dtstartProp, resolver, strict)
	if err != nil {
		return Master{}, err
	}

	var duration time.Duration
	if dtendProp := comp.GetProperty("DTEND"); dtendProp != nil {
		dtend, err := resolveDateTime(dtendProp, resolver, strict)
		if err != nil {
			return Master{}, err
		}
		duration = dtend.Sub(dtstart)
	} else if dueProp := comp.GetProperty("DUE"); dueProp != nil {
		due, err := resolveDateTime(dueProp, resolver, strict)
		if err != nil {
			return Master{}, err
		}
		duration = due.Sub(dtstart)
	} else if durProp := comp.GetProperty("DURATION"); durProp != nil {
		d, err := ParseDuration(durProp.RawValue)
		if err != nil {
			return Master{}, err
		}
		duration = d
	}

	m := Master{DTStartUTC: dtstart, Duration: duration}

	if rruleProp := comp.GetProperty("RRULE"); rruleProp != nil {
		m.RRuleText = rruleProp.RawValue
	}

	for _, p := range comp.AllProperties("RDATE") {
		dates, err := resolveDateTimeList(p, resolver, strict)
		if err != nil {
			return Master{}, err
		}
		m.RDates = append(m.RDates, dates...)
	}
	for _, p := range comp.AllProperties("EXDATE") {
		dates, err := resolveDateTimeList(p, resolver, strict)
		if err != nil {
			return Master{}, err
		}
		m.EXDates = append(m.EXDates, dates...)
	}

	return m, nil
}

// MissingPropertyError is returned when a required property is absent.
type MissingPropertyError struct{ Name string }

func (e *MissingPropertyError) Error() string { return "missing property: " + e.Name }

func resolveDateTime(p *icalendar.Property, resolver *Resolver, strict bool) (time.Time, error) {
	form, wall, err := ParseICalTime(p.RawValue)
	if err != nil {
		return time.Time{}, err
	}
	if form == FormUTC {
		return wall, nil
	}
	if tzidParam, ok := p.Param("TZID"); ok {
		loc, err := resolver.Resolve(tzidParam.Value())
		if err != nil {
			return time.Time{}, err
		}
		return ToUTC(wall, FormZoned, loc, tzidParam.Value(), strict)
	}
	// Floating time with no TZID: taken verbatim as UTC, never
	// resolved against any zone.
	return ToUTC(wall, FormFloating, nil, "", strict)
}

func resolveDateTimeList(p *icalendar.Property, resolver *Resolver, strict bool) ([]time.Time, error) {
	var out []time.Time
	for _, raw := range strings.Split(p.RawValue, ",") {
		form, wall, err := ParseICalTime(raw)
		if err != nil {
			continue // tolerate malformed individual list entries
		}
		if form == FormUTC {
			out = append(out, wall)
			continue
		}
		if tzidParam, ok := p.Param("TZID"); ok {
			loc, err := resolver.Resolve(tzidParam.Value())
			if err != nil {
				return nil, err
			}
			t, err := ToUTC(wall, FormZoned, loc, tzidParam.Value(), strict)
			if err != nil {
				return nil, err
			}
			out = append(out, t)
			continue
		}
		t, _ := ToUTC(wall, FormFloating, nil, "", strict)
		out = append(out, t)
	}
	return out, nil
}
