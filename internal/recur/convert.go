package recur

import "time"

// DateTimeForm discriminates the three iCalendar DATE-TIME forms
// (RFC 5545 §3.3.5): a trailing 'Z' (UTC), a bare local time with no
// TZID (floating), or a TZID-qualified local time (zoned).
type DateTimeForm int

const (
	FormUTC DateTimeForm = iota
	FormFloating
	FormZoned
)

// NonExistentTimeError is returned in strict mode when a wall-clock
// time falls in a spring-forward gap.
type NonExistentTimeError struct {
	Wall time.Time
	TZID string
}

func (e *NonExistentTimeError) Error() string {
	return "non-existent local time in zone " + e.TZID
}

// ToUTC converts a local wall-clock time (year/month/day/hour/min/sec,
// Location ignored on the input value — only its calendar fields are
// used) to UTC:
//   - FormUTC: no transform, returned as-is (already UTC).
//   - FormFloating: no transform (floating times are taken verbatim).
//   - FormZoned: resolved against loc. Ambiguous (fall-back) instants
//     pick the earlier offset. Non-existent (spring-forward) instants
//     either error (strict) or shift forward by the gap (lenient).
func ToUTC(wall time.Time, form DateTimeForm, loc *time.Location, tzid string, strict bool) (time.Time, error) {
	switch form {
	case FormUTC:
		return time.Date(wall.Year(), wall.Month(), wall.Day(), wall.Hour(), wall.Minute(), wall.Second(), wall.Nanosecond(), time.UTC), nil
	case FormFloating:
		return time.Date(wall.Year(), wall.Month(), wall.Day(), wall.Hour(), wall.Minute(), wall.Second(), wall.Nanosecond(), time.UTC), nil
	}

	y, mo, d := wall.Date()
	h, mi, s := wall.Clock()
	candidate := time.Date(y, mo, d, h, mi, s, wall.Nanosecond(), loc)

	// Detect a spring-forward gap: the wall clock we asked for doesn't
	// round-trip back to itself once normalized through the zone.
	if candidate.Hour() != h || candidate.Minute() != mi || candidate.Day() != d {
		if strict {
			return time.Time{}, &NonExistentTimeError{Wall: wall, TZID: tzid}
		}
		// Lenient: read the wall clock at the offset in force before the
		// transition, which lands the length of the gap later on the
		// offset after it.
		_, offBefore := candidate.Add(-2 * time.Hour).Zone()
		shifted := time.Date(y, mo, d, h, mi, s, wall.Nanosecond(), time.FixedZone(tzid, offBefore))
		return shifted.UTC(), nil
	}

	// Detect a fall-back ambiguity by probing one hour earlier in the
	// same zone; if its offset differs from candidate's, two UTC
	// instants may map to this same wall clock and Go's Date already
	// resolved to one of them. Explicitly prefer the earlier instant:
	// the wall clock read at the probe's offset, when that instant is
	// earlier and the zone really shows that offset there.
	earlierProbe := candidate.Add(-1 * time.Hour)
	_, offCandidate := candidate.Zone()
	_, offEarlier := earlierProbe.Zone()
	if offEarlier != offCandidate {
		alt := time.Date(y, mo, d, h, mi, s, wall.Nanosecond(), time.FixedZone(tzid, offEarlier))
		if _, offAlt := alt.In(loc).Zone(); offAlt == offEarlier && alt.Before(candidate) {
			candidate = alt
		}
	}

	return candidate.UTC(), nil
}
