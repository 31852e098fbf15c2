package recur

import (
	"fmt"
	"time"

	"github.com/teambition/rrule-go"
)

// Master is the input to recurrence expansion: a VEVENT/VTODO/VJOURNAL
// master component's recurrence-relevant fields, already normalized to
// UTC where applicable.
type Master struct {
	DTStartUTC time.Time
	Duration   time.Duration // zero if DTEND, DUE and DURATION were all absent
	RRuleText  string        // raw RRULE value text, empty if none
	RDates     []time.Time
	EXDates    []time.Time
}

// Occurrence is one expanded instance in the window.
type Occurrence struct {
	StartUTC time.Time
	EndUTC   time.Time
}

// MaxOccurrences bounds adversarial RRULEs.
const MaxOccurrences = 65535

// Expand enumerates occurrences of m that overlap [windowStart, windowEnd)
// (start before windowEnd and end after windowStart), honoring
// RDATE/EXDATE and the occurrence cap.
func Expand(m Master, windowStart, windowEnd time.Time, limit int) ([]Occurrence, error) {
	if limit <= 0 {
		limit = MaxOccurrences
	}

	var instants []time.Time

	if m.RRuleText != "" {
		ruleText := "DTSTART:" + m.DTStartUTC.UTC().Format("20060102T150405Z") + "\nRRULE:" + m.RRuleText
		rule, err := rrule.StrToRRule(ruleText)
		if err != nil {
			return nil, fmt.Errorf("invalid RRULE: %w", err)
		}
		extendedEnd := windowEnd.Add(m.Duration)
		occ := rule.Between(windowStart.Add(-m.Duration), extendedEnd, true)
		if len(occ) > limit {
			occ = occ[:limit]
		}
		instants = append(instants, occ...)
	} else if len(m.RDates) == 0 {
		// Non-recurring: the single DTSTART is the only candidate instant.
		instants = append(instants, m.DTStartUTC)
	}

	instants = append(instants, m.RDates...)
	instants = excludeDates(instants, m.EXDates)

	if len(instants) > limit {
		instants = instants[:limit]
	}

	var out []Occurrence
	for _, start := range instants {
		end := start.Add(m.Duration)
		if start.Before(windowEnd) && end.After(windowStart) {
			out = append(out, Occurrence{StartUTC: start, EndUTC: end})
		}
	}
	return out, nil
}

func excludeDates(instants, exdates []time.Time) []time.Time {
	if len(exdates) == 0 {
		return instants
	}
	excluded := make(map[int64]bool, len(exdates))
	for _, e := range exdates {
		excluded[e.UTC().Unix()] = true
	}
	out := instants[:0]
	for _, t := range instants {
		if !excluded[t.UTC().Unix()] {
			out = append(out, t)
		}
	}
	return out
}
