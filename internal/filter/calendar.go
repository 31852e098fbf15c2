package filter

import (
	"strings"

	"github.com/sonroyaalmerol/go-davcore/internal/icalendar"
	"github.com/sonroyaalmerol/go-davcore/internal/recur"
	"github.com/sonroyaalmerol/go-davcore/internal/shred"
)

// EventRecord bundles one entity's event_index row with its recurrence
// master, extracted by the caller via recur.ExtractMaster; matchTimeRange
// expands it with recur.Expand when RRuleText is non-empty. PropertyLookup resolves a property's decoded
// occurrences (parameters included) for filters the index columns can't
// answer; Component lazily reassembles the schedulable component itself
// for nested comp-filters.
type EventRecord struct {
	Index          shred.EventIndexRow
	Master         *recur.Master
	PropertyLookup func(name string) []PropValue
	Component      func() *icalendar.Component
}

// MatchEvent evaluates root (a VCALENDAR comp-filter) against rec,
// returning whether the entity should be included in the REPORT response.
func MatchEvent(root CompFilter, rec EventRecord, window *TimeRange) (bool, error) {
	if root.Name != "VCALENDAR" {
		return false, nil
	}
	for _, cf := range root.CompFilters {
		ok, err := matchEventComponent(cf, rec, window)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return len(root.CompFilters) == 0, nil
}

func matchEventComponent(cf CompFilter, rec EventRecord, window *TimeRange) (bool, error) {
	if cf.IsNotDefined {
		return false, nil
	}

	if cf.TimeRange != nil {
		ok, err := matchTimeRange(*cf.TimeRange, rec)
		if err != nil || !ok {
			return false, err
		}
	} else if window != nil {
		ok, err := matchTimeRange(*window, rec)
		if err != nil || !ok {
			return false, err
		}
	}

	for _, pf := range cf.PropFilters {
		ok, err := matchEventProp(pf, rec)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}

	// Nested comp-filters (e.g. VALARM under VEVENT) evaluate against
	// the reassembled component's children; every one must hold
	// (RFC 4791 §9.7.1).
	if len(cf.CompFilters) > 0 {
		var comp *icalendar.Component
		if rec.Component != nil {
			comp = rec.Component()
		}
		for _, nested := range cf.CompFilters {
			ok, err := matchNestedComponent(nested, comp)
			if err != nil {
				return false, err
			}
			if !ok {
				return false, nil
			}
		}
	}
	return true, nil
}

func matchTimeRange(tr TimeRange, rec EventRecord) (bool, error) {
	if rec.Master != nil && rec.Master.RRuleText != "" {
		occ, err := recur.Expand(*rec.Master, tr.Start, tr.End, recur.MaxOccurrences)
		if err != nil {
			return false, err
		}
		return len(occ) > 0, nil
	}
	start := rec.Index.DTStartUTC
	end := rec.Index.DTEndUTC
	if start == nil {
		return false, nil
	}
	e := *start
	if end != nil {
		e = *end
	}
	if !tr.Start.IsZero() && e.Before(tr.Start) {
		return false, nil
	}
	if !tr.End.IsZero() && !start.Before(tr.End) {
		return false, nil
	}
	return true, nil
}

// indexedEventProperty returns the value of name directly from the index
// row when it's one of the columns event_index carries, and reports
// whether the property is indexed at all.
func indexedEventProperty(idx shred.EventIndexRow, name string) (string, bool) {
	switch strings.ToUpper(name) {
	case "SUMMARY":
		return idx.Summary, true
	case "LOCATION":
		return idx.Location, true
	case "STATUS":
		return idx.Status, true
	default:
		return "", false
	}
}

func matchEventProp(pf PropFilter, rec EventRecord) (bool, error) {
	var values []PropValue
	// Index columns carry values but never parameters, so a filter with
	// param-filters always goes through the full property lookup.
	if v, ok := indexedEventProperty(rec.Index, pf.Name); ok && len(pf.ParamFilters) == 0 {
		if v != "" {
			values = []PropValue{{Text: v}}
		}
	} else if rec.PropertyLookup != nil {
		values = rec.PropertyLookup(pf.Name)
	}
	return matchPropFilterValues(pf, values)
}
