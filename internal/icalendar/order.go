package icalendar

import "github.com/sonroyaalmerol/go-davcore/internal/textcodec"

// Canonical per-kind property order, copied from the system this spec
// was distilled from (its serializer.rs) so re-serialization is
// byte-for-byte compatible. These are wire-format constants, not a
// style choice.
var canonicalPropertyOrder = map[ComponentKind][]string{
	KindCalendar: {
		"VERSION", "PRODID", "CALSCALE", "METHOD", "NAME", "DESCRIPTION",
		"COLOR", "SOURCE", "REFRESH-INTERVAL",
	},
	KindEvent:    eventLikeOrder,
	KindTodo:     eventLikeOrder,
	KindJournal:  eventLikeOrder,
	KindTimezone: {"TZID", "LAST-MODIFIED", "TZURL"},
	KindStandard: tzRuleOrder,
	KindDaylight: tzRuleOrder,
	KindAlarm: {
		"ACTION", "TRIGGER", "DESCRIPTION", "SUMMARY", "DURATION", "REPEAT",
		"ATTACH", "ATTENDEE",
	},
	KindFreeBusy: {
		"UID", "DTSTAMP", "DTSTART", "DTEND", "ORGANIZER", "ATTENDEE",
		"FREEBUSY", "URL", "COMMENT",
	},
}

var eventLikeOrder = []string{
	"UID", "DTSTAMP", "DTSTART", "DTEND", "DUE", "DURATION", "RRULE",
	"RDATE", "EXDATE", "RECURRENCE-ID", "SUMMARY", "DESCRIPTION",
	"LOCATION", "GEO", "CLASS", "STATUS", "PRIORITY", "TRANSP",
	"ORGANIZER", "ATTENDEE", "CATEGORIES", "COMMENT", "CONTACT",
	"RELATED-TO", "URL", "ATTACH", "CREATED", "LAST-MODIFIED", "SEQUENCE",
	"COLOR", "CONFERENCE", "IMAGE",
}

var tzRuleOrder = []string{
	"DTSTART", "TZOFFSETFROM", "TZOFFSETTO", "RRULE", "RDATE", "TZNAME",
	"COMMENT",
}

// canonicalParamOrder applies to every property regardless of kind.
var canonicalParamOrder = []string{
	"VALUE", "TZID", "ENCODING", "FMTTYPE", "LANGUAGE", "ALTREP", "CN",
	"DIR", "CUTYPE", "ROLE", "PARTSTAT", "RSVP", "DELEGATED-FROM",
	"DELEGATED-TO", "SENT-BY", "MEMBER", "RELATED", "RELTYPE", "FBTYPE",
	"RANGE",
}

// orderProperties returns props ordered per canonicalPropertyOrder[kind],
// with unlisted property names following in original order.
func orderProperties(props []*Property, kind ComponentKind) []*Property {
	order := canonicalPropertyOrder[kind]
	out := make([]*Property, 0, len(props))
	used := make([]bool, len(props))
	for _, name := range order {
		for i, p := range props {
			if !used[i] && p.Name == name {
				out = append(out, p)
				used[i] = true
			}
		}
	}
	for i, p := range props {
		if !used[i] {
			out = append(out, p)
		}
	}
	return out
}

func orderParams(params []textcodec.Parameter) []textcodec.Parameter {
	out := make([]textcodec.Parameter, 0, len(params))
	used := make([]bool, len(params))
	for _, name := range canonicalParamOrder {
		for i, p := range params {
			if !used[i] && p.Name == name {
				out = append(out, p)
				used[i] = true
			}
		}
	}
	for i, p := range params {
		if !used[i] {
			out = append(out, p)
		}
	}
	return out
}

// orderChildren buckets children into VTIMEZONE, VEVENT, VTODO,
// VJOURNAL, VFREEBUSY, STANDARD, DAYLIGHT, VALARM, other, sorting the
// event-like buckets by (UID, RECURRENCE-ID).
func orderChildren(children []*Component) []*Component {
	buckets := map[ComponentKind][]*Component{}
	var order []ComponentKind
	bucketOrder := []ComponentKind{
		KindTimezone, KindEvent, KindTodo, KindJournal, KindFreeBusy,
		KindStandard, KindDaylight, KindAlarm, KindOther,
	}
	for _, k := range bucketOrder {
		order = append(order, k)
	}
	for _, ch := range children {
		buckets[ch.Kind] = append(buckets[ch.Kind], ch)
	}
	for _, k := range []ComponentKind{KindEvent, KindTodo, KindJournal} {
		sortByUIDRecurrence(buckets[k])
	}
	out := make([]*Component, 0, len(children))
	for _, k := range order {
		out = append(out, buckets[k]...)
	}
	return out
}

func sortByUIDRecurrence(cs []*Component) {
	// insertion sort: corpora are small (events per object), stable,
	// avoids pulling in sort for a handful of elements per serialize call.
	for i := 1; i < len(cs); i++ {
		j := i
		for j > 0 && compareUIDRecurrence(cs[j-1], cs[j]) > 0 {
			cs[j-1], cs[j] = cs[j], cs[j-1]
			j--
		}
	}
}

func compareUIDRecurrence(a, b *Component) int {
	ua, ub := a.UID(), b.UID()
	if ua != ub {
		if ua < ub {
			return -1
		}
		return 1
	}
	ra, rb := "", ""
	if p := a.GetProperty("RECURRENCE-ID"); p != nil {
		ra = p.RawValue
	}
	if p := b.GetProperty("RECURRENCE-ID"); p != nil {
		rb = p.RawValue
	}
	if ra == rb {
		return 0
	}
	if ra < rb {
		return -1
	}
	return 1
}
