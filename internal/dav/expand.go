package dav

import (
	"time"

	"github.com/sonroyaalmerol/go-davcore/internal/icalendar"
	"github.com/sonroyaalmerol/go-davcore/internal/recur"
	"github.com/sonroyaalmerol/go-davcore/internal/shred"
	"github.com/sonroyaalmerol/go-davcore/internal/storage"
	"github.com/sonroyaalmerol/go-davcore/internal/textcodec"
)

// postProcessedCalendarData reassembles entity and applies the
// requested recurrence post-processing before canonical serialization.
func (h *Handler) postProcessedCalendarData(entity *storage.Entity, req *CalendarDataReq) []byte {
	obj := shred.ReassembleICalendar(entity.Tree)
	resolver := recur.NewResolver()
	if req.Expand != nil {
		start, end := windowBounds(req.Expand)
		obj = expandCalendarObject(obj, resolver, start, end, h.MaxOccurrences)
	} else if req.LimitRecurrenceSet != nil {
		start, end := windowBounds(req.LimitRecurrenceSet)
		obj = limitRecurrenceSet(obj, start, end)
	}
	return icalendar.Serialize(obj)
}

func windowBounds(tr *XMLTimeRange) (time.Time, time.Time) {
	var start, end time.Time
	if tr.Start != "" {
		if _, t, err := recur.ParseICalTime(tr.Start); err == nil {
			start = t
		}
	}
	if tr.End != "" {
		if _, t, err := recur.ParseICalTime(tr.End); err == nil {
			end = t
		}
	}
	return start, end
}

// Recurrence post-processing for CALDAV:calendar-data in REPORT
// responses: expand replaces each recurring master
// with synthetic per-occurrence instances, limit-recurrence-set keeps
// the master but drops override components outside the window.

const icalUTCFormat = "20060102T150405Z"

// expandCalendarObject rebuilds obj with every recurring schedulable
// component replaced by one synthetic instance per occurrence in
// [start, end): RRULE/RDATE/EXDATE stripped, DTSTART/DTEND rewritten in
// UTC, RECURRENCE-ID added. Non-recurring components pass through when
// they overlap the window. Override components (explicit RECURRENCE-ID)
// are kept as-is when their recurrence id falls inside the window.
func expandCalendarObject(obj *icalendar.Object, resolver *recur.Resolver, start, end time.Time, limit int) *icalendar.Object {
	recur.RegisterEmbedded(resolver, obj)
	root := &icalendar.Component{Name: obj.Root.Name, Kind: obj.Root.Kind, Properties: obj.Root.Properties}

	for _, ch := range obj.Root.Children {
		switch ch.Kind {
		case icalendar.KindEvent, icalendar.KindTodo, icalendar.KindJournal:
		case icalendar.KindTimezone:
			// Expanded output is all-UTC; VTIMEZONEs are dropped.
			continue
		default:
			root.Children = append(root.Children, ch)
			continue
		}

		if rid := ch.GetProperty("RECURRENCE-ID"); rid != nil {
			if _, t, err := recur.ParseICalTime(rid.RawValue); err == nil && inWindow(t, start, end) {
				root.Children = append(root.Children, ch)
			}
			continue
		}

		master, err := recur.ExtractMaster(ch, resolver, false)
		if err != nil {
			root.Children = append(root.Children, ch)
			continue
		}
		recurring := master.RRuleText != "" || len(master.RDates) > 0
		occ, err := recur.Expand(master, start, end, limit)
		if err != nil {
			root.Children = append(root.Children, ch)
			continue
		}
		if !recurring {
			if len(occ) > 0 {
				root.Children = append(root.Children, ch)
			}
			continue
		}
		for _, o := range occ {
			root.Children = append(root.Children, syntheticInstance(ch, o))
		}
	}

	return &icalendar.Object{Root: root}
}

// syntheticInstance clones the master component for one occurrence:
// recurrence rules removed, times rewritten in UTC, RECURRENCE-ID set to
// the occurrence start.
func syntheticInstance(master *icalendar.Component, o recur.Occurrence) *icalendar.Component {
	out := &icalendar.Component{Name: master.Name, Kind: master.Kind, Children: master.Children}
	for _, p := range master.Properties {
		switch p.Name {
		case "RRULE", "RDATE", "EXDATE", "DTSTART", "DTEND", "DUE", "DURATION", "RECURRENCE-ID":
			continue
		}
		out.Properties = append(out.Properties, p)
	}
	out.Properties = append(out.Properties, utcProperty("DTSTART", o.StartUTC))
	if o.EndUTC.After(o.StartUTC) {
		endName := "DTEND"
		if master.Kind == icalendar.KindTodo {
			endName = "DUE"
		}
		out.Properties = append(out.Properties, utcProperty(endName, o.EndUTC))
	}
	out.Properties = append(out.Properties, utcProperty("RECURRENCE-ID", o.StartUTC))
	return out
}

func utcProperty(name string, t time.Time) *icalendar.Property {
	raw := t.UTC().Format(icalUTCFormat)
	return &icalendar.Property{
		Name:     name,
		Type:     textcodec.ValueDateTime,
		RawValue: raw,
		Text:     raw,
	}
}

// limitRecurrenceSet keeps masters intact but drops override components
// whose RECURRENCE-ID lies outside [start, end).
func limitRecurrenceSet(obj *icalendar.Object, start, end time.Time) *icalendar.Object {
	root := &icalendar.Component{Name: obj.Root.Name, Kind: obj.Root.Kind, Properties: obj.Root.Properties}
	for _, ch := range obj.Root.Children {
		if rid := ch.GetProperty("RECURRENCE-ID"); rid != nil {
			if _, t, err := recur.ParseICalTime(rid.RawValue); err == nil && !inWindow(t, start, end) {
				continue
			}
		}
		root.Children = append(root.Children, ch)
	}
	return &icalendar.Object{Root: root}
}

func inWindow(t, start, end time.Time) bool {
	if !start.IsZero() && t.Before(start) {
		return false
	}
	if !end.IsZero() && !t.Before(end) {
		return false
	}
	return true
}
