package shred

import (
	"encoding/base64"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/sonroyaalmerol/go-davcore/internal/icalendar"
	"github.com/sonroyaalmerol/go-davcore/internal/recur"
	"github.com/sonroyaalmerol/go-davcore/internal/textcodec"
)

// DecomposeICalendar walks obj depth-first, minting fresh ids for every
// component/property/parameter, and builds the event_index row for each
// schedulable root component.
func DecomposeICalendar(obj *icalendar.Object, resolver *recur.Resolver) (Tree, []Indexes) {
	entityID := uuid.New()
	tree := Tree{
		EntityID:   entityID,
		EntityType: EntityICalendar,
		LogicalUID: obj.UID(),
	}

	var indexes []Indexes
	var walk func(c *icalendar.Component, parent *uuid.UUID, ordinal int) uuid.UUID
	walk = func(c *icalendar.Component, parent *uuid.UUID, ordinal int) uuid.UUID {
		compID := uuid.New()
		tree.Components = append(tree.Components, ComponentRow{
			ID: compID, EntityID: entityID, ParentID: parent, Name: c.Name, Ordinal: ordinal,
		})
		for i, p := range c.Properties {
			propID := uuid.New()
			row := PropertyRow{
				ID: propID, ComponentID: compID, Name: p.Name, Group: p.Group,
				Ordinal: i, ValueType: p.Type, ValueKind: valueKindFor(p.Type), ValueText: p.RawValue,
			}
			populateTypedValue(&row)
			tree.Properties = append(tree.Properties, row)
			for j, param := range p.Params {
				tree.Parameters = append(tree.Parameters, ParameterRow{
					ID: uuid.New(), PropertyID: propID, Name: param.Name,
					Value: joinParamValues(param), Ordinal: j,
				})
			}
		}
		for i, child := range c.Children {
			walk(child, &compID, i)
		}
		return compID
	}
	rootID := walk(obj.Root, nil, 0)

	_ = rootID
	for _, sched := range obj.SchedulableComponents() {
		idx := buildEventIndex(sched, resolver)
		idx.EntityID = entityID
		indexes = append(indexes, Indexes{Event: &idx})
	}

	return tree, indexes
}

func valueKindFor(vt textcodec.ValueType) ValueKind {
	switch vt {
	case textcodec.ValueInteger:
		return ValKindInt
	case textcodec.ValueFloat:
		return ValKindFloat
	case textcodec.ValueBoolean:
		return ValKindBool
	case textcodec.ValueDate:
		return ValKindDate
	case textcodec.ValueDateTime:
		return ValKindDateTime
	case textcodec.ValueBinary:
		return ValKindBytes
	default:
		return ValKindText
	}
}

// populateTypedValue fills the value_* column row.ValueKind selects, from
// the raw text. The raw form always stays in ValueText; a value that
// fails to parse as its declared type degrades to text-only storage.
func populateTypedValue(row *PropertyRow) {
	raw := strings.TrimSpace(row.ValueText)
	switch row.ValueKind {
	case ValKindInt:
		if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
			row.ValueInt = &n
		} else {
			row.ValueKind = ValKindText
		}
	case ValKindFloat:
		// GEO carries "lat;lon"; index the first coordinate.
		part := raw
		if i := strings.IndexByte(part, ';'); i >= 0 {
			part = part[:i]
		}
		if f, err := strconv.ParseFloat(part, 64); err == nil {
			row.ValueFloat = &f
		} else {
			row.ValueKind = ValKindText
		}
	case ValKindBool:
		switch strings.ToUpper(raw) {
		case "TRUE":
			v := true
			row.ValueBool = &v
		case "FALSE":
			v := false
			row.ValueBool = &v
		default:
			row.ValueKind = ValKindText
		}
	case ValKindDate, ValKindDateTime:
		// Multi-valued RDATE/EXDATE lists keep only their first instant
		// in the typed column; the full list lives in ValueText.
		part := raw
		if i := strings.IndexByte(part, ','); i >= 0 {
			part = part[:i]
		}
		if _, t, err := recur.ParseICalTime(part); err == nil {
			if row.ValueKind == ValKindDate {
				row.ValueDate = &t
			} else {
				row.ValueDateTimeUTC = &t
			}
		} else {
			row.ValueKind = ValKindText
		}
	case ValKindBytes:
		if b, err := base64.StdEncoding.DecodeString(raw); err == nil {
			row.ValueBytes = b
		} else {
			row.ValueKind = ValKindText
		}
	}
}

func joinParamValues(p textcodec.Parameter) string {
	out := ""
	for i, v := range p.Values {
		if i > 0 {
			out += ","
		}
		out += v
	}
	return out
}

func buildEventIndex(comp *icalendar.Component, resolver *recur.Resolver) EventIndexRow {
	var row EventIndexRow
	if p := comp.GetProperty("SUMMARY"); p != nil {
		row.Summary = p.Text
	}
	if p := comp.GetProperty("LOCATION"); p != nil {
		row.Location = p.Text
	}
	if p := comp.GetProperty("STATUS"); p != nil {
		row.Status = p.Text
	}
	if p := comp.GetProperty("RRULE"); p != nil {
		row.RRuleText = p.RawValue
	}
	master, err := recur.ExtractMaster(comp, resolver, true)
	if err == nil {
		start := master.DTStartUTC
		row.DTStartUTC = &start
		end := master.DTStartUTC.Add(master.Duration)
		row.DTEndUTC = &end
	}
	if p := comp.GetProperty("RECURRENCE-ID"); p != nil {
		if _, wall, err := recur.ParseICalTime(p.RawValue); err == nil {
			row.RecurrenceIDUTC = &wall
		}
	}
	return row
}
