package shred

import (
	"github.com/google/uuid"
	"github.com/sonroyaalmerol/go-davcore/internal/icalendar"
	"github.com/sonroyaalmerol/go-davcore/internal/textcodec"
)

// ReassembleICalendar rebuilds the canonical tree from stored rows,
// ordered by ordinal, linked by parent_id. Property values are reconstructed
// from the stored raw text; canonical ordering is re-applied by
// icalendar.Serialize at output time, not here.
func ReassembleICalendar(tree Tree) *icalendar.Object {
	byID := make(map[uuid.UUID]*icalendar.Component, len(tree.Components))
	var rootID uuid.UUID

	for _, row := range sortedComponents(tree.Components) {
		c := &icalendar.Component{Name: row.Name}
		c.Kind = kindOfName(row.Name)
		byID[row.ID] = c
		if row.ParentID == nil {
			rootID = row.ID
		}
	}
	for _, row := range sortedComponents(tree.Components) {
		if row.ParentID == nil {
			continue
		}
		parent := byID[*row.ParentID]
		parent.Children = append(parent.Children, byID[row.ID])
	}

	propsByComponent := map[uuid.UUID][]PropertyRow{}
	for _, p := range tree.Properties {
		propsByComponent[p.ComponentID] = append(propsByComponent[p.ComponentID], p)
	}
	paramsByProperty := map[uuid.UUID][]ParameterRow{}
	for _, pr := range tree.Parameters {
		paramsByProperty[pr.PropertyID] = append(paramsByProperty[pr.PropertyID], pr)
	}

	for compID, comp := range byID {
		rows := propsByComponent[compID]
		sortedRows := append([]PropertyRow(nil), rows...)
		insertionSortProperties(sortedRows)
		for _, row := range sortedRows {
			prop := &icalendar.Property{
				Name: row.Name, Group: row.Group, RawValue: row.ValueText,
				Type: storedValueType(row),
			}
			params := append([]ParameterRow(nil), paramsByProperty[row.ID]...)
			insertionSortParameters(params)
			for _, pr := range params {
				prop.Params = append(prop.Params, textcodec.Parameter{Name: pr.Name, Values: splitParamValues(pr.Value)})
			}
			switch prop.Type {
			case textcodec.ValueText:
				prop.Text = textcodec.UnescapeText(prop.RawValue)
			case textcodec.ValueTextList:
				prop.Text = joinDecodedList(textcodec.UnescapeTextList(prop.RawValue))
			default:
				prop.Text = prop.RawValue
			}
			comp.Properties = append(comp.Properties, prop)
		}
	}

	return &icalendar.Object{Root: byID[rootID]}
}

func kindOfName(name string) icalendar.ComponentKind {
	// Delegate to the same table the parser uses, by round-tripping
	// through a throwaway parse-able fragment would be wasteful; the
	// table is small enough to duplicate the lookup here.
	switch name {
	case "VCALENDAR":
		return icalendar.KindCalendar
	case "VEVENT":
		return icalendar.KindEvent
	case "VTODO":
		return icalendar.KindTodo
	case "VJOURNAL":
		return icalendar.KindJournal
	case "VTIMEZONE":
		return icalendar.KindTimezone
	case "STANDARD":
		return icalendar.KindStandard
	case "DAYLIGHT":
		return icalendar.KindDaylight
	case "VALARM":
		return icalendar.KindAlarm
	case "VFREEBUSY":
		return icalendar.KindFreeBusy
	default:
		return icalendar.KindOther
	}
}

// storedValueType prefers the row's full value-type tag; rows written
// before the tag existed fall back to the column-kind mapping.
func storedValueType(row PropertyRow) textcodec.ValueType {
	if row.ValueType != "" {
		return row.ValueType
	}
	return valueTypeFor(row.ValueKind)
}

func valueTypeFor(vk ValueKind) textcodec.ValueType {
	switch vk {
	case ValKindInt:
		return textcodec.ValueInteger
	case ValKindFloat:
		return textcodec.ValueFloat
	case ValKindBool:
		return textcodec.ValueBoolean
	case ValKindDate:
		return textcodec.ValueDate
	case ValKindDateTime:
		return textcodec.ValueDateTime
	case ValKindBytes:
		return textcodec.ValueBinary
	default:
		return textcodec.ValueText
	}
}

func sortedComponents(rows []ComponentRow) []ComponentRow {
	out := append([]ComponentRow(nil), rows...)
	for i := 1; i < len(out); i++ {
		j := i
		for j > 0 && out[j-1].Ordinal > out[j].Ordinal {
			out[j-1], out[j] = out[j], out[j-1]
			j--
		}
	}
	return out
}

func insertionSortProperties(rows []PropertyRow) {
	for i := 1; i < len(rows); i++ {
		j := i
		for j > 0 && rows[j-1].Ordinal > rows[j].Ordinal {
			rows[j-1], rows[j] = rows[j], rows[j-1]
			j--
		}
	}
}

func insertionSortParameters(rows []ParameterRow) {
	for i := 1; i < len(rows); i++ {
		j := i
		for j > 0 && rows[j-1].Ordinal > rows[j].Ordinal {
			rows[j-1], rows[j] = rows[j], rows[j-1]
			j--
		}
	}
}

func splitParamValues(joined string) []string {
	if joined == "" {
		return nil
	}
	var out []string
	cur := ""
	for _, c := range joined {
		if c == ',' {
			out = append(out, cur)
			cur = ""
			continue
		}
		cur += string(c)
	}
	out = append(out, cur)
	return out
}

func joinDecodedList(parts []string) string {
	out := ""
	for i, p := range parts {
		if i > 0 {
			out += "\x00"
		}
		out += p
	}
	return out
}
