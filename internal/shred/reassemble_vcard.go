package shred

import (
	"github.com/sonroyaalmerol/go-davcore/internal/textcodec"
	"github.com/sonroyaalmerol/go-davcore/internal/vcard"
)

// ReassembleVCard rebuilds a Card from a single-component Tree produced by
// DecomposeVCard, ordered by ordinal.
func ReassembleVCard(tree Tree) *vcard.Card {
	if len(tree.Components) == 0 {
		return &vcard.Card{}
	}
	compID := tree.Components[0].ID

	props := append([]PropertyRow(nil), tree.Properties...)
	insertionSortProperties(props)

	paramsByProperty := map[string][]ParameterRow{}
	for _, pr := range tree.Parameters {
		key := pr.PropertyID.String()
		paramsByProperty[key] = append(paramsByProperty[key], pr)
	}

	card := &vcard.Card{}
	for _, row := range props {
		if row.ComponentID != compID {
			continue
		}
		prop := &vcard.Property{
			Name: row.Name, Group: row.Group, RawValue: row.ValueText,
			Type: storedValueType(row),
		}
		params := append([]ParameterRow(nil), paramsByProperty[row.ID.String()]...)
		insertionSortParameters(params)
		for _, pr := range params {
			prop.Params = append(prop.Params, textcodec.Parameter{Name: pr.Name, Values: splitParamValues(pr.Value)})
		}
		switch prop.Type {
		case textcodec.ValueText:
			prop.Text = textcodec.UnescapeText(prop.RawValue)
		case textcodec.ValueTextList:
			prop.Text = joinDecodedList(textcodec.UnescapeTextList(prop.RawValue))
		case textcodec.ValueStructured:
			prop.Text = joinDecodedList(textcodec.UnescapeStructuredList(prop.RawValue))
		default:
			prop.Text = prop.RawValue
		}
		card.Properties = append(card.Properties, prop)
	}
	return card
}
