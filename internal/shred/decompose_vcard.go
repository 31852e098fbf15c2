package shred

import (
	"strings"

	"github.com/google/uuid"
	"github.com/sonroyaalmerol/go-davcore/internal/vcard"
)

// DecomposeVCard flattens card into a one-component tree (VCARD has no
// children) plus a card_index row, one card_email per EMAIL property and
// one card_phone per TEL property.
func DecomposeVCard(card *vcard.Card) (Tree, Indexes) {
	entityID := uuid.New()
	compID := uuid.New()

	tree := Tree{
		EntityID:   entityID,
		EntityType: EntityVCard,
		LogicalUID: card.UID(),
		Components: []ComponentRow{{ID: compID, EntityID: entityID, ParentID: nil, Name: "VCARD", Ordinal: 0}},
	}

	for i, p := range card.Properties {
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

	idx := buildCardIndex(entityID, card)
	return tree, idx
}

// buildCardIndex extracts the card_index row plus card_email/card_phone
// rows. The case-folded columns back RFC 4790 i;unicode-casemap and
// i;ascii-casemap collations used by filter evaluation.
func buildCardIndex(entityID uuid.UUID, card *vcard.Card) Indexes {
	row := CardIndexRow{EntityID: entityID, UID: card.UID()}
	if p := card.GetProperty("FN"); p != nil {
		row.FN = p.Text
	}
	if p := card.GetProperty("N"); p != nil {
		row.N = p.Text
	}
	if p := card.GetProperty("ORG"); p != nil {
		row.Org = p.Text
	}
	if p := card.GetProperty("TITLE"); p != nil {
		row.Title = p.Text
	}

	foldSource := strings.Join([]string{row.FN, row.N, row.Org, row.Title}, " ")
	row.ValueTextUnicodeFold = strings.ToLower(foldSource)
	row.ValueTextASCIIFold = asciiFold(foldSource)

	var emails []CardEmailRow
	for _, p := range card.AllProperties("EMAIL") {
		emails = append(emails, CardEmailRow{EntityID: entityID, Value: strings.ToLower(p.Text), Original: p.Text})
	}
	var phones []CardPhoneRow
	for _, p := range card.AllProperties("TEL") {
		phones = append(phones, CardPhoneRow{EntityID: entityID, Value: normalizePhone(p.Text), Original: p.Text})
	}

	return Indexes{Card: &row, Emails: emails, Phones: phones}
}

// asciiFold implements i;ascii-casemap (RFC 4790): only ASCII letters are
// case-folded, every other code point (including non-ASCII) passes through.
func asciiFold(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}

// normalizePhone strips formatting punctuation for TEL matching, keeping
// digits and a leading '+', mirroring how the filter evaluator compares
// TEL values independent of presentation.
func normalizePhone(v string) string {
	var b strings.Builder
	for i, c := range v {
		switch {
		case c >= '0' && c <= '9':
			b.WriteRune(c)
		case c == '+' && i == 0:
			b.WriteRune(c)
		}
	}
	return b.String()
}
