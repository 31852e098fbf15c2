package vcard

import (
	"strings"

	"github.com/sonroyaalmerol/go-davcore/internal/textcodec"
)

// Parse decodes a single VCARD object (RFC 6350 §6.1). Unlike
// iCalendar, a vCard's BEGIN/END wraps a flat property list with no
// nested components.
func Parse(data []byte) (*Card, error) {
	unfolded := textcodec.Unfold(data)
	lines := textcodec.SplitLines(unfolded)

	card := &Card{}
	inCard := false
	for _, lr := range lines {
		cl, err := textcodec.ParseContentLine(lr.Text, lr.Num)
		if err != nil {
			return nil, err
		}
		switch cl.Name {
		case "BEGIN":
			if strings.ToUpper(cl.RawValue) == "VCARD" {
				inCard = true
			}
		case "END":
			if strings.ToUpper(cl.RawValue) == "VCARD" {
				inCard = false
			}
		default:
			if !inCard {
				continue
			}
			card.Properties = append(card.Properties, buildProperty(cl))
		}
	}
	if len(card.Properties) == 0 {
		return nil, &textcodec.ParseError{Kind: textcodec.KindMissingPropertyName, Context: "no VCARD properties found"}
	}
	return card, nil
}

func buildProperty(cl textcodec.ContentLine) *Property {
	vt := resolveVCardValueType(cl.Name, cl.Params)
	p := &Property{
		Group:    cl.Group,
		Name:     cl.Name,
		Params:   cl.Params,
		Type:     vt,
		RawValue: cl.RawValue,
	}
	switch vt {
	case textcodec.ValueText:
		p.Text = textcodec.UnescapeText(cl.RawValue)
	case textcodec.ValueTextList:
		p.Text = strings.Join(textcodec.UnescapeTextList(cl.RawValue), "\x00")
	case textcodec.ValueStructured:
		p.Text = strings.Join(textcodec.UnescapeStructuredList(cl.RawValue), "\x00")
	default:
		p.Text = cl.RawValue
	}
	return p
}

var vcardValueTypes = map[string]textcodec.ValueType{
	"N":            textcodec.ValueStructured,
	"ADR":          textcodec.ValueStructured,
	"ORG":          textcodec.ValueStructured,
	"GENDER":       textcodec.ValueStructured,
	"CLIENTPIDMAP": textcodec.ValueStructured,
	"NICKNAME":     textcodec.ValueTextList,
	"CATEGORIES":   textcodec.ValueTextList,
	"REV":          textcodec.ValueDateTime,
	"BDAY":         textcodec.ValueDate,
	"PHOTO":        textcodec.ValueURI,
	"LOGO":         textcodec.ValueURI,
	"SOUND":        textcodec.ValueURI,
	"URL":          textcodec.ValueURI,
	"KEY":          textcodec.ValueURI,
}

func resolveVCardValueType(name string, params []textcodec.Parameter) textcodec.ValueType {
	for _, p := range params {
		if p.Name == "VALUE" {
			switch strings.ToUpper(p.Value()) {
			case "TEXT":
				return textcodec.ValueText
			case "URI":
				return textcodec.ValueURI
			case "DATE":
				return textcodec.ValueDate
			case "DATE-TIME":
				return textcodec.ValueDateTime
			}
		}
	}
	if vt, ok := vcardValueTypes[strings.ToUpper(name)]; ok {
		return vt
	}
	return textcodec.ValueText
}
