// Package vcard implements the canonical vCard (RFC 6350) model: a flat
// property list (vCard has no nested components) with group prefixes,
// reusing the textcodec layer built for iCalendar.
package vcard

import "github.com/sonroyaalmerol/go-davcore/internal/textcodec"

// Property is a typed value on a vCard object.
type Property struct {
	Group    string
	Name     string
	Params   []textcodec.Parameter
	Type     textcodec.ValueType
	RawValue string
	Text     string // decoded TEXT/TEXT-LIST value, list entries joined with \x00
}

func (p *Property) Param(name string) (textcodec.Parameter, bool) {
	for _, pr := range p.Params {
		if pr.Name == name {
			return pr, true
		}
	}
	return textcodec.Parameter{}, false
}

// Card is a full parsed VCARD object.
type Card struct {
	Properties []*Property
}

// GetProperty returns the first property named name.
func (c *Card) GetProperty(name string) *Property {
	for _, p := range c.Properties {
		if p.Name == name {
			return p
		}
	}
	return nil
}

// AllProperties returns every property named name, in stored order.
func (c *Card) AllProperties(name string) []*Property {
	var out []*Property
	for _, p := range c.Properties {
		if p.Name == name {
			out = append(out, p)
		}
	}
	return out
}

// UID returns the UID property's text value.
func (c *Card) UID() string {
	if p := c.GetProperty("UID"); p != nil {
		return p.Text
	}
	return ""
}
