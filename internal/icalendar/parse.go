package icalendar

import (
	"strings"

	"github.com/sonroyaalmerol/go-davcore/internal/textcodec"
)

// Parse decodes a complete iCalendar document. The returned *ParseError
// (when non-nil err) carries line/column for diagnostics.
func Parse(data []byte) (*Object, error) {
	unfolded := textcodec.Unfold(data)
	lines := textcodec.SplitLines(unfolded)

	var stack []*Component
	var root *Component

	for _, lr := range lines {
		cl, err := textcodec.ParseContentLine(lr.Text, lr.Num)
		if err != nil {
			return nil, err
		}
		switch cl.Name {
		case "BEGIN":
			name := strings.ToUpper(cl.RawValue)
			c := &Component{Name: name, Kind: kindOf(name)}
			if len(stack) > 0 {
				parent := stack[len(stack)-1]
				parent.Children = append(parent.Children, c)
			} else if root == nil {
				root = c
			}
			stack = append(stack, c)
		case "END":
			if len(stack) == 0 {
				return nil, &textcodec.ParseError{Kind: textcodec.KindMissingPropertyName, Line: lr.Num, Column: 1, Context: "unmatched END"}
			}
			stack = stack[:len(stack)-1]
		default:
			if len(stack) == 0 {
				continue // tolerate stray lines before BEGIN:VCALENDAR/VCARD
			}
			cur := stack[len(stack)-1]
			prop := buildProperty(cl)
			cur.Properties = append(cur.Properties, prop)
		}
	}

	if root == nil {
		return nil, &textcodec.ParseError{Kind: textcodec.KindMissingPropertyName, Line: 0, Column: 0, Context: "no top-level component"}
	}
	return &Object{Root: root}, nil
}

func buildProperty(cl textcodec.ContentLine) *Property {
	vt := textcodec.ResolveValueType(cl.Name, cl.Params)
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
	default:
		p.Text = cl.RawValue
	}
	return p
}
