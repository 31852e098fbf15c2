package icalendar

import (
	"strings"

	"github.com/sonroyaalmerol/go-davcore/internal/textcodec"
)

// Serialize produces the canonical byte-stable representation of o:
// idempotent, UTF-8-safe folding, fixed property/parameter/child
// component ordering.
func Serialize(o *Object) []byte {
	var sb strings.Builder
	serializeComponent(&sb, o.Root)
	return []byte(sb.String())
}

func serializeComponent(sb *strings.Builder, c *Component) {
	sb.WriteString(textcodec.FoldLine("BEGIN:" + c.Name))
	sb.WriteString("\r\n")

	for _, p := range orderProperties(c.Properties, c.Kind) {
		serializeProperty(sb, p)
	}
	for _, ch := range orderChildren(c.Children) {
		serializeComponent(sb, ch)
	}

	sb.WriteString(textcodec.FoldLine("END:" + c.Name))
	sb.WriteString("\r\n")
}

func serializeProperty(sb *strings.Builder, p *Property) {
	var line strings.Builder
	if p.Group != "" {
		line.WriteString(p.Group)
		line.WriteByte('.')
	}
	line.WriteString(p.Name)

	for _, param := range orderParams(p.Params) {
		line.WriteByte(';')
		serializeParameter(&line, param)
	}
	line.WriteByte(':')
	line.WriteString(serializeValue(p))

	sb.WriteString(textcodec.FoldLine(line.String()))
	sb.WriteString("\r\n")
}

func serializeParameter(sb *strings.Builder, p textcodec.Parameter) {
	sb.WriteString(p.Name)
	sb.WriteByte('=')
	for i, v := range p.Values {
		if i > 0 {
			sb.WriteByte(',')
		}
		encoded := textcodec.CaretEncode(v)
		if textcodec.NeedsQuoting(v) {
			sb.WriteByte('"')
			sb.WriteString(encoded)
			sb.WriteByte('"')
		} else {
			sb.WriteString(encoded)
		}
	}
}

// serializeValue prefers the raw stored value for non-TEXT types (fidelity);
// TEXT/TEXT-LIST are re-escaped from the decoded form so escaping stays
// canonical even if the source used a non-canonical escape sequence.
func serializeValue(p *Property) string {
	switch p.Type {
	case textcodec.ValueText:
		return textcodec.EscapeText(p.Text)
	case textcodec.ValueTextList:
		parts := strings.Split(p.Text, "\x00")
		escaped := make([]string, len(parts))
		for i, s := range parts {
			escaped[i] = textcodec.EscapeText(s)
		}
		return strings.Join(escaped, ",")
	default:
		return p.RawValue
	}
}
