package vcard

import (
	"strings"

	"github.com/sonroyaalmerol/go-davcore/internal/textcodec"
)

// Serialize produces the canonical byte-stable representation of c.
func Serialize(c *Card) []byte {
	var sb strings.Builder
	sb.WriteString("BEGIN:VCARD\r\n")
	for _, p := range orderProperties(c.Properties) {
		serializeProperty(&sb, p)
	}
	sb.WriteString("END:VCARD\r\n")
	return []byte(sb.String())
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
		line.WriteString(param.Name)
		line.WriteByte('=')
		for i, v := range param.Values {
			if i > 0 {
				line.WriteByte(',')
			}
			encoded := textcodec.CaretEncode(v)
			if textcodec.NeedsQuoting(v) {
				line.WriteByte('"')
				line.WriteString(encoded)
				line.WriteByte('"')
			} else {
				line.WriteString(encoded)
			}
		}
	}
	line.WriteByte(':')
	line.WriteString(serializeValue(p))

	sb.WriteString(textcodec.FoldLine(line.String()))
	sb.WriteString("\r\n")
}

func serializeValue(p *Property) string {
	switch p.Type {
	case textcodec.ValueText:
		return textcodec.EscapeText(p.Text)
	case textcodec.ValueTextList, textcodec.ValueStructured:
		parts := strings.Split(p.Text, "\x00")
		escaped := make([]string, len(parts))
		for i, s := range parts {
			escaped[i] = textcodec.EscapeText(s)
		}
		sep := ","
		if p.Type == textcodec.ValueStructured {
			sep = ";"
		}
		return strings.Join(escaped, sep)
	default:
		return p.RawValue
	}
}
