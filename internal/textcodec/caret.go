package textcodec

import "strings"

// CaretEncode applies RFC 6868 encoding to a parameter value destined for
// a quoted-string or bare parameter-value context: ^ -> ^^, LF -> ^n,
// " -> ^'.
func CaretEncode(s string) string {
	if !strings.ContainsAny(s, "^\n\"") {
		return s
	}
	var sb strings.Builder
	for _, c := range s {
		switch c {
		case '^':
			sb.WriteString("^^")
		case '\n':
			sb.WriteString("^n")
		case '"':
			sb.WriteString("^'")
		default:
			sb.WriteRune(c)
		}
	}
	return sb.String()
}

// NeedsQuoting reports whether a parameter value must be wrapped in
// DQUOTEs on serialization (it contains a delimiter character).
func NeedsQuoting(s string) bool {
	return strings.ContainsAny(s, ":;,")
}
