// Package textcodec implements the RFC 5545/6350 text-codec layer:
// line unfolding, content-line tokenization, RFC 6868 caret decoding,
// and TEXT escaping. The codec is hand-rolled so the serializer keeps
// byte-level control over folding and escaping.
package textcodec

import (
	"strings"
)

// ContentLine is one parsed, unfolded logical line: NAME;PARAMS:VALUE.
type ContentLine struct {
	Group    string // vCard property group prefix, empty if absent
	Name     string // uppercased
	Params   []Parameter
	RawValue string // unescaped raw bytes after the colon
}

// Parameter is a NAME with one or more values (comma-joined in the source).
type Parameter struct {
	Name   string // uppercased
	Values []string
}

func (p Parameter) Value() string {
	if len(p.Values) == 0 {
		return ""
	}
	return p.Values[0]
}

// Unfold removes RFC 5545 §3.1 line folding at the byte level before any
// UTF-8 decoding occurs, so a fold that splits a multi-byte sequence is
// recovered correctly. Bare LF is tolerated and normalized to CRLF. No
// space is inserted at a fold boundary.
func Unfold(input []byte) []byte {
	out := make([]byte, 0, len(input))
	i := 0
	n := len(input)
	for i < n {
		if input[i] == '\r' && i+1 < n && input[i+1] == '\n' {
			if i+2 < n && (input[i+2] == ' ' || input[i+2] == '\t') {
				i += 3
				continue
			}
			out = append(out, '\r', '\n')
			i += 2
			continue
		}
		if input[i] == '\n' {
			if i+1 < n && (input[i+1] == ' ' || input[i+1] == '\t') {
				i += 2
				continue
			}
			out = append(out, '\r', '\n')
			i++
			continue
		}
		out = append(out, input[i])
		i++
	}
	return out
}

// SplitLines splits already-unfolded text into logical content lines,
// each paired with its 1-based source line number (for diagnostics).
// A line beginning with SPACE/HTAB here means unfolding already merged
// it with the previous logical line; SplitLines additionally tolerates
// continuation lines that lack a colon entirely, folding them into the
// preceding line as a lenient fallback.
func SplitLines(unfolded []byte) []LineRec {
	var lines []LineRec
	lineNum := 0
	for _, raw := range strings.Split(string(unfolded), "\n") {
		lineNum++
		line := strings.TrimSuffix(raw, "\r")
		if line == "" {
			continue
		}
		if len(lines) > 0 && !strings.Contains(line, ":") {
			lines[len(lines)-1].Text += line
			continue
		}
		lines = append(lines, LineRec{Num: lineNum, Text: line})
	}
	return lines
}

// LineRec is a logical content line with its originating source line number.
type LineRec struct {
	Num  int
	Text string
}

// ParseContentLine parses `[group "."] name *(";" param) ":" value`.
func ParseContentLine(line string, lineNum int) (ContentLine, error) {
	// Split off an optional vCard group prefix: "group.NAME...".
	group := ""
	rest := line
	if dot := strings.IndexByte(line, '.'); dot > 0 {
		candidate := line[:dot]
		if isNameToken(candidate) {
			group = strings.ToUpper(candidate)
			rest = line[dot+1:]
		}
	}

	runes := []rune(rest)
	nameEnd := -1
	colonPos := -1
	i := 0
	for i < len(runes) {
		c := runes[i]
		if c == ';' || c == ':' {
			nameEnd = i
			if c == ':' {
				colonPos = i
			}
			break
		}
		if !isNameChar(c) {
			return ContentLine{}, newErr(KindInvalidPropertyName, lineNum, i+1)
		}
		i++
	}
	if nameEnd <= 0 {
		return ContentLine{}, newErr(KindMissingPropertyName, lineNum, 1)
	}

	name := strings.ToUpper(string(runes[:nameEnd]))

	var params []Parameter
	pos := nameEnd
	if colonPos < 0 {
		pos++ // consume ';'
		for {
			p, nextPos, isColon, err := parseParameter(runes, pos, lineNum)
			if err != nil {
				return ContentLine{}, err
			}
			params = append(params, p)
			pos = nextPos
			if isColon {
				colonPos = pos - 1
				break
			}
		}
	}

	if colonPos < 0 {
		return ContentLine{}, newErr(KindMissingColon, lineNum, len(runes))
	}

	value := string(runes[colonPos+1:])
	return ContentLine{Group: group, Name: name, Params: params, RawValue: value}, nil
}

func isNameChar(c rune) bool {
	return (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9') || c == '-'
}

func isNameToken(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if !isNameChar(c) {
			return false
		}
	}
	return true
}

// parseParameter parses one `name=value[,value...]` starting at pos
// (pointing just past the leading ';' or previous ','/';'). Returns the
// position just past the terminator and whether that terminator was ':'.
func parseParameter(runes []rune, pos int, lineNum int) (Parameter, int, bool, error) {
	start := pos
	nameEnd := -1
	i := pos
	for i < len(runes) {
		c := runes[i]
		if c == '=' {
			nameEnd = i
			i++
			break
		}
		if !isNameChar(c) {
			return Parameter{}, 0, false, newErr(KindInvalidParameter, lineNum, i+1)
		}
		i++
	}
	if nameEnd < 0 || nameEnd == start {
		return Parameter{}, 0, false, newErr(KindInvalidParameter, lineNum, start+1)
	}
	paramName := strings.ToUpper(string(runes[start:nameEnd]))

	var values []string
	for {
		val, next, err := parseParamValue(runes, i, lineNum)
		if err != nil {
			return Parameter{}, 0, false, err
		}
		values = append(values, val)
		i = next
		if i >= len(runes) {
			return Parameter{}, 0, false, newErr(KindMissingColon, lineNum, len(runes))
		}
		switch runes[i] {
		case ',':
			i++
			continue
		case ';':
			return Parameter{Name: paramName, Values: values}, i + 1, false, nil
		case ':':
			return Parameter{Name: paramName, Values: values}, i + 1, true, nil
		default:
			return Parameter{}, 0, false, newErr(KindInvalidParameter, lineNum, i+1).withContext(
				"unexpected character")
		}
	}
}

// parseParamValue parses a single (possibly quoted) parameter value and
// returns the position just past it.
func parseParamValue(runes []rune, pos int, lineNum int) (string, int, error) {
	if pos >= len(runes) {
		return "", 0, newErr(KindInvalidParameter, lineNum, len(runes))
	}
	if runes[pos] == '"' {
		start := pos
		i := pos + 1
		var sb strings.Builder
		closed := false
		for i < len(runes) {
			c := runes[i]
			if c == '"' {
				closed = true
				i++
				break
			}
			if c == '^' && i+1 < len(runes) {
				switch runes[i+1] {
				case '^':
					sb.WriteRune('^')
					i += 2
					continue
				case 'n':
					sb.WriteRune('\n')
					i += 2
					continue
				case '\'':
					sb.WriteRune('"')
					i += 2
					continue
				default:
					sb.WriteRune('^')
					i++
					continue
				}
			}
			sb.WriteRune(c)
			i++
		}
		if !closed {
			return "", 0, newErr(KindUnclosedQuote, lineNum, start+1)
		}
		return sb.String(), i, nil
	}

	var sb strings.Builder
	i := pos
	for i < len(runes) {
		c := runes[i]
		if c == ',' || c == ';' || c == ':' {
			break
		}
		if c == '^' && i+1 < len(runes) {
			switch runes[i+1] {
			case '^':
				sb.WriteRune('^')
				i += 2
				continue
			case 'n':
				sb.WriteRune('\n')
				i += 2
				continue
			case '\'':
				sb.WriteRune('"')
				i += 2
				continue
			}
		}
		sb.WriteRune(c)
		i++
	}
	return sb.String(), i, nil
}
