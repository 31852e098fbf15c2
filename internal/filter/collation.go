package filter

import "strings"

// ValidateCollation rejects any collation this evaluator does not
// implement, before any text-match is attempted.
func ValidateCollation(c Collation) error {
	switch c {
	case "", CollationOctet, CollationASCIICasemap, CollationUnicodeCasemap:
		return nil
	default:
		return &UnsupportedCollationError{Collation: string(c)}
	}
}

// foldFor normalizes value and pattern under the given collation: i;octet
// is byte-exact (no folding), i;ascii-casemap folds only ASCII letters,
// i;unicode-casemap folds full Unicode case, approximated with
// strings.ToLower since the stdlib has no full ICU-style fold.
func foldFor(c Collation, s string) string {
	switch c {
	case CollationASCIICasemap:
		return asciiLower(s)
	case CollationUnicodeCasemap:
		return strings.ToLower(s)
	default:
		return s
	}
}

func asciiLower(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}

// MatchText evaluates a single text-match against value.
func MatchText(tm TextMatch, value string) (bool, error) {
	if err := ValidateCollation(tm.Collation); err != nil {
		return false, err
	}
	v := foldFor(tm.Collation, value)
	pat := foldFor(tm.Collation, tm.Value)

	var result bool
	switch tm.Match {
	case MatchEquals:
		result = v == pat
	case MatchStartsWith:
		result = strings.HasPrefix(v, pat)
	case MatchEndsWith:
		result = strings.HasSuffix(v, pat)
	case MatchContains, "":
		result = strings.Contains(v, pat)
	default:
		result = strings.Contains(v, pat)
	}
	if tm.Negate {
		result = !result
	}
	return result, nil
}

// LikePattern renders a text-match as a SQL LIKE pattern with %/_
// escaped, for callers that push the comparison down to the database
// instead of evaluating in memory.
func LikePattern(tm TextMatch) string {
	escaped := strings.NewReplacer("\\", "\\\\", "%", "\\%", "_", "\\_").Replace(tm.Value)
	switch tm.Match {
	case MatchEquals:
		return escaped
	case MatchStartsWith:
		return escaped + "%"
	case MatchEndsWith:
		return "%" + escaped
	default:
		return "%" + escaped + "%"
	}
}
