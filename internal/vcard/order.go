package vcard

import "github.com/sonroyaalmerol/go-davcore/internal/textcodec"

// canonicalPropertyOrder. RFC 6350 doesn't mandate a property order the
// way iCalendar's source does; this extends the same canonical-ordering
// idea (identity properties first, matching the iCalendar table's
// UID-early convention) so vCard ETags are equally as stable.
var canonicalPropertyOrder = []string{
	"VERSION", "UID", "FN", "N", "NICKNAME", "PHOTO", "BDAY", "GENDER",
	"ADR", "LABEL", "TEL", "EMAIL", "IMPP", "LANG", "TZ", "GEO", "TITLE",
	"ROLE", "LOGO", "ORG", "MEMBER", "RELATED", "CATEGORIES", "NOTE",
	"PRODID", "REV", "SOUND", "CLIENTPIDMAP", "URL", "KEY", "FBURL",
	"CALADRURI", "CALURI",
}

var canonicalParamOrder = []string{
	"VALUE", "PREF", "TYPE", "LANGUAGE", "ALTID", "PID", "MEDIATYPE",
	"CALSCALE", "SORT-AS", "GEO", "TZ",
}

func orderProperties(props []*Property) []*Property {
	out := make([]*Property, 0, len(props))
	used := make([]bool, len(props))
	for _, name := range canonicalPropertyOrder {
		for i, p := range props {
			if !used[i] && p.Name == name {
				out = append(out, p)
				used[i] = true
			}
		}
	}
	for i, p := range props {
		if !used[i] {
			out = append(out, p)
		}
	}
	return out
}

func orderParams(params []textcodec.Parameter) []textcodec.Parameter {
	out := make([]textcodec.Parameter, 0, len(params))
	used := make([]bool, len(params))
	for _, name := range canonicalParamOrder {
		for i, p := range params {
			if !used[i] && p.Name == name {
				out = append(out, p)
				used[i] = true
			}
		}
	}
	for i, p := range params {
		if !used[i] {
			out = append(out, p)
		}
	}
	return out
}
