package filter

import (
	"strings"

	"github.com/sonroyaalmerol/go-davcore/internal/shred"
)

// CardRecord bundles one entity's card_index row with its email/phone
// rows, dispatched by property name. PropertyLookup resolves a
// property's decoded occurrences (parameters included) for filters the
// index rows can't answer.
type CardRecord struct {
	Index          shred.CardIndexRow
	Emails         []shred.CardEmailRow
	Phones         []shred.CardPhoneRow
	PropertyLookup func(name string) []PropValue
}

func indexedCardProperty(rec CardRecord, name string) ([]PropValue, bool) {
	switch strings.ToUpper(name) {
	case "EMAIL":
		out := make([]PropValue, len(rec.Emails))
		for i, e := range rec.Emails {
			out[i] = PropValue{Text: e.Original}
		}
		return out, true
	case "TEL":
		out := make([]PropValue, len(rec.Phones))
		for i, p := range rec.Phones {
			out[i] = PropValue{Text: p.Original}
		}
		return out, true
	case "FN":
		return nonEmpty(rec.Index.FN), true
	case "N":
		return nonEmpty(rec.Index.N), true
	case "ORG":
		return nonEmpty(rec.Index.Org), true
	case "TITLE":
		return nonEmpty(rec.Index.Title), true
	case "UID":
		return nonEmpty(rec.Index.UID), true
	default:
		return nil, false
	}
}

func nonEmpty(s string) []PropValue {
	if s == "" {
		return nil
	}
	return []PropValue{{Text: s}}
}

func matchCardProp(pf PropFilter, rec CardRecord) (bool, error) {
	// Index rows carry values but never parameters (e.g. TYPE on
	// EMAIL/TEL), so a filter with param-filters always reads the full
	// card.
	values, indexed := indexedCardProperty(rec, pf.Name)
	if (!indexed || len(pf.ParamFilters) > 0) && rec.PropertyLookup != nil {
		values = rec.PropertyLookup(pf.Name)
	}
	return matchPropFilterValues(pf, values)
}

// MatchCard evaluates an addressbook-query filter's anyof/allof test
// against rec.
func MatchCard(f AddressbookFilter, rec CardRecord) (bool, error) {
	if len(f.PropFilters) == 0 {
		return true, nil
	}
	switch f.Test {
	case TestAnyOf:
		for _, pf := range f.PropFilters {
			ok, err := matchCardProp(pf, rec)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
		return false, nil
	default: // allof
		for _, pf := range f.PropFilters {
			ok, err := matchCardProp(pf, rec)
			if err != nil {
				return false, err
			}
			if !ok {
				return false, nil
			}
		}
		return true, nil
	}
}
