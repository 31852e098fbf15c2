package filter

import (
	"strings"

	"github.com/sonroyaalmerol/go-davcore/internal/icalendar"
	"github.com/sonroyaalmerol/go-davcore/internal/textcodec"
)

// matchPropFilterValues evaluates one prop-filter against the concrete
// occurrences of the named property (RFC 4791 §9.7.2 / RFC 6352 §10.5.1):
// is-not-defined means no occurrence exists; otherwise at least one
// occurrence must satisfy the text-match and every param-filter.
func matchPropFilterValues(pf PropFilter, values []PropValue) (bool, error) {
	if pf.IsNotDefined {
		return len(values) == 0, nil
	}
	if len(values) == 0 {
		return false, nil
	}
	if pf.TextMatch == nil && len(pf.ParamFilters) == 0 {
		return true, nil
	}
	for _, v := range values {
		if pf.TextMatch != nil {
			ok, err := MatchText(*pf.TextMatch, v.Text)
			if err != nil {
				return false, err
			}
			if !ok {
				continue
			}
		}
		ok, err := matchParamFilters(pf.ParamFilters, v.Params)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

// matchParamFilters requires every param-filter to hold on this one
// property occurrence (RFC 4791 §9.7.3).
func matchParamFilters(pfs []ParamFilter, params []textcodec.Parameter) (bool, error) {
	for _, pf := range pfs {
		var matched []textcodec.Parameter
		for _, p := range params {
			if p.Name == pf.Name {
				matched = append(matched, p)
			}
		}
		if pf.IsNotDefined {
			if len(matched) > 0 {
				return false, nil
			}
			continue
		}
		if len(matched) == 0 {
			return false, nil
		}
		if pf.TextMatch == nil {
			continue
		}
		anyValue := false
		for _, p := range matched {
			for _, v := range p.Values {
				ok, err := MatchText(*pf.TextMatch, v)
				if err != nil {
					return false, err
				}
				if ok {
					anyValue = true
					break
				}
			}
			if anyValue {
				break
			}
		}
		if !anyValue {
			return false, nil
		}
	}
	return true, nil
}

// componentPropValues collects the named property's occurrences on one
// reassembled component, parameters included.
func componentPropValues(c *icalendar.Component, name string) []PropValue {
	var out []PropValue
	for _, p := range c.AllProperties(strings.ToUpper(name)) {
		out = append(out, PropValue{Text: p.Text, Params: p.Params})
	}
	return out
}

// matchNestedComponent evaluates a comp-filter nested inside another
// (e.g. a VALARM filter under VEVENT) against the parent's reassembled
// children: is-not-defined means no child of that name exists, otherwise
// at least one child must satisfy all the filter's prop-filters and its
// own nested comp-filters.
func matchNestedComponent(cf CompFilter, parent *icalendar.Component) (bool, error) {
	if parent == nil {
		// The full component could not be loaded; nothing nested can
		// be asserted present.
		return cf.IsNotDefined, nil
	}
	children := parent.ChildrenOfKind(strings.ToUpper(cf.Name))
	if cf.IsNotDefined {
		return len(children) == 0, nil
	}
	if len(children) == 0 {
		return false, nil
	}
childLoop:
	for _, child := range children {
		for _, pf := range cf.PropFilters {
			ok, err := matchPropFilterValues(pf, componentPropValues(child, pf.Name))
			if err != nil {
				return false, err
			}
			if !ok {
				continue childLoop
			}
		}
		for _, nested := range cf.CompFilters {
			ok, err := matchNestedComponent(nested, child)
			if err != nil {
				return false, err
			}
			if !ok {
				continue childLoop
			}
		}
		return true, nil
	}
	return false, nil
}
