// Package icalendar implements the canonical iCalendar (RFC 5545) model:
// a tagged component tree with stable iteration order, plus parse and
// canonical-serialize entry points that together guarantee byte-stable
// ETags across round-trips.
package icalendar

import (
	"strings"

	"github.com/sonroyaalmerol/go-davcore/internal/textcodec"
)

// ComponentKind discriminates the handful of component names the
// canonical orderer treats specially; anything else is KindOther and
// keeps its raw Name.
type ComponentKind int

const (
	KindOther ComponentKind = iota
	KindCalendar
	KindEvent
	KindTodo
	KindJournal
	KindTimezone
	KindStandard
	KindDaylight
	KindAlarm
	KindFreeBusy
)

func kindOf(name string) ComponentKind {
	switch name {
	case "VCALENDAR":
		return KindCalendar
	case "VEVENT":
		return KindEvent
	case "VTODO":
		return KindTodo
	case "VJOURNAL":
		return KindJournal
	case "VTIMEZONE":
		return KindTimezone
	case "STANDARD":
		return KindStandard
	case "DAYLIGHT":
		return KindDaylight
	case "VALARM":
		return KindAlarm
	case "VFREEBUSY":
		return KindFreeBusy
	default:
		return KindOther
	}
}

// Component is one node of the tree: BEGIN:<Name> ... END:<Name>.
type Component struct {
	Name       string
	Kind       ComponentKind
	Properties []*Property
	Children   []*Component
}

// Property is a typed value attached to a component.
type Property struct {
	Group    string // vCard-only group prefix
	Name     string
	Params   []textcodec.Parameter
	Type     textcodec.ValueType
	RawValue string // the exact post-colon text, for non-TEXT round-trip fidelity
	Text     string // decoded value for ValueText/ValueTextList (joined with \x00 if list)
}

// Param returns the first parameter matching name (case-insensitive on name,
// name is expected pre-uppercased already).
func (p *Property) Param(name string) (textcodec.Parameter, bool) {
	for _, pr := range p.Params {
		if strings.EqualFold(pr.Name, name) {
			return pr, true
		}
	}
	return textcodec.Parameter{}, false
}

// GetProperty returns the first property on c matching name (uppercase-
// insensitive, name is expected already uppercased).
func (c *Component) GetProperty(name string) *Property {
	for _, p := range c.Properties {
		if strings.EqualFold(p.Name, name) {
			return p
		}
	}
	return nil
}

// AllProperties returns every property on c named name, in stored order.
func (c *Component) AllProperties(name string) []*Property {
	var out []*Property
	for _, p := range c.Properties {
		if p.Name == name {
			out = append(out, p)
		}
	}
	return out
}

// ChildrenOfKind returns c's direct children with the given component
// name, in stored order.
func (c *Component) ChildrenOfKind(name string) []*Component {
	var out []*Component
	for _, ch := range c.Children {
		if ch.Name == name {
			out = append(out, ch)
		}
	}
	return out
}

// UID returns the UID property's text value, or "" if absent.
func (c *Component) UID() string {
	if p := c.GetProperty("UID"); p != nil {
		return p.Text
	}
	return ""
}

// Object is a full parsed document: a VCALENDAR or VCARD root.
type Object struct {
	Root *Component
}

// UID returns the UID of the first root-level schedulable component
// (VEVENT/VTODO/VJOURNAL).
func (o *Object) UID() string {
	if o == nil || o.Root == nil {
		return ""
	}
	for _, ch := range o.Root.Children {
		switch ch.Kind {
		case KindEvent, KindTodo, KindJournal:
			return ch.UID()
		}
	}
	return ""
}

// SchedulableComponents returns the root-level VEVENT/VTODO/VJOURNAL
// children, in stored order.
func (o *Object) SchedulableComponents() []*Component {
	var out []*Component
	for _, ch := range o.Root.Children {
		switch ch.Kind {
		case KindEvent, KindTodo, KindJournal:
			out = append(out, ch)
		}
	}
	return out
}
