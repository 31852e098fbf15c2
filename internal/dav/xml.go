// Package dav implements the DAV method engine —
// PROPFIND/PROPPATCH/PUT/GET/HEAD/DELETE/COPY/MOVE/REPORT orchestration,
// precondition handling, and multistatus XML construction — for both
// CalDAV (RFC 4791) and CardDAV (RFC 6352) collections.
package dav

import "encoding/xml"

const (
	nsDAV     = "DAV:"
	nsCalDAV  = "urn:ietf:params:xml:ns:caldav"
	nsCardDAV = "urn:ietf:params:xml:ns:carddav"
)

// MultiStatus is the RFC 4918 §13 multistatus response body.
type MultiStatus struct {
	XMLName   xml.Name   `xml:"DAV: multistatus"`
	XmlnsD    string     `xml:"xmlns:D,attr,omitempty"`
	XmlnsC    string     `xml:"xmlns:C,attr,omitempty"`
	XmlnsCR   string     `xml:"xmlns:CR,attr,omitempty"`
	Responses []Response `xml:"response"`
	SyncToken string     `xml:"DAV: sync-token,omitempty"`
}

func newMultiStatus() *MultiStatus {
	return &MultiStatus{XmlnsD: nsDAV, XmlnsC: nsCalDAV, XmlnsCR: nsCardDAV}
}

// Response is one per-subject entry in a multistatus body.
type Response struct {
	Href      string     `xml:"href"`
	Propstats []Propstat `xml:"propstat,omitempty"`
	Status    string     `xml:"status,omitempty"`
	Error     *ErrorBody `xml:"error,omitempty"`
}

// Propstat groups properties found for a response under a single status.
type Propstat struct {
	Prop   Prop   `xml:"prop"`
	Status string `xml:"status"`
}

// Href is a bare DAV:href element.
type Href struct {
	Value string `xml:",chardata"`
}

// ResourceType distinguishes collection/calendar/addressbook/principal
// resource kinds (RFC 4918 §15.9, RFC 4791 §4.2, RFC 6352 §6.2).
type ResourceType struct {
	Collection  *struct{} `xml:"DAV: collection,omitempty"`
	Principal   *struct{} `xml:"DAV: principal,omitempty"`
	Calendar    *struct{} `xml:"urn:ietf:params:xml:ns:caldav calendar,omitempty"`
	AddressBook *struct{} `xml:"urn:ietf:params:xml:ns:carddav addressbook,omitempty"`
}

// Prop is the catch-all property bag for PROPFIND responses and REPORT
// payload properties. Fields are emitted only when requested and
// populated (omitempty).
type Prop struct {
	ResourceType                   *ResourceType `xml:"DAV: resourcetype,omitempty"`
	DisplayName                    *string       `xml:"DAV: displayname,omitempty"`
	GetETag                        *string       `xml:"DAV: getetag,omitempty"`
	GetLastModified                *string       `xml:"DAV: getlastmodified,omitempty"`
	GetContentType                 *string       `xml:"DAV: getcontenttype,omitempty"`
	SyncToken                      *string       `xml:"DAV: sync-token,omitempty"`
	CurrentUserPrincipal           *Href         `xml:"DAV: current-user-principal>href,omitempty"`
	Owner                          *Href         `xml:"DAV: owner>href,omitempty"`
	CurrentUserPrivilegeSet        *PrivilegeSet `xml:"DAV: current-user-privilege-set,omitempty"`
	ACL                            *ACLProp      `xml:"DAV: acl,omitempty"`
	MatchesWithinLimits            *int          `xml:"DAV: number-of-matches-within-limits,omitempty"`
	SupportedCalendarComponentSet  *CompSet      `xml:"urn:ietf:params:xml:ns:caldav supported-calendar-component-set,omitempty"`
	SupportedCollationSet          *CollSet      `xml:"urn:ietf:params:xml:ns:caldav supported-collation-set,omitempty"`
	CalendarDescription            *string       `xml:"urn:ietf:params:xml:ns:caldav calendar-description,omitempty"`
	AddressbookDescription         *string       `xml:"urn:ietf:params:xml:ns:carddav addressbook-description,omitempty"`
	CalendarData                   string        `xml:"urn:ietf:params:xml:ns:caldav calendar-data,omitempty"`
	AddressData                    string        `xml:"urn:ietf:params:xml:ns:carddav address-data,omitempty"`
	Unknown                        []xmlElem     `xml:",any"`
}

// CompSet is CALDAV:supported-calendar-component-set.
type CompSet struct {
	Comp []Comp `xml:"urn:ietf:params:xml:ns:caldav comp"`
}
type Comp struct {
	Name string `xml:"name,attr"`
}

// CollSet is CALDAV:supported-collation-set / CARDDAV:supported-collation-set.
type CollSet struct {
	Collation []string `xml:"urn:ietf:params:xml:ns:caldav supported-collation"`
}

// PrivilegeSet is DAV:current-user-privilege-set.
type PrivilegeSet struct {
	Privilege []PrivilegeElem `xml:"DAV: privilege"`
}

// PrivilegeElem wraps a single named privilege element, e.g.
// <D:privilege><D:read/></D:privilege>.
type PrivilegeElem struct {
	Name xmlElem `xml:",any"`
}

// ACLProp is DAV:acl: one ACE per distinct (subject, highest-role) pair.
type ACLProp struct {
	ACE []ACE `xml:"DAV: ace"`
}
type ACE struct {
	Principal PrincipalRef `xml:"DAV: principal"`
	Grant     Grant        `xml:"DAV: grant"`
}
type PrincipalRef struct {
	Href            string    `xml:"DAV: href,omitempty"`
	All             *struct{} `xml:"DAV: all,omitempty"`
	Authenticated   *struct{} `xml:"DAV: authenticated,omitempty"`
	Unauthenticated *struct{} `xml:"DAV: unauthenticated,omitempty"`
}
type Grant struct {
	Privilege []PrivilegeElem `xml:"DAV: privilege"`
}

// xmlElem lets a field marshal as an arbitrary element name, used for
// DAV:privilege's inner named-but-empty child (DAV:read, DAV:write-content, ...).
type xmlElem struct {
	XMLName xml.Name
}

func privilegeElem(space, local string) PrivilegeElem {
	return PrivilegeElem{Name: xmlElem{XMLName: xml.Name{Space: space, Local: local}}}
}

// ErrorBody is DAV:error, carrying exactly one named precondition
// element (RFC 4918 §16).
type ErrorBody struct {
	XMLName      xml.Name `xml:"DAV: error"`
	Precondition xmlElem
}

func newErrorBody(namespace, local string) *ErrorBody {
	return &ErrorBody{Precondition: xmlElem{XMLName: xml.Name{Space: namespace, Local: local}}}
}

// ---------- REPORT request bodies ----------

// PropContainer is the DAV:prop element requesting specific properties.
// A CALDAV:calendar-data child is captured separately so its expand /
// limit-recurrence-set modifiers survive.
type PropContainer struct {
	Any          []xml.Name       `xml:",any"`
	CalendarData *CalendarDataReq `xml:"urn:ietf:params:xml:ns:caldav calendar-data"`
}

func (pc PropContainer) wants(local string) bool {
	if local == "calendar-data" && pc.CalendarData != nil {
		return true
	}
	for _, n := range pc.Any {
		if n.Local == local {
			return true
		}
	}
	return false
}

// CalendarDataReq is the CALDAV:calendar-data element of a REPORT
// request, carrying the optional recurrence post-processing modes.
type CalendarDataReq struct {
	Expand             *XMLTimeRange `xml:"urn:ietf:params:xml:ns:caldav expand"`
	LimitRecurrenceSet *XMLTimeRange `xml:"urn:ietf:params:xml:ns:caldav limit-recurrence-set"`
}

// CalendarQuery is a CALDAV:calendar-query REPORT body.
type CalendarQuery struct {
	XMLName xml.Name       `xml:"urn:ietf:params:xml:ns:caldav calendar-query"`
	Prop    PropContainer  `xml:"DAV: prop"`
	Filter  CalendarFilter `xml:"urn:ietf:params:xml:ns:caldav filter"`
}

// CalendarMultiget is a CALDAV:calendar-multiget REPORT body.
type CalendarMultiget struct {
	XMLName xml.Name      `xml:"urn:ietf:params:xml:ns:caldav calendar-multiget"`
	Prop    PropContainer `xml:"DAV: prop"`
	Hrefs   []string      `xml:"DAV: href"`
}

// AddressbookQuery is a CARDDAV:addressbook-query REPORT body.
type AddressbookQuery struct {
	XMLName xml.Name          `xml:"urn:ietf:params:xml:ns:carddav addressbook-query"`
	Prop    PropContainer     `xml:"DAV: prop"`
	Filter  AddressbookFilter `xml:"urn:ietf:params:xml:ns:carddav filter"`
}

// AddressbookMultiget is a CARDDAV:addressbook-multiget REPORT body.
type AddressbookMultiget struct {
	XMLName xml.Name      `xml:"urn:ietf:params:xml:ns:carddav addressbook-multiget"`
	Prop    PropContainer `xml:"DAV: prop"`
	Hrefs   []string      `xml:"DAV: href"`
}

// SyncCollection is a DAV:sync-collection REPORT body (RFC 6578).
type SyncCollection struct {
	XMLName   xml.Name      `xml:"DAV: sync-collection"`
	Prop      PropContainer `xml:"DAV: prop"`
	SyncToken string        `xml:"DAV: sync-token"`
	SyncLevel string        `xml:"DAV: sync-level,omitempty"`
	Limit     *SyncLimit    `xml:"DAV: limit,omitempty"`
}
type SyncLimit struct {
	NResults int `xml:"DAV: nresults"`
}

// CalendarFilter is the RFC 4791 filter grammar: nested comp-filters
// with optional time-range/prop-filter/is-not-defined.
type CalendarFilter struct {
	CompFilter XMLCompFilter `xml:"urn:ietf:params:xml:ns:caldav comp-filter"`
}
type XMLCompFilter struct {
	Name         string          `xml:"name,attr"`
	IsNotDefined *struct{}       `xml:"urn:ietf:params:xml:ns:caldav is-not-defined,omitempty"`
	TimeRange    *XMLTimeRange   `xml:"urn:ietf:params:xml:ns:caldav time-range,omitempty"`
	PropFilter   []XMLPropFilter `xml:"urn:ietf:params:xml:ns:caldav prop-filter,omitempty"`
	CompFilter   []XMLCompFilter `xml:"urn:ietf:params:xml:ns:caldav comp-filter,omitempty"`
}
type XMLTimeRange struct {
	Start string `xml:"start,attr,omitempty"`
	End   string `xml:"end,attr,omitempty"`
}
type XMLPropFilter struct {
	Name         string           `xml:"name,attr"`
	IsNotDefined *struct{}        `xml:"is-not-defined,omitempty"`
	TimeRange    *XMLTimeRange    `xml:"time-range,omitempty"`
	TextMatch    *XMLTextMatch    `xml:"text-match,omitempty"`
	ParamFilter  []XMLParamFilter `xml:"param-filter,omitempty"`
}
type XMLParamFilter struct {
	Name         string        `xml:"name,attr"`
	IsNotDefined *struct{}     `xml:"is-not-defined,omitempty"`
	TextMatch    *XMLTextMatch `xml:"text-match,omitempty"`
}
type XMLTextMatch struct {
	Value          string `xml:",chardata"`
	Collation      string `xml:"collation,attr,omitempty"`
	NegateCondition string `xml:"negate-condition,attr,omitempty"`
	MatchType      string `xml:"match-type,attr,omitempty"`
}

// AddressbookFilter is the RFC 6352 §10.5 filter grammar.
type AddressbookFilter struct {
	Test       string          `xml:"test,attr,omitempty"`
	PropFilter []XMLPropFilter `xml:"urn:ietf:params:xml:ns:carddav prop-filter"`
}

// ExpandPropertyReport is a DAV:expand-property REPORT body (RFC 3253
// §3.8): a tree of property names, where each node asks for the named
// property and, when it is href-valued, the nested properties of the
// resource that href points at.
type ExpandPropertyReport struct {
	XMLName  xml.Name         `xml:"DAV: expand-property"`
	Property []ExpandProperty `xml:"DAV: property"`
}

type ExpandProperty struct {
	Name      string           `xml:"name,attr"`
	Namespace string           `xml:"namespace,attr,omitempty"`
	Property  []ExpandProperty `xml:"DAV: property"`
}

// PrincipalPropertySearch is a DAV:principal-property-search REPORT body
// (RFC 3744 §9.4).
type PrincipalPropertySearch struct {
	XMLName        xml.Name         `xml:"DAV: principal-property-search"`
	PropertySearch []PropertySearch `xml:"DAV: property-search"`
	Prop           PropContainer    `xml:"DAV: prop"`
}

type PropertySearch struct {
	Prop  PropContainer `xml:"DAV: prop"`
	Match string        `xml:"DAV: match"`
}

// PropfindRequest is the PROPFIND request body: allprop, propname, or an
// explicit DAV:prop list.
type PropfindRequest struct {
	XMLName  xml.Name       `xml:"DAV: propfind"`
	AllProp  *struct{}      `xml:"DAV: allprop,omitempty"`
	PropName *struct{}      `xml:"DAV: propname,omitempty"`
	Prop     *PropContainer `xml:"DAV: prop,omitempty"`
}

// ProppatchRequest is the PROPPATCH request body: one or more DAV:set /
// DAV:remove blocks, each wrapping a DAV:prop with arbitrary named
// children (the properties being set or removed).
type ProppatchRequest struct {
	XMLName xml.Name          `xml:"DAV: propertyupdate"`
	Set     []ProppatchAction `xml:"DAV: set"`
	Remove  []ProppatchAction `xml:"DAV: remove"`
}

// ProppatchAction wraps the DAV:prop element of one set/remove block.
type ProppatchAction struct {
	Prop ProppatchPropList `xml:"DAV: prop"`
}

// ProppatchPropList captures each property being set/removed by its raw
// XML name, without interpreting the value — the validation gate only
// needs the name to decide protected-vs-dead-property handling.
type ProppatchPropList struct {
	Items []RawElem `xml:",any"`
}

// RawElem captures an arbitrary element's qualified name and raw inner
// content.
type RawElem struct {
	XMLName xml.Name
	Content string `xml:",innerxml"`
}
