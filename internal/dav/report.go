package dav

import (
	"context"
	"encoding/xml"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/sonroyaalmerol/go-davcore/internal/apperror"
	"github.com/sonroyaalmerol/go-davcore/internal/authz"
	"github.com/sonroyaalmerol/go-davcore/internal/filter"
	"github.com/sonroyaalmerol/go-davcore/internal/icalendar"
	"github.com/sonroyaalmerol/go-davcore/internal/path"
	"github.com/sonroyaalmerol/go-davcore/internal/recur"
	"github.com/sonroyaalmerol/go-davcore/internal/shred"
	"github.com/sonroyaalmerol/go-davcore/internal/storage"
	"github.com/sonroyaalmerol/go-davcore/internal/vcard"
)

// HandleReport dispatches on the request body's root element to one of
// the supported REPORT types.
func (h *Handler) HandleReport(w http.ResponseWriter, r *http.Request) {
	res, err := h.resolve(r)
	if err != nil {
		writeAppError(w, err)
		return
	}
	if res.Collection == nil {
		writeAppError(w, apperror.NotFound("collection not found"))
		return
	}
	if err := h.authorize(r, res, authz.ActionRead); err != nil {
		writeAppError(w, err)
		return
	}

	raw, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		writeAppError(w, apperror.BadRequest("failed to read REPORT body"))
		return
	}

	var probe struct {
		XMLName xml.Name
	}
	if err := xml.Unmarshal(raw, &probe); err != nil {
		writeAppError(w, apperror.BadRequest("malformed REPORT body"))
		return
	}

	pbc := h.newPropBuildCtx(r)

	switch probe.XMLName.Local {
	case "calendar-query":
		h.reportCalendarQuery(w, r, pbc, res, raw)
	case "calendar-multiget":
		h.reportCalendarMultiget(w, r, pbc, res, raw)
	case "addressbook-query":
		h.reportAddressbookQuery(w, r, pbc, res, raw)
	case "addressbook-multiget":
		h.reportAddressbookMultiget(w, r, pbc, res, raw)
	case "sync-collection":
		h.reportSyncCollection(w, r, pbc, res, raw)
	case "expand-property":
		h.reportExpandProperty(w, r, pbc, res, raw)
	case "principal-property-search":
		h.reportPrincipalPropertySearch(w, r, pbc, raw)
	default:
		writeAppError(w, &apperror.AppError{Kind: apperror.KindValidationError, Status: http.StatusForbidden,
			Message: "unsupported report type: " + probe.XMLName.Local})
	}
}

// writeFilterError maps a filter-evaluation failure to the 403 +
// precondition element the protocol requires: an
// unsupported collation names CALDAV:/CARDDAV:supported-collation in the
// namespace matching the collection's protocol.
func writeFilterError(w http.ResponseWriter, colType storage.CollectionType, err error) {
	ns := nsCalDAV
	if colType == storage.CollectionAddressBook {
		ns = nsCardDAV
	}
	var uc *filter.UnsupportedCollationError
	if errors.As(err, &uc) {
		writePreconditionError(w, http.StatusForbidden, ns, apperror.PreconditionSupportedCollation)
		return
	}
	writePreconditionError(w, http.StatusForbidden, ns, apperror.PreconditionSupportedFilter)
}

// ---------- filter AST conversion ----------

func convertTimeRange(tr *XMLTimeRange) *filter.TimeRange {
	if tr == nil {
		return nil
	}
	out := &filter.TimeRange{}
	if tr.Start != "" {
		if _, t, err := recur.ParseICalTime(tr.Start); err == nil {
			out.Start = t
		}
	}
	if tr.End != "" {
		if _, t, err := recur.ParseICalTime(tr.End); err == nil {
			out.End = t
		}
	}
	return out
}

func convertTextMatch(tm *XMLTextMatch) *filter.TextMatch {
	if tm == nil {
		return nil
	}
	mt := filter.MatchType(tm.MatchType)
	switch mt {
	case filter.MatchContains, filter.MatchEquals, filter.MatchStartsWith, filter.MatchEndsWith:
	default:
		mt = filter.MatchContains
	}
	return &filter.TextMatch{
		Value:     tm.Value,
		Collation: filter.Collation(tm.Collation),
		Negate:    strings.EqualFold(tm.NegateCondition, "yes"),
		Match:     mt,
	}
}

func convertParamFilters(pfs []XMLParamFilter) []filter.ParamFilter {
	out := make([]filter.ParamFilter, 0, len(pfs))
	for _, p := range pfs {
		out = append(out, filter.ParamFilter{
			Name:         strings.ToUpper(p.Name),
			IsNotDefined: p.IsNotDefined != nil,
			TextMatch:    convertTextMatch(p.TextMatch),
		})
	}
	return out
}

func convertPropFilters(pfs []XMLPropFilter) []filter.PropFilter {
	out := make([]filter.PropFilter, 0, len(pfs))
	for _, p := range pfs {
		out = append(out, filter.PropFilter{
			Name:         strings.ToUpper(p.Name),
			IsNotDefined: p.IsNotDefined != nil,
			TimeRange:    convertTimeRange(p.TimeRange),
			TextMatch:    convertTextMatch(p.TextMatch),
			ParamFilters: convertParamFilters(p.ParamFilter),
		})
	}
	return out
}

func convertCompFilter(cf XMLCompFilter) filter.CompFilter {
	children := make([]filter.CompFilter, 0, len(cf.CompFilter))
	for _, c := range cf.CompFilter {
		children = append(children, convertCompFilter(c))
	}
	return filter.CompFilter{
		Name:         strings.ToUpper(cf.Name),
		IsNotDefined: cf.IsNotDefined != nil,
		TimeRange:    convertTimeRange(cf.TimeRange),
		PropFilters:  convertPropFilters(cf.PropFilter),
		CompFilters:  children,
	}
}

func convertAddressbookFilter(f AddressbookFilter) filter.AddressbookFilter {
	test := filter.TestAnyOf
	if strings.EqualFold(f.Test, "allof") {
		test = filter.TestAllOf
	}
	return filter.AddressbookFilter{Test: test, PropFilters: convertPropFilters(f.PropFilter)}
}

// ---------- record loading ----------

// eventRecordFor builds a filter.EventRecord for idx, lazily reassembling
// the full entity only if a recurring master or a non-indexed property
// lookup is actually needed. The resolver is request-scoped; its TZID
// cache is never shared across requests.
func (h *Handler) eventRecordFor(ctx context.Context, resolver *recur.Resolver, idx shred.EventIndexRow) filter.EventRecord {
	var loaded bool
	var comp *icalendar.Component

	load := func() *icalendar.Component {
		if loaded {
			return comp
		}
		loaded = true
		entity, err := h.Store.GetEntity(ctx, idx.EntityID)
		if err != nil || entity == nil {
			return nil
		}
		obj := shred.ReassembleICalendar(entity.Tree)
		recur.RegisterEmbedded(resolver, obj)
		scs := obj.SchedulableComponents()
		for _, sc := range scs {
			hasRID := sc.GetProperty("RECURRENCE-ID") != nil
			if idx.RecurrenceIDUTC == nil && !hasRID {
				comp = sc
				break
			}
			if idx.RecurrenceIDUTC != nil && hasRID {
				comp = sc
				break
			}
		}
		if comp == nil && len(scs) > 0 {
			comp = scs[0]
		}
		return comp
	}

	var master *recur.Master
	if idx.RRuleText != "" {
		if c := load(); c != nil {
			if m, err := recur.ExtractMaster(c, resolver, false); err == nil {
				master = &m
			}
		}
	}

	return filter.EventRecord{
		Index:  idx,
		Master: master,
		PropertyLookup: func(name string) []filter.PropValue {
			c := load()
			if c == nil {
				return nil
			}
			var vals []filter.PropValue
			for _, p := range c.AllProperties(strings.ToUpper(name)) {
				vals = append(vals, filter.PropValue{Text: p.Text, Params: p.Params})
			}
			return vals
		},
		Component: load,
	}
}

// cardRecordFor builds a filter.CardRecord for idx, lazily reassembling
// the vCard only if a non-indexed property lookup is actually needed.
func (h *Handler) cardRecordFor(ctx context.Context, idx shred.CardIndexRow, emails []shred.CardEmailRow, phones []shred.CardPhoneRow) filter.CardRecord {
	var loaded bool
	var card *vcard.Card

	load := func() *vcard.Card {
		if loaded {
			return card
		}
		loaded = true
		entity, err := h.Store.GetEntity(ctx, idx.EntityID)
		if err != nil || entity == nil {
			return nil
		}
		card = shred.ReassembleVCard(entity.Tree)
		return card
	}

	return filter.CardRecord{
		Index:  idx,
		Emails: emails,
		Phones: phones,
		PropertyLookup: func(name string) []filter.PropValue {
			c := load()
			if c == nil {
				return nil
			}
			var vals []filter.PropValue
			for _, p := range c.AllProperties(strings.ToUpper(name)) {
				vals = append(vals, filter.PropValue{Text: p.Text, Params: p.Params})
			}
			return vals
		},
	}
}

// instancesByEntity groups a collection's live instances by the entity
// they point at, since COPY gives one entity multiple instance hrefs.
func instancesByEntity(instances []storage.Instance) map[uuid.UUID][]storage.Instance {
	out := map[uuid.UUID][]storage.Instance{}
	for _, inst := range instances {
		out[inst.EntityID] = append(out[inst.EntityID], inst)
	}
	return out
}

func (h *Handler) hrefFor(res *path.Resolved, slug string) string {
	var sb strings.Builder
	sb.WriteString(h.APIPrefix)
	sb.WriteString("/")
	sb.WriteString(string(res.ResourceType))
	sb.WriteString("/")
	sb.WriteString(res.OwnerSlug)
	sb.WriteString("/")
	sb.WriteString(res.CollectionSlug)
	if slug != "" {
		sb.WriteString("/")
		sb.WriteString(slug)
	}
	return sb.String()
}

func instanceResolved(res *path.Resolved, inst storage.Instance) *path.Resolved {
	loc := res.Location
	loc.ItemSlug = inst.Slug
	loc.HasItem = true
	return &path.Resolved{Location: loc, OwnerPrincipalID: res.OwnerPrincipalID, Collection: res.Collection, Instance: &inst}
}

// ---------- calendar-query / calendar-multiget ----------

func (h *Handler) reportCalendarQuery(w http.ResponseWriter, r *http.Request, pbc *propBuildCtx, res *path.Resolved, raw []byte) {
	var q CalendarQuery
	if err := xml.Unmarshal(raw, &q); err != nil {
		writeAppError(w, apperror.BadRequest("malformed calendar-query body"))
		return
	}
	cf := convertCompFilter(q.Filter.CompFilter)
	pbc.calData = q.Prop.CalendarData

	rows, err := h.Store.ListEventIndex(r.Context(), res.Collection.ID)
	if err != nil {
		writeAppError(w, apperror.StorageFailure(err))
		return
	}
	instances, err := h.Store.ListCollection(r.Context(), res.Collection.ID)
	if err != nil {
		writeAppError(w, apperror.StorageFailure(err))
		return
	}
	byEntity := instancesByEntity(instances)

	want := q.Prop.wants
	resolver := recur.NewResolver()
	ms := newMultiStatus()
	for _, idx := range rows {
		rec := h.eventRecordFor(r.Context(), resolver, idx)
		ok, merr := filter.MatchEvent(cf, rec, nil)
		if merr != nil {
			writeFilterError(w, res.Collection.Type, merr)
			return
		}
		if !ok {
			continue
		}
		for _, inst := range byEntity[idx.EntityID] {
			childRes := instanceResolved(res, inst)
			prop, missing := h.buildInstanceProp(r.Context(), pbc, childRes, want, false)
			resp := Response{Href: h.hrefFor(res, inst.Slug), Propstats: []Propstat{{Prop: prop, Status: "HTTP/1.1 200 OK"}}}
			if len(missing) > 0 {
				resp.Propstats = append(resp.Propstats, Propstat{Prop: missingProp(missing), Status: "HTTP/1.1 404 Not Found"})
			}
			ms.Responses = append(ms.Responses, resp)
		}
	}
	writeMultiStatus(w, ms)
}

func (h *Handler) reportCalendarMultiget(w http.ResponseWriter, r *http.Request, pbc *propBuildCtx, res *path.Resolved, raw []byte) {
	var q CalendarMultiget
	if err := xml.Unmarshal(raw, &q); err != nil {
		writeAppError(w, apperror.BadRequest("malformed calendar-multiget body"))
		return
	}
	pbc.calData = q.Prop.CalendarData
	h.multiget(w, r, pbc, res, q.Prop, q.Hrefs)
}

func (h *Handler) reportAddressbookMultiget(w http.ResponseWriter, r *http.Request, pbc *propBuildCtx, res *path.Resolved, raw []byte) {
	var q AddressbookMultiget
	if err := xml.Unmarshal(raw, &q); err != nil {
		writeAppError(w, apperror.BadRequest("malformed addressbook-multiget body"))
		return
	}
	h.multiget(w, r, pbc, res, q.Prop, q.Hrefs)
}

func (h *Handler) multiget(w http.ResponseWriter, r *http.Request, pbc *propBuildCtx, res *path.Resolved, propReq PropContainer, hrefs []string) {
	ms := newMultiStatus()
	for _, href := range hrefs {
		loc, err := path.Parse(href, h.APIPrefix)
		if err != nil {
			ms.Responses = append(ms.Responses, Response{Href: href, Status: "HTTP/1.1 404 Not Found"})
			continue
		}
		childRes, err := path.Resolve(r.Context(), h.Store, *loc)
		if err != nil || childRes.Collection == nil || !childRes.HasItem || childRes.Instance == nil {
			ms.Responses = append(ms.Responses, Response{Href: href, Status: "HTTP/1.1 404 Not Found"})
			continue
		}
		prop, missing := h.buildInstanceProp(r.Context(), pbc, childRes, propReq.wants, false)
		resp := Response{Href: h.hrefFor(childRes, childRes.ItemSlug), Propstats: []Propstat{{Prop: prop, Status: "HTTP/1.1 200 OK"}}}
		if len(missing) > 0 {
			resp.Propstats = append(resp.Propstats, Propstat{Prop: missingProp(missing), Status: "HTTP/1.1 404 Not Found"})
		}
		ms.Responses = append(ms.Responses, resp)
	}
	writeMultiStatus(w, ms)
}

// ---------- addressbook-query ----------

func (h *Handler) reportAddressbookQuery(w http.ResponseWriter, r *http.Request, pbc *propBuildCtx, res *path.Resolved, raw []byte) {
	var q AddressbookQuery
	if err := xml.Unmarshal(raw, &q); err != nil {
		writeAppError(w, apperror.BadRequest("malformed addressbook-query body"))
		return
	}
	af := convertAddressbookFilter(q.Filter)

	rows, err := h.Store.ListCardIndex(r.Context(), res.Collection.ID)
	if err != nil {
		writeAppError(w, apperror.StorageFailure(err))
		return
	}
	emails, err := h.Store.ListCardEmails(r.Context(), res.Collection.ID)
	if err != nil {
		writeAppError(w, apperror.StorageFailure(err))
		return
	}
	phones, err := h.Store.ListCardPhones(r.Context(), res.Collection.ID)
	if err != nil {
		writeAppError(w, apperror.StorageFailure(err))
		return
	}
	emailsByEntity := map[uuid.UUID][]shred.CardEmailRow{}
	for _, e := range emails {
		emailsByEntity[e.EntityID] = append(emailsByEntity[e.EntityID], e)
	}
	phonesByEntity := map[uuid.UUID][]shred.CardPhoneRow{}
	for _, p := range phones {
		phonesByEntity[p.EntityID] = append(phonesByEntity[p.EntityID], p)
	}

	instances, err := h.Store.ListCollection(r.Context(), res.Collection.ID)
	if err != nil {
		writeAppError(w, apperror.StorageFailure(err))
		return
	}
	byEntity := instancesByEntity(instances)

	want := q.Prop.wants
	ms := newMultiStatus()
	for _, idx := range rows {
		rec := h.cardRecordFor(r.Context(), idx, emailsByEntity[idx.EntityID], phonesByEntity[idx.EntityID])
		ok, merr := filter.MatchCard(af, rec)
		if merr != nil {
			writeFilterError(w, res.Collection.Type, merr)
			return
		}
		if !ok {
			continue
		}
		for _, inst := range byEntity[idx.EntityID] {
			childRes := instanceResolved(res, inst)
			prop, missing := h.buildInstanceProp(r.Context(), pbc, childRes, want, false)
			resp := Response{Href: h.hrefFor(res, inst.Slug), Propstats: []Propstat{{Prop: prop, Status: "HTTP/1.1 200 OK"}}}
			if len(missing) > 0 {
				resp.Propstats = append(resp.Propstats, Propstat{Prop: missingProp(missing), Status: "HTTP/1.1 404 Not Found"})
			}
			ms.Responses = append(ms.Responses, resp)
		}
	}
	writeMultiStatus(w, ms)
}

// ---------- sync-collection ----------

// parseSyncToken decodes a presented sync token. An empty token means
// initial sync; anything else must be a token this server issued, or the
// client is told to resync from scratch.
func parseSyncToken(raw string) (int64, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, true
	}
	const prefix = "urn:x-davcore:synctoken:"
	if !strings.HasPrefix(raw, prefix) {
		return 0, false
	}
	n, err := strconv.ParseInt(strings.TrimPrefix(raw, prefix), 10, 64)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

func (h *Handler) reportSyncCollection(w http.ResponseWriter, r *http.Request, pbc *propBuildCtx, res *path.Resolved, raw []byte) {
	var q SyncCollection
	if err := xml.Unmarshal(raw, &q); err != nil {
		writeAppError(w, apperror.BadRequest("malformed sync-collection body"))
		return
	}
	since, ok := parseSyncToken(q.SyncToken)
	if !ok || since > res.Collection.SyncToken {
		writeAppError(w, apperror.ForbiddenPrecondition(apperror.PreconditionValidSyncToken,
			"sync token not recognized; perform a full resync"))
		return
	}
	limit := 0
	if q.Limit != nil {
		limit = q.Limit.NResults
	}

	changes, err := h.Store.ChangesSince(r.Context(), res.Collection.ID, since, limit)
	if err != nil {
		writeAppError(w, apperror.StorageFailure(err))
		return
	}

	want := q.Prop.wants
	ms := newMultiStatus()
	if limit > 0 && len(changes.Instances) >= limit {
		// Truncated result set: surface the count on the collection
		// itself per RFC 6578 §3.2 so the client knows to sync again.
		n := len(changes.Instances)
		ms.Responses = append(ms.Responses, Response{
			Href: h.hrefFor(res, ""),
			Propstats: []Propstat{{
				Prop:   Prop{MatchesWithinLimits: &n},
				Status: "HTTP/1.1 507 Insufficient Storage",
			}},
		})
	}
	for _, inst := range changes.Instances {
		childRes := instanceResolved(res, inst)
		prop, missing := h.buildInstanceProp(r.Context(), pbc, childRes, want, false)
		resp := Response{Href: h.hrefFor(res, inst.Slug), Propstats: []Propstat{{Prop: prop, Status: "HTTP/1.1 200 OK"}}}
		if len(missing) > 0 {
			resp.Propstats = append(resp.Propstats, Propstat{Prop: missingProp(missing), Status: "HTTP/1.1 404 Not Found"})
		}
		ms.Responses = append(ms.Responses, resp)
	}
	for _, tomb := range changes.Tombstones {
		ms.Responses = append(ms.Responses, Response{Href: h.hrefFor(res, tomb.Slug), Status: "HTTP/1.1 404 Not Found"})
	}
	ms.SyncToken = syncTokenURI(changes.NewToken)
	writeMultiStatus(w, ms)
}

// ---------- expand-property ----------

// expandMultiStatus mirrors MultiStatus but lets property elements carry
// nested DAV:response children, which the static Prop struct cannot.
type expandMultiStatus struct {
	XMLName   xml.Name         `xml:"DAV: multistatus"`
	Responses []expandResponse `xml:"DAV: response"`
}

type expandResponse struct {
	Href      string           `xml:"DAV: href"`
	Propstats []expandPropstat `xml:"DAV: propstat"`
}

type expandPropstat struct {
	Prop   expandProp `xml:"DAV: prop"`
	Status string     `xml:"DAV: status"`
}

type expandProp struct {
	XMLName xml.Name           `xml:"DAV: prop"`
	Elems   []expandedPropElem `xml:",omitempty"`
}

// expandedPropElem is one expanded property: the property element itself
// wrapping a DAV:response describing the resource its href points at.
type expandedPropElem struct {
	XMLName  xml.Name
	Response *Response `xml:"DAV: response,omitempty"`
}

// reportExpandProperty implements the DAV:expand-property REPORT
// (RFC 3253 §3.8) for the href-valued properties this server exposes:
// DAV:owner and DAV:current-user-principal, each expanded into the named
// principal's displayname and resourcetype.
func (h *Handler) reportExpandProperty(w http.ResponseWriter, r *http.Request, pbc *propBuildCtx, res *path.Resolved, raw []byte) {
	var q ExpandPropertyReport
	if err := xml.Unmarshal(raw, &q); err != nil {
		writeAppError(w, apperror.BadRequest("malformed expand-property body"))
		return
	}

	found := expandPropstat{Status: "HTTP/1.1 200 OK"}
	missing := expandPropstat{Status: "HTTP/1.1 404 Not Found"}
	for _, req := range q.Property {
		var principalID string
		switch req.Name {
		case "owner":
			principalID = res.Collection.OwnerPrincipal
		case "current-user-principal":
			principalID = firstPrincipalSubject(pbc.subjects)
		}
		if principalID == "" {
			missing.Prop.Elems = append(missing.Prop.Elems, expandedPropElem{
				XMLName: xml.Name{Space: nsDAV, Local: req.Name},
			})
			continue
		}
		found.Prop.Elems = append(found.Prop.Elems, expandedPropElem{
			XMLName:  xml.Name{Space: nsDAV, Local: req.Name},
			Response: h.principalResponse(r.Context(), pbc, principalID, req.Property),
		})
	}

	ms := expandMultiStatus{}
	resp := expandResponse{Href: h.hrefFor(res, res.ItemSlug)}
	if len(found.Prop.Elems) > 0 {
		resp.Propstats = append(resp.Propstats, found)
	}
	if len(missing.Prop.Elems) > 0 {
		resp.Propstats = append(resp.Propstats, missing)
	}
	ms.Responses = append(ms.Responses, resp)

	w.Header().Set("Content-Type", "application/xml; charset=utf-8")
	w.WriteHeader(http.StatusMultiStatus)
	_, _ = w.Write([]byte(xml.Header))
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	_ = enc.Encode(ms)
}

// principalResponse builds the nested DAV:response for an expanded
// principal href, carrying whichever of the requested sub-properties the
// principal store can answer.
func (h *Handler) principalResponse(ctx context.Context, pbc *propBuildCtx, principalID string, nested []ExpandProperty) *Response {
	href := pbc.principalsBase + "/" + principalID
	var prop Prop
	wantsName := len(nested) == 0
	for _, n := range nested {
		if n.Name == "displayname" {
			wantsName = true
		}
	}
	prop.ResourceType = &ResourceType{Principal: &struct{}{}}
	if wantsName {
		if p, err := h.Store.GetPrincipal(ctx, principalID); err == nil && p != nil && p.DisplayName != "" {
			dn := p.DisplayName
			prop.DisplayName = &dn
		}
	}
	return &Response{
		Href:      href,
		Propstats: []Propstat{{Prop: prop, Status: "HTTP/1.1 200 OK"}},
	}
}

// ---------- principal-property-search ----------

// reportPrincipalPropertySearch implements the RFC 3744 §9.4 REPORT over
// the principal store. Matching is against DAV:displayname (the only
// searchable principal property this server carries). Only the first
// property-search clause that names DAV:displayname with a non-empty
// match is applied; other clauses are not evaluated, and with no such
// clause every principal is returned.
func (h *Handler) reportPrincipalPropertySearch(w http.ResponseWriter, r *http.Request, pbc *propBuildCtx, raw []byte) {
	var q PrincipalPropertySearch
	if err := xml.Unmarshal(raw, &q); err != nil {
		writeAppError(w, apperror.BadRequest("malformed principal-property-search body"))
		return
	}

	match := ""
	for _, ps := range q.PropertySearch {
		if ps.Prop.wants("displayname") && ps.Match != "" {
			match = ps.Match
			break
		}
	}

	principals, err := h.Store.SearchPrincipals(r.Context(), match)
	if err != nil {
		writeAppError(w, apperror.StorageFailure(err))
		return
	}

	want := q.Prop.wants
	ms := newMultiStatus()
	for _, p := range principals {
		var prop Prop
		var missing []string
		prop.ResourceType = &ResourceType{Principal: &struct{}{}}
		if want("displayname") {
			if p.DisplayName != "" {
				dn := p.DisplayName
				prop.DisplayName = &dn
			} else {
				missing = append(missing, "displayname")
			}
		}
		resp := Response{
			Href:      pbc.principalsBase + "/" + p.ID,
			Propstats: []Propstat{{Prop: prop, Status: "HTTP/1.1 200 OK"}},
		}
		if len(missing) > 0 {
			resp.Propstats = append(resp.Propstats, Propstat{Prop: missingProp(missing), Status: "HTTP/1.1 404 Not Found"})
		}
		ms.Responses = append(ms.Responses, resp)
	}
	writeMultiStatus(w, ms)
}
