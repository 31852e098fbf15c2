package dav

import (
	"context"
	"encoding/xml"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/sonroyaalmerol/go-davcore/internal/apperror"
	"github.com/sonroyaalmerol/go-davcore/internal/auth"
	"github.com/sonroyaalmerol/go-davcore/internal/authz"
	"github.com/sonroyaalmerol/go-davcore/internal/path"
	"github.com/sonroyaalmerol/go-davcore/internal/storage"
)

// allpropNames is the set of "live" properties returned for an allprop
// request; calendar-data/address-data/acl/current-user-privilege-set
// require an explicit ask.
var allpropNames = []string{
	"resourcetype", "displayname", "getetag", "getlastmodified", "getcontenttype",
	"current-user-principal", "owner", "sync-token",
	"supported-calendar-component-set", "supported-collation-set",
	"calendar-description", "addressbook-description",
}

func privilegeElemFor(p authz.Privilege) PrivilegeElem {
	if p == authz.PrivReadFreeBusy {
		return privilegeElem(nsCalDAV, string(p))
	}
	return privilegeElem(nsDAV, string(p))
}

func buildPrivilegeSet(role authz.Role) *PrivilegeSet {
	privs := authz.PrivilegesForRole(role)
	out := make([]PrivilegeElem, 0, len(privs))
	for _, p := range privs {
		out = append(out, privilegeElemFor(p))
	}
	return &PrivilegeSet{Privilege: out}
}

func buildACL(matched []authz.PolicyRow, principalsBase string) *ACLProp {
	aces := authz.BuildACL(matched)
	out := make([]ACE, 0, len(aces))
	for _, a := range aces {
		href, pseudo := authz.PrincipalHref(a.Subject, principalsBase)
		ref := PrincipalRef{Href: href}
		switch pseudo {
		case authz.PseudoAll:
			ref = PrincipalRef{All: &struct{}{}}
		case authz.PseudoAuthenticated:
			ref = PrincipalRef{Authenticated: &struct{}{}}
		case authz.PseudoUnauthenticated:
			ref = PrincipalRef{Unauthenticated: &struct{}{}}
		}
		privs := make([]PrivilegeElem, 0, len(a.Privileges))
		for _, p := range a.Privileges {
			privs = append(privs, privilegeElemFor(p))
		}
		out = append(out, ACE{Principal: ref, Grant: Grant{Privilege: privs}})
	}
	return &ACLProp{ACE: out}
}

// propBuildCtx carries per-request state the property builder needs to
// resolve authz-derived properties without re-querying per property.
// calData holds the REPORT's calendar-data modifiers (expand /
// limit-recurrence-set) when the request carried them.
type propBuildCtx struct {
	subjects       []string
	principalsBase string
	calData        *CalendarDataReq
}

func (h *Handler) newPropBuildCtx(r *http.Request) *propBuildCtx {
	p, _ := auth.FromContext(r.Context())
	subjects := []string{authz.PseudoUnauthenticated, authz.PseudoAll}
	if p != nil {
		subjects = p.Subjects
	}
	return &propBuildCtx{subjects: subjects, principalsBase: h.APIPrefix + "/principals"}
}

// buildCollectionProp populates Prop with every property in want (or
// every allpropNames entry if allProp) that applies to a collection
// resource, returning the names it could not satisfy.
func (h *Handler) buildCollectionProp(ctx context.Context, pbc *propBuildCtx, res *path.Resolved, want func(string) bool, allProp bool) (Prop, []string) {
	var p Prop
	var missing []string
	col := res.Collection
	resourcePath := res.ResourcePath()

	has := func(name string) bool {
		if allProp {
			for _, n := range allpropNames {
				if n == name {
					return true
				}
			}
			return false
		}
		return want(name)
	}

	if has("resourcetype") {
		rt := &ResourceType{Collection: &struct{}{}}
		switch col.Type {
		case storage.CollectionCalendar:
			rt.Calendar = &struct{}{}
		case storage.CollectionAddressBook:
			rt.AddressBook = &struct{}{}
		}
		p.ResourceType = rt
	} else if !allProp && want("resourcetype") {
		missing = append(missing, "resourcetype")
	}

	if has("displayname") {
		if col.DisplayName != "" {
			p.DisplayName = &col.DisplayName
		} else if !allProp {
			missing = append(missing, "displayname")
		}
	}
	if has("sync-token") {
		tok := syncTokenURI(col.SyncToken)
		p.SyncToken = &tok
	}
	if has("current-user-principal") {
		p.CurrentUserPrincipal = &Href{Value: pbc.principalsBase + "/" + firstPrincipalSubject(pbc.subjects)}
	}
	if has("owner") {
		p.Owner = &Href{Value: pbc.principalsBase + "/" + col.OwnerPrincipal}
	}
	if !allProp && want("current-user-privilege-set") {
		role, _, err := authz.HighestRole(ctx, h.Policy, pbc.subjects, resourcePath)
		if err == nil {
			p.CurrentUserPrivilegeSet = buildPrivilegeSet(role)
		}
	}
	if !allProp && want("acl") {
		_, matched, err := authz.HighestRole(ctx, h.Policy, pbc.subjects, resourcePath)
		if err == nil {
			p.ACL = buildACL(matched, pbc.principalsBase)
		}
	}
	if col.Type == storage.CollectionCalendar {
		if has("supported-calendar-component-set") {
			comps := col.SupportedComponent
			if len(comps) == 0 {
				comps = []string{"VEVENT"}
			}
			cs := make([]Comp, 0, len(comps))
			for _, c := range comps {
				cs = append(cs, Comp{Name: c})
			}
			p.SupportedCalendarComponentSet = &CompSet{Comp: cs}
		}
		if has("supported-collation-set") {
			p.SupportedCollationSet = &CollSet{Collation: []string{"i;octet", "i;ascii-casemap", "i;unicode-casemap"}}
		}
		if has("calendar-description") && col.Description != "" {
			p.CalendarDescription = &col.Description
		}
	}
	if col.Type == storage.CollectionAddressBook {
		if has("addressbook-description") && col.Description != "" {
			p.AddressbookDescription = &col.Description
		}
	}
	if !allProp {
		for _, name := range []string{"getetag", "getcontenttype", "calendar-data", "address-data"} {
			if want(name) {
				missing = append(missing, name)
			}
		}
	}
	return p, missing
}

func firstPrincipalSubject(subjects []string) string {
	for _, s := range subjects {
		if strings.HasPrefix(s, "principal:") {
			return strings.TrimPrefix(s, "principal:")
		}
	}
	return ""
}

// buildInstanceProp populates Prop for an instance (item) resource.
func (h *Handler) buildInstanceProp(ctx context.Context, pbc *propBuildCtx, res *path.Resolved, want func(string) bool, allProp bool) (Prop, []string) {
	var p Prop
	var missing []string
	inst := res.Instance
	col := res.Collection

	has := func(name string) bool {
		if allProp {
			for _, n := range allpropNames {
				if n == name {
					return true
				}
			}
			return false
		}
		return want(name)
	}

	if has("resourcetype") {
		p.ResourceType = &ResourceType{}
	}
	if has("getetag") {
		p.GetETag = &inst.ETag
	}
	if has("getcontenttype") {
		ct := inst.ContentType
		p.GetContentType = &ct
	}
	if has("getlastmodified") {
		lm := inst.LastModified.UTC().Format(http.TimeFormat)
		p.GetLastModified = &lm
	}
	if !allProp && (want("calendar-data") || want("address-data")) {
		entity, err := h.Store.GetEntity(ctx, inst.EntityID)
		if err == nil && entity != nil {
			var body []byte
			if col.Type != storage.CollectionAddressBook && pbc.calData != nil &&
				(pbc.calData.Expand != nil || pbc.calData.LimitRecurrenceSet != nil) {
				body = h.postProcessedCalendarData(entity, pbc.calData)
			} else {
				body = serializeEntity(entity)
			}
			if col.Type == storage.CollectionAddressBook {
				p.AddressData = string(body)
			} else {
				p.CalendarData = string(body)
			}
		} else {
			if col.Type == storage.CollectionAddressBook {
				missing = append(missing, "address-data")
			} else {
				missing = append(missing, "calendar-data")
			}
		}
	}
	if !allProp && want("current-user-privilege-set") {
		role, _, err := authz.HighestRole(ctx, h.Policy, pbc.subjects, res.ResourcePath())
		if err == nil {
			p.CurrentUserPrivilegeSet = buildPrivilegeSet(role)
		}
	}
	if !allProp {
		for _, name := range []string{"displayname", "sync-token", "acl", "supported-calendar-component-set", "supported-collation-set"} {
			if want(name) {
				missing = append(missing, name)
			}
		}
	}
	return p, missing
}

func syncTokenURI(token int64) string {
	return "urn:x-davcore:synctoken:" + strconv.FormatInt(token, 10)
}

// namespaceForProp maps a bare property local-name back to the
// namespace it's defined in, for the 404 propstat's empty placeholder
// elements.
func namespaceForProp(name string) string {
	switch name {
	case "calendar-data", "supported-calendar-component-set", "supported-collation-set", "calendar-description":
		return nsCalDAV
	case "address-data", "addressbook-description":
		return nsCardDAV
	default:
		return nsDAV
	}
}

func missingProp(missing []string) Prop {
	elems := make([]xmlElem, 0, len(missing))
	for _, m := range missing {
		elems = append(elems, xmlElem{XMLName: xml.Name{Space: namespaceForProp(m), Local: m}})
	}
	return Prop{Unknown: elems}
}

// HandlePropfind implements PROPFIND: Depth 0/1 over
// a collection or item, building one <D:response> per resource with
// 200/404 propstats.
func (h *Handler) HandlePropfind(w http.ResponseWriter, r *http.Request) {
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

	var body PropfindRequest
	raw, _ := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	allProp := true
	var want func(string) bool
	if len(strings.TrimSpace(string(raw))) > 0 {
		if err := xml.Unmarshal(raw, &body); err != nil {
			writeAppError(w, apperror.BadRequest("malformed PROPFIND body"))
			return
		}
		if body.Prop != nil {
			allProp = false
			want = body.Prop.wants
		}
	}

	pbc := h.newPropBuildCtx(r)
	ms := newMultiStatus()

	if !res.HasItem {
		ms.Responses = append(ms.Responses, h.propfindResponse(r.Context(), pbc, res, true, want, allProp))

		depth := r.Header.Get("Depth")
		if depth == "1" || depth == "infinity" {
			instances, ierr := h.Store.ListCollection(r.Context(), res.Collection.ID)
			if ierr != nil {
				writeAppError(w, apperror.StorageFailure(ierr))
				return
			}
			for i := range instances {
				inst := instances[i]
				childLoc := res.Location
				childLoc.ItemSlug = inst.Slug
				childLoc.HasItem = true
				childRes := &path.Resolved{Location: childLoc, OwnerPrincipalID: res.OwnerPrincipalID, Collection: res.Collection, Instance: &inst}
				ms.Responses = append(ms.Responses, h.propfindResponse(r.Context(), pbc, childRes, false, want, allProp))
			}
		}
	} else {
		if res.Instance == nil {
			writeAppError(w, apperror.NotFound("resource not found"))
			return
		}
		ms.Responses = append(ms.Responses, h.propfindResponse(r.Context(), pbc, res, false, want, allProp))
	}

	writeMultiStatus(w, ms)
}

func (h *Handler) propfindResponse(ctx context.Context, pbc *propBuildCtx, res *path.Resolved, isCollection bool, want func(string) bool, allProp bool) Response {
	var prop Prop
	var missing []string
	if isCollection {
		prop, missing = h.buildCollectionProp(ctx, pbc, res, want, allProp)
	} else {
		prop, missing = h.buildInstanceProp(ctx, pbc, res, want, allProp)
	}
	resp := Response{Href: h.requestHref(res), Propstats: []Propstat{{Prop: prop, Status: "HTTP/1.1 200 OK"}}}
	if len(missing) > 0 {
		resp.Propstats = append(resp.Propstats, Propstat{
			Prop:   missingProp(missing),
			Status: "HTTP/1.1 404 Not Found",
		})
	}
	return resp
}

func (h *Handler) requestHref(res *path.Resolved) string {
	var sb strings.Builder
	sb.WriteString(h.APIPrefix)
	sb.WriteString("/")
	sb.WriteString(string(res.ResourceType))
	sb.WriteString("/")
	sb.WriteString(res.OwnerSlug)
	sb.WriteString("/")
	sb.WriteString(res.CollectionSlug)
	if res.HasItem {
		sb.WriteString("/")
		sb.WriteString(res.ItemSlug)
	}
	return sb.String()
}

// HandleProppatch implements PROPPATCH. This server exposes no mutable
// dead properties, so every set/remove action is rejected as a
// protected property; collection attributes are written through
// dedicated APIs, not PROPPATCH.
func (h *Handler) HandleProppatch(w http.ResponseWriter, r *http.Request) {
	res, err := h.resolve(r)
	if err != nil {
		writeAppError(w, err)
		return
	}
	if res.Collection == nil {
		writeAppError(w, apperror.NotFound("collection not found"))
		return
	}
	if err := h.authorize(r, res, authz.ActionWriteProperties); err != nil {
		writeAppError(w, err)
		return
	}

	raw, _ := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	var body ProppatchRequest
	if err := xml.Unmarshal(raw, &body); err != nil {
		writeAppError(w, apperror.BadRequest("malformed PROPPATCH body"))
		return
	}

	ms := newMultiStatus()
	resp := Response{Href: h.requestHref(res)}
	for _, action := range body.Set {
		for _, item := range action.Prop.Items {
			resp.Propstats = append(resp.Propstats, protectedPropstat(item.XMLName))
		}
	}
	for _, action := range body.Remove {
		for _, item := range action.Prop.Items {
			resp.Propstats = append(resp.Propstats, protectedPropstat(item.XMLName))
		}
	}
	ms.Responses = append(ms.Responses, resp)
	writeMultiStatus(w, ms)
}

func protectedPropstat(name xml.Name) Propstat {
	return Propstat{
		Prop:   Prop{Unknown: []xmlElem{{XMLName: name}}},
		Status: "HTTP/1.1 403 Forbidden",
	}
}
