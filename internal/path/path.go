// Package path parses the canonical DAV URL shape into a structured
// Location, then resolves its slugs to stable IDs against the store to
// produce a Resolved location. Both forms are carried in a per-request
// context so handlers can use whichever is appropriate; authorization
// always uses the resolved form.
package path

import (
	"context"
	"strings"

	"github.com/sonroyaalmerol/go-davcore/internal/apperror"
	"github.com/sonroyaalmerol/go-davcore/internal/storage"
)

// ResourceType discriminates the top-level collection kind named in the
// URL.
type ResourceType string

const (
	ResourceCalendars    ResourceType = "calendars"
	ResourceAddressBooks ResourceType = "addressbooks"
	ResourcePrincipals   ResourceType = "principals"
)

// Location is the parsed, slug-based form of a DAV request path:
// /{prefix}/{protocol}/{principal-slug}/{collection-slug}[/{item-slug}{.ics|.vcf}?]
type Location struct {
	Raw            string
	ResourceType   ResourceType
	OwnerSlug      string
	CollectionSlug string
	ItemSlug       string // "" if the path names only a collection
	HasItem        bool
}

// Resolved is the slug-based Location plus the stable IDs it names;
// authorization always works on this form.
type Resolved struct {
	Location
	OwnerPrincipalID string
	Collection       *storage.Collection
	Instance         *storage.Instance // nil if HasItem is false or not found
}

// Parse splits a request path under the given API prefix into a
// Location. The prefix is stripped without interpreting it further
// (e.g. "/dav").
func Parse(urlPath, prefix string) (*Location, error) {
	trimmed := strings.TrimPrefix(urlPath, prefix)
	trimmed = strings.TrimPrefix(trimmed, "/")
	trimmed = strings.TrimSuffix(trimmed, "/")
	if trimmed == "" {
		return nil, apperror.NotFound("empty resource path")
	}
	segs := strings.Split(trimmed, "/")
	if len(segs) < 3 {
		return nil, apperror.NotFound("path too short: " + urlPath)
	}

	rt := ResourceType(segs[0])
	switch rt {
	case ResourceCalendars, ResourceAddressBooks, ResourcePrincipals:
	default:
		return nil, apperror.NotFound("unknown resource type: " + segs[0])
	}

	loc := &Location{
		Raw:            urlPath,
		ResourceType:   rt,
		OwnerSlug:      segs[1],
		CollectionSlug: segs[2],
	}
	if len(segs) >= 4 && segs[3] != "" {
		loc.ItemSlug = stripExtension(segs[3])
		loc.HasItem = true
	}
	if !SafeSegment(loc.OwnerSlug) || !SafeSegment(loc.CollectionSlug) || (loc.HasItem && !SafeSegment(loc.ItemSlug)) {
		return nil, apperror.BadRequest("unsafe path segment in " + urlPath)
	}
	return loc, nil
}

func stripExtension(seg string) string {
	if i := strings.LastIndexByte(seg, '.'); i > 0 {
		ext := strings.ToLower(seg[i:])
		if ext == ".ics" || ext == ".vcf" {
			return seg[:i]
		}
	}
	return seg
}

// SafeSegment rejects path segments that could escape the resource
// namespace (empty, ".", "..", or containing a slash).
func SafeSegment(s string) bool {
	return s != "" && s != "." && s != ".." && !strings.ContainsRune(s, '/')
}

// Resolve looks up the owner principal, collection, and (if named) item
// slug against the store, producing a Resolved location. A missing
// collection or item is not an error here; callers decide whether that
// means 404 or "create new" (e.g. PUT).
func Resolve(ctx context.Context, store storage.Store, loc Location) (*Resolved, error) {
	owner, err := store.GetPrincipal(ctx, loc.OwnerSlug)
	if err != nil {
		return nil, apperror.StorageFailure(err)
	}
	if owner == nil {
		return nil, apperror.NotFound("unknown principal: " + loc.OwnerSlug)
	}

	res := &Resolved{Location: loc, OwnerPrincipalID: owner.ID}

	col, err := store.GetCollectionByOwnerAndSlug(ctx, owner.ID, loc.CollectionSlug)
	if err != nil {
		return nil, apperror.StorageFailure(err)
	}
	res.Collection = col
	if col == nil || !loc.HasItem {
		return res, nil
	}

	inst, err := store.GetInstanceBySlug(ctx, col.ID, loc.ItemSlug)
	if err != nil {
		return nil, apperror.StorageFailure(err)
	}
	res.Instance = inst
	return res, nil
}

// ResourcePath renders the canonical authorization-subject path for a
// resolved location: /{resource-type}/{owner-principal-id}/{collection-id}[/{item-id}].
// Uses the collection's stable ID once known, falling back to the slug
// when the collection itself is the subject of a not-yet-resolved create
// (e.g. MKCOL, out of scope here). The item segment is likewise the
// instance's stable ID once resolved, and the item slug when no instance
// exists yet (e.g. a PUT that creates it).
func (r *Resolved) ResourcePath() string {
	var sb strings.Builder
	sb.WriteString("/")
	sb.WriteString(string(r.ResourceType))
	sb.WriteString("/")
	sb.WriteString(r.OwnerPrincipalID)
	sb.WriteString("/")
	if r.Collection != nil {
		sb.WriteString(r.Collection.ID.String())
	} else {
		sb.WriteString(r.CollectionSlug)
	}
	if r.HasItem {
		sb.WriteString("/")
		if r.Instance != nil {
			sb.WriteString(r.Instance.ID.String())
		} else {
			sb.WriteString(r.ItemSlug)
		}
	}
	return sb.String()
}

type contextKey int

const resolvedKey contextKey = iota

// WithResolved stores a Resolved location on ctx for downstream handlers.
func WithResolved(ctx context.Context, r *Resolved) context.Context {
	return context.WithValue(ctx, resolvedKey, r)
}

// FromContext retrieves the Resolved location stored by WithResolved.
func FromContext(ctx context.Context) (*Resolved, bool) {
	r, ok := ctx.Value(resolvedKey).(*Resolved)
	return r, ok
}

// CollectionTypeForResource maps a URL resource type to the expected
// storage.CollectionType, for the validation gate's content-type check.
func CollectionTypeForResource(rt ResourceType) storage.CollectionType {
	switch rt {
	case ResourceCalendars:
		return storage.CollectionCalendar
	case ResourceAddressBooks:
		return storage.CollectionAddressBook
	default:
		return storage.CollectionPlain
	}
}
