package dav

import (
	"net/http"
	"strings"

	"github.com/rs/zerolog"
	"github.com/sonroyaalmerol/go-davcore/internal/authz"
	"github.com/sonroyaalmerol/go-davcore/internal/auth"
	"github.com/sonroyaalmerol/go-davcore/internal/apperror"
	"github.com/sonroyaalmerol/go-davcore/internal/path"
	"github.com/sonroyaalmerol/go-davcore/internal/storage"
)

// Handler is the DAV method engine. It is protocol-agnostic over
// calendar/address-book resources, dispatching on the resolved
// collection's storage.CollectionType; the shredded store and the
// filter evaluator carry the per-protocol split internally.
type Handler struct {
	Store          storage.Store
	Policy         authz.PolicyQuery
	Logger         zerolog.Logger
	APIPrefix      string
	MaxOccurrences int
}

func New(store storage.Store, policy authz.PolicyQuery, logger zerolog.Logger, apiPrefix string, maxOccurrences int) *Handler {
	return &Handler{
		Store:          store,
		Policy:         policy,
		Logger:         logger,
		APIPrefix:      apiPrefix,
		MaxOccurrences: maxOccurrences,
	}
}

// HandleOptions answers OPTIONS with the DAV capability header.
func (h *Handler) HandleOptions(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Allow", strings.Join([]string{
		http.MethodOptions, http.MethodGet, http.MethodHead, http.MethodPut, http.MethodDelete,
		"COPY", "MOVE", "PROPFIND", "PROPPATCH", "REPORT",
	}, ", "))
	w.Header().Set("DAV", "1, 3, calendar-access, addressbook, extended-mkcol")
	w.WriteHeader(http.StatusNoContent)
}

// resolve parses and resolves the request path and returns the result
// to the caller; it does not store it on the request context.
func (h *Handler) resolve(r *http.Request) (*path.Resolved, error) {
	loc, err := path.Parse(r.URL.Path, h.APIPrefix)
	if err != nil {
		return nil, err
	}
	return path.Resolve(r.Context(), h.Store, *loc)
}

// authorize checks that the caller's expanded subject set implies the
// minimum role for action on res's resource path, returning an AppError
// carrying DAV:need-privileges on denial.
func (h *Handler) authorize(r *http.Request, res *path.Resolved, action authz.Action) error {
	p, _ := auth.FromContext(r.Context())
	subjects := []string{authz.PseudoUnauthenticated, authz.PseudoAll}
	if p != nil {
		subjects = p.Subjects
	}
	resourcePath := res.ResourcePath()
	allowed, err := authz.Allowed(r.Context(), h.Policy, subjects, resourcePath, action)
	if err != nil {
		return apperror.StorageFailure(err)
	}
	if !allowed {
		return apperror.AuthorizationDenied("insufficient privileges for "+string(action),
			apperror.PrivilegeNeed{ResourcePath: resourcePath, Privilege: authz.MinRole(action).String()})
	}
	return nil
}

func trimQuotes(s string) string {
	s = strings.TrimSpace(s)
	return strings.Trim(s, `"`)
}

func etagMatches(header, etag string) bool {
	header = strings.TrimSpace(header)
	if header == "*" {
		return true
	}
	for _, tag := range strings.Split(header, ",") {
		if trimQuotes(tag) == trimQuotes(etag) {
			return true
		}
	}
	return false
}

func contentTypeForCollection(t storage.CollectionType) string {
	if t == storage.CollectionAddressBook {
		return "text/vcard; charset=utf-8"
	}
	return "text/calendar; charset=utf-8"
}
