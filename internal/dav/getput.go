package dav

import (
	"io"
	"net/http"

	"github.com/sonroyaalmerol/go-davcore/internal/apperror"
	"github.com/sonroyaalmerol/go-davcore/internal/authz"
	"github.com/sonroyaalmerol/go-davcore/internal/icalendar"
	"github.com/sonroyaalmerol/go-davcore/internal/recur"
	"github.com/sonroyaalmerol/go-davcore/internal/shred"
	"github.com/sonroyaalmerol/go-davcore/internal/storage"
	"github.com/sonroyaalmerol/go-davcore/internal/validate"
	"github.com/sonroyaalmerol/go-davcore/internal/vcard"
)

// serializeEntity reassembles and canonically serializes an entity,
// dispatching on its shredded type.
func serializeEntity(e *storage.Entity) []byte {
	if e.Type == shred.EntityVCard {
		return vcard.Serialize(shred.ReassembleVCard(e.Tree))
	}
	return icalendar.Serialize(shred.ReassembleICalendar(e.Tree))
}

// HandleGet implements GET: conditional read,
// canonical-serialized body, ETag/Last-Modified headers.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	h.handleGet(w, r, false)
}

// HandleHead implements the GET row with the body omitted.
func (h *Handler) HandleHead(w http.ResponseWriter, r *http.Request) {
	h.handleGet(w, r, true)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request, headOnly bool) {
	res, err := h.resolve(r)
	if err != nil {
		writeAppError(w, err)
		return
	}
	if err := h.authorize(r, res, authz.ActionRead); err != nil {
		writeAppError(w, err)
		return
	}
	if res.Collection == nil || !res.HasItem || res.Instance == nil {
		writeAppError(w, apperror.NotFound("resource not found"))
		return
	}

	entity, err := h.Store.GetEntity(r.Context(), res.Instance.EntityID)
	if err != nil {
		writeAppError(w, apperror.StorageFailure(err))
		return
	}
	if entity == nil {
		writeAppError(w, apperror.NotFound("entity not found"))
		return
	}

	if inm := r.Header.Get("If-None-Match"); inm != "" && etagMatches(inm, res.Instance.ETag) {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	body := serializeEntity(entity)
	w.Header().Set("Content-Type", contentTypeForCollection(res.Collection.Type))
	w.Header().Set("ETag", res.Instance.ETag)
	if !res.Instance.LastModified.IsZero() {
		w.Header().Set("Last-Modified", res.Instance.LastModified.UTC().Format(http.TimeFormat))
	}
	w.WriteHeader(http.StatusOK)
	if !headOnly {
		_, _ = w.Write(body)
	}
}

// HandlePut implements PUT: precondition ordering
// (If-Match before If-None-Match), validation gate, decompose, store,
// sync-token bump.
func (h *Handler) HandlePut(w http.ResponseWriter, r *http.Request) {
	res, err := h.resolve(r)
	if err != nil {
		writeAppError(w, err)
		return
	}
	if res.Collection == nil {
		writeAppError(w, apperror.NotFound("collection not found"))
		return
	}
	if !res.HasItem {
		writeAppError(w, apperror.BadRequest("PUT target must name an item"))
		return
	}

	action := authz.ActionWriteContent
	if res.Instance == nil {
		action = authz.ActionBind
	}
	if err := h.authorize(r, res, action); err != nil {
		writeAppError(w, err)
		return
	}

	// If-Match is evaluated before If-None-Match, which precedes the
	// validation gate.
	ifMatch := r.Header.Get("If-Match")
	if ifMatch != "" {
		if res.Instance == nil || !etagMatches(ifMatch, res.Instance.ETag) {
			writeAppError(w, apperror.PreconditionFailed("", "If-Match precondition failed"))
			return
		}
	}
	if inm := r.Header.Get("If-None-Match"); inm == "*" && res.Instance != nil {
		writeAppError(w, apperror.PreconditionFailed("", "resource already exists"))
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, validate.MaxBodyBytes+1))
	if err != nil {
		writeAppError(w, apperror.BadRequest("failed to read request body"))
		return
	}

	var entity storage.Entity
	var logicalUID string
	switch res.Collection.Type {
	case storage.CollectionAddressBook:
		card, verr := validate.AddressCard(r.Header.Get("Content-Type"), body)
		if verr != nil {
			writeAppError(w, verr)
			return
		}
		logicalUID = card.UID()
		tree, idx := shred.DecomposeVCard(card)
		entity = storage.Entity{ID: tree.EntityID, Type: shred.EntityVCard, UID: logicalUID, Tree: tree, Indexes: idx}
	default:
		parsed, verr := validate.Calendar(r.Header.Get("Content-Type"), body)
		if verr != nil {
			writeAppError(w, verr)
			return
		}
		logicalUID = parsed.UID
		resolver := recur.NewResolver()
		recur.RegisterEmbedded(resolver, parsed.Object)
		tree, idxList := shred.DecomposeICalendar(parsed.Object, resolver)
		var idx shred.Indexes
		if len(idxList) > 0 {
			idx = idxList[0]
		}
		entity = storage.Entity{ID: tree.EntityID, Type: shred.EntityICalendar, UID: logicalUID, Tree: tree, Indexes: idx}
	}

	slug := res.ItemSlug
	if err := validate.NoUIDConflict(r.Context(), h.Store, res.Collection.ID, logicalUID, slug); err != nil {
		ae := apperror.As(err)
		if ae.Precondition == apperror.PreconditionNoUIDConflict {
			// no-uid-conflict exists in both protocol namespaces; pick
			// the one matching the collection being written.
			ns := nsCalDAV
			if res.Collection.Type == storage.CollectionAddressBook {
				ns = nsCardDAV
			}
			writePreconditionError(w, ae.Status, ns, ae.Precondition)
			return
		}
		writeAppError(w, err)
		return
	}

	if err := h.Store.PutEntity(r.Context(), entity); err != nil {
		writeAppError(w, apperror.StorageFailure(err))
		return
	}

	etag := entityETag(entity)
	created := res.Instance == nil
	var instErr error
	var inst *storage.Instance
	if created {
		inst, instErr = h.Store.CreateInstance(r.Context(), res.Collection.ID, entity.ID, slug, contentTypeForCollection(res.Collection.Type), etag)
	} else {
		// When If-Match was presented, condition the store-level update
		// on the etag we verified above, so a concurrent writer that
		// slipped in between the check and the write turns into a 412
		// instead of a silent lost update. Without If-Match the write
		// stays unconditional: last writer wins.
		expected := ""
		if ifMatch != "" {
			expected = res.Instance.ETag
		}
		eid := entity.ID
		inst, instErr = h.Store.UpdateInstance(r.Context(), res.Instance.ID, expected, &eid, etag)
	}
	if instErr != nil {
		if _, ok := instErr.(*storage.ErrSlugConflict); ok {
			writeAppError(w, apperror.Conflict("", instErr.Error()))
			return
		}
		if _, ok := instErr.(*storage.ErrETagConflict); ok {
			writeAppError(w, apperror.PreconditionFailed("", "If-Match precondition failed"))
			return
		}
		writeAppError(w, apperror.StorageFailure(instErr))
		return
	}

	w.Header().Set("ETag", inst.ETag)
	if created {
		w.Header().Set("Location", r.URL.Path)
		w.WriteHeader(http.StatusCreated)
	} else {
		w.WriteHeader(http.StatusNoContent)
	}
}

func entityETag(e storage.Entity) string {
	if e.Type == shred.EntityVCard {
		return vcard.ETag(vcard.Serialize(shred.ReassembleVCard(e.Tree)))
	}
	return icalendar.ETag(icalendar.Serialize(shred.ReassembleICalendar(e.Tree)))
}

// HandleDelete implements DELETE: soft-delete,
// tombstone, sync-token bump.
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	res, err := h.resolve(r)
	if err != nil {
		writeAppError(w, err)
		return
	}
	if res.Collection == nil || !res.HasItem || res.Instance == nil {
		writeAppError(w, apperror.NotFound("resource not found"))
		return
	}
	if err := h.authorize(r, res, authz.ActionDelete); err != nil {
		writeAppError(w, err)
		return
	}
	if im := r.Header.Get("If-Match"); im != "" && !etagMatches(im, res.Instance.ETag) {
		writeAppError(w, apperror.PreconditionFailed("", "If-Match precondition failed"))
		return
	}
	if err := h.Store.DeleteInstance(r.Context(), res.Instance.ID); err != nil {
		writeAppError(w, apperror.StorageFailure(err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
