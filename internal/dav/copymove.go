package dav

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/sonroyaalmerol/go-davcore/internal/apperror"
	"github.com/sonroyaalmerol/go-davcore/internal/authz"
	"github.com/sonroyaalmerol/go-davcore/internal/path"
)

// destination resolves the Destination header to a Resolved location
// under the same API prefix as the request.
func (h *Handler) destination(r *http.Request) (*path.Resolved, error) {
	dest := r.Header.Get("Destination")
	if dest == "" {
		return nil, apperror.BadRequest("missing Destination header")
	}
	u, err := url.Parse(dest)
	if err != nil {
		return nil, apperror.BadRequest("malformed Destination header")
	}
	loc, err := path.Parse(u.Path, h.APIPrefix)
	if err != nil {
		return nil, err
	}
	return path.Resolve(r.Context(), h.Store, *loc)
}

func overwriteAllowed(r *http.Request) bool {
	v := strings.ToUpper(strings.TrimSpace(r.Header.Get("Overwrite")))
	return v != "F"
}

// HandleCopy implements COPY as a shallow copy (new
// instance sharing the source entity id), honoring Overwrite.
func (h *Handler) HandleCopy(w http.ResponseWriter, r *http.Request) {
	src, err := h.resolve(r)
	if err != nil {
		writeAppError(w, err)
		return
	}
	if src.Collection == nil || !src.HasItem || src.Instance == nil {
		writeAppError(w, apperror.NotFound("source resource not found"))
		return
	}
	if err := h.authorize(r, src, authz.ActionRead); err != nil {
		writeAppError(w, err)
		return
	}

	dst, err := h.destination(r)
	if err != nil {
		writeAppError(w, err)
		return
	}
	if dst.Collection == nil {
		writeAppError(w, apperror.NotFound("destination collection not found"))
		return
	}
	if !dst.HasItem {
		writeAppError(w, apperror.BadRequest("Destination must name an item"))
		return
	}
	destAction := authz.ActionWriteContent
	if dst.Instance == nil {
		destAction = authz.ActionBind
	}
	if err := h.authorize(r, dst, destAction); err != nil {
		writeAppError(w, err)
		return
	}

	overwrite := overwriteAllowed(r)
	if dst.Instance != nil && !overwrite {
		writeAppError(w, apperror.PreconditionFailed("", "Overwrite: F and destination exists"))
		return
	}

	etag, uerr := h.copyETag(r, src)
	if uerr != nil {
		writeAppError(w, uerr)
		return
	}
	created := dst.Instance == nil
	if dst.Instance != nil {
		if err := h.Store.DeleteInstance(r.Context(), dst.Instance.ID); err != nil {
			writeAppError(w, apperror.StorageFailure(err))
			return
		}
	}
	inst, err := h.Store.CreateInstance(r.Context(), dst.Collection.ID, src.Instance.EntityID, dst.ItemSlug, src.Instance.ContentType, etag)
	if err != nil {
		writeAppError(w, apperror.StorageFailure(err))
		return
	}

	w.Header().Set("ETag", inst.ETag)
	if created {
		w.WriteHeader(http.StatusCreated)
	} else {
		w.WriteHeader(http.StatusNoContent)
	}
}

// copyETag re-derives the canonical ETag of the source entity so the
// new instance's etag column stays the fingerprint of its canonical
// bytes even though no new entity content was parsed.
func (h *Handler) copyETag(r *http.Request, src *path.Resolved) (string, error) {
	entity, err := h.Store.GetEntity(r.Context(), src.Instance.EntityID)
	if err != nil {
		return "", apperror.StorageFailure(err)
	}
	if entity == nil {
		return "", apperror.NotFound("source entity not found")
	}
	return entityETag(*entity), nil
}

// HandleMove implements MOVE: new instance at the
// destination, tombstone at the source, both collections' sync tokens
// bump.
func (h *Handler) HandleMove(w http.ResponseWriter, r *http.Request) {
	src, err := h.resolve(r)
	if err != nil {
		writeAppError(w, err)
		return
	}
	if src.Collection == nil || !src.HasItem || src.Instance == nil {
		writeAppError(w, apperror.NotFound("source resource not found"))
		return
	}
	if err := h.authorize(r, src, authz.ActionDelete); err != nil {
		writeAppError(w, err)
		return
	}

	dst, err := h.destination(r)
	if err != nil {
		writeAppError(w, err)
		return
	}
	if dst.Collection == nil {
		writeAppError(w, apperror.NotFound("destination collection not found"))
		return
	}
	if !dst.HasItem {
		writeAppError(w, apperror.BadRequest("Destination must name an item"))
		return
	}
	destAction := authz.ActionWriteContent
	if dst.Instance == nil {
		destAction = authz.ActionBind
	}
	if err := h.authorize(r, dst, destAction); err != nil {
		writeAppError(w, err)
		return
	}

	overwrite := overwriteAllowed(r)
	if dst.Instance != nil && !overwrite {
		writeAppError(w, apperror.PreconditionFailed("", "Overwrite: F and destination exists"))
		return
	}

	etag, uerr := h.copyETag(r, src)
	if uerr != nil {
		writeAppError(w, uerr)
		return
	}
	created := dst.Instance == nil
	if dst.Instance != nil {
		if err := h.Store.DeleteInstance(r.Context(), dst.Instance.ID); err != nil {
			writeAppError(w, apperror.StorageFailure(err))
			return
		}
	}
	inst, err := h.Store.CreateInstance(r.Context(), dst.Collection.ID, src.Instance.EntityID, dst.ItemSlug, src.Instance.ContentType, etag)
	if err != nil {
		writeAppError(w, apperror.StorageFailure(err))
		return
	}
	if err := h.Store.DeleteInstance(r.Context(), src.Instance.ID); err != nil {
		writeAppError(w, apperror.StorageFailure(err))
		return
	}

	w.Header().Set("ETag", inst.ETag)
	if created {
		w.WriteHeader(http.StatusCreated)
	} else {
		w.WriteHeader(http.StatusNoContent)
	}
}
