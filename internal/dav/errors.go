package dav

import (
	"encoding/xml"
	"net/http"

	"github.com/sonroyaalmerol/go-davcore/internal/apperror"
)

// preconditionNamespace maps a precondition element's local name to the
// XML namespace it belongs in.
func preconditionNamespace(local string) string {
	switch local {
	case apperror.PreconditionValidCalendarData,
		apperror.PreconditionValidCalendarObjResource,
		apperror.PreconditionSupportedCalendarComp,
		apperror.PreconditionSupportedCalendarData,
		apperror.PreconditionNoUIDConflict:
		return nsCalDAV
	case apperror.PreconditionValidAddressData,
		apperror.PreconditionSupportedAddressData:
		return nsCardDAV
	default:
		return nsDAV
	}
}

// writeAppError renders an AppError as the HTTP edge's response: status
// code, and for kinds that carry a WebDAV precondition, an XML
// <D:error> body naming it.
func writeAppError(w http.ResponseWriter, err error) {
	ae := apperror.As(err)
	if ae.Precondition == "" {
		http.Error(w, ae.Message, ae.Status)
		return
	}
	body := newErrorBody(preconditionNamespace(ae.Precondition), ae.Precondition)
	w.Header().Set("Content-Type", "application/xml; charset=utf-8")
	w.WriteHeader(ae.Status)
	_, _ = w.Write([]byte(xml.Header))
	enc := xml.NewEncoder(w)
	_ = enc.Encode(body)
}

// writePreconditionError emits a 403/412 with an explicit-namespace
// precondition element, for elements (supported-collation,
// supported-filter) that exist in both the CalDAV and CardDAV
// namespaces and so can't be mapped from the local name alone.
func writePreconditionError(w http.ResponseWriter, status int, namespace, local string) {
	body := newErrorBody(namespace, local)
	w.Header().Set("Content-Type", "application/xml; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(xml.Header))
	enc := xml.NewEncoder(w)
	_ = enc.Encode(body)
}

func writeMultiStatus(w http.ResponseWriter, ms *MultiStatus) {
	w.Header().Set("Content-Type", "application/xml; charset=utf-8")
	w.WriteHeader(http.StatusMultiStatus)
	_, _ = w.Write([]byte(xml.Header))
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	_ = enc.Encode(ms)
}
