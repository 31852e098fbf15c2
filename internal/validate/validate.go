// Package validate implements the precondition checks a PUT body must
// pass before it reaches the shredder and store: content type, parse
// success, single-schedulable-component-type, per-component UID, and
// collection-wide UID uniqueness (RFC 4791 §5.3.2, RFC 6352 §5.1).
package validate

import (
	"context"

	"github.com/google/uuid"
	"github.com/sonroyaalmerol/go-davcore/internal/apperror"
	"github.com/sonroyaalmerol/go-davcore/internal/icalendar"
	"github.com/sonroyaalmerol/go-davcore/internal/storage"
	"github.com/sonroyaalmerol/go-davcore/internal/vcard"
)

// MaxBodyBytes caps PUT request bodies.
const MaxBodyBytes = 10 << 20

// ParsedCalendar is the result of validating and parsing an iCalendar PUT
// body: the object plus its first schedulable component (an object may
// hold several, all of that component's type).
type ParsedCalendar struct {
	Object    *icalendar.Object
	Root      *icalendar.Component
	UID       string
}

// Calendar validates content type, size, parse success, and the
// iCalendar-specific structural rules, returning the parsed object on
// success or an *apperror.AppError naming the precondition that failed.
func Calendar(contentType string, body []byte) (*ParsedCalendar, error) {
	if len(body) > MaxBodyBytes {
		return nil, apperror.BadRequest("request body exceeds maximum size")
	}
	if !isCalendarContentType(contentType) {
		return nil, apperror.ForbiddenPrecondition(apperror.PreconditionSupportedCalendarData,
			"Content-Type must be text/calendar")
	}

	obj, err := icalendar.Parse(body)
	if err != nil {
		return nil, apperror.ValidationError(apperror.PreconditionValidCalendarData, err.Error())
	}

	if obj.Root.GetProperty("METHOD") != nil {
		return nil, apperror.ValidationError(apperror.PreconditionValidCalendarData,
			"calendar object resources must not carry METHOD")
	}

	sched := obj.SchedulableComponents()
	if len(sched) == 0 {
		return nil, apperror.ValidationError(apperror.PreconditionValidCalendarObjResource,
			"calendar object must contain at least one VEVENT/VTODO/VJOURNAL")
	}
	kind := sched[0].Name
	for _, c := range sched[1:] {
		if c.Name != kind {
			return nil, apperror.ValidationError(apperror.PreconditionValidCalendarObjResource,
				"calendar object must not mix component types")
		}
	}
	for _, c := range sched {
		if c.UID() == "" {
			return nil, apperror.ValidationError(apperror.PreconditionValidCalendarData,
				"every schedulable component must carry a UID")
		}
	}

	return &ParsedCalendar{Object: obj, Root: sched[0], UID: sched[0].UID()}, nil
}

// AddressCard validates and parses a vCard PUT body.
func AddressCard(contentType string, body []byte) (*vcard.Card, error) {
	if len(body) > MaxBodyBytes {
		return nil, apperror.BadRequest("request body exceeds maximum size")
	}
	if !isCardContentType(contentType) {
		return nil, apperror.ForbiddenPrecondition(apperror.PreconditionSupportedAddressData,
			"Content-Type must be text/vcard")
	}
	card, err := vcard.Parse(body)
	if err != nil {
		return nil, apperror.ValidationError(apperror.PreconditionValidAddressData, err.Error())
	}
	if card.UID() == "" {
		return nil, apperror.ValidationError(apperror.PreconditionValidAddressData, "card must carry a UID")
	}
	return card, nil
}

// NoUIDConflict enforces UID uniqueness: at most one live instance per
// logical_uid in a collection, except when the PUT is replacing the
// same slug it already names.
func NoUIDConflict(ctx context.Context, store storage.Store, collectionID uuid.UUID, uid, slug string) error {
	existing, err := store.FindLiveInstanceByUID(ctx, collectionID, uid)
	if err != nil {
		return apperror.StorageFailure(err)
	}
	if existing != nil && existing.Slug != slug {
		return apperror.ForbiddenPrecondition(apperror.PreconditionNoUIDConflict,
			"UID "+uid+" already used by a different resource in this collection")
	}
	return nil
}

func isCalendarContentType(ct string) bool {
	return hasMediaType(ct, "text/calendar")
}

func isCardContentType(ct string) bool {
	return hasMediaType(ct, "text/vcard")
}

func hasMediaType(ct, want string) bool {
	for i := 0; i < len(ct); i++ {
		if ct[i] == ';' {
			ct = ct[:i]
			break
		}
	}
	ct = trimSpace(ct)
	return len(ct) >= len(want) && ct[:len(want)] == want
}

func trimSpace(s string) string {
	start, end := 0, len(s)
	for start < end && (s[start] == ' ' || s[start] == '\t') {
		start++
	}
	for end > start && (s[end-1] == ' ' || s[end-1] == '\t') {
		end--
	}
	return s[start:end]
}
