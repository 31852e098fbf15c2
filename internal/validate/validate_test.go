package validate

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/sonroyaalmerol/go-davcore/internal/apperror"
	"github.com/sonroyaalmerol/go-davcore/internal/storage"
)

const sampleEvent = "BEGIN:VCALENDAR\r\n" +
	"VERSION:2.0\r\n" +
	"PRODID:-//test//test//EN\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:event-1@example.com\r\n" +
	"DTSTART:20260101T100000Z\r\n" +
	"DTEND:20260101T110000Z\r\n" +
	"SUMMARY:Test\r\n" +
	"END:VEVENT\r\n" +
	"END:VCALENDAR\r\n"

func TestCalendarRejectsWrongContentType(t *testing.T) {
	_, err := Calendar("application/json", []byte(sampleEvent))
	ae := apperror.As(err)
	if ae == nil || ae.Status != 403 || ae.Precondition != apperror.PreconditionSupportedCalendarData {
		t.Fatalf("expected 403 supported-calendar-data, got %v", ae)
	}
}

func TestCalendarAcceptsValidEvent(t *testing.T) {
	parsed, err := Calendar("text/calendar", []byte(sampleEvent))
	if err != nil {
		t.Fatal(err)
	}
	if parsed.UID != "event-1@example.com" {
		t.Fatalf("unexpected uid: %q", parsed.UID)
	}
}

func TestCalendarRejectsMissingUID(t *testing.T) {
	body := "BEGIN:VCALENDAR\r\nVERSION:2.0\r\nBEGIN:VEVENT\r\nDTSTART:20260101T100000Z\r\nSUMMARY:No UID\r\nEND:VEVENT\r\nEND:VCALENDAR\r\n"
	_, err := Calendar("text/calendar", []byte(body))
	ae := apperror.As(err)
	if ae == nil || ae.Kind != apperror.KindValidationError {
		t.Fatalf("expected validation error, got %v", ae)
	}
}

func TestCalendarRejectsMixedComponentTypes(t *testing.T) {
	body := "BEGIN:VCALENDAR\r\nVERSION:2.0\r\n" +
		"BEGIN:VEVENT\r\nUID:a@example.com\r\nDTSTART:20260101T100000Z\r\nEND:VEVENT\r\n" +
		"BEGIN:VTODO\r\nUID:b@example.com\r\nEND:VTODO\r\n" +
		"END:VCALENDAR\r\n"
	_, err := Calendar("text/calendar", []byte(body))
	ae := apperror.As(err)
	if ae == nil || ae.Kind != apperror.KindValidationError {
		t.Fatalf("expected validation error for mixed components, got %v", ae)
	}
}

func TestCalendarRejectsMethodProperty(t *testing.T) {
	body := "BEGIN:VCALENDAR\r\nVERSION:2.0\r\nMETHOD:REQUEST\r\n" +
		"BEGIN:VEVENT\r\nUID:a@example.com\r\nDTSTART:20260101T100000Z\r\nEND:VEVENT\r\n" +
		"END:VCALENDAR\r\n"
	_, err := Calendar("text/calendar", []byte(body))
	ae := apperror.As(err)
	if ae == nil || ae.Kind != apperror.KindValidationError {
		t.Fatalf("expected validation error for METHOD property, got %v", ae)
	}
}

func TestAddressCardAcceptsValidCard(t *testing.T) {
	body := "BEGIN:VCARD\r\nVERSION:4.0\r\nUID:card-1\r\nFN:Jane Doe\r\nEND:VCARD\r\n"
	card, err := AddressCard("text/vcard", []byte(body))
	if err != nil {
		t.Fatal(err)
	}
	if card.UID() != "card-1" {
		t.Fatalf("unexpected uid: %q", card.UID())
	}
}

func TestAddressCardRejectsMissingUID(t *testing.T) {
	body := "BEGIN:VCARD\r\nVERSION:4.0\r\nFN:Jane Doe\r\nEND:VCARD\r\n"
	_, err := AddressCard("text/vcard", []byte(body))
	ae := apperror.As(err)
	if ae == nil || ae.Kind != apperror.KindValidationError {
		t.Fatalf("expected validation error, got %v", ae)
	}
}

// fakeUIDStore implements only FindLiveInstanceByUID; every other
// storage.Store method panics if called, which NoUIDConflict never does.
type fakeUIDStore struct {
	storage.Store
	existing *storage.Instance
}

func (f *fakeUIDStore) FindLiveInstanceByUID(ctx context.Context, collectionID uuid.UUID, uid string) (*storage.Instance, error) {
	return f.existing, nil
}

func TestNoUIDConflictAllowsSameSlug(t *testing.T) {
	store := &fakeUIDStore{existing: &storage.Instance{Slug: "event-1"}}
	err := NoUIDConflict(context.Background(), store, uuid.New(), "event-1@example.com", "event-1")
	if err != nil {
		t.Fatalf("expected no conflict, got %v", err)
	}
}

func TestNoUIDConflictRejectsDifferentSlug(t *testing.T) {
	store := &fakeUIDStore{existing: &storage.Instance{Slug: "other-event"}}
	err := NoUIDConflict(context.Background(), store, uuid.New(), "event-1@example.com", "event-1")
	ae := apperror.As(err)
	if ae == nil || ae.Status != 403 || ae.Precondition != apperror.PreconditionNoUIDConflict {
		t.Fatalf("expected 403 no-uid-conflict, got %v", ae)
	}
}

func TestNoUIDConflictAllowsWhenNoneExists(t *testing.T) {
	store := &fakeUIDStore{existing: nil}
	err := NoUIDConflict(context.Background(), store, uuid.New(), "event-1@example.com", "event-1")
	if err != nil {
		t.Fatalf("expected no conflict, got %v", err)
	}
}
