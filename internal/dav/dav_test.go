package dav

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/sonroyaalmerol/go-davcore/internal/auth"
	"github.com/sonroyaalmerol/go-davcore/internal/authz"
	"github.com/sonroyaalmerol/go-davcore/internal/storage"
)

const testICS = "BEGIN:VCALENDAR\r\n" +
	"VERSION:2.0\r\n" +
	"PRODID:-//test//test//EN\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:event-1@example.com\r\n" +
	"DTSTART:20260101T100000Z\r\n" +
	"DTEND:20260101T110000Z\r\n" +
	"SUMMARY:Planning\r\n" +
	"END:VEVENT\r\n" +
	"END:VCALENDAR\r\n"

func newTestHandler(t *testing.T) (*Handler, *memStore, *storage.Collection) {
	t.Helper()
	store := newMemStore()
	store.principals["alice"] = &storage.Principal{ID: "alice", DisplayName: "Alice"}
	store.policy = []authz.PolicyRow{
		{Subject: "principal:alice", Pattern: "**", Role: authz.RoleOwner},
	}
	col, err := store.CreateCollection(nil, storage.Collection{
		OwnerPrincipal:     "alice",
		Type:               storage.CollectionCalendar,
		Slug:               "personal",
		DisplayName:        "Personal",
		SupportedComponent: []string{"VEVENT"},
	})
	if err != nil {
		t.Fatal(err)
	}
	h := New(store, store, zerolog.Nop(), "/dav", 65535)
	return h, store, col
}

func aliceRequest(method, target string, body string) *http.Request {
	var r *http.Request
	if body != "" {
		r = httptest.NewRequest(method, target, strings.NewReader(body))
	} else {
		r = httptest.NewRequest(method, target, nil)
	}
	p := &auth.Principal{ID: "alice", Display: "Alice", Subjects: []string{"principal:alice", authz.PseudoAuthenticated, authz.PseudoAll}}
	return r.WithContext(auth.WithPrincipal(r.Context(), p))
}

func TestPutCreateThenGet(t *testing.T) {
	h, _, _ := newTestHandler(t)

	putReq := aliceRequest(http.MethodPut, "/dav/calendars/alice/personal/event-1.ics", testICS)
	putReq.Header.Set("Content-Type", "text/calendar")
	putRec := httptest.NewRecorder()
	h.HandlePut(putRec, putReq)
	if putRec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", putRec.Code, putRec.Body.String())
	}
	etag := putRec.Header().Get("ETag")
	if etag == "" {
		t.Fatal("expected ETag header on create")
	}

	getReq := aliceRequest(http.MethodGet, "/dav/calendars/alice/personal/event-1.ics", "")
	getRec := httptest.NewRecorder()
	h.HandleGet(getRec, getReq)
	if getRec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", getRec.Code)
	}
	if !strings.Contains(getRec.Body.String(), "UID:event-1@example.com") {
		t.Fatalf("expected UID in body, got %s", getRec.Body.String())
	}
	if getRec.Header().Get("ETag") != etag {
		t.Fatalf("etag mismatch: %s vs %s", getRec.Header().Get("ETag"), etag)
	}
}

func TestGetIfNoneMatchReturns304(t *testing.T) {
	h, _, _ := newTestHandler(t)
	putReq := aliceRequest(http.MethodPut, "/dav/calendars/alice/personal/event-1.ics", testICS)
	putReq.Header.Set("Content-Type", "text/calendar")
	putRec := httptest.NewRecorder()
	h.HandlePut(putRec, putReq)
	etag := putRec.Header().Get("ETag")

	getReq := aliceRequest(http.MethodGet, "/dav/calendars/alice/personal/event-1.ics", "")
	getReq.Header.Set("If-None-Match", etag)
	getRec := httptest.NewRecorder()
	h.HandleGet(getRec, getReq)
	if getRec.Code != http.StatusNotModified {
		t.Fatalf("expected 304, got %d", getRec.Code)
	}
}

func TestPutIfNoneMatchStarRejectsOverwrite(t *testing.T) {
	h, _, _ := newTestHandler(t)
	putReq := aliceRequest(http.MethodPut, "/dav/calendars/alice/personal/event-1.ics", testICS)
	putReq.Header.Set("Content-Type", "text/calendar")
	h.HandlePut(httptest.NewRecorder(), putReq)

	again := aliceRequest(http.MethodPut, "/dav/calendars/alice/personal/event-1.ics", testICS)
	again.Header.Set("Content-Type", "text/calendar")
	again.Header.Set("If-None-Match", "*")
	rec := httptest.NewRecorder()
	h.HandlePut(rec, again)
	if rec.Code != http.StatusPreconditionFailed {
		t.Fatalf("expected 412, got %d", rec.Code)
	}
}

func TestPutRejectsUnknownCollection(t *testing.T) {
	h, _, _ := newTestHandler(t)
	req := aliceRequest(http.MethodPut, "/dav/calendars/alice/does-not-exist/event-1.ics", testICS)
	req.Header.Set("Content-Type", "text/calendar")
	rec := httptest.NewRecorder()
	h.HandlePut(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestDeleteThenGetIs404(t *testing.T) {
	h, _, _ := newTestHandler(t)
	putReq := aliceRequest(http.MethodPut, "/dav/calendars/alice/personal/event-1.ics", testICS)
	putReq.Header.Set("Content-Type", "text/calendar")
	h.HandlePut(httptest.NewRecorder(), putReq)

	delReq := aliceRequest(http.MethodDelete, "/dav/calendars/alice/personal/event-1.ics", "")
	delRec := httptest.NewRecorder()
	h.HandleDelete(delRec, delReq)
	if delRec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", delRec.Code)
	}

	getReq := aliceRequest(http.MethodGet, "/dav/calendars/alice/personal/event-1.ics", "")
	getRec := httptest.NewRecorder()
	h.HandleGet(getRec, getReq)
	if getRec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", getRec.Code)
	}
}

func TestCopyCreatesIndependentInstanceSameEntity(t *testing.T) {
	h, store, col := newTestHandler(t)
	putReq := aliceRequest(http.MethodPut, "/dav/calendars/alice/personal/event-1.ics", testICS)
	putReq.Header.Set("Content-Type", "text/calendar")
	h.HandlePut(httptest.NewRecorder(), putReq)

	copyReq := aliceRequest("COPY", "/dav/calendars/alice/personal/event-1.ics", "")
	copyReq.Header.Set("Destination", "/dav/calendars/alice/personal/event-1-copy.ics")
	copyRec := httptest.NewRecorder()
	h.HandleCopy(copyRec, copyReq)
	if copyRec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", copyRec.Code, copyRec.Body.String())
	}

	src, err := store.GetInstanceBySlug(nil, col.ID, "event-1")
	if err != nil || src == nil {
		t.Fatalf("source instance missing: %v", err)
	}
	dst, err := store.GetInstanceBySlug(nil, col.ID, "event-1-copy")
	if err != nil || dst == nil {
		t.Fatalf("destination instance missing: %v", err)
	}
	if src.EntityID != dst.EntityID {
		t.Fatalf("expected shared entity id, got %s vs %s", src.EntityID, dst.EntityID)
	}
	if src.ID == dst.ID {
		t.Fatalf("expected distinct instance ids")
	}
}

func TestMoveTombstonesSource(t *testing.T) {
	h, store, col := newTestHandler(t)
	putReq := aliceRequest(http.MethodPut, "/dav/calendars/alice/personal/event-1.ics", testICS)
	putReq.Header.Set("Content-Type", "text/calendar")
	h.HandlePut(httptest.NewRecorder(), putReq)

	moveReq := aliceRequest("MOVE", "/dav/calendars/alice/personal/event-1.ics", "")
	moveReq.Header.Set("Destination", "/dav/calendars/alice/personal/event-1-moved.ics")
	moveRec := httptest.NewRecorder()
	h.HandleMove(moveRec, moveReq)
	if moveRec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", moveRec.Code, moveRec.Body.String())
	}

	src, err := store.GetInstanceBySlug(nil, col.ID, "event-1")
	if err != nil {
		t.Fatal(err)
	}
	if src != nil {
		t.Fatalf("expected source instance to be gone after MOVE")
	}
	dst, err := store.GetInstanceBySlug(nil, col.ID, "event-1-moved")
	if err != nil || dst == nil {
		t.Fatalf("destination instance missing: %v", err)
	}
}

func TestPropfindCollectionDepth1ListsChildren(t *testing.T) {
	h, _, _ := newTestHandler(t)
	putReq := aliceRequest(http.MethodPut, "/dav/calendars/alice/personal/event-1.ics", testICS)
	putReq.Header.Set("Content-Type", "text/calendar")
	h.HandlePut(httptest.NewRecorder(), putReq)

	pfReq := aliceRequest("PROPFIND", "/dav/calendars/alice/personal", "")
	pfReq.Header.Set("Depth", "1")
	pfRec := httptest.NewRecorder()
	h.HandlePropfind(pfRec, pfReq)
	if pfRec.Code != http.StatusMultiStatus {
		t.Fatalf("expected 207, got %d: %s", pfRec.Code, pfRec.Body.String())
	}
	if !strings.Contains(pfRec.Body.String(), "event-1") {
		t.Fatalf("expected child href in multistatus, got %s", pfRec.Body.String())
	}
}

func TestReportSyncCollectionTracksChanges(t *testing.T) {
	h, _, _ := newTestHandler(t)
	putReq := aliceRequest(http.MethodPut, "/dav/calendars/alice/personal/event-1.ics", testICS)
	putReq.Header.Set("Content-Type", "text/calendar")
	h.HandlePut(httptest.NewRecorder(), putReq)

	body := `<?xml version="1.0" encoding="utf-8"?>
<D:sync-collection xmlns:D="DAV:">
  <D:sync-token></D:sync-token>
  <D:sync-level>1</D:sync-level>
  <D:prop><D:getetag/></D:prop>
</D:sync-collection>`
	reportReq := aliceRequest("REPORT", "/dav/calendars/alice/personal", body)
	reportReq.Header.Set("Content-Type", "application/xml")
	rec := httptest.NewRecorder()
	h.HandleReport(rec, reportReq)
	if rec.Code != http.StatusMultiStatus {
		t.Fatalf("expected 207, got %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "event-1") {
		t.Fatalf("expected event-1 in sync-collection response, got %s", rec.Body.String())
	}
}

func TestUnauthenticatedRequestIsForbidden(t *testing.T) {
	h, _, _ := newTestHandler(t)
	req := httptest.NewRequest(http.MethodGet, "/dav/calendars/alice/personal/event-1.ics", nil)
	req = req.WithContext(auth.WithPrincipal(req.Context(), auth.Anonymous()))
	rec := httptest.NewRecorder()
	h.HandleGet(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for unauthenticated caller, got %d", rec.Code)
	}
}

func TestPutDuplicateUIDDifferentSlugIsForbidden(t *testing.T) {
	h, _, _ := newTestHandler(t)
	putReq := aliceRequest(http.MethodPut, "/dav/calendars/alice/personal/event-1.ics", testICS)
	putReq.Header.Set("Content-Type", "text/calendar")
	h.HandlePut(httptest.NewRecorder(), putReq)

	again := aliceRequest(http.MethodPut, "/dav/calendars/alice/personal/other-slug.ics", testICS)
	again.Header.Set("Content-Type", "text/calendar")
	rec := httptest.NewRecorder()
	h.HandlePut(rec, again)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "no-uid-conflict") {
		t.Fatalf("expected no-uid-conflict element, got %s", rec.Body.String())
	}
}

func TestPutMissingUIDIsForbidden(t *testing.T) {
	h, _, _ := newTestHandler(t)
	body := "BEGIN:VCALENDAR\r\nVERSION:2.0\r\nPRODID:-//test//test//EN\r\n" +
		"BEGIN:VEVENT\r\nDTSTART:20260101T100000Z\r\nSUMMARY:No UID\r\nEND:VEVENT\r\nEND:VCALENDAR\r\n"
	req := aliceRequest(http.MethodPut, "/dav/calendars/alice/personal/no-uid.ics", body)
	req.Header.Set("Content-Type", "text/calendar")
	rec := httptest.NewRecorder()
	h.HandlePut(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "valid-calendar-data") {
		t.Fatalf("expected valid-calendar-data element, got %s", rec.Body.String())
	}
}

func TestCalendarQueryTimeRangeMatchesEvent(t *testing.T) {
	h, _, _ := newTestHandler(t)
	putReq := aliceRequest(http.MethodPut, "/dav/calendars/alice/personal/event-1.ics", testICS)
	putReq.Header.Set("Content-Type", "text/calendar")
	h.HandlePut(httptest.NewRecorder(), putReq)

	body := `<?xml version="1.0" encoding="utf-8"?>
<C:calendar-query xmlns:D="DAV:" xmlns:C="urn:ietf:params:xml:ns:caldav">
  <D:prop><D:getetag/></D:prop>
  <C:filter>
    <C:comp-filter name="VCALENDAR">
      <C:comp-filter name="VEVENT">
        <C:time-range start="20251201T000000Z" end="20260301T000000Z"/>
      </C:comp-filter>
    </C:comp-filter>
  </C:filter>
</C:calendar-query>`
	req := aliceRequest("REPORT", "/dav/calendars/alice/personal", body)
	req.Header.Set("Content-Type", "application/xml")
	rec := httptest.NewRecorder()
	h.HandleReport(rec, req)
	if rec.Code != http.StatusMultiStatus {
		t.Fatalf("expected 207, got %d: %s", rec.Code, rec.Body.String())
	}
	got := rec.Body.String()
	if strings.Count(got, "<response>")+strings.Count(got, "<D:response") == 0 && !strings.Contains(got, "event-1") {
		t.Fatalf("expected one matching response, got %s", got)
	}
	if !strings.Contains(got, "getetag") {
		t.Fatalf("expected getetag in response, got %s", got)
	}
}

func TestCalendarQueryOutsideTimeRangeMatchesNothing(t *testing.T) {
	h, _, _ := newTestHandler(t)
	putReq := aliceRequest(http.MethodPut, "/dav/calendars/alice/personal/event-1.ics", testICS)
	putReq.Header.Set("Content-Type", "text/calendar")
	h.HandlePut(httptest.NewRecorder(), putReq)

	body := `<?xml version="1.0" encoding="utf-8"?>
<C:calendar-query xmlns:D="DAV:" xmlns:C="urn:ietf:params:xml:ns:caldav">
  <D:prop><D:getetag/></D:prop>
  <C:filter>
    <C:comp-filter name="VCALENDAR">
      <C:comp-filter name="VEVENT">
        <C:time-range start="20270101T000000Z" end="20270201T000000Z"/>
      </C:comp-filter>
    </C:comp-filter>
  </C:filter>
</C:calendar-query>`
	req := aliceRequest("REPORT", "/dav/calendars/alice/personal", body)
	rec := httptest.NewRecorder()
	h.HandleReport(rec, req)
	if rec.Code != http.StatusMultiStatus {
		t.Fatalf("expected 207, got %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "event-1") {
		t.Fatalf("expected no matches outside window, got %s", rec.Body.String())
	}
}

func TestSyncCollectionRejectsUnknownToken(t *testing.T) {
	h, _, _ := newTestHandler(t)
	body := `<?xml version="1.0" encoding="utf-8"?>
<D:sync-collection xmlns:D="DAV:">
  <D:sync-token>http://other-server/token/99</D:sync-token>
  <D:sync-level>1</D:sync-level>
  <D:prop><D:getetag/></D:prop>
</D:sync-collection>`
	req := aliceRequest("REPORT", "/dav/calendars/alice/personal", body)
	rec := httptest.NewRecorder()
	h.HandleReport(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "valid-sync-token") {
		t.Fatalf("expected valid-sync-token element, got %s", rec.Body.String())
	}
}

func TestSyncCollectionReportsDeleteAsTombstone(t *testing.T) {
	h, store, col := newTestHandler(t)
	putReq := aliceRequest(http.MethodPut, "/dav/calendars/alice/personal/event-1.ics", testICS)
	putReq.Header.Set("Content-Type", "text/calendar")
	h.HandlePut(httptest.NewRecorder(), putReq)

	colAfterPut, err := store.GetCollection(nil, col.ID)
	if err != nil || colAfterPut == nil {
		t.Fatalf("collection lookup: %v", err)
	}
	tokenAfterPut := colAfterPut.SyncToken

	delReq := aliceRequest(http.MethodDelete, "/dav/calendars/alice/personal/event-1.ics", "")
	h.HandleDelete(httptest.NewRecorder(), delReq)

	body := `<?xml version="1.0" encoding="utf-8"?>
<D:sync-collection xmlns:D="DAV:">
  <D:sync-token>urn:x-davcore:synctoken:` + strconv.FormatInt(tokenAfterPut, 10) + `</D:sync-token>
  <D:sync-level>1</D:sync-level>
  <D:prop><D:getetag/></D:prop>
</D:sync-collection>`
	req := aliceRequest("REPORT", "/dav/calendars/alice/personal", body)
	rec := httptest.NewRecorder()
	h.HandleReport(rec, req)
	if rec.Code != http.StatusMultiStatus {
		t.Fatalf("expected 207, got %d: %s", rec.Code, rec.Body.String())
	}
	got := rec.Body.String()
	if !strings.Contains(got, "404") || !strings.Contains(got, "event-1") {
		t.Fatalf("expected tombstone 404 response for event-1, got %s", got)
	}
	newToken := "urn:x-davcore:synctoken:" + strconv.FormatInt(tokenAfterPut+1, 10)
	if !strings.Contains(got, newToken) {
		t.Fatalf("expected advanced sync token %s, got %s", newToken, got)
	}
}

func TestProppatchRejectsAllPropsAsProtected(t *testing.T) {
	h, _, _ := newTestHandler(t)
	body := `<?xml version="1.0" encoding="utf-8"?>
<D:propertyupdate xmlns:D="DAV:">
  <D:set><D:prop><D:displayname>New Name</D:displayname></D:prop></D:set>
</D:propertyupdate>`
	req := aliceRequest("PROPPATCH", "/dav/calendars/alice/personal", body)
	rec := httptest.NewRecorder()
	h.HandleProppatch(rec, req)
	if rec.Code != http.StatusMultiStatus {
		t.Fatalf("expected 207, got %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "403 Forbidden") {
		t.Fatalf("expected per-prop 403, got %s", rec.Body.String())
	}
}

func TestPrincipalPropertySearchFindsByDisplayName(t *testing.T) {
	h, _, _ := newTestHandler(t)
	body := `<?xml version="1.0" encoding="utf-8"?>
<D:principal-property-search xmlns:D="DAV:">
  <D:property-search>
    <D:prop><D:displayname/></D:prop>
    <D:match>Alice</D:match>
  </D:property-search>
  <D:prop><D:displayname/></D:prop>
</D:principal-property-search>`
	req := aliceRequest("REPORT", "/dav/calendars/alice/personal", body)
	rec := httptest.NewRecorder()
	h.HandleReport(rec, req)
	if rec.Code != http.StatusMultiStatus {
		t.Fatalf("expected 207, got %d: %s", rec.Code, rec.Body.String())
	}
	got := rec.Body.String()
	if !strings.Contains(got, "/principals/alice") || !strings.Contains(got, "Alice") {
		t.Fatalf("expected alice principal response, got %s", got)
	}
}

func TestSyncTokenAdvancesByOnePerMutation(t *testing.T) {
	h, store, col := newTestHandler(t)

	before, _ := store.GetCollection(nil, col.ID)
	putReq := aliceRequest(http.MethodPut, "/dav/calendars/alice/personal/event-1.ics", testICS)
	putReq.Header.Set("Content-Type", "text/calendar")
	h.HandlePut(httptest.NewRecorder(), putReq)
	afterCreate, _ := store.GetCollection(nil, col.ID)
	if afterCreate.SyncToken != before.SyncToken+1 {
		t.Fatalf("create bumped token from %d to %d, want +1", before.SyncToken, afterCreate.SyncToken)
	}

	update := aliceRequest(http.MethodPut, "/dav/calendars/alice/personal/event-1.ics", testICS)
	update.Header.Set("Content-Type", "text/calendar")
	h.HandlePut(httptest.NewRecorder(), update)
	afterUpdate, _ := store.GetCollection(nil, col.ID)
	if afterUpdate.SyncToken != afterCreate.SyncToken+1 {
		t.Fatalf("update bumped token from %d to %d, want +1", afterCreate.SyncToken, afterUpdate.SyncToken)
	}

	getReq := aliceRequest(http.MethodGet, "/dav/calendars/alice/personal/event-1.ics", "")
	h.HandleGet(httptest.NewRecorder(), getReq)
	afterGet, _ := store.GetCollection(nil, col.ID)
	if afterGet.SyncToken != afterUpdate.SyncToken {
		t.Fatalf("read must not bump sync token: %d -> %d", afterUpdate.SyncToken, afterGet.SyncToken)
	}
}

const recurringICS = "BEGIN:VCALENDAR\r\n" +
	"VERSION:2.0\r\n" +
	"PRODID:-//test//test//EN\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:daily-1@example.com\r\n" +
	"DTSTAMP:20260101T000000Z\r\n" +
	"DTSTART:20260105T100000Z\r\n" +
	"DTEND:20260105T110000Z\r\n" +
	"RRULE:FREQ=DAILY;COUNT=3\r\n" +
	"SUMMARY:Standup\r\n" +
	"END:VEVENT\r\n" +
	"END:VCALENDAR\r\n"

func TestCalendarQueryExpandEmitsSyntheticInstances(t *testing.T) {
	h, _, _ := newTestHandler(t)
	putReq := aliceRequest(http.MethodPut, "/dav/calendars/alice/personal/daily-1.ics", recurringICS)
	putReq.Header.Set("Content-Type", "text/calendar")
	h.HandlePut(httptest.NewRecorder(), putReq)

	body := `<?xml version="1.0" encoding="utf-8"?>
<C:calendar-query xmlns:D="DAV:" xmlns:C="urn:ietf:params:xml:ns:caldav">
  <D:prop>
    <D:getetag/>
    <C:calendar-data>
      <C:expand start="20260101T000000Z" end="20260201T000000Z"/>
    </C:calendar-data>
  </D:prop>
  <C:filter>
    <C:comp-filter name="VCALENDAR">
      <C:comp-filter name="VEVENT">
        <C:time-range start="20260101T000000Z" end="20260201T000000Z"/>
      </C:comp-filter>
    </C:comp-filter>
  </C:filter>
</C:calendar-query>`
	req := aliceRequest("REPORT", "/dav/calendars/alice/personal", body)
	rec := httptest.NewRecorder()
	h.HandleReport(rec, req)
	if rec.Code != http.StatusMultiStatus {
		t.Fatalf("expected 207, got %d: %s", rec.Code, rec.Body.String())
	}
	got := rec.Body.String()
	if n := strings.Count(got, "RECURRENCE-ID:"); n != 3 {
		t.Fatalf("expected 3 expanded instances, found %d RECURRENCE-ID lines in %s", n, got)
	}
	if strings.Contains(got, "RRULE") {
		t.Fatalf("expanded calendar-data must not carry RRULE: %s", got)
	}
}

func TestUpdateInstanceConditionalConflict(t *testing.T) {
	_, store, col := newTestHandler(t)
	inst, err := store.CreateInstance(nil, col.ID, uuid.New(), "ev", "text/calendar", `"aaa"`)
	if err != nil || inst == nil {
		t.Fatalf("create: %v", err)
	}
	before, _ := store.GetCollection(nil, col.ID)

	_, err = store.UpdateInstance(nil, inst.ID, `"stale"`, nil, `"bbb"`)
	var conflict *storage.ErrETagConflict
	if !errors.As(err, &conflict) {
		t.Fatalf("expected ErrETagConflict, got %v", err)
	}
	after, _ := store.GetCollection(nil, col.ID)
	if after.SyncToken != before.SyncToken {
		t.Fatalf("failed conditional update must not bump sync token: %d -> %d", before.SyncToken, after.SyncToken)
	}
	got, _ := store.GetInstanceBySlug(nil, col.ID, "ev")
	if got.ETag != `"aaa"` {
		t.Fatalf("failed conditional update must not change etag, got %s", got.ETag)
	}

	if _, err := store.UpdateInstance(nil, inst.ID, `"aaa"`, nil, `"bbb"`); err != nil {
		t.Fatalf("matching conditional update should succeed: %v", err)
	}
	if _, err := store.UpdateInstance(nil, inst.ID, "", nil, `"ccc"`); err != nil {
		t.Fatalf("unconditional update should succeed: %v", err)
	}
}

// racingStore simulates a concurrent writer slipping in between the
// handler's If-Match check and its store-level update.
type racingStore struct {
	*memStore
	raced bool
}

func (r *racingStore) UpdateInstance(ctx context.Context, instanceID uuid.UUID, expectedETag string, newEntityID *uuid.UUID, newETag string) (*storage.Instance, error) {
	if !r.raced && expectedETag != "" {
		r.raced = true
		if _, err := r.memStore.UpdateInstance(ctx, instanceID, "", nil, `"concurrent-winner"`); err != nil {
			return nil, err
		}
	}
	return r.memStore.UpdateInstance(ctx, instanceID, expectedETag, newEntityID, newETag)
}

func TestPutIfMatchLosesRaceReturns412(t *testing.T) {
	h, store, _ := newTestHandler(t)
	racing := &racingStore{memStore: store}
	h.Store = racing

	putReq := aliceRequest(http.MethodPut, "/dav/calendars/alice/personal/event-1.ics", testICS)
	putReq.Header.Set("Content-Type", "text/calendar")
	putRec := httptest.NewRecorder()
	h.HandlePut(putRec, putReq)
	etag := putRec.Header().Get("ETag")

	update := aliceRequest(http.MethodPut, "/dav/calendars/alice/personal/event-1.ics", testICS)
	update.Header.Set("Content-Type", "text/calendar")
	update.Header.Set("If-Match", etag)
	rec := httptest.NewRecorder()
	h.HandlePut(rec, update)
	if rec.Code != http.StatusPreconditionFailed {
		t.Fatalf("loser of a concurrent If-Match PUT must get 412, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestPutIfMatchEvaluatedBeforeIfNoneMatch(t *testing.T) {
	h, _, _ := newTestHandler(t)
	// No resource exists yet: If-Match must fail first even though
	// If-None-Match: * would allow the create.
	req := aliceRequest(http.MethodPut, "/dav/calendars/alice/personal/event-1.ics", testICS)
	req.Header.Set("Content-Type", "text/calendar")
	req.Header.Set("If-Match", `"anything"`)
	req.Header.Set("If-None-Match", "*")
	rec := httptest.NewRecorder()
	h.HandlePut(rec, req)
	if rec.Code != http.StatusPreconditionFailed {
		t.Fatalf("expected 412 from If-Match on a missing resource, got %d", rec.Code)
	}
}
