package icalendar

import (
	"strings"
	"testing"
)

const minimalEvent = "BEGIN:VCALENDAR\r\n" +
	"VERSION:2.0\r\n" +
	"PRODID:-//Test//EN\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:ev1@ex\r\n" +
	"DTSTAMP:20260101T000000Z\r\n" +
	"DTSTART:20260201T100000Z\r\n" +
	"DTEND:20260201T110000Z\r\n" +
	"SUMMARY:X\r\n" +
	"END:VEVENT\r\n" +
	"END:VCALENDAR\r\n"

func TestParseSerializeRoundTrip(t *testing.T) {
	obj, err := Parse([]byte(minimalEvent))
	if err != nil {
		t.Fatal(err)
	}
	out := Serialize(obj)

	reparsed, err := Parse(out)
	if err != nil {
		t.Fatal(err)
	}
	out2 := Serialize(reparsed)
	if string(out) != string(out2) {
		t.Fatalf("serialize not idempotent:\n%q\n%q", out, out2)
	}
	if obj.UID() != reparsed.UID() {
		t.Fatalf("UID mismatch: %q vs %q", obj.UID(), reparsed.UID())
	}
}

func TestCanonicalOrderUIDBeforeSummary(t *testing.T) {
	obj, err := Parse([]byte(minimalEvent))
	if err != nil {
		t.Fatal(err)
	}
	out := string(Serialize(obj))
	if !strings.HasPrefix(out, "BEGIN:VCALENDAR\r\nVERSION:2.0\r\nPRODID:-//Test//EN\r\n") {
		t.Fatalf("calendar-level order wrong:\n%s", out)
	}
	uidPos := strings.Index(out, "UID:")
	dtstartPos := strings.Index(out, "DTSTART:")
	summaryPos := strings.Index(out, "SUMMARY:")
	if !(uidPos < dtstartPos && dtstartPos < summaryPos) {
		t.Fatalf("expected UID < DTSTART < SUMMARY, got positions %d %d %d", uidPos, dtstartPos, summaryPos)
	}
}

func TestEscapesTextOnSerialize(t *testing.T) {
	obj := &Object{Root: &Component{Name: "VEVENT", Kind: KindEvent}}
	obj.Root.Properties = append(obj.Root.Properties,
		&Property{Name: "SUMMARY", Type: "TEXT", Text: "Meeting, important"},
		&Property{Name: "DESCRIPTION", Type: "TEXT", Text: "Line 1\nLine 2"},
	)
	out := string(Serialize(obj))
	if !strings.Contains(out, `SUMMARY:Meeting\, important`) {
		t.Fatalf("missing escaped summary: %s", out)
	}
	if !strings.Contains(out, `DESCRIPTION:Line 1\nLine 2`) {
		t.Fatalf("missing escaped description: %s", out)
	}
}

func TestETagStableAcrossRoundTrip(t *testing.T) {
	obj, err := Parse([]byte(minimalEvent))
	if err != nil {
		t.Fatal(err)
	}
	out := Serialize(obj)
	e1 := ETag(out)

	reparsed, _ := Parse(out)
	out2 := Serialize(reparsed)
	e2 := ETag(out2)

	if e1 != e2 {
		t.Fatalf("etag drift: %s vs %s", e1, e2)
	}
}
