package shred

import (
	"testing"

	"github.com/sonroyaalmerol/go-davcore/internal/icalendar"
	"github.com/sonroyaalmerol/go-davcore/internal/recur"
	"github.com/sonroyaalmerol/go-davcore/internal/vcard"
)

const eventFixture = `BEGIN:VCALENDAR
VERSION:2.0
PRODID:-//test//test//EN
BEGIN:VEVENT
UID:evt-1@example.com
DTSTAMP:20260101T000000Z
DTSTART:20260201T100000Z
DTEND:20260201T110000Z
SUMMARY:Team sync
LOCATION:Room 4
STATUS:CONFIRMED
END:VEVENT
END:VCALENDAR
`

const cardFixture = `BEGIN:VCARD
VERSION:4.0
UID:card-1
FN:Jane Doe
N:Doe;Jane;;;
EMAIL:Jane.Doe@Example.com
TEL:+1 (555) 123-4567
END:VCARD
`

func TestDecomposeReassembleICalendar(t *testing.T) {
	obj, err := icalendar.Parse([]byte(eventFixture))
	if err != nil {
		t.Fatal(err)
	}
	tree, indexes := DecomposeICalendar(obj, recur.NewResolver())
	if len(indexes) != 1 {
		t.Fatalf("expected 1 index row, got %d", len(indexes))
	}
	if indexes[0].Event.EntityID != tree.EntityID {
		t.Fatalf("event index EntityID not wired to entity: got %v want %v", indexes[0].Event.EntityID, tree.EntityID)
	}
	if indexes[0].Event.Summary != "Team sync" {
		t.Fatalf("unexpected summary %q", indexes[0].Event.Summary)
	}

	rebuilt := ReassembleICalendar(tree)
	out := icalendar.Serialize(rebuilt)

	reparsed, err := icalendar.Parse(out)
	if err != nil {
		t.Fatalf("reassembled object failed to reparse: %v", err)
	}
	if reparsed.UID() != "evt-1@example.com" {
		t.Fatalf("UID mismatch after round trip: %q", reparsed.UID())
	}
}

func TestDecomposeReassembleVCard(t *testing.T) {
	card, err := vcard.Parse([]byte(cardFixture))
	if err != nil {
		t.Fatal(err)
	}
	tree, idx := DecomposeVCard(card)
	if idx.Card.UID != "card-1" {
		t.Fatalf("unexpected card UID %q", idx.Card.UID)
	}
	if len(idx.Emails) != 1 || idx.Emails[0].Value != "jane.doe@example.com" {
		t.Fatalf("unexpected emails %+v", idx.Emails)
	}
	if len(idx.Phones) != 1 || idx.Phones[0].Value != "+15551234567" {
		t.Fatalf("unexpected phones %+v", idx.Phones)
	}
	if idx.Card.ValueTextUnicodeFold == "" || idx.Card.ValueTextASCIIFold == "" {
		t.Fatalf("expected folded columns to be populated")
	}

	rebuilt := ReassembleVCard(tree)
	out := vcard.Serialize(rebuilt)
	reparsed, err := vcard.Parse(out)
	if err != nil {
		t.Fatalf("reassembled card failed to reparse: %v", err)
	}
	if reparsed.UID() != "card-1" {
		t.Fatalf("UID mismatch after round trip: %q", reparsed.UID())
	}
}

const textListFixture = `BEGIN:VCALENDAR
VERSION:2.0
PRODID:-//test//test//EN
BEGIN:VEVENT
UID:evt-2@example.com
DTSTAMP:20260101T000000Z
DTSTART:20260301T090000Z
SUMMARY:Offsite\, day one
CATEGORIES:Work,Travel
END:VEVENT
END:VCALENDAR
`

// Byte stability through the full decompose/reassemble cycle is the
// hardest contract here: TEXT-LIST values like CATEGORIES must come back
// with unescaped separators, and escaped TEXT must re-escape identically.
func TestShredRoundTripIsByteStable(t *testing.T) {
	obj, err := icalendar.Parse([]byte(textListFixture))
	if err != nil {
		t.Fatal(err)
	}
	canonical := icalendar.Serialize(obj)

	tree, _ := DecomposeICalendar(obj, recur.NewResolver())
	rebuilt := ReassembleICalendar(tree)
	out := icalendar.Serialize(rebuilt)

	if string(out) != string(canonical) {
		t.Fatalf("shred round trip not byte-stable:\n--- before ---\n%s\n--- after ---\n%s", canonical, out)
	}
	if icalendar.ETag(out) != icalendar.ETag(canonical) {
		t.Fatal("etag drift across shred round trip")
	}
}

func TestDecomposePopulatesTypedColumns(t *testing.T) {
	obj, err := icalendar.Parse([]byte(eventFixture))
	if err != nil {
		t.Fatal(err)
	}
	tree, _ := DecomposeICalendar(obj, recur.NewResolver())

	var sawDateTime bool
	for _, p := range tree.Properties {
		if p.Name == "DTSTART" {
			if p.ValueKind != ValKindDateTime || p.ValueDateTimeUTC == nil {
				t.Fatalf("DTSTART should carry a typed datetime, got %+v", p)
			}
			sawDateTime = true
		}
		if p.ValueText == "" && p.Name != "" {
			// every property keeps its raw text for fidelity
			t.Fatalf("property %s lost its raw text", p.Name)
		}
	}
	if !sawDateTime {
		t.Fatal("no DTSTART row produced")
	}
}
