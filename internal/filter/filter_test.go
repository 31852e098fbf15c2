package filter

import (
	"testing"
	"time"

	"github.com/sonroyaalmerol/go-davcore/internal/icalendar"
	"github.com/sonroyaalmerol/go-davcore/internal/shred"
	"github.com/sonroyaalmerol/go-davcore/internal/vcard"
)

func TestMatchTextCollations(t *testing.T) {
	ok, err := MatchText(TextMatch{Value: "TEAM", Collation: CollationASCIICasemap, Match: MatchEquals}, "team")
	if err != nil || !ok {
		t.Fatalf("ascii-casemap equals should match, got %v %v", ok, err)
	}
	ok, err = MatchText(TextMatch{Value: "team", Collation: CollationOctet, Match: MatchEquals}, "TEAM")
	if err != nil || ok {
		t.Fatalf("octet collation must be exact, got %v %v", ok, err)
	}
}

func TestValidateCollationRejectsUnknown(t *testing.T) {
	if err := ValidateCollation("i;bogus"); err == nil {
		t.Fatal("expected unsupported collation error")
	}
}

func TestMatchEventTimeRangeNonRecurring(t *testing.T) {
	start := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)
	end := start.Add(time.Hour)
	rec := EventRecord{Index: shred.EventIndexRow{DTStartUTC: &start, DTEndUTC: &end, Summary: "Team sync"}}

	root := CompFilter{Name: "VCALENDAR", CompFilters: []CompFilter{{
		Name: "VEVENT",
		TimeRange: &TimeRange{
			Start: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
			End:   time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		},
	}}}
	ok, err := MatchEvent(root, rec, nil)
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("expected time-range match")
	}

	root.CompFilters[0].TimeRange.Start = time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	root.CompFilters[0].TimeRange.End = time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	ok, err = MatchEvent(root, rec, nil)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("expected no match outside window")
	}
}

func TestMatchCardAnyOf(t *testing.T) {
	rec := CardRecord{
		Index:  shred.CardIndexRow{FN: "Jane Doe"},
		Emails: []shred.CardEmailRow{{Value: "jane@example.com", Original: "jane@example.com"}},
	}
	f := AddressbookFilter{Test: TestAnyOf, PropFilters: []PropFilter{
		{Name: "EMAIL", TextMatch: &TextMatch{Value: "example.com", Match: MatchContains, Collation: CollationASCIICasemap}},
		{Name: "ORG", TextMatch: &TextMatch{Value: "Acme", Match: MatchEquals}},
	}}
	ok, err := MatchCard(f, rec)
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("expected anyof match via EMAIL")
	}
}

func eventComponentFixture() *icalendar.Component {
	obj, err := icalendar.Parse([]byte("BEGIN:VCALENDAR\r\nVERSION:2.0\r\n" +
		"BEGIN:VEVENT\r\n" +
		"UID:alarm-1@example.com\r\n" +
		"DTSTART:20260201T100000Z\r\n" +
		"SUMMARY:Review\r\n" +
		"ATTENDEE;PARTSTAT=ACCEPTED;CN=Jane:mailto:jane@example.com\r\n" +
		"ATTENDEE;PARTSTAT=DECLINED:mailto:joe@example.com\r\n" +
		"BEGIN:VALARM\r\n" +
		"ACTION:DISPLAY\r\n" +
		"TRIGGER:-PT15M\r\n" +
		"END:VALARM\r\n" +
		"END:VEVENT\r\n" +
		"END:VCALENDAR\r\n"))
	if err != nil {
		panic(err)
	}
	return obj.SchedulableComponents()[0]
}

func recordForComponent(comp *icalendar.Component) EventRecord {
	start := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)
	return EventRecord{
		Index: shred.EventIndexRow{DTStartUTC: &start, Summary: "Review"},
		PropertyLookup: func(name string) []PropValue {
			var out []PropValue
			for _, p := range comp.AllProperties(name) {
				out = append(out, PropValue{Text: p.Text, Params: p.Params})
			}
			return out
		},
		Component: func() *icalendar.Component { return comp },
	}
}

func TestMatchEventNestedCompFilter(t *testing.T) {
	rec := recordForComponent(eventComponentFixture())

	withAlarm := CompFilter{Name: "VCALENDAR", CompFilters: []CompFilter{{
		Name:        "VEVENT",
		CompFilters: []CompFilter{{Name: "VALARM"}},
	}}}
	ok, err := MatchEvent(withAlarm, rec, nil)
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("expected VALARM comp-filter to match")
	}

	withAlarmAction := CompFilter{Name: "VCALENDAR", CompFilters: []CompFilter{{
		Name: "VEVENT",
		CompFilters: []CompFilter{{
			Name: "VALARM",
			PropFilters: []PropFilter{{
				Name:      "ACTION",
				TextMatch: &TextMatch{Value: "AUDIO", Match: MatchEquals, Collation: CollationASCIICasemap},
			}},
		}},
	}}}
	ok, err = MatchEvent(withAlarmAction, rec, nil)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("expected AUDIO action filter not to match a DISPLAY alarm")
	}

	alarmAbsent := CompFilter{Name: "VCALENDAR", CompFilters: []CompFilter{{
		Name:        "VEVENT",
		CompFilters: []CompFilter{{Name: "VALARM", IsNotDefined: true}},
	}}}
	ok, err = MatchEvent(alarmAbsent, rec, nil)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("is-not-defined must fail when a VALARM exists")
	}
}

func TestMatchEventParamFilter(t *testing.T) {
	rec := recordForComponent(eventComponentFixture())

	accepted := CompFilter{Name: "VCALENDAR", CompFilters: []CompFilter{{
		Name: "VEVENT",
		PropFilters: []PropFilter{{
			Name: "ATTENDEE",
			ParamFilters: []ParamFilter{{
				Name:      "PARTSTAT",
				TextMatch: &TextMatch{Value: "ACCEPTED", Match: MatchEquals, Collation: CollationASCIICasemap},
			}},
		}},
	}}}
	ok, err := MatchEvent(accepted, rec, nil)
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("expected PARTSTAT=ACCEPTED param-filter to match")
	}

	tentative := CompFilter{Name: "VCALENDAR", CompFilters: []CompFilter{{
		Name: "VEVENT",
		PropFilters: []PropFilter{{
			Name: "ATTENDEE",
			ParamFilters: []ParamFilter{{
				Name:      "PARTSTAT",
				TextMatch: &TextMatch{Value: "TENTATIVE", Match: MatchEquals, Collation: CollationASCIICasemap},
			}},
		}},
	}}}
	ok, err = MatchEvent(tentative, rec, nil)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("no attendee is TENTATIVE")
	}

	// Both conditions must hold on the same occurrence: Jane declined
	// nothing, so CN=Jane plus PARTSTAT=DECLINED matches no attendee.
	sameOccurrence := CompFilter{Name: "VCALENDAR", CompFilters: []CompFilter{{
		Name: "VEVENT",
		PropFilters: []PropFilter{{
			Name: "ATTENDEE",
			ParamFilters: []ParamFilter{
				{Name: "CN", TextMatch: &TextMatch{Value: "Jane", Match: MatchEquals}},
				{Name: "PARTSTAT", TextMatch: &TextMatch{Value: "DECLINED", Match: MatchEquals}},
			},
		}},
	}}}
	ok, err = MatchEvent(sameOccurrence, rec, nil)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("param-filters must be evaluated against a single occurrence")
	}

	noParam := CompFilter{Name: "VCALENDAR", CompFilters: []CompFilter{{
		Name: "VEVENT",
		PropFilters: []PropFilter{{
			Name:         "SUMMARY",
			ParamFilters: []ParamFilter{{Name: "LANGUAGE", IsNotDefined: true}},
		}},
	}}}
	ok, err = MatchEvent(noParam, rec, nil)
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("is-not-defined param-filter should match a parameterless SUMMARY")
	}
}

func TestMatchCardParamFilter(t *testing.T) {
	card, err := vcard.Parse([]byte("BEGIN:VCARD\r\nVERSION:4.0\r\nUID:c1\r\nFN:Jane Doe\r\n" +
		"EMAIL;TYPE=work:jane@corp.example\r\n" +
		"EMAIL;TYPE=home:jane@home.example\r\n" +
		"END:VCARD\r\n"))
	if err != nil {
		t.Fatal(err)
	}
	rec := CardRecord{
		Index: shred.CardIndexRow{FN: "Jane Doe", UID: "c1"},
		Emails: []shred.CardEmailRow{
			{Value: "jane@corp.example", Original: "jane@corp.example"},
			{Value: "jane@home.example", Original: "jane@home.example"},
		},
		PropertyLookup: func(name string) []PropValue {
			var out []PropValue
			for _, p := range card.AllProperties(name) {
				out = append(out, PropValue{Text: p.Text, Params: p.Params})
			}
			return out
		},
	}

	work := AddressbookFilter{Test: TestAnyOf, PropFilters: []PropFilter{{
		Name:      "EMAIL",
		TextMatch: &TextMatch{Value: "corp.example", Match: MatchContains, Collation: CollationASCIICasemap},
		ParamFilters: []ParamFilter{{
			Name:      "TYPE",
			TextMatch: &TextMatch{Value: "work", Match: MatchEquals, Collation: CollationASCIICasemap},
		}},
	}}}
	ok, err := MatchCard(work, rec)
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("expected TYPE=work EMAIL to match")
	}

	mismatch := AddressbookFilter{Test: TestAnyOf, PropFilters: []PropFilter{{
		Name:      "EMAIL",
		TextMatch: &TextMatch{Value: "corp.example", Match: MatchContains, Collation: CollationASCIICasemap},
		ParamFilters: []ParamFilter{{
			Name:      "TYPE",
			TextMatch: &TextMatch{Value: "home", Match: MatchEquals, Collation: CollationASCIICasemap},
		}},
	}}}
	ok, err = MatchCard(mismatch, rec)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("the corp address is not TYPE=home; cross-occurrence matching is a bug")
	}
}
