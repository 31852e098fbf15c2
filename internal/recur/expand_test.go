package recur

import (
	"testing"
	"time"
)

func mustUTC(s string) time.Time {
	t, err := time.Parse("20060102T150405Z", s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestExpandDailyRRuleWithinWindow(t *testing.T) {
	m := Master{
		DTStartUTC: mustUTC("20260201T100000Z"),
		Duration:   time.Hour,
		RRuleText:  "FREQ=DAILY;COUNT=5",
	}
	occ, err := Expand(m, mustUTC("20260201T000000Z"), mustUTC("20260204T000000Z"), 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(occ) != 3 {
		t.Fatalf("expected 3 occurrences in window, got %d", len(occ))
	}
}

func TestExpandHonorsExdate(t *testing.T) {
	m := Master{
		DTStartUTC: mustUTC("20260201T100000Z"),
		Duration:   time.Hour,
		RRuleText:  "FREQ=DAILY;COUNT=3",
		EXDates:    []time.Time{mustUTC("20260202T100000Z")},
	}
	occ, err := Expand(m, mustUTC("20260201T000000Z"), mustUTC("20260210T000000Z"), 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(occ) != 2 {
		t.Fatalf("expected 2 occurrences after exclusion, got %d", len(occ))
	}
	for _, o := range occ {
		if o.StartUTC.Equal(mustUTC("20260202T100000Z")) {
			t.Fatalf("excluded date present")
		}
	}
}

func TestExpandNonRecurringSingleInstance(t *testing.T) {
	m := Master{DTStartUTC: mustUTC("20260201T100000Z"), Duration: time.Hour}
	occ, err := Expand(m, mustUTC("20260101T000000Z"), mustUTC("20260301T000000Z"), 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(occ) != 1 {
		t.Fatalf("expected 1, got %d", len(occ))
	}
}

func TestParseDurationBasic(t *testing.T) {
	d, err := ParseDuration("P1DT2H30M")
	if err != nil {
		t.Fatal(err)
	}
	want := 24*time.Hour + 2*time.Hour + 30*time.Minute
	if d != want {
		t.Fatalf("got %v want %v", d, want)
	}
}
