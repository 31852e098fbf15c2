package path

import (
	"testing"

	"github.com/sonroyaalmerol/go-davcore/internal/apperror"
)

func TestParseCollectionPath(t *testing.T) {
	loc, err := Parse("/dav/calendars/alice/personal", "/dav")
	if err != nil {
		t.Fatal(err)
	}
	if loc.ResourceType != ResourceCalendars || loc.OwnerSlug != "alice" || loc.CollectionSlug != "personal" {
		t.Fatalf("unexpected location: %+v", loc)
	}
	if loc.HasItem {
		t.Fatalf("expected no item")
	}
}

func TestParseItemPathStripsExtension(t *testing.T) {
	loc, err := Parse("/dav/calendars/alice/personal/event-1.ics", "/dav")
	if err != nil {
		t.Fatal(err)
	}
	if !loc.HasItem || loc.ItemSlug != "event-1" {
		t.Fatalf("unexpected item slug: %+v", loc)
	}
}

func TestParseVCardExtensionStripped(t *testing.T) {
	loc, err := Parse("/dav/addressbooks/alice/contacts/card-1.vcf", "/dav")
	if err != nil {
		t.Fatal(err)
	}
	if loc.ItemSlug != "card-1" {
		t.Fatalf("expected extension stripped, got %q", loc.ItemSlug)
	}
}

func TestParseRejectsUnknownResourceType(t *testing.T) {
	_, err := Parse("/dav/widgets/alice/personal", "/dav")
	if err == nil {
		t.Fatal("expected error")
	}
	if apperror.As(err).Kind != apperror.KindNotFound {
		t.Fatalf("expected not-found kind, got %v", apperror.As(err).Kind)
	}
}

func TestParseRejectsShortPath(t *testing.T) {
	_, err := Parse("/dav/calendars/alice", "/dav")
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestParseRejectsDotDotSegment(t *testing.T) {
	_, err := Parse("/dav/calendars/../personal", "/dav")
	if err == nil {
		t.Fatal("expected error for path traversal segment")
	}
}

func TestSafeSegment(t *testing.T) {
	cases := map[string]bool{
		"personal": true,
		"":         false,
		".":        false,
		"..":       false,
		"a/b":      false,
	}
	for seg, want := range cases {
		if got := SafeSegment(seg); got != want {
			t.Errorf("SafeSegment(%q) = %v, want %v", seg, got, want)
		}
	}
}
