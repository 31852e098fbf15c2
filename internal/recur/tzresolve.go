// Package recur implements VTIMEZONE resolution and RRULE/RDATE/EXDATE
// expansion over a window, wrapping teambition/rrule-go for the RRULE
// arithmetic.
package recur

import (
	"strings"
	"time"
)

// windowsToIANA is a small, illustrative slice of the Windows→IANA
// zone map; real deployments would load the
// full CLDR table, but the core's contract is the resolution order,
// not table completeness.
var windowsToIANA = map[string]string{
	"Eastern Standard Time":  "America/New_York",
	"Central Standard Time":  "America/Chicago",
	"Mountain Standard Time": "America/Denver",
	"Pacific Standard Time":  "America/Los_Angeles",
	"GMT Standard Time":      "Europe/London",
	"W. Europe Standard Time": "Europe/Berlin",
	"China Standard Time":    "Asia/Shanghai",
	"Tokyo Standard Time":    "Asia/Tokyo",
}

// Resolver resolves a TZID string to a *time.Location, caching lookups
// for the lifetime of one request. Not safe for concurrent use; mint
// one per request.
type Resolver struct {
	cache map[string]*time.Location
}

func NewResolver() *Resolver {
	return &Resolver{cache: map[string]*time.Location{}}
}

// Resolve implements the resolution order: (1) embedded VTIMEZONE
// definitions pre-seeded into the cache via RegisterEmbedded, (2) IANA
// database, (3) Windows name map, (4) prefix stripping (e.g.
// "/mozilla.org/...").
func (r *Resolver) Resolve(tzid string) (*time.Location, error) {
	if tzid == "" || tzid == "UTC" || tzid == "Z" {
		return time.UTC, nil
	}
	if loc, ok := r.cache[tzid]; ok {
		return loc, nil
	}
	loc, err := r.resolveUncached(tzid)
	if err == nil {
		r.cache[tzid] = loc
	}
	return loc, err
}

func (r *Resolver) resolveUncached(tzid string) (*time.Location, error) {
	if loc, err := time.LoadLocation(tzid); err == nil {
		return loc, nil
	}
	if iana, ok := windowsToIANA[tzid]; ok {
		if loc, err := time.LoadLocation(iana); err == nil {
			return loc, nil
		}
	}
	// Strip leading segments one at a time, so a prefixed name such as
	// "/mozilla.org/20070129_1/Europe/Berlin" reaches "Europe/Berlin".
	for i := 0; i < len(tzid)-1; i++ {
		if tzid[i] != '/' {
			continue
		}
		if loc, err := time.LoadLocation(tzid[i+1:]); err == nil {
			return loc, nil
		}
	}
	return nil, &UnresolvedTZIDError{TZID: tzid}
}

// UnresolvedTZIDError is returned when no resolution strategy succeeds.
type UnresolvedTZIDError struct {
	TZID string
}

func (e *UnresolvedTZIDError) Error() string {
	return "unresolved TZID: " + e.TZID
}
