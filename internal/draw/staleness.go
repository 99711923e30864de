package draw

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
	_ "time/tzdata" // the operating zone must resolve on hosts without a zoneinfo database
)

// DefaultTimezone is the civil zone the draw times are published in.
const DefaultTimezone = "Asia/Singapore"

// ErrBadDrawTime is returned when a draw time cannot be parsed in any accepted layout.
var ErrBadDrawTime = errors.New("unparseable draw time")

var (
	reSpaceBeforePunct = regexp.MustCompile(`\s+([,.])`)
	reSpaces           = regexp.MustCompile(`\s+`)
	// "6.30pm", "6:30 PM", "06.30p.m." -> hour, minute, a|p
	reClock = regexp.MustCompile(`(\d{1,2})[.:](\d{2})\s*([aApP])\.?\s*[mM]\.?`)
)

// layouts accepted after canonicalization, e.g. "Mon, 1 Jan 2024, 6:30pm".
var layouts = func() []string {
	var out []string
	for _, wd := range []string{"Mon", "Monday"} {
		for _, mon := range []string{"Jan", "January"} {
			for _, sep := range []string{", ", " "} {
				out = append(out, wd+", 2 "+mon+" 2006"+sep+"3:04pm")
			}
		}
	}
	return out
}()

// Canonical normalizes the punctuation variance seen on the results page:
// stray spaces before commas and periods, repeated whitespace, a period in
// place of the colon in the time, and the am/pm marker's case and spacing.
func Canonical(s string) string {
	s = strings.TrimSpace(s)
	s = reSpaceBeforePunct.ReplaceAllString(s, "$1")
	s = reClock.ReplaceAllStringFunc(s, func(m string) string {
		p := reClock.FindStringSubmatch(m)
		return p[1] + ":" + p[2] + strings.ToLower(p[3]) + "m"
	})
	return reSpaces.ReplaceAllString(s, " ")
}

// ParseDrawTime parses a published draw time in loc. A nil loc means the default zone.
func ParseDrawTime(drawAt string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = DefaultLocation()
	}
	clean := Canonical(drawAt)
	if clean == "" {
		return time.Time{}, fmt.Errorf("%w: empty", ErrBadDrawTime)
	}
	for _, layout := range layouts {
		if t, err := time.ParseInLocation(layout, clean, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrBadDrawTime, drawAt)
}

// IsStale reports whether the draw described by drawAt has already happened.
//
// Unparseable input is stale so callers refetch instead of serving garbled state.
// A draw at exactly now is still fresh.
func IsStale(drawAt string, now time.Time, loc *time.Location) bool {
	if loc == nil {
		loc = DefaultLocation()
	}
	t, err := ParseDrawTime(drawAt, loc)
	if err != nil {
		return true
	}
	return t.Before(now.In(loc))
}

// LoadLocation resolves an IANA zone name, defaulting to DefaultTimezone.
func LoadLocation(name string) (*time.Location, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		name = DefaultTimezone
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("timezone %q: %w", name, err)
	}
	return loc, nil
}

// DefaultLocation returns the operating zone, falling back to a fixed UTC+8
// offset when the zone database is unavailable.
func DefaultLocation() *time.Location {
	if loc, err := time.LoadLocation(DefaultTimezone); err == nil {
		return loc
	}
	return time.FixedZone("SGT", 8*60*60)
}
