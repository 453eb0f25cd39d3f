// Package repair holds the maintenance tooling that operates on already
// stored events: selecting subsets with filter expressions and re-running
// area classification over them. Early scraper revisions mis-filed events
// into the wrong area; repair runs fix the backlog without re-scraping.
package repair

import (
	"fmt"
	"strings"

	"github.com/tkonno/koyama-events/internal/event"
)

// Filter selects stored events by simple criteria. All active criteria
// must hold; an empty filter matches everything.
type Filter struct {
	// Sources restricts to events from any of these source ids.
	Sources []string
	// Areas restricts to events currently filed under any of these areas.
	Areas []string
	// DateFrom/DateTo bound the event date, inclusive, as YYYY-MM-DD.
	DateFrom string
	DateTo   string
	// Titles restricts to events whose title contains any of these
	// substrings, case-insensitive.
	Titles []string
	// IncludeDemo widens the match to seeded demo events, which every
	// repair run skips by default.
	IncludeDemo bool
}

// Parse turns expressions like "source=love_nishikoyama" or
// "before=2026-01-01" into a Filter. Repeating a key ORs its values.
func Parse(exprs []string) (*Filter, error) {
	f := &Filter{}
	for _, expr := range exprs {
		key, value, found := strings.Cut(expr, "=")
		if !found || value == "" {
			return nil, fmt.Errorf("malformed filter %q, want key=value", expr)
		}
		switch key {
		case "source":
			f.Sources = append(f.Sources, value)
		case "area":
			if !event.Area(value).Valid() {
				return nil, fmt.Errorf("unknown area %q", value)
			}
			f.Areas = append(f.Areas, value)
		case "title":
			f.Titles = append(f.Titles, value)
		case "after":
			f.DateFrom = value
		case "before":
			f.DateTo = value
		default:
			return nil, fmt.Errorf("unknown filter key %q", key)
		}
	}
	return f, nil
}

// IsEmpty reports whether the filter has no active criteria.
func (f *Filter) IsEmpty() bool {
	return len(f.Sources) == 0 &&
		len(f.Areas) == 0 &&
		f.DateFrom == "" &&
		f.DateTo == "" &&
		len(f.Titles) == 0
}

// Matches reports whether evt passes all active criteria.
func (f *Filter) Matches(evt *event.Event) bool {
	if evt.IsDemo && !f.IncludeDemo {
		return false
	}

	if len(f.Sources) > 0 && !containsFold(f.Sources, evt.Source) {
		return false
	}

	if len(f.Areas) > 0 && !containsFold(f.Areas, string(evt.Area)) {
		return false
	}

	// YYYY-MM-DD compares lexically
	if f.DateFrom != "" && evt.Date < f.DateFrom {
		return false
	}
	if f.DateTo != "" && evt.Date > f.DateTo {
		return false
	}

	if len(f.Titles) > 0 {
		titleLower := strings.ToLower(evt.Title)
		matched := false
		for _, want := range f.Titles {
			if strings.Contains(titleLower, strings.ToLower(want)) {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}

	return true
}

// Apply returns the events matching the filter, in input order.
func (f *Filter) Apply(events []event.Event) []event.Event {
	var matched []event.Event
	for _, evt := range events {
		if f.Matches(&evt) {
			matched = append(matched, evt)
		}
	}
	return matched
}

// String renders the active criteria for log and dry-run output.
func (f *Filter) String() string {
	if f.IsEmpty() {
		return "all events"
	}

	var parts []string
	if len(f.Sources) > 0 {
		parts = append(parts, fmt.Sprintf("source: %s", strings.Join(f.Sources, ", ")))
	}
	if len(f.Areas) > 0 {
		parts = append(parts, fmt.Sprintf("area: %s", strings.Join(f.Areas, ", ")))
	}
	if f.DateFrom != "" {
		parts = append(parts, fmt.Sprintf("after: %s", f.DateFrom))
	}
	if f.DateTo != "" {
		parts = append(parts, fmt.Sprintf("before: %s", f.DateTo))
	}
	if len(f.Titles) > 0 {
		parts = append(parts, fmt.Sprintf("title: %s", strings.Join(f.Titles, ", ")))
	}
	return strings.Join(parts, " | ")
}

func containsFold(haystack []string, needle string) bool {
	for _, s := range haystack {
		if strings.EqualFold(s, needle) {
			return true
		}
	}
	return false
}
