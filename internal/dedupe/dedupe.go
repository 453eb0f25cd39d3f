// Package dedupe collapses event candidates that refer to the same
// real-world event, both duplicates from a single source (retries,
// pagination overlap) and the same event reported by several sources.
package dedupe

import (
	"log/slog"
	"math/rand"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/tkonno/koyama-events/internal/event"
)

// keyNoiseRe strips whitespace and decorative punctuation, including the
// full-width variants the Japanese sources mix freely, so that two listings
// of one event with slightly different spacing produce the same key.
var keyNoiseRe = regexp.MustCompile(`[\s　・!！?？「」『』【】（）()♪☆★〜～*＊、。，]+`)

// Key builds the content-equivalence dedup key from normalized title, date
// and location.
func Key(title, date, location string) string {
	return normalizeText(title) + "|" + date + "|" + normalizeText(location)
}

func normalizeText(s string) string {
	return strings.TrimSpace(keyNoiseRe.ReplaceAllString(s, ""))
}

// Collapse removes duplicates from one collection run. Two mechanisms apply:
//
// Identity collisions — a second occurrence of an id already minted in this
// batch gets a disambiguated id instead of being dropped, so two distinct
// events hashing alike both survive.
//
// Content equivalence — candidates sharing a Key are reduced to the one with
// the longer description; equal lengths keep the first encountered. The kept
// record for a fixed input multiset is therefore deterministic.
//
// The returned slice preserves first-encounter order of the kept records.
func Collapse(events []*event.Event, log *slog.Logger) []*event.Event {
	seenIDs := make(map[string]struct{}, len(events))
	byKey := make(map[string]int, len(events))
	kept := make([]*event.Event, 0, len(events))

	for _, e := range events {
		if _, dup := seenIDs[e.ID]; dup {
			fresh := disambiguate(e.ID)
			log.Debug("id collision, disambiguating",
				"id", e.ID, "new_id", fresh, "title", e.Title)
			e.ID = fresh
		}
		seenIDs[e.ID] = struct{}{}

		key := Key(e.Title, e.Date, e.Location)
		if i, dup := byKey[key]; dup {
			existing := kept[i]
			log.Debug("duplicate event",
				"title", e.Title, "source", e.Source, "kept_source", existing.Source)
			if len(e.Description) > len(existing.Description) {
				kept[i] = e
			}
			continue
		}
		byKey[key] = len(kept)
		kept = append(kept, e)
	}

	return kept
}

// disambiguate mints a replacement id: the original's prefix plus a
// run-scoped time/random suffix, capped at the standard id length.
func disambiguate(id string) string {
	if len(id) > 12 {
		id = id[:12]
	}
	suffix := strconv.FormatInt(time.Now().UnixMilli(), 36) + randBase36(3)
	fresh := id + "_" + suffix
	if len(fresh) > event.IDLen {
		fresh = fresh[:event.IDLen]
	}
	return fresh
}

const base36 = "0123456789abcdefghijklmnopqrstuvwxyz"

func randBase36(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = base36[rand.Intn(len(base36))]
	}
	return string(b)
}
