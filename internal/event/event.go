package event

import (
	"crypto/sha1"
	"fmt"
	"time"
)

// Area is the geographic classification of an event. Every event carries
// exactly one area; AreaShinagawaOther is the catch-all bucket.
type Area string

const (
	AreaNishikoyama    Area = "nishikoyama"
	AreaMusashikoyama  Area = "musashikoyama"
	AreaShinagawaOther Area = "shinagawa_other"
)

// Areas returns the closed set of valid areas.
func Areas() []Area {
	return []Area{AreaNishikoyama, AreaMusashikoyama, AreaShinagawaOther}
}

// Valid reports whether a is one of the enumerated areas.
func (a Area) Valid() bool {
	switch a {
	case AreaNishikoyama, AreaMusashikoyama, AreaShinagawaOther:
		return true
	}
	return false
}

// Category is a non-exclusive topical tag. Events carry at least one
// category; CategoryGeneral is the fallback when nothing else matches.
type Category string

const (
	CategoryFamily   Category = "family"
	CategoryFree     Category = "free"
	CategoryFood     Category = "food"
	CategorySports   Category = "sports"
	CategoryCulture  Category = "culture"
	CategorySenior   Category = "senior"
	CategorySale     Category = "sale"
	CategoryWorkshop Category = "workshop"
	CategoryFestival Category = "festival"
	CategoryMarket   Category = "market"
	CategoryLocal    Category = "local"
	CategoryGeneral  Category = "general"
)

const (
	// TitleMaxRunes and DescriptionMaxRunes cap free text before storage.
	TitleMaxRunes       = 100
	DescriptionMaxRunes = 500

	// TimeUnknown is the display sentinel when no time range could be
	// extracted from the source page.
	TimeUnknown = "詳細をご確認ください"

	// IDLen is the length of a generated event id.
	IDLen = 20
)

// Event is the canonical event record shared by the pipeline and the store.
type Event struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Date        string     `json:"date"` // YYYY-MM-DD, always a valid calendar date
	Time        string     `json:"time"`
	Location    string     `json:"location"`
	Address     string     `json:"address,omitempty"`
	Description string     `json:"description"`
	Category    []Category `json:"category"`
	Area        Area       `json:"area"`
	Source      string     `json:"source"`
	SourceURL   string     `json:"source_url"`
	ImageURL    string     `json:"image_url,omitempty"`
	IsDemo      bool       `json:"is_demo"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Candidate is a partial record produced by a source collector before
// normalization. RawDate and RawTime hold source text verbatim; consumers
// must tolerate missing time, address and image fields.
type Candidate struct {
	Title       string
	RawDate     string
	RawTime     string
	Location    string
	Address     string
	Description string
	Source      string
	SourceURL   string
	ImageURL    string
}

// GenerateID derives a deterministic short id from the identity fields.
// Identical (title, date, sourceURL) always yields the identical id, so a
// re-scrape of an unchanged listing dedups against history by construction.
func GenerateID(title, date, sourceURL string) string {
	h := sha1.New()
	h.Write([]byte(title + "|" + date + "|" + sourceURL))
	return fmt.Sprintf("%x", h.Sum(nil))[:IDLen]
}

// Truncate caps s at max runes. Multi-byte text is cut on rune boundaries.
func Truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}

// HasCategory reports whether the event carries c.
func (e *Event) HasCategory(c Category) bool {
	for _, have := range e.Category {
		if have == c {
			return true
		}
	}
	return false
}
