package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/tkonno/koyama-events/internal/event"
)

const (
	shinagawaKankoID   = "shinagawa_kanko"
	shinagawaKankoName = "品川観光協会"

	// The association lists ward-wide events over several pages; five is
	// comfortably past the horizon of upcoming listings.
	shinagawaKankoMaxPages = 5
)

var whitespaceRe = regexp.MustCompile(`\s+`)

// ShinagawaKanko collects events from the Shinagawa tourism association
// site: a paginated listing page linking to one detail page per event, with
// the usual dt/dd and th/td label tables for date, time and venue.
type ShinagawaKanko struct {
	client  *Client
	baseURL string
	log     *slog.Logger
}

// NewShinagawaKanko creates the collector. baseURL is overridable for tests.
func NewShinagawaKanko(client *Client, log *slog.Logger) *ShinagawaKanko {
	return &ShinagawaKanko{
		client:  client,
		baseURL: "https://shinagawa-kanko.or.jp",
		log:     log.With("source", shinagawaKankoID),
	}
}

func (s *ShinagawaKanko) ID() string   { return shinagawaKankoID }
func (s *ShinagawaKanko) Name() string { return shinagawaKankoName }

// SetBaseURL points the collector at a different host. Test hook.
func (s *ShinagawaKanko) SetBaseURL(u string) { s.baseURL = strings.TrimRight(u, "/") }

func (s *ShinagawaKanko) ScrapeEvents(ctx context.Context) ([]event.Candidate, error) {
	var candidates []event.Candidate

	for page := 1; page <= shinagawaKankoMaxPages; page++ {
		url := s.baseURL + "/event/"
		if page > 1 {
			url = fmt.Sprintf("%s/event/page/%d/", s.baseURL, page)
		}

		doc, err := s.client.Document(ctx, url)
		if err != nil {
			if page == 1 {
				return nil, fmt.Errorf("listing page: %w", err)
			}
			s.log.Warn("listing page unreachable, stopping pagination", "page", page, "error", err)
			break
		}

		items := doc.Find(".event-list__item, .post-list__item")
		s.log.Debug("listing page parsed", "page", page, "items", items.Length())

		items.Each(func(_ int, sel *goquery.Selection) {
			titleLink := sel.Find("h3 a, .post-list__title a").First()
			title := strings.TrimSpace(titleLink.Text())
			href, _ := titleLink.Attr("href")
			if title == "" || href == "" {
				return
			}

			cand, err := s.scrapeDetail(ctx, s.absoluteURL(href), title)
			if err != nil {
				s.log.Warn("detail page skipped", "url", href, "error", err)
				return
			}
			if cand != nil {
				candidates = append(candidates, *cand)
			}
		})

		if doc.Find(".pagination .next, .nav-links .next").Length() == 0 {
			break
		}
	}

	s.log.Info("scrape finished", "events", len(candidates))
	return candidates, nil
}

// scrapeDetail extracts the candidate fields from one event detail page.
// A page without any recognizable date text yields (nil, nil): the record is
// dropped, not an error.
func (s *ShinagawaKanko) scrapeDetail(ctx context.Context, url, title string) (*event.Candidate, error) {
	doc, err := s.client.Document(ctx, url)
	if err != nil {
		return nil, err
	}
	return s.parseDetail(doc, url, title), nil
}

func (s *ShinagawaKanko) parseDetail(doc *goquery.Document, url, title string) *event.Candidate {
	rawDate := firstText(doc,
		append([]string{".event-date", ".post-meta__date"}, labelled("開催日")...)...)
	if rawDate == "" {
		s.log.Debug("no date on detail page", "title", title)
		return nil
	}

	location := firstText(doc,
		append([]string{".event-location", ".event-venue"},
			append(labelled("場所"), labelled("会場")...)...)...)
	if location == "" {
		location = "品川区内"
	}

	description := firstText(doc,
		".event-description", ".post-content", ".entry-content", ".event-detail")
	description = whitespaceRe.ReplaceAllString(description, " ")

	imageURL, _ := doc.Find(".event-detail img, .entry-content img").First().Attr("src")

	return &event.Candidate{
		Title:       title,
		RawDate:     rawDate,
		RawTime:     firstText(doc, append([]string{".event-time"}, labelled("時間")...)...),
		Location:    location,
		Address:     firstText(doc, append([]string{".event-address"}, labelled("住所")...)...),
		Description: description,
		Source:      shinagawaKankoID,
		SourceURL:   url,
		ImageURL:    imageURL,
	}
}

func (s *ShinagawaKanko) absoluteURL(href string) string {
	if strings.HasPrefix(href, "http") {
		return href
	}
	return s.baseURL + href
}

// labelled builds selectors for the dt/dd and th/td label tables the site
// uses interchangeably.
func labelled(label string) []string {
	return []string{
		fmt.Sprintf("dt:contains(%q) + dd", label),
		fmt.Sprintf("th:contains(%q) + td", label),
	}
}

// firstText returns the first non-empty trimmed text among the selectors.
func firstText(doc *goquery.Document, selectors ...string) string {
	for _, sel := range selectors {
		if v := strings.TrimSpace(doc.Find(sel).First().Text()); v != "" {
			return v
		}
	}
	return ""
}
