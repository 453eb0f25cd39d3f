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
	palmID   = "musashikoyama_palm"
	palmName = "武蔵小山パルム"

	palmAddress = "東京都品川区小山3丁目 武蔵小山パルム商店街"
)

var (
	palmNewsLinkRe = regexp.MustCompile(`/news/\d+$`)

	// Date and venue hints inside free-running announcement text.
	dateHintRe  = regexp.MustCompile(`(\d{4}年)?\d{1,2}月\d{1,2}日|\d{4}[/\-]\d{1,2}[/\-]\d{1,2}`)
	timeHintRe  = regexp.MustCompile(`\d{1,2}[時:：]\d{0,2}分?\s*[~～〜\-]\s*\d{1,2}[時:：]?\d{0,2}分?`)
	venueHintRe = regexp.MustCompile(`(?:開催場所|場所|会場)[:：]\s*([^\n、。]+)`)
)

// MusashikoyamaPalm collects events from the Palm shopping arcade's news
// feed. The site has no structured event markup: announcements are free
// text, so dates, times and venues are pulled out with pattern matching.
type MusashikoyamaPalm struct {
	client  *Client
	baseURL string
	log     *slog.Logger
}

// NewMusashikoyamaPalm creates the collector.
func NewMusashikoyamaPalm(client *Client, log *slog.Logger) *MusashikoyamaPalm {
	return &MusashikoyamaPalm{
		client:  client,
		baseURL: "https://musashikoyama-palm.jp",
		log:     log.With("source", palmID),
	}
}

func (p *MusashikoyamaPalm) ID() string   { return palmID }
func (p *MusashikoyamaPalm) Name() string { return palmName }

// SetBaseURL points the collector at a different host. Test hook.
func (p *MusashikoyamaPalm) SetBaseURL(u string) { p.baseURL = strings.TrimRight(u, "/") }

func (p *MusashikoyamaPalm) ScrapeEvents(ctx context.Context) ([]event.Candidate, error) {
	doc, err := p.client.Document(ctx, p.baseURL+"/news/event")
	if err != nil {
		return nil, fmt.Errorf("listing page: %w", err)
	}

	links := p.eventLinks(doc)
	p.log.Debug("listing page parsed", "links", len(links))

	var candidates []event.Candidate
	for _, url := range links {
		cand, err := p.scrapeDetail(ctx, url)
		if err != nil {
			p.log.Warn("detail page skipped", "url", url, "error", err)
			continue
		}
		if cand != nil {
			candidates = append(candidates, *cand)
		}
	}

	p.log.Info("scrape finished", "events", len(candidates))
	return candidates, nil
}

// eventLinks collects the /news/<id> article links, deduplicated in
// document order.
func (p *MusashikoyamaPalm) eventLinks(doc *goquery.Document) []string {
	seen := make(map[string]struct{})
	var links []string

	doc.Find(`a[href*="/news/"]`).Each(func(_ int, sel *goquery.Selection) {
		href, ok := sel.Attr("href")
		if !ok || !palmNewsLinkRe.MatchString(href) {
			return
		}
		if !strings.HasPrefix(href, "http") {
			href = p.baseURL + href
		}
		if _, dup := seen[href]; dup {
			return
		}
		seen[href] = struct{}{}
		links = append(links, href)
	})

	return links
}

func (p *MusashikoyamaPalm) scrapeDetail(ctx context.Context, url string) (*event.Candidate, error) {
	doc, err := p.client.Document(ctx, url)
	if err != nil {
		return nil, err
	}
	return p.parseDetail(doc, url), nil
}

func (p *MusashikoyamaPalm) parseDetail(doc *goquery.Document, url string) *event.Candidate {
	title := firstText(doc, "h1", ".news-title", ".article-title", "title")
	content := strings.TrimSpace(
		doc.Find(".news-content, .article-content, .content-area, .entry-content, main").First().Text())

	rawDate := dateHintRe.FindString(content)
	if rawDate == "" {
		p.log.Debug("no date in announcement", "title", title)
		return nil
	}

	location := "武蔵小山パルム商店街"
	if m := venueHintRe.FindStringSubmatch(content); m != nil {
		location = strings.TrimSpace(m[1])
	}

	return &event.Candidate{
		Title:       title,
		RawDate:     rawDate,
		RawTime:     timeHintRe.FindString(content),
		Location:    location,
		Address:     palmAddress,
		Description: whitespaceRe.ReplaceAllString(content, " "),
		Source:      palmID,
		SourceURL:   url,
	}
}
