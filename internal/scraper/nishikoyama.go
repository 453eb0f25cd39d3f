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
	nishikoyamaID   = "love_nishikoyama"
	nishikoyamaName = "We Love 西小山"

	// Article scan depth per listing page.
	nishikoyamaMaxArticles = 10
)

// smallEventKeywords marks the shop-level happenings this blog covers that
// the tourism association never lists.
var smallEventKeywords = []string{
	"ワークショップ", "セール", "割引", "フェア", "体験会", "試食会", "相談会",
	"展示会", "発表会", "撮影会", "ライブ", "演奏会", "お話会", "交流会",
	"即売会", "手作り市", "マーケット", "蚤の市",
}

// majorEventKeywords names the big festivals that shinagawa_kanko already
// carries with better data; collecting them here would only create
// cross-source duplicates with thinner descriptions.
var majorEventKeywords = []string{
	"にしこやまつり", "西小山飲食大宴会", "小山両社祭", "品川区民まつり", "しながわ宿場まつり",
}

var (
	sentenceDateRe  = regexp.MustCompile(`(\d{4}年)?\d{1,2}月\d{1,2}日`)
	quotedTitleRe   = regexp.MustCompile(`「([^」]+)」`)
	inlineVenueRe   = regexp.MustCompile(`(?:場所|於|にて)[:：]?\s*([^、。\n]+)`)
	inlineTimeRe    = regexp.MustCompile(`\d{1,2}[:：時]\d{0,2}\s*[~～〜\-]\s*\d{1,2}[:：時]\d{0,2}`)
	titleKeywordSet = []string{"ワークショップ", "セール", "フェア", "体験会", "ライブ", "即売会", "マーケット"}
)

// LoveNishikoyama collects small neighbourhood events from the We Love
// 西小山 community blog. Events live inside prose paragraphs, so the
// collector scans recent articles for sentences that carry both a date and a
// small-event keyword.
type LoveNishikoyama struct {
	client  *Client
	baseURL string
	log     *slog.Logger
}

// NewLoveNishikoyama creates the collector.
func NewLoveNishikoyama(client *Client, log *slog.Logger) *LoveNishikoyama {
	return &LoveNishikoyama{
		client:  client,
		baseURL: "https://lovenishikoyama.com",
		log:     log.With("source", nishikoyamaID),
	}
}

func (l *LoveNishikoyama) ID() string   { return nishikoyamaID }
func (l *LoveNishikoyama) Name() string { return nishikoyamaName }

// SetBaseURL points the collector at a different host. Test hook.
func (l *LoveNishikoyama) SetBaseURL(u string) { l.baseURL = strings.TrimRight(u, "/") }

func (l *LoveNishikoyama) ScrapeEvents(ctx context.Context) ([]event.Candidate, error) {
	pages := []string{
		l.baseURL + "/",
		l.baseURL + "/category/event/",
		l.baseURL + "/category/news/",
	}

	var candidates []event.Candidate
	reachedAny := false

	for _, pageURL := range pages {
		doc, err := l.client.Document(ctx, pageURL)
		if err != nil {
			l.log.Warn("listing page skipped", "url", pageURL, "error", err)
			continue
		}
		reachedAny = true

		for _, articleURL := range l.articleLinks(doc) {
			found, err := l.scrapeArticle(ctx, articleURL)
			if err != nil {
				l.log.Warn("article skipped", "url", articleURL, "error", err)
				continue
			}
			candidates = append(candidates, found...)
		}
	}

	if !reachedAny {
		return nil, fmt.Errorf("all listing pages unreachable")
	}

	// The same announcement often appears on multiple listing pages.
	candidates = dedupeByTitle(candidates)

	l.log.Info("scrape finished", "events", len(candidates))
	return candidates, nil
}

func (l *LoveNishikoyama) articleLinks(doc *goquery.Document) []string {
	seen := make(map[string]struct{})
	var links []string

	doc.Find("article a, .post a, .entry-title a").Each(func(_ int, sel *goquery.Selection) {
		href, ok := sel.Attr("href")
		if !ok || strings.Contains(href, "#") {
			return
		}
		if !strings.HasPrefix(href, "http") {
			href = l.baseURL + href
		}
		if !strings.Contains(href, strings.TrimPrefix(l.baseURL, "https://")) {
			return
		}
		if _, dup := seen[href]; dup {
			return
		}
		seen[href] = struct{}{}
		if len(links) < nishikoyamaMaxArticles {
			links = append(links, href)
		}
	})

	return links
}

func (l *LoveNishikoyama) scrapeArticle(ctx context.Context, url string) ([]event.Candidate, error) {
	doc, err := l.client.Document(ctx, url)
	if err != nil {
		return nil, err
	}
	return l.parseArticle(doc, url), nil
}

func (l *LoveNishikoyama) parseArticle(doc *goquery.Document, url string) []event.Candidate {
	content := doc.Find(".entry-content, .post-content, article").First().Text()

	if !containsAny(content, smallEventKeywords) || containsAny(content, majorEventKeywords) {
		return nil
	}

	var candidates []event.Candidate
	doc.Find("p, li").Each(func(_ int, sel *goquery.Selection) {
		text := sel.Text()
		if !sentenceDateRe.MatchString(text) {
			return
		}
		if cand := l.parseSentence(text, url); cand != nil {
			candidates = append(candidates, *cand)
		}
	})

	return candidates
}

// parseSentence turns one date-bearing sentence into a candidate. The title
// is the bracket-quoted name when present, otherwise a window around the
// first event keyword; a sentence with neither is not an event.
func (l *LoveNishikoyama) parseSentence(text, url string) *event.Candidate {
	rawDate := sentenceDateRe.FindString(text)
	if rawDate == "" {
		return nil
	}

	var title string
	if m := quotedTitleRe.FindStringSubmatch(text); m != nil {
		title = m[1]
	} else {
		for _, kw := range titleKeywordSet {
			if i := strings.Index(text, kw); i >= 0 {
				runes := []rune(text)
				ri := len([]rune(text[:i]))
				from := max(0, ri-20)
				to := min(len(runes), ri+len([]rune(kw))+20)
				title = strings.TrimSpace(string(runes[from:to]))
				break
			}
		}
	}
	if title == "" {
		return nil
	}

	if containsAny(title, majorEventKeywords) {
		return nil
	}

	location := "西小山"
	if m := inlineVenueRe.FindStringSubmatch(text); m != nil {
		location = strings.TrimSpace(m[1])
	}

	return &event.Candidate{
		Title:       title,
		RawDate:     rawDate,
		RawTime:     inlineTimeRe.FindString(text),
		Location:    location,
		Description: text,
		Source:      nishikoyamaID,
		SourceURL:   url,
	}
}

func dedupeByTitle(candidates []event.Candidate) []event.Candidate {
	seen := make(map[string]struct{}, len(candidates))
	out := candidates[:0]
	for _, c := range candidates {
		if _, dup := seen[c.Title]; dup {
			continue
		}
		seen[c.Title] = struct{}{}
		out = append(out, c)
	}
	return out
}

func containsAny(text string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}
