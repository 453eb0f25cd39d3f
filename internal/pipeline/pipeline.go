// Package pipeline drives one ingestion run: collect candidates from every
// source, normalize and classify them, collapse duplicates, drop past
// events, diff against the store to find what is new, persist, and hand the
// new events to the notifier. Each stage consumes the full output of the
// previous one; deduplication and diffing need whole-batch visibility.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tkonno/koyama-events/internal/classify"
	"github.com/tkonno/koyama-events/internal/dedupe"
	"github.com/tkonno/koyama-events/internal/event"
	"github.com/tkonno/koyama-events/internal/normalize"
	"github.com/tkonno/koyama-events/internal/notify"
	"github.com/tkonno/koyama-events/internal/scraper"
	"github.com/tkonno/koyama-events/internal/storage"
)

// Notifier is the fan-out boundary the pipeline talks to.
type Notifier interface {
	NotifyNew(ctx context.Context, events []*event.Event) (notify.Result, error)
}

// Report is the per-run observability record. A source with a zero count is
// the operator signal that its collector needs maintenance.
type Report struct {
	StartedAt  time.Time      `json:"started_at"`
	Duration   time.Duration  `json:"duration"`
	BySource   map[string]int `json:"by_source"`
	Collected  int            `json:"collected"`
	Normalized int            `json:"normalized"`
	Deduped    int            `json:"deduped"`
	Upcoming   int            `json:"upcoming"`
	Persisted  int            `json:"persisted"`
	Failed     int            `json:"failed"`
	Notified   notify.Result  `json:"notified"`
	NewEvents  []*event.Event `json:"new_events"`
}

// Pipeline is the run orchestrator.
type Pipeline struct {
	collectors []scraper.Collector
	classifier *classify.Classifier
	events     storage.EventStore
	notifier   Notifier
	log        *slog.Logger
	now        func() time.Time
	parallel   int
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithClock overrides the run clock. Test hook.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

// WithParallelism bounds how many collectors run concurrently.
func WithParallelism(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.parallel = n
		}
	}
}

// New creates a Pipeline. notifier may be nil to skip the notification
// stage entirely.
func New(collectors []scraper.Collector, classifier *classify.Classifier,
	events storage.EventStore, notifier Notifier, log *slog.Logger, opts ...Option) *Pipeline {
	p := &Pipeline{
		collectors: collectors,
		classifier: classifier,
		events:     events,
		notifier:   notifier,
		log:        log,
		now:        time.Now,
		parallel:   len(collectors),
	}
	if p.parallel == 0 {
		p.parallel = 1
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run executes one full ingestion cycle. Only a store-level failure at the
// diff boundary aborts the run; everything else degrades per item or per
// source and is visible in the Report.
func (p *Pipeline) Run(ctx context.Context) (*Report, error) {
	report := &Report{
		StartedAt: p.now().UTC(),
		BySource:  make(map[string]int, len(p.collectors)),
	}

	candidates := p.collect(ctx, report)
	report.Collected = len(candidates)

	events := p.normalizeAndClassify(candidates)
	report.Normalized = len(events)

	events = dedupe.Collapse(events, p.log)
	report.Deduped = len(events)

	events = p.filterUpcoming(events)
	report.Upcoming = len(events)

	newEvents, err := p.diff(ctx, events)
	if err != nil {
		return report, fmt.Errorf("diff against store: %w", err)
	}
	report.NewEvents = newEvents

	p.persist(ctx, events, report)

	if p.notifier != nil && len(newEvents) > 0 {
		result, err := p.notifier.NotifyNew(ctx, newEvents)
		if err != nil {
			p.log.Error("notification fan-out failed", "error", err)
		}
		report.Notified = result
	}

	report.Duration = time.Since(report.StartedAt)
	p.log.Info("run completed",
		"collected", report.Collected,
		"normalized", report.Normalized,
		"deduped", report.Deduped,
		"upcoming", report.Upcoming,
		"new", len(report.NewEvents),
		"persisted", report.Persisted,
		"failed", report.Failed,
		"duration", report.Duration,
	)
	return report, nil
}

// collect runs every collector with bounded concurrency. A collector's
// total failure is isolated: it contributes zero events and the run goes on.
func (p *Pipeline) collect(ctx context.Context, report *Report) []event.Candidate {
	var (
		mu         sync.Mutex
		candidates []event.Candidate
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.parallel)

	for _, c := range p.collectors {
		g.Go(func() error {
			found, err := c.ScrapeEvents(gctx)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				p.log.Error("collector failed", "source", c.ID(), "error", err)
				report.BySource[c.ID()] = 0
				return nil
			}
			report.BySource[c.ID()] = len(found)
			candidates = append(candidates, found...)
			return nil
		})
	}
	_ = g.Wait() // collector errors never propagate

	return candidates
}

// normalizeAndClassify resolves dates and times, applies the text caps,
// derives ids and assigns area and categories. A candidate whose date cannot
// be resolved is dropped here, never stored.
func (p *Pipeline) normalizeAndClassify(candidates []event.Candidate) []*event.Event {
	now := p.now()
	events := make([]*event.Event, 0, len(candidates))

	for _, c := range candidates {
		date, ok := normalize.Date(c.RawDate, now)
		if !ok {
			p.log.Debug("dropping candidate with unresolvable date",
				"title", c.Title, "raw_date", c.RawDate, "source", c.Source)
			continue
		}

		display, ok := normalize.TimeRange(c.RawTime)
		if !ok {
			display = event.TimeUnknown
		}

		title := event.Truncate(c.Title, event.TitleMaxRunes)
		evidence := classify.CombinedText(title, c.Location, c.Address, c.Source)

		events = append(events, &event.Event{
			ID:          event.GenerateID(title, date, c.SourceURL),
			Title:       title,
			Date:        date,
			Time:        display,
			Location:    c.Location,
			Address:     c.Address,
			Description: event.Truncate(c.Description, event.DescriptionMaxRunes),
			Category:    p.classifier.Categories(evidence),
			Area:        p.classifier.Area(evidence),
			Source:      c.Source,
			SourceURL:   c.SourceURL,
			ImageURL:    c.ImageURL,
			IsDemo:      false,
			CreatedAt:   now.UTC(),
			UpdatedAt:   now.UTC(),
		})
	}

	return events
}

// filterUpcoming drops events strictly before yesterday. The one-day grace
// window keeps same-day events that slipped into the past by wall-clock
// time of the run.
func (p *Pipeline) filterUpcoming(events []*event.Event) []*event.Event {
	cutoff := p.now().AddDate(0, 0, -1).Format("2006-01-02")

	kept := events[:0]
	for _, e := range events {
		if e.Date >= cutoff { // YYYY-MM-DD compares lexically
			kept = append(kept, e)
		}
	}
	return kept
}

// diff returns the events whose id is absent from the store.
func (p *Pipeline) diff(ctx context.Context, events []*event.Event) ([]*event.Event, error) {
	known, err := p.events.ListIDs(ctx)
	if err != nil {
		return nil, err
	}

	var fresh []*event.Event
	for _, e := range events {
		if _, exists := known[e.ID]; !exists {
			fresh = append(fresh, e)
		}
	}
	return fresh, nil
}

// persist upserts every surviving event individually; one record's failure
// is logged and does not stop the rest.
func (p *Pipeline) persist(ctx context.Context, events []*event.Event, report *Report) {
	for _, e := range events {
		if err := p.events.Upsert(ctx, e); err != nil {
			p.log.Error("persist failed", "id", e.ID, "title", e.Title, "error", err)
			report.Failed++
			continue
		}
		report.Persisted++
	}
}
