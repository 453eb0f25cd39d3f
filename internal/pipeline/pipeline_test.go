package pipeline

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/tkonno/koyama-events/internal/classify"
	"github.com/tkonno/koyama-events/internal/event"
	"github.com/tkonno/koyama-events/internal/logger"
	"github.com/tkonno/koyama-events/internal/notify"
	"github.com/tkonno/koyama-events/internal/scraper"
	"github.com/tkonno/koyama-events/internal/storage"
)

var runNow = time.Date(2025, time.July, 1, 9, 0, 0, 0, time.UTC)

type fakeCollector struct {
	id         string
	candidates []event.Candidate
	err        error
}

func (f *fakeCollector) ID() string   { return f.id }
func (f *fakeCollector) Name() string { return f.id }
func (f *fakeCollector) ScrapeEvents(ctx context.Context) ([]event.Candidate, error) {
	return f.candidates, f.err
}

type memoryStore struct {
	events    map[string]*event.Event
	idsErr    error
	upsertErr map[string]error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{events: make(map[string]*event.Event), upsertErr: make(map[string]error)}
}

func (m *memoryStore) Get(ctx context.Context, id string) (*event.Event, error) {
	e, ok := m.events[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return e, nil
}

func (m *memoryStore) Upsert(ctx context.Context, e *event.Event) error {
	if err := m.upsertErr[e.ID]; err != nil {
		return err
	}
	copied := *e
	m.events[e.ID] = &copied
	return nil
}

func (m *memoryStore) ListIDs(ctx context.Context) (map[string]struct{}, error) {
	if m.idsErr != nil {
		return nil, m.idsErr
	}
	ids := make(map[string]struct{}, len(m.events))
	for id := range m.events {
		ids[id] = struct{}{}
	}
	return ids, nil
}

func (m *memoryStore) List(ctx context.Context) ([]event.Event, error) {
	var out []event.Event
	for _, e := range m.events {
		out = append(out, *e)
	}
	return out, nil
}

func (m *memoryStore) ListByDate(ctx context.Context, date string) ([]event.Event, error) {
	var out []event.Event
	for _, e := range m.events {
		if e.Date == date {
			out = append(out, *e)
		}
	}
	return out, nil
}

func (m *memoryStore) UpdateArea(ctx context.Context, id string, area event.Area) error {
	e, ok := m.events[id]
	if !ok {
		return storage.ErrNotFound
	}
	e.Area = area
	return nil
}

func (m *memoryStore) Delete(ctx context.Context, id string) error {
	delete(m.events, id)
	return nil
}

type recordingNotifier struct {
	notified []*event.Event
}

func (r *recordingNotifier) NotifyNew(ctx context.Context, events []*event.Event) (notify.Result, error) {
	r.notified = append(r.notified, events...)
	return notify.Result{Sent: len(events)}, nil
}

func TestRunFullCycle(t *testing.T) {
	store := newMemoryStore()
	notifier := &recordingNotifier{}

	tanabataKanko := event.Candidate{
		Title:     "七夕まつり",
		RawDate:   "2025年7月7日",
		RawTime:   "10:00〜16:00",
		Location:  "西小山駅前広場",
		Source:    "shinagawa_kanko",
		SourceURL: "https://kanko.example/event/1/",
	}
	tanabataBlog := event.Candidate{
		Title:       "七夕まつり",
		RawDate:     "7月7日",
		Location:    "西小山駅前広場",
		Description: "短冊に願いを書いて笹に飾ろう。屋台も多数出店します。",
		Source:      "love_nishikoyama",
		SourceURL:   "https://love.example/post/9",
	}
	palmSale := event.Candidate{
		Title:     "パルムサマーセール",
		RawDate:   "2025年7月12日",
		Location:  "武蔵小山パルム商店街",
		Source:    "musashikoyama_palm",
		SourceURL: "https://palm.example/news/3",
	}

	p := New(
		[]scraper.Collector{
			&fakeCollector{id: "shinagawa_kanko", candidates: []event.Candidate{tanabataKanko}},
			&fakeCollector{id: "love_nishikoyama", candidates: []event.Candidate{tanabataBlog}},
			&fakeCollector{id: "musashikoyama_palm", candidates: []event.Candidate{palmSale}},
		},
		classify.NewDefault(), store, notifier, logger.Discard(),
		WithClock(func() time.Time { return runNow }),
	)

	report, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if report.Collected != 3 {
		t.Errorf("Collected = %d, want 3", report.Collected)
	}
	// The two tanabata listings merge; the blog's longer description wins.
	if report.Deduped != 2 {
		t.Errorf("Deduped = %d, want 2", report.Deduped)
	}
	if len(report.NewEvents) != 2 {
		t.Fatalf("NewEvents = %d, want 2", len(report.NewEvents))
	}
	if report.Persisted != 2 {
		t.Errorf("Persisted = %d, want 2", report.Persisted)
	}

	var tanabata *event.Event
	for _, e := range report.NewEvents {
		if e.Title == "七夕まつり" {
			tanabata = e
		}
	}
	if tanabata == nil {
		t.Fatal("merged tanabata event missing from NewEvents")
	}
	if tanabata.Date != "2025-07-07" {
		t.Errorf("Date = %q, want 2025-07-07", tanabata.Date)
	}
	if tanabata.Description == "" {
		t.Error("merge should have kept the richer description")
	}
	if tanabata.Area != event.AreaNishikoyama {
		t.Errorf("Area = %q", tanabata.Area)
	}
	if len(notifier.notified) != 2 {
		t.Errorf("notified %d events, want 2", len(notifier.notified))
	}
}

func TestRunSecondRunFindsNothingNew(t *testing.T) {
	store := newMemoryStore()
	notifier := &recordingNotifier{}
	collector := &fakeCollector{id: "shinagawa_kanko", candidates: []event.Candidate{{
		Title:     "盆踊り大会",
		RawDate:   "2025年8月15日",
		Location:  "西小山駅前広場",
		Source:    "shinagawa_kanko",
		SourceURL: "https://kanko.example/event/2/",
	}}}

	p := New([]scraper.Collector{collector}, classify.NewDefault(), store, notifier,
		logger.Discard(), WithClock(func() time.Time { return runNow }))

	if _, err := p.Run(context.Background()); err != nil {
		t.Fatalf("first run: %v", err)
	}
	report, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("second run: %v", err)
	}

	if len(report.NewEvents) != 0 {
		t.Errorf("second run NewEvents = %d, want 0", len(report.NewEvents))
	}
	if len(notifier.notified) != 1 {
		t.Errorf("notified %d events total, want 1", len(notifier.notified))
	}
	// The record is still re-persisted to pick up upstream edits.
	if report.Persisted != 1 {
		t.Errorf("Persisted = %d, want 1", report.Persisted)
	}
}

func TestRunIsolatesBrokenCollector(t *testing.T) {
	store := newMemoryStore()
	p := New(
		[]scraper.Collector{
			&fakeCollector{id: "love_nishikoyama", err: errors.New("site unreachable")},
			&fakeCollector{id: "shinagawa_kanko", candidates: []event.Candidate{{
				Title:     "フリーマーケット",
				RawDate:   "2025年7月20日",
				Location:  "大井町駅前",
				Source:    "shinagawa_kanko",
				SourceURL: "https://kanko.example/event/3/",
			}}},
		},
		classify.NewDefault(), store, nil, logger.Discard(),
		WithClock(func() time.Time { return runNow }),
	)

	report, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.BySource["love_nishikoyama"] != 0 {
		t.Errorf("broken collector count = %d, want 0", report.BySource["love_nishikoyama"])
	}
	if report.BySource["shinagawa_kanko"] != 1 {
		t.Errorf("healthy collector count = %d, want 1", report.BySource["shinagawa_kanko"])
	}
	if report.Persisted != 1 {
		t.Errorf("Persisted = %d, want 1", report.Persisted)
	}
}

func TestRunDropsUnresolvableDates(t *testing.T) {
	store := newMemoryStore()
	p := New(
		[]scraper.Collector{&fakeCollector{id: "musashikoyama_palm", candidates: []event.Candidate{
			{Title: "日付未定イベント", RawDate: "近日開催", Source: "musashikoyama_palm", SourceURL: "https://palm.example/news/4"},
			{Title: "確定イベント", RawDate: "2025年7月9日", Source: "musashikoyama_palm", SourceURL: "https://palm.example/news/5"},
		}}},
		classify.NewDefault(), store, nil, logger.Discard(),
		WithClock(func() time.Time { return runNow }),
	)

	report, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Collected != 2 || report.Normalized != 1 {
		t.Errorf("Collected=%d Normalized=%d, want 2 and 1", report.Collected, report.Normalized)
	}
}

func TestRunFutureFilter(t *testing.T) {
	store := newMemoryStore()
	mk := func(title, rawDate string) event.Candidate {
		return event.Candidate{
			Title: title, RawDate: rawDate, Location: "西小山",
			Source: "shinagawa_kanko", SourceURL: "https://kanko.example/" + title,
		}
	}

	p := New(
		[]scraper.Collector{&fakeCollector{id: "shinagawa_kanko", candidates: []event.Candidate{
			mk("昨日のイベント", "2025年6月30日"),  // yesterday: kept by the grace window
			mk("一昨日のイベント", "2025年6月29日"), // two days ago: dropped
			mk("今日のイベント", "2025年7月1日"),
		}}},
		classify.NewDefault(), store, nil, logger.Discard(),
		WithClock(func() time.Time { return runNow }),
	)

	report, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Upcoming != 2 {
		t.Errorf("Upcoming = %d, want 2", report.Upcoming)
	}
	for _, e := range report.NewEvents {
		if e.Date < "2025-06-30" {
			t.Errorf("event %q on %s should have been dropped", e.Title, e.Date)
		}
	}
}

func TestRunStoreDiffFailureAborts(t *testing.T) {
	store := newMemoryStore()
	store.idsErr = fmt.Errorf("database locked")

	p := New(
		[]scraper.Collector{&fakeCollector{id: "shinagawa_kanko", candidates: []event.Candidate{{
			Title: "イベント", RawDate: "2025年7月9日",
			Source: "shinagawa_kanko", SourceURL: "https://kanko.example/e",
		}}}},
		classify.NewDefault(), store, nil, logger.Discard(),
		WithClock(func() time.Time { return runNow }),
	)

	if _, err := p.Run(context.Background()); err == nil {
		t.Fatal("expected error when the id diff cannot be computed")
	}
	if len(store.events) != 0 {
		t.Error("nothing should have been persisted after a diff failure")
	}
}

func TestRunPersistFailureIsPerItem(t *testing.T) {
	store := newMemoryStore()

	good := event.Candidate{Title: "イベントA", RawDate: "2025年7月9日",
		Source: "shinagawa_kanko", SourceURL: "https://kanko.example/a"}
	bad := event.Candidate{Title: "イベントB", RawDate: "2025年7月10日",
		Source: "shinagawa_kanko", SourceURL: "https://kanko.example/b"}
	badID := event.GenerateID("イベントB", "2025-07-10", bad.SourceURL)
	store.upsertErr[badID] = fmt.Errorf("disk full")

	p := New(
		[]scraper.Collector{&fakeCollector{id: "shinagawa_kanko", candidates: []event.Candidate{good, bad}}},
		classify.NewDefault(), store, nil, logger.Discard(),
		WithClock(func() time.Time { return runNow }),
	)

	report, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Persisted != 1 || report.Failed != 1 {
		t.Errorf("Persisted=%d Failed=%d, want 1 and 1", report.Persisted, report.Failed)
	}
}
