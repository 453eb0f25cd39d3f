package cli

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/tkonno/koyama-events/internal/event"
	"github.com/tkonno/koyama-events/internal/pipeline"
)

func sampleReport() *pipeline.Report {
	return &pipeline.Report{
		StartedAt: time.Date(2025, time.July, 1, 9, 0, 0, 0, time.UTC),
		BySource:  map[string]int{"shinagawa_kanko": 2, "love_nishikoyama": 1},
		Collected: 3,
		Deduped:   2,
		Persisted: 2,
		NewEvents: []*event.Event{
			{
				ID: "id-1", Title: "七夕まつり", Date: "2025-07-07", Time: "10:00-16:00",
				Location: "西小山駅前広場", Area: event.AreaNishikoyama,
				Source: "shinagawa_kanko", SourceURL: "https://kanko.example/1",
			},
			{
				ID: "id-2", Title: "パルム夜市", Date: "2025-07-12", Time: "17:00-21:00",
				Location: "パルム商店街", Area: event.AreaMusashikoyama,
				Source: "musashikoyama_palm", SourceURL: "https://palm.example/2",
			},
		},
	}
}

func TestWriteRunReportText(t *testing.T) {
	var buf bytes.Buffer
	if err := writeRunReport(&buf, sampleReport(), FormatText, false); err != nil {
		t.Fatalf("writeRunReport: %v", err)
	}

	out := buf.String()
	for _, want := range []string{"七夕まつり", "パルム夜市", "nishikoyama", "musashikoyama", "Total: 2"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestWriteRunReportTextEmpty(t *testing.T) {
	var buf bytes.Buffer
	report := sampleReport()
	report.NewEvents = nil

	if err := writeRunReport(&buf, report, FormatText, false); err != nil {
		t.Fatalf("writeRunReport: %v", err)
	}
	if !strings.Contains(buf.String(), "No new events") {
		t.Errorf("output = %q", buf.String())
	}
}

func TestWriteRunReportJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := writeRunReport(&buf, sampleReport(), FormatJSON, false); err != nil {
		t.Fatalf("writeRunReport: %v", err)
	}

	var decoded pipeline.Report
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("output is not valid json: %v", err)
	}
	if len(decoded.NewEvents) != 2 {
		t.Errorf("decoded NewEvents = %d, want 2", len(decoded.NewEvents))
	}
}

func TestParseFormat(t *testing.T) {
	if _, err := parseFormat("text"); err != nil {
		t.Errorf("text: %v", err)
	}
	if _, err := parseFormat("json"); err != nil {
		t.Errorf("json: %v", err)
	}
	if _, err := parseFormat("xml"); err == nil {
		t.Error("xml should be rejected")
	}
}

func TestDemoEvents(t *testing.T) {
	now := time.Date(2025, time.July, 1, 0, 0, 0, 0, time.UTC)
	events := demoEvents(now)

	if len(events) != 5 {
		t.Fatalf("got %d demo events, want 5", len(events))
	}

	seen := make(map[string]struct{})
	for _, e := range events {
		if !e.IsDemo {
			t.Errorf("%q must be marked as demo", e.Title)
		}
		if e.Date <= now.Format("2006-01-02") {
			t.Errorf("%q dated %s, demo events are always upcoming", e.Title, e.Date)
		}
		if len(e.ID) != event.IDLen {
			t.Errorf("%q id length = %d", e.Title, len(e.ID))
		}
		if _, dup := seen[e.ID]; dup {
			t.Errorf("duplicate demo id %s", e.ID)
		}
		seen[e.ID] = struct{}{}
		if !e.Area.Valid() {
			t.Errorf("%q has invalid area %q", e.Title, e.Area)
		}
		if len(e.Category) == 0 {
			t.Errorf("%q has no categories", e.Title)
		}
	}
}

func TestDemoEventsReseedIsStable(t *testing.T) {
	now := time.Date(2025, time.July, 1, 0, 0, 0, 0, time.UTC)
	first := demoEvents(now)
	second := demoEvents(now)

	for i := range first {
		if first[i].ID != second[i].ID {
			t.Errorf("demo id changed between runs: %s vs %s", first[i].ID, second[i].ID)
		}
	}
}

func TestWriteStats(t *testing.T) {
	stats := &StatsResult{
		Total:    4,
		Demo:     1,
		Upcoming: 3,
		ByArea:   map[string]int{"nishikoyama": 3, "musashikoyama": 1},
		BySource: map[string]int{"shinagawa_kanko": 2, "love_nishikoyama": 2},
	}

	var buf bytes.Buffer
	if err := writeStats(&buf, stats, FormatText); err != nil {
		t.Fatalf("writeStats: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"4 total", "3 upcoming", "nishikoyama", "shinagawa_kanko"} {
		if !strings.Contains(out, want) {
			t.Errorf("stats output missing %q:\n%s", want, out)
		}
	}

	buf.Reset()
	if err := writeStats(&buf, stats, FormatJSON); err != nil {
		t.Fatalf("writeStats json: %v", err)
	}
	var decoded StatsResult
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("stats json invalid: %v", err)
	}
	if decoded.Total != 4 {
		t.Errorf("decoded Total = %d", decoded.Total)
	}
}
