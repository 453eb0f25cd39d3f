package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"github.com/tkonno/koyama-events/internal/event"
	"github.com/tkonno/koyama-events/internal/pipeline"
)

// OutputFormat specifies the output format
type OutputFormat string

const (
	FormatText OutputFormat = "text"
	FormatJSON OutputFormat = "json"
)

func parseFormat(s string) (OutputFormat, error) {
	switch OutputFormat(s) {
	case FormatText, FormatJSON:
		return OutputFormat(s), nil
	default:
		return "", fmt.Errorf("invalid format: %s (must be 'text' or 'json')", s)
	}
}

func writeJSON(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

// writeRunReport renders a pipeline report, grouping new events by area.
func writeRunReport(w io.Writer, report *pipeline.Report, format OutputFormat, verbose bool) error {
	if format == FormatJSON {
		return writeJSON(w, report)
	}

	if len(report.NewEvents) == 0 {
		fmt.Fprintln(w, "No new events found.")
	} else {
		byArea := make(map[event.Area][]*event.Event)
		for _, evt := range report.NewEvents {
			byArea[evt.Area] = append(byArea[evt.Area], evt)
		}

		for _, area := range event.Areas() {
			events := byArea[area]
			if len(events) == 0 {
				continue
			}
			fmt.Fprintf(w, "\n%s (%d new):\n", area, len(events))
			for _, evt := range events {
				fmt.Fprintf(w, "  NEW: %s %s %s\n", evt.Date, evt.Time, evt.Title)
				if verbose {
					fmt.Fprintf(w, "       ID: %s\n", evt.ID)
					fmt.Fprintf(w, "       Location: %s\n", evt.Location)
					fmt.Fprintf(w, "       Source: %s (%s)\n", evt.Source, evt.SourceURL)
				}
			}
		}
		fmt.Fprintf(w, "\nTotal: %d new events\n", len(report.NewEvents))
	}

	if verbose {
		sources := make([]string, 0, len(report.BySource))
		for s := range report.BySource {
			sources = append(sources, s)
		}
		sort.Strings(sources)
		for _, s := range sources {
			fmt.Fprintf(w, "source %s: %d collected\n", s, report.BySource[s])
		}
		fmt.Fprintf(w, "collected=%d normalized=%d deduped=%d upcoming=%d persisted=%d failed=%d\n",
			report.Collected, report.Normalized, report.Deduped,
			report.Upcoming, report.Persisted, report.Failed)
	}

	return nil
}

// StatsResult is the aggregate view of the stored event table.
type StatsResult struct {
	Total      int            `json:"total"`
	Demo       int            `json:"demo"`
	ByArea     map[string]int `json:"by_area"`
	BySource   map[string]int `json:"by_source"`
	ByCategory map[string]int `json:"by_category"`
	Upcoming   int            `json:"upcoming"`
}

func writeStats(w io.Writer, stats *StatsResult, format OutputFormat) error {
	if format == FormatJSON {
		return writeJSON(w, stats)
	}

	fmt.Fprintf(w, "Events: %d total, %d upcoming, %d demo\n", stats.Total, stats.Upcoming, stats.Demo)

	writeCounts := func(label string, counts map[string]int) {
		if len(counts) == 0 {
			return
		}
		keys := make([]string, 0, len(counts))
		for k := range counts {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		fmt.Fprintf(w, "\n%s:\n", label)
		for _, k := range keys {
			fmt.Fprintf(w, "  %-20s %d\n", k, counts[k])
		}
	}

	writeCounts("By area", stats.ByArea)
	writeCounts("By source", stats.BySource)
	writeCounts("By category", stats.ByCategory)
	return nil
}
