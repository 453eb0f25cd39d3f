package repair

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/tkonno/koyama-events/internal/classify"
	"github.com/tkonno/koyama-events/internal/event"
	"github.com/tkonno/koyama-events/internal/storage"
)

// Change records one event whose area the classifier would move.
type Change struct {
	ID    string     `json:"id"`
	Title string     `json:"title"`
	From  event.Area `json:"from"`
	To    event.Area `json:"to"`
}

// Result summarizes a reclassification pass.
type Result struct {
	Examined int      `json:"examined"`
	Changes  []Change `json:"changes"`
	Applied  bool     `json:"applied"`
}

// Areas re-runs area classification over the stored events selected by
// filter, using the same evidence the ingestion pipeline uses. With dryRun
// it only reports what would move; otherwise it writes each change back.
// Running it twice is a no-op the second time.
func Areas(ctx context.Context, store storage.EventStore, classifier *classify.Classifier,
	filter *Filter, dryRun bool, log *slog.Logger) (*Result, error) {
	all, err := store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}

	selected := filter.Apply(all)
	result := &Result{Examined: len(selected), Applied: !dryRun}

	for _, evt := range selected {
		text := classify.CombinedText(evt.Title, evt.Location, evt.Address, evt.Source)
		want := classifier.Area(text)
		if want == evt.Area {
			continue
		}

		result.Changes = append(result.Changes, Change{
			ID:    evt.ID,
			Title: evt.Title,
			From:  evt.Area,
			To:    want,
		})

		if dryRun {
			continue
		}
		if err := store.UpdateArea(ctx, evt.ID, want); err != nil {
			return result, fmt.Errorf("update area for %s: %w", evt.ID, err)
		}
		log.Info("reclassified event area",
			"id", evt.ID, "title", evt.Title, "from", evt.Area, "to", want)
	}

	return result, nil
}
