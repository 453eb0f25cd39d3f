// Package storage defines the persistence interfaces for events and push
// subscriptions, and their SQLite implementation.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/tkonno/koyama-events/internal/event"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("storage: not found")

// Timing is a subscriber's notification preference.
type Timing string

const (
	TimingImmediate Timing = "immediate"
	TimingDaily     Timing = "daily"
)

// Subscription is one push endpoint with its area interests. The ingestion
// core only reads subscriptions, except for pruning endpoints that report
// themselves permanently gone.
type Subscription struct {
	ID        string
	Endpoint  string
	KeyAuth   string
	KeyP256dh string
	Areas     []string // area ids, or the wildcard "all"
	Timing    Timing
	CreatedAt time.Time
	UpdatedAt time.Time
}

// WantsArea reports whether the subscription is interested in a, honoring
// the "all" wildcard.
func (s *Subscription) WantsArea(a event.Area) bool {
	for _, want := range s.Areas {
		if want == "all" || want == string(a) {
			return true
		}
	}
	return false
}

// EventStore is the persistent event table, keyed by event id. Upsert
// overwrites an existing id but preserves its CreatedAt.
type EventStore interface {
	Get(ctx context.Context, id string) (*event.Event, error)
	Upsert(ctx context.Context, e *event.Event) error
	// ListIDs returns the full id set, used for new-event diffing.
	ListIDs(ctx context.Context) (map[string]struct{}, error)
	// List returns all stored events, used by reporting and repair tooling.
	List(ctx context.Context) ([]event.Event, error)
	// ListByDate returns events on one YYYY-MM-DD date.
	ListByDate(ctx context.Context, date string) ([]event.Event, error)
	// UpdateArea rewrites a stored event's area, refreshing UpdatedAt.
	UpdateArea(ctx context.Context, id string, area event.Area) error
	// Delete removes one record. Maintenance tooling only; the ingestion
	// pipeline never deletes.
	Delete(ctx context.Context, id string) error
}

// SubscriptionStore is the push subscription table.
type SubscriptionStore interface {
	Save(ctx context.Context, sub *Subscription) error
	List(ctx context.Context) ([]Subscription, error)
	Delete(ctx context.Context, id string) error
}
