package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver registration.

	"github.com/tkonno/koyama-events/internal/event"
	"github.com/tkonno/koyama-events/migrations"
)

const timeLayout = "2006-01-02T15:04:05Z"

// SQLite owns the database handle and hands out the two table stores.
type SQLite struct {
	db     *sql.DB
	events *EventTable
	subs   *SubscriptionTable
}

// EventTable implements EventStore on the events table.
type EventTable struct {
	db *sql.DB
}

// SubscriptionTable implements SubscriptionStore on the subscriptions table.
type SubscriptionTable struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at dsn and runs pending migrations.
func NewSQLite(dsn string) (*SQLite, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	if err := migrations.Run(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLite{
		db:     db,
		events: &EventTable{db: db},
		subs:   &SubscriptionTable{db: db},
	}, nil
}

// Events returns the event store.
func (s *SQLite) Events() *EventTable {
	return s.events
}

// Subscriptions returns the subscription store.
func (s *SQLite) Subscriptions() *SubscriptionTable {
	return s.subs
}

// Close closes the underlying database connection.
func (s *SQLite) Close() error {
	return s.db.Close()
}

const eventColumns = `id, title, date, time, location, address, description,
	category, area, source, source_url, image_url, is_demo, created_at, updated_at`

// Get returns a single event by id, or ErrNotFound.
func (t *EventTable) Get(ctx context.Context, id string) (*event.Event, error) {
	row := t.db.QueryRowContext(ctx,
		`SELECT `+eventColumns+` FROM events WHERE id = ?`, id)
	e, err := scanEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return e, nil
}

// Upsert writes an event. An existing id is overwritten field by field while
// its created_at is preserved; updated_at always reflects this write.
func (t *EventTable) Upsert(ctx context.Context, e *event.Event) error {
	now := time.Now().UTC().Format(timeLayout)
	createdAt := now
	if !e.CreatedAt.IsZero() {
		createdAt = e.CreatedAt.UTC().Format(timeLayout)
	}

	_, err := t.db.ExecContext(ctx,
		`INSERT INTO events (`+eventColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			date = excluded.date,
			time = excluded.time,
			location = excluded.location,
			address = excluded.address,
			description = excluded.description,
			category = excluded.category,
			area = excluded.area,
			source = excluded.source,
			source_url = excluded.source_url,
			image_url = excluded.image_url,
			is_demo = excluded.is_demo,
			updated_at = excluded.updated_at`,
		e.ID, e.Title, e.Date, e.Time, e.Location, e.Address, e.Description,
		joinCategories(e.Category), string(e.Area), e.Source, e.SourceURL,
		e.ImageURL, boolToInt(e.IsDemo), createdAt, now,
	)
	if err != nil {
		return fmt.Errorf("upsert event: %w", err)
	}
	return nil
}

// ListIDs returns the id set of every stored event.
func (t *EventTable) ListIDs(ctx context.Context) (map[string]struct{}, error) {
	rows, err := t.db.QueryContext(ctx, `SELECT id FROM events`)
	if err != nil {
		return nil, fmt.Errorf("query ids: %w", err)
	}
	defer func() { _ = rows.Close() }()

	ids := make(map[string]struct{})
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan id: %w", err)
		}
		ids[id] = struct{}{}
	}
	return ids, rows.Err()
}

// List returns all stored events ordered by date.
func (t *EventTable) List(ctx context.Context) ([]event.Event, error) {
	rows, err := t.db.QueryContext(ctx,
		`SELECT `+eventColumns+` FROM events ORDER BY date, id`)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer func() { _ = rows.Close() }()
	return scanEvents(rows)
}

// ListByDate returns events on one date ordered by id.
func (t *EventTable) ListByDate(ctx context.Context, date string) ([]event.Event, error) {
	rows, err := t.db.QueryContext(ctx,
		`SELECT `+eventColumns+` FROM events WHERE date = ? ORDER BY id`, date)
	if err != nil {
		return nil, fmt.Errorf("query events by date: %w", err)
	}
	defer func() { _ = rows.Close() }()
	return scanEvents(rows)
}

// UpdateArea rewrites the stored area of one event.
func (t *EventTable) UpdateArea(ctx context.Context, id string, area event.Area) error {
	res, err := t.db.ExecContext(ctx,
		`UPDATE events SET area = ?, updated_at = ? WHERE id = ?`,
		string(area), time.Now().UTC().Format(timeLayout), id)
	if err != nil {
		return fmt.Errorf("update area: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes one event.
func (t *EventTable) Delete(ctx context.Context, id string) error {
	_, err := t.db.ExecContext(ctx, `DELETE FROM events WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete event: %w", err)
	}
	return nil
}

// Save inserts or replaces a subscription, keeping its created_at on update.
func (t *SubscriptionTable) Save(ctx context.Context, sub *Subscription) error {
	now := time.Now().UTC().Format(timeLayout)
	createdAt := now
	if !sub.CreatedAt.IsZero() {
		createdAt = sub.CreatedAt.UTC().Format(timeLayout)
	}

	_, err := t.db.ExecContext(ctx,
		`INSERT INTO subscriptions (id, endpoint, key_auth, key_p256dh, areas, timing, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			endpoint = excluded.endpoint,
			key_auth = excluded.key_auth,
			key_p256dh = excluded.key_p256dh,
			areas = excluded.areas,
			timing = excluded.timing,
			updated_at = excluded.updated_at`,
		sub.ID, sub.Endpoint, sub.KeyAuth, sub.KeyP256dh,
		strings.Join(sub.Areas, ","), string(sub.Timing), createdAt, now,
	)
	if err != nil {
		return fmt.Errorf("save subscription: %w", err)
	}
	return nil
}

// List returns all subscriptions.
func (t *SubscriptionTable) List(ctx context.Context) ([]Subscription, error) {
	rows, err := t.db.QueryContext(ctx,
		`SELECT id, endpoint, key_auth, key_p256dh, areas, timing, created_at, updated_at
		 FROM subscriptions ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query subscriptions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var subs []Subscription
	for rows.Next() {
		var sub Subscription
		var areas, timing, created, updated string
		if err := rows.Scan(&sub.ID, &sub.Endpoint, &sub.KeyAuth, &sub.KeyP256dh,
			&areas, &timing, &created, &updated); err != nil {
			return nil, fmt.Errorf("scan subscription: %w", err)
		}
		if areas != "" {
			sub.Areas = strings.Split(areas, ",")
		}
		sub.Timing = Timing(timing)
		sub.CreatedAt, _ = time.Parse(timeLayout, created)
		sub.UpdatedAt, _ = time.Parse(timeLayout, updated)
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

// Delete removes one subscription.
func (t *SubscriptionTable) Delete(ctx context.Context, id string) error {
	_, err := t.db.ExecContext(ctx, `DELETE FROM subscriptions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete subscription: %w", err)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanEvent(row scannable) (*event.Event, error) {
	var e event.Event
	var category, area, created, updated string
	var isDemo int
	err := row.Scan(&e.ID, &e.Title, &e.Date, &e.Time, &e.Location, &e.Address,
		&e.Description, &category, &area, &e.Source, &e.SourceURL, &e.ImageURL,
		&isDemo, &created, &updated)
	if err != nil {
		return nil, err
	}
	e.Category = splitCategories(category)
	e.Area = event.Area(area)
	e.IsDemo = isDemo == 1
	e.CreatedAt, _ = time.Parse(timeLayout, created)
	e.UpdatedAt, _ = time.Parse(timeLayout, updated)
	return &e, nil
}

func scanEvents(rows *sql.Rows) ([]event.Event, error) {
	var events []event.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, *e)
	}
	return events, rows.Err()
}

func joinCategories(cats []event.Category) string {
	parts := make([]string, len(cats))
	for i, c := range cats {
		parts[i] = string(c)
	}
	return strings.Join(parts, ",")
}

func splitCategories(s string) []event.Category {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	cats := make([]event.Category, len(parts))
	for i, p := range parts {
		cats[i] = event.Category(p)
	}
	return cats
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
