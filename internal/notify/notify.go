// Package notify fans out push notifications for newly discovered events.
// Dispatch is attempted independently per subscription; an endpoint that
// reports itself permanently gone is pruned, any other delivery failure is
// logged and otherwise ignored. Retries are the transport's concern, not
// ours.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/tkonno/koyama-events/internal/event"
	"github.com/tkonno/koyama-events/internal/storage"
)

// ErrGone signals that the endpoint rejected delivery permanently and the
// subscription should be removed.
var ErrGone = errors.New("notify: subscription gone")

// Payload is the small structured message handed to the transport.
type Payload struct {
	Kind    string     `json:"kind"` // new_event or daily_summary
	Title   string     `json:"title"`
	Body    string     `json:"body"`
	Area    event.Area `json:"area,omitempty"`
	EventID string     `json:"event_id,omitempty"`
}

// Transport delivers one payload to one subscriber endpoint.
type Transport interface {
	Send(ctx context.Context, sub storage.Subscription, p Payload) error
}

// Result aggregates delivery outcomes for observability.
type Result struct {
	Sent   int `json:"sent"`
	Failed int `json:"failed"`
	Pruned int `json:"pruned"`
}

func (r Result) add(other Result) Result {
	r.Sent += other.Sent
	r.Failed += other.Failed
	r.Pruned += other.Pruned
	return r
}

// Fanout selects interested subscribers and dispatches notifications.
type Fanout struct {
	subs      storage.SubscriptionStore
	transport Transport
	log       *slog.Logger
}

// NewFanout creates a Fanout.
func NewFanout(subs storage.SubscriptionStore, transport Transport, log *slog.Logger) *Fanout {
	return &Fanout{subs: subs, transport: transport, log: log}
}

// NotifyNew sends one notification per (new event, interested immediate
// subscriber) pair. Subscribers with a daily preference are left to the
// digest path.
func (f *Fanout) NotifyNew(ctx context.Context, events []*event.Event) (Result, error) {
	if len(events) == 0 {
		return Result{}, nil
	}

	subs, err := f.subs.List(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("list subscriptions: %w", err)
	}

	var total Result
	for _, e := range events {
		p := Payload{
			Kind:    "new_event",
			Title:   "新着イベント: " + e.Title,
			Body:    fmt.Sprintf("%s @ %s", e.Date, e.Location),
			Area:    e.Area,
			EventID: e.ID,
		}

		var matched []storage.Subscription
		for _, sub := range subs {
			if sub.Timing == storage.TimingImmediate && sub.WantsArea(e.Area) {
				matched = append(matched, sub)
			}
		}

		r := f.dispatch(ctx, matched, p)
		f.log.Info("event notifications sent",
			"event_id", e.ID, "title", e.Title,
			"sent", r.Sent, "failed", r.Failed, "pruned", r.Pruned)
		total = total.add(r)
	}

	return total, nil
}

// DailyDigest sends one aggregate payload for the day's events to every
// daily subscriber, regardless of area interest.
func (f *Fanout) DailyDigest(ctx context.Context, events []event.Event) (Result, error) {
	if len(events) == 0 {
		return Result{}, nil
	}

	subs, err := f.subs.List(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("list subscriptions: %w", err)
	}

	var matched []storage.Subscription
	for _, sub := range subs {
		if sub.Timing == storage.TimingDaily {
			matched = append(matched, sub)
		}
	}

	p := Payload{
		Kind:  "daily_summary",
		Title: "本日のイベント情報",
		Body:  fmt.Sprintf("本日は%d件のイベントがあります", len(events)),
	}

	r := f.dispatch(ctx, matched, p)
	f.log.Info("daily digest sent",
		"events", len(events), "sent", r.Sent, "failed", r.Failed, "pruned", r.Pruned)
	return r, nil
}

func (f *Fanout) dispatch(ctx context.Context, subs []storage.Subscription, p Payload) Result {
	var r Result
	for _, sub := range subs {
		err := f.transport.Send(ctx, sub, p)
		switch {
		case err == nil:
			r.Sent++
		case errors.Is(err, ErrGone):
			r.Failed++
			if delErr := f.subs.Delete(ctx, sub.ID); delErr != nil {
				f.log.Error("prune subscription", "id", sub.ID, "error", delErr)
			} else {
				r.Pruned++
				f.log.Info("pruned gone subscription", "id", sub.ID)
			}
		default:
			r.Failed++
			f.log.Warn("delivery failed", "id", sub.ID, "error", err)
		}
	}
	return r
}
