// Package notify turns the core's idempotent reads into change notifications.
// The core never pushes; everything here polls.
package notify

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"villagehub/internal/domain"
)

const DefaultPollInterval = 5 * time.Second

// Source is the read side a Watcher polls. engine.Engine satisfies it.
type Source interface {
	ListBookingsFor(ctx context.Context, actor domain.Actor) ([]domain.BookingSummary, error)
	MessagesAfter(ctx context.Context, bookingID, afterID int64) ([]domain.Message, error)
}

// StatusChange reports a booking that is new to the watcher (From is empty)
// or whose status differs from the previous poll.
type StatusChange struct {
	Booking domain.BookingSummary `json:"booking"`
	From    domain.Status         `json:"from,omitempty"`
	To      domain.Status         `json:"to"`
}

type Update struct {
	StatusChanges []StatusChange   `json:"status_changes,omitempty"`
	Messages      []domain.Message `json:"messages,omitempty"`
}

func (u Update) Empty() bool {
	return len(u.StatusChanges) == 0 && len(u.Messages) == 0
}

// Watcher diffs successive polls for one actor. The first Poll only records
// a baseline. A Watcher is not safe for concurrent use.
type Watcher struct {
	Source   Source
	Actor    domain.Actor
	Interval time.Duration
	Handler  func(Update)
	Log      *slog.Logger

	primed   bool
	statuses map[int64]domain.Status
	lastMsg  map[int64]int64
}

func (w *Watcher) log() *slog.Logger {
	if w.Log != nil {
		return w.Log
	}
	return slog.Default()
}

// Poll runs one cycle and returns what changed since the previous one. State
// is only replaced when the whole cycle succeeds, so a failed Poll leaves the
// next one to report everything since the last good cycle. Bookings missing
// from the listing are forgotten.
func (w *Watcher) Poll(ctx context.Context) (Update, error) {
	bookings, err := w.Source.ListBookingsFor(ctx, w.Actor)
	if err != nil {
		return Update{}, err
	}
	statuses := make(map[int64]domain.Status, len(bookings))
	lastMsg := make(map[int64]int64, len(bookings))
	var upd Update
	// Oldest first so handlers see changes in creation order.
	sort.Slice(bookings, func(i, j int) bool { return bookings[i].ID < bookings[j].ID })
	for _, b := range bookings {
		prev, seen := w.statuses[b.ID]
		if w.primed && (!seen || prev != b.Status) {
			upd.StatusChanges = append(upd.StatusChanges, StatusChange{Booking: b, From: prev, To: b.Status})
		}
		statuses[b.ID] = b.Status

		cursor := w.lastMsg[b.ID]
		msgs, err := w.Source.MessagesAfter(ctx, b.ID, cursor)
		if err != nil {
			return Update{}, err
		}
		for _, m := range msgs {
			if m.ID > cursor {
				cursor = m.ID
			}
			if !w.primed || (m.SenderID == w.Actor.ID && m.SenderRole == w.Actor.Role) {
				continue
			}
			upd.Messages = append(upd.Messages, m)
		}
		lastMsg[b.ID] = cursor
	}
	w.statuses, w.lastMsg, w.primed = statuses, lastMsg, true
	return upd, nil
}

// Tracked reports how many bookings the watcher currently holds state for.
func (w *Watcher) Tracked() int {
	return len(w.statuses)
}

// Run polls until ctx is done, handing non-empty updates to Handler. Poll
// errors are logged and the loop keeps going.
func (w *Watcher) Run(ctx context.Context) error {
	interval := w.Interval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		upd, err := w.Poll(ctx)
		if err != nil {
			w.log().Warn("poll failed", "actor_id", w.Actor.ID, "role", w.Actor.Role, "err", err)
		} else if !upd.Empty() && w.Handler != nil {
			w.Handler(upd)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
