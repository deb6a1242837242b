package notify

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"villagehub/internal/config"
	"villagehub/internal/domain"
	"villagehub/internal/repo"
)

const (
	defaultDispatchInterval = 2 * time.Second
	defaultDispatchBatch    = 100
)

// Sink receives audit events. Deliver must be safe to retry: a failed
// delivery is attempted again on the next cycle.
type Sink interface {
	Name() string
	Deliver(ctx context.Context, evt Envelope) error
}

// Envelope is the wire form of an audit event.
type Envelope struct {
	ID         int64           `json:"id"`
	Type       string          `json:"type"`
	EntityKind string          `json:"entity_kind"`
	EntityID   int64           `json:"entity_id"`
	ActorID    int64           `json:"actor_id"`
	ActorRole  string          `json:"actor_role,omitempty"`
	TS         string          `json:"ts"`
	Payload    json.RawMessage `json:"payload"`
	PayloadRaw string          `json:"payload_raw,omitempty"`
}

func envelope(evt domain.Event) Envelope {
	env := Envelope{
		ID:         evt.ID,
		Type:       evt.Type,
		EntityKind: evt.EntityKind,
		EntityID:   evt.EntityID,
		ActorID:    evt.ActorID,
		ActorRole:  evt.ActorRole,
		TS:         evt.TS,
		Payload:    json.RawMessage("{}"),
	}
	if evt.Payload != "" {
		if json.Valid([]byte(evt.Payload)) {
			env.Payload = json.RawMessage(evt.Payload)
		} else {
			env.PayloadRaw = evt.Payload
		}
	}
	return env
}

type route struct {
	sink    Sink
	filter  eventFilter
	cursor  int64
	started bool
}

// Dispatcher tails the events table and fans events out to sinks, keeping one
// cursor per sink so a failing sink does not hold the others back.
type Dispatcher struct {
	Repo     repo.Repo
	Interval time.Duration
	Batch    int
	// FromStart replays the whole log instead of starting at the newest event.
	FromStart bool
	Log       *slog.Logger

	mu     sync.Mutex
	routes []*route
}

// NewDispatcher builds a dispatcher with the sinks configured in cfg. Close
// releases sink resources such as the AMQP connection.
func NewDispatcher(r repo.Repo, cfg *config.Config, log *slog.Logger) (*Dispatcher, error) {
	d := &Dispatcher{Repo: r, Log: log}
	if cfg == nil {
		return d, nil
	}
	d.Interval = cfg.Dispatch.Interval
	d.Batch = cfg.Dispatch.BatchSize
	for _, hook := range cfg.Webhooks {
		d.Add(NewWebhookSink(hook), hook.Events)
	}
	if cfg.AMQP.URL != "" {
		sink, err := NewAMQPSink(cfg.AMQP.URL, cfg.AMQP.Exchange)
		if err != nil {
			return nil, err
		}
		d.Add(sink, cfg.AMQP.Events)
	}
	return d, nil
}

func (d *Dispatcher) log() *slog.Logger {
	if d.Log != nil {
		return d.Log
	}
	return slog.Default()
}

// Add registers a sink for the given event types (all when empty).
func (d *Dispatcher) Add(s Sink, events []string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.routes = append(d.routes, &route{sink: s, filter: newEventFilter(events)})
}

func (d *Dispatcher) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.routes)
}

// DispatchOnce delivers one batch per sink. It returns the number of events
// delivered across all sinks.
func (d *Dispatcher) DispatchOnce(ctx context.Context) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delivered := 0
	for _, rt := range d.routes {
		if !rt.started {
			if !d.FromStart {
				cur, err := d.Repo.LatestEventID(ctx)
				if err != nil {
					return delivered, err
				}
				rt.cursor = cur
			}
			rt.started = true
		}
		n, err := d.dispatchRoute(ctx, rt)
		delivered += n
		if err != nil {
			d.log().Warn("event delivery failed", "sink", rt.sink.Name(), "cursor", rt.cursor, "err", err)
		}
	}
	return delivered, nil
}

func (d *Dispatcher) dispatchRoute(ctx context.Context, rt *route) (int, error) {
	batch := d.Batch
	if batch <= 0 {
		batch = defaultDispatchBatch
	}
	evts, err := d.Repo.EventsAfter(ctx, rt.cursor, batch)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, evt := range evts {
		if !rt.filter.match(evt.Type) {
			rt.cursor = evt.ID
			continue
		}
		if err := rt.sink.Deliver(ctx, envelope(evt)); err != nil {
			return n, err
		}
		rt.cursor = evt.ID
		n++
	}
	return n, nil
}

// Run dispatches until ctx is done.
func (d *Dispatcher) Run(ctx context.Context) error {
	interval := d.Interval
	if interval <= 0 {
		interval = defaultDispatchInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if _, err := d.DispatchOnce(ctx); err != nil {
			d.log().Warn("dispatch cycle failed", "err", err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Close closes every sink that holds resources.
func (d *Dispatcher) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	var first error
	for _, rt := range d.routes {
		if c, ok := rt.sink.(interface{ Close() error }); ok {
			if err := c.Close(); err != nil && first == nil {
				first = err
			}
		}
	}
	return first
}
