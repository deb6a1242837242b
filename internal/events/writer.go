package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"villagehub/internal/domain"
)

const (
	BookingCreated       = "booking.created"
	BookingStatusChanged = "booking.status.changed"
	BookingStatusForced  = "booking.status.forced"
	BookingDeleted       = "booking.deleted"
	ReviewSubmitted      = "review.submitted"
	MessagePosted        = "message.posted"
	CustomerRegistered   = "customer.registered"
	CustomerDeleted      = "customer.deleted"
	WorkerRegistered     = "worker.registered"
	WorkerUpdated        = "worker.updated"
	WorkerDeleted        = "worker.deleted"
)

type Writer struct {
	Now func() time.Time
}

type EventPayload map[string]any

// Append records an event inside the caller's transaction so the audit log
// commits or rolls back together with the mutation it describes.
func (w Writer) Append(ctx context.Context, tx sqlx.ExecerContext, evtType, entityKind string, entityID int64, actor domain.Actor, payload EventPayload) error {
	if w.Now == nil {
		w.Now = time.Now
	}
	ts := w.Now().UTC().Format(time.RFC3339)
	if payload == nil {
		payload = EventPayload{}
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal event payload: %w", err)
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO events(ts,type,entity_kind,entity_id,actor_id,actor_role,payload_json) VALUES (?,?,?,?,?,?,?)`,
		ts, evtType, entityKind, entityID, actor.ID, string(actor.Role), string(data))
	return err
}
