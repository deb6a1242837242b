package repo

import (
	"context"

	"villagehub/internal/domain"
)

const eventColumns = `id,ts,type,entity_kind,entity_id,actor_id,actor_role,payload_json`

type EventFilters struct {
	Type       string
	EntityKind string
	EntityID   int64
	// Before pages backwards: only events with a smaller id.
	Before int64
	Limit  int
}

// LatestEvents returns the newest events first.
func (r Repo) LatestEvents(ctx context.Context, f EventFilters) ([]domain.Event, error) {
	var (
		clauses []string
		args    []any
	)
	if f.Type != "" {
		clauses = append(clauses, "type=?")
		args = append(args, f.Type)
	}
	if f.EntityKind != "" {
		clauses = append(clauses, "entity_kind=?")
		args = append(args, f.EntityKind)
	}
	if f.EntityID > 0 {
		clauses = append(clauses, "entity_id=?")
		args = append(args, f.EntityID)
	}
	if f.Before > 0 {
		clauses = append(clauses, "id<?")
		args = append(args, f.Before)
	}
	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}
	args = append(args, limit)
	res := []domain.Event{}
	err := selectAll(ctx, r.x(), &res, `SELECT `+eventColumns+` FROM events `+where(clauses)+` ORDER BY id DESC LIMIT ?`, args...)
	return res, err
}

// EventsAfter returns events with IDs greater than the cursor in ascending order.
func (r Repo) EventsAfter(ctx context.Context, cursor int64, limit int) ([]domain.Event, error) {
	if limit <= 0 {
		limit = 100
	}
	res := []domain.Event{}
	err := selectAll(ctx, r.x(), &res, `SELECT `+eventColumns+` FROM events WHERE id>? ORDER BY id ASC LIMIT ?`, cursor, limit)
	return res, err
}

// LatestEventID returns the most recent event ID, or 0 for an empty log.
func (r Repo) LatestEventID(ctx context.Context) (int64, error) {
	var id int64
	err := getOne(ctx, r.x(), &id, `SELECT COALESCE(MAX(id),0) FROM events`)
	return id, err
}
