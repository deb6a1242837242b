package engine

import (
	"context"
	"errors"
	"strings"

	"github.com/jmoiron/sqlx"

	"villagehub/internal/apperr"
	"villagehub/internal/domain"
	"villagehub/internal/events"
	"villagehub/internal/repo"
)

// PostMessage appends to a booking's conversation. The sender must be the
// booking's party for the role it claims.
func (e Engine) PostMessage(ctx context.Context, bookingID, senderID int64, senderRole domain.Role, text string) (domain.Message, error) {
	var m domain.Message
	err := e.inTx(ctx, func(tx *sqlx.Tx, r repo.Repo) error {
		b, err := r.GetBooking(ctx, bookingID)
		if err != nil {
			return bookingLoadErr(err, bookingID)
		}
		if strings.TrimSpace(text) == "" {
			return apperr.Validation("message text is required")
		}
		switch senderRole {
		case domain.RoleCustomer:
			if !b.IsCustomer(senderID) {
				return apperr.Authorization("customer %d is not a participant of booking %d", senderID, bookingID)
			}
		case domain.RoleWorker:
			if !b.IsWorker(senderID) {
				return apperr.Authorization("worker %d is not a participant of booking %d", senderID, bookingID)
			}
		default:
			return apperr.Authorization("role %q cannot post booking messages", senderRole)
		}
		m = domain.Message{
			BookingID:  bookingID,
			SenderID:   senderID,
			SenderRole: senderRole,
			Text:       text,
			Timestamp:  e.stamp(),
		}
		m.ID, err = r.InsertMessage(ctx, m)
		if err != nil {
			if errors.Is(err, repo.ErrForeignKey) {
				return apperr.NotFound("booking %d not found", bookingID)
			}
			return apperr.Storage(err, "insert message")
		}
		return e.appendEvent(ctx, tx, events.MessagePosted, "booking", bookingID,
			domain.Actor{ID: senderID, Role: senderRole}, events.EventPayload{"message_id": m.ID})
	})
	if err != nil {
		return domain.Message{}, err
	}
	e.log().Debug("message posted", "booking_id", bookingID, "message_id", m.ID, "sender_role", senderRole)
	return m, nil
}

// MessageHistory returns the whole conversation oldest first.
func (e Engine) MessageHistory(ctx context.Context, bookingID int64) ([]domain.Message, error) {
	return e.MessagesAfter(ctx, bookingID, 0)
}

// MessagesAfter returns only messages newer than afterID so pollers can ask
// for the tail of a conversation.
func (e Engine) MessagesAfter(ctx context.Context, bookingID, afterID int64) ([]domain.Message, error) {
	if _, err := e.Repo.GetBooking(ctx, bookingID); err != nil {
		return nil, bookingLoadErr(err, bookingID)
	}
	res, err := e.Repo.ListMessagesAfter(ctx, bookingID, afterID)
	if err != nil {
		return nil, apperr.Storage(err, "list messages for booking %d", bookingID)
	}
	return res, nil
}
