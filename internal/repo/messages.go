package repo

import (
	"context"

	"villagehub/internal/domain"
)

const messageColumns = `message_id,booking_id,sender_id,sender_role,message_text,sent_at`

func (r Repo) InsertMessage(ctx context.Context, m domain.Message) (int64, error) {
	res, err := r.x().ExecContext(ctx, `INSERT INTO messages(booking_id,sender_id,sender_role,message_text,sent_at) VALUES (?,?,?,?,?)`,
		m.BookingID, m.SenderID, m.SenderRole, m.Text, m.Timestamp)
	if err != nil {
		return 0, classify(err)
	}
	return res.LastInsertId()
}

// ListMessages returns the booking's messages oldest first. Messages sharing
// a timestamp keep creation order.
func (r Repo) ListMessages(ctx context.Context, bookingID int64) ([]domain.Message, error) {
	return r.ListMessagesAfter(ctx, bookingID, 0)
}

// ListMessagesAfter returns messages with an id greater than afterID, in
// history order.
func (r Repo) ListMessagesAfter(ctx context.Context, bookingID, afterID int64) ([]domain.Message, error) {
	res := []domain.Message{}
	err := selectAll(ctx, r.x(), &res, `SELECT `+messageColumns+` FROM messages
		WHERE booking_id=? AND message_id>? ORDER BY sent_at ASC, message_id ASC`, bookingID, afterID)
	return res, err
}

// DeleteMessagesBySender removes every message a party sent in the given role.
func (r Repo) DeleteMessagesBySender(ctx context.Context, role domain.Role, senderID int64) (int64, error) {
	res, err := r.x().ExecContext(ctx, `DELETE FROM messages WHERE sender_role=? AND sender_id=?`, role, senderID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
