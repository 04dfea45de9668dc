package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

type ReadStore struct {
	pool *pgxpool.Pool
}

func NewReadStore(pool *pgxpool.Pool) *ReadStore {
	return &ReadStore{pool: pool}
}

// MarkGuestMessagesRead inserts receipts for every guest message in
// the chat that the user has not receipted yet, in one statement.
// The NOT EXISTS filter plus the unique constraint (with ON CONFLICT
// as a belt for concurrent callers) make the operation idempotent —
// there is no read-check-then-insert window in application code.
func (s *ReadStore) MarkGuestMessagesRead(ctx context.Context, chatID, userID int64) (int64, error) {
	query := `
		INSERT INTO chat_reads (message_id, user_id, created_at)
		SELECT m.id, $2, now()
		FROM chat_messages m
		WHERE m.chat_id = $1
		  AND m.sender = 1
		  AND NOT EXISTS (
			SELECT 1 FROM chat_reads r
			WHERE r.message_id = m.id AND r.user_id = $2
		  )
		ON CONFLICT (message_id, user_id) DO NOTHING`

	tag, err := s.pool.Exec(ctx, query, chatID, userID)
	if err != nil {
		return 0, fmt.Errorf("mark guest messages read: %w", err)
	}
	return tag.RowsAffected(), nil
}

// HasUnreadGuestMessages is the short-circuit read check backing the
// list-view unread flag: EXISTS stops at the first unreceipted guest
// message.
func (s *ReadStore) HasUnreadGuestMessages(ctx context.Context, chatID, userID int64) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM chat_messages m
			WHERE m.chat_id = $1
			  AND m.sender = 1
			  AND NOT EXISTS (
				SELECT 1 FROM chat_reads r
				WHERE r.message_id = m.id AND r.user_id = $2
			  )
		)`

	var unread bool
	if err := s.pool.QueryRow(ctx, query, chatID, userID).Scan(&unread); err != nil {
		return false, fmt.Errorf("check unread guest messages: %w", err)
	}
	return unread, nil
}
