package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/harukio/corpchat/internal/models"
	"github.com/harukio/corpchat/internal/pagination"
)

type MessageStore struct {
	pool *pgxpool.Pool
}

func NewMessageStore(pool *pgxpool.Pool) *MessageStore {
	return &MessageStore{pool: pool}
}

// Insert persists a message. sentAt comes from the coordinator, not
// the client — it is the ordering key and must be server-assigned.
func (s *MessageStore) Insert(ctx context.Context, chatID int64, userID *int64, sender models.Sender, body string, sentAt time.Time) (*models.MessageWithUser, error) {
	query := `
		INSERT INTO chat_messages (uuid, chat_id, user_id, sender, body, sent_at, created_at, updated_at)
		VALUES (uuid_generate_v4(), $1, $2, $3, $4, $5, now(), now())
		RETURNING id, uuid, chat_id, user_id, sender, body, sent_at, created_at, updated_at`

	var msg models.ChatMessage
	err := s.pool.QueryRow(ctx, query, chatID, userID, int(sender), body, sentAt).Scan(
		&msg.ID,
		&msg.UUID,
		&msg.ChatID,
		&msg.UserID,
		&msg.Sender,
		&msg.Body,
		&msg.SentAt,
		&msg.CreatedAt,
		&msg.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert message: %w", err)
	}

	out := &models.MessageWithUser{ChatMessage: msg}
	if msg.UserID != nil {
		// Re-fetch the sender so broadcast payloads carry the user.
		user, err := NewUserStore(s.pool).GetByID(ctx, *msg.UserID)
		if err != nil {
			return nil, err
		}
		out.User = user
	}
	return out, nil
}

func (s *MessageStore) ListByChat(ctx context.Context, chatID int64, cursor int64, limit int) ([]models.MessageWithUser, error) {
	// Cursor pagination on sent_at: cursor=0 means newest page, else
	// strictly older than the cursor second. Both paths order
	// newest-first and cap the page.
	query := `
		SELECT m.id, m.uuid, m.chat_id, m.user_id, m.sender, m.body, m.sent_at,
		       m.created_at, m.updated_at,
		       u.id, u.uuid, u.account_name, u.email, u.created_at, u.updated_at
		FROM chat_messages m
		LEFT JOIN users u ON u.id = m.user_id
		WHERE m.chat_id = $1
		  AND ($2::bigint = 0 OR m.sent_at < to_timestamp($2))
		ORDER BY m.sent_at DESC
		LIMIT $3`

	rows, err := s.pool.Query(ctx, query, chatID, cursor, pagination.ClampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	messages := make([]models.MessageWithUser, 0)
	for rows.Next() {
		var msg models.MessageWithUser
		var (
			uID          *int64
			uUUID        *uuid.UUID
			uAccountName *string
			uEmail       *string
			uCreatedAt   *time.Time
			uUpdatedAt   *time.Time
		)
		if err := rows.Scan(
			&msg.ID,
			&msg.UUID,
			&msg.ChatID,
			&msg.UserID,
			&msg.Sender,
			&msg.Body,
			&msg.SentAt,
			&msg.CreatedAt,
			&msg.UpdatedAt,
			&uID,
			&uUUID,
			&uAccountName,
			&uEmail,
			&uCreatedAt,
			&uUpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		if uID != nil {
			msg.User = &models.User{
				ID:          *uID,
				UUID:        *uUUID,
				AccountName: *uAccountName,
				Email:       *uEmail,
				CreatedAt:   *uCreatedAt,
				UpdatedAt:   *uUpdatedAt,
			}
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}

	return messages, nil
}
