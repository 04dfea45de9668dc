package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/harukio/corpchat/internal/models"
	"github.com/harukio/corpchat/internal/pagination"
)

type ChatStore struct {
	pool *pgxpool.Pool
}

func NewChatStore(pool *pgxpool.Pool) *ChatStore {
	return &ChatStore{pool: pool}
}

func (s *ChatStore) GetByUUID(ctx context.Context, chatUUID uuid.UUID) (*models.Chat, error) {
	query := `
		SELECT id, uuid, corporation_id, user_id, created_at, updated_at
		FROM chats
		WHERE uuid = $1`

	var c models.Chat
	err := s.pool.QueryRow(ctx, query, chatUUID).Scan(
		&c.ID,
		&c.UUID,
		&c.CorporationID,
		&c.UserID,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get chat: %w", err)
	}
	return &c, nil
}

// CreateOrGet inserts the chat row, tolerating a concurrent duplicate
// insert for the same UUID. ON CONFLICT DO NOTHING closes the race in
// the database: exactly one row wins, every caller sees it on the
// follow-up select.
func (s *ChatStore) CreateOrGet(ctx context.Context, chatUUID uuid.UUID, corporationID int64, userID *int64) (*models.Chat, error) {
	insert := `
		INSERT INTO chats (uuid, corporation_id, user_id, created_at, updated_at)
		VALUES ($1, $2, $3, now(), now())
		ON CONFLICT (uuid) DO NOTHING`

	if _, err := s.pool.Exec(ctx, insert, chatUUID, corporationID, userID); err != nil {
		return nil, fmt.Errorf("insert chat: %w", err)
	}

	chat, err := s.GetByUUID(ctx, chatUUID)
	if err != nil {
		return nil, err
	}
	if chat == nil {
		// Only possible if the row vanished between insert and select.
		return nil, fmt.Errorf("chat %s not found after insert", chatUUID)
	}
	return chat, nil
}

// isReadExpr derives the list-view unread flag in SQL: a chat is read
// for the viewer iff no guest message lacks a receipt. NULL viewer
// short-circuits to false before the NOT EXISTS runs.
const isReadExpr = `
	$%d::bigint IS NOT NULL AND NOT EXISTS (
		SELECT 1 FROM chat_messages gm
		WHERE gm.chat_id = c.id
		  AND gm.sender = 1
		  AND NOT EXISTS (
			SELECT 1 FROM chat_reads r
			WHERE r.message_id = gm.id AND r.user_id = $%d::bigint
		  )
	)`

func (s *ChatStore) ListSummaries(ctx context.Context, cursor int64, limit int, keyword string, viewerID *int64) ([]models.ChatSummary, error) {
	// Each chat's ordering key is its latest message's send time; a
	// lateral join pulls the latest message in the same pass. Chats
	// with no messages have no ordering key and are invisible until
	// their first message arrives, matching the inner join here.
	query := fmt.Sprintf(`
		SELECT c.uuid, c.user_id, u.account_name, co.uuid, co.name,
		       m.body, m.sent_at, `+isReadExpr+`
		FROM chats c
		JOIN corporations co ON co.id = c.corporation_id
		LEFT JOIN users u ON u.id = c.user_id
		JOIN LATERAL (
			SELECT body, sent_at FROM chat_messages
			WHERE chat_id = c.id
			ORDER BY sent_at DESC
			LIMIT 1
		) m ON true
		WHERE ($1::bigint = 0 OR m.sent_at < to_timestamp($1))
		  AND ($2::text = '' OR co.name ILIKE '%%' || $2 || '%%')
		ORDER BY m.sent_at DESC
		LIMIT $3`, 4, 4)

	rows, err := s.pool.Query(ctx, query, cursor, keyword, pagination.ClampLimit(limit), viewerID)
	if err != nil {
		return nil, fmt.Errorf("list chat summaries: %w", err)
	}
	defer rows.Close()

	summaries := make([]models.ChatSummary, 0)
	for rows.Next() {
		var sum models.ChatSummary
		if err := rows.Scan(
			&sum.ChatUUID,
			&sum.UserID,
			&sum.UserName,
			&sum.CorporationUUID,
			&sum.CorporationName,
			&sum.LatestMessage,
			&sum.LatestSentAt,
			&sum.IsRead,
		); err != nil {
			return nil, fmt.Errorf("scan chat summary: %w", err)
		}
		summaries = append(summaries, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chat summaries: %w", err)
	}

	return summaries, nil
}

func (s *ChatStore) GetSummary(ctx context.Context, chatUUID uuid.UUID, viewerID *int64) (*models.ChatSummary, error) {
	query := fmt.Sprintf(`
		SELECT c.uuid, c.user_id, u.account_name, co.uuid, co.name,
		       m.body, m.sent_at, `+isReadExpr+`
		FROM chats c
		JOIN corporations co ON co.id = c.corporation_id
		LEFT JOIN users u ON u.id = c.user_id
		JOIN LATERAL (
			SELECT body, sent_at FROM chat_messages
			WHERE chat_id = c.id
			ORDER BY sent_at DESC
			LIMIT 1
		) m ON true
		WHERE c.uuid = $1`, 2, 2)

	var sum models.ChatSummary
	err := s.pool.QueryRow(ctx, query, chatUUID, viewerID).Scan(
		&sum.ChatUUID,
		&sum.UserID,
		&sum.UserName,
		&sum.CorporationUUID,
		&sum.CorporationName,
		&sum.LatestMessage,
		&sum.LatestSentAt,
		&sum.IsRead,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get chat summary: %w", err)
	}
	return &sum, nil
}
