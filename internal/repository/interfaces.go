package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/harukio/corpchat/internal/models"
)

// Every method takes a context first — all of these hit the network,
// and cancelling the inbound request must cancel the query. Stores
// return nil, nil for a missing row; callers translate that to their
// own not-found error. Chats are looked up by UUID only: the UUID is
// the external key (pre-generated by the widget), the bigserial ID
// never crosses the repository boundary upward except inside other
// repository calls.

// CorporationRepository resolves tenants.
type CorporationRepository interface {
	// GetByUUID returns a corporation, or nil, nil if absent or
	// soft-deleted.
	GetByUUID(ctx context.Context, corpUUID uuid.UUID) (*models.Corporation, error)
}

// UserRepository handles staff accounts and refresh-token rotation.
type UserRepository interface {
	Create(ctx context.Context, accountName, email, passwordHash, refreshToken string, refreshExpiresAt time.Time) (*models.User, error)
	GetByID(ctx context.Context, userID int64) (*models.User, error)
	GetByUUID(ctx context.Context, userUUID uuid.UUID) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByRefreshToken(ctx context.Context, refreshToken string) (*models.User, error)

	// RotateRefreshToken replaces the stored refresh token and marks
	// the user active. Called on sign-in and on every refresh.
	RotateRefreshToken(ctx context.Context, userID int64, refreshToken string, expiresAt time.Time) error

	// SignOut clears the refresh token and deactivates the user.
	SignOut(ctx context.Context, userID int64) error
}

// ChatRepository handles conversation rows and their list-view
// denormalization.
type ChatRepository interface {
	GetByUUID(ctx context.Context, chatUUID uuid.UUID) (*models.Chat, error)

	// CreateOrGet inserts a chat with the caller-supplied UUID, or
	// returns the existing row if that UUID already exists. The
	// insert races with itself under concurrent duplicate requests;
	// the implementation must resolve the race in the database
	// (insert-on-conflict), not with a check-then-insert.
	CreateOrGet(ctx context.Context, chatUUID uuid.UUID, corporationID int64, userID *int64) (*models.Chat, error)

	// ListSummaries returns list-view rows newest-first by each
	// chat's latest send time, older than the cursor when one is
	// set. keyword filters on corporation name; viewerID drives the
	// is_read derivation (nil viewer → always unread).
	ListSummaries(ctx context.Context, cursor int64, limit int, keyword string, viewerID *int64) ([]models.ChatSummary, error)

	// GetSummary is the single-chat variant used to build the
	// thread-list broadcast payload after a send. Returns nil, nil
	// for a chat with no messages yet.
	GetSummary(ctx context.Context, chatUUID uuid.UUID, viewerID *int64) (*models.ChatSummary, error)
}

// MessageRepository handles message persistence and cursor-paginated
// reads.
type MessageRepository interface {
	// Insert persists a message with the given send time and returns
	// it joined with its sender user (nil for guests).
	Insert(ctx context.Context, chatID int64, userID *int64, sender models.Sender, body string, sentAt time.Time) (*models.MessageWithUser, error)

	// ListByChat returns messages newest-first by send time, older
	// than the cursor when one is set.
	ListByChat(ctx context.Context, chatID int64, cursor int64, limit int) ([]models.MessageWithUser, error)
}

// ReadRepository handles read receipts.
type ReadRepository interface {
	// MarkGuestMessagesRead inserts one receipt per unreceipted
	// guest message in the chat, as a single conditional insert.
	// Idempotent; returns the number of receipts created.
	MarkGuestMessagesRead(ctx context.Context, chatID, userID int64) (int64, error)

	// HasUnreadGuestMessages reports whether any guest message in
	// the chat lacks a receipt for the user.
	HasUnreadGuestMessages(ctx context.Context, chatID, userID int64) (bool, error)
}
