package models

import (
	"time"

	"github.com/google/uuid"
)

// Sender identifies who authored a chat message.
//
// The widget visitor is a "guest" — anonymous, no user row. Staff are
// registered users answering on behalf of a corporation. The numeric
// values are part of the wire format (clients switch on them), so they
// must not be renumbered.
type Sender int

const (
	SenderGuest Sender = 1
	SenderStaff Sender = 2
)

// Corporation is the tenant entity. Every chat belongs to exactly one
// corporation. The internal bigserial ID never leaves the process;
// clients only ever see the UUID.
type Corporation struct {
	ID        int64      `json:"-"`
	UUID      uuid.UUID  `json:"uuid"`
	Name      string     `json:"name"`
	DeletedAt *time.Time `json:"-"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// User is a registered staff member.
//
// RefreshToken / RefreshExpiresAt implement rotating refresh tokens:
// each sign-in or refresh replaces the stored token, so a stolen old
// token stops working at the next rotation. PasswordHash is bcrypt and
// never serialized.
type User struct {
	ID               int64      `json:"-"`
	UUID             uuid.UUID  `json:"uuid"`
	AccountName      string     `json:"account_name"`
	Email            string     `json:"email"`
	PasswordHash     string     `json:"-"`
	IsActive         bool       `json:"-"`
	RefreshToken     string     `json:"-"`
	RefreshExpiresAt *time.Time `json:"-"`
	DeletedAt        *time.Time `json:"-"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// Chat is one conversation between a corporation and at most one
// registered user. Guest-only conversations have a nil UserID.
//
// The UUID is generated by the embeddable widget BEFORE the row
// exists: the iframe mints a chat UUID when it loads, and the row is
// only created when the first message arrives. The UUID is therefore
// the stable external key and is never regenerated server-side.
type Chat struct {
	ID            int64     `json:"-"`
	UUID          uuid.UUID `json:"uuid"`
	CorporationID int64     `json:"-"`
	UserID        *int64    `json:"user_id"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// ChatMessage is a single message within a chat.
//
// SentAt is assigned by the server at persistence time and is the sole
// ordering and pagination key — distinct from CreatedAt so that the
// ordering key is an explicit domain field, not a storage artifact.
type ChatMessage struct {
	ID        int64     `json:"-"`
	UUID      uuid.UUID `json:"uuid"`
	ChatID    int64     `json:"-"`
	UserID    *int64    `json:"user_id"`
	Sender    Sender    `json:"sender"`
	Body      string    `json:"body"`
	SentAt    time.Time `json:"send_at"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ChatRead is a read receipt: user X has read message Y. At most one
// row per (message, user) pair — enforced by a unique constraint plus
// the conditional insert in the read store.
type ChatRead struct {
	ID        int64     `json:"-"`
	MessageID int64     `json:"-"`
	UserID    int64     `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}

// MessageWithUser pairs a message with its sender's user row, when
// one exists. Guest-authored messages have a nil User.
type MessageWithUser struct {
	ChatMessage
	User *User
}

// ChatSummary is the denormalized list-view row: one chat joined with
// its corporation, optional user, and latest message. This is what the
// thread-list endpoint returns and what gets broadcast to list viewers
// when a new message lands.
type ChatSummary struct {
	ChatUUID        uuid.UUID
	UserID          *int64
	UserName        *string
	CorporationUUID uuid.UUID
	CorporationName string
	LatestMessage   string
	LatestSentAt    time.Time
	IsRead          bool
}
