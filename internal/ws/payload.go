package ws

import (
	"time"

	"github.com/harukio/corpchat/internal/models"
)

// Wire events for the two broadcast audiences. Timestamps cross the
// wire as ISO-8601 strings while pagination cursors stay epoch
// integers — clients depend on that asymmetry, so all conversion
// funnels through encodeTime at this boundary and nowhere else.

// ChatListEvent is the thread-summary payload pushed to clients
// watching the aggregate chat list.
type ChatListEvent struct {
	UUID            string  `json:"uuid"`
	UserID          *int64  `json:"user_id"`
	UserName        *string `json:"user_name"`
	CorporationUUID string  `json:"corporation_uuid"`
	CorporationName string  `json:"corporation_name"`
	LatestMessage   string  `json:"latest_message"`
	LatestSendAt    string  `json:"latest_send_at"`
	IsRead          bool    `json:"is_read"`
}

// RoomMessageEvent is the single-message payload pushed to clients
// watching one chat's detail view.
type RoomMessageEvent struct {
	UUID   string     `json:"uuid"`
	Body   string     `json:"body"`
	SendAt string     `json:"send_at"`
	Sender int        `json:"sender"`
	User   *UserEvent `json:"user"`
}

// UserEvent is the sender block on staff-authored room messages.
type UserEvent struct {
	UUID        string `json:"uuid"`
	AccountName string `json:"account_name"`
	Email       string `json:"email"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
}

func encodeTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func NewChatListEvent(sum models.ChatSummary) ChatListEvent {
	return ChatListEvent{
		UUID:            sum.ChatUUID.String(),
		UserID:          sum.UserID,
		UserName:        sum.UserName,
		CorporationUUID: sum.CorporationUUID.String(),
		CorporationName: sum.CorporationName,
		LatestMessage:   sum.LatestMessage,
		LatestSendAt:    encodeTime(sum.LatestSentAt),
		IsRead:          sum.IsRead,
	}
}

func NewRoomMessageEvent(msg models.MessageWithUser) RoomMessageEvent {
	ev := RoomMessageEvent{
		UUID:   msg.UUID.String(),
		Body:   msg.Body,
		SendAt: encodeTime(msg.SentAt),
		Sender: int(msg.Sender),
	}
	if msg.User != nil {
		ev.User = &UserEvent{
			UUID:        msg.User.UUID.String(),
			AccountName: msg.User.AccountName,
			Email:       msg.User.Email,
			CreatedAt:   encodeTime(msg.User.CreatedAt),
			UpdatedAt:   encodeTime(msg.User.UpdatedAt),
		}
	}
	return ev
}
