package ws

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/harukio/corpchat/internal/models"
)

func TestChatListEventEncodesTimestampsAsISO8601(t *testing.T) {
	sentAt := time.Date(2026, 8, 1, 12, 30, 45, 0, time.UTC)
	ev := NewChatListEvent(models.ChatSummary{
		ChatUUID:        uuid.MustParse("7e57d004-2b97-0e7a-b45f-5387367791cd"),
		CorporationUUID: uuid.New(),
		CorporationName: "Acme",
		LatestMessage:   "hello",
		LatestSentAt:    sentAt,
	})

	if ev.LatestSendAt != "2026-08-01T12:30:45Z" {
		t.Fatalf("expected ISO-8601 timestamp, got %q", ev.LatestSendAt)
	}

	raw, err := json.Marshal(ev)
	if err != nil {
		t.Fatalf("marshal event: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("unmarshal event: %v", err)
	}
	if _, ok := decoded["latest_send_at"].(string); !ok {
		t.Fatal("latest_send_at must serialize as a string, not a number")
	}
	// Nullable fields stay present (null) for guest-only chats.
	if v, ok := decoded["user_id"]; !ok || v != nil {
		t.Fatalf("user_id should be present and null for guest chats, got %v", v)
	}
}

func TestRoomMessageEventUserBlock(t *testing.T) {
	guest := NewRoomMessageEvent(models.MessageWithUser{
		ChatMessage: models.ChatMessage{
			UUID:   uuid.New(),
			Sender: models.SenderGuest,
			Body:   "need help",
			SentAt: time.Date(2026, 8, 1, 9, 0, 0, 500000000, time.UTC),
		},
	})
	if guest.User != nil {
		t.Fatal("guest message must carry a null user block")
	}
	if guest.Sender != int(models.SenderGuest) {
		t.Fatalf("expected sender %d, got %d", models.SenderGuest, guest.Sender)
	}
	if guest.SendAt != "2026-08-01T09:00:00.5Z" {
		t.Fatalf("sub-second precision should survive encoding, got %q", guest.SendAt)
	}

	now := time.Date(2026, 8, 1, 9, 5, 0, 0, time.UTC)
	staff := NewRoomMessageEvent(models.MessageWithUser{
		ChatMessage: models.ChatMessage{
			UUID:   uuid.New(),
			Sender: models.SenderStaff,
			Body:   "on it",
			SentAt: now,
		},
		User: &models.User{
			UUID:        uuid.New(),
			AccountName: "agent-42",
			Email:       "agent@example.com",
			CreatedAt:   now,
			UpdatedAt:   now,
		},
	})
	if staff.User == nil {
		t.Fatal("staff message must carry its sender")
	}
	if staff.User.AccountName != "agent-42" {
		t.Fatalf("unexpected account name %q", staff.User.AccountName)
	}
	if staff.User.CreatedAt != "2026-08-01T09:05:00Z" {
		t.Fatalf("user timestamps must be ISO-8601, got %q", staff.User.CreatedAt)
	}
}
