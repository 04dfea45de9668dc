package chat

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/harukio/corpchat/internal/models"
)

func seedChat(db *memDB, corpID int64) *models.Chat {
	c := &models.Chat{ID: db.id(), UUID: uuid.New(), CorporationID: corpID}
	db.chats = append(db.chats, c)
	return c
}

func seedMessage(db *memDB, chatID int64, sender models.Sender, at time.Time) {
	db.messages = append(db.messages, &models.ChatMessage{
		ID:     db.id(),
		UUID:   uuid.New(),
		ChatID: chatID,
		Sender: sender,
		Body:   "x",
		SentAt: at,
	})
}

func TestIsChatFullyReadWithoutViewer(t *testing.T) {
	db := newMemDB()
	corp := db.addCorporation("Acme")
	c := seedChat(db, corp.ID)
	tracker := NewReadTracker(&readStore{db})

	read, err := tracker.IsChatFullyRead(context.Background(), c.ID, nil)
	if err != nil {
		t.Fatalf("is chat fully read: %v", err)
	}
	if read {
		t.Fatal("no viewer means no read state to derive from")
	}
}

func TestIsChatFullyReadWithNoGuestMessages(t *testing.T) {
	db := newMemDB()
	corp := db.addCorporation("Acme")
	agent := db.addUser("agent")
	c := seedChat(db, corp.ID)
	seedMessage(db, c.ID, models.SenderStaff, testEpoch)
	tracker := NewReadTracker(&readStore{db})

	read, err := tracker.IsChatFullyRead(context.Background(), c.ID, &agent.ID)
	if err != nil {
		t.Fatalf("is chat fully read: %v", err)
	}
	if !read {
		t.Fatal("a chat with zero guest messages has nothing unread")
	}
}

func TestMarkThenCheckPerViewer(t *testing.T) {
	db := newMemDB()
	corp := db.addCorporation("Acme")
	alice := db.addUser("alice")
	bob := db.addUser("bob")
	c := seedChat(db, corp.ID)
	seedMessage(db, c.ID, models.SenderGuest, testEpoch)
	seedMessage(db, c.ID, models.SenderGuest, testEpoch.Add(time.Second))
	tracker := NewReadTracker(&readStore{db})
	ctx := context.Background()

	read, err := tracker.IsChatFullyRead(ctx, c.ID, &alice.ID)
	if err != nil {
		t.Fatalf("is chat fully read: %v", err)
	}
	if read {
		t.Fatal("unreceipted guest messages must read as unread")
	}

	n, err := tracker.MarkGuestMessagesRead(ctx, c.ID, alice.ID)
	if err != nil {
		t.Fatalf("mark read: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 receipts, got %d", n)
	}

	read, err = tracker.IsChatFullyRead(ctx, c.ID, &alice.ID)
	if err != nil {
		t.Fatalf("is chat fully read: %v", err)
	}
	if !read {
		t.Fatal("all guest messages receipted, chat must read as read")
	}

	// Receipts are per user: alice's do not cover bob.
	read, err = tracker.IsChatFullyRead(ctx, c.ID, &bob.ID)
	if err != nil {
		t.Fatalf("is chat fully read: %v", err)
	}
	if read {
		t.Fatal("one user's receipts must not mark the chat read for another")
	}
}
