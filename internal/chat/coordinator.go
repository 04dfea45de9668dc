package chat

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/harukio/corpchat/internal/models"
	"github.com/harukio/corpchat/internal/observ"
	"github.com/harukio/corpchat/internal/pagination"
	"github.com/harukio/corpchat/internal/repository"
	"github.com/harukio/corpchat/internal/ws"
)

// Broadcaster is the fan-out capability the coordinator drives after a
// successful send. Implemented by ws.Broadcaster; faked in tests.
type Broadcaster interface {
	BroadcastChatList(ctx context.Context, ev ws.ChatListEvent)
	BroadcastRoom(ctx context.Context, chatUUID string, ev ws.RoomMessageEvent)
}

// ChatPage is one page of the thread list. NextCursor is nil when
// there is nothing older.
type ChatPage struct {
	Chats      []models.ChatSummary
	NextCursor *int64
}

// MessagePage is one page of a chat's messages, newest first.
type MessagePage struct {
	Messages   []models.MessageWithUser
	NextCursor *int64
}

// Coordinator orchestrates message ingestion. Every send walks the
// same sequence: resolve the chat, persist the message, update read
// state, broadcast. Broadcast comes strictly last so payloads always
// reflect durable rows, and its failures stay inside the registry —
// a dead subscriber never fails a send.
type Coordinator struct {
	chats        repository.ChatRepository
	corporations repository.CorporationRepository
	messages     repository.MessageRepository
	reads        *ReadTracker
	broadcaster  Broadcaster
	logger       *zap.Logger

	// now is swappable so tests control the assigned send time.
	now func() time.Time
}

func NewCoordinator(
	chats repository.ChatRepository,
	corporations repository.CorporationRepository,
	messages repository.MessageRepository,
	reads *ReadTracker,
	broadcaster Broadcaster,
	logger *zap.Logger,
) *Coordinator {
	return &Coordinator{
		chats:        chats,
		corporations: corporations,
		messages:     messages,
		reads:        reads,
		broadcaster:  broadcaster,
		logger:       logger,
		now:          time.Now,
	}
}

// SendGuestMessage ingests a message from the anonymous widget. The
// chat UUID is minted client-side before any row exists, so a missing
// chat is normal here: it is created on first message, bound to the
// corporation and to no user.
func (co *Coordinator) SendGuestMessage(ctx context.Context, chatUUID, corpUUID uuid.UUID, body string) (*models.MessageWithUser, error) {
	return co.sendMessage(ctx, chatUUID, &corpUUID, models.SenderGuest, nil, body)
}

// SendStaffMessage ingests a reply from an authenticated user. Staff
// only reply to existing conversations; an unknown chat UUID is an
// error, not a creation trigger.
func (co *Coordinator) SendStaffMessage(ctx context.Context, chatUUID uuid.UUID, user *models.User, body string) (*models.MessageWithUser, error) {
	return co.sendMessage(ctx, chatUUID, nil, models.SenderStaff, user, body)
}

func (co *Coordinator) sendMessage(ctx context.Context, chatUUID uuid.UUID, corpUUID *uuid.UUID, sender models.Sender, user *models.User, body string) (*models.MessageWithUser, error) {
	// Resolve the chat. Creation is create-or-get on the
	// client-supplied UUID: under concurrent duplicate requests the
	// database picks one winner and everyone proceeds against it.
	chatRow, err := co.chats.GetByUUID(ctx, chatUUID)
	if err != nil {
		return nil, fmt.Errorf("resolve chat: %w", err)
	}
	if chatRow == nil {
		if corpUUID == nil {
			return nil, ErrChatNotFound
		}
		corp, err := co.corporations.GetByUUID(ctx, *corpUUID)
		if err != nil {
			return nil, fmt.Errorf("resolve corporation: %w", err)
		}
		if corp == nil {
			return nil, ErrCorporationNotFound
		}
		chatRow, err = co.chats.CreateOrGet(ctx, chatUUID, corp.ID, nil)
		if err != nil {
			return nil, fmt.Errorf("create chat: %w", err)
		}
	}

	// Persist with a server-assigned send time. Clients never supply
	// the ordering key, so storage order matches display order even
	// when requests arrive out of order.
	var senderID *int64
	if user != nil {
		senderID = &user.ID
	}
	msg, err := co.messages.Insert(ctx, chatRow.ID, senderID, sender, body, co.now())
	if err != nil {
		return nil, fmt.Errorf("persist message: %w", err)
	}
	observ.MessagesPersisted.WithLabelValues(senderLabel(sender)).Inc()

	// A staff reply implies the agent has seen the pending guest
	// messages, so their read state advances with the send. Guest
	// sends carry no viewer and skip this step.
	var viewerID *int64
	if sender == models.SenderStaff && user != nil {
		viewerID = &user.ID
		if _, err := co.reads.MarkGuestMessagesRead(ctx, chatRow.ID, user.ID); err != nil {
			return nil, fmt.Errorf("update read state: %w", err)
		}
	}

	// Broadcast last, from a re-fetched summary, so both audiences
	// see the durable state including this message. Failures below
	// this point are per-connection concerns inside the registry and
	// never surface to the sender.
	summary, err := co.chats.GetSummary(ctx, chatUUID, viewerID)
	if err != nil || summary == nil {
		// The send itself succeeded; a summary fetch failure only
		// costs the push, clients recover on next poll.
		co.logger.Warn("skipping broadcast, summary fetch failed",
			zap.String("chat_uuid", chatUUID.String()), zap.Error(err))
		return msg, nil
	}
	co.broadcaster.BroadcastChatList(ctx, ws.NewChatListEvent(*summary))
	co.broadcaster.BroadcastRoom(ctx, chatUUID.String(), ws.NewRoomMessageEvent(*msg))

	return msg, nil
}

// ListChats returns one page of the thread list for a viewer. The
// cursor contract: 0 (or absent) starts from the newest; the returned
// cursor is the epoch second of the oldest item's latest send time.
func (co *Coordinator) ListChats(ctx context.Context, cursor int64, limit int, keyword string, viewer *models.User) (*ChatPage, error) {
	var viewerID *int64
	if viewer != nil {
		viewerID = &viewer.ID
	}
	summaries, err := co.chats.ListSummaries(ctx, cursor, pagination.ClampLimit(limit), keyword, viewerID)
	if err != nil {
		return nil, fmt.Errorf("list chats: %w", err)
	}
	return &ChatPage{
		Chats: summaries,
		NextCursor: pagination.Next(summaries, func(s models.ChatSummary) time.Time {
			return s.LatestSentAt
		}),
	}, nil
}

// ListMessages returns one page of a chat's messages, newest first.
func (co *Coordinator) ListMessages(ctx context.Context, chatUUID uuid.UUID, cursor int64, limit int) (*MessagePage, error) {
	chatRow, err := co.chats.GetByUUID(ctx, chatUUID)
	if err != nil {
		return nil, fmt.Errorf("resolve chat: %w", err)
	}
	if chatRow == nil {
		return nil, ErrChatNotFound
	}
	messages, err := co.messages.ListByChat(ctx, chatRow.ID, cursor, pagination.ClampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	return &MessagePage{
		Messages: messages,
		NextCursor: pagination.Next(messages, func(m models.MessageWithUser) time.Time {
			return m.SentAt
		}),
	}, nil
}

// MarkRead receipts all guest messages in a chat for the user.
func (co *Coordinator) MarkRead(ctx context.Context, chatUUID uuid.UUID, userID int64) (int64, error) {
	chatRow, err := co.chats.GetByUUID(ctx, chatUUID)
	if err != nil {
		return 0, fmt.Errorf("resolve chat: %w", err)
	}
	if chatRow == nil {
		return 0, ErrChatNotFound
	}
	return co.reads.MarkGuestMessagesRead(ctx, chatRow.ID, userID)
}

func senderLabel(s models.Sender) string {
	if s == models.SenderStaff {
		return "staff"
	}
	return "guest"
}
