package chat

import (
	"context"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/harukio/corpchat/internal/models"
	"github.com/harukio/corpchat/internal/repository"
	"github.com/harukio/corpchat/internal/ws"
)

// memDB is shared in-memory state for the fake stores below. The fakes
// mirror the postgres store semantics: nil, nil for a miss,
// create-or-get keyed on the chat UUID, cursor filtering with
// sent_at < to_timestamp(cursor), and conditional read receipts.
type memDB struct {
	corporations map[uuid.UUID]*models.Corporation
	users        map[int64]*models.User
	chats        []*models.Chat
	messages     []*models.ChatMessage
	reads        map[int64]map[int64]bool // message ID → user IDs with a receipt

	nextID int64
}

func newMemDB() *memDB {
	return &memDB{
		corporations: make(map[uuid.UUID]*models.Corporation),
		users:        make(map[int64]*models.User),
		reads:        make(map[int64]map[int64]bool),
	}
}

func (db *memDB) id() int64 {
	db.nextID++
	return db.nextID
}

func (db *memDB) addCorporation(name string) *models.Corporation {
	co := &models.Corporation{ID: db.id(), UUID: uuid.New(), Name: name}
	db.corporations[co.UUID] = co
	return co
}

func (db *memDB) addUser(name string) *models.User {
	u := &models.User{
		ID:          db.id(),
		UUID:        uuid.New(),
		AccountName: name,
		Email:       name + "@example.com",
		IsActive:    true,
	}
	db.users[u.ID] = u
	return u
}

func (db *memDB) chatMessages(chatID int64) []*models.ChatMessage {
	var out []*models.ChatMessage
	for _, m := range db.messages {
		if m.ChatID == chatID {
			out = append(out, m)
		}
	}
	return out
}

func (db *memDB) isRead(chatID int64, viewerID *int64) bool {
	if viewerID == nil {
		return false
	}
	for _, m := range db.chatMessages(chatID) {
		if m.Sender == models.SenderGuest && !db.reads[m.ID][*viewerID] {
			return false
		}
	}
	return true
}

func (db *memDB) summaryFor(c *models.Chat, viewerID *int64) *models.ChatSummary {
	var latest *models.ChatMessage
	for _, m := range db.chatMessages(c.ID) {
		if latest == nil || m.SentAt.After(latest.SentAt) {
			latest = m
		}
	}
	if latest == nil {
		return nil
	}
	var corp *models.Corporation
	for _, co := range db.corporations {
		if co.ID == c.CorporationID {
			corp = co
		}
	}
	sum := &models.ChatSummary{
		ChatUUID:        c.UUID,
		UserID:          c.UserID,
		CorporationUUID: corp.UUID,
		CorporationName: corp.Name,
		LatestMessage:   latest.Body,
		LatestSentAt:    latest.SentAt,
		IsRead:          db.isRead(c.ID, viewerID),
	}
	if c.UserID != nil {
		if u, ok := db.users[*c.UserID]; ok {
			sum.UserName = &u.AccountName
		}
	}
	return sum
}

type corpStore struct{ db *memDB }

func (s *corpStore) GetByUUID(_ context.Context, corpUUID uuid.UUID) (*models.Corporation, error) {
	return s.db.corporations[corpUUID], nil
}

type chatStore struct{ db *memDB }

func (s *chatStore) GetByUUID(_ context.Context, chatUUID uuid.UUID) (*models.Chat, error) {
	for _, c := range s.db.chats {
		if c.UUID == chatUUID {
			return c, nil
		}
	}
	return nil, nil
}

func (s *chatStore) CreateOrGet(ctx context.Context, chatUUID uuid.UUID, corporationID int64, userID *int64) (*models.Chat, error) {
	if existing, _ := s.GetByUUID(ctx, chatUUID); existing != nil {
		return existing, nil
	}
	c := &models.Chat{ID: s.db.id(), UUID: chatUUID, CorporationID: corporationID, UserID: userID}
	s.db.chats = append(s.db.chats, c)
	return c, nil
}

func (s *chatStore) ListSummaries(_ context.Context, cursor int64, limit int, keyword string, viewerID *int64) ([]models.ChatSummary, error) {
	var out []models.ChatSummary
	for _, c := range s.db.chats {
		sum := s.db.summaryFor(c, viewerID)
		if sum == nil {
			continue
		}
		if cursor > 0 && !sum.LatestSentAt.Before(time.Unix(cursor, 0)) {
			continue
		}
		if keyword != "" && !strings.Contains(strings.ToLower(sum.CorporationName), strings.ToLower(keyword)) {
			continue
		}
		out = append(out, *sum)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LatestSentAt.After(out[j].LatestSentAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *chatStore) GetSummary(ctx context.Context, chatUUID uuid.UUID, viewerID *int64) (*models.ChatSummary, error) {
	c, _ := s.GetByUUID(ctx, chatUUID)
	if c == nil {
		return nil, nil
	}
	return s.db.summaryFor(c, viewerID), nil
}

type messageStore struct{ db *memDB }

func (s *messageStore) Insert(_ context.Context, chatID int64, userID *int64, sender models.Sender, body string, sentAt time.Time) (*models.MessageWithUser, error) {
	m := &models.ChatMessage{
		ID:     s.db.id(),
		UUID:   uuid.New(),
		ChatID: chatID,
		UserID: userID,
		Sender: sender,
		Body:   body,
		SentAt: sentAt,
	}
	s.db.messages = append(s.db.messages, m)
	out := &models.MessageWithUser{ChatMessage: *m}
	if userID != nil {
		out.User = s.db.users[*userID]
	}
	return out, nil
}

func (s *messageStore) ListByChat(_ context.Context, chatID int64, cursor int64, limit int) ([]models.MessageWithUser, error) {
	var out []models.MessageWithUser
	for _, m := range s.db.chatMessages(chatID) {
		if cursor > 0 && !m.SentAt.Before(time.Unix(cursor, 0)) {
			continue
		}
		row := models.MessageWithUser{ChatMessage: *m}
		if m.UserID != nil {
			row.User = s.db.users[*m.UserID]
		}
		out = append(out, row)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SentAt.After(out[j].SentAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type readStore struct{ db *memDB }

func (s *readStore) MarkGuestMessagesRead(_ context.Context, chatID, userID int64) (int64, error) {
	var created int64
	for _, m := range s.db.chatMessages(chatID) {
		if m.Sender != models.SenderGuest || s.db.reads[m.ID][userID] {
			continue
		}
		if s.db.reads[m.ID] == nil {
			s.db.reads[m.ID] = make(map[int64]bool)
		}
		s.db.reads[m.ID][userID] = true
		created++
	}
	return created, nil
}

func (s *readStore) HasUnreadGuestMessages(_ context.Context, chatID, userID int64) (bool, error) {
	return !s.db.isRead(chatID, &userID), nil
}

var _ repository.CorporationRepository = (*corpStore)(nil)
var _ repository.ChatRepository = (*chatStore)(nil)
var _ repository.MessageRepository = (*messageStore)(nil)
var _ repository.ReadRepository = (*readStore)(nil)

type fakeBroadcaster struct {
	listEvents []ws.ChatListEvent
	roomEvents []struct {
		chatUUID string
		ev       ws.RoomMessageEvent
	}
}

func (b *fakeBroadcaster) BroadcastChatList(_ context.Context, ev ws.ChatListEvent) {
	b.listEvents = append(b.listEvents, ev)
}

func (b *fakeBroadcaster) BroadcastRoom(_ context.Context, chatUUID string, ev ws.RoomMessageEvent) {
	b.roomEvents = append(b.roomEvents, struct {
		chatUUID string
		ev       ws.RoomMessageEvent
	}{chatUUID, ev})
}

func newTestCoordinator(db *memDB) (*Coordinator, *fakeBroadcaster) {
	bc := &fakeBroadcaster{}
	co := NewCoordinator(
		&chatStore{db},
		&corpStore{db},
		&messageStore{db},
		NewReadTracker(&readStore{db}),
		bc,
		zap.NewNop(),
	)
	return co, bc
}

// setClock makes sends deterministic: each call to now advances by one
// whole second, so sent_at values survive cursor flooring exactly.
func setClock(co *Coordinator, start time.Time) {
	t := start
	co.now = func() time.Time {
		t = t.Add(time.Second)
		return t
	}
}

var testEpoch = time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)

func TestGuestSendCreatesChatOnFirstMessage(t *testing.T) {
	db := newMemDB()
	corp := db.addCorporation("Acme")
	co, bc := newTestCoordinator(db)
	setClock(co, testEpoch)

	chatUUID := uuid.New()
	msg, err := co.SendGuestMessage(context.Background(), chatUUID, corp.UUID, "hello")
	if err != nil {
		t.Fatalf("send guest message: %v", err)
	}
	if msg.User != nil {
		t.Fatal("guest message must have no sender user")
	}
	if msg.Sender != models.SenderGuest {
		t.Fatalf("expected guest sender, got %d", msg.Sender)
	}

	if len(db.chats) != 1 {
		t.Fatalf("expected exactly one chat, got %d", len(db.chats))
	}
	created := db.chats[0]
	if created.UUID != chatUUID {
		t.Fatal("chat must keep the client-minted UUID")
	}
	if created.UserID != nil {
		t.Fatal("guest-created chat must not be bound to a user")
	}

	if len(bc.roomEvents) != 1 {
		t.Fatalf("expected one room broadcast, got %d", len(bc.roomEvents))
	}
	if bc.roomEvents[0].chatUUID != chatUUID.String() {
		t.Fatalf("room broadcast targeted %s, want %s", bc.roomEvents[0].chatUUID, chatUUID)
	}
	if len(bc.listEvents) != 1 {
		t.Fatalf("expected one list broadcast, got %d", len(bc.listEvents))
	}
	list := bc.listEvents[0]
	if list.LatestMessage != "hello" {
		t.Fatalf("list broadcast must carry the new message, got %q", list.LatestMessage)
	}
	if list.IsRead {
		t.Fatal("a fresh guest message must broadcast as unread")
	}
}

func TestGuestSendUnknownCorporation(t *testing.T) {
	db := newMemDB()
	co, bc := newTestCoordinator(db)

	_, err := co.SendGuestMessage(context.Background(), uuid.New(), uuid.New(), "hi")
	if err != ErrCorporationNotFound {
		t.Fatalf("expected ErrCorporationNotFound, got %v", err)
	}
	if len(db.chats) != 0 || len(db.messages) != 0 {
		t.Fatal("nothing may be persisted for an unknown corporation")
	}
	if len(bc.listEvents) != 0 || len(bc.roomEvents) != 0 {
		t.Fatal("nothing may be broadcast for a failed send")
	}
}

func TestDuplicateChatUUIDReusesTheChat(t *testing.T) {
	db := newMemDB()
	corp := db.addCorporation("Acme")
	co, _ := newTestCoordinator(db)
	setClock(co, testEpoch)

	chatUUID := uuid.New()
	ctx := context.Background()
	if _, err := co.SendGuestMessage(ctx, chatUUID, corp.UUID, "first"); err != nil {
		t.Fatalf("first send: %v", err)
	}
	if _, err := co.SendGuestMessage(ctx, chatUUID, corp.UUID, "second"); err != nil {
		t.Fatalf("second send: %v", err)
	}

	if len(db.chats) != 1 {
		t.Fatalf("same chat UUID must map to one chat, got %d", len(db.chats))
	}
	if len(db.messages) != 2 {
		t.Fatalf("expected both messages persisted, got %d", len(db.messages))
	}
}

func TestStaffSendMarksGuestMessagesRead(t *testing.T) {
	db := newMemDB()
	corp := db.addCorporation("Acme")
	agent := db.addUser("agent")
	co, bc := newTestCoordinator(db)
	setClock(co, testEpoch)

	ctx := context.Background()
	chatUUID := uuid.New()
	if _, err := co.SendGuestMessage(ctx, chatUUID, corp.UUID, "anyone there?"); err != nil {
		t.Fatalf("guest send: %v", err)
	}

	msg, err := co.SendStaffMessage(ctx, chatUUID, agent, "yes, on it")
	if err != nil {
		t.Fatalf("staff send: %v", err)
	}
	if msg.User == nil || msg.User.ID != agent.ID {
		t.Fatal("staff message must carry its sender")
	}
	if msg.Sender != models.SenderStaff {
		t.Fatalf("expected staff sender, got %d", msg.Sender)
	}

	// The reply implies the agent saw the pending guest messages.
	unread, err := (&readStore{db}).HasUnreadGuestMessages(ctx, db.chats[0].ID, agent.ID)
	if err != nil {
		t.Fatalf("check read state: %v", err)
	}
	if unread {
		t.Fatal("staff reply must receipt the pending guest messages")
	}

	list := bc.listEvents[len(bc.listEvents)-1]
	if !list.IsRead {
		t.Fatal("the post-reply list broadcast must show the chat as read for the agent")
	}
	room := bc.roomEvents[len(bc.roomEvents)-1].ev
	if room.User == nil || room.User.AccountName != "agent" {
		t.Fatal("the room broadcast must carry the staff sender block")
	}
}

func TestStaffSendUnknownChat(t *testing.T) {
	db := newMemDB()
	agent := db.addUser("agent")
	co, _ := newTestCoordinator(db)

	_, err := co.SendStaffMessage(context.Background(), uuid.New(), agent, "hello?")
	if err != ErrChatNotFound {
		t.Fatalf("staff send must not create chats; expected ErrChatNotFound, got %v", err)
	}
}

func TestListMessagesPagesAreCompleteAndDisjoint(t *testing.T) {
	db := newMemDB()
	corp := db.addCorporation("Acme")
	co, _ := newTestCoordinator(db)
	setClock(co, testEpoch)

	ctx := context.Background()
	chatUUID := uuid.New()
	bodies := []string{"m1", "m2", "m3", "m4", "m5"}
	for _, b := range bodies {
		if _, err := co.SendGuestMessage(ctx, chatUUID, corp.UUID, b); err != nil {
			t.Fatalf("seed %s: %v", b, err)
		}
	}

	// Walk pages of two until the store runs dry. Every message must
	// appear exactly once, newest first across the whole walk.
	var seen []string
	cursor := int64(0)
	for i := 0; i < 10; i++ {
		page, err := co.ListMessages(ctx, chatUUID, cursor, 2)
		if err != nil {
			t.Fatalf("list messages: %v", err)
		}
		if len(page.Messages) == 0 {
			if page.NextCursor != nil {
				t.Fatal("empty page must carry a nil cursor")
			}
			break
		}
		for _, m := range page.Messages {
			seen = append(seen, m.Body)
		}
		if page.NextCursor == nil {
			t.Fatal("non-empty page must carry a cursor")
		}
		cursor = *page.NextCursor
	}

	want := []string{"m5", "m4", "m3", "m2", "m1"}
	if len(seen) != len(want) {
		t.Fatalf("pagination lost or duplicated messages: got %v", seen)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Fatalf("wrong order at %d: got %v, want %v", i, seen, want)
		}
	}
}

func TestListChatsOrdersByLatestActivity(t *testing.T) {
	db := newMemDB()
	corp := db.addCorporation("Acme")
	agent := db.addUser("agent")
	co, _ := newTestCoordinator(db)
	setClock(co, testEpoch)

	ctx := context.Background()
	quietUUID := uuid.New()
	busyUUID := uuid.New()
	if _, err := co.SendGuestMessage(ctx, quietUUID, corp.UUID, "older thread"); err != nil {
		t.Fatalf("seed quiet: %v", err)
	}
	if _, err := co.SendGuestMessage(ctx, busyUUID, corp.UUID, "newer thread"); err != nil {
		t.Fatalf("seed busy: %v", err)
	}

	page, err := co.ListChats(ctx, 0, 1, "", agent)
	if err != nil {
		t.Fatalf("list chats: %v", err)
	}
	if len(page.Chats) != 1 || page.Chats[0].ChatUUID != busyUUID {
		t.Fatal("first page must hold the most recently active chat")
	}
	if page.Chats[0].IsRead {
		t.Fatal("unreplied guest chat must list as unread")
	}
	if page.NextCursor == nil {
		t.Fatal("expected a cursor for the next page")
	}

	older, err := co.ListChats(ctx, *page.NextCursor, 1, "", agent)
	if err != nil {
		t.Fatalf("list chats page 2: %v", err)
	}
	if len(older.Chats) != 1 || older.Chats[0].ChatUUID != quietUUID {
		t.Fatal("second page must hold the older chat")
	}
}

func TestListChatsKeywordFiltersOnCorporationName(t *testing.T) {
	db := newMemDB()
	acme := db.addCorporation("Acme Widgets")
	globex := db.addCorporation("Globex")
	co, _ := newTestCoordinator(db)
	setClock(co, testEpoch)

	ctx := context.Background()
	if _, err := co.SendGuestMessage(ctx, uuid.New(), acme.UUID, "hi acme"); err != nil {
		t.Fatalf("seed acme: %v", err)
	}
	if _, err := co.SendGuestMessage(ctx, uuid.New(), globex.UUID, "hi globex"); err != nil {
		t.Fatalf("seed globex: %v", err)
	}

	page, err := co.ListChats(ctx, 0, 20, "widg", nil)
	if err != nil {
		t.Fatalf("list chats: %v", err)
	}
	if len(page.Chats) != 1 || page.Chats[0].CorporationName != "Acme Widgets" {
		t.Fatalf("keyword must filter on corporation name, got %+v", page.Chats)
	}
}

func TestMarkReadIsIdempotent(t *testing.T) {
	db := newMemDB()
	corp := db.addCorporation("Acme")
	agent := db.addUser("agent")
	co, _ := newTestCoordinator(db)
	setClock(co, testEpoch)

	ctx := context.Background()
	chatUUID := uuid.New()
	for _, b := range []string{"one", "two"} {
		if _, err := co.SendGuestMessage(ctx, chatUUID, corp.UUID, b); err != nil {
			t.Fatalf("seed %s: %v", b, err)
		}
	}

	n, err := co.MarkRead(ctx, chatUUID, agent.ID)
	if err != nil {
		t.Fatalf("mark read: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 receipts created, got %d", n)
	}

	n, err = co.MarkRead(ctx, chatUUID, agent.ID)
	if err != nil {
		t.Fatalf("repeat mark read: %v", err)
	}
	if n != 0 {
		t.Fatalf("repeat call must create nothing, got %d", n)
	}

	if _, err := co.MarkRead(ctx, uuid.New(), agent.ID); err != ErrChatNotFound {
		t.Fatalf("expected ErrChatNotFound for unknown chat, got %v", err)
	}
}
