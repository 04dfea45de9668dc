package chat

import (
	"context"

	"github.com/harukio/corpchat/internal/repository"
)

// ReadTracker owns per-user read state for chats. Marking is
// set-based: one conditional insert covers every unreceipted guest
// message, so repeated calls are idempotent and concurrent calls for
// the same user cannot double-insert.
type ReadTracker struct {
	reads repository.ReadRepository
}

func NewReadTracker(reads repository.ReadRepository) *ReadTracker {
	return &ReadTracker{reads: reads}
}

// MarkGuestMessagesRead receipts every guest message in the chat for
// the user. Returns how many receipts were created (zero on a repeat
// call).
func (t *ReadTracker) MarkGuestMessagesRead(ctx context.Context, chatID, userID int64) (int64, error) {
	return t.reads.MarkGuestMessagesRead(ctx, chatID, userID)
}

// IsChatFullyRead derives the list-view read flag. Policy: no viewer
// means unread; otherwise the chat is read iff every guest-authored
// message carries the viewer's receipt — which also makes a chat with
// zero guest messages read. The underlying check is a single EXISTS
// query, so it stops at the first unread message.
func (t *ReadTracker) IsChatFullyRead(ctx context.Context, chatID int64, viewerID *int64) (bool, error) {
	if viewerID == nil {
		return false, nil
	}
	unread, err := t.reads.HasUnreadGuestMessages(ctx, chatID, *viewerID)
	if err != nil {
		return false, err
	}
	return !unread, nil
}
