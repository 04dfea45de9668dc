package ws

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	channelList       = "chat:list"
	channelRoomPrefix = "chat:room:"
)

// Broadcaster is the single entry point for fan-out. With a Redis
// client it publishes every event to a pub/sub channel and relies on
// the relay loop — running on every instance, this one included — to
// deliver to local registries, so all instances behind a load balancer
// see every event. Without Redis (nil client) it delivers straight to
// the local registry; single-instance deployments and tests need
// nothing else.
type Broadcaster struct {
	registry *Registry
	rdb      *redis.Client
	logger   *zap.Logger
}

func NewBroadcaster(registry *Registry, rdb *redis.Client, logger *zap.Logger) *Broadcaster {
	return &Broadcaster{
		registry: registry,
		rdb:      rdb,
		logger:   logger,
	}
}

// Run consumes the relay subscription until ctx is cancelled. No-op
// without Redis. Start it once at boot, alongside the HTTP server.
func (b *Broadcaster) Run(ctx context.Context) {
	if b.rdb == nil {
		return
	}
	pubsub := b.rdb.PSubscribe(ctx, channelList, channelRoomPrefix+"*")
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			payload := []byte(msg.Payload)
			switch {
			case msg.Channel == channelList:
				b.registry.BroadcastRaw(payload)
			case strings.HasPrefix(msg.Channel, channelRoomPrefix):
				b.registry.BroadcastRoomRaw(strings.TrimPrefix(msg.Channel, channelRoomPrefix), payload)
			}
		}
	}
}

// BroadcastChatList pushes a thread summary to every chat-list viewer.
func (b *Broadcaster) BroadcastChatList(ctx context.Context, ev ChatListEvent) {
	payload, err := json.Marshal(ev)
	if err != nil {
		b.logger.Error("marshal chat-list event", zap.Error(err))
		return
	}
	b.publish(ctx, channelList, payload, func() {
		b.registry.BroadcastRaw(payload)
	})
}

// BroadcastChatListRaw forwards an already-serialized payload to the
// chat-list audience.
func (b *Broadcaster) BroadcastChatListRaw(ctx context.Context, payload []byte) {
	b.publish(ctx, channelList, payload, func() {
		b.registry.BroadcastRaw(payload)
	})
}

// BroadcastRoom pushes a new message to every viewer of one chat.
func (b *Broadcaster) BroadcastRoom(ctx context.Context, chatUUID string, ev RoomMessageEvent) {
	payload, err := json.Marshal(ev)
	if err != nil {
		b.logger.Error("marshal room event", zap.Error(err))
		return
	}
	b.BroadcastRoomRaw(ctx, chatUUID, payload)
}

// BroadcastRoomRaw forwards an already-serialized payload to a room.
// Inbound frames from room connections pass through here untouched —
// the server treats them as opaque triggers, not structured commands.
func (b *Broadcaster) BroadcastRoomRaw(ctx context.Context, chatUUID string, payload []byte) {
	b.publish(ctx, channelRoomPrefix+chatUUID, payload, func() {
		b.registry.BroadcastRoomRaw(chatUUID, payload)
	})
}

// publish sends via Redis when configured, falling back to the local
// delivery func otherwise. A Redis publish failure degrades to local
// delivery rather than dropping the event: clients on this instance
// still see it.
func (b *Broadcaster) publish(ctx context.Context, channel string, payload []byte, local func()) {
	if b.rdb == nil {
		local()
		return
	}
	if err := b.rdb.Publish(ctx, channel, payload).Err(); err != nil {
		b.logger.Warn("redis publish failed, delivering locally",
			zap.String("channel", channel), zap.Error(err))
		local()
	}
}
