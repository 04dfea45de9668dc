package ws

import (
	"encoding/json"
	"sync"

	"go.uber.org/zap"

	"github.com/harukio/corpchat/internal/observ"
)

// Subscriber is one live connection from the registry's point of view.
// Send must not block: implementations queue into a buffer and report
// an error when the peer is dead or hopelessly behind, which the
// registry treats as a disconnect.
type Subscriber interface {
	Send(payload []byte) error
	Close()
}

// Registry tracks live connections in two independent scopes: a global
// set for clients watching the chat list, and per-room sets (keyed by
// chat UUID) for clients watching one chat's detail view.
//
// This is the only shared mutable structure in the process without a
// transactional store behind it, so every mutation and every broadcast
// iteration holds the mutex. Sends are non-blocking, which keeps the
// critical section short even with many subscribers.
type Registry struct {
	mu     sync.Mutex
	global map[Subscriber]struct{}
	rooms  map[string]map[Subscriber]struct{}
	logger *zap.Logger
}

func NewRegistry(logger *zap.Logger) *Registry {
	return &Registry{
		global: make(map[Subscriber]struct{}),
		rooms:  make(map[string]map[Subscriber]struct{}),
		logger: logger,
	}
}

// Register adds a connection to the global set. Callers must complete
// the connection handshake first — a half-open connection must never
// receive a broadcast.
func (r *Registry) Register(sub Subscriber) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.global[sub] = struct{}{}
	observ.WSConnections.WithLabelValues("global").Set(float64(len(r.global)))
}

// RegisterRoom adds a connection to a room's set, creating the set on
// first subscriber.
func (r *Registry) RegisterRoom(sub Subscriber, room string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	set, ok := r.rooms[room]
	if !ok {
		set = make(map[Subscriber]struct{})
		r.rooms[room] = set
	}
	set[sub] = struct{}{}
	observ.WSConnections.WithLabelValues("room").Inc()
}

// Unregister removes a connection from the global set. Idempotent:
// removing an absent connection is a no-op, covering disconnect paths
// that fire after an earlier error already removed it.
func (r *Registry) Unregister(sub Subscriber) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dropGlobal(sub)
}

// UnregisterRoom removes a connection from a room. The room entry is
// deleted once empty — room keys are unbounded client-supplied UUIDs,
// so leaving empty sets behind would leak memory for every widget that
// ever connected.
func (r *Registry) UnregisterRoom(sub Subscriber, room string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dropRoom(sub, room)
}

func (r *Registry) dropGlobal(sub Subscriber) {
	if _, ok := r.global[sub]; !ok {
		return
	}
	delete(r.global, sub)
	observ.WSConnections.WithLabelValues("global").Set(float64(len(r.global)))
}

func (r *Registry) dropRoom(sub Subscriber, room string) {
	set, ok := r.rooms[room]
	if !ok {
		return
	}
	if _, ok := set[sub]; !ok {
		return
	}
	delete(set, sub)
	if len(set) == 0 {
		delete(r.rooms, room)
	}
	observ.WSConnections.WithLabelValues("room").Dec()
}

// Broadcast serializes the event once and delivers it to every global
// subscriber.
func (r *Registry) Broadcast(v any) {
	payload, err := json.Marshal(v)
	if err != nil {
		r.logger.Error("marshal broadcast payload", zap.Error(err))
		return
	}
	r.BroadcastRaw(payload)
}

// BroadcastRoom serializes the event once and delivers it to every
// subscriber of the given room. A room nobody watches is a no-op.
func (r *Registry) BroadcastRoom(room string, v any) {
	payload, err := json.Marshal(v)
	if err != nil {
		r.logger.Error("marshal room broadcast payload", zap.Error(err))
		return
	}
	r.BroadcastRoomRaw(room, payload)
}

// BroadcastRaw delivers a pre-serialized payload to the global set.
func (r *Registry) BroadcastRaw(payload []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	observ.WSBroadcasts.WithLabelValues("global").Inc()
	for _, sub := range r.deliver(r.global, payload) {
		r.logger.Warn("dropping dead chat-list subscriber")
		r.dropGlobal(sub)
		sub.Close()
	}
}

// BroadcastRoomRaw delivers a pre-serialized payload to one room.
func (r *Registry) BroadcastRoomRaw(room string, payload []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	set, ok := r.rooms[room]
	if !ok {
		return
	}
	observ.WSBroadcasts.WithLabelValues("room").Inc()
	for _, sub := range r.deliver(set, payload) {
		r.logger.Warn("dropping dead room subscriber", zap.String("room", room))
		r.dropRoom(sub, room)
		sub.Close()
	}
}

// deliver fans a payload out to a set and returns the subscribers
// whose send failed. A failed delivery never blocks or aborts the
// others; removal happens after iteration so the set is not mutated
// mid-range.
func (r *Registry) deliver(set map[Subscriber]struct{}, payload []byte) []Subscriber {
	var failed []Subscriber
	for sub := range set {
		if err := sub.Send(payload); err != nil {
			observ.WSSendFailures.Inc()
			failed = append(failed, sub)
		}
	}
	return failed
}

// Shutdown closes every registered connection and empties both
// registries. Called once from the server's shutdown sequence.
func (r *Registry) Shutdown() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for sub := range r.global {
		sub.Close()
	}
	for room, set := range r.rooms {
		for sub := range set {
			sub.Close()
		}
		delete(r.rooms, room)
	}
	r.global = make(map[Subscriber]struct{})
	observ.WSConnections.WithLabelValues("global").Set(0)
	observ.WSConnections.WithLabelValues("room").Set(0)
}
