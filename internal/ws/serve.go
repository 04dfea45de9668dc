package ws

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/harukio/corpchat/internal/middleware"
	"github.com/harukio/corpchat/internal/repository"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The widget is embedded on arbitrary customer sites, so origin
	// checking cannot be a fixed allowlist here.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Handler upgrades HTTP requests into live connections and runs their
// receive loops. Registration into the registry happens only after the
// full handshake (upgrade, and for the chat-list socket the token
// frame) has succeeded, so a half-open connection never receives a
// broadcast.
type Handler struct {
	registry     *Registry
	broadcaster  *Broadcaster
	corporations repository.CorporationRepository
	users        repository.UserRepository
	jwtSecret    string
	logger       *zap.Logger
}

func NewHandler(
	registry *Registry,
	broadcaster *Broadcaster,
	corporations repository.CorporationRepository,
	users repository.UserRepository,
	jwtSecret string,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		registry:     registry,
		broadcaster:  broadcaster,
		corporations: corporations,
		users:        users,
		jwtSecret:    jwtSecret,
		logger:       logger,
	}
}

// authFrame is the expected first payload on the chat-list socket.
// Websocket clients can't set an Authorization header from the
// browser, so the token arrives as the opening frame instead.
type authFrame struct {
	Token string `json:"token"`
}

// ServeChatList handles GET /ws/chat — the staff-side aggregate view.
// Handshake: upgrade, then one auth frame. Subsequent inbound payloads
// are opaque triggers re-broadcast to the other list viewers.
func (h *Handler) ServeChatList(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("ws upgrade failed", zap.Error(err))
		return
	}

	client := NewClient(conn)
	client.prepareRead()

	frame, err := client.ReadMessage()
	if err != nil {
		_ = conn.Close()
		return
	}
	var af authFrame
	if err := json.Unmarshal(frame, &af); err != nil || af.Token == "" {
		h.closeWithPolicy(conn, "authentication required")
		return
	}
	user, err := middleware.ResolveUser(c.Request.Context(), h.users, h.jwtSecret, af.Token)
	if err != nil {
		h.closeWithPolicy(conn, "invalid token")
		return
	}

	h.registry.Register(client)
	go client.WritePump()
	h.logger.Info("chat-list client connected", zap.String("user_uuid", user.UUID.String()))

	// The deferred pair runs on every exit path — clean close, read
	// error, or server shutdown closing the connection under us — and
	// both halves are idempotent.
	defer func() {
		h.registry.Unregister(client)
		client.Close()
	}()

	for {
		payload, err := client.ReadMessage()
		if err != nil {
			return
		}
		h.broadcaster.BroadcastChatListRaw(c.Request.Context(), payload)
	}
}

// ServeRoom handles GET /ws/chat/:corporation_uuid/:chat_uuid — one
// chat's detail view. Unauthenticated: the guest widget connects here.
// The corporation must exist; the chat may not yet (its UUID is minted
// by the widget before the first message).
func (h *Handler) ServeRoom(c *gin.Context) {
	corpUUID, err := uuid.Parse(c.Param("corporation_uuid"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid corporation uuid"})
		return
	}
	chatUUID, err := uuid.Parse(c.Param("chat_uuid"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid chat uuid"})
		return
	}

	corp, err := h.corporations.GetByUUID(c.Request.Context(), corpUUID)
	if err != nil {
		h.logger.Error("resolve corporation for ws", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to resolve corporation"})
		return
	}
	if corp == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "corporation not found"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("ws upgrade failed", zap.Error(err))
		return
	}

	room := chatUUID.String()
	client := NewClient(conn)
	client.prepareRead()
	h.registry.RegisterRoom(client, room)
	go client.WritePump()

	defer func() {
		h.registry.UnregisterRoom(client, room)
		client.Close()
	}()

	for {
		payload, err := client.ReadMessage()
		if err != nil {
			return
		}
		// Inbound room payloads are opaque: relayed to the other
		// participants as-is (typing indicators and the like live
		// entirely client-side).
		h.broadcaster.BroadcastRoomRaw(c.Request.Context(), room, payload)
	}
}

func (h *Handler) closeWithPolicy(conn *websocket.Conn, reason string) {
	_ = conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.ClosePolicyViolation, reason))
	_ = conn.Close()
}
