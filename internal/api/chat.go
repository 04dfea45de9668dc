package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/harukio/corpchat/internal/chat"
	"github.com/harukio/corpchat/internal/middleware"
	"github.com/harukio/corpchat/internal/ws"
)

// ChatHandler serves the staff-side chat surface. List and detail
// responses reuse the broadcast event shapes, so a row fetched over
// HTTP and a row pushed over a live connection are byte-compatible —
// timestamps as ISO-8601 strings, cursors as epoch-second integers.
type ChatHandler struct {
	coordinator *chat.Coordinator
	logger      *zap.Logger
}

func NewChatHandler(coordinator *chat.Coordinator, logger *zap.Logger) *ChatHandler {
	return &ChatHandler{coordinator: coordinator, logger: logger}
}

type sendMessageRequest struct {
	Body string `json:"body" binding:"required"`
}

// List handles GET /v1/chats?cursor=1700000000&limit=20&keyword=acme
func (h *ChatHandler) List(c *gin.Context) {
	cursor, limit, ok := pageParams(c)
	if !ok {
		return
	}

	page, err := h.coordinator.ListChats(
		c.Request.Context(),
		cursor,
		limit,
		c.Query("keyword"),
		middleware.CurrentUser(c),
	)
	if err != nil {
		h.logger.Error("failed to list chats", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list chats"})
		return
	}

	items := make([]ws.ChatListEvent, 0, len(page.Chats))
	for _, sum := range page.Chats {
		items = append(items, ws.NewChatListEvent(sum))
	}
	c.JSON(http.StatusOK, gin.H{"data": items, "cursor": page.NextCursor})
}

// Messages handles GET /v1/chats/:uuid/messages?cursor=...&limit=...
func (h *ChatHandler) Messages(c *gin.Context) {
	chatUUID, err := uuid.Parse(c.Param("uuid"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid chat uuid"})
		return
	}
	cursor, limit, ok := pageParams(c)
	if !ok {
		return
	}

	page, err := h.coordinator.ListMessages(c.Request.Context(), chatUUID, cursor, limit)
	if err != nil {
		if errors.Is(err, chat.ErrChatNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "chat not found"})
			return
		}
		h.logger.Error("failed to list messages", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list messages"})
		return
	}

	items := make([]ws.RoomMessageEvent, 0, len(page.Messages))
	for _, msg := range page.Messages {
		items = append(items, ws.NewRoomMessageEvent(msg))
	}
	c.JSON(http.StatusOK, gin.H{"data": items, "cursor": page.NextCursor})
}

// SendMessage handles POST /v1/chats/:uuid/messages — a staff reply.
func (h *ChatHandler) SendMessage(c *gin.Context) {
	chatUUID, err := uuid.Parse(c.Param("uuid"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid chat uuid"})
		return
	}
	var req sendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	msg, err := h.coordinator.SendStaffMessage(c.Request.Context(), chatUUID, middleware.CurrentUser(c), req.Body)
	if err != nil {
		if errors.Is(err, chat.ErrChatNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "chat not found"})
			return
		}
		h.logger.Error("failed to send message", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to send message"})
		return
	}

	c.JSON(http.StatusCreated, ws.NewRoomMessageEvent(*msg))
}

// MarkRead handles POST /v1/chats/:uuid/read.
func (h *ChatHandler) MarkRead(c *gin.Context) {
	chatUUID, err := uuid.Parse(c.Param("uuid"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid chat uuid"})
		return
	}

	user := middleware.CurrentUser(c)
	marked, err := h.coordinator.MarkRead(c.Request.Context(), chatUUID, user.ID)
	if err != nil {
		if errors.Is(err, chat.ErrChatNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "chat not found"})
			return
		}
		h.logger.Error("failed to mark chat read", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to mark chat read"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"marked": marked})
}

// pageParams reads the shared cursor/limit query params. Responds with
// 400 itself and returns ok=false on malformed input.
func pageParams(c *gin.Context) (cursor int64, limit int, ok bool) {
	if raw := c.Query("cursor"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || parsed < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid 'cursor' parameter"})
			return 0, 0, false
		}
		cursor = parsed
	}
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid 'limit' parameter"})
			return 0, 0, false
		}
		limit = parsed
	}
	return cursor, limit, true
}
