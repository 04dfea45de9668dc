package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/harukio/corpchat/internal/chat"
	"github.com/harukio/corpchat/internal/repository"
	"github.com/harukio/corpchat/internal/ws"
)

// GuestHandler is the unauthenticated surface for the embeddable
// widget: bootstrap the iframe, post a visitor message.
type GuestHandler struct {
	coordinator  *chat.Coordinator
	corporations repository.CorporationRepository
	wsBaseURL    string
	logger       *zap.Logger
}

func NewGuestHandler(coordinator *chat.Coordinator, corporations repository.CorporationRepository, wsBaseURL string, logger *zap.Logger) *GuestHandler {
	return &GuestHandler{
		coordinator:  coordinator,
		corporations: corporations,
		wsBaseURL:    wsBaseURL,
		logger:       logger,
	}
}

type guestMessageRequest struct {
	ChatUUID        string `json:"chat_uuid" binding:"required,uuid"`
	CorporationUUID string `json:"corporation_uuid" binding:"required,uuid"`
	Body            string `json:"body" binding:"required"`
}

// Frame handles GET /guest/frame/:corporation_uuid — widget bootstrap.
// Mints a fresh chat UUID for this visitor session; the chat row is
// only created when the first message arrives, so an abandoned widget
// leaves nothing behind.
func (h *GuestHandler) Frame(c *gin.Context) {
	corpUUID, err := uuid.Parse(c.Param("corporation_uuid"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid corporation uuid"})
		return
	}

	corp, err := h.corporations.GetByUUID(c.Request.Context(), corpUUID)
	if err != nil {
		h.logger.Error("failed to resolve corporation", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to resolve corporation"})
		return
	}
	if corp == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "corporation not found"})
		return
	}

	chatUUID := uuid.New()
	c.JSON(http.StatusOK, gin.H{
		"corporation_uuid": corp.UUID,
		"corporation_name": corp.Name,
		"chat_uuid":        chatUUID,
		"ws_url":           fmt.Sprintf("%s/chat/%s/%s", h.wsBaseURL, corp.UUID, chatUUID),
	})
}

// SaveMessage handles POST /guest/chat-message — a visitor message
// from the widget. Creates the chat on first message.
func (h *GuestHandler) SaveMessage(c *gin.Context) {
	var req guestMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	chatUUID := uuid.MustParse(req.ChatUUID)
	corpUUID := uuid.MustParse(req.CorporationUUID)

	msg, err := h.coordinator.SendGuestMessage(c.Request.Context(), chatUUID, corpUUID, req.Body)
	if err != nil {
		if errors.Is(err, chat.ErrCorporationNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "corporation not found"})
			return
		}
		h.logger.Error("failed to save guest message", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save message"})
		return
	}

	c.JSON(http.StatusCreated, ws.NewRoomMessageEvent(*msg))
}
