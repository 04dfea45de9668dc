package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/harukio/corpchat/internal/middleware"
)

// UserHandler serves the authenticated user's own profile.
type UserHandler struct{}

func NewUserHandler() *UserHandler {
	return &UserHandler{}
}

// Me handles GET /v1/me.
func (h *UserHandler) Me(c *gin.Context) {
	user := middleware.CurrentUser(c)
	if user == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	c.JSON(http.StatusOK, user)
}
