package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/harukio/corpchat/internal/auth"
	"github.com/harukio/corpchat/internal/models"
	"github.com/harukio/corpchat/internal/repository"
)

// ContextKeyUser is where the resolved user lives in gin's per-request
// context. A constant so handlers and middleware can't drift apart on
// the key string.
const ContextKeyUser = "current_user"

// ErrInvalidToken covers every failure mode of token resolution:
// malformed, expired, wrong signature, or a subject that no longer
// maps to an active user. Callers get one error; the log gets detail.
var ErrInvalidToken = errors.New("invalid or expired token")

// ResolveUser validates an access token and loads the user it names.
// Shared between the HTTP middleware (token in the Authorization
// header) and the websocket handshake (token in the first frame).
func ResolveUser(ctx context.Context, users repository.UserRepository, secret, tokenString string) (*models.User, error) {
	claims, err := auth.ParseToken(tokenString, secret)
	if err != nil {
		return nil, ErrInvalidToken
	}
	user, err := users.GetByUUID(ctx, claims.UserUUID)
	if err != nil {
		return nil, err
	}
	if user == nil || !user.IsActive {
		return nil, ErrInvalidToken
	}
	return user, nil
}

// AuthMiddleware gates staff-only routes. It validates the bearer
// token and resolves the full user row, so handlers downstream work
// with a models.User, never raw claims. An invalid token aborts the
// chain with 401 before any handler runs.
func AuthMiddleware(users repository.UserRepository, secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "missing authorization header",
			})
			return
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "invalid authorization format, expected: Bearer <token>",
			})
			return
		}

		user, err := ResolveUser(c.Request.Context(), users, secret, parts[1])
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "invalid or expired token",
			})
			return
		}

		c.Set(ContextKeyUser, user)
		c.Next()
	}
}

// CurrentUser extracts the authenticated user set by AuthMiddleware.
// Returns nil on routes that never passed through the middleware.
func CurrentUser(c *gin.Context) *models.User {
	val, exists := c.Get(ContextKeyUser)
	if !exists {
		return nil
	}
	user, ok := val.(*models.User)
	if !ok {
		return nil
	}
	return user
}
