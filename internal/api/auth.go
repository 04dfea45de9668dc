package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/harukio/corpchat/internal/auth"
	"github.com/harukio/corpchat/internal/middleware"
	"github.com/harukio/corpchat/internal/models"
	"github.com/harukio/corpchat/internal/repository"
)

// AuthHandler implements the public auth surface: sign-up, sign-in,
// refresh-token exchange, and the (authenticated) sign-out. Access
// tokens are short-lived JWTs; session longevity comes from rotating
// refresh tokens stored on the user row.
type AuthHandler struct {
	users          repository.UserRepository
	jwtSecret      string
	accessTTL      time.Duration
	refreshTTLDays int
	logger         *zap.Logger
}

func NewAuthHandler(users repository.UserRepository, jwtSecret string, accessTTLMin, refreshTTLDays int, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		users:          users,
		jwtSecret:      jwtSecret,
		accessTTL:      time.Duration(accessTTLMin) * time.Minute,
		refreshTTLDays: refreshTTLDays,
		logger:         logger,
	}
}

type signUpRequest struct {
	AccountName string `json:"account_name" binding:"required"`
	Email       string `json:"email" binding:"required,email"`
	Password    string `json:"password" binding:"required,min=8"`
}

type signInRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// SignUp handles POST /v1/auth/sign-up.
func (h *AuthHandler) SignUp(c *gin.Context) {
	var req signUpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	existing, err := h.users.GetByEmail(c.Request.Context(), req.Email)
	if err != nil {
		h.logger.Error("failed to check existing user", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "sign-up failed"})
		return
	}
	if existing != nil {
		c.JSON(http.StatusConflict, gin.H{"error": "email already registered"})
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		h.logger.Error("failed to hash password", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "sign-up failed"})
		return
	}

	refreshToken, err := auth.NewRefreshToken()
	if err != nil {
		h.logger.Error("failed to generate refresh token", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "sign-up failed"})
		return
	}

	user, err := h.users.Create(
		c.Request.Context(),
		req.AccountName,
		req.Email,
		string(hash),
		refreshToken,
		auth.RefreshExpiry(h.refreshTTLDays),
	)
	if err != nil {
		h.logger.Error("failed to create user", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "sign-up failed"})
		return
	}

	token, err := auth.GenerateToken(user.UUID, h.jwtSecret, h.accessTTL)
	if err != nil {
		h.logger.Error("failed to generate token", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "sign-up failed"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"uuid":          user.UUID,
		"account_name":  user.AccountName,
		"email":         user.Email,
		"access_token":  token,
		"refresh_token": refreshToken,
		"created_at":    user.CreatedAt,
		"updated_at":    user.UpdatedAt,
	})
}

// SignIn handles POST /v1/auth/sign-in. A successful sign-in rotates
// the refresh token; the previous one stops working.
func (h *AuthHandler) SignIn(c *gin.Context) {
	var req signInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.users.GetByEmail(c.Request.Context(), req.Email)
	if err != nil {
		h.logger.Error("failed to find user", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "sign-in failed"})
		return
	}
	// One generic message for both unknown email and wrong password,
	// so the endpoint doesn't confirm which emails are registered.
	if user == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid email or password"})
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid email or password"})
		return
	}

	h.issueTokens(c, user, http.StatusOK)
}

// Refresh handles POST /v1/auth/refresh-token. Exchanges a live
// refresh token for a fresh access token plus a NEW refresh token.
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.users.GetByRefreshToken(c.Request.Context(), req.RefreshToken)
	if err != nil {
		h.logger.Error("failed to look up refresh token", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "refresh failed"})
		return
	}
	if user == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid refresh token"})
		return
	}
	if !user.IsActive {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user is signed out"})
		return
	}

	h.issueTokens(c, user, http.StatusOK)
}

// SignOut handles POST /v1/auth/sign-out (behind auth middleware).
func (h *AuthHandler) SignOut(c *gin.Context) {
	user := middleware.CurrentUser(c)
	if user == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	if err := h.users.SignOut(c.Request.Context(), user.ID); err != nil {
		h.logger.Error("failed to sign out", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "sign-out failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *AuthHandler) issueTokens(c *gin.Context, user *models.User, status int) {
	accessToken, err := auth.GenerateToken(user.UUID, h.jwtSecret, h.accessTTL)
	if err != nil {
		h.logger.Error("failed to generate token", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token issue failed"})
		return
	}
	refreshToken, err := auth.NewRefreshToken()
	if err != nil {
		h.logger.Error("failed to generate refresh token", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token issue failed"})
		return
	}
	if err := h.users.RotateRefreshToken(c.Request.Context(), user.ID, refreshToken, auth.RefreshExpiry(h.refreshTTLDays)); err != nil {
		h.logger.Error("failed to rotate refresh token", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token issue failed"})
		return
	}

	c.JSON(status, tokenResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
	})
}
