package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tiker-app/tiker/internal/config"
	"github.com/tiker-app/tiker/internal/economy"
	"github.com/tiker-app/tiker/internal/security"
)

// AuthHandler serves signup, login, and identity verification.
type AuthHandler struct {
	service *economy.Service
	jwtCfg  config.JWTConfig
	nowFn   func() time.Time
}

// NewAuthHandler constructs an AuthHandler.
func NewAuthHandler(service *economy.Service, jwtCfg config.JWTConfig, nowFn func() time.Time) *AuthHandler {
	if nowFn == nil {
		nowFn = time.Now
	}
	return &AuthHandler{service: service, jwtCfg: jwtCfg, nowFn: nowFn}
}

// Signup creates a Bronze account.
func (h *AuthHandler) Signup(c *gin.Context) {
	var req struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if errBind := c.ShouldBindJSON(&req); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	account, errSignup := h.service.Signup(c.Request.Context(), req.Username, req.Email, req.Password)
	if errSignup != nil {
		writeDomainError(c, errSignup)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"id":       account.ID,
		"username": account.Username,
		"tier":     account.Tier.String(),
	})
}

// Login authenticates an account and returns a session token.
func (h *AuthHandler) Login(c *gin.Context) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if errBind := c.ShouldBindJSON(&req); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	account, errAuth := h.service.Authenticate(c.Request.Context(), req.Username, req.Password)
	if errAuth != nil {
		writeDomainError(c, errAuth)
		return
	}

	token, errSign := security.SignSessionToken(h.jwtCfg.Secret, account.ID, h.jwtCfg.Expiry, h.nowFn())
	if errSign != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "sign token failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"token":    token,
		"id":       account.ID,
		"username": account.Username,
		"tier":     account.Tier.String(),
	})
}

// VerifyOAuth upgrades the session account to Silver after an OAuth identity
// check and grants the signup bonus.
func (h *AuthHandler) VerifyOAuth(c *gin.Context) {
	account := currentAccount(c)
	if account == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	var req struct {
		Provider string `json:"provider"`
		Subject  string `json:"subject"`
	}
	if errBind := c.ShouldBindJSON(&req); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	granted, errVerify := h.service.VerifyOAuth(c.Request.Context(), account.ID, req.Provider, req.Subject)
	if errVerify != nil {
		writeDomainError(c, errVerify)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"tier":           "silver",
		"tokens_granted": granted,
	})
}
