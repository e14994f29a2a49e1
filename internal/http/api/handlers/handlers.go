// Package handlers contains the HTTP handlers for the public API surface.
package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/tiker-app/tiker/internal/economy"
	"github.com/tiker-app/tiker/internal/models"
	"github.com/tiker-app/tiker/internal/writegate"
)

// Context keys set by the route middleware.
const (
	// ContextAccountKey holds the authenticated *models.Account.
	ContextAccountKey = "account"
	// ContextAgentKey holds the authenticated *models.Agent.
	ContextAgentKey = "agent"
)

// currentAccount returns the session account placed by the auth middleware.
func currentAccount(c *gin.Context) *models.Account {
	value, ok := c.Get(ContextAccountKey)
	if !ok {
		return nil
	}
	account, ok := value.(*models.Account)
	if !ok {
		return nil
	}
	return account
}

// currentAgent returns the API-key agent placed by the agent middleware.
func currentAgent(c *gin.Context) *models.Agent {
	value, ok := c.Get(ContextAgentKey)
	if !ok {
		return nil
	}
	agent, ok := value.(*models.Agent)
	if !ok {
		return nil
	}
	return agent
}

// pathID parses a numeric path parameter.
func pathID(c *gin.Context, name string) (uint64, bool) {
	id, errParse := strconv.ParseUint(c.Param(name), 10, 64)
	if errParse != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return 0, false
	}
	return id, true
}

// writeDomainError maps economy and writegate errors onto HTTP statuses.
func writeDomainError(c *gin.Context, err error) {
	var validation *economy.ValidationError
	var trust *economy.InsufficientTrustError
	var tokens *economy.InsufficientTokensError
	var limited *economy.RateLimitedError

	switch {
	case errors.As(err, &validation):
		body := gin.H{"error": validation.Error()}
		if len(validation.Missing) > 0 {
			body["missing"] = validation.Missing
		}
		c.JSON(http.StatusBadRequest, body)
	case errors.As(err, &trust):
		c.JSON(http.StatusForbidden, gin.H{
			"error":  trust.Error(),
			"action": string(trust.Action),
		})
	case errors.As(err, &tokens):
		c.JSON(http.StatusPaymentRequired, gin.H{
			"error":    tokens.Error(),
			"required": tokens.Required,
			"balance":  tokens.Balance,
		})
	case errors.As(err, &limited):
		c.Header("Retry-After", strconv.FormatInt(int64(limited.ResetsAt.Unix()), 10))
		c.JSON(http.StatusTooManyRequests, gin.H{
			"error":     "daily submission limit reached",
			"remaining": limited.Remaining,
			"resets_at": limited.ResetsAt,
		})
	case errors.Is(err, economy.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, economy.ErrDuplicateSlug):
		c.JSON(http.StatusConflict, gin.H{"error": "a pattern with this title already exists"})
	case errors.Is(err, economy.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": "conflict"})
	case errors.Is(err, economy.ErrSelfVouchForbidden):
		c.JSON(http.StatusBadRequest, gin.H{"error": "cannot vouch for yourself"})
	case errors.Is(err, economy.ErrBadCredentials):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
	case errors.Is(err, writegate.ErrTwoFactorSetupRequired):
		c.JSON(http.StatusForbidden, gin.H{"error": "two-factor setup required"})
	case errors.Is(err, writegate.ErrWriteAccessRequired):
		c.JSON(http.StatusForbidden, gin.H{"error": "write access grant required"})
	case errors.Is(err, writegate.ErrInvalidCode):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid code"})
	case errors.Is(err, writegate.ErrAlreadyEnrolled):
		c.JSON(http.StatusConflict, gin.H{"error": "already enrolled"})
	case errors.Is(err, writegate.ErrTooManyAttempts):
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "too many verification attempts"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

// patternView renders a pattern for API responses.
func patternView(p *models.Pattern) gin.H {
	return gin.H{
		"id":           p.ID,
		"slug":         p.Slug,
		"title":        p.Title,
		"category":     p.Category,
		"problem":      p.Problem,
		"solution":     p.Solution,
		"status":       p.Status.String(),
		"score":        p.Score,
		"import_count": p.ImportCount,
		"validated_at": p.ValidatedAt,
		"created_at":   p.CreatedAt,
	}
}
