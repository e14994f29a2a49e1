// Package api wires HTTP routes, middleware, and handlers.
package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/tiker-app/tiker/internal/config"
	"github.com/tiker-app/tiker/internal/economy"
	"github.com/tiker-app/tiker/internal/http/api/handlers"
	"github.com/tiker-app/tiker/internal/models"
	"github.com/tiker-app/tiker/internal/security"
	"github.com/tiker-app/tiker/internal/writegate"
)

// Deps carries everything route registration needs.
type Deps struct {
	DB            *gorm.DB
	Service       *economy.Service
	Gate          *writegate.Gate
	JWT           config.JWTConfig
	WebhookSecret string
}

// RegisterRoutes registers the full API surface on the engine.
func RegisterRoutes(r *gin.Engine, deps Deps) {
	if r == nil || deps.DB == nil || deps.Service == nil {
		return
	}

	healthHandler := handlers.NewHealthHandler(deps.DB)
	r.GET("/healthz", healthHandler.Healthz)

	v0 := r.Group("/v0")

	// Public surface: browsing patterns and the leaderboard requires no
	// authentication at all.
	patternHandler := handlers.NewPatternHandler(deps.Service)
	v0.GET("/patterns", sessionOptionalMiddleware(deps.DB, deps.JWT), patternHandler.List)
	v0.GET("/patterns/:slug", patternHandler.Get)

	leaderboardHandler := handlers.NewLeaderboardHandler(deps.Service)
	v0.GET("/leaderboard", leaderboardHandler.List)

	authHandler := handlers.NewAuthHandler(deps.Service, deps.JWT, nil)
	v0.POST("/auth/signup", authHandler.Signup)
	v0.POST("/auth/login", authHandler.Login)

	agentHandler := handlers.NewAgentHandler(deps.Service)
	v0.POST("/agents", agentHandler.Register)

	webhookHandler := handlers.NewWebhookHandler(deps.Service, deps.WebhookSecret)
	v0.POST("/webhooks/purchase", webhookHandler.Purchase)

	// Session surface: a valid session JWT identifies the account.
	sessionGroup := v0.Group("")
	sessionGroup.Use(sessionAuthMiddleware(deps.DB, deps.JWT))

	sessionGroup.POST("/auth/verify-oauth", authHandler.VerifyOAuth)

	accountHandler := handlers.NewAccountHandler(deps.Service)
	sessionGroup.GET("/me", accountHandler.Me)
	sessionGroup.GET("/me/balance", accountHandler.Balance)
	sessionGroup.GET("/me/ledger", accountHandler.History)
	sessionGroup.GET("/me/quota", accountHandler.QuotaStatus)
	sessionGroup.GET("/me/agents", agentHandler.List)

	gateHandler := handlers.NewWriteGateHandler(deps.Gate)
	sessionGroup.POST("/write-access/enroll", gateHandler.Enroll)
	sessionGroup.POST("/write-access/verify", gateHandler.Verify)
	sessionGroup.POST("/write-access/revoke", gateHandler.Revoke)

	vouchHandler := handlers.NewVouchHandler(deps.Service)
	sessionGroup.GET("/vouches", vouchHandler.List)

	// Write surface: session plus an active write grant.
	writeGroup := sessionGroup.Group("")
	writeGroup.Use(writeAccessMiddleware(deps.Gate))

	writeGroup.POST("/patterns", patternHandler.Submit)
	writeGroup.POST("/patterns/:id/assessments", patternHandler.Assess)
	writeGroup.POST("/vouches", vouchHandler.Create)
	writeGroup.POST("/agents/:id/claim", agentHandler.Claim)
	writeGroup.POST("/agents/:id/rotate-key", agentHandler.RotateKey)

	// Agent surface: an API key identifies the agent; its owner account
	// carries the token balance.
	agentGroup := v0.Group("/agent")
	agentGroup.Use(agentAuthMiddleware(deps.DB, deps.Service))

	agentGroup.POST("/patterns", patternHandler.SubmitViaAPIKey)
	agentGroup.POST("/patterns/:id/assessments", patternHandler.Assess)
	agentGroup.POST("/patterns/:id/import", patternHandler.RecordImport)
	agentGroup.POST("/agents/:id/endorse", agentHandler.Promote)

	// Admin surface: session plus the admin or owner role.
	adminGroup := v0.Group("/admin")
	adminGroup.Use(sessionAuthMiddleware(deps.DB, deps.JWT))
	adminGroup.Use(adminRoleMiddleware())

	adminHandler := handlers.NewAdminHandler(deps.Service)
	adminGroup.POST("/patterns/:id/resolve", adminHandler.ResolvePattern)
	adminGroup.POST("/patterns/:id/deprecate", adminHandler.DeprecatePattern)
	adminGroup.POST("/assessments/:id/flag", adminHandler.MarkBadAssessment)
	adminGroup.POST("/vouches/:id/resolve", adminHandler.ResolveVouch)
	adminGroup.POST("/agents/:id/founding", adminHandler.PromoteAgentToFounding)
	adminGroup.PUT("/agents/:id/tier", adminHandler.SetAgentTier)
	adminGroup.POST("/accounts/:id/disable", adminHandler.DisableAccount)
	adminGroup.POST("/accounts/:id/enable", adminHandler.EnableAccount)
	adminGroup.POST("/reconcile", adminHandler.Reconcile)

	settingsHandler := handlers.NewSettingsHandler(deps.DB)
	adminGroup.GET("/settings", settingsHandler.List)
	adminGroup.PUT("/settings/:key", settingsHandler.Update)
}

// bearerToken extracts a Bearer token from the Authorization header.
func bearerToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	token := strings.TrimPrefix(authHeader, "Bearer ")
	if token == authHeader {
		return ""
	}
	return strings.TrimSpace(token)
}

// loadSessionAccount resolves a session token to its account.
func loadSessionAccount(c *gin.Context, db *gorm.DB, jwtCfg config.JWTConfig) *models.Account {
	token := bearerToken(c)
	if token == "" {
		return nil
	}
	claims, errJWT := security.ParseSessionToken(jwtCfg.Secret, token)
	if errJWT != nil {
		return nil
	}
	var account models.Account
	if errFind := db.WithContext(c.Request.Context()).First(&account, claims.AccountID).Error; errFind != nil {
		return nil
	}
	if account.Disabled {
		return nil
	}
	return &account
}

// sessionAuthMiddleware validates session JWTs and loads the account.
func sessionAuthMiddleware(db *gorm.DB, jwtCfg config.JWTConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		account := loadSessionAccount(c, db, jwtCfg)
		if account == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Set(handlers.ContextAccountKey, account)
		c.Next()
	}
}

// sessionOptionalMiddleware loads the account when a valid session token is
// present but lets anonymous requests through.
func sessionOptionalMiddleware(db *gorm.DB, jwtCfg config.JWTConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		if account := loadSessionAccount(c, db, jwtCfg); account != nil {
			c.Set(handlers.ContextAccountKey, account)
		}
		c.Next()
	}
}

// agentAuthMiddleware validates agent API keys and loads both the agent and
// its owning account.
func agentAuthMiddleware(db *gorm.DB, service *economy.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		apiKey := c.GetHeader("X-API-Key")
		if apiKey == "" {
			apiKey = bearerToken(c)
		}
		agent, errAuth := service.AuthenticateAgent(c.Request.Context(), apiKey)
		if errAuth != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid api key"})
			return
		}
		c.Set(handlers.ContextAgentKey, agent)

		if agent.OwnerAccountID != nil {
			var account models.Account
			if errFind := db.WithContext(c.Request.Context()).First(&account, *agent.OwnerAccountID).Error; errFind != nil {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "owner account not found"})
				return
			}
			if account.Disabled {
				c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "owner account disabled"})
				return
			}
			c.Set(handlers.ContextAccountKey, &account)
		}
		c.Next()
	}
}

// writeAccessMiddleware requires an active write grant on top of the
// session. The grant token travels in its own header so session and grant
// stay independent.
func writeAccessMiddleware(gate *writegate.Gate) gin.HandlerFunc {
	return func(c *gin.Context) {
		value, _ := c.Get(handlers.ContextAccountKey)
		account, ok := value.(*models.Account)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		if account.TOTPSecret == "" {
			// Never enrolled: the caller must set up two-factor before a
			// grant can exist, and the response says which step is missing.
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "two-factor setup required"})
			return
		}
		grantAccountID, errCheck := gate.Check(c.Request.Context(), c.GetHeader("X-Write-Token"))
		if errCheck != nil || grantAccountID != account.ID {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "write access grant required"})
			return
		}
		c.Next()
	}
}

// adminRoleMiddleware requires the admin or owner role.
func adminRoleMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		value, _ := c.Get(handlers.ContextAccountKey)
		account, ok := value.(*models.Account)
		if !ok || account.Role == models.RoleNormal {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "admin role required"})
			return
		}
		c.Next()
	}
}
