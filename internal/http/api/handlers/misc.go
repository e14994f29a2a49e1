package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/tiker-app/tiker/internal/economy"
)

// HealthHandler serves the liveness probe.
type HealthHandler struct {
	db *gorm.DB
}

// NewHealthHandler constructs a HealthHandler.
func NewHealthHandler(db *gorm.DB) *HealthHandler {
	return &HealthHandler{db: db}
}

// Healthz reports process and database health.
func (h *HealthHandler) Healthz(c *gin.Context) {
	sqlDB, errDB := h.db.DB()
	if errDB != nil || sqlDB.PingContext(c.Request.Context()) != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// LeaderboardHandler serves the public contributor leaderboard.
type LeaderboardHandler struct {
	service *economy.Service
}

// NewLeaderboardHandler constructs a LeaderboardHandler.
func NewLeaderboardHandler(service *economy.Service) *LeaderboardHandler {
	return &LeaderboardHandler{service: service}
}

// List returns the top contributors by token balance.
func (h *LeaderboardHandler) List(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	rows, errList := h.service.Leaderboard(c.Request.Context(), limit)
	if errList != nil {
		writeDomainError(c, errList)
		return
	}
	out := make([]gin.H, 0, len(rows))
	for _, row := range rows {
		out = append(out, gin.H{
			"account_id":         row.AccountID,
			"username":           row.Username,
			"tier":               row.Tier.String(),
			"token_balance":      row.TokenBalance,
			"validated_patterns": row.ValidatedPatterns,
		})
	}
	c.JSON(http.StatusOK, gin.H{"leaderboard": out})
}
