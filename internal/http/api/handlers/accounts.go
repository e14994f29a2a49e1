package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/tiker-app/tiker/internal/economy"
)

// AccountHandler serves the session account's profile, balance, and ledger
// history.
type AccountHandler struct {
	service *economy.Service
}

// NewAccountHandler constructs an AccountHandler.
func NewAccountHandler(service *economy.Service) *AccountHandler {
	return &AccountHandler{service: service}
}

// Me returns the session account profile.
func (h *AccountHandler) Me(c *gin.Context) {
	account := currentAccount(c)
	if account == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"id":            account.ID,
		"username":      account.Username,
		"email":         account.Email,
		"tier":          account.Tier.String(),
		"token_balance": account.TokenBalance,
		"gold_eligible": account.GoldEligible,
		"two_factor":    account.TOTPSecret != "",
		"created_at":    account.CreatedAt,
	})
}

// Balance returns the ledger-derived balance, bypassing the cached
// projection.
func (h *AccountHandler) Balance(c *gin.Context) {
	account := currentAccount(c)
	if account == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	balance, errBalance := h.service.Balance(c.Request.Context(), account.ID)
	if errBalance != nil {
		writeDomainError(c, errBalance)
		return
	}
	c.JSON(http.StatusOK, gin.H{"balance": balance})
}

// History returns recent ledger entries, newest first.
func (h *AccountHandler) History(c *gin.Context) {
	account := currentAccount(c)
	if account == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	entries, errHistory := h.service.History(c.Request.Context(), account.ID, limit)
	if errHistory != nil {
		writeDomainError(c, errHistory)
		return
	}
	out := make([]gin.H, 0, len(entries))
	for _, entry := range entries {
		out = append(out, gin.H{
			"id":          entry.ID,
			"amount":      entry.Amount,
			"type":        entry.Type,
			"ref_type":    entry.RefType,
			"ref_id":      entry.RefID,
			"description": entry.Description,
			"created_at":  entry.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"entries": out})
}

// QuotaStatus reports today's remaining submission slots.
func (h *AccountHandler) QuotaStatus(c *gin.Context) {
	account := currentAccount(c)
	if account == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	status, errStatus := h.service.Quota().Status(c.Request.Context(), account.ID)
	if errStatus != nil {
		writeDomainError(c, errStatus)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"remaining": status.Remaining,
		"resets_at": status.ResetsAt,
	})
}
