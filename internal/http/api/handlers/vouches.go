package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tiker-app/tiker/internal/economy"
)

// VouchHandler serves vouch creation and listing.
type VouchHandler struct {
	service *economy.Service
}

// NewVouchHandler constructs a VouchHandler.
func NewVouchHandler(service *economy.Service) *VouchHandler {
	return &VouchHandler{service: service}
}

// Create stakes a vouch for another account.
func (h *VouchHandler) Create(c *gin.Context) {
	account := currentAccount(c)
	if account == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	var req struct {
		VoucheeID uint64 `json:"vouchee_id"`
		Stake     int64  `json:"stake"`
	}
	if errBind := c.ShouldBindJSON(&req); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	vouch, errCreate := h.service.CreateVouch(c.Request.Context(), account, req.VoucheeID, req.Stake)
	if errCreate != nil {
		writeDomainError(c, errCreate)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"id":      vouch.ID,
		"stake":   vouch.Stake,
		"outcome": vouch.Outcome.String(),
	})
}

// List returns the session account's vouches in both directions.
func (h *VouchHandler) List(c *gin.Context) {
	account := currentAccount(c)
	if account == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	vouches, errList := h.service.ListVouches(c.Request.Context(), account.ID)
	if errList != nil {
		writeDomainError(c, errList)
		return
	}
	out := make([]gin.H, 0, len(vouches))
	for _, vouch := range vouches {
		out = append(out, gin.H{
			"id":          vouch.ID,
			"voucher_id":  vouch.VoucherID,
			"vouchee_id":  vouch.VoucheeID,
			"stake":       vouch.Stake,
			"outcome":     vouch.Outcome.String(),
			"resolved_at": vouch.ResolvedAt,
			"created_at":  vouch.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"vouches": out})
}
