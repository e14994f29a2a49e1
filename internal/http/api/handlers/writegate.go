package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tiker-app/tiker/internal/writegate"
)

// WriteGateHandler serves two-factor enrollment and write grant issuance.
type WriteGateHandler struct {
	gate *writegate.Gate
}

// NewWriteGateHandler constructs a WriteGateHandler.
func NewWriteGateHandler(gate *writegate.Gate) *WriteGateHandler {
	return &WriteGateHandler{gate: gate}
}

// Enroll provisions a TOTP secret and recovery codes. Both appear only in
// this response.
func (h *WriteGateHandler) Enroll(c *gin.Context) {
	account := currentAccount(c)
	if account == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	enrollment, errEnroll := h.gate.Enroll(c.Request.Context(), account)
	if errEnroll != nil {
		writeDomainError(c, errEnroll)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"secret":         enrollment.Secret,
		"provision_url":  enrollment.ProvisionURL,
		"recovery_codes": enrollment.RecoveryCodes,
	})
}

// Verify exchanges a TOTP or recovery code for a write grant token.
func (h *WriteGateHandler) Verify(c *gin.Context) {
	account := currentAccount(c)
	if account == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	var req struct {
		Code string `json:"code"`
	}
	if errBind := c.ShouldBindJSON(&req); errBind != nil || req.Code == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "code required"})
		return
	}

	token, expiresAt, errVerify := h.gate.Verify(c.Request.Context(), account, req.Code)
	if errVerify != nil {
		writeDomainError(c, errVerify)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"write_token": token,
		"expires_at":  expiresAt,
	})
}

// Revoke invalidates all of the session account's active grants.
func (h *WriteGateHandler) Revoke(c *gin.Context) {
	account := currentAccount(c)
	if account == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	revoked, errRevoke := h.gate.Revoke(c.Request.Context(), account.ID)
	if errRevoke != nil {
		writeDomainError(c, errRevoke)
		return
	}
	c.JSON(http.StatusOK, gin.H{"revoked": revoked})
}
