package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tiker-app/tiker/internal/economy"
	"github.com/tiker-app/tiker/internal/models"
)

// AdminHandler serves moderation and operator endpoints.
type AdminHandler struct {
	service *economy.Service
}

// NewAdminHandler constructs an AdminHandler.
func NewAdminHandler(service *economy.Service) *AdminHandler {
	return &AdminHandler{service: service}
}

// ResolvePattern forces a pending pattern to validated or rejected.
func (h *AdminHandler) ResolvePattern(c *gin.Context) {
	patternID, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req struct {
		Approve bool `json:"approve"`
	}
	if errBind := c.ShouldBindJSON(&req); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if errResolve := h.service.AdminResolvePattern(c.Request.Context(), patternID, req.Approve); errResolve != nil {
		writeDomainError(c, errResolve)
		return
	}
	status := models.PatternStatusRejected
	if req.Approve {
		status = models.PatternStatusValidated
	}
	c.JSON(http.StatusOK, gin.H{"status": status.String()})
}

// DeprecatePattern retires a validated pattern with the author penalty.
func (h *AdminHandler) DeprecatePattern(c *gin.Context) {
	patternID, ok := pathID(c, "id")
	if !ok {
		return
	}
	if errDeprecate := h.service.Deprecate(c.Request.Context(), patternID); errDeprecate != nil {
		writeDomainError(c, errDeprecate)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": models.PatternStatusDeprecated.String()})
}

// MarkBadAssessment penalizes a flagged review.
func (h *AdminHandler) MarkBadAssessment(c *gin.Context) {
	assessmentID, ok := pathID(c, "id")
	if !ok {
		return
	}
	if errMark := h.service.MarkBadAssessment(c.Request.Context(), assessmentID); errMark != nil {
		writeDomainError(c, errMark)
		return
	}
	c.JSON(http.StatusOK, gin.H{"penalized": true})
}

// ResolveVouch settles a pending vouch as good or bad.
func (h *AdminHandler) ResolveVouch(c *gin.Context) {
	vouchID, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req struct {
		Good bool `json:"good"`
	}
	if errBind := c.ShouldBindJSON(&req); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if errResolve := h.service.ResolveVouch(c.Request.Context(), vouchID, req.Good); errResolve != nil {
		writeDomainError(c, errResolve)
		return
	}
	outcome := models.VouchBad
	if req.Good {
		outcome = models.VouchSuccess
	}
	c.JSON(http.StatusOK, gin.H{"outcome": outcome.String()})
}

// PromoteAgentToFounding advances a trusted agent to founding.
func (h *AdminHandler) PromoteAgentToFounding(c *gin.Context) {
	agentID, ok := pathID(c, "id")
	if !ok {
		return
	}
	if errPromote := h.service.AdminPromoteAgentToFounding(c.Request.Context(), agentID); errPromote != nil {
		writeDomainError(c, errPromote)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tier": models.AgentTierFounding.String()})
}

// SetAgentTier sets an agent's tier directly.
func (h *AdminHandler) SetAgentTier(c *gin.Context) {
	agentID, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req struct {
		Tier int `json:"tier"`
	}
	if errBind := c.ShouldBindJSON(&req); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	tier := models.AgentTier(req.Tier)
	if errSet := h.service.AdminDemoteAgent(c.Request.Context(), agentID, tier); errSet != nil {
		writeDomainError(c, errSet)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tier": tier.String()})
}

// DisableAccount blocks an account from authenticating.
func (h *AdminHandler) DisableAccount(c *gin.Context) {
	h.setDisabled(c, true)
}

// EnableAccount lifts an account disable.
func (h *AdminHandler) EnableAccount(c *gin.Context) {
	h.setDisabled(c, false)
}

func (h *AdminHandler) setDisabled(c *gin.Context, disabled bool) {
	accountID, ok := pathID(c, "id")
	if !ok {
		return
	}
	if errSet := h.service.SetAccountDisabled(c.Request.Context(), accountID, disabled); errSet != nil {
		writeDomainError(c, errSet)
		return
	}
	c.JSON(http.StatusOK, gin.H{"disabled": disabled})
}

// Reconcile runs a balance reconciliation sweep immediately.
func (h *AdminHandler) Reconcile(c *gin.Context) {
	fixed, errRun := h.service.ReconcileBalances(c.Request.Context())
	if errRun != nil {
		writeDomainError(c, errRun)
		return
	}
	c.JSON(http.StatusOK, gin.H{"repaired": fixed})
}
