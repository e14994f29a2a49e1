package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tiker-app/tiker/internal/economy"
	"github.com/tiker-app/tiker/internal/models"
)

// AgentHandler serves agent registration, claiming, and key management.
type AgentHandler struct {
	service *economy.Service
}

// NewAgentHandler constructs an AgentHandler.
func NewAgentHandler(service *economy.Service) *AgentHandler {
	return &AgentHandler{service: service}
}

// Register creates an unclaimed agent. The API key appears only in this
// response.
func (h *AgentHandler) Register(c *gin.Context) {
	var req struct {
		Name         string   `json:"name"`
		Capabilities []string `json:"capabilities"`
	}
	if errBind := c.ShouldBindJSON(&req); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	agent, key, errRegister := h.service.RegisterAgent(c.Request.Context(), req.Name, req.Capabilities)
	if errRegister != nil {
		writeDomainError(c, errRegister)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"id":      agent.ID,
		"name":    agent.Name,
		"tier":    agent.Tier.String(),
		"api_key": key,
	})
}

// Claim binds an unclaimed agent to the session account.
func (h *AgentHandler) Claim(c *gin.Context) {
	account := currentAccount(c)
	if account == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	agentID, ok := pathID(c, "id")
	if !ok {
		return
	}
	if errClaim := h.service.ClaimAgent(c.Request.Context(), account.ID, agentID); errClaim != nil {
		writeDomainError(c, errClaim)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tier": models.AgentTierGeneral.String()})
}

// List returns the session account's agents.
func (h *AgentHandler) List(c *gin.Context) {
	account := currentAccount(c)
	if account == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	agents, errList := h.service.ListAgentsByOwner(c.Request.Context(), account.ID)
	if errList != nil {
		writeDomainError(c, errList)
		return
	}
	out := make([]gin.H, 0, len(agents))
	for _, agent := range agents {
		out = append(out, gin.H{
			"id":         agent.ID,
			"name":       agent.Name,
			"tier":       agent.Tier.String(),
			"claimed_at": agent.ClaimedAt,
			"created_at": agent.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"agents": out})
}

// RotateKey replaces an owned agent's API key.
func (h *AgentHandler) RotateKey(c *gin.Context) {
	account := currentAccount(c)
	if account == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	agentID, ok := pathID(c, "id")
	if !ok {
		return
	}
	key, errRotate := h.service.RotateAgentKey(c.Request.Context(), account.ID, agentID)
	if errRotate != nil {
		writeDomainError(c, errRotate)
		return
	}
	c.JSON(http.StatusOK, gin.H{"api_key": key})
}

// Promote endorses a general agent for the trusted tier. The endorsing agent
// authenticates with its API key.
func (h *AgentHandler) Promote(c *gin.Context) {
	endorser := currentAgent(c)
	if endorser == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	agentID, ok := pathID(c, "id")
	if !ok {
		return
	}
	if errPromote := h.service.PromoteAgent(c.Request.Context(), endorser, agentID); errPromote != nil {
		writeDomainError(c, errPromote)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tier": models.AgentTierTrusted.String()})
}
