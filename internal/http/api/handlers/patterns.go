package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/tiker-app/tiker/internal/economy"
	"github.com/tiker-app/tiker/internal/models"
)

// PatternHandler serves pattern browsing, submission, review, and import
// endpoints.
type PatternHandler struct {
	service *economy.Service
}

// NewPatternHandler constructs a PatternHandler.
func NewPatternHandler(service *economy.Service) *PatternHandler {
	return &PatternHandler{service: service}
}

// List returns patterns matching the query filters. Unauthenticated callers
// see only validated patterns.
func (h *PatternHandler) List(c *gin.Context) {
	filter := economy.PatternFilter{
		Category: models.PatternCategory(c.Query("category")),
		Search:   c.Query("q"),
	}
	filter.Limit, _ = strconv.Atoi(c.DefaultQuery("limit", "20"))
	filter.Offset, _ = strconv.Atoi(c.DefaultQuery("offset", "0"))

	if status := c.Query("status"); status != "" && currentAccount(c) != nil {
		filter.Status = parseStatus(status)
	}
	if filter.Status == 0 {
		filter.Status = models.PatternStatusValidated
	}

	patterns, total, errList := h.service.ListPatterns(c.Request.Context(), filter)
	if errList != nil {
		writeDomainError(c, errList)
		return
	}
	out := make([]gin.H, 0, len(patterns))
	for i := range patterns {
		out = append(out, patternView(&patterns[i]))
	}
	c.JSON(http.StatusOK, gin.H{"patterns": out, "total": total})
}

func parseStatus(raw string) models.PatternStatus {
	switch raw {
	case "pending_review":
		return models.PatternStatusPending
	case "validated":
		return models.PatternStatusValidated
	case "rejected":
		return models.PatternStatusRejected
	case "deprecated":
		return models.PatternStatusDeprecated
	default:
		return 0
	}
}

// Get returns one pattern by slug, including implementation notes.
func (h *PatternHandler) Get(c *gin.Context) {
	pattern, errGet := h.service.GetPatternBySlug(c.Request.Context(), c.Param("slug"))
	if errGet != nil {
		writeDomainError(c, errGet)
		return
	}
	view := patternView(pattern)
	view["implementation"] = pattern.Implementation
	c.JSON(http.StatusOK, view)
}

type submitRequest struct {
	Title          string `json:"title"`
	Category       string `json:"category"`
	Problem        string `json:"problem"`
	Solution       string `json:"solution"`
	Implementation string `json:"implementation"`
}

// Submit accepts a session submission. Web submissions spend a daily quota
// slot but no tokens.
func (h *PatternHandler) Submit(c *gin.Context) {
	h.submit(c, false)
}

// SubmitViaAPIKey accepts an agent submission, which pays the token fee.
func (h *PatternHandler) SubmitViaAPIKey(c *gin.Context) {
	h.submit(c, true)
}

func (h *PatternHandler) submit(c *gin.Context, viaAPIKey bool) {
	account := currentAccount(c)
	if account == nil {
		// An unclaimed agent authenticates with a valid key but has no
		// owner account. That is a trust failure, not an auth failure.
		if agent := currentAgent(c); agent != nil {
			writeDomainError(c, economy.Can(nil, agent, economy.ActionSubmitPattern))
			return
		}
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	var req submitRequest
	if errBind := c.ShouldBindJSON(&req); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	pattern, errSubmit := h.service.Submit(c.Request.Context(), economy.SubmitInput{
		Title:          req.Title,
		Category:       models.PatternCategory(req.Category),
		Problem:        req.Problem,
		Solution:       req.Solution,
		Implementation: req.Implementation,
		Account:        account,
		Agent:          currentAgent(c),
		ViaAPIKey:      viaAPIKey,
	})
	if errSubmit != nil {
		writeDomainError(c, errSubmit)
		return
	}
	c.JSON(http.StatusCreated, patternView(pattern))
}

// Assess records a peer review of a pending pattern.
func (h *PatternHandler) Assess(c *gin.Context) {
	account := currentAccount(c)
	if account == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	patternID, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req struct {
		Clarity     int `json:"clarity"`
		Correctness int `json:"correctness"`
		Reusability int `json:"reusability"`
		Safety      int `json:"safety"`
		Depth       int `json:"depth"`
	}
	if errBind := c.ShouldBindJSON(&req); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	assessment, errAssess := h.service.AddAssessment(c.Request.Context(), economy.AssessmentInput{
		PatternID:   patternID,
		Reviewer:    account,
		Agent:       currentAgent(c),
		Clarity:     req.Clarity,
		Correctness: req.Correctness,
		Reusability: req.Reusability,
		Safety:      req.Safety,
		Depth:       req.Depth,
	})
	if errAssess != nil {
		writeDomainError(c, errAssess)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"id":   assessment.ID,
		"mean": assessment.Mean,
	})
}

// RecordImport bumps a validated pattern's import counter.
func (h *PatternHandler) RecordImport(c *gin.Context) {
	patternID, ok := pathID(c, "id")
	if !ok {
		return
	}
	count, errImport := h.service.RecordImport(c.Request.Context(), patternID)
	if errImport != nil {
		writeDomainError(c, errImport)
		return
	}
	c.JSON(http.StatusOK, gin.H{"import_count": count})
}
