package handlers

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tiker-app/tiker/internal/economy"
)

// WebhookHandler receives payment processor events.
type WebhookHandler struct {
	service *economy.Service
	secret  string
}

// NewWebhookHandler constructs a WebhookHandler. An empty secret rejects all
// events.
func NewWebhookHandler(service *economy.Service, secret string) *WebhookHandler {
	return &WebhookHandler{service: service, secret: secret}
}

// Purchase credits bonus tokens for a completed payment. The payload must be
// signed with the shared secret; duplicate event IDs are acknowledged
// without a second credit.
func (h *WebhookHandler) Purchase(c *gin.Context) {
	if h.secret == "" {
		c.JSON(http.StatusNotFound, gin.H{"error": "webhook disabled"})
		return
	}

	body, errRead := io.ReadAll(io.LimitReader(c.Request.Body, 1<<20))
	if errRead != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "read body failed"})
		return
	}
	if !h.verifySignature(body, c.GetHeader("X-Webhook-Signature")) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid signature"})
		return
	}

	var event struct {
		EventID     string `json:"event_id"`
		AccountID   uint64 `json:"account_id"`
		AmountCents int64  `json:"amount_cents"`
		BonusTokens int64  `json:"bonus_tokens"`
	}
	if errDecode := json.Unmarshal(body, &event); errDecode != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}

	purchase, errRecord := h.service.RecordPurchase(c.Request.Context(),
		event.AccountID, event.EventID, event.AmountCents, event.BonusTokens)
	if errRecord != nil {
		writeDomainError(c, errRecord)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"purchase_id":  purchase.ID,
		"bonus_tokens": purchase.BonusTokens,
	})
}

func (h *WebhookHandler) verifySignature(body []byte, signature string) bool {
	if signature == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(h.secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}
