package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/zapfunil/zapfunil/internal/services"
)

type WebhookHandler struct {
	analysis services.AnalysisService
}

func NewWebhookHandler(analysis services.AnalysisService) *WebhookHandler {
	return &WebhookHandler{analysis: analysis}
}

// HandleInbound receives one customer message from the provider. The provider
// does not wait on the pipeline result beyond the ACK body.
func (h *WebhookHandler) HandleInbound(c *gin.Context) {
	instanceID := c.Param("instance_id")

	var payload struct {
		Phone     string `json:"phone"`
		Text      string `json:"text"`
		MessageID string `json:"message_id"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, APIError{Code: "INVALID_ARGUMENT", Message: "invalid json"})
		return
	}

	result, err := h.analysis.ProcessInbound(c.Request.Context(), services.InboundMessage{
		InstanceID:        instanceID,
		Phone:             payload.Phone,
		Body:              payload.Text,
		ProviderMessageID: payload.MessageID,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	intents := make([]string, 0, len(result.Intents))
	for _, d := range result.Intents {
		intents = append(intents, d.Name)
	}

	c.JSON(http.StatusOK, gin.H{
		"status":       "ok",
		"intents":      intents,
		"should_pause": result.ShouldPause,
	})
}
