package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/zapfunil/zapfunil/internal/services"
	"github.com/zapfunil/zapfunil/internal/workers"
)

type FollowUpHandler struct {
	followUps services.FollowUpService
	worker    *workers.FollowUpWorker
}

func NewFollowUpHandler(followUps services.FollowUpService, worker *workers.FollowUpWorker) *FollowUpHandler {
	return &FollowUpHandler{followUps: followUps, worker: worker}
}

func (h *FollowUpHandler) ListByConversation(c *gin.Context) {
	conversationID := c.Param("conversation_id")

	rows, err := h.followUps.ListByConversation(c.Request.Context(), conversationID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"conversation_id": conversationID,
		"follow_ups":      rows,
	})
}

// CancelPending is the human-takeover hook: every pending follow-up for the
// conversation goes to cancelled.
func (h *FollowUpHandler) CancelPending(c *gin.Context) {
	conversationID := c.Param("conversation_id")

	n, err := h.followUps.CancelPending(c.Request.Context(), conversationID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"conversation_id": conversationID,
		"cancelled":       n,
	})
}

// ProcessNow triggers one drain pass outside the timer cadence.
func (h *FollowUpHandler) ProcessNow(c *gin.Context) {
	summary, err := h.worker.ProcessDue(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}
