package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	pgrepo "github.com/zapfunil/zapfunil/internal/repositories/postgres"
	"github.com/zapfunil/zapfunil/internal/services"
)

type CRMHandler struct {
	messages pgrepo.MessageRepo
	memories services.MemoryService
	scores   services.LeadScoreService
	labels   services.LabelService
	audit    pgrepo.AuditRepo
}

func NewCRMHandler(messages pgrepo.MessageRepo, memories services.MemoryService, scores services.LeadScoreService, labels services.LabelService, audit pgrepo.AuditRepo) *CRMHandler {
	return &CRMHandler{
		messages: messages,
		memories: memories,
		scores:   scores,
		labels:   labels,
		audit:    audit,
	}
}

func (h *CRMHandler) Timeline(c *gin.Context) {
	conversationID := c.Param("conversation_id")

	limit := 50
	if s := c.Query("limit"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}

	rows, err := h.messages.ListRecent(c.Request.Context(), conversationID, limit)
	if err != nil {
		writeError(c, err)
		return
	}

	// Repo returns newest first; the UI reads oldest first.
	for i, j := 0, len(rows)-1; i < j; i, j = i+1, j-1 {
		rows[i], rows[j] = rows[j], rows[i]
	}

	c.JSON(http.StatusOK, gin.H{
		"conversation_id": conversationID,
		"messages":        rows,
	})
}

func (h *CRMHandler) LeadScore(c *gin.Context) {
	conversationID := c.Param("conversation_id")

	row, err := h.scores.Get(c.Request.Context(), conversationID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, row)
}

func (h *CRMHandler) Memories(c *gin.Context) {
	conversationID := c.Param("conversation_id")

	rows, err := h.memories.ListByConversation(c.Request.Context(), conversationID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"conversation_id": conversationID,
		"memories":        rows,
	})
}

func (h *CRMHandler) Labels(c *gin.Context) {
	conversationID := c.Param("conversation_id")

	rows, err := h.labels.ListByConversation(c.Request.Context(), conversationID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"conversation_id": conversationID,
		"labels":          rows,
	})
}

func (h *CRMHandler) AuditTrail(c *gin.Context) {
	conversationID := c.Param("conversation_id")

	rows, err := h.audit.ListByConversation(c.Request.Context(), conversationID, 100)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"conversation_id": conversationID,
		"entries":         rows,
	})
}
