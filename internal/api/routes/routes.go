package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/zapfunil/zapfunil/internal/api/handlers"
	"github.com/zapfunil/zapfunil/internal/api/middleware"
)

type Deps struct {
	Webhook  *handlers.WebhookHandler
	CRM      *handlers.CRMHandler
	FollowUp *handlers.FollowUpHandler
}

func RegisterRoutes(r *gin.Engine, d Deps) {
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(200, gin.H{"message": "pong"})
	})

	// Provider webhook (shared secret)
	hook := r.Group("/webhook")
	hook.Use(middleware.WebhookSecret())
	hook.POST("/:instance_id/messages", d.Webhook.HandleInbound)

	// CRM surface (JWT)
	auth := r.Group("/")
	auth.Use(middleware.JWTAuth())

	auth.GET("/conversations/:conversation_id/messages", d.CRM.Timeline)
	auth.GET("/conversations/:conversation_id/lead-score", d.CRM.LeadScore)
	auth.GET("/conversations/:conversation_id/memories", d.CRM.Memories)
	auth.GET("/conversations/:conversation_id/labels", d.CRM.Labels)
	auth.GET("/conversations/:conversation_id/audit", d.CRM.AuditTrail)

	auth.GET("/conversations/:conversation_id/follow-ups", d.FollowUp.ListByConversation)
	auth.POST("/conversations/:conversation_id/follow-ups/cancel", d.FollowUp.CancelPending)

	// Manual drain trigger, admin only
	auth.POST("/follow-ups/process", middleware.RequireAdmin(), d.FollowUp.ProcessNow)
}
