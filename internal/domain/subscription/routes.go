package subscription

import "github.com/gin-gonic/gin"

// RegisterRoutes mounts the subscription endpoints on an authenticated group.
func RegisterRoutes(r *gin.RouterGroup, h *Handler) {
	sub := r.Group("/subscription")
	{
		sub.POST("/cancel", h.Cancel)
		sub.POST("/change", h.Change)
		sub.GET("/summary", h.Summary)
	}
}

// RegisterWebhookRoutes mounts the provider webhook. It must not sit behind user auth.
func RegisterWebhookRoutes(r *gin.RouterGroup, h *WebhookHandler) {
	r.POST("/stripe/webhook", h.Receive)
}
