package chat

import "github.com/gin-gonic/gin"

// RegisterRoutes mounts the chat endpoint on an authenticated group.
func RegisterRoutes(r *gin.RouterGroup, h *Handler) {
	r.POST("/chat", h.Send)
}
