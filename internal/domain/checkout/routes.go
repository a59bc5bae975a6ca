package checkout

import "github.com/gin-gonic/gin"

// RegisterRoutes mounts the checkout endpoints on an authenticated group.
func RegisterRoutes(r *gin.RouterGroup, h *Handler) {
	co := r.Group("/checkout")
	{
		co.POST("/session", h.CreateSession)
		co.POST("/confirm", h.Confirm)
	}
}
