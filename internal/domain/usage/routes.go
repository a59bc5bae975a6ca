package usage

import "github.com/gin-gonic/gin"

// RegisterRoutes mounts the usage endpoints on an authenticated group.
func RegisterRoutes(r *gin.RouterGroup, h *Handler) {
	r.GET("/usage/summary", h.Summary)
}
