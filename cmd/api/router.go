package main

import (
	"context"
	"net/http"
	"time"

	"buildadvisor/internal/database"
	"buildadvisor/internal/domain/chat"
	"buildadvisor/internal/domain/checkout"
	"buildadvisor/internal/domain/subscription"
	"buildadvisor/internal/domain/usage"
	"buildadvisor/internal/middleware"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type routerDeps struct {
	log          *zap.Logger
	db           *gorm.DB
	verifier     middleware.TokenVerifier
	authDisabled bool
	corsOrigins  []string

	chat         *chat.Handler
	checkout     *checkout.Handler
	subscription *subscription.Handler
	usage        *usage.Handler
	webhook      *subscription.WebhookHandler
}

func newRouter(d routerDeps) *gin.Engine {
	r := gin.New()
	r.Use(middleware.RequestID())
	r.Use(middleware.ErrorLogger(d.log))
	r.Use(middleware.CORS(d.corsOrigins))

	r.GET("/healthz", healthz(d.db, d.log))

	api := r.Group("/api")
	{
		// public, signature-verified
		subscription.RegisterWebhookRoutes(api, d.webhook)

		protected := api.Group("")
		protected.Use(middleware.Auth(d.verifier, d.authDisabled, d.log))
		{
			chat.RegisterRoutes(protected, d.chat)
			checkout.RegisterRoutes(protected, d.checkout)
			subscription.RegisterRoutes(protected, d.subscription)
			usage.RegisterRoutes(protected, d.usage)
		}
	}

	return r
}

func healthz(db *gorm.DB, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := database.Ping(ctx, db); err != nil {
			log.Warn("health check failed", zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, gin.H{"ok": false, "database": "unreachable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"ok": true})
	}
}
