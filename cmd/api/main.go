package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"buildadvisor/internal/config"
	"buildadvisor/internal/database"
	"buildadvisor/internal/domain/chat"
	"buildadvisor/internal/domain/checkout"
	"buildadvisor/internal/domain/profile"
	"buildadvisor/internal/domain/subscription"
	"buildadvisor/internal/domain/usage"
	"buildadvisor/internal/middleware"
	"buildadvisor/internal/pkg/gemini"
	"buildadvisor/internal/pkg/jwt"
	"buildadvisor/internal/pkg/logger"
	"buildadvisor/internal/pkg/stripeclient"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	lg, err := logger.New(cfg.Development(), logger.LogLevel(cfg.LogLevel))
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = lg.Sync() }()

	if !cfg.Development() {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		lg.Fatal("database connect failed", zap.Error(err))
	}
	if err := database.Migrate(db, &profile.UserProfile{}, &usage.Counters{}, &checkout.Record{}); err != nil {
		lg.Fatal("database migrate failed", zap.Error(err))
	}

	prompts, err := config.ParsePrompts(cfg.PromptsJSON)
	if err != nil {
		lg.Fatal("prompts", zap.Error(err))
	}
	if len(prompts) == 0 {
		lg.Warn("PROMPTS_JSON is empty; chat requests will fail until prompts are configured")
	}
	loc, err := time.LoadLocation(cfg.DisplayTimezone)
	if err != nil {
		lg.Fatal("display timezone", zap.Error(err))
	}

	var verifier middleware.TokenVerifier
	if cfg.Supabase.AuthDisabled {
		lg.Warn("AUTH_DISABLED=true: every request runs as the local dev user")
	} else {
		opts := jwt.Options{Secret: cfg.Supabase.JWTSecret}
		if cfg.Supabase.JWKSEnabled {
			opts.JWKSURL = cfg.JWKSURL()
		}
		if cfg.Supabase.URL != "" {
			opts.Issuer = cfg.Supabase.URL + "/auth/v1"
		}
		v, err := jwt.NewVerifier(opts)
		if err != nil {
			lg.Fatal("jwt verifier", zap.Error(err))
		}
		verifier = v
	}

	// repositories
	profiles := profile.NewRepository(db)
	counters := usage.NewRepository(db)
	records := checkout.NewRepository(db)

	// providers
	payments := stripeclient.New(cfg.Stripe.SecretKey, cfg.Stripe.WebhookSecret, lg,
		stripeclient.WithTimeout(cfg.UpstreamTimeout),
		stripeclient.WithMaxRetries(0),
	)
	llm, err := gemini.New(context.Background(), cfg.Gemini.APIKey, cfg.Gemini.Model, cfg.UpstreamTimeout,
		gemini.WithBaseURL(cfg.Gemini.BaseURL))
	if err != nil {
		lg.Fatal("gemini client", zap.Error(err))
	}
	if cfg.Gemini.APIKey == "" {
		lg.Warn("GEMINI_API_KEY is empty; chat requests will fail with an upstream error")
	}

	// services
	gate := usage.NewGate(profiles, counters)
	checkoutService := checkout.NewService(payments, records, profiles, counters, checkout.Config{
		PriceIDs:      cfg.PriceIDs(),
		PublicBaseURL: cfg.PublicBaseURL,
	}, lg.Named("checkout"))
	subscriptionService := subscription.NewService(payments, profiles, subscription.Config{
		PriceIDs: cfg.PriceIDs(),
		Location: loc,
	}, lg.Named("subscription"))
	chatService := chat.NewService(llm, gate, counters, prompts, lg.Named("chat"))
	reconciler := subscription.NewReconciler(profiles, records, lg.Named("webhook"))

	r := newRouter(routerDeps{
		log:          lg,
		db:           db,
		verifier:     verifier,
		authDisabled: cfg.Supabase.AuthDisabled,
		corsOrigins:  cfg.CORSOrigins,
		chat:         chat.NewHandler(chatService),
		checkout:     checkout.NewHandler(checkoutService),
		subscription: subscription.NewHandler(subscriptionService),
		usage:        usage.NewHandler(gate),
		webhook:      subscription.NewWebhookHandler(payments, reconciler, lg.Named("webhook")),
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		// Chat replies wait on the LLM for up to UPSTREAM_TIMEOUT.
		WriteTimeout: cfg.UpstreamTimeout + 15*time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		lg.Info("http server listening", zap.String("addr", cfg.HTTPAddr), zap.String("env", cfg.AppEnv))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			lg.Fatal("http server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	lg.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		lg.Error("graceful shutdown failed", zap.Error(err))
	}
}
