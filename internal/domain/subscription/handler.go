package subscription

import (
	"io"
	"net/http"

	"buildadvisor/internal/domain/billing"
	"buildadvisor/internal/middleware"
	"buildadvisor/internal/pkg/apperr"
	"buildadvisor/internal/pkg/response"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// maxWebhookBody bounds the signed payload read from the provider.
const maxWebhookBody = 256 << 10

var (
	errMalformedBody = apperr.New(apperr.KindInvalidInput, "Request body must be valid JSON.")
	errBadSignature  = apperr.New(apperr.KindInvalidInput, "Webhook signature verification failed.")
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Cancel godoc
// @Summary Cancel the subscription at the end of the billing period
// @Tags Subscription
// @Security BearerAuth
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /subscription/cancel [post]
func (h *Handler) Cancel(c *gin.Context) {
	user, ok := middleware.RequireUser(c)
	if !ok {
		return
	}

	res, err := h.service.CancelAtPeriodEnd(c.Request.Context(), user.ID)
	if err != nil {
		response.FromError(c, err)
		return
	}

	body := gin.H{
		"status":           res.Status,
		"plan":             nullable(string(res.Plan)),
		"cancelAt":         res.CancelAt,
		"currentPeriodEnd": res.CurrentPeriodEnd,
		"message":          res.Message,
	}
	if res.AlreadyCanceled {
		body["alreadyCanceled"] = true
	}
	if res.AlreadyRequested {
		body["alreadyRequested"] = true
	}
	response.OK(c, http.StatusOK, body)
}

// Change godoc
// @Summary Switch the subscription to another plan with proration
// @Tags Subscription
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param body body ChangePlanRequest true "Target plan"
// @Success 200 {object} map[string]interface{}
// @Router /subscription/change [post]
func (h *Handler) Change(c *gin.Context) {
	user, ok := middleware.RequireUser(c)
	if !ok {
		return
	}

	var req ChangePlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.FromError(c, errMalformedBody.WithCause(err))
		return
	}

	res, err := h.service.ChangePlan(c.Request.Context(), user.ID, req.Plan)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.OK(c, http.StatusOK, gin.H{
		"plan":             res.Plan,
		"status":           res.Status,
		"currentPeriodEnd": res.CurrentPeriodEnd,
		"cancelAt":         res.CancelAt,
		"subscriptionId":   res.SubscriptionID,
		"customerId":       res.CustomerID,
	})
}

// Summary godoc
// @Summary Mirrored subscription of the caller
// @Tags Subscription
// @Security BearerAuth
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /subscription/summary [get]
func (h *Handler) Summary(c *gin.Context) {
	user, ok := middleware.RequireUser(c)
	if !ok {
		return
	}

	p, err := h.service.Summary(c.Request.Context(), user.ID)
	if err != nil {
		response.FromError(c, err)
		return
	}

	plan, _ := p.PlanValue()
	status, _ := p.StatusValue()
	response.OK(c, http.StatusOK, gin.H{
		"plan":             nullable(string(plan)),
		"status":           nullable(string(status)),
		"hasActivePlan":    p.HasActivePlan(),
		"currentPeriodEnd": p.PeriodEnd(),
		"cancelAt":         p.CancelAtTime(),
		"subscriptionId":   nullable(p.SubscriptionIDValue()),
		"customerId":       nullable(p.CustomerIDValue()),
		"updatedAt":        p.UpdatedAt,
	})
}

// WebhookHandler receives provider events. It is mounted without user auth;
// the signature is the authentication.
type WebhookHandler struct {
	parser     billing.WebhookParser
	reconciler *Reconciler
	log        *zap.Logger
}

func NewWebhookHandler(parser billing.WebhookParser, reconciler *Reconciler, log *zap.Logger) *WebhookHandler {
	return &WebhookHandler{parser: parser, reconciler: reconciler, log: log}
}

func (h *WebhookHandler) Receive(c *gin.Context) {
	payload, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBody))
	if err != nil {
		response.FromError(c, errMalformedBody.WithCause(err))
		return
	}

	ev, err := h.parser.ParseWebhook(payload, c.GetHeader("Stripe-Signature"))
	if err != nil {
		h.log.Warn("webhook rejected", zap.Error(err))
		response.FromError(c, errBadSignature.WithCause(err))
		return
	}

	if err := h.reconciler.Handle(c.Request.Context(), ev); err != nil {
		response.FromError(c, err)
		return
	}
	response.OK(c, http.StatusOK, gin.H{"received": true})
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
