package checkout

import (
	"errors"
	"net/http"

	"buildadvisor/internal/middleware"
	"buildadvisor/internal/pkg/apperr"
	"buildadvisor/internal/pkg/response"

	"github.com/gin-gonic/gin"
)

var errMalformedBody = apperr.New(apperr.KindInvalidInput, "Request body must be valid JSON.")

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// CreateSession godoc
// @Summary Start a subscription checkout
// @Tags Checkout
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param body body CreateSessionRequest true "Plan to purchase"
// @Success 200 {object} map[string]interface{}
// @Router /checkout/session [post]
func (h *Handler) CreateSession(c *gin.Context) {
	user, ok := middleware.RequireUser(c)
	if !ok {
		return
	}

	var req CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.FromError(c, errMalformedBody.WithCause(err))
		return
	}

	url, err := h.service.CreateSession(c.Request.Context(), user.ID, user.Email, req.Plan)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.OK(c, http.StatusOK, gin.H{"url": url})
}

// Confirm godoc
// @Summary Confirm a completed checkout and sync the subscription
// @Tags Checkout
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param body body ConfirmRequest true "Checkout session id"
// @Success 200 {object} map[string]interface{}
// @Router /checkout/confirm [post]
func (h *Handler) Confirm(c *gin.Context) {
	user, ok := middleware.RequireUser(c)
	if !ok {
		return
	}

	var req ConfirmRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.FromError(c, errMalformedBody.WithCause(err))
		return
	}

	conf, err := h.service.Confirm(c.Request.Context(), user.ID, req.SessionID)
	if err != nil {
		var incomplete *IncompleteError
		if errors.As(err, &incomplete) {
			response.FromErrorWithDetails(c, err, gin.H{"paymentStatus": incomplete.PaymentStatus})
			return
		}
		response.FromError(c, err)
		return
	}

	response.OK(c, http.StatusOK, gin.H{
		"plan":             conf.Plan,
		"status":           conf.Status,
		"currentPeriodEnd": conf.CurrentPeriodEnd,
		"customerId":       conf.CustomerID,
		"subscriptionId":   conf.SubscriptionID,
	})
}
