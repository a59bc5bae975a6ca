package chat

import (
	"errors"
	"net/http"

	"buildadvisor/internal/middleware"
	"buildadvisor/internal/pkg/apperr"
	"buildadvisor/internal/pkg/response"

	"github.com/gin-gonic/gin"
)

// maxBodyBytes leaves room for one base64 attachment plus history.
const maxBodyBytes = 12 << 20

var errMalformedBody = apperr.New(apperr.KindInvalidInput, "Request body must be valid JSON.")

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Send godoc
// @Summary Ask the advisor one question
// @Description Free users get a limited number of answers; subscribers are not limited.
// @Tags Chat
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param body body Request true "Message, persona plan and history"
// @Success 200 {object} map[string]interface{}
// @Failure 403 {object} map[string]interface{} "limitExceeded"
// @Router /chat [post]
func (h *Handler) Send(c *gin.Context) {
	user, ok := middleware.RequireUser(c)
	if !ok {
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBodyBytes)
	var req Request
	if err := c.ShouldBindJSON(&req); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			response.FromError(c, ErrRequestBodyTooBig.WithCause(err))
			return
		}
		response.FromError(c, errMalformedBody.WithCause(err))
		return
	}

	reply, err := h.service.Reply(c.Request.Context(), user.ID, req)
	if err != nil {
		var quota *QuotaError
		if errors.As(err, &quota) {
			details := quota.Decision.Fields()
			details["limitExceeded"] = true
			details["remainingFree"] = 0
			response.FromErrorWithDetails(c, err, details)
			return
		}
		response.FromError(c, err)
		return
	}

	response.OK(c, http.StatusOK, gin.H{
		"message":         reply.Message,
		"totalAnswers":    reply.TotalAnswers,
		"freeAnswersUsed": reply.FreeAnswersUsed,
		"remainingFree":   reply.RemainingFree,
		"limit":           reply.Limit,
		"hasActivePlan":   reply.HasActivePlan,
		"plan":            nullable(string(reply.Plan)),
		"status":          nullable(string(reply.Status)),
	})
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
