package usage

import (
	"net/http"

	"buildadvisor/internal/middleware"
	"buildadvisor/internal/pkg/response"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	gate *Gate
}

func NewHandler(gate *Gate) *Handler {
	return &Handler{gate: gate}
}

// Summary godoc
// @Summary Usage counters and free-tier allowance for the caller
// @Tags Usage
// @Security BearerAuth
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /usage/summary [get]
func (h *Handler) Summary(c *gin.Context) {
	user, ok := middleware.RequireUser(c)
	if !ok {
		return
	}

	d, err := h.gate.Check(c.Request.Context(), user.ID)
	if err != nil {
		response.FromError(c, err)
		return
	}

	body := d.Fields()
	body["lastAnswerAt"] = d.LastAnswerAt
	response.OK(c, http.StatusOK, body)
}

// Fields renders the decision snapshot with the client's field names.
// Unset plan and status render as null.
func (d Decision) Fields() gin.H {
	return gin.H{
		"totalAnswers":    d.TotalAnswers,
		"freeAnswersUsed": d.FreeAnswersUsed,
		"remainingFree":   d.RemainingFree,
		"limit":           d.Limit,
		"hasActivePlan":   d.HasActivePlan,
		"plan":            nullable(string(d.Plan)),
		"status":          nullable(string(d.Status)),
	}
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
