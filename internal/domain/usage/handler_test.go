package usage

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"buildadvisor/internal/database/dbtest"
	"buildadvisor/internal/domain/profile"
	"buildadvisor/internal/middleware"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRouter(t *testing.T) (*gin.Engine, Repository) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := dbtest.Open(t, &profile.UserProfile{}, &Counters{})
	counters := NewRepository(db)
	h := NewHandler(NewGate(profile.NewRepository(db), counters))

	r := gin.New()
	r.Use(func(c *gin.Context) {
		if id := c.GetHeader("X-Test-User-ID"); id != "" {
			middleware.SetUser(c, middleware.User{ID: id})
		}
		c.Next()
	})
	RegisterRoutes(r.Group("/api"), h)
	return r, counters
}

func TestSummary_Unauthorized(t *testing.T) {
	r, _ := setupTestRouter(t)

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/usage/summary", nil))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestSummary_ReportsCounters(t *testing.T) {
	r, counters := setupTestRouter(t)
	require.NoError(t, counters.IncrementAfterSuccess(context.Background(), "u1", false))

	req := httptest.NewRequest(http.MethodGet, "/api/usage/summary", nil)
	req.Header.Set("X-Test-User-ID", "u1")
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var body map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, true, body["ok"])
	assert.Equal(t, float64(1), body["totalAnswers"])
	assert.Equal(t, float64(1), body["freeAnswersUsed"])
	assert.Equal(t, float64(2), body["remainingFree"])
	assert.Equal(t, float64(3), body["limit"])
	assert.Equal(t, false, body["hasActivePlan"])
	assert.Nil(t, body["plan"])
	assert.NotNil(t, body["lastAnswerAt"])
}
