package middleware

import (
	"strings"

	"buildadvisor/internal/pkg/jwt"
	"buildadvisor/internal/pkg/response"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	userIDKey = "user_id"
	emailKey  = "email"
)

// User is the identity resolved for the current request.
type User struct {
	ID    string
	Email string
}

// TokenVerifier validates a bearer token issued by the identity provider.
type TokenVerifier interface {
	Verify(token string) (*jwt.Claims, error)
}

// Auth resolves the caller from the Authorization header. Every failure gets
// the same login prompt; the reason is only logged.
// With disabled set, requests run as a fixed local user (dev only).
func Auth(verifier TokenVerifier, disabled bool, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if disabled {
			SetUser(c, User{ID: "local-dev", Email: "dev@localhost"})
			c.Next()
			return
		}

		token, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			log.Debug("auth failure: missing or malformed authorization header",
				zap.String("path", c.Request.URL.Path))
			response.Unauthorized(c)
			return
		}

		claims, err := verifier.Verify(token)
		if err != nil {
			log.Info("auth failure: token rejected",
				zap.String("path", c.Request.URL.Path),
				zap.Error(err))
			response.Unauthorized(c)
			return
		}

		SetUser(c, User{ID: claims.Subject, Email: claims.Email})
		c.Next()
	}
}

// SetUser stores the caller on the gin context.
func SetUser(c *gin.Context, u User) {
	c.Set(userIDKey, u.ID)
	c.Set(emailKey, u.Email)
}

// CurrentUser returns the caller resolved by Auth.
func CurrentUser(c *gin.Context) (User, bool) {
	id := c.GetString(userIDKey)
	if id == "" {
		return User{}, false
	}
	return User{ID: id, Email: c.GetString(emailKey)}, true
}

// RequireUser returns the caller or writes the login prompt and reports false.
func RequireUser(c *gin.Context) (User, bool) {
	u, ok := CurrentUser(c)
	if !ok {
		response.Unauthorized(c)
	}
	return u, ok
}

func bearerToken(header string) (string, bool) {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	return token, token != ""
}
