package response

import (
	"buildadvisor/internal/pkg/apperr"

	"github.com/gin-gonic/gin"
)

// OK writes a flat success body with ok=true merged into data.
func OK(c *gin.Context, statusCode int, data gin.H) {
	body := gin.H{"ok": true}
	for k, v := range data {
		body[k] = v
	}
	c.JSON(statusCode, body)
}

func Error(c *gin.Context, statusCode int, code string, message string) {
	c.JSON(statusCode, gin.H{
		"ok": false,
		"error": gin.H{
			"code":    code,
			"message": message,
		},
	})
}

// ErrorWithDetails writes an error body and merges extra top-level fields,
// so clients can branch on flags such as limitExceeded without parsing messages.
func ErrorWithDetails(c *gin.Context, statusCode int, code string, message string, extra gin.H) {
	body := gin.H{
		"ok": false,
		"error": gin.H{
			"code":    code,
			"message": message,
		},
	}
	for k, v := range extra {
		body[k] = v
	}
	c.JSON(statusCode, body)
}

// FromError maps err through the apperr taxonomy and records it on the context
// so the logging middleware can report the raw cause.
func FromError(c *gin.Context, err error) {
	FromErrorWithDetails(c, err, nil)
}

func FromErrorWithDetails(c *gin.Context, err error, extra gin.H) {
	_ = c.Error(err)
	kind := apperr.KindOf(err)
	ErrorWithDetails(c, apperr.HTTPStatus(kind), string(kind), apperr.PublicMessage(err), extra)
}

// Unauthorized is the uniform login prompt. It never reveals why identity failed.
func Unauthorized(c *gin.Context) {
	c.AbortWithStatusJSON(apperr.HTTPStatus(apperr.KindUnauthenticated), gin.H{
		"ok": false,
		"error": gin.H{
			"code":    string(apperr.KindUnauthenticated),
			"message": "Please log in and try again.",
		},
	})
}
