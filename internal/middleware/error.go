package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	apperrors "github.com/roboclub/notification-api/pkg/errors"
	"github.com/roboclub/notification-api/pkg/httputil"
)

// ErrorHandler translates errors attached to the gin context into the shared
// response envelope. Handlers normally respond directly; this is the net for
// errors added via c.Error.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}

		requestID := c.GetString(ContextRequestID)
		for _, e := range c.Errors {
			log.Error().
				Err(e.Err).
				Str("request_id", requestID).
				Str("path", c.Request.URL.Path).
				Str("method", c.Request.Method).
				Msg("request error")
		}

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		status := http.StatusInternalServerError
		message := "internal server error"
		if appErr, ok := apperrors.AsAppError(lastErr.Err); ok {
			status = appErr.HTTPStatus()
			message = appErr.Message
		}

		c.JSON(status, httputil.Response{
			Success: false,
			Error:   &httputil.Error{Code: status, Message: message},
		})
	}
}
