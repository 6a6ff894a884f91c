package middleware

import (
	"net/http"
	"runtime/debug" // For logging the stack trace of the panicking goroutine

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RecoveryMiddleware returns a gin.HandlerFunc that recovers from any panic
// raised by a downstream handler, logs it with a stack trace and answers with
// the standard internal error envelope.
func RecoveryMiddleware(logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		panic("RecoveryMiddleware requires a non-nil zap.Logger instance")
	}
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				// debug.Stack() reports the goroutine that panicked, which is
				// the one running this deferred function.
				logger.Error("Panic recovered",
					zap.Any("error", err),
					zap.String("stacktrace", string(debug.Stack())),
					zap.String("path", c.Request.URL.Path),
					zap.String("method", c.Request.Method),
					zap.String("request_id", c.GetString("requestID")), // Set by RequestLogger
				)

				// A handler may already have started the response; writing the
				// header twice would only produce a gin warning.
				if !c.Writer.Written() {
					c.JSON(http.StatusInternalServerError, errorResponse("internal", "Internal Server Error"))
				}

				// Stop the remaining handlers in the chain.
				c.Abort()
			}
		}()

		// Call the next handler. A panic in it is caught by the defer above.
		c.Next()
	}
}
