package apperr

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kottz/kolmodin-go/internal/logger"
)

// ErrorHandler converts an AppError left on the gin context into the
// standard JSON error response, logging server errors at error and client
// errors at warn. A response already written (e.g. by Abort) is left as is.
func ErrorHandler() gin.HandlerFunc {
	log := logger.HTTP()
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}

		err := c.Errors.Last()
		if appErr, ok := err.Err.(*AppError); ok {
			if appErr.StatusCode >= 500 {
				log.Error().Str("code", appErr.Code).Str("details", appErr.Details).Msg(appErr.Message)
			} else {
				log.Warn().Str("code", appErr.Code).Msg(appErr.Message)
			}
			if !c.Writer.Written() {
				c.JSON(appErr.StatusCode, appErr.ToResponse())
			}
			return
		}

		log.Error().Err(err.Err).Msg("unhandled error")
		if !c.Writer.Written() {
			c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error", Status: http.StatusInternalServerError})
		}
	}
}

// Recovery recovers from a panic in a handler and reports it the same way
// an unexpected agent panic is reported elsewhere in the core: logged,
// never crashing the process.
func Recovery() gin.HandlerFunc {
	log := logger.HTTP()
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.Error().Interface("panic", r).Msg("recovered from panic in HTTP handler")
				c.AbortWithStatusJSON(http.StatusInternalServerError, ErrorResponse{
					Error:  "internal server error",
					Status: http.StatusInternalServerError,
				})
			}
		}()
		c.Next()
	}
}

// Abort aborts the request with the given AppError.
func Abort(c *gin.Context, err *AppError) {
	c.Error(err)
	c.AbortWithStatusJSON(err.StatusCode, err.ToResponse())
}
