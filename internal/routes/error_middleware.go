package routes

import (
	"log/slog"

	"github.com/gin-gonic/gin"
)

type errorStruct struct {
	Succeed bool   `json:"success"`
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// ErrorHandler captures errors and returns a consistent JSON error
// response with the status code derived from the error type.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next() // Process the request first

		if len(c.Errors) == 0 {
			return
		}

		// Use the last error (most recent)
		err := c.Errors.Last().Err

		statusCode := GetErrorStatus(err)
		message := GetErrorMessage(err)

		if statusCode >= 500 {
			slog.Error("Request failed with server error",
				"error", err,
				"status", statusCode,
				"path", c.Request.URL.Path,
				"method", c.Request.Method,
			)
		} else {
			slog.Warn("Request failed with client error",
				"error", err,
				"status", statusCode,
				"path", c.Request.URL.Path,
				"method", c.Request.Method,
			)
		}

		if !c.Writer.Written() {
			c.AbortWithStatusJSON(statusCode, errorStruct{
				Succeed: false,
				Status:  "error",
				Message: message,
			})
		}
	}
}

// AbortWithError aborts the request with an error and adds it to the Gin
// error chain for the ErrorHandler middleware.
func AbortWithError(c *gin.Context, err error) {
	c.Error(err)
	c.Abort()
	c.Status(GetErrorStatus(err))
}
