package response

import "github.com/gin-gonic/gin"

// Envelope is the body of every JSON response.
type Envelope struct {
	Success bool       `json:"success"`
	Data    any        `json:"data,omitempty"`
	Error   *ErrorBody `json:"error,omitempty"`
}

type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

func Success(c *gin.Context, statusCode int, data any) {
	c.JSON(statusCode, Envelope{Success: true, Data: data})
}

// Error writes a failure envelope. Code is a stable machine-readable token.
func Error(c *gin.Context, statusCode int, code, message string) {
	ErrorWithDetails(c, statusCode, code, message, nil)
}

func ErrorWithDetails(c *gin.Context, statusCode int, code, message string, details any) {
	c.JSON(statusCode, Envelope{
		Success: false,
		Error:   &ErrorBody{Code: code, Message: message, Details: details},
	})
}
