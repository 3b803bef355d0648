package http

import "github.com/gin-gonic/gin"

// ErrorResponse writes {"error": message}.
func ErrorResponse(c *gin.Context, code int, message string) {
	c.JSON(code, gin.H{"error": message})
}

// SuccessResponse writes data as the body.
func SuccessResponse(c *gin.Context, code int, data interface{}) {
	c.JSON(code, data)
}

// SuccessFlag is the body of operations that only report success.
type SuccessFlag struct {
	Success bool `json:"success"`
}
