package utils

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// GenericServerMessage is shown to users for any unexpected failure.
const GenericServerMessage = "حدث خطأ في الخادم"

// APIResponse is the envelope for acknowledgements and errors. Resource
// payloads are written bare.
type APIResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
	Error   interface{} `json:"error,omitempty"`
}

func SuccessResponse(c *gin.Context, message string, data interface{}) {
	c.JSON(http.StatusOK, APIResponse{Success: true, Message: message, Data: data})
}

// ErrorResponse writes a failure envelope. detail is optional and usually
// the binding or validation error text.
func ErrorResponse(c *gin.Context, status int, message string, detail interface{}) {
	c.JSON(status, APIResponse{Message: message, Error: detail})
}

// AbortWithError writes a failure envelope and stops the handler chain.
func AbortWithError(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, APIResponse{Message: message})
}

func BadRequestResponse(c *gin.Context, message string, detail interface{}) {
	ErrorResponse(c, http.StatusBadRequest, message, detail)
}

func ForbiddenResponse(c *gin.Context, message string) {
	ErrorResponse(c, http.StatusForbidden, message, nil)
}

func PayloadTooLargeResponse(c *gin.Context, message string) {
	ErrorResponse(c, http.StatusRequestEntityTooLarge, message, nil)
}

// InternalServerErrorResponse logs err and hides it behind the generic message.
func InternalServerErrorResponse(c *gin.Context, logMessage string, err error) {
	LogError(logMessage, err)
	ErrorResponse(c, http.StatusInternalServerError, GenericServerMessage, nil)
}
