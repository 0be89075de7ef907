package httpapi

import (
	"net/http"

	eduAuth "github.com/MrEthical07/eduAuth"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type successBody struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

type errorBody struct {
	Success bool   `json:"success"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

func respondSuccess(c *gin.Context, code int, message string, data any) {
	c.JSON(code, successBody{Success: true, Message: message, Data: data})
}

func respondFail(c *gin.Context, code int, message string) {
	status := "fail"
	if code >= http.StatusInternalServerError {
		status = "error"
	}
	c.AbortWithStatusJSON(code, errorBody{Success: false, Status: status, Message: message})
}

// respondError renders an engine error. Internal causes are already logged by
// the engine, so only the request line is logged here.
func respondError(c *gin.Context, err error) {
	code := eduAuth.StatusCode(err)
	if code >= http.StatusInternalServerError {
		requestLogger(c).Error("request failed",
			zap.Int("status", code),
			zap.String("path", c.Request.URL.Path),
		)
	}
	respondFail(c, code, eduAuth.PublicMessage(err))
}
