package middlewares

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// gin context keys
const (
	CtxRequestID = "request_id"
	CtxActor     = "auth.actor"
	CtxJobID     = "job_id"
)

func abortWithError(c *gin.Context, status int, code, message string) {
	body := gin.H{
		"error": message,
		"code":  code,
	}
	if id := c.GetString(CtxRequestID); id != "" {
		body["requestId"] = id
	}
	c.AbortWithStatusJSON(status, body)
}

func abortUnauthorized(c *gin.Context, message string) {
	abortWithError(c, http.StatusUnauthorized, "unauthorized", message)
}
