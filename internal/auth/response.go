package auth

import (
	"fmt"
	"math"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Token   string `json:"token,omitempty"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
	Code    string `json:"code,omitempty"`
}

// errorExposure controls whether internal error details reach the client.
type errorExposure bool

func (x errorExposure) render(c *gin.Context, log *zap.Logger, operation string, err error) (int, envelope) {
	e := AsError(err)
	if e.Kind == KindRateLimit && e.RetryAfter > 0 {
		c.Header("Retry-After", strconv.Itoa(int(math.Ceil(e.RetryAfter.Seconds()))))
	}

	if e.Kind != KindInternal {
		return e.Kind.HTTPStatus(), envelope{Error: e.Message, Code: e.Code}
	}

	log.Error("request failed",
		zap.String("operation", operation),
		zap.String("path", c.Request.URL.Path),
		zap.Error(err))

	msg := MsgInternalServerError
	if x {
		msg = fmt.Sprintf("%s failed: %v", operation, err)
	}
	return http.StatusInternalServerError, envelope{Error: msg}
}

func (x errorExposure) respond(c *gin.Context, log *zap.Logger, operation string, err error) {
	status, body := x.render(c, log, operation, err)
	c.JSON(status, body)
}

func (x errorExposure) abort(c *gin.Context, log *zap.Logger, operation string, err error) {
	status, body := x.render(c, log, operation, err)
	c.AbortWithStatusJSON(status, body)
}

// Recovery turns panics into the regular 500 envelope.
func Recovery(log *zap.Logger, exposeInternal bool) gin.HandlerFunc {
	x := errorExposure(exposeInternal)
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		x.abort(c, log, "request", fmt.Errorf("panic: %v", recovered))
	})
}
