package httpapi

import (
	"net/http"
	"runtime/debug"
	"time"

	eduAuth "github.com/MrEthical07/eduAuth"
	"github.com/MrEthical07/eduAuth/middleware"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	headerRequestID = "X-Request-ID"

	ctxLogger = "eduauth.logger"
	ctxAuth   = "eduauth.auth"
)

// RequestContext assigns a request id, threads it and the client IP into the
// request context for the engine, and logs each request on completion.
func RequestContext(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(headerRequestID)
		if requestID == "" || len(requestID) > 64 {
			requestID = uuid.New().String()
		}
		c.Header(headerRequestID, requestID)

		reqLog := log.With(zap.String("request_id", requestID))
		c.Set(ctxLogger, reqLog)

		ctx := eduAuth.WithRequestID(c.Request.Context(), requestID)
		ctx = eduAuth.WithClientIP(ctx, c.ClientIP())
		c.Request = c.Request.WithContext(ctx)

		start := time.Now()
		c.Next()

		reqLog.Info("request completed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}

// Recovery turns a handler panic into the 500 envelope.
func Recovery(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				log.Error("panic recovered",
					zap.Any("error", err),
					zap.ByteString("stack", debug.Stack()),
					zap.String("method", c.Request.Method),
					zap.String("path", c.Request.URL.Path),
				)
				respondFail(c, http.StatusInternalServerError, eduAuth.ErrInternal.Message)
			}
		}()
		c.Next()
	}
}

func requestLogger(c *gin.Context) *zap.Logger {
	if v, ok := c.Get(ctxLogger); ok {
		if log, ok := v.(*zap.Logger); ok {
			return log
		}
	}
	return zap.NewNop()
}

// Guard authenticates the bearer token and stores the caller for handlers.
func Guard(engine *eduAuth.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		auth, err := engine.Authenticate(c.Request.Context(), middleware.BearerToken(c.GetHeader("Authorization")))
		if err != nil {
			respondError(c, err)
			return
		}
		c.Set(ctxAuth, auth)
		c.Next()
	}
}

// RequireRole must follow Guard.
func RequireRole(engine *eduAuth.Engine, role eduAuth.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		auth, ok := authFrom(c)
		if !ok {
			respondError(c, eduAuth.ErrAuthRequired)
			return
		}
		if err := engine.RequireRole(c.Request.Context(), auth, role); err != nil {
			respondError(c, err)
			return
		}
		c.Next()
	}
}

func authFrom(c *gin.Context) (eduAuth.AuthContext, bool) {
	v, ok := c.Get(ctxAuth)
	if !ok {
		return eduAuth.AuthContext{}, false
	}
	auth, ok := v.(eduAuth.AuthContext)
	return auth, ok
}
