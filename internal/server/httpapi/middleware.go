package httpapi

import (
	"time"

	"github.com/dmitrijs2005/wxcounter/internal/common"
	"github.com/dmitrijs2005/wxcounter/internal/logging"
	"github.com/dmitrijs2005/wxcounter/internal/server/auth"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	ctxLoggerKey    = "logger"
	ctxRequestIDKey = "reqid"
	ctxUserIDKey    = "uid"
)

// RequestID takes X-Request-Id from the caller or generates one, echoes it on
// the response and binds a logger carrying it to the request.
func RequestID(base logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(common.RequestIDHeaderName)
		if id == "" {
			id = uuid.NewString()
		}
		c.Header(common.RequestIDHeaderName, id)
		c.Set(ctxRequestIDKey, id)
		c.Set(ctxLoggerKey, base.With("reqid", id))
		c.Next()
	}
}

// AccessLog writes one line per finished request.
func AccessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		loggerFrom(c).Info(c.Request.Context(), "request",
			"method", c.Request.Method,
			"uri", c.Request.RequestURI,
			"status", c.Writer.Status(),
			"latency", time.Since(start).String(),
		)
	}
}

// Authenticate resolves the bearer token into a user id. Any failure,
// including a missing header, is answered with 400 Invalid token.
func Authenticate(secret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := auth.ParseBearer(c.GetHeader(common.AuthorizationHeaderName))
		if err != nil {
			abortWithError(c, common.ErrInvalidToken)
			return
		}

		uid, err := auth.GetUserIDFromToken(token, secret)
		if err != nil {
			loggerFrom(c).Debug(c.Request.Context(), "token rejected", "error", err.Error())
			abortWithError(c, common.ErrInvalidToken)
			return
		}

		c.Set(ctxUserIDKey, uid)
		c.Set(ctxLoggerKey, loggerFrom(c).With("uid", uid))
		c.Next()
	}
}

func loggerFrom(c *gin.Context) logging.Logger {
	if v, ok := c.Get(ctxLoggerKey); ok {
		if l, ok := v.(logging.Logger); ok {
			return l
		}
	}
	return logging.Nop{}
}

func userIDFrom(c *gin.Context) int64 {
	return c.GetInt64(ctxUserIDKey)
}
