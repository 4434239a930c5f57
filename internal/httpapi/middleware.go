package httpapi

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/trace"

	"github.com/vladislavdragonenkov/watermate/internal/domain"
	"github.com/vladislavdragonenkov/watermate/internal/metrics"
)

const (
	userContextKey     = "watermate.user"
	tokenContextKey    = "watermate.token"
	authorizationField = "Authorization"
)

// requestLogger пишет по строке на запрос вместе с trace_id.
func requestLogger(logger *log.Entry) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		traceID := ""
		if sc := trace.SpanFromContext(c.Request.Context()).SpanContext(); sc.IsValid() {
			traceID = sc.TraceID().String()
		}

		entry := logger.WithFields(log.Fields{
			"trace_id": traceID,
			"status":   c.Writer.Status(),
			"method":   c.Request.Method,
			"path":     path,
			"query":    query,
			"ip":       c.ClientIP(),
			"latency":  time.Since(start),
		})
		if c.Writer.Status() >= http.StatusInternalServerError {
			entry.Warn("http request")
			return
		}
		entry.Debug("http request")
	}
}

func requestMetrics(m *metrics.HTTPMetrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}

		c.Next()

		m.ObserveRequest(c.Request.Method, path, strconv.Itoa(c.Writer.Status()), time.Since(start))
	}
}

// authenticate проверяет bearer-токен. При required=false запрос без токена пропускается,
// но неверный токен всё равно отклоняется.
func (h *Handler) authenticate(required bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c.GetHeader(authorizationField))
		if token == "" {
			if required {
				abortWithError(c, http.StatusUnauthorized, "missing bearer token")
				return
			}
			c.Next()
			return
		}

		user, err := h.gate.Authenticate(token)
		if err != nil {
			h.fail(c, err)
			c.Abort()
			return
		}
		c.Set(userContextKey, user)
		c.Set(tokenContextKey, token)
		c.Next()
	}
}

func requireRole(roles ...domain.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := currentUser(c)
		if !ok {
			abortWithError(c, http.StatusUnauthorized, "authentication required")
			return
		}
		for _, role := range roles {
			if user.Role == role {
				c.Next()
				return
			}
		}
		abortWithError(c, http.StatusForbidden, "role "+string(user.Role)+" is not allowed here")
	}
}

func currentUser(c *gin.Context) (domain.User, bool) {
	value, ok := c.Get(userContextKey)
	if !ok {
		return domain.User{}, false
	}
	user, ok := value.(domain.User)
	return user, ok
}

func bearerToken(header string) string {
	value := strings.TrimSpace(header)
	if len(value) > 7 && strings.EqualFold(value[:7], "bearer ") {
		return strings.TrimSpace(value[7:])
	}
	return ""
}

func abortWithError(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, gin.H{"error": message})
}
