package httpapi

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/watermate/internal/service/idempotency"
)

const (
	idempotencyKeyHeader      = "Idempotency-Key"
	idempotencyReplayedHeader = "Idempotent-Replayed"
)

// idempotent выполняет run не больше одного раза на Idempotency-Key и отвечает
// successStatus с JSON результата. Без заголовка run выполняется как обычно.
//
// Отпечаток запроса включает пользователя и путь, поэтому тот же ключ на другом
// заказе или от другого пользователя считается конфликтом.
func (h *Handler) idempotent(c *gin.Context, successStatus int, payload []byte, run func(context.Context) (any, error)) {
	handler := func(ctx context.Context) ([]byte, error) {
		resp, err := run(ctx)
		if err != nil {
			return nil, err
		}
		return json.Marshal(resp)
	}

	key := idempotency.NormalizeKey(c.GetHeader(idempotencyKeyHeader))
	if h.guard == nil || key == "" {
		body, err := handler(c.Request.Context())
		if err != nil {
			h.fail(c, err)
			return
		}
		c.Data(successStatus, gin.MIMEJSON, body)
		return
	}

	user, _ := currentUser(c)
	method := "http:" + c.Request.Method + " " + c.FullPath()
	fingerprint := make([]byte, 0, len(user.ID)+len(c.Request.URL.Path)+len(payload)+2)
	fingerprint = append(fingerprint, user.ID...)
	fingerprint = append(fingerprint, '\n')
	fingerprint = append(fingerprint, c.Request.URL.Path...)
	fingerprint = append(fingerprint, '\n')
	fingerprint = append(fingerprint, payload...)

	body, replayed, err := h.guard.Do(c.Request.Context(), key, method, idempotency.RequestHash(method, fingerprint), classifyFailure, handler)
	if err != nil {
		h.fail(c, err)
		return
	}
	if replayed {
		h.logger.WithFields(log.Fields{"idempotency_key": key, "method": method}).Debug("idempotent replay")
		c.Header(idempotencyReplayedHeader, "true")
	}
	if len(body) == 0 {
		c.Status(http.StatusNoContent)
		return
	}
	c.Data(successStatus, gin.MIMEJSON, body)
}
