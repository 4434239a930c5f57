package httpapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/vladislavdragonenkov/watermate/internal/domain"
	"github.com/vladislavdragonenkov/watermate/internal/service/idempotency"
)

var errForbidden = errors.New("access denied")

// fail отвечает ошибкой с HTTP-статусом по виду ошибки.
func (h *Handler) fail(c *gin.Context, err error) {
	status, message := httpError(err)
	if status >= http.StatusInternalServerError {
		h.logger.WithError(err).WithField("path", c.FullPath()).Error("request failed")
	}
	c.JSON(status, gin.H{"error": message})
}

func httpError(err error) (int, string) {
	var failure *idempotency.Failure
	if errors.As(err, &failure) {
		if failure.Code < 400 || failure.Code > 599 {
			return http.StatusInternalServerError, failure.Error()
		}
		return failure.Code, failure.Error()
	}

	switch {
	case errors.Is(err, errForbidden):
		return http.StatusForbidden, err.Error()
	case errors.Is(err, domain.ErrIdempotencyHashMismatch):
		return http.StatusUnprocessableEntity, "idempotency key is already used with different request payload"
	case errors.Is(err, domain.ErrIdempotencyInProgress):
		return http.StatusConflict, err.Error()
	case domain.IsVersionConflict(err):
		return http.StatusConflict, domain.ErrOrderVersionConflict.Error()
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, err.Error()
	case errors.Is(err, domain.ErrInvalidCredential):
		return http.StatusUnauthorized, err.Error()
	case errors.Is(err, domain.ErrInvalidOrder),
		errors.Is(err, domain.ErrOrderStatusUnknown),
		errors.Is(err, domain.ErrPaymentStatusUnknown):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, domain.ErrInvalidTransition):
		return http.StatusConflict, err.Error()
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

func classifyFailure(err error) idempotency.Failure {
	status, message := httpError(err)
	return idempotency.Failure{Code: status, Message: message}
}
