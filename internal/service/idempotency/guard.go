// Package idempotency защищает мутирующие запросы от повторного выполнения
// и периодически чистит просроченные ключи.
package idempotency

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/watermate/internal/domain"
	"github.com/vladislavdragonenkov/watermate/internal/metrics"
)

// DefaultTTL — сколько хранится результат запроса по ключу.
const DefaultTTL = 24 * time.Hour

// Исходы запроса для метрик.
const (
	OutcomeExecuted   = "executed"
	OutcomeReplayed   = "replayed"
	OutcomeConflict   = "conflict"
	OutcomeInProgress = "in_progress"
)

// Failure — сохранённая ошибка запроса. Code трактует транспорт
// (код gRPC или HTTP-статус), поэтому ключи разных транспортов не пересекаются по method.
type Failure struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (f *Failure) Error() string {
	if f.Message == "" {
		return "previous request with the same idempotency key failed"
	}
	return f.Message
}

// Classifier переводит ошибку обработчика в сохраняемую Failure.
type Classifier func(err error) Failure

// Guard выполняет обработчик не больше одного раза на ключ.
type Guard struct {
	repo    domain.IdempotencyRepository
	ttl     time.Duration
	now     func() time.Time
	logger  *log.Entry
	metrics *metrics.IdempotencyMetrics
}

// GuardOption настраивает Guard.
type GuardOption func(*Guard)

// WithTTL задаёт срок хранения результата.
func WithTTL(ttl time.Duration) GuardOption {
	return func(g *Guard) {
		if ttl > 0 {
			g.ttl = ttl
		}
	}
}

// WithGuardLogger задаёт логгер.
func WithGuardLogger(logger *log.Entry) GuardOption {
	return func(g *Guard) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// WithGuardMetrics подключает метрики.
func WithGuardMetrics(m *metrics.IdempotencyMetrics) GuardOption {
	return func(g *Guard) {
		g.metrics = m
	}
}

// WithGuardClock подменяет источник времени.
func WithGuardClock(now func() time.Time) GuardOption {
	return func(g *Guard) {
		if now != nil {
			g.now = now
		}
	}
}

// NewGuard создаёт Guard поверх хранилища ключей.
func NewGuard(repo domain.IdempotencyRepository, opts ...GuardOption) *Guard {
	g := &Guard{
		repo:   repo,
		ttl:    DefaultTTL,
		now:    func() time.Time { return time.Now().UTC() },
		logger: log.WithField("component", "idempotency"),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Do выполняет handler под ключом key.
//
// Повтор с тем же запросом возвращает сохранённый ответ (replayed=true) или сохранённую
// *Failure. Повтор с другим запросом даёт ErrIdempotencyHashMismatch, повтор во время
// выполнения возвращает ErrIdempotencyInProgress.
func (g *Guard) Do(ctx context.Context, key, method, requestHash string, classify Classifier, handler func(context.Context) ([]byte, error)) (body []byte, replayed bool, err error) {
	record, err := g.repo.CreateProcessing(key, method, requestHash, g.now().Add(g.ttl))
	if err != nil {
		body, err := g.replay(err, record)
		return body, err == nil, err
	}

	g.record(OutcomeExecuted)
	body, runErr := handler(ctx)
	if runErr != nil {
		g.storeFailure(key, classify(runErr))
		return nil, false, runErr
	}

	if err := g.repo.MarkDone(key, body); err != nil {
		g.logger.WithError(err).WithField("idempotency_key", key).Warn("failed to store idempotent success response")
	}
	return body, false, nil
}

func (g *Guard) replay(createErr error, record domain.IdempotencyRecord) ([]byte, error) {
	switch {
	case errors.Is(createErr, domain.ErrIdempotencyHashMismatch):
		g.record(OutcomeConflict)
		return nil, createErr
	case errors.Is(createErr, domain.ErrIdempotencyKeyAlreadyExists):
	default:
		return nil, domain.OperationFailed("reserve idempotency key", createErr)
	}

	switch record.Status {
	case domain.IdempotencyStatusDone:
		g.record(OutcomeReplayed)
		return record.Response, nil
	case domain.IdempotencyStatusProcessing:
		g.record(OutcomeInProgress)
		return nil, domain.ErrIdempotencyInProgress
	case domain.IdempotencyStatusFailed:
		g.record(OutcomeReplayed)
		return nil, decodeFailure(record)
	default:
		return nil, fmt.Errorf("%w: unknown idempotency record status %q", domain.ErrOperationFailed, record.Status)
	}
}

func (g *Guard) storeFailure(key string, failure Failure) {
	payload, err := json.Marshal(failure)
	if err != nil {
		g.logger.WithError(err).WithField("idempotency_key", key).Warn("failed to encode idempotency failure payload")
		payload = nil
	}
	if err := g.repo.MarkFailed(key, payload, failure.Code); err != nil {
		g.logger.WithError(err).WithField("idempotency_key", key).Warn("failed to store idempotency failure response")
	}
}

func (g *Guard) record(outcome string) {
	if g.metrics != nil {
		g.metrics.RecordRequest(outcome)
	}
}

func decodeFailure(record domain.IdempotencyRecord) *Failure {
	var failure Failure
	if len(record.Response) > 0 {
		if err := json.Unmarshal(record.Response, &failure); err == nil && failure.Code != 0 {
			return &failure
		}
	}
	return &Failure{Code: record.StatusCode}
}

// RequestHash считает отпечаток запроса: sha256 от "method:payload".
func RequestHash(method string, payload []byte) string {
	buf := make([]byte, 0, len(method)+1+len(payload))
	buf = append(buf, method...)
	buf = append(buf, ':')
	buf = append(buf, payload...)
	sum := sha256.Sum256(buf)
	return hex.EncodeToString(sum[:])
}

// NormalizeKey обрезает пробелы вокруг ключа.
func NormalizeKey(key string) string {
	return strings.TrimSpace(key)
}
