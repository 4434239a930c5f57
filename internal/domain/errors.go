package domain

import (
	"errors"
	"fmt"
)

// Виды ошибок. Транспорт сопоставляет им коды ответа, поэтому конкретные ошибки ниже
// всегда оборачивают один из видов.
var (
	// ErrNotFound — запрошенная сущность отсутствует.
	ErrNotFound = errors.New("not found")
	// ErrInvalidCredential — неверный OTP или токен сессии.
	ErrInvalidCredential = errors.New("invalid credential")
	// ErrInvalidOrder — входные данные заказа не проходят проверку.
	ErrInvalidOrder = errors.New("invalid order")
	// ErrInvalidTransition — недопустимый статус или переход.
	ErrInvalidTransition = errors.New("invalid transition")
	// ErrOperationFailed — сбой хранилища или инфраструктуры.
	ErrOperationFailed = errors.New("operation failed")
)

var (
	ErrOrderNotFound        = fmt.Errorf("order %w", ErrNotFound)
	ErrNotificationNotFound = fmt.Errorf("notification %w", ErrNotFound)
	ErrUserNotFound         = fmt.Errorf("user %w", ErrNotFound)
	ErrShopNotFound         = fmt.Errorf("shop %w", ErrNotFound)
	ErrBlobNotFound         = fmt.Errorf("blob %w", ErrNotFound)

	// Ошибка OTP: принимаются только ровно 4 цифры.
	ErrOTPInvalid = fmt.Errorf("%w: otp must be exactly 4 digits", ErrInvalidCredential)
	// Ошибка токена сессии: подпись, срок действия или неизвестный пользователь.
	ErrSessionTokenInvalid = fmt.Errorf("%w: session token is invalid", ErrInvalidCredential)

	ErrClientRequired       = fmt.Errorf("%w: client_id is required", ErrInvalidOrder)
	ErrShopRequired         = fmt.Errorf("%w: shop_id is required", ErrInvalidOrder)
	ErrLitresInvalid        = fmt.Errorf("%w: litres must be greater than zero", ErrInvalidOrder)
	ErrLitresTooLarge       = fmt.Errorf("%w: litres exceed the maximum order size", ErrInvalidOrder)
	ErrAmountOverflow       = fmt.Errorf("%w: order total is out of range", ErrInvalidOrder)
	ErrPaymentStatusInvalid = fmt.Errorf("%w: unknown payment status", ErrInvalidOrder)
	ErrPaymentMethodInvalid = fmt.Errorf("%w: payment method must be mpesa or cash_on_delivery", ErrInvalidOrder)
	ErrShopUnknown          = fmt.Errorf("%w: shop is not in the catalog", ErrInvalidOrder)
	ErrShopInactive         = fmt.Errorf("%w: shop is not accepting orders", ErrInvalidOrder)
	ErrBelowMinimumOrder    = fmt.Errorf("%w: litres below shop minimum order", ErrInvalidOrder)

	ErrOrderStatusUnknown   = fmt.Errorf("%w: unknown order status", ErrInvalidTransition)
	ErrPaymentStatusUnknown = fmt.Errorf("%w: unknown payment status", ErrInvalidTransition)
	ErrTransitionNotAllowed = fmt.Errorf("%w: status change is not allowed", ErrInvalidTransition)

	// ErrTimelineEventInvalid — событие истории без заказа или с неизвестным типом.
	ErrTimelineEventInvalid = errors.New("invalid timeline event")

	// ErrOrderVersionConflict сигнализирует о конфликте версий при сохранении.
	ErrOrderVersionConflict = errors.New("order version conflict")
	// ErrOutboxPublish — ошибка при публикации сообщения из outbox.
	ErrOutboxPublish = errors.New("outbox publish failed")
)

// Ошибки хранилища ключей идемпотентности.
var (
	ErrIdempotencyKeyRequired         = errors.New("idempotency key is required")
	ErrIdempotencyRequestHashRequired = errors.New("idempotency request hash is required")
	ErrIdempotencyKeyAlreadyExists    = errors.New("idempotency key already exists")
	ErrIdempotencyHashMismatch        = errors.New("idempotency key reused with different request")
	ErrIdempotencyKeyNotFound         = errors.New("idempotency key not found")
	ErrIdempotencyInProgress          = errors.New("request with the same idempotency key is still processing")
)

// IsVersionConflict проверяет, является ли ошибка конфликтом версий.
func IsVersionConflict(err error) bool {
	return errors.Is(err, ErrOrderVersionConflict)
}

// OperationFailed оборачивает сбой инфраструктуры в ErrOperationFailed, сохраняя исходную причину.
// Ошибки, уже относящиеся к одному из видов, возвращаются как есть.
func OperationFailed(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrInvalidCredential) ||
		errors.Is(err, ErrInvalidOrder) ||
		errors.Is(err, ErrInvalidTransition) ||
		errors.Is(err, ErrOperationFailed) {
		return err
	}
	return fmt.Errorf("%s: %w: %w", op, ErrOperationFailed, err)
}
