// Package snapshot сохраняет состояние ledger-ов целиком в виде JSON-blob по ключу
// и восстанавливает его при старте.
package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/vladislavdragonenkov/watermate/internal/domain"
)

// Ключи, под которыми хранится состояние.
const (
	KeyOrders        = "watermate-orders"
	KeyNotifications = "watermate-notifications"
	KeyAuth          = "watermate-auth"
)

// formatVersion увеличивается при несовместимых изменениях формата blob.
const formatVersion = 0

type envelope[T any] struct {
	State   T   `json:"state"`
	Version int `json:"version"`
}

// OrdersState — содержимое blob заказов.
type OrdersState struct {
	Orders []domain.Order `json:"orders"`
}

// NotificationsState — содержимое blob уведомлений. Счётчик непрочитанных не хранится.
type NotificationsState struct {
	Notifications []domain.Notification `json:"notifications"`
}

// AuthState — содержимое blob сессии.
type AuthState struct {
	User            *domain.User `json:"user"`
	IsAuthenticated bool         `json:"isAuthenticated"`
	Token           string       `json:"token,omitempty"`
}

// Encode сериализует состояние в формат blob.
func Encode[T any](state T) ([]byte, error) {
	data, err := json.Marshal(envelope[T]{State: state, Version: formatVersion})
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	return data, nil
}

// Decode разбирает blob. Blob другой версии формата отклоняется.
func Decode[T any](data []byte) (T, error) {
	var env envelope[T]
	if err := json.Unmarshal(data, &env); err != nil {
		return env.State, fmt.Errorf("decode snapshot: %w", err)
	}
	if env.Version != formatVersion {
		var zero T
		return zero, fmt.Errorf("decode snapshot: unsupported version %d", env.Version)
	}
	return env.State, nil
}

// Save кодирует состояние и пишет его под ключом.
func Save[T any](ctx context.Context, store domain.BlobStore, key string, state T) error {
	data, err := Encode(state)
	if err != nil {
		return err
	}
	if err := store.Save(ctx, key, data); err != nil {
		return domain.OperationFailed("save snapshot "+key, err)
	}
	return nil
}

// Load читает и декодирует состояние. found=false, если blob отсутствует.
func Load[T any](ctx context.Context, store domain.BlobStore, key string) (state T, found bool, err error) {
	data, err := store.Load(ctx, key)
	if errors.Is(err, domain.ErrBlobNotFound) {
		return state, false, nil
	}
	if err != nil {
		return state, false, domain.OperationFailed("load snapshot "+key, err)
	}
	state, err = Decode[T](data)
	if err != nil {
		return state, false, err
	}
	return state, true, nil
}
