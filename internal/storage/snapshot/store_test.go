package snapshot

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/watermate/internal/domain"
)

func TestFileStore_SaveLoad(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	_, err = store.Load(ctx, KeyOrders)
	require.ErrorIs(t, err, domain.ErrBlobNotFound)

	require.NoError(t, store.Save(ctx, KeyOrders, []byte(`{"state":{"orders":[]},"version":0}`)))
	require.NoError(t, store.Save(ctx, KeyOrders, []byte(`{"state":{"orders":null},"version":0}`)))

	data, err := store.Load(ctx, KeyOrders)
	require.NoError(t, err)
	assert.Equal(t, `{"state":{"orders":null},"version":0}`, string(data))
}

func TestNewFileStore_RequiresDir(t *testing.T) {
	_, err := NewFileStore(" ")
	require.Error(t, err)
}

// stubRedis хранит значения в map и отдаёт результаты через конструкторы go-redis.
type stubRedis struct {
	values map[string]string
	err    error
}

func (s *stubRedis) Get(_ context.Context, key string) *redis.StringCmd {
	if s.err != nil {
		return redis.NewStringResult("", s.err)
	}
	v, ok := s.values[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (s *stubRedis) Set(_ context.Context, key string, value interface{}, _ time.Duration) *redis.StatusCmd {
	if s.err != nil {
		return redis.NewStatusResult("", s.err)
	}
	s.values[key] = string(value.([]byte))
	return redis.NewStatusResult("OK", nil)
}

func TestRedisStore_SaveLoad(t *testing.T) {
	client := &stubRedis{values: map[string]string{}}
	store := NewRedisStore(client, "wm:")
	ctx := context.Background()

	_, err := store.Load(ctx, KeyAuth)
	require.ErrorIs(t, err, domain.ErrBlobNotFound)

	require.NoError(t, store.Save(ctx, KeyAuth, []byte(`{"state":{},"version":0}`)))
	assert.Contains(t, client.values, "wm:"+KeyAuth)

	data, err := store.Load(ctx, KeyAuth)
	require.NoError(t, err)
	assert.Equal(t, `{"state":{},"version":0}`, string(data))
}

func TestRedisStore_PropagatesErrors(t *testing.T) {
	store := NewRedisStore(&stubRedis{values: map[string]string{}, err: errors.New("connection refused")}, "")

	_, err := store.Load(context.Background(), KeyOrders)
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrBlobNotFound)

	require.Error(t, store.Save(context.Background(), KeyOrders, []byte("{}")))
}
