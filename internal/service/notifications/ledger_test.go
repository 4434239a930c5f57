package notifications

import (
	"context"
	"errors"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/watermate/internal/domain"
	"github.com/vladislavdragonenkov/watermate/internal/storage/memory"
)

func newTestLedger() *Ledger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return NewLedger(memory.NewNotificationRepository(), logger.WithField("component", "test"))
}

func addFor(t *testing.T, l *Ledger, userID, title string) domain.Notification {
	t.Helper()
	n, err := l.Add(context.Background(), domain.NewNotification{
		UserID:  userID,
		Title:   title,
		Message: title + " message",
		Type:    domain.NotificationTypeOrder,
	})
	require.NoError(t, err)
	return n
}

func TestLedger_AddAssignsIdentityAndUnreadState(t *testing.T) {
	l := newTestLedger()

	first := addFor(t, l, "client-1", "first")
	second := addFor(t, l, "client-1", "second")

	assert.NotEmpty(t, first.ID)
	assert.NotEqual(t, first.ID, second.ID)
	assert.False(t, first.IsRead)
	assert.False(t, first.CreatedAt.IsZero())

	list, err := l.List(context.Background(), "client-1", false)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].ID, "newest notification must be first")
}

func TestLedger_AddDefaultsUnknownType(t *testing.T) {
	l := newTestLedger()
	n, err := l.Add(context.Background(), domain.NewNotification{UserID: "u", Title: "t"})
	require.NoError(t, err)
	assert.Equal(t, domain.NotificationTypeSystem, n.Type)
}

func TestLedger_UnreadCountMatchesUnreadList(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger()

	a := addFor(t, l, "client-1", "a")
	addFor(t, l, "client-1", "b")
	addFor(t, l, "client-1", "c")
	addFor(t, l, "shop-1", "d")

	require.NoError(t, l.MarkAsRead(ctx, a.ID))

	for _, user := range []string{"client-1", "shop-1", "nobody"} {
		count, err := l.UnreadCount(ctx, user)
		require.NoError(t, err)

		all, err := l.List(ctx, user, false)
		require.NoError(t, err)
		expected := 0
		for _, n := range all {
			if !n.IsRead {
				expected++
			}
		}
		assert.Equal(t, expected, count, "user %s", user)
	}
}

func TestLedger_MarkAsReadUnknownIsNoop(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger()
	addFor(t, l, "client-1", "a")

	require.NoError(t, l.MarkAsRead(ctx, "missing"))

	count, err := l.UnreadCount(ctx, "client-1")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestLedger_MarkAllAsReadLeavesOtherUsers(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger()

	addFor(t, l, "client-1", "a")
	addFor(t, l, "client-1", "b")
	addFor(t, l, "shop-1", "c")

	before, err := l.List(ctx, "shop-1", false)
	require.NoError(t, err)

	flipped, err := l.MarkAllAsRead(ctx, "client-1")
	require.NoError(t, err)
	assert.Equal(t, 2, flipped)

	count, err := l.UnreadCount(ctx, "client-1")
	require.NoError(t, err)
	assert.Zero(t, count)

	after, err := l.List(ctx, "shop-1", false)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestLedger_RemoveUnknownIsNoop(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger()
	n := addFor(t, l, "client-1", "a")

	require.NoError(t, l.Remove(ctx, "missing"))
	require.NoError(t, l.Remove(ctx, n.ID))

	_, err := l.Get(ctx, n.ID)
	assert.True(t, errors.Is(err, domain.ErrNotFound))

	count, err := l.UnreadCount(ctx, "client-1")
	require.NoError(t, err)
	assert.Zero(t, count)
}

type brokenRepo struct {
	domain.NotificationRepository
}

func (brokenRepo) Add(domain.Notification) error { return errors.New("storage offline") }

func TestLedger_StorageFailureIsOperationFailed(t *testing.T) {
	l := NewLedger(brokenRepo{}, nil)

	_, err := l.Add(context.Background(), domain.NewNotification{UserID: "u"})
	require.ErrorIs(t, err, domain.ErrOperationFailed)
}
