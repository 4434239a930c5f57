package snapshot

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/watermate/internal/domain"
)

const persistTimeout = 5 * time.Second

// OrderCollection — хранилище заказов, коллекцию которого можно заменить целиком.
type OrderCollection interface {
	domain.OrderRepository
	Replace(orders []domain.Order)
}

// OrderRepository пишет полный snapshot заказов после каждой успешной мутации.
// Ошибка записи snapshot логируется и не отменяет мутацию.
type OrderRepository struct {
	inner  OrderCollection
	store  domain.BlobStore
	logger *log.Entry

	persistMu sync.Mutex
}

// NewOrderRepository оборачивает коллекцию заказов.
func NewOrderRepository(inner OrderCollection, store domain.BlobStore, logger *log.Entry) *OrderRepository {
	if logger == nil {
		logger = log.New().WithField("component", "snapshot-orders")
	}
	return &OrderRepository{inner: inner, store: store, logger: logger}
}

// Load восстанавливает коллекцию из blob и возвращает число заказов.
// Отсутствующий blob не считается ошибкой.
func (r *OrderRepository) Load(ctx context.Context) (int, error) {
	state, found, err := Load[OrdersState](ctx, r.store, KeyOrders)
	if err != nil || !found {
		return 0, err
	}
	r.inner.Replace(state.Orders)
	return len(state.Orders), nil
}

// Persist записывает текущую коллекцию под ключом заказов.
func (r *OrderRepository) Persist(ctx context.Context) error {
	r.persistMu.Lock()
	defer r.persistMu.Unlock()

	orders, err := r.inner.List(domain.OrderFilter{})
	if err != nil {
		return err
	}
	return Save(ctx, r.store, KeyOrders, OrdersState{Orders: orders})
}

func (r *OrderRepository) Create(order domain.Order) error {
	if err := r.inner.Create(order); err != nil {
		return err
	}
	r.persistAfterMutation(order.ID)
	return nil
}

func (r *OrderRepository) Get(id string) (domain.Order, error) {
	return r.inner.Get(id)
}

func (r *OrderRepository) List(filter domain.OrderFilter) ([]domain.Order, error) {
	return r.inner.List(filter)
}

func (r *OrderRepository) Save(order domain.Order) error {
	if err := r.inner.Save(order); err != nil {
		return err
	}
	r.persistAfterMutation(order.ID)
	return nil
}

func (r *OrderRepository) persistAfterMutation(orderID string) {
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	if err := r.Persist(ctx); err != nil {
		r.logger.WithError(err).WithField("order_id", orderID).Warn("failed to persist orders snapshot")
	}
}

var _ domain.OrderRepository = (*OrderRepository)(nil)
