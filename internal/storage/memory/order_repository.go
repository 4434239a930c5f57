package memory

import (
	"sync"

	"github.com/vladislavdragonenkov/watermate/internal/domain"
)

// OrderRepository — in-memory хранилище заказов. Новые заказы добавляются в начало,
// поэтому порядок коллекции совпадает с порядком отображения.
type OrderRepository struct {
	mu    sync.RWMutex
	items []domain.Order
	index map[string]int
}

// NewOrderRepository возвращает in-memory репозиторий для локальной разработки и тестов.
func NewOrderRepository() *OrderRepository {
	return &OrderRepository{index: make(map[string]int)}
}

// Create сохраняет новый заказ в начало коллекции, если ID ещё не занят.
func (r *OrderRepository) Create(order domain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.index[order.ID]; exists {
		return domain.ErrOrderVersionConflict
	}
	r.items = append([]domain.Order{cloneOrder(order)}, r.items...)
	r.reindex()
	return nil
}

// Get возвращает заказ или ErrOrderNotFound, если его нет.
func (r *OrderRepository) Get(id string) (domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	pos, ok := r.index[id]
	if !ok {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	return cloneOrder(r.items[pos]), nil
}

// List возвращает заказы под фильтр в порядке коллекции, ограничивая выборку filter.Limit (если >0).
func (r *OrderRepository) List(filter domain.OrderFilter) ([]domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]domain.Order, 0, len(r.items))
	for _, order := range r.items {
		if !filter.Match(order) {
			continue
		}
		result = append(result, cloneOrder(order))
		if filter.Limit > 0 && len(result) >= filter.Limit {
			break
		}
	}
	return result, nil
}

// Save перезаписывает заказ на его месте, проверяя версию (optimistic locking).
func (r *OrderRepository) Save(order domain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	pos, ok := r.index[order.ID]
	if !ok {
		return domain.ErrOrderNotFound
	}
	if r.items[pos].Version != order.Version {
		return domain.ErrOrderVersionConflict
	}
	order.Version++
	r.items[pos] = cloneOrder(order)
	return nil
}

// Replace заменяет всю коллекцию (восстановление из snapshot).
func (r *OrderRepository) Replace(orders []domain.Order) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.items = make([]domain.Order, 0, len(orders))
	for _, o := range orders {
		r.items = append(r.items, cloneOrder(o))
	}
	r.reindex()
}

func (r *OrderRepository) reindex() {
	r.index = make(map[string]int, len(r.items))
	for i, o := range r.items {
		r.index[o.ID] = i
	}
}

func cloneOrder(src domain.Order) domain.Order {
	dst := src
	if src.DeliveryDate != nil {
		d := *src.DeliveryDate
		dst.DeliveryDate = &d
	}
	return dst
}

var _ domain.OrderRepository = (*OrderRepository)(nil)
