// Package directory хранит справочник пользователей и каталог магазинов.
package directory

import (
	"sort"
	"strings"
	"sync"

	"github.com/vladislavdragonenkov/watermate/internal/domain"
)

// Catalog — in-memory реализация domain.Directory.
type Catalog struct {
	mu      sync.RWMutex
	users   map[string]domain.User
	byPhone map[string]string
	shops   map[string]domain.Shop
	order   []string
}

// New строит каталог из переданных пользователей и магазинов.
// Порядок магазинов сохраняется для детерминированных списков.
func New(users []domain.User, shops []domain.Shop) *Catalog {
	c := &Catalog{
		users:   make(map[string]domain.User, len(users)),
		byPhone: make(map[string]string, len(users)),
		shops:   make(map[string]domain.Shop, len(shops)),
		order:   make([]string, 0, len(shops)),
	}
	for _, u := range users {
		c.users[u.ID] = u
		c.byPhone[normalizePhone(u.Phone)] = u.ID
	}
	for _, s := range shops {
		if _, exists := c.shops[s.ID]; !exists {
			c.order = append(c.order, s.ID)
		}
		c.shops[s.ID] = s
	}
	return c
}

// FindByPhone ищет пользователя по телефону. Пробелы в номере игнорируются.
func (c *Catalog) FindByPhone(phone string) (domain.User, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	id, ok := c.byPhone[normalizePhone(phone)]
	if !ok {
		return domain.User{}, domain.ErrUserNotFound
	}
	return c.users[id], nil
}

// GetUser возвращает пользователя по идентификатору.
func (c *Catalog) GetUser(id string) (domain.User, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	u, ok := c.users[id]
	if !ok {
		return domain.User{}, domain.ErrUserNotFound
	}
	return u, nil
}

// GetShop возвращает магазин по идентификатору.
func (c *Catalog) GetShop(id string) (domain.Shop, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	s, ok := c.shops[id]
	if !ok {
		return domain.Shop{}, domain.ErrShopNotFound
	}
	return s, nil
}

// ShopsByOwner возвращает магазины владельца.
func (c *Catalog) ShopsByOwner(ownerID string) []domain.Shop {
	return c.filterShops(func(s domain.Shop) bool { return s.OwnerID == ownerID })
}

// ActiveShops возвращает магазины, принимающие заказы.
func (c *Catalog) ActiveShops() []domain.Shop {
	return c.filterShops(func(s domain.Shop) bool { return s.IsActive })
}

// NearbyShop — магазин с расстоянием до клиента.
type NearbyShop struct {
	domain.Shop
	DistanceKm float64 `json:"distanceKm"`
}

// NearbyShops возвращает активные магазины, в зону доставки которых попадает точка,
// ближайшие первыми.
func (c *Catalog) NearbyShops(at domain.Location) []NearbyShop {
	active := c.ActiveShops()
	result := make([]NearbyShop, 0, len(active))
	for _, s := range active {
		d := DistanceKm(at, s.Location)
		if d > s.OperatingZoneKm {
			continue
		}
		result = append(result, NearbyShop{Shop: s, DistanceKm: d})
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].DistanceKm < result[j].DistanceKm
	})
	return result
}

func (c *Catalog) filterShops(keep func(domain.Shop) bool) []domain.Shop {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]domain.Shop, 0, len(c.order))
	for _, id := range c.order {
		if s := c.shops[id]; keep(s) {
			out = append(out, s)
		}
	}
	return out
}

func normalizePhone(phone string) string {
	return strings.ReplaceAll(strings.TrimSpace(phone), " ", "")
}

var _ domain.Directory = (*Catalog)(nil)
