package cache

import (
	"sync"

	"github.com/asquebay/bookstore-orders/internal/model"
)

// OrderCache — потокобезопасный in-memory кэш для заказов
type OrderCache struct {
	// ключ — string (ID заказа), значение — model.Order
	storage sync.Map
}

// NewOrderCache создаёт новый экземпляр кэша
func NewOrderCache() *OrderCache {
	return &OrderCache{}
}

// Set добавляет или обновляет заказ в кэше
func (c *OrderCache) Set(order model.Order) {
	c.storage.Store(order.ID, order)
}

// Get извлекает заказ из кэша по его ID
// возвращает заказ и true, если он найден, иначе — пустую структуру и false
func (c *OrderCache) Get(id string) (model.Order, bool) {
	value, ok := c.storage.Load(id)
	if !ok {
		return model.Order{}, false
	}

	order, ok := value.(model.Order)
	return order, ok
}

// Delete убирает заказ из кэша, отсутствие ключа не ошибка
func (c *OrderCache) Delete(id string) {
	c.storage.Delete(id)
}

// LoadAll заменяет содержимое кэша срезом заказов из хранилища
// после восстановления в кэше нет заказов, которых нет в хранилище
func (c *OrderCache) LoadAll(orders []model.Order) {
	c.storage.Clear()
	for _, order := range orders {
		c.Set(order)
	}
}
