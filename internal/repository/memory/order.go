package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/asquebay/bookstore-orders/internal/model"
	"github.com/asquebay/bookstore-orders/internal/repository"
)

// OrderRepository — хранилище заказов в памяти процесса
// используется драйвером memory и в тестах
type OrderRepository struct {
	mu     sync.RWMutex
	orders map[string]model.Order
}

func NewOrderRepository() *OrderRepository {
	return &OrderRepository{orders: make(map[string]model.Order)}
}

func (r *OrderRepository) CreateOrder(_ context.Context, order model.Order) error {
	const op = "repository.memory.order.CreateOrder"

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.orders[order.ID]; exists {
		return fmt.Errorf("%s: %w", op, repository.ErrOrderExists)
	}
	r.orders[order.ID] = order
	return nil
}

func (r *OrderRepository) GetOrderByID(_ context.Context, id string) (model.Order, error) {
	const op = "repository.memory.order.GetOrderByID"

	r.mu.RLock()
	defer r.mu.RUnlock()

	order, ok := r.orders[id]
	if !ok {
		return model.Order{}, fmt.Errorf("%s: %w", op, repository.ErrOrderNotFound)
	}
	return order, nil
}

// GetAllOrders возвращает заказы, отсортированные по идентификатору
func (r *OrderRepository) GetAllOrders(_ context.Context) ([]model.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]model.Order, 0, len(r.orders))
	for _, order := range r.orders {
		result = append(result, order)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (r *OrderRepository) DeleteOrder(_ context.Context, id string) error {
	const op = "repository.memory.order.DeleteOrder"

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.orders[id]; !ok {
		return fmt.Errorf("%s: %w", op, repository.ErrOrderNotFound)
	}
	delete(r.orders, id)
	return nil
}
