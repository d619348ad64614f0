package service

import (
	"context"

	"github.com/asquebay/bookstore-orders/internal/model"
)

// OrderRepository определяет контракт для хранилища заказов
type OrderRepository interface {
	CreateOrder(ctx context.Context, order model.Order) error
	GetOrderByID(ctx context.Context, id string) (model.Order, error)
	GetAllOrders(ctx context.Context) ([]model.Order, error)
	DeleteOrder(ctx context.Context, id string) error
}

// OrderCache определяет контракт для in-memory кэша заказов
type OrderCache interface {
	Set(order model.Order)
	Get(id string) (model.Order, bool)
	Delete(id string)
	LoadAll(orders []model.Order)
}

// CustomerClient — удалённый сервис покупателей
type CustomerClient interface {
	GetCustomer(ctx context.Context, customerID string) (model.Customer, error)
}

// InventoryClient — удалённый сервис инвентаря
type InventoryClient interface {
	GetBook(ctx context.Context, bookID string) (model.Book, error)
	IsBookInStock(ctx context.Context, bookID string, quantity int) (bool, error)
	DecreaseStock(ctx context.Context, bookID string, quantity int) error
	IncreaseStock(ctx context.Context, bookID string, quantity int) error
}
