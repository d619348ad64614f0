package service

import (
	"context"
	"fmt"
	"sync"

	"github.com/asquebay/bookstore-orders/internal/channel"
	"github.com/asquebay/bookstore-orders/internal/model"
	"github.com/asquebay/bookstore-orders/internal/repository/memory"
)

type fakeCustomers struct {
	known map[string]bool
	err   error
	calls int
}

func (f *fakeCustomers) GetCustomer(_ context.Context, id string) (model.Customer, error) {
	f.calls++
	if f.err != nil {
		return model.Customer{}, f.err
	}
	if !f.known[id] {
		return model.Customer{}, fmt.Errorf("getCustomer: %w", channel.ErrNotFound)
	}
	return model.Customer{ID: id}, nil
}

type stockCall struct {
	BookID   string
	Quantity int
}

type fakeInventory struct {
	mu    sync.Mutex
	stock map[string]int

	getErr      error
	checkErr    error
	publishErr  error
	increaseErr error

	decreased []stockCall
	increased []stockCall
}

func newFakeInventory(stock map[string]int) *fakeInventory {
	return &fakeInventory{stock: stock}
}

func (f *fakeInventory) GetBook(_ context.Context, id string) (model.Book, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.getErr != nil {
		return model.Book{}, f.getErr
	}
	stock, ok := f.stock[id]
	if !ok {
		return model.Book{}, fmt.Errorf("getBook: %w", channel.ErrNotFound)
	}
	return model.Book{ID: id, Stock: stock}, nil
}

func (f *fakeInventory) IsBookInStock(_ context.Context, id string, quantity int) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.checkErr != nil {
		return false, f.checkErr
	}
	return f.stock[id] >= quantity, nil
}

// DecreaseStock только записывает событие, остаток не трогает
func (f *fakeInventory) DecreaseStock(_ context.Context, id string, quantity int) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.publishErr != nil {
		return f.publishErr
	}
	f.decreased = append(f.decreased, stockCall{BookID: id, Quantity: quantity})
	return nil
}

func (f *fakeInventory) IncreaseStock(_ context.Context, id string, quantity int) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.increaseErr != nil {
		return f.increaseErr
	}
	f.stock[id] += quantity
	f.increased = append(f.increased, stockCall{BookID: id, Quantity: quantity})
	return nil
}

func (f *fakeInventory) decreasedCalls() []stockCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]stockCall(nil), f.decreased...)
}

// flakyRepo — хранилище в памяти с управляемыми отказами
type flakyRepo struct {
	*memory.OrderRepository

	mu        sync.Mutex
	createErr error
	deleteErr error
	getErr    error
	listErr   error
}

func newFlakyRepo() *flakyRepo {
	return &flakyRepo{OrderRepository: memory.NewOrderRepository()}
}

func (r *flakyRepo) setCreateErr(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.createErr = err
}

func (r *flakyRepo) CreateOrder(ctx context.Context, order model.Order) error {
	r.mu.Lock()
	err := r.createErr
	r.mu.Unlock()
	if err != nil {
		return err
	}
	return r.OrderRepository.CreateOrder(ctx, order)
}

func (r *flakyRepo) DeleteOrder(ctx context.Context, id string) error {
	if r.deleteErr != nil {
		return r.deleteErr
	}
	return r.OrderRepository.DeleteOrder(ctx, id)
}

func (r *flakyRepo) GetOrderByID(ctx context.Context, id string) (model.Order, error) {
	if r.getErr != nil {
		return model.Order{}, r.getErr
	}
	return r.OrderRepository.GetOrderByID(ctx, id)
}

func (r *flakyRepo) GetAllOrders(ctx context.Context) ([]model.Order, error) {
	if r.listErr != nil {
		return nil, r.listErr
	}
	return r.OrderRepository.GetAllOrders(ctx)
}
