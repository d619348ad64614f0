// Package customer — сервис покупателей, отвечает на getCustomer через канал
package customer

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/asquebay/bookstore-orders/internal/channel"
	"github.com/asquebay/bookstore-orders/internal/client"
	"github.com/asquebay/bookstore-orders/internal/model"
)

var ErrCustomerNotFound = fmt.Errorf("customer %w", channel.ErrNotFound)

type Service struct {
	mu        sync.RWMutex
	customers map[string]model.Customer
	log       *slog.Logger
}

func NewService(customers []model.Customer, log *slog.Logger) *Service {
	s := &Service{
		customers: make(map[string]model.Customer, len(customers)),
		log:       log.With(slog.String("component", "customer")),
	}
	for _, c := range customers {
		s.customers[c.ID] = c
	}
	return s
}

// Register привязывает getCustomer к роутеру канала
func (s *Service) Register(r *channel.Router) {
	r.Handle(client.PatternGetCustomer, channel.HandleFunc(func(ctx context.Context, in client.CustomerLookup) (model.Customer, error) {
		return s.GetCustomer(ctx, in.CustomerID)
	}))
}

func (s *Service) GetCustomer(_ context.Context, customerID string) (model.Customer, error) {
	const op = "customer.Service.GetCustomer"

	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.customers[customerID]
	if !ok {
		s.log.Debug("customer not found", slog.String("op", op), slog.String("customer_id", customerID))
		return model.Customer{}, fmt.Errorf("%s: %w", op, ErrCustomerNotFound)
	}
	return c, nil
}
