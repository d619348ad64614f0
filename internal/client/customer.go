package client

import (
	"context"
	"fmt"
	"time"

	"github.com/asquebay/bookstore-orders/internal/channel"
	"github.com/asquebay/bookstore-orders/internal/lib/metrics"
	"github.com/asquebay/bookstore-orders/internal/model"
)

// CustomerClient обращается к сервису покупателей через канал
type CustomerClient struct {
	conn    channel.Conn
	metrics *metrics.Metrics
}

func NewCustomerClient(conn channel.Conn, m *metrics.Metrics) *CustomerClient {
	return &CustomerClient{conn: conn, metrics: m}
}

// GetCustomer возвращает покупателя или ошибку, обёрнутую в channel.ErrNotFound
func (c *CustomerClient) GetCustomer(ctx context.Context, customerID string) (model.Customer, error) {
	const op = "client.CustomerClient.GetCustomer"

	started := time.Now()
	var customer model.Customer
	err := c.conn.Request(ctx, PatternGetCustomer, CustomerLookup{CustomerID: customerID}, &customer)
	c.metrics.ObserveRequest(PatternGetCustomer, started, err)
	if err != nil {
		return model.Customer{}, fmt.Errorf("%s: %w", op, err)
	}

	return customer, nil
}
