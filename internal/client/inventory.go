package client

import (
	"context"
	"fmt"
	"time"

	"github.com/asquebay/bookstore-orders/internal/channel"
	"github.com/asquebay/bookstore-orders/internal/lib/metrics"
	"github.com/asquebay/bookstore-orders/internal/model"
)

// InventoryClient обращается к сервису инвентаря через канал
type InventoryClient struct {
	conn    channel.Conn
	metrics *metrics.Metrics
}

func NewInventoryClient(conn channel.Conn, m *metrics.Metrics) *InventoryClient {
	return &InventoryClient{conn: conn, metrics: m}
}

// GetBook возвращает книгу или ошибку, обёрнутую в channel.ErrNotFound
func (c *InventoryClient) GetBook(ctx context.Context, bookID string) (model.Book, error) {
	const op = "client.InventoryClient.GetBook"

	started := time.Now()
	var book model.Book
	err := c.conn.Request(ctx, PatternGetBook, BookLookup{BookID: bookID}, &book)
	c.metrics.ObserveRequest(PatternGetBook, started, err)
	if err != nil {
		return model.Book{}, fmt.Errorf("%s: %w", op, err)
	}

	return book, nil
}

// IsBookInStock спрашивает, хватает ли остатка на quantity экземпляров
// ответ верен только на момент чтения, остаток никто не резервирует
func (c *InventoryClient) IsBookInStock(ctx context.Context, bookID string, quantity int) (bool, error) {
	const op = "client.InventoryClient.IsBookInStock"

	started := time.Now()
	var inStock bool
	err := c.conn.Request(ctx, PatternIsBookInStock, StockChange{BookID: bookID, Quantity: quantity}, &inStock)
	c.metrics.ObserveRequest(PatternIsBookInStock, started, err)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	return inStock, nil
}

// DecreaseStock публикует событие списания остатка
// ошибка означает только неудачную передачу в канал, результат обработки не виден
func (c *InventoryClient) DecreaseStock(ctx context.Context, bookID string, quantity int) error {
	const op = "client.InventoryClient.DecreaseStock"

	err := c.conn.Publish(ctx, PatternDecreaseStock, StockChange{BookID: bookID, Quantity: quantity})
	c.metrics.ObservePublish(PatternDecreaseStock, err)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// IncreaseStock синхронно возвращает экземпляры на склад
func (c *InventoryClient) IncreaseStock(ctx context.Context, bookID string, quantity int) error {
	const op = "client.InventoryClient.IncreaseStock"

	started := time.Now()
	err := c.conn.Request(ctx, PatternIncreaseStock, StockChange{BookID: bookID, Quantity: quantity}, nil)
	c.metrics.ObserveRequest(PatternIncreaseStock, started, err)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}
