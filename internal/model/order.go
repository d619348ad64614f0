package model

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// Order — заказ одной книги одним покупателем
// ключи JSON совпадают с контрактом, по которому общаются сервисы
type Order struct {
	ID         string          `json:"id"`
	BookID     string          `json:"bookId"`
	CustomerID string          `json:"customerId"`
	Quantity   int             `json:"quantity"`
	TotalPrice decimal.Decimal `json:"totalPrice"`
}

// Equal сравнивает заказы поле за полем
// decimal нельзя сравнивать через ==, поэтому отдельный метод
func (o Order) Equal(other Order) bool {
	return o.ID == other.ID &&
		o.BookID == other.BookID &&
		o.CustomerID == other.CustomerID &&
		o.Quantity == other.Quantity &&
		o.TotalPrice.Equal(other.TotalPrice)
}

// CreateOrderRequest — входные данные для создания заказа
// ID необязателен: если не задан, его сгенерирует сервис
type CreateOrderRequest struct {
	ID         string          `json:"id,omitempty"`
	BookID     string          `json:"bookId" validate:"required"`
	CustomerID string          `json:"customerId" validate:"required"`
	Quantity   int             `json:"quantity" validate:"required,gt=0"`
	TotalPrice decimal.Decimal `json:"totalPrice"`
}

var (
	ErrNegativePrice = errors.New("totalPrice must not be negative")
	ErrPriceScale    = errors.New("totalPrice must have at most 2 decimal places")
	ErrPriceTooLarge = errors.New("totalPrice is too large")
)

// границы совпадают с колонкой total_price NUMERIC(12, 2):
// всё, что прошло проверку, хранилище сохранит без округления
const priceScale = 2

var maxPrice = decimal.New(1, 10)

var validate = validator.New()

// Validate проверяет запрос по тегам validate
// цену проверяем вручную, validator не умеет работать с decimal
func (r *CreateOrderRequest) Validate() error {
	if err := validate.Struct(r); err != nil {
		return err
	}
	if r.TotalPrice.IsNegative() {
		return ErrNegativePrice
	}
	if !r.TotalPrice.Equal(r.TotalPrice.Round(priceScale)) {
		return ErrPriceScale
	}
	if r.TotalPrice.GreaterThanOrEqual(maxPrice) {
		return ErrPriceTooLarge
	}
	return nil
}

// ToOrder собирает запись заказа с указанным идентификатором
func (r *CreateOrderRequest) ToOrder(id string) Order {
	return Order{
		ID:         id,
		BookID:     r.BookID,
		CustomerID: r.CustomerID,
		Quantity:   r.Quantity,
		TotalPrice: r.TotalPrice,
	}
}
