package service

import (
	"errors"

	"github.com/asquebay/bookstore-orders/internal/channel"
	"github.com/asquebay/bookstore-orders/internal/repository"
)

var (
	ErrInvalidOrder      = errors.New("invalid order")
	ErrCustomerNotFound  = errors.New("customer not found")
	ErrBookNotFound      = errors.New("book not found")
	ErrInsufficientStock = errors.New("not enough books in stock")
	ErrPersistence       = errors.New("order store unavailable")

	// ErrStockRollbackFailed: склад не вернул остаток, удалённый заказ восстановлен
	ErrStockRollbackFailed = errors.New("failed to update stock, order rollback performed")
	// ErrFatal: склад не вернул остаток и заказ не удалось восстановить
	ErrFatal = errors.New("order lost after failed rollback, manual intervention required")

	ErrOrderNotFound = repository.ErrOrderNotFound
	ErrOrderExists   = repository.ErrOrderExists

	ErrTimeout  = channel.ErrTimeout
	ErrRejected = channel.ErrRejected
)

// outcome сводит результат саги к метке для метрик
func outcome(err error) string {
	switch {
	case err == nil:
		return "completed"
	case errors.Is(err, ErrFatal):
		return "fatal"
	case errors.Is(err, ErrStockRollbackFailed):
		return "rollback_failed"
	case errors.Is(err, ErrInvalidOrder),
		errors.Is(err, ErrCustomerNotFound),
		errors.Is(err, ErrBookNotFound),
		errors.Is(err, ErrOrderNotFound),
		errors.Is(err, ErrOrderExists),
		errors.Is(err, ErrInsufficientStock):
		return "rejected"
	default:
		return "failed"
	}
}
