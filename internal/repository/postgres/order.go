package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/asquebay/bookstore-orders/internal/model"
	"github.com/asquebay/bookstore-orders/internal/repository"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// код ошибки PostgreSQL для нарушения уникальности
const uniqueViolation = "23505"

var orderColumns = []string{"id", "book_id", "customer_id", "quantity", "total_price"}

// OrderRepository инкапсулирует логику работы с заказами в БД
type OrderRepository struct {
	db *pgxpool.Pool
	sq squirrel.StatementBuilderType
}

// NewOrderRepository создает новый экземпляр репозитория
func NewOrderRepository(db *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{
		db: db,
		// использую плейсхолдеры в стиле PostgreSQL ($1, $2, $3,...)
		sq: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// CreateOrder сохраняет заказ
// повторная вставка того же идентификатора возвращает ErrOrderExists
func (r *OrderRepository) CreateOrder(ctx context.Context, order model.Order) error {
	const op = "repository.postgres.order.CreateOrder"

	sql, args, err := r.sq.Insert("orders").
		Columns(orderColumns...).
		Values(order.ID, order.BookID, order.CustomerID, order.Quantity, order.TotalPrice).
		ToSql()
	if err != nil {
		return fmt.Errorf("%s: failed to build insert query: %w", op, err)
	}

	if _, err := r.db.Exec(ctx, sql, args...); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return fmt.Errorf("%s: %w", op, repository.ErrOrderExists)
		}
		return fmt.Errorf("%s: failed to insert order: %w", op, err)
	}

	return nil
}

// GetOrderByID извлекает один заказ из базы данных по его ID
func (r *OrderRepository) GetOrderByID(ctx context.Context, id string) (model.Order, error) {
	const op = "repository.postgres.order.GetOrderByID"

	sql, args, err := r.sq.Select(orderColumns...).
		From("orders").
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return model.Order{}, fmt.Errorf("%s: failed to build select query: %w", op, err)
	}

	order, err := scanOrder(r.db.QueryRow(ctx, sql, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Order{}, fmt.Errorf("%s: %w", op, repository.ErrOrderNotFound)
		}
		return model.Order{}, fmt.Errorf("%s: failed to query order: %w", op, err)
	}

	return order, nil
}

// GetAllOrders извлекает все заказы из базы данных
// используется для списка заказов и для восстановления кэша при старте
func (r *OrderRepository) GetAllOrders(ctx context.Context) ([]model.Order, error) {
	const op = "repository.postgres.order.GetAllOrders"

	sql, args, err := r.sq.Select(orderColumns...).
		From("orders").
		OrderBy("id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("%s: failed to build select query: %w", op, err)
	}

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to query orders: %w", op, err)
	}
	defer rows.Close()

	result := []model.Order{}
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: failed to scan order row: %w", op, err)
		}
		result = append(result, order)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: failed to iterate orders: %w", op, err)
	}

	return result, nil
}

// DeleteOrder удаляет заказ; если строки нет, возвращает ErrOrderNotFound
func (r *OrderRepository) DeleteOrder(ctx context.Context, id string) error {
	const op = "repository.postgres.order.DeleteOrder"

	sql, args, err := r.sq.Delete("orders").
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("%s: failed to build delete query: %w", op, err)
	}

	tag, err := r.db.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("%s: failed to delete order: %w", op, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w", op, repository.ErrOrderNotFound)
	}

	return nil
}

func scanOrder(row pgx.Row) (model.Order, error) {
	var o model.Order
	err := row.Scan(&o.ID, &o.BookID, &o.CustomerID, &o.Quantity, &o.TotalPrice)
	return o, err
}
