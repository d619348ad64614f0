package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/asquebay/bookstore-orders/internal/channel"
	"github.com/asquebay/bookstore-orders/internal/lib/metrics"
	"github.com/asquebay/bookstore-orders/internal/model"
)

const tracerName = "github.com/asquebay/bookstore-orders/internal/service"

// OrderService — оркестратор заказов
// единственный компонент, который знает и о покупателях, и о складе
type OrderService struct {
	repo      OrderRepository
	cache     OrderCache
	customers CustomerClient
	inventory InventoryClient
	metrics   *metrics.Metrics
	tracer    trace.Tracer
	log       *slog.Logger
}

// NewOrderService создаёт новый экземпляр сервиса заказов
// клиенты внешних сервисов передаются явно, глобального реестра нет
func NewOrderService(
	repo OrderRepository,
	cache OrderCache,
	customers CustomerClient,
	inventory InventoryClient,
	m *metrics.Metrics,
	log *slog.Logger,
) *OrderService {
	return &OrderService{
		repo:      repo,
		cache:     cache,
		customers: customers,
		inventory: inventory,
		metrics:   m,
		tracer:    otel.Tracer(tracerName),
		log:       log,
	}
}

// CreateOrder выполняет сагу создания заказа
// проверки 1-3 только читают, поэтому при их провале компенсировать нечего;
// запись в хранилище — точка фиксации, после неё вызывающий получает успех
func (s *OrderService) CreateOrder(ctx context.Context, req model.CreateOrderRequest) (model.Order, error) {
	const op = "service.OrderService.CreateOrder"

	if err := req.Validate(); err != nil {
		s.metrics.ObserveSaga(sagaCreateOrder, "rejected")
		return model.Order{}, fmt.Errorf("%s: %w: %w", op, ErrInvalidOrder, err)
	}

	id := req.ID
	if id == "" {
		id = uuid.NewString()
	}
	order := req.ToOrder(id)

	log := s.log.With(
		slog.String("op", op),
		slog.String("order_id", order.ID),
		slog.String("book_id", order.BookID),
		slog.String("customer_id", order.CustomerID),
		slog.Int("quantity", order.Quantity),
	)

	// начатая сага доходит до конца: отмена контекста вызывающего её не прерывает,
	// ограничивают её только таймауты отдельных запросов
	ctx = context.WithoutCancel(ctx)
	ctx, span := s.tracer.Start(ctx, "saga."+sagaCreateOrder)
	defer span.End()

	run := newSagaRun(sagaCreateOrder, order.ID, s.tracer)
	log.Info("attempting to create order")

	// 1. покупатель существует
	err := run.step(ctx, StepValidateCustomer, func(ctx context.Context) error {
		_, err := s.customers.GetCustomer(ctx, order.CustomerID)
		if errors.Is(err, channel.ErrNotFound) {
			return fmt.Errorf("%w: %w", ErrCustomerNotFound, err)
		}
		return err
	})
	if err != nil {
		return model.Order{}, s.abort(log, run, op, err)
	}

	// 2. книга существует
	err = run.step(ctx, StepValidateBook, func(ctx context.Context) error {
		_, err := s.inventory.GetBook(ctx, order.BookID)
		if errors.Is(err, channel.ErrNotFound) {
			return fmt.Errorf("%w: %w", ErrBookNotFound, err)
		}
		return err
	})
	if err != nil {
		return model.Order{}, s.abort(log, run, op, err)
	}

	// 3. остатка хватает на момент чтения; между проверкой и списанием
	// остаток никто не держит, два параллельных заказа могут пройти оба
	err = run.step(ctx, StepCheckStock, func(ctx context.Context) error {
		inStock, err := s.inventory.IsBookInStock(ctx, order.BookID, order.Quantity)
		if errors.Is(err, channel.ErrNotFound) {
			return fmt.Errorf("%w: %w", ErrBookNotFound, err)
		}
		if err != nil {
			return err
		}
		if !inStock {
			return ErrInsufficientStock
		}
		return nil
	})
	if err != nil {
		return model.Order{}, s.abort(log, run, op, err)
	}

	// 4. точка фиксации; внешнее состояние ещё не менялось, так что откатывать нечего
	err = run.step(ctx, StepPersistOrder, func(ctx context.Context) error {
		if err := s.repo.CreateOrder(ctx, order); err != nil {
			if errors.Is(err, ErrOrderExists) {
				return err
			}
			return fmt.Errorf("%w: %w", ErrPersistence, err)
		}
		s.cache.Set(order)
		return nil
	})
	if err != nil {
		return model.Order{}, s.abort(log, run, op, err)
	}

	// 5. событие списания без ожидания результата
	// TODO: списание по идемпотентному ключу операции, чтобы расхождение склада можно было обнаружить и догнать
	err = run.step(ctx, StepEmitStockDecrement, func(ctx context.Context) error {
		return s.inventory.DecreaseStock(ctx, order.BookID, order.Quantity)
	})
	if err != nil {
		log.Error("stock decrement was not handed off, stock diverges from orders",
			slog.String("error", err.Error()),
			slog.Any("run", run),
		)
	}

	s.metrics.ObserveSaga(sagaCreateOrder, outcome(nil))
	log.Info("order created successfully", slog.Any("run", run))

	return order, nil
}

// CancelOrder выполняет сагу отмены заказа
// заказ удаляется до возврата остатка; если склад не ответил успехом,
// удаление откатывается пересозданием записи с тем же идентификатором
func (s *OrderService) CancelOrder(ctx context.Context, id string) error {
	const op = "service.OrderService.CancelOrder"
	log := s.log.With(slog.String("op", op), slog.String("order_id", id))

	ctx = context.WithoutCancel(ctx)
	ctx, span := s.tracer.Start(ctx, "saga."+sagaCancelOrder)
	defer span.End()

	run := newSagaRun(sagaCancelOrder, id, s.tracer)
	log.Info("attempting to cancel order")

	// 1. заказ существует
	var order model.Order
	err := run.step(ctx, StepLookupOrder, func(ctx context.Context) error {
		var err error
		order, err = s.getOrder(ctx, id)
		return err
	})
	if err != nil {
		return s.abort(log, run, op, err)
	}

	// 2. удаляем запись
	err = run.step(ctx, StepDeleteOrder, func(ctx context.Context) error {
		err := s.repo.DeleteOrder(ctx, id)
		// записи больше нет, из кэша её тоже убираем, даже если удалил кто-то другой
		if err == nil || errors.Is(err, ErrOrderNotFound) {
			s.cache.Delete(id)
		}
		if err != nil && !errors.Is(err, ErrOrderNotFound) {
			return fmt.Errorf("%w: %w", ErrPersistence, err)
		}
		return err
	})
	if err != nil {
		return s.abort(log, run, op, err)
	}

	// 3. возвращаем остаток на склад
	stockErr := run.step(ctx, StepCompensateStock, func(ctx context.Context) error {
		return s.inventory.IncreaseStock(ctx, order.BookID, order.Quantity)
	})
	if stockErr == nil {
		s.metrics.ObserveSaga(sagaCancelOrder, outcome(nil))
		log.Info("order cancelled and stock updated", slog.Any("run", run))
		return nil
	}

	log.Error("failed to update stock, restoring order", slog.String("error", stockErr.Error()))

	// компенсация шага 2: та же запись, тот же идентификатор; ровно одна попытка
	restoreErr := run.step(ctx, StepRestoreOrder, func(ctx context.Context) error {
		if err := s.repo.CreateOrder(ctx, order); err != nil {
			return err
		}
		s.cache.Set(order)
		return nil
	})
	if restoreErr != nil {
		// заказа нет ни в хранилище, ни на складе; для ручного восстановления пишем в лог все поля
		log.Error("order lost: stock was not returned and order could not be restored",
			slog.String("book_id", order.BookID),
			slog.String("customer_id", order.CustomerID),
			slog.Int("quantity", order.Quantity),
			slog.String("total_price", order.TotalPrice.String()),
			slog.String("stock_error", stockErr.Error()),
			slog.String("restore_error", restoreErr.Error()),
		)
		return s.abort(log, run, op, fmt.Errorf("%w: %w", ErrFatal, errors.Join(stockErr, restoreErr)))
	}
	run.markCompensated(StepDeleteOrder)

	return s.abort(log, run, op, fmt.Errorf("%w: %w", ErrStockRollbackFailed, stockErr))
}

// GetOrderByID получает заказ по его ID
// сначала ищет в кэше, и только если там нет — обращается к хранилищу
func (s *OrderService) GetOrderByID(ctx context.Context, id string) (model.Order, error) {
	const op = "service.OrderService.GetOrderByID"

	order, err := s.getOrder(ctx, id)
	if err != nil {
		return model.Order{}, fmt.Errorf("%s: %w", op, err)
	}
	return order, nil
}

func (s *OrderService) getOrder(ctx context.Context, id string) (model.Order, error) {
	log := s.log.With(slog.String("order_id", id))

	// 1. пытаемся получить из кэша для максимальной скорости
	if order, found := s.cache.Get(id); found {
		log.Debug("order found in cache")
		return order, nil
	}

	// 2. если в кэше нет, идем в хранилище
	order, err := s.repo.GetOrderByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrOrderNotFound) {
			return model.Order{}, err
		}
		log.Error("failed to get order from repository", slog.String("error", err.Error()))
		return model.Order{}, fmt.Errorf("%w: %w", ErrPersistence, err)
	}

	// 3. раз уж мы достали заказ из хранилища, стоит положить его в кэш
	s.cache.Set(order)
	log.Debug("order found in repository and now cached")

	return order, nil
}

// ListOrders возвращает все заказы из хранилища
func (s *OrderService) ListOrders(ctx context.Context) ([]model.Order, error) {
	const op = "service.OrderService.ListOrders"

	orders, err := s.repo.GetAllOrders(ctx)
	if err != nil {
		s.log.Error("failed to list orders", slog.String("op", op), slog.String("error", err.Error()))
		return nil, fmt.Errorf("%s: %w: %w", op, ErrPersistence, err)
	}
	return orders, nil
}

// RestoreCache восстанавливает состояние кэша из хранилища при старте
func (s *OrderService) RestoreCache(ctx context.Context) error {
	const op = "service.OrderService.RestoreCache"
	log := s.log.With(slog.String("op", op))

	log.Info("starting cache restoration from repository")

	orders, err := s.repo.GetAllOrders(ctx)
	if err != nil {
		log.Error("failed to get all orders from repository", slog.String("error", err.Error()))
		return fmt.Errorf("%s: %w", op, err)
	}

	s.cache.LoadAll(orders)

	log.Info("cache restored successfully", slog.Int("orders_count", len(orders)))
	return nil
}

// abort фиксирует провал саги в логе и метриках
func (s *OrderService) abort(log *slog.Logger, run *SagaRun, op string, err error) error {
	label := outcome(err)
	s.metrics.ObserveSaga(run.Saga, label)

	if label == "rejected" {
		log.Info("saga rejected", slog.String("error", err.Error()), slog.Any("run", run))
	} else {
		log.Error("saga failed", slog.String("error", err.Error()), slog.Any("run", run))
	}

	return fmt.Errorf("%s: %w", op, err)
}
