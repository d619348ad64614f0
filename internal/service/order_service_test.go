package service

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/asquebay/bookstore-orders/internal/channel"
	"github.com/asquebay/bookstore-orders/internal/lib/logger"
	"github.com/asquebay/bookstore-orders/internal/model"
	"github.com/asquebay/bookstore-orders/internal/repository/cache"
)

type testEnv struct {
	svc       *OrderService
	repo      *flakyRepo
	cache     *cache.OrderCache
	customers *fakeCustomers
	inventory *fakeInventory
}

func newTestEnv() *testEnv {
	env := &testEnv{
		repo:      newFlakyRepo(),
		cache:     cache.NewOrderCache(),
		customers: &fakeCustomers{known: map[string]bool{"C1": true}},
		inventory: newFakeInventory(map[string]int{"B1": 5}),
	}
	env.svc = NewOrderService(env.repo, env.cache, env.customers, env.inventory, nil, logger.Discard())
	return env
}

func validRequest() model.CreateOrderRequest {
	return model.CreateOrderRequest{
		ID:         "o-1",
		BookID:     "B1",
		CustomerID: "C1",
		Quantity:   3,
		TotalPrice: decimal.RequireFromString("29.97"),
	}
}

// хранилище читаем напрямую, мимо кэша сервиса
func (e *testEnv) stored(t *testing.T, id string) (model.Order, bool) {
	t.Helper()
	order, err := e.repo.OrderRepository.GetOrderByID(context.Background(), id)
	if errors.Is(err, ErrOrderNotFound) {
		return model.Order{}, false
	}
	require.NoError(t, err)
	return order, true
}

func TestCreateOrder_Success(t *testing.T) {
	env := newTestEnv()
	req := validRequest()

	order, err := env.svc.CreateOrder(context.Background(), req)
	require.NoError(t, err)

	assert.True(t, req.ToOrder("o-1").Equal(order))

	got, err := env.svc.GetOrderByID(context.Background(), "o-1")
	require.NoError(t, err)
	assert.True(t, order.Equal(got))

	stored, ok := env.stored(t, "o-1")
	require.True(t, ok)
	assert.True(t, order.Equal(stored))

	assert.Equal(t, []stockCall{{BookID: "B1", Quantity: 3}}, env.inventory.decreasedCalls())
}

func TestCreateOrder_GeneratesID(t *testing.T) {
	env := newTestEnv()
	req := validRequest()
	req.ID = ""

	order, err := env.svc.CreateOrder(context.Background(), req)
	require.NoError(t, err)
	require.NotEmpty(t, order.ID)

	_, ok := env.stored(t, order.ID)
	assert.True(t, ok)
}

func TestCreateOrder_Rejections(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(env *testEnv, req *model.CreateOrderRequest)
		wantErr error
	}{
		{
			name:    "customer does not exist",
			mutate:  func(_ *testEnv, req *model.CreateOrderRequest) { req.CustomerID = "C404" },
			wantErr: ErrCustomerNotFound,
		},
		{
			name:    "book does not exist",
			mutate:  func(_ *testEnv, req *model.CreateOrderRequest) { req.BookID = "B404" },
			wantErr: ErrBookNotFound,
		},
		{
			name:    "stock lower than quantity",
			mutate:  func(_ *testEnv, req *model.CreateOrderRequest) { req.Quantity = 6 },
			wantErr: ErrInsufficientStock,
		},
		{
			name:    "invalid quantity",
			mutate:  func(_ *testEnv, req *model.CreateOrderRequest) { req.Quantity = 0 },
			wantErr: ErrInvalidOrder,
		},
		{
			name:    "negative price",
			mutate:  func(_ *testEnv, req *model.CreateOrderRequest) { req.TotalPrice = decimal.NewFromInt(-1) },
			wantErr: ErrInvalidOrder,
		},
		{
			name:    "price with fractions of a cent",
			mutate:  func(_ *testEnv, req *model.CreateOrderRequest) { req.TotalPrice = decimal.RequireFromString("9.999") },
			wantErr: ErrInvalidOrder,
		},
		{
			name: "customer lookup timed out",
			mutate: func(env *testEnv, _ *model.CreateOrderRequest) {
				env.customers.err = fmt.Errorf("getCustomer: %w", channel.ErrTimeout)
			},
			wantErr: ErrTimeout,
		},
		{
			name: "book lookup rejected",
			mutate: func(env *testEnv, _ *model.CreateOrderRequest) {
				env.inventory.getErr = fmt.Errorf("getBook: %w", channel.ErrRejected)
			},
			wantErr: ErrRejected,
		},
		{
			name: "stock check timed out",
			mutate: func(env *testEnv, _ *model.CreateOrderRequest) {
				env.inventory.checkErr = fmt.Errorf("isBookInStock: %w", channel.ErrTimeout)
			},
			wantErr: ErrTimeout,
		},
		{
			name: "store unavailable",
			mutate: func(env *testEnv, _ *model.CreateOrderRequest) {
				env.repo.setCreateErr(errors.New("connection refused"))
			},
			wantErr: ErrPersistence,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv()
			req := validRequest()
			tt.mutate(env, &req)

			_, err := env.svc.CreateOrder(context.Background(), req)

			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)

			_, persisted := env.stored(t, req.ID)
			assert.False(t, persisted, "no order must be persisted")
			assert.Empty(t, env.inventory.decreasedCalls(), "no stock decrement must be emitted")
		})
	}
}

func TestCreateOrder_NotFoundIsNotRejected(t *testing.T) {
	env := newTestEnv()
	req := validRequest()
	req.CustomerID = "C404"

	_, err := env.svc.CreateOrder(context.Background(), req)

	assert.ErrorIs(t, err, ErrCustomerNotFound)
	assert.NotErrorIs(t, err, ErrRejected)
	assert.NotErrorIs(t, err, ErrTimeout)
	assert.Equal(t, 1, env.customers.calls)
}

func TestCreateOrder_DuplicateID(t *testing.T) {
	env := newTestEnv()

	_, err := env.svc.CreateOrder(context.Background(), validRequest())
	require.NoError(t, err)

	_, err = env.svc.CreateOrder(context.Background(), validRequest())
	assert.ErrorIs(t, err, ErrOrderExists)
	assert.Len(t, env.inventory.decreasedCalls(), 1)
}

func TestCreateOrder_DecrementHandOffFailureDoesNotFailSaga(t *testing.T) {
	env := newTestEnv()
	env.inventory.publishErr = errors.New("broker unavailable")

	order, err := env.svc.CreateOrder(context.Background(), validRequest())

	require.NoError(t, err)
	_, ok := env.stored(t, order.ID)
	assert.True(t, ok)
}

func TestCreateOrder_CallerCancellationDoesNotAbortSaga(t *testing.T) {
	env := newTestEnv()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := env.svc.CreateOrder(ctx, validRequest())

	require.NoError(t, err)
	_, ok := env.stored(t, "o-1")
	assert.True(t, ok)
}

func TestGetOrderByID_Idempotent(t *testing.T) {
	env := newTestEnv()
	_, err := env.svc.CreateOrder(context.Background(), validRequest())
	require.NoError(t, err)

	first, err := env.svc.GetOrderByID(context.Background(), "o-1")
	require.NoError(t, err)
	second, err := env.svc.GetOrderByID(context.Background(), "o-1")
	require.NoError(t, err)

	assert.True(t, first.Equal(second))
}

func TestGetOrderByID_ReadsThroughCache(t *testing.T) {
	env := newTestEnv()
	req := validRequest()
	order := req.ToOrder("o-1")
	require.NoError(t, env.repo.OrderRepository.CreateOrder(context.Background(), order))

	_, cached := env.cache.Get("o-1")
	require.False(t, cached)

	got, err := env.svc.GetOrderByID(context.Background(), "o-1")
	require.NoError(t, err)
	assert.True(t, order.Equal(got))

	_, cached = env.cache.Get("o-1")
	assert.True(t, cached)
}

func TestGetOrderByID_NotFound(t *testing.T) {
	env := newTestEnv()

	_, err := env.svc.GetOrderByID(context.Background(), "missing")

	assert.ErrorIs(t, err, ErrOrderNotFound)
}

func TestGetOrderByID_StoreFailure(t *testing.T) {
	env := newTestEnv()
	env.repo.getErr = errors.New("connection reset")

	_, err := env.svc.GetOrderByID(context.Background(), "o-1")

	assert.ErrorIs(t, err, ErrPersistence)
	assert.NotErrorIs(t, err, ErrOrderNotFound)
}

func TestCancelOrder_RoundTrip(t *testing.T) {
	env := newTestEnv()
	_, err := env.svc.CreateOrder(context.Background(), validRequest())
	require.NoError(t, err)

	require.NoError(t, env.svc.CancelOrder(context.Background(), "o-1"))

	_, err = env.svc.GetOrderByID(context.Background(), "o-1")
	assert.ErrorIs(t, err, ErrOrderNotFound)
	assert.Equal(t, []stockCall{{BookID: "B1", Quantity: 3}}, env.inventory.increased)
}

func TestCancelOrder_StockFailureRestoresOrder(t *testing.T) {
	env := newTestEnv()
	original, err := env.svc.CreateOrder(context.Background(), validRequest())
	require.NoError(t, err)
	env.inventory.increaseErr = fmt.Errorf("IncreaseStock: %w", channel.ErrTimeout)

	err = env.svc.CancelOrder(context.Background(), "o-1")

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrStockRollbackFailed)
	assert.ErrorIs(t, err, ErrTimeout)
	assert.NotErrorIs(t, err, ErrFatal)

	got, err := env.svc.GetOrderByID(context.Background(), "o-1")
	require.NoError(t, err)
	assert.True(t, original.Equal(got))

	stored, ok := env.stored(t, "o-1")
	require.True(t, ok)
	assert.True(t, original.Equal(stored))
}

func TestCancelOrder_RestoreFailureIsFatal(t *testing.T) {
	env := newTestEnv()
	_, err := env.svc.CreateOrder(context.Background(), validRequest())
	require.NoError(t, err)
	env.inventory.increaseErr = fmt.Errorf("IncreaseStock: %w", channel.ErrRejected)
	env.repo.setCreateErr(errors.New("connection refused"))

	err = env.svc.CancelOrder(context.Background(), "o-1")

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrFatal)
	assert.ErrorIs(t, err, ErrRejected)
	assert.NotErrorIs(t, err, ErrStockRollbackFailed)

	_, ok := env.stored(t, "o-1")
	assert.False(t, ok)
	_, cached := env.cache.Get("o-1")
	assert.False(t, cached)
}

func TestCancelOrder_NotFound(t *testing.T) {
	env := newTestEnv()

	err := env.svc.CancelOrder(context.Background(), "missing")

	assert.ErrorIs(t, err, ErrOrderNotFound)
	assert.Empty(t, env.inventory.increased)
}

func TestCancelOrder_DeleteFailureLeavesOrder(t *testing.T) {
	env := newTestEnv()
	_, err := env.svc.CreateOrder(context.Background(), validRequest())
	require.NoError(t, err)
	env.repo.deleteErr = errors.New("connection refused")

	err = env.svc.CancelOrder(context.Background(), "o-1")

	assert.ErrorIs(t, err, ErrPersistence)
	assert.Empty(t, env.inventory.increased)
	_, ok := env.stored(t, "o-1")
	assert.True(t, ok)
}

func TestListOrders(t *testing.T) {
	env := newTestEnv()
	for _, id := range []string{"o-2", "o-1"} {
		req := validRequest()
		req.ID = id
		req.Quantity = 1
		_, err := env.svc.CreateOrder(context.Background(), req)
		require.NoError(t, err)
	}

	orders, err := env.svc.ListOrders(context.Background())
	require.NoError(t, err)
	require.Len(t, orders, 2)
	assert.Equal(t, "o-1", orders[0].ID)

	env.repo.listErr = errors.New("timeout")
	_, err = env.svc.ListOrders(context.Background())
	assert.ErrorIs(t, err, ErrPersistence)
}

func TestRestoreCache(t *testing.T) {
	env := newTestEnv()
	req := validRequest()
	order := req.ToOrder("o-1")
	require.NoError(t, env.repo.OrderRepository.CreateOrder(context.Background(), order))

	require.NoError(t, env.svc.RestoreCache(context.Background()))

	cached, ok := env.cache.Get("o-1")
	require.True(t, ok)
	assert.True(t, order.Equal(cached))
}
