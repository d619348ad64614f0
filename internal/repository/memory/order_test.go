package memory

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/asquebay/bookstore-orders/internal/model"
	"github.com/asquebay/bookstore-orders/internal/repository"
)

func TestOrderRepository_Lifecycle(t *testing.T) {
	ctx := context.Background()
	repo := NewOrderRepository()
	order := model.Order{ID: "o-2", BookID: "B1", CustomerID: "C1", Quantity: 2, TotalPrice: decimal.NewFromInt(20)}

	require.NoError(t, repo.CreateOrder(ctx, order))
	require.NoError(t, repo.CreateOrder(ctx, model.Order{ID: "o-1", BookID: "B2", CustomerID: "C1", Quantity: 1}))

	err := repo.CreateOrder(ctx, order)
	assert.ErrorIs(t, err, repository.ErrOrderExists)

	got, err := repo.GetOrderByID(ctx, "o-2")
	require.NoError(t, err)
	assert.True(t, order.Equal(got))

	all, err := repo.GetAllOrders(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "o-1", all[0].ID)

	require.NoError(t, repo.DeleteOrder(ctx, "o-2"))
	_, err = repo.GetOrderByID(ctx, "o-2")
	assert.ErrorIs(t, err, repository.ErrOrderNotFound)

	err = repo.DeleteOrder(ctx, "o-2")
	assert.ErrorIs(t, err, repository.ErrOrderNotFound)

	// после удаления тот же идентификатор можно записать снова
	require.NoError(t, repo.CreateOrder(ctx, order))
}
