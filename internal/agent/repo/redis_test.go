package repo

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grocerybabu/voice-core/internal/agent/model"
)

func newRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	s := NewRedisStore(rdb, "test", time.Hour, 30*time.Minute)
	t.Cleanup(func() { _ = s.Close() })
	return s, mr
}

func TestRedisStore_Catalog(t *testing.T) {
	s, _ := newRedisStore(t)
	ctx := context.Background()

	items, err := s.LoadCatalog(ctx)
	require.NoError(t, err)
	assert.Empty(t, items)

	require.NoError(t, s.SeedCatalog(ctx, FallbackCatalog()))
	items, err = s.LoadCatalog(ctx)
	require.NoError(t, err)
	require.Len(t, items, 5)
	assert.Equal(t, "Chora Black Eyed Peas 4 lb", items[0].Name, "catalog order is kept")
	assert.True(t, items[4].Price.Equal(decimal.RequireFromString("15.99")))

	removed, err := s.DecrementStock(ctx, "basmati rice 5kg", 3)
	require.NoError(t, err)
	assert.Equal(t, 3, removed)
	removed, err = s.DecrementStock(ctx, "Basmati Rice 5kg", 5)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
	removed, err = s.DecrementStock(ctx, "Tomato Ketchup", -1)
	require.NoError(t, err)
	assert.Equal(t, -1, removed)
	_, err = s.DecrementStock(ctx, "Caviar", 1)
	assert.Error(t, err)

	items, err = s.LoadCatalog(ctx)
	require.NoError(t, err)
	assert.Zero(t, items[4].Quantity)
	assert.Equal(t, 9, items[3].Quantity)
}

func TestRedisStore_Carts(t *testing.T) {
	s, mr := newRedisStore(t)
	ctx := context.Background()

	c, err := s.LoadCart(ctx, "call-1")
	require.NoError(t, err)
	assert.Nil(t, c)

	cart := model.NewCart("call-1", "555-0100")
	_, err = cart.Add("Tomato Ketchup", 2, decimal.RequireFromString("3.49"))
	require.NoError(t, err)
	require.NoError(t, s.SaveCart(ctx, "call-1", cart))
	assert.Equal(t, time.Hour, mr.TTL("test:cart:call-1"))

	got, err := s.LoadCart(ctx, "call-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "555-0100", got.CustomerPhone)
	require.Len(t, got.Items, 1)
	assert.True(t, got.Total.Equal(decimal.RequireFromString("6.98")))

	require.NoError(t, s.DeleteCart(ctx, "call-1"))
	assert.False(t, mr.Exists("test:cart:call-1"))
}

func TestRedisStore_CustomersAndOrders(t *testing.T) {
	s, _ := newRedisStore(t)
	ctx := context.Background()

	p, err := s.GetCustomer(ctx, "555-0100")
	require.NoError(t, err)
	assert.Nil(t, p)

	profile := model.CustomerProfile{
		Phone:         "555-0100",
		Name:          "Asha",
		Address:       model.ParseAddress("12 Main St, Springfield, IL, 62704"),
		LastOrderDate: "2026-03-14",
	}
	require.NoError(t, s.UpsertCustomer(ctx, profile))
	p, err = s.GetCustomer(ctx, "555-0100")
	require.NoError(t, err)
	assert.Equal(t, profile, *p)

	cart := model.NewCart("call-1", "")
	_, _ = cart.Add("Tomato Ketchup", 1, decimal.RequireFromString("3.49"))
	first, err := model.NewOrder("555-0100", cart, time.Now())
	require.NoError(t, err)
	second, err := model.NewOrder("555-0100", cart, time.Now())
	require.NoError(t, err)
	require.NoError(t, s.AppendOrder(ctx, first))
	require.NoError(t, s.AppendOrder(ctx, second))

	orders, err := s.Orders(ctx)
	require.NoError(t, err)
	require.Len(t, orders, 2)
	assert.Equal(t, first.ID, orders[0].ID)
	assert.True(t, orders[1].Total.Equal(decimal.RequireFromString("3.49")))
}

func TestRedisStore_Turns(t *testing.T) {
	s, mr := newRedisStore(t)
	ctx := context.Background()

	for _, text := range []string{"hi", "add rice", "two please"} {
		require.NoError(t, s.AddTurn(ctx, "call-1", model.Turn{Role: model.RoleCaller, Text: text}, 2))
	}
	assert.Equal(t, 30*time.Minute, mr.TTL("test:conversation:call-1:turns"))

	turns, err := s.LoadTurns(ctx, "call-1")
	require.NoError(t, err)
	require.Len(t, turns, 2)
	assert.Equal(t, "add rice", turns[0].Text)
	assert.Equal(t, model.RoleCaller, turns[1].Role)

	require.NoError(t, s.ClearTurns(ctx, "call-1"))
	turns, err = s.LoadTurns(ctx, "call-1")
	require.NoError(t, err)
	assert.Empty(t, turns)
}

func TestRedisStore_ConnectionErrors(t *testing.T) {
	s, mr := newRedisStore(t)
	mr.SetError("LOADING redis is loading the dataset in memory")

	_, err := s.LoadCatalog(context.Background())
	assert.Error(t, err)
	assert.Error(t, s.SaveCart(context.Background(), "call-1", model.NewCart("call-1", "")))
}
