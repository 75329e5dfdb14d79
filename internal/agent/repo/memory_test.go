package repo

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grocerybabu/voice-core/internal/agent/model"
)

func TestMemoryStore_Stock(t *testing.T) {
	s := NewMemoryStore(nil)
	ctx := context.Background()

	removed, err := s.DecrementStock(ctx, "basmati rice 5KG", 3)
	require.NoError(t, err)
	assert.Equal(t, 3, removed)
	removed, err = s.DecrementStock(ctx, "Basmati Rice 5kg", 3)
	require.NoError(t, err)
	assert.Equal(t, 1, removed, "only the remaining unit is removed")
	removed, err = s.DecrementStock(ctx, "Tomato Ketchup", -2)
	require.NoError(t, err)
	assert.Equal(t, -2, removed)
	_, err = s.DecrementStock(ctx, "Caviar", 1)
	assert.Error(t, err)

	items, err := s.LoadCatalog(ctx)
	require.NoError(t, err)
	byName := map[string]int{}
	for _, it := range items {
		byName[it.Name] = it.Quantity
	}
	assert.Zero(t, byName["Basmati Rice 5kg"], "stock never goes negative")
	assert.Equal(t, 10, byName["Tomato Ketchup"])
}

func TestMemoryStore_Carts(t *testing.T) {
	s := NewMemoryStore(nil)
	ctx := context.Background()

	c, err := s.LoadCart(ctx, "call-1")
	require.NoError(t, err)
	assert.Nil(t, c)

	cart := model.NewCart("call-1", "555-0100")
	_, err = cart.Add("Tomato Ketchup", 2, decimal.RequireFromString("3.49"))
	require.NoError(t, err)
	require.NoError(t, s.SaveCart(ctx, "call-1", cart))

	cart.Items[0].Quantity = 99
	got, err := s.LoadCart(ctx, "call-1")
	require.NoError(t, err)
	assert.Equal(t, 2, got.Items[0].Quantity, "stored carts are copies")

	require.NoError(t, s.DeleteCart(ctx, "call-1"))
	got, err = s.LoadCart(ctx, "call-1")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestMemoryStore_CustomersAndOrders(t *testing.T) {
	s := NewMemoryStore(nil)
	ctx := context.Background()

	p, err := s.GetCustomer(ctx, "555-0100")
	require.NoError(t, err)
	assert.Nil(t, p)

	require.NoError(t, s.UpsertCustomer(ctx, model.CustomerProfile{Phone: "555-0100", Name: "Asha"}))
	require.NoError(t, s.UpsertCustomer(ctx, model.CustomerProfile{Phone: "555-0100", Name: "Asha K"}))
	p, err = s.GetCustomer(ctx, "555-0100")
	require.NoError(t, err)
	assert.Equal(t, "Asha K", p.Name)

	cart := model.NewCart("call-1", "")
	_, _ = cart.Add("Tomato Ketchup", 1, decimal.RequireFromString("3.49"))
	o, err := model.NewOrder("555-0100", cart, time.Now())
	require.NoError(t, err)
	require.NoError(t, s.AppendOrder(ctx, o))
	assert.Len(t, s.Orders(), 1)
}

func TestMemoryStore_Turns(t *testing.T) {
	s := NewMemoryStore(nil)
	ctx := context.Background()
	for _, text := range []string{"hi", "add rice", "two please"} {
		require.NoError(t, s.AddTurn(ctx, "call-1", model.Turn{Role: model.RoleCaller, Text: text}, 2))
	}
	turns, err := s.LoadTurns(ctx, "call-1")
	require.NoError(t, err)
	require.Len(t, turns, 2)
	assert.Equal(t, "add rice", turns[0].Text)

	require.NoError(t, s.ClearTurns(ctx, "call-1"))
	turns, err = s.LoadTurns(ctx, "call-1")
	require.NoError(t, err)
	assert.Empty(t, turns)
}

func TestMemoryStore_ReplaceCatalog(t *testing.T) {
	s := NewMemoryStore([]model.CatalogItem{})
	items, err := s.LoadCatalog(context.Background())
	require.NoError(t, err)
	assert.Empty(t, items)

	s.ReplaceCatalog(FallbackCatalog()[:1])
	items, err = s.LoadCatalog(context.Background())
	require.NoError(t, err)
	assert.Len(t, items, 1)
}
