package order

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grocerybabu/voice-core/internal/agent/cart"
	"github.com/grocerybabu/voice-core/internal/agent/catalog"
	"github.com/grocerybabu/voice-core/internal/agent/model"
	"github.com/grocerybabu/voice-core/internal/agent/repo"
	"github.com/grocerybabu/voice-core/internal/agent/session"
	errx "github.com/grocerybabu/voice-core/internal/core/error"
)

type flakyStore struct {
	*repo.MemoryStore
	orderErr    error
	customerErr error
}

func (s *flakyStore) AppendOrder(ctx context.Context, o model.Order) error {
	if s.orderErr != nil {
		return s.orderErr
	}
	return s.MemoryStore.AppendOrder(ctx, o)
}

func (s *flakyStore) UpsertCustomer(ctx context.Context, p model.CustomerProfile) error {
	if s.customerErr != nil {
		return s.customerErr
	}
	return s.MemoryStore.UpsertCustomer(ctx, p)
}

type fixture struct {
	store     *flakyStore
	index     *catalog.Index
	carts     *cart.Store
	finalizer *Finalizer
}

var orderTime = time.Date(2026, 3, 14, 18, 30, 0, 0, time.UTC)

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := &flakyStore{MemoryStore: repo.NewMemoryStore([]model.CatalogItem{
		{Name: "Rice 5kg", Category: "Grocery", Quantity: 4, Price: decimal.RequireFromString("15.99")},
		{Name: "Tomato Ketchup", Category: "Condiments", Quantity: 8, Price: decimal.RequireFromString("3.49")},
	})}
	index := catalog.NewIndex(store, nil, catalog.Options{})
	require.NoError(t, index.Reload(context.Background()))
	sessions := session.NewRegistry(index, store, store, session.Options{})
	f := NewFinalizer(sessions, index, store, nil)
	f.now = func() time.Time { return orderTime }
	return &fixture{
		store:     store,
		index:     index,
		carts:     cart.NewStore(sessions, index, store, nil),
		finalizer: f,
	}
}

func (f *fixture) storedQuantity(t *testing.T, name string) int {
	t.Helper()
	items, err := f.store.LoadCatalog(context.Background())
	require.NoError(t, err)
	for _, it := range items {
		if it.Name == name {
			return it.Quantity
		}
	}
	t.Fatalf("item %q not stored", name)
	return 0
}

func TestPlaceOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.carts.Add(ctx, "call-1", "rice", 2, "")
	require.NoError(t, err)

	rec, err := f.finalizer.PlaceOrder(ctx, "call-1", model.CustomerData{
		Name:    "Asha",
		Phone:   "555-0100",
		Address: model.ParseAddress("12 Main St, Springfield, IL, 62704"),
	})
	require.NoError(t, err)
	assert.NotEmpty(t, rec.OrderID)
	assert.True(t, rec.Total.Equal(decimal.RequireFromString("31.98")))
	require.Len(t, rec.Items, 1)

	orders := f.store.Orders()
	require.Len(t, orders, 1)
	assert.Equal(t, rec.OrderID, orders[0].ID)
	assert.Equal(t, "555-0100", orders[0].CustomerPhone)
	assert.Equal(t, model.OrderStatusPending, orders[0].Status)
	assert.Equal(t, "2026-03-14", orders[0].Date)
	lines, err := orders[0].Lines()
	require.NoError(t, err)
	assert.Equal(t, 2, lines[0].Quantity)

	p, err := f.store.GetCustomer(ctx, "555-0100")
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, "Asha", p.Name)
	assert.Equal(t, model.Address{Street: "12 Main St", City: "Springfield", State: "IL", Zip: "62704"}, p.Address)
	assert.Equal(t, "2026-03-14", p.LastOrderDate)

	sum, err := f.carts.Summarize(ctx, "call-1")
	require.NoError(t, err)
	assert.True(t, sum.Empty)
	stored, err := f.store.LoadCart(ctx, "call-1")
	require.NoError(t, err)
	assert.Nil(t, stored)

	assert.Equal(t, 2, f.index.Available("Rice 5kg"))
	assert.Equal(t, 2, f.storedQuantity(t, "Rice 5kg"))
}

func TestPlaceOrder_EmptyCart(t *testing.T) {
	f := newFixture(t)
	_, err := f.finalizer.PlaceOrder(context.Background(), "call-1", model.CustomerData{Phone: "555-0100"})
	assert.Equal(t, errx.KindCartEmpty, errx.KindOf(err))
	assert.Empty(t, f.store.Orders())
}

func TestPlaceOrder_PhoneFromCart(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.carts.Add(ctx, "call-1", "ketchup", 1, "")
	require.NoError(t, err)

	_, err = f.finalizer.PlaceOrder(ctx, "call-1", model.CustomerData{Name: "Asha"})
	require.Equal(t, errx.KindClarificationNeeded, errx.KindOf(err))
	ae, _ := errx.As(err)
	assert.Equal(t, "customer_phone", ae.Field)

	_, err = f.carts.Add(ctx, "call-1", "ketchup", 1, "555-0199")
	require.NoError(t, err)
	rec, err := f.finalizer.PlaceOrder(ctx, "call-1", model.CustomerData{Name: "Asha"})
	require.NoError(t, err)
	assert.Equal(t, "555-0199", rec.Customer.Phone)
}

func TestPlaceOrder_AppendFailureCompensates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.carts.Add(ctx, "call-1", "rice", 2, "")
	require.NoError(t, err)

	f.store.orderErr = errors.New("sheet write failed")
	_, err = f.finalizer.PlaceOrder(ctx, "call-1", model.CustomerData{Phone: "555-0100"})
	require.Equal(t, errx.KindOrderPlacementFailed, errx.KindOf(err))
	assert.ErrorIs(t, err, f.store.orderErr)

	sum, err := f.carts.Summarize(ctx, "call-1")
	require.NoError(t, err)
	require.Len(t, sum.Items, 1)
	assert.Equal(t, 2, sum.Items[0].Quantity)
	assert.Equal(t, 2, f.index.Available("Rice 5kg"))
	assert.Equal(t, 4, f.storedQuantity(t, "Rice 5kg"))

	f.store.orderErr = nil
	_, err = f.finalizer.PlaceOrder(ctx, "call-1", model.CustomerData{Phone: "555-0100"})
	require.NoError(t, err, "the kept cart can be retried")
	assert.Equal(t, 2, f.storedQuantity(t, "Rice 5kg"))
}

func TestPlaceOrder_CustomerFailureLeavesOrphanOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.carts.Add(ctx, "call-1", "rice", 1, "")
	require.NoError(t, err)

	f.store.customerErr = errors.New("sheet write failed")
	_, err = f.finalizer.PlaceOrder(ctx, "call-1", model.CustomerData{Phone: "555-0100"})
	require.Equal(t, errx.KindOrderPlacementFailed, errx.KindOf(err))

	assert.Len(t, f.store.Orders(), 1)
	sum, err := f.carts.Summarize(ctx, "call-1")
	require.NoError(t, err)
	assert.False(t, sum.Empty)
	assert.Equal(t, 3, f.index.Available("Rice 5kg"))
	assert.Equal(t, 4, f.storedQuantity(t, "Rice 5kg"))
}

func TestPlaceOrder_CompensationRestoresOnlyWhatWasRemoved(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.carts.Add(ctx, "call-1", "rice", 2, "")
	require.NoError(t, err)

	// another replica sold most of the stored stock meanwhile
	removed, err := f.store.MemoryStore.DecrementStock(ctx, "Rice 5kg", 3)
	require.NoError(t, err)
	require.Equal(t, 3, removed)

	f.store.orderErr = errors.New("sheet write failed")
	_, err = f.finalizer.PlaceOrder(ctx, "call-1", model.CustomerData{Phone: "555-0100"})
	require.Equal(t, errx.KindOrderPlacementFailed, errx.KindOf(err))

	assert.Equal(t, 1, f.storedQuantity(t, "Rice 5kg"))
	assert.Equal(t, 2, f.index.Available("Rice 5kg"))
}
