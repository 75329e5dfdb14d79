package repo

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grocerybabu/voice-core/internal/agent/model"
	"github.com/grocerybabu/voice-core/pkg/postgres"
)

// newPostgresStore connects to TEST_DATABASE_URL, skipping when it is unset.
func newPostgresStore(t *testing.T) *PostgresStore {
	t.Helper()
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	cfg := postgres.Config{URL: url, MaxConns: 4, DialTimeout: 5}
	pool, err := cfg.New(ctx)
	require.NoError(t, err)
	s, err := NewPostgresStore(ctx, pool)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestPostgresStore_RoundTrip(t *testing.T) {
	s := newPostgresStore(t)
	ctx := context.Background()
	suffix := uuid.NewString()[:8]

	name := "Test Rice " + suffix
	require.NoError(t, s.SeedCatalog(ctx, []model.CatalogItem{
		{Name: name, Category: "Grocery", Quantity: 4, Price: decimal.RequireFromString("15.99"), Tags: []string{"rice"}},
	}))
	removed, err := s.DecrementStock(ctx, name, 3)
	require.NoError(t, err)
	assert.Equal(t, 3, removed)
	removed, err = s.DecrementStock(ctx, name, 3)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
	_, err = s.DecrementStock(ctx, "Missing "+suffix, 1)
	assert.Error(t, err)
	items, err := s.LoadCatalog(ctx)
	require.NoError(t, err)
	var found *model.CatalogItem
	for i := range items {
		if items[i].Name == name {
			found = &items[i]
		}
	}
	require.NotNil(t, found)
	assert.Zero(t, found.Quantity)
	assert.Equal(t, []string{"rice"}, found.Tags)

	session := "call-" + suffix
	cart := model.NewCart(session, "555-0100")
	_, err = cart.Add(name, 2, decimal.RequireFromString("15.99"))
	require.NoError(t, err)
	require.NoError(t, s.SaveCart(ctx, session, cart))
	got, err := s.LoadCart(ctx, session)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, got.Total.Equal(decimal.RequireFromString("31.98")))
	require.NoError(t, s.DeleteCart(ctx, session))
	got, err = s.LoadCart(ctx, session)
	require.NoError(t, err)
	assert.Nil(t, got)

	phone := "555-" + suffix
	require.NoError(t, s.UpsertCustomer(ctx, model.CustomerProfile{Phone: phone, Name: "Asha"}))
	p, err := s.GetCustomer(ctx, phone)
	require.NoError(t, err)
	assert.Equal(t, "Asha", p.Name)

	o, err := model.NewOrder(phone, cart, time.Now())
	require.NoError(t, err)
	require.NoError(t, s.AppendOrder(ctx, o))

	for _, text := range []string{"hi", "add rice", "two please"} {
		require.NoError(t, s.AddTurn(ctx, session, model.Turn{Role: model.RoleCaller, Text: text}, 2))
	}
	turns, err := s.LoadTurns(ctx, session)
	require.NoError(t, err)
	require.Len(t, turns, 2)
	assert.Equal(t, "add rice", turns[0].Text)
	require.NoError(t, s.ClearTurns(ctx, session))
}
