package errx

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppError_IsMatchesKind(t *testing.T) {
	err := fmt.Errorf("add to cart: %w", InsufficientStock("Tomato Ketchup", 2))

	assert.ErrorIs(t, err, InsufficientStock("anything", 0))
	assert.NotErrorIs(t, err, CartEmpty())
	assert.Equal(t, KindInsufficientStock, KindOf(err))

	ae, ok := As(err)
	require.True(t, ok)
	assert.Equal(t, 2, ae.Available)
	assert.Equal(t, "Tomato Ketchup", ae.Subject)
	assert.Equal(t, http.StatusConflict, ae.Status)
	assert.Equal(t, `insufficient stock for "Tomato Ketchup": 2 available`, ae.Error())
}

func TestAppError_UnwrapsCause(t *testing.T) {
	cause := errors.New("disk full")
	err := OrderPlacementFailed(cause)

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "order placement failed: disk full", err.Error())
	assert.Equal(t, KindOrderPlacementFailed, KindOf(err))
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindNone, KindOf(nil))
	assert.Equal(t, KindInternal, KindOf(errors.New("plain")))
	assert.Equal(t, KindInternal, KindOf(New(nil, http.StatusInternalServerError, SystemErrorMessage)))
	assert.Equal(t, KindClarificationNeeded, KindOf(ClarificationNeeded("quantity", "ketchup")))
	assert.Equal(t, KindItemNotInCart, KindOf(ItemNotInCart("rice")))
	assert.Equal(t, KindProductNotFound, KindOf(ProductNotFound("caviar")))

	_, ok := As(errors.New("plain"))
	assert.False(t, ok)
}

func TestKindlessErrorsDoNotMatchEachOther(t *testing.T) {
	a := New(errors.New("a"), http.StatusBadGateway, RedisErrorMessage)
	b := New(errors.New("b"), http.StatusBadGateway, RedisErrorMessage)
	assert.NotErrorIs(t, a, b)
}

func TestWrapRedis(t *testing.T) {
	assert.NoError(t, WrapRedis(nil))

	ae, ok := As(WrapRedis(redis.Nil))
	require.True(t, ok)
	assert.Equal(t, http.StatusNotFound, ae.Status)
	assert.Equal(t, RedisNotFoundMessage, ae.Message)
	assert.ErrorIs(t, ae, redis.Nil)

	ae, ok = As(WrapRedis(errors.New("connection refused")))
	require.True(t, ok)
	assert.Equal(t, http.StatusBadGateway, ae.Status)
}

func TestWrapPostgres(t *testing.T) {
	assert.NoError(t, WrapPostgres(nil))

	ae, ok := As(WrapPostgres(pgx.ErrNoRows))
	require.True(t, ok)
	assert.Equal(t, http.StatusNotFound, ae.Status)
	assert.ErrorIs(t, ae, pgx.ErrNoRows)

	ae, ok = As(WrapPostgres(errors.New("timeout")))
	require.True(t, ok)
	assert.Equal(t, http.StatusBadGateway, ae.Status)
	assert.Equal(t, PostgresErrorMessage, ae.Message)
}
