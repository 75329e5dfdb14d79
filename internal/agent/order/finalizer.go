package order

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/grocerybabu/voice-core/internal/agent/model"
	"github.com/grocerybabu/voice-core/internal/agent/session"
	errx "github.com/grocerybabu/voice-core/internal/core/error"
	"github.com/grocerybabu/voice-core/internal/observability"
	logx "github.com/grocerybabu/voice-core/pkg/logger"
)

// Stock settles reserved catalog stock.
type Stock interface {
	Commit(name string, n int) bool
	Uncommit(name string, n int)
}

// Store is the slice of the record store checkout writes to.
type Store interface {
	DecrementStock(ctx context.Context, itemName string, amount int) (int, error)
	AppendOrder(ctx context.Context, order model.Order) error
	UpsertCustomer(ctx context.Context, profile model.CustomerProfile) error
	DeleteCart(ctx context.Context, sessionID string) error
}

type Finalizer struct {
	sessions *session.Registry
	stock    Stock
	store    Store
	metrics  *observability.Metrics
	now      func() time.Time
}

func NewFinalizer(sessions *session.Registry, stock Stock, store Store, metrics *observability.Metrics) *Finalizer {
	return &Finalizer{sessions: sessions, stock: stock, store: store, metrics: metrics, now: time.Now}
}

type Receipt struct {
	OrderID  string                `json:"order_id"`
	Total    decimal.Decimal       `json:"total"`
	Items    []model.LineItem      `json:"items"`
	Customer model.CustomerProfile `json:"customer"`
}

// settled is one committed line. removed is what the store actually took,
// which is less than qty when the stored stock ran out.
type settled struct {
	name    string
	qty     int
	removed int
}

// PlaceOrder turns the session cart into an order. On success the cart is
// empty; if the order or customer record cannot be written the cart is left
// as it was and stock movements are reversed.
func (f *Finalizer) PlaceOrder(ctx context.Context, sessionID string, data model.CustomerData) (Receipt, error) {
	var rec Receipt
	err := f.sessions.With(ctx, sessionID, func(sess *session.Session) error {
		cart := sess.Cart()
		if cart.IsEmpty() {
			return errx.CartEmpty()
		}
		if strings.TrimSpace(data.Phone) == "" {
			data.Phone = cart.CustomerPhone
		}
		if strings.TrimSpace(data.Phone) == "" {
			return errx.ClarificationNeeded("customer_phone", "")
		}

		now := f.now()
		done := f.settleStock(ctx, sessionID, cart)

		order, err := model.NewOrder(strings.TrimSpace(data.Phone), cart, now)
		if err == nil {
			err = f.store.AppendOrder(ctx, order)
		}
		if err != nil {
			f.compensate(ctx, done)
			logx.Error().Err(err).Str("sessionID", sessionID).Msg("failed to append order")
			return errx.OrderPlacementFailed(err)
		}

		profile := data.Profile(now)
		if err := f.store.UpsertCustomer(ctx, profile); err != nil {
			f.compensate(ctx, done)
			logx.Error().Err(err).Str("sessionID", sessionID).Str("order_id", order.ID).Msg("failed to upsert customer, order record left orphaned")
			return errx.OrderPlacementFailed(err)
		}

		rec = Receipt{OrderID: order.ID, Total: cart.Total, Items: cart.Clone().Items, Customer: profile}

		next := cart.Clone()
		next.Clear()
		next.CustomerPhone = profile.Phone
		sess.SetCart(next)
		sess.SetCustomer(model.CustomerData{Name: profile.Name, Phone: profile.Phone, Address: profile.Address})
		if err := f.store.DeleteCart(ctx, sessionID); err != nil {
			logx.Warn().Err(err).Str("sessionID", sessionID).Msg("failed to delete persisted cart")
			f.metrics.StoreError("delete_cart")
		}
		return nil
	})
	if err != nil {
		return Receipt{}, err
	}

	f.metrics.OrderPlaced(rec.Total.InexactFloat64())
	logx.Info().Str("sessionID", sessionID).Str("order_id", rec.OrderID).Str("total", rec.Total.StringFixed(2)).Msg("order placed")
	return rec, nil
}

// settleStock commits every line. Lines the catalog no longer knows are
// skipped with a warning rather than failing the order.
func (f *Finalizer) settleStock(ctx context.Context, sessionID string, cart *model.Cart) []settled {
	done := make([]settled, 0, len(cart.Items))
	for _, l := range cart.Items {
		if !f.stock.Commit(l.Name, l.Quantity) {
			logx.Warn().Str("sessionID", sessionID).Str("item", l.Name).Msg("cart line not in catalog, stock not decremented")
			continue
		}
		removed, err := f.store.DecrementStock(ctx, l.Name, l.Quantity)
		if err != nil {
			logx.Warn().Err(err).Str("item", l.Name).Msg("failed to decrement stored stock")
			f.metrics.StoreError("decrement_stock")
			removed = 0
		} else if removed < l.Quantity {
			logx.Warn().Str("item", l.Name).Int("qty", l.Quantity).Int("removed", removed).Msg("stored stock lower than committed quantity")
		}
		done = append(done, settled{name: l.Name, qty: l.Quantity, removed: removed})
	}
	return done
}

func (f *Finalizer) compensate(ctx context.Context, done []settled) {
	for _, s := range done {
		f.stock.Uncommit(s.name, s.qty)
		if s.removed <= 0 {
			continue
		}
		if _, err := f.store.DecrementStock(ctx, s.name, -s.removed); err != nil {
			logx.Error().Err(err).Str("item", s.name).Int("qty", s.removed).Msg("failed to restore stored stock")
			f.metrics.StoreError("restock")
		}
	}
}
