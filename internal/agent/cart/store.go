package cart

import (
	"context"
	"strings"

	"github.com/grocerybabu/voice-core/internal/agent/model"
	"github.com/grocerybabu/voice-core/internal/agent/session"
	errx "github.com/grocerybabu/voice-core/internal/core/error"
	"github.com/grocerybabu/voice-core/internal/observability"
	logx "github.com/grocerybabu/voice-core/pkg/logger"
)

// suggestionCount is how many complementary items an add offers.
const suggestionCount = 2

// Catalog is what the cart needs from the catalog index.
type Catalog interface {
	Resolve(ctx context.Context, query string) (model.CatalogItem, bool)
	Reserve(name string, n int) error
	Release(name string, n int)
	Complementary(ctx context.Context, name string, k int) []model.ScoredItem
}

// Persister mirrors carts to the record store.
type Persister interface {
	SaveCart(ctx context.Context, sessionID string, cart *model.Cart) error
}

type Store struct {
	sessions *session.Registry
	catalog  Catalog
	persist  Persister
	metrics  *observability.Metrics
}

func NewStore(sessions *session.Registry, catalog Catalog, persist Persister, metrics *observability.Metrics) *Store {
	return &Store{sessions: sessions, catalog: catalog, persist: persist, metrics: metrics}
}

type AddResult struct {
	// Product is the resolved catalog item; its Quantity is what remains
	// available after the add.
	Product     model.CatalogItem
	Line        model.LineItem
	Added       int
	Cart        model.CartSummary
	Suggestions []model.ScoredItem
}

// Add puts quantity units of the product query resolves to into the cart.
// The cart is only changed when every step succeeds.
func (s *Store) Add(ctx context.Context, sessionID, query string, quantity int, phone string) (AddResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return AddResult{}, errx.ClarificationNeeded("product_name", "")
	}
	if quantity <= 0 {
		return AddResult{}, errx.ClarificationNeeded("quantity", query)
	}

	var res AddResult
	err := s.sessions.With(ctx, sessionID, func(sess *session.Session) error {
		item, ok := s.catalog.Resolve(ctx, query)
		if !ok {
			return errx.ProductNotFound(query)
		}
		if quantity > item.Quantity {
			return errx.InsufficientStock(item.Name, item.Quantity)
		}
		if err := s.catalog.Reserve(item.Name, quantity); err != nil {
			return err
		}

		next := sess.Cart().Clone()
		line, err := next.Add(item.Name, quantity, item.Price)
		if err != nil {
			s.catalog.Release(item.Name, quantity)
			return err
		}
		if phone = strings.TrimSpace(phone); phone != "" {
			next.CustomerPhone = phone
			c := sess.Customer()
			c.Phone = phone
			sess.SetCustomer(c)
		}
		sess.SetCart(next)
		s.save(ctx, sessionID, next)

		item.Quantity -= quantity
		res = AddResult{Product: item, Line: line, Added: quantity, Cart: next.Summary()}
		return nil
	})
	if err != nil {
		return AddResult{}, err
	}
	res.Suggestions = s.catalog.Complementary(ctx, query, suggestionCount)
	return res, nil
}

type RemoveResult struct {
	Name        string
	Removed     int
	LineRemoved bool
	Cart        model.CartSummary
}

// Remove takes quantity units of the first line matching query out of the
// cart. A quantity of zero, or one covering the whole line, drops the line.
func (s *Store) Remove(ctx context.Context, sessionID, query string, quantity int) (RemoveResult, error) {
	query = strings.TrimSpace(query)
	var res RemoveResult
	err := s.sessions.With(ctx, sessionID, func(sess *session.Session) error {
		cur := sess.Cart()
		if cur.IsEmpty() {
			return errx.CartEmpty()
		}
		next := cur.Clone()
		i := next.FindLine(query)
		if i < 0 {
			return errx.ItemNotInCart(query)
		}
		removed, before := next.RemoveAt(i, quantity)
		s.catalog.Release(before.Name, removed)
		sess.SetCart(next)
		s.save(ctx, sessionID, next)

		res = RemoveResult{
			Name:        before.Name,
			Removed:     removed,
			LineRemoved: removed == before.Quantity,
			Cart:        next.Summary(),
		}
		return nil
	})
	return res, err
}

// Summarize reads the cart without changing anything.
func (s *Store) Summarize(ctx context.Context, sessionID string) (model.CartSummary, error) {
	var sum model.CartSummary
	err := s.sessions.With(ctx, sessionID, func(sess *session.Session) error {
		sum = sess.Cart().Summary()
		return nil
	})
	return sum, err
}

// save mirrors the cart; a failure is logged and the in-memory cart stands.
func (s *Store) save(ctx context.Context, sessionID string, c *model.Cart) {
	if s.persist == nil {
		return
	}
	if err := s.persist.SaveCart(ctx, sessionID, c); err != nil {
		logx.Warn().Err(err).Str("sessionID", sessionID).Msg("failed to persist cart")
		s.metrics.StoreError("save_cart")
	}
}
