package repo

import (
	"context"
	"fmt"
	"sync"

	"github.com/grocerybabu/voice-core/internal/agent/model"
)

// MemoryStore keeps every record in process. It backs local runs and tests.
type MemoryStore struct {
	mu        sync.RWMutex
	catalog   []model.CatalogItem
	index     map[string]int
	carts     map[string]*model.Cart
	customers map[string]model.CustomerProfile
	orders    []model.Order
	turns     map[string][]model.Turn
}

// NewMemoryStore seeds the store with items. A nil slice seeds the built-in
// fallback catalog.
func NewMemoryStore(items []model.CatalogItem) *MemoryStore {
	if items == nil {
		items = FallbackCatalog()
	}
	s := &MemoryStore{
		carts:     make(map[string]*model.Cart),
		customers: make(map[string]model.CustomerProfile),
		turns:     make(map[string][]model.Turn),
	}
	s.setCatalog(items)
	return s
}

func (s *MemoryStore) setCatalog(items []model.CatalogItem) {
	s.catalog = make([]model.CatalogItem, len(items))
	copy(s.catalog, items)
	s.index = make(map[string]int, len(items))
	for i, it := range s.catalog {
		s.index[it.Key()] = i
	}
}

// ReplaceCatalog swaps the stored catalog, as an operator editing the sheet would.
func (s *MemoryStore) ReplaceCatalog(items []model.CatalogItem) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setCatalog(items)
}

func (s *MemoryStore) LoadCatalog(_ context.Context) ([]model.CatalogItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.CatalogItem, len(s.catalog))
	copy(out, s.catalog)
	return out, nil
}

func (s *MemoryStore) DecrementStock(_ context.Context, itemName string, amount int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.index[model.NameKey(itemName)]
	if !ok {
		return 0, fmt.Errorf("decrement stock: unknown item %q", itemName)
	}
	cur := s.catalog[i].Quantity
	s.catalog[i].Quantity = max(cur-amount, 0)
	return cur - s.catalog[i].Quantity, nil
}

func (s *MemoryStore) LoadCart(_ context.Context, sessionID string) (*model.Cart, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.carts[sessionID].Clone(), nil
}

func (s *MemoryStore) SaveCart(_ context.Context, sessionID string, cart *model.Cart) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.carts[sessionID] = cart.Clone()
	return nil
}

func (s *MemoryStore) DeleteCart(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.carts, sessionID)
	return nil
}

func (s *MemoryStore) UpsertCustomer(_ context.Context, profile model.CustomerProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.customers[profile.Phone] = profile
	return nil
}

func (s *MemoryStore) GetCustomer(_ context.Context, phone string) (*model.CustomerProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.customers[phone]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (s *MemoryStore) AppendOrder(_ context.Context, order model.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders = append(s.orders, order)
	return nil
}

// Orders returns a copy of the order log.
func (s *MemoryStore) Orders() []model.Order {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Order, len(s.orders))
	copy(out, s.orders)
	return out
}

func (s *MemoryStore) AddTurn(_ context.Context, sessionID string, turn model.Turn, maxTurns int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ts := append(s.turns[sessionID], turn)
	if maxTurns > 0 && len(ts) > maxTurns {
		ts = ts[len(ts)-maxTurns:]
	}
	s.turns[sessionID] = ts
	return nil
}

func (s *MemoryStore) LoadTurns(_ context.Context, sessionID string) ([]model.Turn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ts := s.turns[sessionID]
	out := make([]model.Turn, len(ts))
	copy(out, ts)
	return out, nil
}

func (s *MemoryStore) ClearTurns(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.turns, sessionID)
	return nil
}

func (s *MemoryStore) Close() error { return nil }

var (
	_ model.RecordStore          = (*MemoryStore)(nil)
	_ model.TranscriptRepository = (*MemoryStore)(nil)
)
