package catalog

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/grocerybabu/voice-core/internal/agent/model"
)

type staticSource struct {
	mu    sync.Mutex
	items []model.CatalogItem
	err   error
	loads int
}

func (s *staticSource) LoadCatalog(context.Context) ([]model.CatalogItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loads++
	if s.err != nil {
		return nil, s.err
	}
	out := make([]model.CatalogItem, len(s.items))
	copy(out, s.items)
	return out, nil
}

func (s *staticSource) set(items []model.CatalogItem, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items, s.err = items, err
}

func item(name, category string, qty int, price, description string, tags ...string) model.CatalogItem {
	return model.CatalogItem{
		Name:        name,
		Category:    category,
		Quantity:    qty,
		Price:       decimal.RequireFromString(price),
		Description: description,
		Tags:        tags,
	}
}

func groceryItems() []model.CatalogItem {
	return []model.CatalogItem{
		item("Chora Black Eyed Peas 4 lb", "Grocery", 3, "10.49", "Organic black eyed peas", "pulses", "organic", "grocery"),
		item("Milk Bikis Minis Wafflez 7 oz", "Snacks", 5, "2.29", "Crispy mini waffle biscuits", "biscuits", "snacks", "crispy"),
		item("Maggi Masala Noodles", "Food", 10, "1.99", "Instant masala noodles", "noodles", "instant", "masala"),
		item("Tomato Ketchup", "Condiments", 8, "3.49", "Sweet and tangy tomato ketchup", "ketchup", "tomato", "condiments"),
		item("Basmati Rice 5kg", "Grocery", 4, "15.99", "Premium long grain basmati rice", "rice", "basmati", "grocery"),
	}
}

func loadedIndex(items []model.CatalogItem, m Matcher) (*Index, *staticSource) {
	src := &staticSource{items: items}
	x := NewIndex(src, m, Options{})
	if err := x.Reload(context.Background()); err != nil {
		panic(err)
	}
	return x, src
}

func names(items []model.ScoredItem) []string {
	out := make([]string, 0, len(items))
	for _, s := range items {
		out = append(out, s.Item.Name)
	}
	return out
}
