package model

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// CatalogItem is one sellable product. Name is the case-insensitive key.
type CatalogItem struct {
	Name        string          `json:"name" yaml:"name"`
	Category    string          `json:"category" yaml:"category"`
	Quantity    int             `json:"quantity" yaml:"quantity"`
	Price       decimal.Decimal `json:"price" yaml:"price"`
	Description string          `json:"description,omitempty" yaml:"description"`
	Tags        []string        `json:"tags,omitempty" yaml:"tags"`
}

// NewCatalogItem validates and normalises a catalog row.
func NewCatalogItem(name, category string, quantity int, price decimal.Decimal, description string, tags []string) (CatalogItem, error) {
	item := CatalogItem{
		Name:        strings.TrimSpace(name),
		Category:    strings.TrimSpace(category),
		Quantity:    quantity,
		Price:       price,
		Description: strings.TrimSpace(description),
		Tags:        normaliseTags(tags),
	}
	return item, item.Validate()
}

// Validate enforces the catalog invariants.
func (c CatalogItem) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("catalog item: empty name")
	}
	if c.Quantity < 0 {
		return fmt.Errorf("catalog item %q: negative quantity %d", c.Name, c.Quantity)
	}
	if c.Price.IsNegative() {
		return fmt.Errorf("catalog item %q: negative price %s", c.Name, c.Price)
	}
	return nil
}

// Key is the case-insensitive identity of the item.
func (c CatalogItem) Key() string {
	return NameKey(c.Name)
}

// CompositeText is the free text matchers index: name, category, description and tags.
func (c CatalogItem) CompositeText() string {
	parts := []string{c.Name, c.Category, c.Description, strings.Join(c.Tags, " ")}
	return strings.Join(parts, " ")
}

// InStock reports whether any quantity is left.
func (c CatalogItem) InStock() bool {
	return c.Quantity > 0
}

// NameKey normalises a product name into its lookup key.
func NameKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// ParseTags splits a comma separated tag cell as kept by spreadsheet style stores.
func ParseTags(s string) []string {
	return normaliseTags(strings.Split(s, ","))
}

func normaliseTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// CategoryCount is the number of in-stock items in one category.
type CategoryCount struct {
	Category string `json:"category"`
	Count    int    `json:"count"`
}

// CategoryGroup lists in-stock items of a category.
type CategoryGroup struct {
	Category string        `json:"category"`
	Items    []CatalogItem `json:"items"`
}

// SearchMode tells callers how to read a SearchResult.
type SearchMode string

const (
	SearchRanked   SearchMode = "ranked"
	SearchCategory SearchMode = "category"
	SearchGrouped  SearchMode = "grouped"
)

// ScoredItem is a catalog item with its similarity to the query.
type ScoredItem struct {
	Item  CatalogItem `json:"item"`
	Score float64     `json:"score"`
}

// SearchResult is either a ranked list or a category grouped listing.
type SearchResult struct {
	Mode     SearchMode      `json:"mode"`
	Query    string          `json:"query"`
	Category string          `json:"category,omitempty"`
	Items    []ScoredItem    `json:"items,omitempty"`
	Groups   []CategoryGroup `json:"groups,omitempty"`
}

// Len counts every item in the result regardless of mode.
func (r SearchResult) Len() int {
	if r.Mode == SearchGrouped {
		n := 0
		for _, g := range r.Groups {
			n += len(g.Items)
		}
		return n
	}
	return len(r.Items)
}
