package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// LineItem is one product-quantity-price entry of a cart. Subtotal is derived
// and only ever written by the cart itself.
type LineItem struct {
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"price"`
	Subtotal  decimal.Decimal `json:"subtotal"`
}

// NewLineItem builds a line with its subtotal.
func NewLineItem(name string, quantity int, unitPrice decimal.Decimal) (LineItem, error) {
	if strings.TrimSpace(name) == "" {
		return LineItem{}, fmt.Errorf("line item: empty name")
	}
	if quantity <= 0 {
		return LineItem{}, fmt.Errorf("line item %q: quantity must be positive, got %d", name, quantity)
	}
	if unitPrice.IsNegative() {
		return LineItem{}, fmt.Errorf("line item %q: negative price %s", name, unitPrice)
	}
	l := LineItem{Name: name, Quantity: quantity, UnitPrice: unitPrice}
	l.recompute()
	return l, nil
}

func (l *LineItem) recompute() {
	l.Subtotal = l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Cart is a session's shopping cart. Total always equals the sum of the line
// subtotals; every mutation goes through the methods below.
type Cart struct {
	SessionID     string          `json:"session_id"`
	Items         []LineItem      `json:"items"`
	Total         decimal.Decimal `json:"total"`
	CustomerPhone string          `json:"customer_phone,omitempty"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

func NewCart(sessionID, phone string) *Cart {
	return &Cart{
		SessionID:     sessionID,
		Items:         []LineItem{},
		Total:         decimal.Zero,
		CustomerPhone: phone,
	}
}

// RestoreCart rebuilds a cart from persisted lines, recomputing every derived
// amount instead of trusting the stored ones. Invalid lines are dropped.
func RestoreCart(sessionID, phone string, lines []LineItem) (*Cart, []error) {
	c := NewCart(sessionID, phone)
	var errs []error
	for _, l := range lines {
		fresh, err := NewLineItem(l.Name, l.Quantity, l.UnitPrice)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		c.Items = append(c.Items, fresh)
	}
	c.recompute()
	return c, errs
}

// IsEmpty reports whether the cart has no lines.
func (c *Cart) IsEmpty() bool {
	return c == nil || len(c.Items) == 0
}

// Clone returns a deep copy.
func (c *Cart) Clone() *Cart {
	if c == nil {
		return nil
	}
	cp := *c
	cp.Items = make([]LineItem, len(c.Items))
	copy(cp.Items, c.Items)
	return &cp
}

// Add merges quantity into the line named name, or appends a new line at
// unitPrice. An existing line keeps the price captured when it was first added.
func (c *Cart) Add(name string, quantity int, unitPrice decimal.Decimal) (LineItem, error) {
	if quantity <= 0 {
		return LineItem{}, fmt.Errorf("add %q: quantity must be positive, got %d", name, quantity)
	}
	for i := range c.Items {
		if c.Items[i].Name == name {
			c.Items[i].Quantity += quantity
			c.Items[i].recompute()
			c.recompute()
			return c.Items[i], nil
		}
	}
	line, err := NewLineItem(name, quantity, unitPrice)
	if err != nil {
		return LineItem{}, err
	}
	c.Items = append(c.Items, line)
	c.recompute()
	return line, nil
}

// FindLine returns the index of the first line whose name contains query or
// is contained in it, case-insensitively. -1 when nothing matches.
func (c *Cart) FindLine(query string) int {
	q := NameKey(query)
	if q == "" {
		return -1
	}
	for i, l := range c.Items {
		name := NameKey(l.Name)
		if strings.Contains(name, q) || strings.Contains(q, name) {
			return i
		}
	}
	return -1
}

// RemoveAt takes quantity off line i. A quantity of zero or at least the line
// quantity removes the whole line. It returns the quantity actually removed
// and the line as it was before removal.
func (c *Cart) RemoveAt(i, quantity int) (removed int, before LineItem) {
	before = c.Items[i]
	if quantity <= 0 || quantity >= before.Quantity {
		c.Items = append(c.Items[:i], c.Items[i+1:]...)
		c.recompute()
		return before.Quantity, before
	}
	c.Items[i].Quantity -= quantity
	c.Items[i].recompute()
	c.recompute()
	return quantity, before
}

// Clear resets the cart to empty, keeping the phone for the next cart.
func (c *Cart) Clear() {
	c.Items = []LineItem{}
	c.recompute()
}

// ItemCount is the number of units across all lines.
func (c *Cart) ItemCount() int {
	n := 0
	for _, l := range c.Items {
		n += l.Quantity
	}
	return n
}

func (c *Cart) recompute() {
	total := decimal.Zero
	for _, l := range c.Items {
		total = total.Add(l.Subtotal)
	}
	c.Total = total
	c.UpdatedAt = time.Now().UTC()
}

// CheckTotals verifies the line and cart invariants.
func (c *Cart) CheckTotals() error {
	if c == nil {
		return nil
	}
	sum := decimal.Zero
	for _, l := range c.Items {
		if l.Quantity <= 0 {
			return fmt.Errorf("line %q has non-positive quantity %d", l.Name, l.Quantity)
		}
		want := l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
		if !l.Subtotal.Equal(want) {
			return fmt.Errorf("line %q subtotal %s != %d x %s", l.Name, l.Subtotal, l.Quantity, l.UnitPrice)
		}
		sum = sum.Add(l.Subtotal)
	}
	if !c.Total.Equal(sum) {
		return fmt.Errorf("cart total %s != sum of subtotals %s", c.Total, sum)
	}
	return nil
}

// CartSummary is the read-only view returned by summarize.
type CartSummary struct {
	Empty bool            `json:"empty"`
	Items []LineItem      `json:"items"`
	Total decimal.Decimal `json:"total"`
}

// Summary snapshots the cart.
func (c *Cart) Summary() CartSummary {
	if c.IsEmpty() {
		return CartSummary{Empty: true, Items: []LineItem{}, Total: decimal.Zero}
	}
	items := make([]LineItem, len(c.Items))
	copy(items, c.Items)
	return CartSummary{Items: items, Total: c.Total}
}
