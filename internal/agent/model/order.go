package model

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"
)

const (
	OrderStatusPending = "Pending"
	DateLayout         = "2006-01-02"
)

// Order is an append-only record of a finalized cart.
type Order struct {
	ID            string          `json:"id"`
	CustomerPhone string          `json:"customer_phone"`
	ItemsJSON     string          `json:"items_json"`
	Total         decimal.Decimal `json:"total"`
	Status        string          `json:"status"`
	Date          string          `json:"date"`
	CreatedAt     time.Time       `json:"created_at"`
}

// NewOrder serializes the cart lines into a pending order. The id is a ULID,
// so it sorts by creation time and is unique per call.
func NewOrder(phone string, cart *Cart, at time.Time) (Order, error) {
	items, err := json.Marshal(cart.Items)
	if err != nil {
		return Order{}, fmt.Errorf("marshal order items: %w", err)
	}
	return Order{
		ID:            ulid.MustNew(ulid.Timestamp(at), ulid.DefaultEntropy()).String(),
		CustomerPhone: phone,
		ItemsJSON:     string(items),
		Total:         cart.Total,
		Status:        OrderStatusPending,
		Date:          at.Format(DateLayout),
		CreatedAt:     at.UTC(),
	}, nil
}

// Lines decodes the serialized line items.
func (o Order) Lines() ([]LineItem, error) {
	var lines []LineItem
	if err := json.Unmarshal([]byte(o.ItemsJSON), &lines); err != nil {
		return nil, fmt.Errorf("unmarshal order items: %w", err)
	}
	return lines, nil
}
