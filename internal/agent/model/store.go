package model

import "context"

// RecordStore is the persistence collaborator of the cart engine. It stands in
// for whatever backs the catalog, carts, customers and orders.
type RecordStore interface {
	LoadCatalog(ctx context.Context) ([]CatalogItem, error)
	// DecrementStock lowers the stored quantity of an item, never below zero,
	// and returns how many units it actually removed. A negative amount
	// restocks and returns the negated amount added.
	DecrementStock(ctx context.Context, itemName string, amount int) (int, error)

	// LoadCart returns nil, nil when no cart is stored for the session.
	LoadCart(ctx context.Context, sessionID string) (*Cart, error)
	SaveCart(ctx context.Context, sessionID string, cart *Cart) error
	DeleteCart(ctx context.Context, sessionID string) error

	UpsertCustomer(ctx context.Context, profile CustomerProfile) error
	// GetCustomer returns nil, nil for an unknown phone.
	GetCustomer(ctx context.Context, phone string) (*CustomerProfile, error)

	AppendOrder(ctx context.Context, order Order) error

	Close() error
}
