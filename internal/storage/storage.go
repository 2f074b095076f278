package storage

import (
	"context"
	"encoding/json"
	"errors"
)

var (
	// ErrNotFound is returned when a cart item does not belong to the user.
	ErrNotFound = errors.New("cart item not found")

	// ErrProductNotFound is returned for unknown or inactive products.
	ErrProductNotFound = errors.New("product not found")

	// ErrInvalidQuantity is returned for quantities below one.
	ErrInvalidQuantity = errors.New("quantity must be at least 1")
)

// Store defines the persistence contract for the cart API.
//
// Carts are keyed by user id and created implicitly on first add. Every item
// operation is scoped to the user, so an item id belonging to someone else
// behaves exactly like an unknown id.
type Store interface {
	// Init prepares schema/connection state needed before serving requests.
	Init(ctx context.Context) error

	// Close releases resources held by the storage backend.
	Close() error

	// UpsertProduct inserts or replaces a catalog product.
	UpsertProduct(ctx context.Context, product Product) error

	// GetProduct returns an active product or ErrProductNotFound.
	GetProduct(ctx context.Context, productID string) (Product, error)

	// GetCart returns the user's cart; a user without one gets an empty cart.
	GetCart(ctx context.Context, userID string) (Cart, error)

	// AddItem adds quantity units of a product. If the product is already in
	// the cart the existing item's quantity grows and its options are kept.
	AddItem(ctx context.Context, userID string, productID string, quantity int, options json.RawMessage) (CartItem, error)

	// UpdateItemQuantity sets an item's quantity.
	UpdateItemQuantity(ctx context.Context, userID string, itemID string, quantity int) (CartItem, error)

	// RemoveItem deletes an item or returns ErrNotFound.
	RemoveItem(ctx context.Context, userID string, itemID string) error

	// ClearCart removes every item in the user's cart.
	ClearCart(ctx context.Context, userID string) error
}
