package storage

import (
	"encoding/json"
	"time"

	"github.com/Pritech-Vior/PritechVior-sub000/internal/money"
)

// Product is a catalog entry the cart API resolves product ids against.
type Product struct {
	ID     string       `json:"id"`
	Name   string       `json:"name"`
	Price  money.Amount `json:"price"`
	Image  string       `json:"image,omitempty"`
	Active bool         `json:"is_active"`
}

// CartItem is one line of a user's server-side cart.
type CartItem struct {
	ID       string          `json:"id"`
	Product  Product         `json:"product"`
	Quantity int             `json:"quantity"`
	Options  json.RawMessage `json:"custom_specifications"`
	AddedAt  time.Time       `json:"added_at"`
}

func (i CartItem) Subtotal() money.Amount {
	return i.Product.Price.Mul(i.Quantity)
}

// Cart is a user's cart with items in the order they were first added.
type Cart struct {
	UserID    string
	Items     []CartItem
	UpdatedAt time.Time
}

func (c Cart) TotalItems() int {
	total := 0
	for _, item := range c.Items {
		total += item.Quantity
	}
	return total
}

func (c Cart) TotalAmount() money.Amount {
	var total money.Amount
	for _, item := range c.Items {
		total += item.Subtotal()
	}
	return total
}
