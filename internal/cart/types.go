// Package cart keeps a session's shopping cart consistent with whichever
// store is authoritative for it: the local slot for guests, the remote cart
// API for signed-in users.
package cart

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/Pritech-Vior/PritechVior-sub000/internal/money"
)

// ID identifies a product or a cart line. Local line ids and server line ids
// live in different spaces and must never be compared across stores.
type ID string

// UnmarshalJSON accepts strings and bare JSON numbers; older local carts used
// millisecond timestamps as numeric ids.
func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("id must be a string or number: %w", err)
	}
	*id = ID(n.String())
	return nil
}

// Product is the snapshot of a catalog product captured on a cart line.
type Product struct {
	ID    ID           `json:"id"`
	Name  string       `json:"name"`
	Price money.Amount `json:"price"`
	Image string       `json:"image,omitempty"`
}

// Options are free-form customization choices attached to a line. Values are
// text so a line reads back from any store exactly as it was written.
type Options map[string]string

// UnmarshalJSON accepts any JSON object. String values are kept as is; other
// values keep their compact JSON text, so {"size": 2} reads as "2". Null
// values are dropped and an empty object reads as nil.
func (o *Options) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*o = nil
		return nil
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("options must be an object: %w", err)
	}
	out := make(Options, len(raw))
	for key, value := range raw {
		value = bytes.TrimSpace(value)
		switch {
		case bytes.Equal(value, []byte("null")):
			continue
		case len(value) > 0 && value[0] == '"':
			var text string
			if err := json.Unmarshal(value, &text); err != nil {
				return fmt.Errorf("option %q: %w", key, err)
			}
			out[key] = text
		default:
			var compact bytes.Buffer
			if err := json.Compact(&compact, value); err != nil {
				return fmt.Errorf("option %q: %w", key, err)
			}
			out[key] = compact.String()
		}
	}
	if len(out) == 0 {
		out = nil
	}
	*o = out
	return nil
}

func (o Options) clone() Options {
	if len(o) == 0 {
		return nil
	}
	out := make(Options, len(o))
	for k, v := range o {
		out[k] = v
	}
	return out
}

// Line is one entry in a cart. Quantity is always at least 1.
type Line struct {
	ID       ID      `json:"id"`
	Product  Product `json:"product"`
	Quantity int     `json:"quantity"`
	Options  Options `json:"options,omitempty"`
}

func (l Line) Subtotal() money.Amount {
	return l.Product.Price.Mul(l.Quantity)
}

// Cart is an ordered list of lines in insertion order.
type Cart []Line

// Count is the number of distinct lines, not the number of units.
func (c Cart) Count() int {
	return len(c)
}

// Units is the total quantity across lines.
func (c Cart) Units() int {
	total := 0
	for _, line := range c {
		total += line.Quantity
	}
	return total
}

func (c Cart) Total() money.Amount {
	var total money.Amount
	for _, line := range c {
		total += line.Subtotal()
	}
	return total
}

func (c Cart) find(id ID) int {
	for i, line := range c {
		if line.ID == id {
			return i
		}
	}
	return -1
}

func (c Cart) findProduct(productID ID) int {
	for i, line := range c {
		if line.Product.ID == productID {
			return i
		}
	}
	return -1
}

func (c Cart) clone() Cart {
	if c == nil {
		return nil
	}
	out := make(Cart, len(c))
	for i, line := range c {
		out[i] = line
		out[i].Options = line.Options.clone()
	}
	return out
}

// State is the observable view of a Manager.
type State struct {
	Lines         Cart
	Count         int
	Loading       bool
	Authenticated bool
}
