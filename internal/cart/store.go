package cart

import "context"

// Store is the capability set shared by the local and remote cart backends.
//
// The manager holds exactly one active Store at a time and re-reads it after
// every successful mutation, so implementations never need to return the
// updated cart from mutating calls.
type Store interface {
	// Read returns the current lines in insertion order.
	Read(ctx context.Context) (Cart, error)

	// AddLine adds quantity units of a product, merging into an existing line
	// for the same product. product is required by stores that cannot resolve
	// products by id and ignored by those that can.
	AddLine(ctx context.Context, productID ID, quantity int, options Options, product *Product) error

	// UpdateLine sets the quantity of an existing line. quantity is at least 1;
	// the manager turns non-positive updates into RemoveLine.
	UpdateLine(ctx context.Context, lineID ID, quantity int) error

	// RemoveLine deletes a line. Removing an unknown line is not an error for
	// the local store.
	RemoveLine(ctx context.Context, lineID ID) error

	// Clear removes every line.
	Clear(ctx context.Context) error
}
