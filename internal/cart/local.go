package cart

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Pritech-Vior/PritechVior-sub000/internal/slot"
)

// DefaultSlotKey is the slot holding the serialized cart.
const DefaultSlotKey = "viormart_cart"

// LocalStore keeps the cart as a JSON list in a single slot key.
//
// Slot problems never surface: a missing or corrupt value reads as an empty
// cart, a failed read serves the last cart this store held, and a failed
// write is logged while the in-memory copy still moves forward. Until a write succeeds again, Read serves that in-memory copy so an
// unsaved change is not clobbered by the stale slot contents.
type LocalStore struct {
	slot   slot.Slot
	key    string
	logger *zap.Logger
	newID  func() ID

	mu    sync.Mutex
	cache Cart
	dirty bool
}

type LocalOption func(*LocalStore)

func WithSlotKey(key string) LocalOption {
	return func(s *LocalStore) {
		if key != "" {
			s.key = key
		}
	}
}

func WithLocalLogger(logger *zap.Logger) LocalOption {
	return func(s *LocalStore) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithIDGenerator replaces the line id source, mostly for tests.
func WithIDGenerator(fn func() ID) LocalOption {
	return func(s *LocalStore) {
		if fn != nil {
			s.newID = fn
		}
	}
}

func NewLocalStore(s slot.Slot, opts ...LocalOption) *LocalStore {
	store := &LocalStore{
		slot:   s,
		key:    DefaultSlotKey,
		logger: zap.NewNop(),
		newID:  newLocalID,
	}
	for _, opt := range opts {
		opt(store)
	}
	return store
}

// newLocalID returns a time-ordered UUIDv7, falling back to a random UUID.
func newLocalID() ID {
	id, err := uuid.NewV7()
	if err != nil {
		return ID(uuid.NewString())
	}
	return ID(id.String())
}

func (s *LocalStore) Read(ctx context.Context) (Cart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(ctx).clone(), nil
}

func (s *LocalStore) AddLine(ctx context.Context, productID ID, quantity int, options Options, product *Product) error {
	if product == nil {
		return invalidInput("product snapshot is required for a local cart")
	}
	if quantity < 1 {
		return invalidInput("quantity must be at least 1, got %d", quantity)
	}
	if productID == "" {
		productID = product.ID
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	lines := s.load(ctx).clone()
	if i := lines.findProduct(productID); i >= 0 {
		lines[i].Quantity += quantity
	} else {
		snapshot := *product
		snapshot.ID = productID
		lines = append(lines, Line{
			ID:       s.newID(),
			Product:  snapshot,
			Quantity: quantity,
			Options:  options.clone(),
		})
	}
	s.save(ctx, lines)
	return nil
}

// UpdateLine is a no-op when lineID is unknown.
func (s *LocalStore) UpdateLine(ctx context.Context, lineID ID, quantity int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	lines := s.load(ctx).clone()
	i := lines.find(lineID)
	if i < 0 {
		return nil
	}
	if quantity < 1 {
		lines = append(lines[:i], lines[i+1:]...)
	} else {
		lines[i].Quantity = quantity
	}
	s.save(ctx, lines)
	return nil
}

func (s *LocalStore) RemoveLine(ctx context.Context, lineID ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	lines := s.load(ctx)
	kept := make(Cart, 0, len(lines))
	for _, line := range lines {
		if line.ID != lineID {
			kept = append(kept, line)
		}
	}
	if len(kept) == len(lines) {
		return nil
	}
	s.save(ctx, kept.clone())
	return nil
}

func (s *LocalStore) Clear(ctx context.Context) error {
	s.Replace(ctx, nil)
	return nil
}

// Replace overwrites the slot with lines. Signed-in sessions use it to keep
// a read-only mirror of the server cart.
func (s *LocalStore) Replace(ctx context.Context, lines Cart) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.save(ctx, lines.clone())
}

// load must be called with mu held.
func (s *LocalStore) load(ctx context.Context) Cart {
	if s.dirty {
		return s.cache
	}
	raw, ok, err := s.slot.Get(ctx, s.key)
	// An unreadable slot serves the last cart this store saw, which is empty
	// for a fresh store. A missing or corrupt value is empty.
	if err != nil {
		s.logger.Warn("local cart read failed",
			zap.String("key", s.key),
			zap.Error(fmt.Errorf("%w: %v", ErrStorage, err)))
		return s.cache
	}
	if !ok || raw == "" {
		s.cache = nil
		return nil
	}
	lines, err := decodeLines(raw)
	if err != nil {
		s.logger.Warn("local cart is corrupt, treating as empty",
			zap.String("key", s.key),
			zap.Error(fmt.Errorf("%w: decode: %v", ErrStorage, err)))
		s.cache = nil
		return nil
	}
	s.cache = lines
	return lines
}

// save must be called with mu held.
func (s *LocalStore) save(ctx context.Context, lines Cart) {
	s.cache = lines
	raw, err := encodeLines(lines)
	if err == nil {
		err = s.slot.Set(ctx, s.key, raw)
	}
	if err != nil {
		s.dirty = true
		s.logger.Warn("local cart write failed, change kept in memory only",
			zap.String("key", s.key),
			zap.Int("lines", len(lines)),
			zap.Error(fmt.Errorf("%w: %v", ErrStorage, err)))
		return
	}
	s.dirty = false
}

func encodeLines(lines Cart) (string, error) {
	if lines == nil {
		lines = Cart{}
	}
	data, err := json.Marshal(lines)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func decodeLines(raw string) (Cart, error) {
	var decoded Cart
	if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
		return nil, err
	}
	lines := make(Cart, 0, len(decoded))
	for _, line := range decoded {
		if line.Quantity < 1 || line.ID == "" {
			continue
		}
		lines = append(lines, line)
	}
	if len(lines) == 0 {
		return nil, nil
	}
	return lines, nil
}
