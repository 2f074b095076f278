// Package slot provides string-keyed persistent slots, the local side of the cart.
package slot

import (
	"context"
	"sync"
)

// Slot is a small key-value store holding one serialized value per key.
//
// Get reports ok=false when the key has never been written. Backends return
// errors only for I/O problems; callers decide whether to absorb them.
type Slot interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key string, value string) error
}

// Memory is a process-local Slot. The zero value is ready to use.
type Memory struct {
	mu     sync.Mutex
	values map[string]string
}

func NewMemory() *Memory {
	return &Memory{values: make(map[string]string)}
}

func (m *Memory) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	value, ok := m.values[key]
	return value, ok, nil
}

func (m *Memory) Set(_ context.Context, key string, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.values == nil {
		m.values = make(map[string]string)
	}
	m.values[key] = value
	return nil
}
