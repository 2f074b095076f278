package cart

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

// Manager presents one cart to callers whether the session is a guest or
// signed in.
//
// Guest sessions read and write the LocalStore. Signed-in sessions write the
// remote Store, read the result back and mirror it into the LocalStore for
// offline display. The in-memory lines only change after a successful read of
// the active store; nothing is applied optimistically.
//
// Every refresh and mutation holds a single-slot queue, so overlapping calls
// run one after another in arrival order instead of racing.
type Manager struct {
	local  *LocalStore
	remote Store
	logger *zap.Logger
	queue  *semaphore.Weighted

	mu            sync.RWMutex
	active        Store
	authenticated bool
	lines         Cart
	loaded        bool
	loading       bool
	listeners     map[int]func(State)
	nextListener  int
}

type Option func(*Manager)

func WithLogger(logger *zap.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// StartSignedIn makes the remote store active from the start, for a session
// that signed in earlier. The local slot is treated as the mirror and is not
// merged; it is shown until the remote cart has been read once. Ignored when
// there is no remote store.
func StartSignedIn() Option {
	return func(m *Manager) { m.authenticated = true }
}

// NewManager starts in guest mode unless StartSignedIn is given. remote may be
// nil when the session can never sign in; SetAuthenticated(ctx, true) then
// fails. Call Refresh to load the initial lines.
func NewManager(local *LocalStore, remote Store, opts ...Option) *Manager {
	m := &Manager{
		local:     local,
		remote:    remote,
		logger:    zap.NewNop(),
		queue:     semaphore.NewWeighted(1),
		active:    local,
		listeners: make(map[int]func(State)),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.authenticated {
		if m.remote == nil {
			m.authenticated = false
		} else {
			m.active = m.remote
		}
	}
	return m
}

// State returns a copy of the observable cart state.
func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.stateLocked()
}

func (m *Manager) stateLocked() State {
	lines := m.lines.clone()
	return State{
		Lines:         lines,
		Count:         lines.Count(),
		Loading:       m.loading,
		Authenticated: m.authenticated,
	}
}

// Subscribe registers fn to receive the state after every change. The
// returned function removes the listener. Listeners run synchronously on the
// goroutine that changed the state and must not call back into the Manager's
// mutating methods.
func (m *Manager) Subscribe(fn func(State)) (cancel func()) {
	m.mu.Lock()
	id := m.nextListener
	m.nextListener++
	m.listeners[id] = fn
	m.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.listeners, id)
			m.mu.Unlock()
		})
	}
}

func (m *Manager) update(fn func()) {
	m.mu.Lock()
	fn()
	state := m.stateLocked()
	listeners := make([]func(State), 0, len(m.listeners))
	for _, l := range m.listeners {
		listeners = append(listeners, l)
	}
	m.mu.Unlock()

	for _, l := range listeners {
		l(state)
	}
}

// begin waits for the queue and raises the loading flag.
func (m *Manager) begin(ctx context.Context) error {
	if err := m.queue.Acquire(ctx, 1); err != nil {
		return err
	}
	m.update(func() { m.loading = true })
	return nil
}

func (m *Manager) end() {
	m.update(func() { m.loading = false })
	m.queue.Release(1)
}

func (m *Manager) current() (Store, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.active, m.authenticated
}

// Refresh re-reads the authoritative store. Failures are logged and leave the
// previous state in place.
func (m *Manager) Refresh(ctx context.Context) {
	if err := m.begin(ctx); err != nil {
		m.logger.Debug("cart refresh abandoned", zap.Error(err))
		return
	}
	defer m.end()

	if err := m.refresh(ctx); err != nil {
		m.logger.Warn("cart refresh failed, keeping previous cart", zap.Error(err))
		m.showMirror(ctx)
	}
}

// refresh must be called while holding the queue.
func (m *Manager) refresh(ctx context.Context) error {
	store, authenticated := m.current()
	lines, err := store.Read(ctx)
	if err != nil {
		return err
	}
	if authenticated {
		m.local.Replace(ctx, lines)
	}
	m.update(func() {
		m.lines = lines
		m.loaded = true
	})
	return nil
}

// showMirror displays the local mirror of a signed-in session whose remote
// cart has never been read, so an offline restart still shows the last known
// cart. It must be called while holding the queue.
func (m *Manager) showMirror(ctx context.Context) {
	m.mu.RLock()
	use := m.authenticated && !m.loaded
	m.mu.RUnlock()
	if !use {
		return
	}
	mirror, err := m.local.Read(ctx)
	if err != nil || len(mirror) == 0 {
		return
	}
	m.logger.Debug("showing mirrored cart", zap.Int("lines", len(mirror)))
	m.update(func() { m.lines = mirror })
}

// AddLine adds quantity units of productID. Guest sessions must pass the
// product snapshot; signed-in sessions let the server resolve the product.
func (m *Manager) AddLine(ctx context.Context, productID ID, quantity int, options Options, product *Product) error {
	if quantity < 1 {
		return invalidInput("quantity must be at least 1, got %d", quantity)
	}
	return m.mutate(ctx, "add", func(store Store) error {
		return store.AddLine(ctx, productID, quantity, options, product)
	})
}

// UpdateLine sets a line's quantity. A quantity of zero or less removes the
// line. Unknown guest lines are ignored.
func (m *Manager) UpdateLine(ctx context.Context, lineID ID, quantity int) error {
	if quantity <= 0 {
		return m.RemoveLine(ctx, lineID)
	}
	return m.mutate(ctx, "update", func(store Store) error {
		return store.UpdateLine(ctx, lineID, quantity)
	})
}

// RemoveLine deletes a line; removing an unknown line succeeds.
func (m *Manager) RemoveLine(ctx context.Context, lineID ID) error {
	return m.mutate(ctx, "remove", func(store Store) error {
		return store.RemoveLine(ctx, lineID)
	})
}

// Clear empties the cart. For signed-in sessions the remote error is
// returned, but the local mirror and the displayed lines are emptied either
// way so stale items are never shown.
func (m *Manager) Clear(ctx context.Context) error {
	if err := m.begin(ctx); err != nil {
		return err
	}
	defer m.end()

	store, authenticated := m.current()
	if !authenticated {
		_ = m.local.Clear(ctx)
		m.update(func() { m.lines = nil })
		return nil
	}

	err := store.Clear(ctx)
	m.local.Replace(ctx, nil)
	m.update(func() { m.lines = nil })
	if err != nil {
		m.logger.Info("remote cart clear failed", zap.Error(err))
		return err
	}
	return nil
}

func (m *Manager) mutate(ctx context.Context, op string, apply func(Store) error) error {
	if err := m.begin(ctx); err != nil {
		return err
	}
	defer m.end()

	store, _ := m.current()
	if err := apply(store); err != nil {
		if !errors.Is(err, ErrInvalidInput) {
			m.logger.Info("cart mutation failed", zap.String("op", op), zap.Error(err))
		}
		return err
	}
	if err := m.refresh(ctx); err != nil {
		m.logger.Info("cart read-back failed after mutation", zap.String("op", op), zap.Error(err))
		return err
	}
	return nil
}

// SetAuthenticated switches the authoritative store.
//
// Signing in replays every guest line onto the remote cart in order,
// dropping each from the local slot once the server accepts it. If a replay
// fails the session stays a guest holding the lines not yet replayed, and the
// error is returned; calling again resumes from there. Once every line is
// replayed the remote store becomes active and is read back.
//
// Signing out makes the local store active again and empties it, so server
// line ids never end up in the guest cart.
func (m *Manager) SetAuthenticated(ctx context.Context, authenticated bool) error {
	if err := m.begin(ctx); err != nil {
		return err
	}
	defer m.end()

	_, current := m.current()
	if current == authenticated {
		if err := m.refresh(ctx); err != nil {
			m.logger.Warn("cart refresh failed, keeping previous cart", zap.Error(err))
			m.showMirror(ctx)
		}
		return nil
	}

	if !authenticated {
		m.local.Replace(ctx, nil)
		m.update(func() {
			m.active = m.local
			m.authenticated = false
			m.lines = nil
		})
		return nil
	}

	if m.remote == nil {
		return invalidInput("no remote cart configured")
	}
	if err := m.mergeGuestCart(ctx); err != nil {
		return err
	}
	m.update(func() {
		m.active = m.remote
		m.authenticated = true
	})
	if err := m.refresh(ctx); err != nil {
		m.logger.Warn("cart refresh after sign-in failed", zap.Error(err))
		return err
	}
	return nil
}
