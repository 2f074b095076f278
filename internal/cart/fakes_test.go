package cart

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Pritech-Vior/PritechVior-sub000/internal/money"
	"github.com/Pritech-Vior/PritechVior-sub000/internal/slot"
)

var errOffline = &RemoteError{Op: "test", Err: errors.New("connection refused")}

// fakeRemote behaves like the cart API: server-assigned ids, products
// resolved from a catalog, merge by product id.
type fakeRemote struct {
	mu      sync.Mutex
	catalog map[ID]Product
	lines   Cart
	nextID  int

	readErr   error
	addErr    error
	addFailAt int // 1-based add call that fails with addErr; 0 means every call
	clearErr  error
	addCalls  int

	gate    chan struct{}
	entered chan struct{}

	inFlight    atomic.Int32
	maxInFlight atomic.Int32
}

func newFakeRemote(products ...Product) *fakeRemote {
	catalog := make(map[ID]Product, len(products))
	for _, p := range products {
		catalog[p.ID] = p
	}
	return &fakeRemote{catalog: catalog}
}

func (f *fakeRemote) track() func() {
	n := f.inFlight.Add(1)
	for {
		max := f.maxInFlight.Load()
		if n <= max || f.maxInFlight.CompareAndSwap(max, n) {
			break
		}
	}
	return func() { f.inFlight.Add(-1) }
}

func (f *fakeRemote) Read(ctx context.Context) (Cart, error) {
	defer f.track()()
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.readErr != nil {
		return nil, f.readErr
	}
	return f.lines.clone(), nil
}

func (f *fakeRemote) AddLine(ctx context.Context, productID ID, quantity int, options Options, _ *Product) error {
	defer f.track()()
	if f.entered != nil {
		f.entered <- struct{}{}
	}
	if f.gate != nil {
		<-f.gate
	}
	time.Sleep(time.Millisecond)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.addCalls++
	if f.addErr != nil && (f.addFailAt == 0 || f.addFailAt == f.addCalls) {
		return f.addErr
	}
	product, ok := f.catalog[productID]
	if !ok {
		return &RemoteError{Op: "add", Status: 404, Message: "product not found"}
	}
	if i := f.lines.findProduct(productID); i >= 0 {
		f.lines[i].Quantity += quantity
		return nil
	}
	f.nextID++
	f.lines = append(f.lines, Line{
		ID:       ID("srv-" + strconv.Itoa(f.nextID)),
		Product:  product,
		Quantity: quantity,
		Options:  options.clone(),
	})
	return nil
}

func (f *fakeRemote) UpdateLine(ctx context.Context, lineID ID, quantity int) error {
	defer f.track()()
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.lines.find(lineID)
	if i < 0 {
		return &RemoteError{Op: "update", Status: 404, Message: "not found"}
	}
	f.lines[i].Quantity = quantity
	return nil
}

func (f *fakeRemote) RemoveLine(ctx context.Context, lineID ID) error {
	defer f.track()()
	f.mu.Lock()
	defer f.mu.Unlock()
	if i := f.lines.find(lineID); i >= 0 {
		f.lines = append(f.lines[:i], f.lines[i+1:]...)
	}
	return nil
}

func (f *fakeRemote) Clear(ctx context.Context) error {
	defer f.track()()
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.clearErr != nil {
		return f.clearErr
	}
	f.lines = nil
	return nil
}

func (f *fakeRemote) setReadErr(err error) {
	f.mu.Lock()
	f.readErr = err
	f.mu.Unlock()
}

// faultySlot wraps a Memory slot with switchable failures.
type faultySlot struct {
	slot.Memory
	mu     sync.Mutex
	getErr error
	setErr error
}

func (s *faultySlot) Get(ctx context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	err := s.getErr
	s.mu.Unlock()
	if err != nil {
		return "", false, err
	}
	return s.Memory.Get(ctx, key)
}

func (s *faultySlot) Set(ctx context.Context, key string, value string) error {
	s.mu.Lock()
	err := s.setErr
	s.mu.Unlock()
	if err != nil {
		return err
	}
	return s.Memory.Set(ctx, key, value)
}

func (s *faultySlot) fail(get, set error) {
	s.mu.Lock()
	s.getErr, s.setErr = get, set
	s.mu.Unlock()
}

func product(id string, major int64) Product {
	return Product{ID: ID(id), Name: "Product " + id, Price: money.FromMajor(major), Image: "/media/" + id + ".png"}
}

func sequentialIDs() func() ID {
	n := 0
	return func() ID {
		n++
		return ID("local-" + strconv.Itoa(n))
	}
}
