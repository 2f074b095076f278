package cart

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Pritech-Vior/PritechVior-sub000/internal/money"
	"github.com/Pritech-Vior/PritechVior-sub000/internal/slot"
)

func newGuestManager(t *testing.T) (*Manager, *slot.Memory) {
	t.Helper()
	mem := slot.NewMemory()
	local := NewLocalStore(mem, WithIDGenerator(sequentialIDs()))
	return NewManager(local, nil), mem
}

func newSignedInManager(t *testing.T, remote *fakeRemote) (*Manager, *slot.Memory) {
	t.Helper()
	mem := slot.NewMemory()
	local := NewLocalStore(mem, WithIDGenerator(sequentialIDs()))
	m := NewManager(local, remote)
	require.NoError(t, m.SetAuthenticated(context.Background(), true))
	return m, mem
}

func TestGuestAddSameProductMerges(t *testing.T) {
	ctx := context.Background()
	m, _ := newGuestManager(t)
	p1 := product("P1", 1000)

	require.NoError(t, m.AddLine(ctx, p1.ID, 1, nil, &p1))
	require.NoError(t, m.AddLine(ctx, p1.ID, 2, nil, &p1))

	state := m.State()
	require.Len(t, state.Lines, 1)
	require.Equal(t, 3, state.Lines[0].Quantity)
	require.Equal(t, money.FromMajor(3000), state.Lines[0].Subtotal())
	require.Equal(t, money.FromMajor(3000), state.Lines.Total())
	require.False(t, state.Loading)
	require.False(t, state.Authenticated)
}

func TestGuestUpdateToZeroEmptiesCart(t *testing.T) {
	ctx := context.Background()
	m, _ := newGuestManager(t)
	p1 := product("P1", 1000)

	require.NoError(t, m.AddLine(ctx, p1.ID, 2, nil, &p1))
	lineID := m.State().Lines[0].ID

	require.NoError(t, m.UpdateLine(ctx, lineID, 0))
	state := m.State()
	require.Empty(t, state.Lines)
	require.Equal(t, 0, state.Count)
}

func TestGuestUpdateUnknownLineIsNoop(t *testing.T) {
	ctx := context.Background()
	m, _ := newGuestManager(t)
	p1 := product("P1", 1000)
	require.NoError(t, m.AddLine(ctx, p1.ID, 2, nil, &p1))
	before := m.State()

	require.NoError(t, m.UpdateLine(ctx, "missing", 5))
	require.Equal(t, before.Lines, m.State().Lines)
}

func TestRemoveUnknownLineLeavesCart(t *testing.T) {
	ctx := context.Background()
	m, _ := newGuestManager(t)
	p1 := product("P1", 1000)
	require.NoError(t, m.AddLine(ctx, p1.ID, 1, nil, &p1))
	before := m.State()

	require.NoError(t, m.RemoveLine(ctx, "missing"))
	require.Equal(t, before.Lines, m.State().Lines)
}

func TestCountIsLineCountNotUnits(t *testing.T) {
	ctx := context.Background()
	m, _ := newGuestManager(t)
	for _, id := range []string{"a", "b", "c"} {
		p := product(id, 10)
		require.NoError(t, m.AddLine(ctx, p.ID, 5, nil, &p))
	}
	state := m.State()
	require.Equal(t, 3, state.Count)
	require.Equal(t, 15, state.Lines.Units())
}

func TestGuestAddRequiresSnapshot(t *testing.T) {
	m, _ := newGuestManager(t)
	err := m.AddLine(context.Background(), "P1", 1, nil, nil)
	require.ErrorIs(t, err, ErrInvalidInput)
	require.Empty(t, m.State().Lines)
}

func TestAddRejectsNonPositiveQuantity(t *testing.T) {
	m, _ := newGuestManager(t)
	p1 := product("P1", 1)
	require.ErrorIs(t, m.AddLine(context.Background(), p1.ID, 0, nil, &p1), ErrInvalidInput)
	require.ErrorIs(t, m.AddLine(context.Background(), p1.ID, -3, nil, &p1), ErrInvalidInput)
}

func TestGuestRefreshWithCorruptSlot(t *testing.T) {
	ctx := context.Background()
	m, mem := newGuestManager(t)
	require.NoError(t, mem.Set(ctx, DefaultSlotKey, "]]]"))

	m.Refresh(ctx)
	state := m.State()
	require.Empty(t, state.Lines)
	require.Equal(t, 0, state.Count)
}

func TestGuestRefreshPicksUpSlotChanges(t *testing.T) {
	ctx := context.Background()
	m, mem := newGuestManager(t)

	other := NewLocalStore(mem)
	p1 := product("P1", 20)
	require.NoError(t, other.AddLine(ctx, p1.ID, 2, nil, &p1))

	require.Empty(t, m.State().Lines)
	m.Refresh(ctx)
	require.Len(t, m.State().Lines, 1)
}

func TestGuestClear(t *testing.T) {
	ctx := context.Background()
	m, mem := newGuestManager(t)
	p1 := product("P1", 20)
	require.NoError(t, m.AddLine(ctx, p1.ID, 2, nil, &p1))

	require.NoError(t, m.Clear(ctx))
	require.Empty(t, m.State().Lines)
	raw, _, _ := mem.Get(ctx, DefaultSlotKey)
	require.Equal(t, "[]", raw)
}

func TestSignedInAddUsesServerAndMirrors(t *testing.T) {
	ctx := context.Background()
	remote := newFakeRemote(product("P1", 1000))
	m, mem := newSignedInManager(t, remote)

	require.NoError(t, m.AddLine(ctx, "P1", 2, Options{"gift": "yes"}, nil))
	require.NoError(t, m.AddLine(ctx, "P1", 1, nil, nil))

	state := m.State()
	require.True(t, state.Authenticated)
	require.Len(t, state.Lines, 1)
	require.Equal(t, ID("srv-1"), state.Lines[0].ID)
	require.Equal(t, 3, state.Lines[0].Quantity)

	mirror, err := NewLocalStore(mem).Read(ctx)
	require.NoError(t, err)
	require.Equal(t, state.Lines[0].ID, mirror[0].ID)
	require.Equal(t, 3, mirror[0].Quantity)
}

func TestSignedInUpdateAndRemove(t *testing.T) {
	ctx := context.Background()
	remote := newFakeRemote(product("P1", 1000), product("P2", 5))
	m, _ := newSignedInManager(t, remote)
	require.NoError(t, m.AddLine(ctx, "P1", 1, nil, nil))
	require.NoError(t, m.AddLine(ctx, "P2", 1, nil, nil))

	lines := m.State().Lines
	require.NoError(t, m.UpdateLine(ctx, lines[0].ID, 4))
	require.Equal(t, 4, m.State().Lines[0].Quantity)

	require.NoError(t, m.UpdateLine(ctx, lines[1].ID, -1))
	state := m.State()
	require.Len(t, state.Lines, 1)
	require.Equal(t, lines[0].ID, state.Lines[0].ID)

	require.NoError(t, m.RemoveLine(ctx, "srv-404"))
	require.Len(t, m.State().Lines, 1)
}

func TestSignedInAddThenReadBackFails(t *testing.T) {
	ctx := context.Background()
	remote := newFakeRemote(product("P1", 1000), product("P2", 10))
	m, _ := newSignedInManager(t, remote)
	require.NoError(t, m.AddLine(ctx, "P1", 1, nil, nil))
	before := m.State()

	remote.setReadErr(errOffline)
	err := m.AddLine(ctx, "P2", 1, nil, nil)
	require.ErrorIs(t, err, ErrRemote)
	require.Equal(t, before.Lines, m.State().Lines, "state must stay at its pre-add value")

	remote.setReadErr(nil)
	m.Refresh(ctx)
	require.Len(t, m.State().Lines, 2, "a later refresh shows the item the server kept")
}

func TestSignedInMutationFailureLeavesState(t *testing.T) {
	ctx := context.Background()
	remote := newFakeRemote(product("P1", 1000))
	m, _ := newSignedInManager(t, remote)
	require.NoError(t, m.AddLine(ctx, "P1", 1, nil, nil))
	before := m.State()

	remote.addErr = &RemoteError{Op: "add", Status: 500}
	err := m.AddLine(ctx, "P1", 1, nil, nil)
	var remoteErr *RemoteError
	require.ErrorAs(t, err, &remoteErr)
	require.Equal(t, 500, remoteErr.Status)
	require.Equal(t, before.Lines, m.State().Lines)
}

func TestSignedInRefreshFailureIsSilent(t *testing.T) {
	ctx := context.Background()
	remote := newFakeRemote(product("P1", 1000))
	m, _ := newSignedInManager(t, remote)
	require.NoError(t, m.AddLine(ctx, "P1", 1, nil, nil))
	before := m.State()

	remote.setReadErr(errOffline)
	m.Refresh(ctx)
	require.Equal(t, before.Lines, m.State().Lines)
	require.False(t, m.State().Loading)
}

func TestSignedInClearFailureStillEmptiesMirror(t *testing.T) {
	ctx := context.Background()
	remote := newFakeRemote(product("P1", 1000))
	m, mem := newSignedInManager(t, remote)
	require.NoError(t, m.AddLine(ctx, "P1", 1, nil, nil))

	remote.clearErr = &RemoteError{Op: "clear", Status: 503}
	err := m.Clear(ctx)
	require.ErrorIs(t, err, ErrRemote)

	mirror, readErr := NewLocalStore(mem).Read(ctx)
	require.NoError(t, readErr)
	require.Empty(t, mirror)
	require.Empty(t, m.State().Lines)
}

func TestSignInMergesGuestCart(t *testing.T) {
	ctx := context.Background()
	remote := newFakeRemote(product("P1", 1000), product("P2", 50))
	m, mem := newGuestManager(t)
	m.remote = remote

	p1, p2 := product("P1", 1000), product("P2", 50)
	require.NoError(t, m.AddLine(ctx, p1.ID, 2, Options{"size": "M"}, &p1))
	require.NoError(t, m.AddLine(ctx, p2.ID, 1, nil, &p2))

	require.NoError(t, m.SetAuthenticated(ctx, true))
	state := m.State()
	require.True(t, state.Authenticated)
	require.Len(t, state.Lines, 2)
	require.Equal(t, ID("srv-1"), state.Lines[0].ID)
	require.Equal(t, 2, state.Lines[0].Quantity)
	require.Equal(t, "M", state.Lines[0].Options["size"])

	mirror, _ := NewLocalStore(mem).Read(ctx)
	require.Equal(t, state.Lines[0].ID, mirror[0].ID)
}

func TestSignInMergeResumesAfterFailure(t *testing.T) {
	ctx := context.Background()
	remote := newFakeRemote(product("P1", 1000), product("P2", 50))
	m, _ := newGuestManager(t)
	m.remote = remote

	p1, p2 := product("P1", 1000), product("P2", 50)
	require.NoError(t, m.AddLine(ctx, p1.ID, 2, nil, &p1))
	require.NoError(t, m.AddLine(ctx, p2.ID, 1, nil, &p2))

	remote.addErr = errOffline
	remote.addFailAt = 2
	err := m.SetAuthenticated(ctx, true)
	require.ErrorIs(t, err, ErrRemote)

	state := m.State()
	require.False(t, state.Authenticated)
	require.Len(t, state.Lines, 1)
	require.Equal(t, ID("P2"), state.Lines[0].Product.ID)

	remote.addErr = nil
	require.NoError(t, m.SetAuthenticated(ctx, true))
	state = m.State()
	require.True(t, state.Authenticated)
	require.Len(t, state.Lines, 2)
	require.Equal(t, 2, state.Lines[0].Quantity, "first line must not be replayed twice")
}

func TestSignInDropsLinesTheServerRejects(t *testing.T) {
	ctx := context.Background()
	remote := newFakeRemote(product("P1", 1000))
	m, mem := newGuestManager(t)
	m.remote = remote

	gone, p1 := product("GONE", 75), product("P1", 1000)
	require.NoError(t, m.AddLine(ctx, gone.ID, 1, nil, &gone))
	require.NoError(t, m.AddLine(ctx, p1.ID, 2, nil, &p1))

	require.NoError(t, m.SetAuthenticated(ctx, true))
	state := m.State()
	require.True(t, state.Authenticated)
	require.Len(t, state.Lines, 1)
	require.Equal(t, ID("P1"), state.Lines[0].Product.ID)
	require.Equal(t, 2, state.Lines[0].Quantity)

	mirror, _ := NewLocalStore(mem).Read(ctx)
	require.Len(t, mirror, 1)
	require.Equal(t, ID("srv-1"), mirror[0].ID)
}

func TestSignInStopsOnRetryableRejections(t *testing.T) {
	for _, status := range []int{401, 403, 408, 429, 500, 503} {
		t.Run(strconv.Itoa(status), func(t *testing.T) {
			ctx := context.Background()
			remote := newFakeRemote(product("P1", 1000))
			m, _ := newGuestManager(t)
			m.remote = remote

			p1 := product("P1", 1000)
			require.NoError(t, m.AddLine(ctx, p1.ID, 1, nil, &p1))

			remote.addErr = &RemoteError{Op: "add", Status: status}
			require.ErrorIs(t, m.SetAuthenticated(ctx, true), ErrRemote)
			state := m.State()
			require.False(t, state.Authenticated)
			require.Len(t, state.Lines, 1, "line must be kept for the next attempt")
		})
	}
}

func TestSignOutEmptiesLocalCart(t *testing.T) {
	ctx := context.Background()
	remote := newFakeRemote(product("P1", 1000))
	m, mem := newSignedInManager(t, remote)
	require.NoError(t, m.AddLine(ctx, "P1", 1, nil, nil))

	require.NoError(t, m.SetAuthenticated(ctx, false))
	state := m.State()
	require.False(t, state.Authenticated)
	require.Empty(t, state.Lines)
	mirror, _ := NewLocalStore(mem).Read(ctx)
	require.Empty(t, mirror)

	p1 := product("P1", 1000)
	require.NoError(t, m.AddLine(ctx, p1.ID, 1, nil, &p1))
	require.Equal(t, ID("local-1"), m.State().Lines[0].ID)
}

func TestSignInWithoutRemote(t *testing.T) {
	m, _ := newGuestManager(t)
	require.ErrorIs(t, m.SetAuthenticated(context.Background(), true), ErrInvalidInput)
	require.False(t, m.State().Authenticated)
}

func TestStartSignedInSkipsMerge(t *testing.T) {
	ctx := context.Background()
	remote := newFakeRemote(product("P1", 1000))
	require.NoError(t, remote.AddLine(ctx, "P1", 2, nil, nil))

	mem := slot.NewMemory()
	first := NewManager(NewLocalStore(mem), remote)
	require.NoError(t, first.SetAuthenticated(ctx, true))

	// A later process reuses the mirror slot.
	m := NewManager(NewLocalStore(mem), remote, StartSignedIn())
	require.True(t, m.State().Authenticated)
	m.Refresh(ctx)
	state := m.State()
	require.Len(t, state.Lines, 1)
	require.Equal(t, 2, state.Lines[0].Quantity, "mirror lines are not replayed")

	require.NoError(t, m.SetAuthenticated(ctx, true))
	require.Equal(t, 2, m.State().Lines[0].Quantity)
}

func TestStartSignedInWithoutRemote(t *testing.T) {
	m := NewManager(NewLocalStore(slot.NewMemory()), nil, StartSignedIn())
	require.False(t, m.State().Authenticated)
}

func TestStartSignedInOfflineShowsMirror(t *testing.T) {
	ctx := context.Background()
	remote := newFakeRemote(product("P1", 1000))
	mem := slot.NewMemory()

	first := NewManager(NewLocalStore(mem), remote, StartSignedIn())
	require.NoError(t, first.AddLine(ctx, "P1", 2, Options{"size": "M"}, nil))

	remote.setReadErr(errOffline)
	m := NewManager(NewLocalStore(mem), remote, StartSignedIn())
	m.Refresh(ctx)
	state := m.State()
	require.True(t, state.Authenticated)
	require.Len(t, state.Lines, 1)
	require.Equal(t, ID("srv-1"), state.Lines[0].ID)
	require.Equal(t, 2, state.Lines[0].Quantity)
	require.Equal(t, "M", state.Lines[0].Options["size"])

	// Once the server answers it wins over the mirror.
	remote.setReadErr(nil)
	require.NoError(t, remote.Clear(ctx))
	m.Refresh(ctx)
	require.Empty(t, m.State().Lines)

	// A later outage keeps what the server last said.
	remote.setReadErr(errOffline)
	m.Refresh(ctx)
	require.Empty(t, m.State().Lines)
}

func TestMutationsAreSerialized(t *testing.T) {
	ctx := context.Background()
	remote := newFakeRemote(product("P1", 1000))
	m, _ := newSignedInManager(t, remote)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := m.AddLine(ctx, "P1", 1, nil, nil); err != nil {
				t.Errorf("add: %v", err)
			}
		}()
	}
	wg.Wait()

	require.Equal(t, int32(1), remote.maxInFlight.Load())
	state := m.State()
	require.Len(t, state.Lines, 1)
	require.Equal(t, 8, state.Lines[0].Quantity)
}

func TestGuestConcurrentAddsSum(t *testing.T) {
	ctx := context.Background()
	m, _ := newGuestManager(t)
	p1 := product("P1", 1)

	var wg sync.WaitGroup
	for i := 1; i <= 10; i++ {
		wg.Add(1)
		go func(qty int) {
			defer wg.Done()
			if err := m.AddLine(ctx, p1.ID, qty, nil, &p1); err != nil {
				t.Errorf("add: %v", err)
			}
		}(i)
	}
	wg.Wait()
	require.Equal(t, 55, m.State().Lines[0].Quantity)
}

func TestQueuedCallHonorsContext(t *testing.T) {
	remote := newFakeRemote(product("P1", 1000))
	m, _ := newSignedInManager(t, remote)

	remote.gate = make(chan struct{})
	remote.entered = make(chan struct{}, 1)
	done := make(chan error, 1)
	go func() {
		done <- m.AddLine(context.Background(), "P1", 1, nil, nil)
	}()
	<-remote.entered
	require.True(t, m.State().Loading)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := m.RemoveLine(ctx, "srv-1")
	require.True(t, errors.Is(err, context.DeadlineExceeded))

	close(remote.gate)
	require.NoError(t, <-done)
	require.False(t, m.State().Loading)
	require.Len(t, m.State().Lines, 1)
}

func TestSubscribeReceivesLoadingTransitions(t *testing.T) {
	ctx := context.Background()
	m, _ := newGuestManager(t)

	var mu sync.Mutex
	var seen []State
	cancel := m.Subscribe(func(s State) {
		mu.Lock()
		seen = append(seen, s)
		mu.Unlock()
	})

	p1 := product("P1", 1000)
	require.NoError(t, m.AddLine(ctx, p1.ID, 1, nil, &p1))

	mu.Lock()
	require.GreaterOrEqual(t, len(seen), 3)
	require.True(t, seen[0].Loading)
	last := seen[len(seen)-1]
	require.False(t, last.Loading)
	require.Equal(t, 1, last.Count)
	count := len(seen)
	mu.Unlock()

	cancel()
	cancel()
	require.NoError(t, m.Clear(ctx))
	mu.Lock()
	require.Equal(t, count, len(seen))
	mu.Unlock()
}
