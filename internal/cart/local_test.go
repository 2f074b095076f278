package cart

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/Pritech-Vior/PritechVior-sub000/internal/money"
	"github.com/Pritech-Vior/PritechVior-sub000/internal/slot"
)

func TestLocalStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	mem := slot.NewMemory()
	writer := NewLocalStore(mem, WithIDGenerator(sequentialIDs()))

	p1, p2 := product("p1", 1000), product("p2", 250)
	require.NoError(t, writer.AddLine(ctx, p1.ID, 2, Options{"color": "black", "size": "XL"}, &p1))
	require.NoError(t, writer.AddLine(ctx, p2.ID, 1, nil, &p2))

	written, err := writer.Read(ctx)
	require.NoError(t, err)

	reader := NewLocalStore(mem)
	read, err := reader.Read(ctx)
	require.NoError(t, err)

	if diff := cmp.Diff(written, read); diff != "" {
		t.Fatalf("round trip mismatch (-written +read):\n%s", diff)
	}
	require.Equal(t, ID("local-1"), read[0].ID)
	require.Equal(t, ID("local-2"), read[1].ID)
}

func TestLocalStoreReadsNonStringOptionsAsText(t *testing.T) {
	ctx := context.Background()
	mem := slot.NewMemory()
	raw := `[{"id":"a","product":{"id":"p1","name":"Servo","price":"250.00"},"quantity":1,` +
		`"options":{"size":2,"gift":true,"extra":{ "lines": [1, 2] },"note":null,"color":"red"}}]`
	require.NoError(t, mem.Set(ctx, DefaultSlotKey, raw))

	store := NewLocalStore(mem)
	first, err := store.Read(ctx)
	require.NoError(t, err)
	require.Len(t, first, 1)
	require.Equal(t, Options{
		"size":  "2",
		"gift":  "true",
		"extra": `{"lines":[1,2]}`,
		"color": "red",
	}, first[0].Options)

	// Once rewritten, the line reads back unchanged.
	store.Replace(ctx, first)
	again, err := NewLocalStore(mem).Read(ctx)
	require.NoError(t, err)
	if diff := cmp.Diff(first, again); diff != "" {
		t.Fatalf("round trip mismatch (-first +again):\n%s", diff)
	}
}

func TestLocalStoreCorruptSlotReadsEmpty(t *testing.T) {
	ctx := context.Background()
	mem := slot.NewMemory()
	require.NoError(t, mem.Set(ctx, DefaultSlotKey, `{not json`))

	store := NewLocalStore(mem)
	lines, err := store.Read(ctx)
	require.NoError(t, err)
	require.Empty(t, lines)

	p1 := product("p1", 10)
	require.NoError(t, store.AddLine(ctx, p1.ID, 1, nil, &p1))
	lines, err = store.Read(ctx)
	require.NoError(t, err)
	require.Len(t, lines, 1)
}

func TestLocalStoreReadsLegacyNumericIDs(t *testing.T) {
	ctx := context.Background()
	mem := slot.NewMemory()
	legacy := `[
		{"id": 1718000000000, "product": {"id": 7, "name": "Arduino Uno", "price": "35000.00", "image": "/u.png"}, "quantity": 2, "options": {}},
		{"id": 1718000000001, "product": {"id": 8, "name": "Broken", "price": 10}, "quantity": 0}
	]`
	require.NoError(t, mem.Set(ctx, DefaultSlotKey, legacy))

	lines, err := NewLocalStore(mem).Read(ctx)
	require.NoError(t, err)
	require.Len(t, lines, 1)
	require.Equal(t, ID("1718000000000"), lines[0].ID)
	require.Equal(t, ID("7"), lines[0].Product.ID)
	require.Equal(t, money.FromMajor(35000), lines[0].Product.Price)
	require.Equal(t, 2, lines[0].Quantity)
}

func TestLocalStoreCustomKey(t *testing.T) {
	ctx := context.Background()
	mem := slot.NewMemory()
	store := NewLocalStore(mem, WithSlotKey("tenant-a_cart"))
	p1 := product("p1", 10)
	require.NoError(t, store.AddLine(ctx, p1.ID, 1, nil, &p1))

	_, ok, _ := mem.Get(ctx, DefaultSlotKey)
	require.False(t, ok)
	_, ok, _ = mem.Get(ctx, "tenant-a_cart")
	require.True(t, ok)
}

func TestLocalStoreWriteFailureKeepsMemoryCopy(t *testing.T) {
	ctx := context.Background()
	fs := &faultySlot{}
	store := NewLocalStore(fs, WithIDGenerator(sequentialIDs()))

	p1 := product("p1", 100)
	require.NoError(t, store.AddLine(ctx, p1.ID, 1, nil, &p1))

	fs.fail(nil, errors.New("quota exceeded"))
	require.NoError(t, store.AddLine(ctx, p1.ID, 4, nil, &p1))

	lines, err := store.Read(ctx)
	require.NoError(t, err)
	require.Len(t, lines, 1)
	require.Equal(t, 5, lines[0].Quantity, "in-memory copy should reflect the unsaved change")

	persisted, err := NewLocalStore(fs).Read(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, persisted[0].Quantity, "slot should still hold the last saved cart")

	fs.fail(nil, nil)
	require.NoError(t, store.UpdateLine(ctx, lines[0].ID, 6))
	persisted, err = NewLocalStore(fs).Read(ctx)
	require.NoError(t, err)
	require.Equal(t, 6, persisted[0].Quantity)
}

func TestLocalStoreReadFailureIsAbsorbed(t *testing.T) {
	ctx := context.Background()
	fs := &faultySlot{}
	store := NewLocalStore(fs)
	p1 := product("p1", 100)
	require.NoError(t, store.AddLine(ctx, p1.ID, 3, nil, &p1))

	fs.fail(errors.New("disk gone"), nil)
	lines, err := store.Read(ctx)
	require.NoError(t, err)
	require.Len(t, lines, 1)
	require.Equal(t, 3, lines[0].Quantity)

	fresh, err := NewLocalStore(fs).Read(ctx)
	require.NoError(t, err)
	require.Empty(t, fresh)
}

func TestLocalStoreRequiresSnapshot(t *testing.T) {
	store := NewLocalStore(slot.NewMemory())
	err := store.AddLine(context.Background(), "p1", 1, nil, nil)
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestLocalStoreSnapshotsAreCopied(t *testing.T) {
	ctx := context.Background()
	store := NewLocalStore(slot.NewMemory())
	p1 := product("p1", 100)
	opts := Options{"engraving": "ViorMart"}
	require.NoError(t, store.AddLine(ctx, p1.ID, 1, opts, &p1))

	opts["engraving"] = "changed"
	p1.Name = "changed"

	lines, err := store.Read(ctx)
	require.NoError(t, err)
	require.Equal(t, "ViorMart", lines[0].Options["engraving"])
	require.Equal(t, "Product p1", lines[0].Product.Name)

	lines[0].Quantity = 99
	again, _ := store.Read(ctx)
	require.Equal(t, 1, again[0].Quantity)
}
