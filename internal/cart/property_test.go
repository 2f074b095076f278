package cart

import (
	"context"
	"strconv"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/Pritech-Vior/PritechVior-sub000/internal/money"
	"github.com/Pritech-Vior/PritechVior-sub000/internal/slot"
)

func TestGuestAddsOfOneProductCollapse(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("same product adds yield one line with the summed quantity", prop.ForAll(
		func(quantities []int) bool {
			ctx := context.Background()
			m := NewManager(NewLocalStore(slot.NewMemory()), nil)
			p := product("P1", 1000)
			want := 0
			for _, q := range quantities {
				if err := m.AddLine(ctx, p.ID, q, nil, &p); err != nil {
					return false
				}
				want += q
			}
			lines := m.State().Lines
			if len(quantities) == 0 {
				return len(lines) == 0
			}
			return len(lines) == 1 && lines[0].Quantity == want
		},
		gen.SliceOf(gen.IntRange(1, 50)),
	))

	properties.TestingRun(t)
}

func TestNonPositiveUpdateRemovesLine(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50
	properties := gopter.NewProperties(parameters)

	absent := func(lines Cart, id ID) bool {
		return lines.find(id) < 0
	}

	properties.Property("guest line is gone after update with q <= 0", prop.ForAll(
		func(q int, initial int) bool {
			ctx := context.Background()
			m := NewManager(NewLocalStore(slot.NewMemory()), nil)
			p := product("P1", 10)
			if err := m.AddLine(ctx, p.ID, initial, nil, &p); err != nil {
				return false
			}
			id := m.State().Lines[0].ID
			if err := m.UpdateLine(ctx, id, q); err != nil {
				return false
			}
			return absent(m.State().Lines, id)
		},
		gen.IntRange(-100, 0),
		gen.IntRange(1, 10),
	))

	properties.Property("signed-in line is gone after update with q <= 0", prop.ForAll(
		func(q int, initial int) bool {
			ctx := context.Background()
			m := NewManager(NewLocalStore(slot.NewMemory()), newFakeRemote(product("P1", 10)))
			if err := m.SetAuthenticated(ctx, true); err != nil {
				return false
			}
			if err := m.AddLine(ctx, "P1", initial, nil, nil); err != nil {
				return false
			}
			id := m.State().Lines[0].ID
			if err := m.UpdateLine(ctx, id, q); err != nil {
				return false
			}
			return absent(m.State().Lines, id)
		},
		gen.IntRange(-100, 0),
		gen.IntRange(1, 10),
	))

	properties.TestingRun(t)
}

func TestLocalSlotRoundTripProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50
	properties := gopter.NewProperties(parameters)

	properties.Property("lines read back equal to what was written", prop.ForAll(
		func(names []string, qty int, cents int64, size int) bool {
			ctx := context.Background()
			mem := slot.NewMemory()
			lines := make(Cart, 0, len(names))
			for i, name := range names {
				lines = append(lines, Line{
					ID:       ID("line-" + name),
					Product:  Product{ID: ID(name), Name: name, Price: money.Amount(cents + int64(i))},
					Quantity: qty + i,
					Options: Options{
						"note":   name,
						"size":   strconv.Itoa(size + i),
						"nested": `{"engraving":"` + name + `","lines":[1,2]}`,
						"quoted": `"` + name + `"`,
					},
				})
			}
			NewLocalStore(mem).Replace(ctx, lines)
			read, err := NewLocalStore(mem).Read(ctx)
			if err != nil {
				return false
			}
			if len(lines) == 0 {
				return len(read) == 0
			}
			return cmp.Equal(lines, read)
		},
		gen.SliceOf(gen.Identifier()),
		gen.IntRange(1, 99),
		gen.Int64Range(0, 10_000_000),
		gen.IntRange(-1000, 1000),
	))

	properties.TestingRun(t)
}
