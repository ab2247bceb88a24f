package domain

import (
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// ErrUnknownLevel is returned for a price that was never constructed as a
// grid level. It signals a programming defect, the book never creates
// levels on demand.
var ErrUnknownLevel = errors.New("unknown grid level")

// LevelBook is the Level State Store: the sole owner of truth about what the
// bot believes it holds at each level. It is mutated only from the single
// scheduler goroutine, so it carries no locking.
type LevelBook struct {
	grid   *Grid
	states map[string]*LevelState
}

// BookSnapshot is the serializable form of the book, keyed by canonical
// price string.
type BookSnapshot struct {
	Pair   string                 `json:"pair"`
	States map[string]*LevelState `json:"states"`
}

// NewLevelBook creates one empty state per grid level.
func NewLevelBook(grid *Grid) *LevelBook {
	states := make(map[string]*LevelState, len(grid.Levels))
	for i := range grid.Levels {
		states[grid.Levels[i].Price.String()] = NewLevelState()
	}
	return &LevelBook{grid: grid, states: states}
}

// Grid returns the immutable level definitions backing this book.
func (b *LevelBook) Grid() *Grid {
	return b.grid
}

// Get returns the state for a constructed level price.
func (b *LevelBook) Get(price decimal.Decimal) (*LevelState, error) {
	st, ok := b.states[price.String()]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownLevel, "price %s", price)
	}
	return st, nil
}

// TotalPosition is the aggregate base quantity attributed to the bot across
// all levels.
func (b *LevelBook) TotalPosition() decimal.Decimal {
	total := decimal.Zero
	for _, st := range b.states {
		total = total.Add(st.Position)
	}
	return total
}

// OpenOrderIDs lists every resting buy and sell order id across levels.
func (b *LevelBook) OpenOrderIDs() []string {
	ids := make([]string, 0)
	for i := range b.grid.Levels {
		st := b.states[b.grid.Levels[i].Price.String()]
		if st.BuyOrderID != "" {
			ids = append(ids, st.BuyOrderID)
		}
		if st.SellOrderID != "" {
			ids = append(ids, st.SellOrderID)
		}
	}
	return ids
}

// Snapshot exports the book for persistence.
func (b *LevelBook) Snapshot() BookSnapshot {
	states := make(map[string]*LevelState, len(b.states))
	for k, v := range b.states {
		cp := *v
		states[k] = &cp
	}
	return BookSnapshot{Pair: b.grid.Pair.String(), States: states}
}

// Restore overlays a snapshot onto the book. States for prices that no
// longer exist in the grid are dropped; the number of restored levels is
// returned so callers can log the difference.
func (b *LevelBook) Restore(snap BookSnapshot) int {
	restored := 0
	for k, v := range snap.States {
		if _, ok := b.states[k]; !ok {
			continue
		}
		cp := *v
		b.states[k] = &cp
		restored++
	}
	return restored
}
