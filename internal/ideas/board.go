package ideas

import "sync"

// Board is a listing held by a caller (one view of ideas). Every mutation
// re-sorts the whole listing with the board's order, so the displayed
// sequence never drifts from the true order.
type Board struct {
	mu    sync.Mutex
	order Order
	items []Idea
}

// NewBoard builds a listing from items. A nil order means SortForDisplay.
func NewBoard(items []Idea, order Order) *Board {
	if order == nil {
		order = SortForDisplay
	}
	return &Board{order: order, items: order(items)}
}

// Items returns a copy of the current listing in display order.
func (b *Board) Items() []Idea {
	b.mu.Lock()
	defer b.mu.Unlock()
	return clone(b.items)
}

func (b *Board) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.items)
}

// Get returns the listed idea with id.
func (b *Board) Get(id string) (Idea, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if i := b.index(id); i >= 0 {
		return b.items[i], true
	}
	return Idea{}, false
}

// Put inserts idea or replaces the listed idea with the same id.
func (b *Board) Put(idea Idea) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if i := b.index(idea.ID); i >= 0 {
		b.items[i] = idea
	} else {
		b.items = append(b.items, idea)
	}
	b.items = b.order(b.items)
}

// SetVoteCount changes the displayed count of id and returns the previous
// value. ok is false when the idea is not listed.
func (b *Board) SetVoteCount(id string, count int) (previous int, ok bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	i := b.index(id)
	if i < 0 {
		return 0, false
	}
	previous = b.items[i].VoteCount
	b.items[i].VoteCount = count
	b.items = b.order(b.items)
	return previous, true
}

// Remove drops id from the listing and reports whether it was listed.
func (b *Board) Remove(id string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	i := b.index(id)
	if i < 0 {
		return false
	}
	b.items = append(b.items[:i:i], b.items[i+1:]...)
	b.items = b.order(b.items)
	return true
}

func (b *Board) index(id string) int {
	for i := range b.items {
		if b.items[i].ID == id {
			return i
		}
	}
	return -1
}
