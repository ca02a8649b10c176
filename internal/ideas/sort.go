package ideas

import "sort"

// Order arranges a listing. Implementations return a new slice.
type Order func([]Idea) []Idea

// SortForDisplay orders the public pool: most votes first, then newest
// first. Ideas without a creation time go after dated ones with the same
// vote count. The sort is stable.
func SortForDisplay(items []Idea) []Idea {
	out := clone(items)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].VoteCount != out[j].VoteCount {
			return out[i].VoteCount > out[j].VoteCount
		}
		return newerFirst(out[i], out[j]) < 0
	})
	return out
}

// SortOwned orders an owner's private list purely by creation time,
// newest first; votes are ignored.
func SortOwned(items []Idea) []Idea {
	out := clone(items)
	sort.SliceStable(out, func(i, j int) bool {
		return newerFirst(out[i], out[j]) < 0
	})
	return out
}

// FilterOwnedBy returns the ideas currently owned by ownerID, ordered for
// the owner's view.
func FilterOwnedBy(items []Idea, ownerID string) []Idea {
	owned := make([]Idea, 0, len(items))
	for _, item := range items {
		if item.OwnedBy(ownerID) {
			owned = append(owned, item)
		}
	}
	return SortOwned(owned)
}

// newerFirst compares creation times descending. A zero time counts as
// missing: it sorts after any real time and equal to another zero time.
func newerFirst(a, b Idea) int {
	aMissing, bMissing := a.CreatedAt.IsZero(), b.CreatedAt.IsZero()
	switch {
	case aMissing && bMissing:
		return 0
	case aMissing:
		return 1
	case bMissing:
		return -1
	case a.CreatedAt.After(b.CreatedAt):
		return -1
	case b.CreatedAt.After(a.CreatedAt):
		return 1
	default:
		return 0
	}
}

func clone(items []Idea) []Idea {
	out := make([]Idea, len(items))
	copy(out, items)
	return out
}
