package store

import "errors"

var (
	// ErrNotFound is returned when no idea has the requested id.
	ErrNotFound = errors.New("idea not found")
	// ErrDuplicate is returned when an idea id is already taken.
	ErrDuplicate = errors.New("idea already exists")
)

// Patch lists the fields an update may change. Nothing else about an idea
// is mutable once stored.
type Patch struct {
	// ClearOwner sets the owner to null (release).
	ClearOwner bool
	// VoteCount overwrites the stored counter.
	VoteCount *int
}

func (p Patch) empty() bool {
	return !p.ClearOwner && p.VoteCount == nil
}

var errEmptyPatch = errors.New("empty patch")
var errNegativeVotes = errors.New("vote count must not be negative")

func (p Patch) validate() error {
	if p.empty() {
		return errEmptyPatch
	}
	if p.VoteCount != nil && *p.VoteCount < 0 {
		return errNegativeVotes
	}
	return nil
}
