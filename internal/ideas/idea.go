// Package ideas holds the idea model and the pure rules around it:
// visibility computed from the stored embargo policy, embargo choices,
// listing filters and display ordering.
package ideas

import "time"

// Idea is a shared audio clip with its metadata and visibility policy.
type Idea struct {
	ID               string
	OwnerID          *string
	AudioRef         string
	OriginalFilename string
	Description      *string
	BPM              *int
	Mode             VisibilityMode
	EmbargoSeconds   int64
	CreatedAt        time.Time
	VoteCount        int
}

// OwnedBy reports whether ownerID currently owns the idea. Released ideas
// are owned by nobody.
func (i Idea) OwnedBy(ownerID string) bool {
	return i.OwnerID != nil && ownerID != "" && *i.OwnerID == ownerID
}

// Released reports whether the owner link has been removed.
func (i Idea) Released() bool {
	return i.OwnerID == nil
}

// VisibilityMode is the immutable policy chosen at creation: either public
// immediately or embargoed until a fixed instant. The zero value is
// ImmediatePublic.
type VisibilityMode struct {
	embargoed bool
	until     time.Time
}

// ImmediatePublic returns the policy of ideas that are public from creation.
func ImmediatePublic() VisibilityMode {
	return VisibilityMode{}
}

// EmbargoedUntil returns the policy of ideas that stay private before t.
func EmbargoedUntil(t time.Time) VisibilityMode {
	return VisibilityMode{embargoed: true, until: t}
}

// Embargo returns the release instant and true for embargoed ideas.
func (m VisibilityMode) Embargo() (time.Time, bool) {
	return m.until, m.embargoed
}

func (m VisibilityMode) String() string {
	if !m.embargoed {
		return "immediate"
	}
	return "embargoed until " + m.until.UTC().Format(time.RFC3339)
}

// Visibility is the computed state of an idea at a given instant.
type Visibility string

const (
	Private Visibility = "private"
	Public  Visibility = "public"
)

// EffectiveVisibility derives the visibility of idea at now. It never reads
// or writes any stored flag, so a reader and writer sharing a clock source
// can never disagree with the stored policy.
func EffectiveVisibility(idea Idea, now time.Time) Visibility {
	until, embargoed := idea.Mode.Embargo()
	if !embargoed || !now.Before(until) {
		return Public
	}
	return Private
}

// PublicAt is the first instant at which idea is public.
func PublicAt(idea Idea) time.Time {
	if until, embargoed := idea.Mode.Embargo(); embargoed {
		return until
	}
	return idea.CreatedAt
}
