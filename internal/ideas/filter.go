package ideas

import "time"

// Filter is the predicate handed to an item store's list operation. Zero
// fields do not constrain. Stores that cannot run Go code translate it to
// their own query language; Match is the reference semantics.
type Filter struct {
	// PublicAsOf keeps ideas whose effective visibility at that instant is public.
	PublicAsOf *time.Time
	// OwnerID keeps ideas currently owned by that identity.
	OwnerID string
}

// PublicFilter returns a filter for the public pool as seen at now.
func PublicFilter(now time.Time) Filter {
	return Filter{PublicAsOf: &now}
}

// OwnerFilter returns a filter for one identity's ideas.
func OwnerFilter(ownerID string) Filter {
	return Filter{OwnerID: ownerID}
}

func (f Filter) Match(idea Idea) bool {
	if f.PublicAsOf != nil && EffectiveVisibility(idea, *f.PublicAsOf) != Public {
		return false
	}
	if f.OwnerID != "" && !idea.OwnedBy(f.OwnerID) {
		return false
	}
	return true
}
