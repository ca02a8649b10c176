package app

import (
	"context"
	"time"

	"ideashare/api/internal/ideas"
)

// IdeaView is the JSON shape of an idea. The audio reference and owner id
// never leave the service; callers get a playable URL and an ownership flag.
type IdeaView struct {
	ID               string    `json:"id"`
	AudioURL         *string   `json:"audioUrl"`
	OriginalFilename string    `json:"originalFilename"`
	Description      *string   `json:"description"`
	BPM              *int      `json:"bpm"`
	Visibility       string    `json:"visibility"`
	PublicAt         time.Time `json:"publicAt"`
	EmbargoSeconds   int64     `json:"embargoSeconds"`
	CreatedAt        time.Time `json:"createdAt"`
	VoteCount        int       `json:"voteCount"`
	Owned            bool      `json:"owned"`
	Released         bool      `json:"released"`
}

// View renders idea for viewerID (empty for anonymous viewers). A missing
// audio URL is reported as null rather than failing the listing.
func (s *Service) View(ctx context.Context, idea ideas.Idea, viewerID string) IdeaView {
	view := IdeaView{
		ID:               idea.ID,
		OriginalFilename: idea.OriginalFilename,
		Description:      idea.Description,
		BPM:              idea.BPM,
		Visibility:       string(ideas.EffectiveVisibility(idea, s.now())),
		PublicAt:         ideas.PublicAt(idea),
		EmbargoSeconds:   idea.EmbargoSeconds,
		CreatedAt:        idea.CreatedAt,
		VoteCount:        idea.VoteCount,
		Owned:            viewerID != "" && idea.OwnedBy(viewerID),
		Released:         idea.Released(),
	}
	url, err := s.blobs.URLFor(ctx, idea.AudioRef)
	if err != nil {
		s.logger.Debug("audio url unavailable", "idea_id", idea.ID, "error", err)
		return view
	}
	view.AudioURL = &url
	return view
}

func (s *Service) Views(ctx context.Context, items []ideas.Idea, viewerID string) []IdeaView {
	out := make([]IdeaView, 0, len(items))
	for _, idea := range items {
		out = append(out, s.View(ctx, idea, viewerID))
	}
	return out
}
