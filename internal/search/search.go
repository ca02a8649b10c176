// Package search finds public ideas by filename and description.
// Embargoed ideas are indexed with the instant they become public and
// every query filters on it, so search never reveals a private idea.
package search

import (
	"context"
	"time"

	"ideashare/api/internal/ideas"
)

// Result is a single search hit returned to the caller.
type Result struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
}

// Query describes a search request. AsOf is the instant visibility is
// evaluated at.
type Query struct {
	Text   string
	AsOf   time.Time
	Limit  int
	Offset int
}

// Response is the envelope returned by the search endpoint.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
}

// Searcher can execute a full-text search.
type Searcher interface {
	Search(ctx context.Context, q Query) ([]Result, int, error)
	Healthy() bool
}

// IdeaRecord is the data we index for an idea. Times are unix milliseconds
// so Meilisearch can filter on them numerically.
type IdeaRecord struct {
	ID          string `json:"id"`
	Filename    string `json:"filename"`
	Description string `json:"description"`
	BPM         *int   `json:"bpm,omitempty"`
	PublicAt    int64  `json:"publicAt"`
	CreatedAt   int64  `json:"createdAt"`
}

func RecordFor(idea ideas.Idea) IdeaRecord {
	r := IdeaRecord{
		ID:        idea.ID,
		Filename:  idea.OriginalFilename,
		BPM:       idea.BPM,
		PublicAt:  ceilMilli(ideas.PublicAt(idea)),
		CreatedAt: idea.CreatedAt.UnixMilli(),
	}
	if idea.Description != nil {
		r.Description = *idea.Description
	}
	return r
}

// ceilMilli rounds t up to a whole millisecond, so a record never compares
// as public before its release instant.
func ceilMilli(t time.Time) int64 {
	ms := t.UnixMilli()
	if t.Sub(time.UnixMilli(ms)) > 0 {
		ms++
	}
	return ms
}

const defaultLimit = 20

func normalize(q Query) Query {
	if q.Limit <= 0 || q.Limit > 100 {
		q.Limit = defaultLimit
	}
	if q.Offset < 0 {
		q.Offset = 0
	}
	if q.AsOf.IsZero() {
		q.AsOf = time.Now()
	}
	return q
}
