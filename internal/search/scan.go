package search

import (
	"context"
	"strings"

	"ideashare/api/internal/ideas"
)

// ListFunc lists ideas matching a filter; store.MemoryStore.List fits.
type ListFunc func(ctx context.Context, filter ideas.Filter) ([]ideas.Idea, error)

// Scan is the searcher of the memory backend: a case-insensitive substring
// match over the public pool, newest first.
type Scan struct {
	list ListFunc
}

func NewScan(list ListFunc) *Scan {
	return &Scan{list: list}
}

func (s *Scan) Healthy() bool {
	return true
}

func (s *Scan) Search(ctx context.Context, q Query) ([]Result, int, error) {
	text := strings.ToLower(strings.TrimSpace(q.Text))
	if text == "" {
		return nil, 0, nil
	}
	q = normalize(q)
	items, err := s.list(ctx, ideas.PublicFilter(q.AsOf))
	if err != nil {
		return nil, 0, err
	}

	var matched []Result
	for _, idea := range ideas.SortOwned(items) {
		description := ""
		if idea.Description != nil {
			description = *idea.Description
		}
		if strings.Contains(strings.ToLower(idea.OriginalFilename), text) ||
			strings.Contains(strings.ToLower(description), text) {
			matched = append(matched, Result{ID: idea.ID, Title: idea.OriginalFilename, Snippet: description})
		}
	}

	total := len(matched)
	if q.Offset >= total {
		return nil, total, nil
	}
	end := min(q.Offset+q.Limit, total)
	return matched[q.Offset:end], total, nil
}
