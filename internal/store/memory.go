package store

import (
	"context"
	"fmt"
	"sync"

	"ideashare/api/internal/ideas"
)

// MemoryStore keeps ideas in process memory. It backs the memory backend
// and tests; all access goes through its methods.
type MemoryStore struct {
	mu    sync.RWMutex
	order []string
	items map[string]ideas.Idea
}

func NewMemoryStore(seed ...ideas.Idea) *MemoryStore {
	s := &MemoryStore{items: make(map[string]ideas.Idea, len(seed))}
	for _, idea := range seed {
		s.order = append(s.order, idea.ID)
		s.items[idea.ID] = copyIdea(idea)
	}
	return s
}

func (s *MemoryStore) Ping(context.Context) error {
	return nil
}

func (s *MemoryStore) Insert(ctx context.Context, idea ideas.Idea) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if idea.ID == "" {
		return "", fmt.Errorf("insert idea: missing id")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.items[idea.ID]; exists {
		return "", fmt.Errorf("insert idea %s: %w", idea.ID, ErrDuplicate)
	}
	s.order = append(s.order, idea.ID)
	s.items[idea.ID] = copyIdea(idea)
	return idea.ID, nil
}

func (s *MemoryStore) GetByID(ctx context.Context, id string) (ideas.Idea, error) {
	if err := ctx.Err(); err != nil {
		return ideas.Idea{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	idea, ok := s.items[id]
	if !ok {
		return ideas.Idea{}, ErrNotFound
	}
	return copyIdea(idea), nil
}

// List returns the matching ideas newest first, like the SQL store.
func (s *MemoryStore) List(ctx context.Context, filter ideas.Filter) ([]ideas.Idea, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	items := make([]ideas.Idea, 0, len(s.order))
	for _, id := range s.order {
		if idea := s.items[id]; filter.Match(idea) {
			items = append(items, copyIdea(idea))
		}
	}
	s.mu.RUnlock()
	return ideas.SortOwned(items), nil
}

func (s *MemoryStore) Update(ctx context.Context, id string, patch Patch) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := patch.validate(); err != nil {
		return fmt.Errorf("update idea: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	idea, ok := s.items[id]
	if !ok {
		return ErrNotFound
	}
	if patch.ClearOwner {
		idea.OwnerID = nil
	}
	if patch.VoteCount != nil {
		idea.VoteCount = *patch.VoteCount
	}
	s.items[id] = idea
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[id]; !ok {
		return ErrNotFound
	}
	delete(s.items, id)
	for i, existing := range s.order {
		if existing == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}

// copyIdea detaches pointer fields so callers cannot mutate stored state.
func copyIdea(idea ideas.Idea) ideas.Idea {
	if idea.OwnerID != nil {
		owner := *idea.OwnerID
		idea.OwnerID = &owner
	}
	if idea.Description != nil {
		description := *idea.Description
		idea.Description = &description
	}
	if idea.BPM != nil {
		bpm := *idea.BPM
		idea.BPM = &bpm
	}
	return idea
}
