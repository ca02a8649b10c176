package search

import (
	"context"
	"log/slog"
)

// Service is the facade that tries Meilisearch first and falls back to a
// local searcher (PostgreSQL FTS, or Scan on the memory backend).
type Service struct {
	meili    *Meili
	fallback Searcher
	logger   *slog.Logger
}

// NewService creates a search service. meili may be nil if Meilisearch is
// not configured.
func NewService(meili *Meili, fallback Searcher, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{meili: meili, fallback: fallback, logger: logger.With("component", "search")}
}

// Search tries Meilisearch if healthy, otherwise falls back.
func (s *Service) Search(ctx context.Context, q Query) Response {
	if s.meili != nil && s.meili.Healthy() {
		results, total, err := s.meili.Search(ctx, q)
		if err == nil {
			return Response{Results: nonNil(results), Total: total, Query: q.Text}
		}
		s.logger.Warn("meilisearch error, falling back", "error", err)
	}
	if s.fallback == nil {
		return Response{Results: []Result{}, Query: q.Text}
	}

	results, total, err := s.fallback.Search(ctx, q)
	if err != nil {
		s.logger.Error("fallback search failed", "error", err)
		return Response{Results: []Result{}, Total: 0, Query: q.Text}
	}
	return Response{Results: nonNil(results), Total: total, Query: q.Text}
}

// IndexIdea indexes an idea (fire-and-forget to Meilisearch).
func (s *Service) IndexIdea(r IdeaRecord) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.IndexIdea(r); err != nil {
			s.logger.Warn("index idea", "idea_id", r.ID, "error", err)
		}
	}()
}

// DeleteIdea removes an idea from the index (fire-and-forget).
func (s *Service) DeleteIdea(id string) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.DeleteIdea(id); err != nil {
			s.logger.Warn("delete idea from index", "idea_id", id, "error", err)
		}
	}()
}

// ReindexAll pushes records to Meilisearch.
func (s *Service) ReindexAll(records []IdeaRecord) {
	if s.meili == nil || !s.meili.Healthy() || len(records) == 0 {
		return
	}
	if err := s.meili.IndexIdeas(records); err != nil {
		s.logger.Warn("reindex ideas", "count", len(records), "error", err)
		return
	}
	s.logger.Info("reindexed ideas", "count", len(records))
}

// ReindexAllFromPG reindexes every idea stored in PostgreSQL.
func (s *Service) ReindexAllFromPG(ctx context.Context) error {
	if s.meili == nil || !s.meili.Healthy() {
		return nil
	}
	pg, ok := s.fallback.(*PgFTS)
	if !ok {
		return nil
	}
	records, err := pg.LoadAllRecords(ctx)
	if err != nil {
		return err
	}
	s.ReindexAll(records)
	return nil
}

func nonNil(r []Result) []Result {
	if r == nil {
		return []Result{}
	}
	return r
}
