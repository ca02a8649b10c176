package search

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// PgFTS implements Searcher using PostgreSQL full-text search as a fallback.
type PgFTS struct {
	db *sql.DB
}

func NewPgFTS(db *sql.DB) *PgFTS {
	return &PgFTS{db: db}
}

// Healthy always returns true; if Postgres is down the whole app is down.
func (p *PgFTS) Healthy() bool {
	return true
}

const pgftsWhere = `search_vector @@ plainto_tsquery('english', $1)
	AND (embargo_until IS NULL OR embargo_until <= $2)`

// Search ranks public ideas with ts_rank and builds snippets with ts_headline.
func (p *PgFTS) Search(ctx context.Context, q Query) ([]Result, int, error) {
	if strings.TrimSpace(q.Text) == "" {
		return nil, 0, nil
	}
	q = normalize(q)
	args := []any{q.Text, q.AsOf}

	var total int
	if err := p.db.QueryRowContext(ctx, `SELECT count(*) FROM ideas WHERE `+pgftsWhere, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("pgfts count: %w", err)
	}

	dataSQL := fmt.Sprintf(`
		SELECT id, original_filename,
			ts_headline('english', coalesce(description, ''), plainto_tsquery('english', $1), 'MaxFragments=1,MaxWords=30') AS snippet
		FROM ideas
		WHERE %s
		ORDER BY ts_rank(search_vector, plainto_tsquery('english', $1)) DESC, created_at DESC
		LIMIT %d OFFSET %d`, pgftsWhere, q.Limit, q.Offset)

	rows, err := p.db.QueryContext(ctx, dataSQL, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("pgfts query: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var r Result
		if err := rows.Scan(&r.ID, &r.Title, &r.Snippet); err != nil {
			return nil, 0, fmt.Errorf("pgfts scan: %w", err)
		}
		results = append(results, r)
	}
	return results, total, rows.Err()
}

// LoadAllRecords returns every idea for full reindexing, embargoed ones
// included; their publicAt keeps them out of results until release.
func (p *PgFTS) LoadAllRecords(ctx context.Context) ([]IdeaRecord, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, original_filename, coalesce(description, ''), bpm,
			ceil(extract(epoch FROM coalesce(embargo_until, created_at)) * 1000)::bigint,
			floor(extract(epoch FROM created_at) * 1000)::bigint
		FROM ideas
	`)
	if err != nil {
		return nil, fmt.Errorf("load ideas: %w", err)
	}
	defer rows.Close()

	records := make([]IdeaRecord, 0)
	for rows.Next() {
		var r IdeaRecord
		var bpm sql.NullInt64
		if err := rows.Scan(&r.ID, &r.Filename, &r.Description, &bpm, &r.PublicAt, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan idea record: %w", err)
		}
		if bpm.Valid {
			value := int(bpm.Int64)
			r.BPM = &value
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate idea records: %w", err)
	}
	return records, nil
}
