package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"ideashare/api/internal/ideas"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

const ideaColumns = `id, owner_id, audio_ref, original_filename, description, bpm, embargo_until, embargo_seconds, created_at, vote_count`

func (s *PostgresStore) Insert(ctx context.Context, idea ideas.Idea) (string, error) {
	var embargoUntil *time.Time
	if until, ok := idea.Mode.Embargo(); ok {
		embargoUntil = &until
	}
	var id string
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO ideas (id, owner_id, audio_ref, original_filename, description, bpm, embargo_until, embargo_seconds, created_at, vote_count)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id
	`,
		idea.ID,
		idea.OwnerID,
		idea.AudioRef,
		idea.OriginalFilename,
		idea.Description,
		idea.BPM,
		embargoUntil,
		idea.EmbargoSeconds,
		idea.CreatedAt,
		idea.VoteCount,
	).Scan(&id)
	if isUniqueViolation(err) {
		return "", fmt.Errorf("insert idea %s: %w", idea.ID, ErrDuplicate)
	}
	if err != nil {
		return "", fmt.Errorf("insert idea: %w", err)
	}
	return id, nil
}

func (s *PostgresStore) GetByID(ctx context.Context, id string) (ideas.Idea, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+ideaColumns+` FROM ideas WHERE id=$1`, id)
	idea, err := scanIdea(row)
	if errors.Is(err, sql.ErrNoRows) {
		return ideas.Idea{}, ErrNotFound
	}
	if err != nil {
		return ideas.Idea{}, fmt.Errorf("get idea: %w", err)
	}
	return idea, nil
}

// List returns the ideas matching filter, newest first. The filter is
// translated to SQL; rows agree with filter.Match.
func (s *PostgresStore) List(ctx context.Context, filter ideas.Filter) ([]ideas.Idea, error) {
	where, args := filterClause(filter)
	query := `SELECT ` + ideaColumns + ` FROM ideas` + where + ` ORDER BY created_at DESC, id`
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list ideas: %w", err)
	}
	defer rows.Close()

	items := make([]ideas.Idea, 0)
	for rows.Next() {
		idea, err := scanIdea(rows)
		if err != nil {
			return nil, fmt.Errorf("scan idea: %w", err)
		}
		items = append(items, idea)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ideas: %w", err)
	}
	return items, nil
}

func filterClause(filter ideas.Filter) (string, []any) {
	var conds []string
	var args []any
	if filter.PublicAsOf != nil {
		args = append(args, *filter.PublicAsOf)
		conds = append(conds, fmt.Sprintf("(embargo_until IS NULL OR embargo_until <= $%d)", len(args)))
	}
	if filter.OwnerID != "" {
		args = append(args, filter.OwnerID)
		conds = append(conds, fmt.Sprintf("owner_id = $%d", len(args)))
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// Update applies patch to the idea with id. The vote counter is written
// as given, so concurrent writers race and the last one wins.
func (s *PostgresStore) Update(ctx context.Context, id string, patch Patch) error {
	if err := patch.validate(); err != nil {
		return fmt.Errorf("update idea: %w", err)
	}
	sets := make([]string, 0, 2)
	args := []any{id}
	if patch.ClearOwner {
		sets = append(sets, "owner_id=NULL")
	}
	if patch.VoteCount != nil {
		args = append(args, *patch.VoteCount)
		sets = append(sets, fmt.Sprintf("vote_count=$%d", len(args)))
	}
	result, err := s.db.ExecContext(ctx, `UPDATE ideas SET `+strings.Join(sets, ", ")+` WHERE id=$1`, args...)
	if err != nil {
		return fmt.Errorf("update idea: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update idea rows: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM ideas WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("delete idea: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete idea rows: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanIdea(row rowScanner) (ideas.Idea, error) {
	var (
		idea         ideas.Idea
		ownerID      sql.NullString
		description  sql.NullString
		bpm          sql.NullInt64
		embargoUntil sql.NullTime
	)
	if err := row.Scan(
		&idea.ID,
		&ownerID,
		&idea.AudioRef,
		&idea.OriginalFilename,
		&description,
		&bpm,
		&embargoUntil,
		&idea.EmbargoSeconds,
		&idea.CreatedAt,
		&idea.VoteCount,
	); err != nil {
		return ideas.Idea{}, err
	}
	if ownerID.Valid {
		idea.OwnerID = &ownerID.String
	}
	if description.Valid {
		idea.Description = &description.String
	}
	if bpm.Valid {
		value := int(bpm.Int64)
		idea.BPM = &value
	}
	if embargoUntil.Valid {
		idea.Mode = ideas.EmbargoedUntil(embargoUntil.Time)
	} else {
		idea.Mode = ideas.ImmediatePublic()
	}
	return idea, nil
}
