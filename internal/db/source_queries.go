package db

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

func (s *Store) ListActiveSourceIDs(ctx context.Context) ([]int64, error) {
	const q = `
SELECT source_id
FROM curator.sources
WHERE deleted_at IS NULL
ORDER BY source_id
`
	rows, err := s.pool.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("query active sources: %w", err)
	}
	defer rows.Close()

	ids := make([]int64, 0, 16)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan source id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate active sources: %w", err)
	}
	return ids, nil
}

func (s *Store) GetSource(ctx context.Context, sourceID int64) (Source, error) {
	const q = `
SELECT
	source_id,
	source_uuid::text,
	name,
	kind,
	locator,
	last_checked_at,
	deleted_at,
	created_at,
	updated_at
FROM curator.sources
WHERE source_id = $1
LIMIT 1
`
	var row Source
	err := s.pool.QueryRow(ctx, q, sourceID).Scan(
		&row.SourceID,
		&row.SourceUUID,
		&row.Name,
		&row.Kind,
		&row.Locator,
		&row.LastCheckedAt,
		&row.DeletedAt,
		&row.CreatedAt,
		&row.UpdatedAt,
	)
	if err != nil {
		return Source{}, fmt.Errorf("query source source_id=%d: %w", sourceID, err)
	}
	return row, nil
}

// AdvanceSourceCursor moves last_checked_at forward, never backward.
func (s *Store) AdvanceSourceCursor(ctx context.Context, sourceID int64, checkedAt time.Time) error {
	const q = `
UPDATE curator.sources
SET
	last_checked_at = GREATEST(COALESCE(last_checked_at, 'epoch'::timestamptz), $2),
	updated_at = $2
WHERE source_id = $1
`
	if _, err := s.pool.Exec(ctx, q, sourceID, checkedAt.UTC()); err != nil {
		return fmt.Errorf("advance source cursor source_id=%d: %w", sourceID, err)
	}
	return nil
}

type UpsertSourceParams struct {
	Name    string
	Kind    string
	Locator string
}

func (s *Store) UpsertSource(ctx context.Context, params UpsertSourceParams) (bool, error) {
	name := strings.TrimSpace(params.Name)
	if name == "" {
		return false, fmt.Errorf("source name is required")
	}

	const q = `
INSERT INTO curator.sources (source_uuid, name, kind, locator, created_at, updated_at)
VALUES ($1, $2, $3, $4, now(), now())
ON CONFLICT (name) DO UPDATE SET
	kind = EXCLUDED.kind,
	locator = EXCLUDED.locator,
	deleted_at = NULL,
	updated_at = now()
`
	tag, err := s.pool.Exec(ctx, q, uuid.NewString(), name, params.Kind, strings.TrimSpace(params.Locator))
	if err != nil {
		return false, fmt.Errorf("upsert source %q: %w", name, err)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *Store) ListSources(ctx context.Context) ([]Source, error) {
	const q = `
SELECT
	source_id,
	source_uuid::text,
	name,
	kind,
	locator,
	last_checked_at,
	deleted_at,
	created_at,
	updated_at
FROM curator.sources
WHERE deleted_at IS NULL
ORDER BY name
`
	rows, err := s.pool.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("query sources: %w", err)
	}
	defer rows.Close()

	items := make([]Source, 0, 16)
	for rows.Next() {
		var row Source
		if err := rows.Scan(
			&row.SourceID,
			&row.SourceUUID,
			&row.Name,
			&row.Kind,
			&row.Locator,
			&row.LastCheckedAt,
			&row.DeletedAt,
			&row.CreatedAt,
			&row.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan source row: %w", err)
		}
		items = append(items, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sources: %w", err)
	}
	return items, nil
}
