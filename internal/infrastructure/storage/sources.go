package storage

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/MattKevan/uxlift-pipeline/internal/domain"
	"github.com/MattKevan/uxlift-pipeline/internal/ports"
)

var _ ports.SourceStore = (*Store)(nil)

// CountIncluded counts the sources the pipeline is allowed to ingest.
func (s *Store) CountIncluded(ctx context.Context) (int, error) {
	query, args, err := psql.Select("COUNT(*)").
		From("sources").
		Where(sq.Eq{"included": true}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build count sources: %w", err)
	}

	var count int
	if err := s.pool.QueryRow(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("count sources: %w", err)
	}

	return count, nil
}

// ListBatch pages through included sources in ascending id order. The
// slice addressed by (offset, limit) is stable for a fixed source table.
func (s *Store) ListBatch(ctx context.Context, offset, limit int) ([]domain.Source, error) {
	query, args, err := psql.Select("id", "title", "feed_url", "included").
		From("sources").
		Where(sq.Eq{"included": true}).
		OrderBy("id ASC").
		Offset(uint64(offset)).
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list sources: %w", err)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list sources: %w", err)
	}
	defer rows.Close()

	var sources []domain.Source
	for rows.Next() {
		var src domain.Source
		if err := rows.Scan(&src.ID, &src.Title, &src.FeedURL, &src.Included); err != nil {
			return nil, fmt.Errorf("scan source: %w", err)
		}
		sources = append(sources, src)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sources: %w", err)
	}

	return sources, nil
}
