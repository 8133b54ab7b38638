package storage

import (
	"context"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/MattKevan/uxlift-pipeline/internal/domain"
	"github.com/MattKevan/uxlift-pipeline/internal/ports"
)

var _ ports.ContentStore = (*Store)(nil)

const contentColumns = "id, link, title, description, body, image_url, summary, " +
	"status, indexed, source_id, published_at, created_at"

// GetItemByLink resolves the idempotency key. A nil item with nil error
// means the link has never been seen.
func (s *Store) GetItemByLink(ctx context.Context, link string) (*domain.ContentItem, error) {
	query, args, err := psql.Select(contentColumns).
		From("content_items").
		Where(sq.Eq{"link": link}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select item: %w", err)
	}

	item, err := scanContentItem(s.pool.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select item by link: %w", err)
	}

	return item, nil
}

// InsertItem creates the row, relying on the unique link index to settle
// races: when a concurrent invocation got there first, the existing row
// is fetched and returned with created=false.
func (s *Store) InsertItem(ctx context.Context, item *domain.ContentItem) (*domain.ContentItem, bool, error) {
	query, args, err := psql.Insert("content_items").
		Columns("link", "title", "description", "body", "image_url", "status", "indexed", "source_id", "published_at").
		Values(item.Link, item.Title, item.Description, item.Body, item.ImageURL, item.Status, item.Indexed, item.SourceID, item.PublishedAt).
		Suffix("ON CONFLICT (link) DO NOTHING RETURNING id, created_at").
		ToSql()
	if err != nil {
		return nil, false, fmt.Errorf("build insert item: %w", err)
	}

	stored := *item
	err = s.pool.QueryRow(ctx, query, args...).Scan(&stored.ID, &stored.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		existing, lookupErr := s.GetItemByLink(ctx, item.Link)
		if lookupErr != nil {
			return nil, false, lookupErr
		}
		if existing == nil {
			return nil, false, fmt.Errorf("insert item %s: conflicting row vanished", item.Link)
		}
		return existing, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("insert item: %w", err)
	}

	return &stored, true, nil
}

// SetSummary stores the generated abstract.
func (s *Store) SetSummary(ctx context.Context, id int64, summary string) error {
	query, args, err := psql.Update("content_items").
		Set("summary", summary).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build set summary: %w", err)
	}

	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("set summary: %w", err)
	}

	return nil
}

// MarkIndexed flips the vector-index freshness flag.
func (s *Store) MarkIndexed(ctx context.Context, id int64, indexed bool) error {
	query, args, err := psql.Update("content_items").
		Set("indexed", indexed).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build mark indexed: %w", err)
	}

	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("mark indexed: %w", err)
	}

	return nil
}

// ListUnindexed feeds the recovery sweep over items whose vector windows
// are missing or stale.
func (s *Store) ListUnindexed(ctx context.Context, limit int) ([]domain.ContentItem, error) {
	query, args, err := psql.Select(contentColumns).
		From("content_items").
		Where(sq.Eq{"indexed": false}).
		OrderBy("id ASC").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list unindexed: %w", err)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list unindexed: %w", err)
	}
	defer rows.Close()

	var items []domain.ContentItem
	for rows.Next() {
		item, err := scanContentItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan unindexed item: %w", err)
		}
		items = append(items, *item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate unindexed items: %w", err)
	}

	return items, nil
}

func scanContentItem(row pgx.Row) (*domain.ContentItem, error) {
	var item domain.ContentItem
	err := row.Scan(
		&item.ID, &item.Link, &item.Title, &item.Description, &item.Body, &item.ImageURL,
		&item.Summary, &item.Status, &item.Indexed, &item.SourceID, &item.PublishedAt, &item.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &item, nil
}
