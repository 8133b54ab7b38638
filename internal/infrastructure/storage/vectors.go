package storage

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/pgvector/pgvector-go"

	"github.com/MattKevan/uxlift-pipeline/internal/domain"
	"github.com/MattKevan/uxlift-pipeline/internal/ports"
)

var _ ports.VectorStore = (*Store)(nil)

// DeleteWindows drops every window for a content id. Called before a
// re-index and as cleanup after a partial indexing failure.
func (s *Store) DeleteWindows(ctx context.Context, contentID int64) error {
	query, args, err := psql.Delete("content_vectors").
		Where(sq.Eq{"content_id": contentID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build delete windows: %w", err)
	}

	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("delete windows: %w", err)
	}

	return nil
}

// UpsertWindow writes one embedded chunk keyed by (content id, index).
func (s *Store) UpsertWindow(ctx context.Context, window domain.VectorWindow) error {
	query, args, err := psql.Insert("content_vectors").
		Columns("content_id", "chunk_index", "chunk_id", "title", "link", "chunk_text", "total_chunks", "embedding").
		Values(window.ContentID, window.Index, window.ChunkID, window.Title, window.Link,
			window.Text, window.TotalChunks, pgvector.NewVector(window.Embedding)).
		Suffix("ON CONFLICT (content_id, chunk_index) DO UPDATE SET " +
			"chunk_id = EXCLUDED.chunk_id, title = EXCLUDED.title, link = EXCLUDED.link, " +
			"chunk_text = EXCLUDED.chunk_text, total_chunks = EXCLUDED.total_chunks, " +
			"embedding = EXCLUDED.embedding").
		ToSql()
	if err != nil {
		return fmt.Errorf("build upsert window: %w", err)
	}

	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert window %s: %w", window.ChunkID, err)
	}

	return nil
}
