package storage

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/MattKevan/uxlift-pipeline/internal/domain"
	"github.com/MattKevan/uxlift-pipeline/internal/ports"
)

var _ ports.TopicStore = (*Store)(nil)

// ListTopics loads the full tagging vocabulary.
func (s *Store) ListTopics(ctx context.Context) ([]domain.Topic, error) {
	query, args, err := psql.Select("id", "name", "description").
		From("topics").
		OrderBy("name ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list topics: %w", err)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list topics: %w", err)
	}
	defer rows.Close()

	var topics []domain.Topic
	for rows.Next() {
		var t domain.Topic
		if err := rows.Scan(&t.ID, &t.Name, &t.Description); err != nil {
			return nil, fmt.Errorf("scan topic: %w", err)
		}
		topics = append(topics, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate topics: %w", err)
	}

	return topics, nil
}

// ReplaceAssignments swaps the item's topic set wholesale inside one
// transaction. An empty set still clears stale assignments.
func (s *Store) ReplaceAssignments(ctx context.Context, contentID int64, topicIDs []int64) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin replace assignments: %w", err)
	}
	defer tx.Rollback(ctx)

	delQuery, delArgs, err := psql.Delete("content_topics").
		Where(sq.Eq{"content_id": contentID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build delete assignments: %w", err)
	}

	if _, err := tx.Exec(ctx, delQuery, delArgs...); err != nil {
		return fmt.Errorf("delete assignments: %w", err)
	}

	if len(topicIDs) > 0 {
		insert := psql.Insert("content_topics").Columns("content_id", "topic_id")
		for _, topicID := range topicIDs {
			insert = insert.Values(contentID, topicID)
		}

		insQuery, insArgs, err := insert.ToSql()
		if err != nil {
			return fmt.Errorf("build insert assignments: %w", err)
		}

		if _, err := tx.Exec(ctx, insQuery, insArgs...); err != nil {
			return fmt.Errorf("insert assignments: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit replace assignments: %w", err)
	}

	return nil
}
