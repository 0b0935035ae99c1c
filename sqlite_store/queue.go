package sqlite_store

import (
	"context"
	"database/sql"
	"fmt"

	sq "github.com/isseis/go-file-sync-queue/sync_queue"
)

// Save replaces the stored queue snapshot with queue in a single transaction.
func (s *Store) Save(ctx context.Context, queue sq.Queue) error {
	if err := queue.Validate(); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM sync_queue_items"); err != nil {
		return fmt.Errorf("failed to clear sync queue: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
	INSERT INTO sync_queue_items
		(position, id, name, absolute_path, size_in_bytes, last_modified, content_hash, status, error_message, parent_id, should_index)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, item := range queue {
		_, err := stmt.ExecContext(ctx, i, item.ID, item.Name, item.AbsolutePath, item.SizeInBytes,
			formatTime(item.LastModified), item.ContentHash, string(item.Status), item.ErrorMessage,
			item.ParentID, boolToInt(item.ShouldIndex))
		if err != nil {
			return fmt.Errorf("failed to save item %s: %w", item.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit sync queue: %w", err)
	}
	return nil
}

// Load returns the stored queue snapshot in its original order. An empty store yields an empty queue.
func (s *Store) Load(ctx context.Context) (sq.Queue, error) {
	rows, err := s.db.QueryContext(ctx, `
	SELECT id, name, absolute_path, size_in_bytes, last_modified, content_hash, status, error_message, parent_id, should_index
	FROM sync_queue_items ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("failed to load sync queue: %w", err)
	}
	defer rows.Close()

	queue := sq.Queue{}
	for rows.Next() {
		var (
			item         sq.Item
			lastModified sql.NullString
			status       string
			shouldIndex  int
		)
		err := rows.Scan(&item.ID, &item.Name, &item.AbsolutePath, &item.SizeInBytes, &lastModified,
			&item.ContentHash, &status, &item.ErrorMessage, &item.ParentID, &shouldIndex)
		if err != nil {
			return nil, fmt.Errorf("failed to scan sync queue item: %w", err)
		}
		if item.LastModified, err = parseTime(lastModified); err != nil {
			return nil, err
		}
		item.Status = sq.Status(status)
		item.ShouldIndex = shouldIndex != 0
		queue = append(queue, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to load sync queue: %w", err)
	}
	return queue, nil
}
