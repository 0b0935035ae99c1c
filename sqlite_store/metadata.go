package sqlite_store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/isseis/go-file-sync-queue/sync_queue"
)

// ErrFileNotFound is returned when no metadata exists for a remote id.
var ErrFileNotFound = errors.New("file not found")

// FileMetadata is the record kept for every synchronized file.
type FileMetadata struct {
	ItemID       string
	RemoteID     string
	Name         string
	AbsolutePath string
	ParentID     string
	SizeInBytes  int64
	ContentHash  string
	LastModified *time.Time
	ShouldIndex  bool
	SyncedAt     time.Time
}

// UpdateMetadata records that item now lives at remoteID. Recording the same
// item again replaces the previous record. A remote id belongs to one item: a
// record of another item holding remoteID is removed.
func (s *Store) UpdateMetadata(ctx context.Context, item sq.Item, remoteID string) error {
	if item.ID == "" {
		return errors.New("item id is required")
	}
	if remoteID == "" {
		return errors.New("remote id is required")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM file_metadata WHERE remote_id = ? AND item_id <> ?", remoteID, item.ID); err != nil {
		return fmt.Errorf("failed to release remote id %s: %w", remoteID, err)
	}

	_, err = tx.ExecContext(ctx, `
	INSERT INTO file_metadata
		(item_id, remote_id, name, absolute_path, parent_id, size_in_bytes, content_hash, last_modified, should_index, synced_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(item_id) DO UPDATE SET
		remote_id = excluded.remote_id,
		name = excluded.name,
		absolute_path = excluded.absolute_path,
		parent_id = excluded.parent_id,
		size_in_bytes = excluded.size_in_bytes,
		content_hash = excluded.content_hash,
		last_modified = excluded.last_modified,
		should_index = excluded.should_index,
		synced_at = excluded.synced_at`,
		item.ID, remoteID, item.Name, item.AbsolutePath, item.ParentID, item.SizeInBytes, item.ContentHash,
		formatTime(item.LastModified), boolToInt(item.ShouldIndex), time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to update metadata for %s: %w", item.ID, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit metadata for %s: %w", item.ID, err)
	}
	return nil
}

// ListFiles returns the metadata of files under parentID, or of all files when parentID is empty.
func (s *Store) ListFiles(ctx context.Context, parentID string) ([]FileMetadata, error) {
	query := `SELECT item_id, remote_id, name, absolute_path, parent_id, size_in_bytes, content_hash,
		last_modified, should_index, synced_at FROM file_metadata`
	var args []any
	if parentID != "" {
		query += " WHERE parent_id = ?"
		args = append(args, parentID)
	}
	query += " ORDER BY absolute_path, item_id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list files: %w", err)
	}
	defer rows.Close()

	files := []FileMetadata{}
	for rows.Next() {
		var (
			f            FileMetadata
			lastModified sql.NullString
			shouldIndex  int
			syncedAt     int64
		)
		err := rows.Scan(&f.ItemID, &f.RemoteID, &f.Name, &f.AbsolutePath, &f.ParentID, &f.SizeInBytes,
			&f.ContentHash, &lastModified, &shouldIndex, &syncedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan file metadata: %w", err)
		}
		if f.LastModified, err = parseTime(lastModified); err != nil {
			return nil, err
		}
		f.ShouldIndex = shouldIndex != 0
		f.SyncedAt = time.UnixMilli(syncedAt)
		files = append(files, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list files: %w", err)
	}
	return files, nil
}

// DeleteFile removes the metadata of the file stored at remoteID.
func (s *Store) DeleteFile(ctx context.Context, remoteID string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM file_metadata WHERE remote_id = ?", remoteID)
	if err != nil {
		return fmt.Errorf("failed to delete %s: %w", remoteID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete %s: %w", remoteID, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", remoteID, ErrFileNotFound)
	}
	return nil
}
