package files_api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"

	sq "github.com/isseis/go-file-sync-queue/sync_queue"
)

// Tag names attached to uploaded files.
const (
	TagSyncItemID  = "syncItemId"
	TagParentID    = "parentId"
	TagContentHash = "contentHash"
	TagSource      = "source"
)

// SourceTagValue marks files uploaded by the synchronizer.
const SourceTagValue = "file-synchronizer"

// Uploader is the part of Client used by Transfer.
type Uploader interface {
	UploadFile(ctx context.Context, req UploadRequest, body io.Reader) (FileID, error)
}

// Transfer uploads queue items through the files API. The file key is the
// item's absolute path under an optional prefix.
type Transfer struct {
	uploader Uploader
	fs       billy.Filesystem
	prefix   string
}

// NewTransfer creates a Transfer. A nil fs reads from the OS root.
func NewTransfer(uploader Uploader, fs billy.Filesystem, prefix string) (*Transfer, error) {
	if uploader == nil {
		return nil, errors.New("uploader is required")
	}
	if fs == nil {
		fs = osfs.New("/")
	}
	return &Transfer{uploader: uploader, fs: fs, prefix: strings.Trim(prefix, "/")}, nil
}

// Key returns the file key used for item.
func (t *Transfer) Key(item sq.Item) string {
	return strings.TrimPrefix(path.Join("/", t.prefix, item.AbsolutePath), "/")
}

// Transfer uploads the item's content and returns the file id assigned by the store.
// A file whose size no longer matches the queued size is not uploaded.
func (t *Transfer) Transfer(ctx context.Context, item sq.Item) (string, error) {
	info, err := t.fs.Stat(item.AbsolutePath)
	if err != nil {
		return "", fmt.Errorf("failed to stat %s: %w", item.AbsolutePath, err)
	}
	if err := item.CheckSize(info.Size()); err != nil {
		return "", err
	}

	file, err := t.fs.Open(item.AbsolutePath)
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", item.AbsolutePath, err)
	}
	defer file.Close()

	mt, err := mimetype.DetectReader(file)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", item.AbsolutePath, err)
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return "", fmt.Errorf("failed to rewind %s: %w", item.AbsolutePath, err)
	}

	tags := map[string]string{
		TagSyncItemID: item.ID,
		TagSource:     SourceTagValue,
	}
	if item.ParentID != "" {
		tags[TagParentID] = item.ParentID
	}
	if item.ContentHash != "" {
		tags[TagContentHash] = item.ContentHash
	}

	req := UploadRequest{
		Key:         t.Key(item),
		Size:        item.SizeInBytes,
		ContentType: mt.String(),
		Tags:        tags,
		Index:       item.ShouldIndex,
	}
	id, err := t.uploader.UploadFile(ctx, req, io.LimitReader(file, item.SizeInBytes))
	if err != nil {
		return "", fmt.Errorf("failed to upload %s: %w", item.AbsolutePath, err)
	}
	return string(id), nil
}
