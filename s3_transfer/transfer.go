package s3_transfer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gabriel-vasile/mimetype"
	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"

	sq "github.com/isseis/go-file-sync-queue/sync_queue"
)

// SizeMismatchError is returned when the source file no longer has the size recorded in the queue.
type SizeMismatchError = sq.SizeMismatchError

// Transfer uploads items to a bucket. The object key is the prefix followed by
// the item id, so transferring an item again overwrites the same object.
type Transfer struct {
	client S3API
	fs     billy.Filesystem
	bucket string
	prefix string
}

// Option configures a Transfer.
type Option func(*Transfer)

// WithPrefix sets the key prefix objects are written under.
func WithPrefix(prefix string) Option {
	return func(t *Transfer) {
		t.prefix = strings.Trim(prefix, "/")
	}
}

// WithFilesystem sets the file system item paths are read from. Defaults to the OS root.
func WithFilesystem(fs billy.Filesystem) Option {
	return func(t *Transfer) {
		t.fs = fs
	}
}

// New creates a Transfer writing into bucket.
func New(client S3API, bucket string, opts ...Option) (*Transfer, error) {
	if client == nil {
		return nil, errors.New("s3 client is required")
	}
	if bucket == "" {
		return nil, errors.New("bucket name is required")
	}
	t := &Transfer{client: client, bucket: bucket}
	for _, opt := range opts {
		opt(t)
	}
	if t.fs == nil {
		t.fs = osfs.New("/")
	}
	return t, nil
}

// Key returns the object key used for item.
func (t *Transfer) Key(item sq.Item) string {
	if t.prefix == "" {
		return item.ID
	}
	return t.prefix + "/" + item.ID
}

// Transfer uploads the item's file and returns its s3:// URI.
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

	contentType, err := detectContentType(file)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", item.AbsolutePath, err)
	}

	key := t.Key(item)
	input := &s3.PutObjectInput{
		Bucket:        aws.String(t.bucket),
		Key:           aws.String(key),
		Body:          file,
		ContentLength: aws.Int64(item.SizeInBytes),
		ContentType:   aws.String(contentType),
		Metadata:      objectMetadata(item),
	}
	if _, err := t.client.PutObject(ctx, input); err != nil {
		return "", fmt.Errorf("failed to upload %s to s3://%s/%s: %w", item.AbsolutePath, t.bucket, key, err)
	}
	return "s3://" + t.bucket + "/" + key, nil
}

// detectContentType sniffs the start of the file and rewinds it.
func detectContentType(file billy.File) (string, error) {
	mt, err := mimetype.DetectReader(file)
	if err != nil {
		return "", err
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return "", err
	}
	return mt.String(), nil
}

// objectMetadata carries the queue attributes along with the object. Values are
// escaped because S3 user metadata must be ASCII.
func objectMetadata(item sq.Item) map[string]string {
	meta := map[string]string{
		"item-id":      url.PathEscape(item.ID),
		"name":         url.PathEscape(item.Name),
		"should-index": strconv.FormatBool(item.ShouldIndex),
	}
	if item.ContentHash != "" {
		meta["content-hash"] = item.ContentHash
	}
	if item.ParentID != "" {
		meta["parent-id"] = url.PathEscape(item.ParentID)
	}
	return meta
}
