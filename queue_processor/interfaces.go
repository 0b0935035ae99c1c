package queue_processor

import (
	"context"

	sq "github.com/isseis/go-file-sync-queue/sync_queue"
)

// Transfer moves one item's content to the destination store.
type Transfer interface {
	// Transfer uploads the item and returns the identifier the destination assigned to it.
	// Timeouts and cancellation follow ctx; any error marks the item as errored.
	Transfer(ctx context.Context, item sq.Item) (string, error)
}

// TransferFunc adapts a plain function to the Transfer interface.
type TransferFunc func(ctx context.Context, item sq.Item) (string, error)

func (f TransferFunc) Transfer(ctx context.Context, item sq.Item) (string, error) {
	return f(ctx, item)
}

// MetadataRepository records where transferred items ended up.
// Listing and deletion live on concrete repositories and are used by reconciliation, not by a pass.
type MetadataRepository interface {
	UpdateMetadata(ctx context.Context, item sq.Item, remoteID string) error
}

// Saver durably stores a queue snapshot. Save must not return nil before the data is durable.
type Saver interface {
	Save(ctx context.Context, queue sq.Queue) error
}

// SaverFunc adapts a plain function to the Saver interface.
type SaverFunc func(ctx context.Context, queue sq.Queue) error

func (f SaverFunc) Save(ctx context.Context, queue sq.Queue) error {
	return f(ctx, queue)
}
