package queue_processor

import (
	"context"
	"errors"

	sq "github.com/isseis/go-file-sync-queue/sync_queue"
)

// errEmptyRemoteID is recorded when a destination reports success without an identifier.
var errEmptyRemoteID = errors.New("transfer returned an empty remote id")

// transferOutcome is the result of one attempt.
type transferOutcome struct {
	remoteID    string
	transferErr error
	metadataErr error
}

func (o transferOutcome) succeeded() bool {
	return o.transferErr == nil
}

// transferExecutor attempts a single item and writes the outcome onto it.
type transferExecutor struct {
	transfer Transfer
	metadata MetadataRepository
	logger   Logger
}

// execute transfers the item and sets its status to newly-synced or errored.
// A metadata update failure is reported in the outcome but does not change the item's status.
func (e *transferExecutor) execute(ctx context.Context, item *sq.Item) transferOutcome {
	remoteID, err := e.transfer.Transfer(ctx, *item)
	if err == nil && remoteID == "" {
		err = errEmptyRemoteID
	}
	if err != nil {
		e.logger.Error("Failed to transfer item", "item_id", item.ID, "path", item.AbsolutePath, "error", err)
		item.MarkErrored(err.Error())
		return transferOutcome{transferErr: err}
	}

	item.MarkNewlySynced()
	e.logger.Info("Item transferred", "item_id", item.ID, "path", item.AbsolutePath, "remote_id", remoteID, "size", item.SizeInBytes)

	out := transferOutcome{remoteID: remoteID}
	if err := e.metadata.UpdateMetadata(ctx, *item, remoteID); err != nil {
		e.logger.Warn("Failed to update item metadata", "item_id", item.ID, "remote_id", remoteID, "error", err)
		out.metadataErr = err
	}
	return out
}
