// Package queue_processor runs bounded, resumable passes over a sync queue.
//
// A pass walks the queue in order, transfers pending items until the batch
// ceiling would be exceeded, records each outcome on the item and saves the
// full snapshot exactly once. All state needed to resume lives in the queue.
package queue_processor

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	sq "github.com/isseis/go-file-sync-queue/sync_queue"
)

// Finished tells the caller whether pending work remains after a pass.
type Finished string

const (
	// FinishedAll means no pass was cut short; every item the pass reached has been decided.
	FinishedAll Finished = "all"
	// FinishedBatch means the pass stopped early and another pass is needed.
	FinishedBatch Finished = "batch"
)

// Result is the outcome of a pass.
type Result struct {
	Finished Finished
	Queue    sq.Queue // the snapshot that was handed to the Saver
	Stats    PassStats

	// MetadataFailed lists items that were transferred but whose metadata update failed.
	MetadataFailed []string
}

// Processor drives passes over a sync queue. A Processor holds no state
// between passes and may be reused; the caller must not run two passes over the same queue at once.
type Processor struct {
	transfer     Transfer
	metadata     MetadataRepository
	saver        Saver
	logger       Logger
	maxBatchSize int64

	// dryRun skips transfers; pending items are only counted and stay pending.
	dryRun bool
}

// ProcessorOption defines a function type to set options for Processor.
type ProcessorOption func(*Processor)

// WithLogger sets the logger for Processor.
func WithLogger(log Logger) ProcessorOption {
	return func(p *Processor) {
		p.logger = log
	}
}

// WithMaxBatchSize overrides MaxBatchSizeBytes. The value must be positive.
func WithMaxBatchSize(n int64) ProcessorOption {
	return func(p *Processor) {
		p.maxBatchSize = n
	}
}

// WithDryRun sets the dryRun option for Processor.
func WithDryRun(dryRun bool) ProcessorOption {
	return func(p *Processor) {
		p.dryRun = dryRun
	}
}

// NewProcessor constructs a Processor with its collaborators.
func NewProcessor(transfer Transfer, metadata MetadataRepository, saver Saver, opts ...ProcessorOption) (*Processor, error) {
	if transfer == nil || metadata == nil || saver == nil {
		return nil, errors.New("transfer, metadata repository and saver are required")
	}
	p := &Processor{
		transfer:     transfer,
		metadata:     metadata,
		saver:        saver,
		maxBatchSize: MaxBatchSizeBytes,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.maxBatchSize <= 0 {
		return nil, fmt.Errorf("max batch size must be positive, got %d", p.maxBatchSize)
	}
	return p, nil
}

// IsDryRun returns true if the processor is in dry-run mode.
func (p *Processor) IsDryRun() bool {
	return p.dryRun
}

// MaxBatchSize returns the ceiling applied to each pass.
func (p *Processor) MaxBatchSize() int64 {
	return p.maxBatchSize
}

func (p *Processor) getLogger() Logger {
	if p.logger != nil {
		return p.logger
	}
	return &fallbackLogger{}
}

// ProcessQueue runs a single pass with the default batch ceiling.
func ProcessQueue(ctx context.Context, queue sq.Queue, transfer Transfer, metadata MetadataRepository, saver Saver, log Logger) (Result, error) {
	p, err := NewProcessor(transfer, metadata, saver, WithLogger(log))
	if err != nil {
		return Result{}, err
	}
	return p.Process(ctx, queue)
}

// Process runs one pass over queue and returns the new snapshot.
//
// The input queue is never modified. Item failures are recorded on the items
// and do not produce an error; the only errors are an invalid queue (nothing
// is transferred or saved) and a *PersistenceError from the Saver.
//
// If ctx is cancelled, no further transfers are started, the result is
// FinishedBatch and the snapshot is still saved.
func (p *Processor) Process(ctx context.Context, queue sq.Queue) (Result, error) {
	if err := queue.Validate(); err != nil {
		return Result{}, err
	}

	log := p.getLogger()
	passID := uuid.NewString()
	snapshot := queue.Clone()
	if snapshot == nil {
		snapshot = sq.Queue{}
	}
	batch := newBatchAccumulator(p.maxBatchSize)
	exec := &transferExecutor{transfer: p.transfer, metadata: p.metadata, logger: log}

	log.Info("Sync pass started", "pass_id", passID, "items", len(snapshot), "pending_bytes", snapshot.PendingBytes(), "max_batch_bytes", p.maxBatchSize, "dry_run", p.dryRun)

	var stats PassStats
	var metadataFailed []string
	finished := FinishedAll
	for i := range snapshot {
		item := &snapshot[i]
		if item.Status != sq.StatusPending {
			stats.Skipped++
			continue
		}
		if err := ctx.Err(); err != nil {
			log.Warn("Sync pass interrupted", "pass_id", passID, "item_id", item.ID, "error", err)
			finished = FinishedBatch
			stats.Deferred = len(snapshot[i:].Pending())
			break
		}
		if !batch.allows(item.SizeInBytes) {
			log.Info("Batch size limit reached", "pass_id", passID, "item_id", item.ID, "size", item.SizeInBytes, "batch_bytes", batch.total)
			finished = FinishedBatch
			stats.Deferred = len(snapshot[i:].Pending())
			break
		}

		batch.add(item.SizeInBytes)
		stats.Attempted++
		stats.BytesAttempted += item.SizeInBytes

		if p.dryRun {
			log.Info("Dry run: would transfer item", "pass_id", passID, "item_id", item.ID, "path", item.AbsolutePath, "size", item.SizeInBytes)
			continue
		}

		out := exec.execute(ctx, item)
		if !out.succeeded() {
			stats.Errored++
			continue
		}
		stats.NewlySynced++
		if out.metadataErr != nil {
			stats.MetadataErrs++
			metadataFailed = append(metadataFailed, item.ID)
		}
	}

	result := Result{Finished: finished, Queue: snapshot, Stats: stats, MetadataFailed: metadataFailed}

	// Transfers already happened, so the snapshot is saved even when ctx is cancelled.
	if err := p.saver.Save(context.WithoutCancel(ctx), snapshot); err != nil {
		log.Error("Failed to persist sync queue", "pass_id", passID, "error", err)
		return result, &PersistenceError{Err: err}
	}

	log.Info("Sync pass completed", "pass_id", passID, "finished", finished, "stats", stats.String())
	return result, nil
}

// Drain runs passes on the snapshot each previous pass returned until one
// finishes with FinishedAll, ctx is cancelled, or maxPasses passes have run
// (maxPasses <= 0 means no limit). The returned stats are summed over all passes.
func (p *Processor) Drain(ctx context.Context, queue sq.Queue, maxPasses int) (Result, int, error) {
	var total PassStats
	var metadataFailed []string
	passes := 0
	for {
		result, err := p.Process(ctx, queue)
		if result.Queue != nil {
			passes++
			total.add(result.Stats)
			result.Stats = total
			metadataFailed = append(metadataFailed, result.MetadataFailed...)
			result.MetadataFailed = metadataFailed
		}
		if err != nil {
			return result, passes, err
		}

		if result.Finished == FinishedAll || ctx.Err() != nil {
			return result, passes, nil
		}
		if maxPasses > 0 && passes >= maxPasses {
			return result, passes, nil
		}
		if p.dryRun {
			// Nothing changes between dry-run passes.
			return result, passes, nil
		}
		queue = result.Queue
	}
}
