package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/isseis/go-file-sync-queue/files_api"
	"github.com/isseis/go-file-sync-queue/filelock"
	"github.com/isseis/go-file-sync-queue/logger"
	qp "github.com/isseis/go-file-sync-queue/queue_processor"
	"github.com/isseis/go-file-sync-queue/s3_transfer"
	"github.com/isseis/go-file-sync-queue/sqlite_store"
	sq "github.com/isseis/go-file-sync-queue/sync_queue"
)

// queueStore loads and saves the queue snapshot.
type queueStore interface {
	Load(ctx context.Context) (sq.Queue, error)
	qp.Saver
}

// jsonQueueStore adapts a QueueFile to queueStore.
type jsonQueueStore struct {
	file *sq.QueueFile
}

func (s jsonQueueStore) Load(ctx context.Context) (sq.Queue, error) {
	return s.file.Load()
}

func (s jsonQueueStore) Save(ctx context.Context, queue sq.Queue) error {
	return s.file.Save(ctx, queue)
}

func newQueueStore(cfg *syncConfig, db *sqlite_store.Store) (queueStore, error) {
	if cfg.store == storeSQLite {
		return db, nil
	}
	file, err := sq.NewQueueFile(cfg.queueFile)
	if err != nil {
		return nil, err
	}
	return jsonQueueStore{file: file}, nil
}

func newTransfer(ctx context.Context, cfg *syncConfig) (qp.Transfer, error) {
	switch cfg.destination {
	case destinationS3:
		client, err := s3_transfer.NewClient(ctx, s3_transfer.ClientConfig{Region: cfg.s3Region, Endpoint: cfg.s3Endpoint})
		if err != nil {
			return nil, err
		}
		transfer, err := s3_transfer.New(client, cfg.s3Bucket, s3_transfer.WithPrefix(cfg.s3Prefix))
		if err != nil {
			return nil, err
		}
		return transfer, nil
	case destinationFilesAPI:
		client, err := files_api.NewClient(cfg.filesAPIURL, cfg.filesAPIToken)
		if err != nil {
			return nil, err
		}
		transfer, err := files_api.NewTransfer(client, nil, cfg.filesAPIPrefix)
		if err != nil {
			return nil, err
		}
		return transfer, nil
	default:
		return nil, fmt.Errorf("invalid destination: %s", cfg.destination)
	}
}

// run performs one synchronization run and returns the process exit code.
func run(ctx context.Context, cfg *syncConfig, log logger.Logger, out io.Writer) int {
	unlock, err := filelock.TryLockFor(cfg.lockPath(), "file-sync-queue run")
	if err != nil {
		if errors.Is(err, filelock.ErrLockHeld) {
			if info, infoErr := filelock.ReadLockInfo(cfg.lockPath()); infoErr == nil {
				log.Error("Another run holds the queue", "pid", info.PID, "host", info.Hostname, "since", info.Timestamp)
			}
		}
		log.Error("Failed to acquire lock", "path", cfg.lockPath(), "error", err)
		return 1
	}
	defer unlock()

	db, err := sqlite_store.Open(ctx, cfg.dbPath)
	if err != nil {
		log.Error("Failed to open metadata database", "path", cfg.dbPath, "error", err)
		return 1
	}
	defer db.Close()

	store, err := newQueueStore(cfg, db)
	if err != nil {
		log.Error("Failed to open queue store", "error", err)
		return 1
	}
	queue, err := store.Load(ctx)
	if err != nil {
		log.Error("Failed to load sync queue", "error", err)
		return 1
	}
	if cfg.pruneSynced {
		pruned := sq.DropSynced(queue)
		log.Info("Pruned synced items", "removed", len(queue)-len(pruned))
		queue = pruned
	}

	counts := queue.CountByStatus()
	log.Info("Sync queue loaded", "items", len(queue), "pending", counts[sq.StatusPending], "pending_bytes", queue.PendingBytes())

	transfer, err := newTransfer(ctx, cfg)
	if err != nil {
		log.Error("Failed to create transfer", "destination", cfg.destination, "error", err)
		return 1
	}

	return runPasses(ctx, cfg, queue, store, transfer, db, log, out)
}

// runPasses processes queue, applies promotion and returns the process exit code.
func runPasses(ctx context.Context, cfg *syncConfig, queue sq.Queue, store queueStore, transfer qp.Transfer, repo qp.MetadataRepository, log logger.Logger, out io.Writer) int {
	processor, err := qp.NewProcessor(transfer, repo, store,
		qp.WithLogger(qp.NewLoggerAdapter(log)),
		qp.WithMaxBatchSize(cfg.maxBatchBytes),
		qp.WithDryRun(cfg.dryRun),
	)
	if err != nil {
		log.Error("Failed to create processor", "error", err)
		return 1
	}

	var result qp.Result
	passes := 1
	if cfg.once {
		result, err = processor.Process(ctx, queue)
	} else {
		result, passes, err = processor.Drain(ctx, queue, cfg.maxPasses)
	}
	if err != nil {
		log.Error("Sync failed", "error", err)
		fmt.Fprintf(out, "Sync failed: %v\n", err)
		return 1
	}

	if cfg.promote && !cfg.dryRun {
		// Items without a recorded remote id stay newly-synced so pruning cannot drop them.
		promoted := sq.PromoteNewlySynced(result.Queue, result.MetadataFailed...)
		if err := store.Save(context.WithoutCancel(ctx), promoted); err != nil {
			log.Error("Failed to save promoted queue", "error", err)
			return 1
		}
		count := promoted.CountByStatus()[sq.StatusSynced] - result.Queue.CountByStatus()[sq.StatusSynced]
		log.Info("Promoted newly synced items", "count", count, "held", len(result.MetadataFailed))
	}

	fmt.Fprintf(out, "Finished: %s after %d pass(es); %s\n", result.Finished, passes, result.Stats.String())
	if result.Stats.TotalErrs() > 0 {
		return 1
	}
	return 0
}
