package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/isseis/go-file-sync-queue/filelock"
	"github.com/isseis/go-file-sync-queue/files_api"
	"github.com/isseis/go-file-sync-queue/logger"
	qp "github.com/isseis/go-file-sync-queue/queue_processor"
	"github.com/isseis/go-file-sync-queue/sqlite_store"
	sq "github.com/isseis/go-file-sync-queue/sync_queue"
)

func parseArgs(t *testing.T, args []string, env map[string]string) (*syncConfig, error) {
	t.Helper()
	fs := flag.NewFlagSet("sync", flag.ContinueOnError)
	values := registerFlags(fs)
	require.NoError(t, fs.Parse(args))
	return resolveConfig(values, func(key string) string { return env[key] })
}

func TestResolveConfig(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		env     map[string]string
		check   func(t *testing.T, cfg *syncConfig)
		wantErr bool
	}{
		{
			name: "defaults with files api from env",
			env:  map[string]string{"SYNC_DESTINATION": "files_api", "SYNC_FILES_API_URL": "https://files.example.com"},
			check: func(t *testing.T, cfg *syncConfig) {
				assert.Equal(t, "sync_queue.json", cfg.queueFile)
				assert.Equal(t, storeJSON, cfg.store)
				assert.Equal(t, "sync.db", cfg.dbPath)
				assert.Equal(t, destinationFilesAPI, cfg.destination)
				assert.Equal(t, qp.MaxBatchSizeBytes, cfg.maxBatchBytes)
				assert.Equal(t, 0, cfg.maxPasses)
				assert.Equal(t, "sync_queue.json", cfg.lockPath())
			},
		},
		{
			name: "flags override env",
			args: []string{"-destination", "s3", "-s3_bucket", "flag-bucket", "-store", "SQLite", "-db", "x.db", "-max_passes", "3", "-once", "-promote"},
			env:  map[string]string{"SYNC_DESTINATION": "files_api", "SYNC_S3_BUCKET": "env-bucket", "SYNC_MAX_BATCH_BYTES": "1000"},
			check: func(t *testing.T, cfg *syncConfig) {
				assert.Equal(t, destinationS3, cfg.destination)
				assert.Equal(t, "flag-bucket", cfg.s3Bucket)
				assert.Equal(t, storeSQLite, cfg.store)
				assert.Equal(t, int64(1000), cfg.maxBatchBytes)
				assert.Equal(t, 3, cfg.maxPasses)
				assert.True(t, cfg.once)
				assert.True(t, cfg.promote)
				assert.Equal(t, "x.db", cfg.lockPath())
			},
		},
		{
			name: "files api prefix from env",
			args: []string{"-destination", "files_api", "-files_api_url", "https://files.example.com"},
			env:  map[string]string{"SYNC_FILES_API_PREFIX": "kb/docs"},
			check: func(t *testing.T, cfg *syncConfig) {
				assert.Equal(t, "kb/docs", cfg.filesAPIPrefix)
			},
		},
		{
			name:    "missing destination",
			wantErr: true,
		},
		{
			name:    "unknown destination",
			args:    []string{"-destination", "ftp"},
			wantErr: true,
		},
		{
			name:    "s3 without bucket",
			args:    []string{"-destination", "s3"},
			wantErr: true,
		},
		{
			name:    "files api without url",
			args:    []string{"-destination", "files_api"},
			wantErr: true,
		},
		{
			name:    "invalid store",
			args:    []string{"-destination", "s3", "-s3_bucket", "b", "-store", "csv"},
			wantErr: true,
		},
		{
			name:    "zero batch ceiling",
			args:    []string{"-destination", "s3", "-s3_bucket", "b", "-max_batch_bytes", "0"},
			wantErr: true,
		},
		{
			name:    "negative max passes",
			args:    []string{"-destination", "s3", "-s3_bucket", "b", "-max_passes", "-1"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := parseArgs(t, tt.args, tt.env)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			tt.check(t, cfg)
		})
	}
}

// fakeFilesAPI accepts upserts and content uploads.
type fakeFilesAPI struct {
	mu       sync.Mutex
	server   *httptest.Server
	uploaded map[string]int
}

func newFakeFilesAPI(t *testing.T) *fakeFilesAPI {
	f := &fakeFilesAPI{uploaded: map[string]int{}}
	f.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPut && r.URL.Path == "/v1/files":
			var req struct {
				Key  string            `json:"key"`
				Tags map[string]string `json:"tags"`
			}
			_ = json.NewDecoder(r.Body).Decode(&req)
			id := req.Tags["syncItemId"]
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(map[string]any{
				"success": true,
				"data":    map[string]any{"id": "remote-" + id, "key": req.Key, "uploadUrl": f.server.URL + "/upload/" + id},
			})
		case r.Method == http.MethodPut && strings.HasPrefix(r.URL.Path, "/upload/"):
			body, _ := io.ReadAll(r.Body)
			f.mu.Lock()
			f.uploaded[strings.TrimPrefix(r.URL.Path, "/upload/")] = len(body)
			f.mu.Unlock()
			w.WriteHeader(http.StatusOK)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(f.server.Close)
	return f
}

type runFixture struct {
	dir   string
	cfg   *syncConfig
	api   *fakeFilesAPI
	out   bytes.Buffer
	log   logger.Logger
	queue sq.Queue
}

func newRunFixture(t *testing.T, sizes map[string]int) *runFixture {
	t.Helper()
	dir := t.TempDir()
	f := &runFixture{dir: dir, api: newFakeFilesAPI(t)}
	f.log = logger.NewHybridLogger(logger.Config{Level: logger.LevelDebug, Output: io.Discard})

	for _, id := range []string{"file1", "file2", "file3"} {
		size, ok := sizes[id]
		if !ok {
			continue
		}
		path := filepath.Join(dir, id+".txt")
		require.NoError(t, os.WriteFile(path, bytes.Repeat([]byte("x"), size), 0o644))
		f.queue = append(f.queue, sq.Item{ID: id, Name: id + ".txt", AbsolutePath: path, SizeInBytes: int64(size), Status: sq.StatusPending})
	}

	f.cfg = &syncConfig{
		queueFile:     filepath.Join(dir, "queue.json"),
		store:         storeJSON,
		dbPath:        filepath.Join(dir, "sync.db"),
		destination:   destinationFilesAPI,
		filesAPIURL:   f.api.server.URL,
		maxBatchBytes: qp.MaxBatchSizeBytes,
	}
	return f
}

func (f *runFixture) seedJSON(t *testing.T) {
	file, err := sq.NewQueueFile(f.cfg.queueFile)
	require.NoError(t, err)
	require.NoError(t, file.Save(context.Background(), f.queue))
}

func (f *runFixture) loadJSON(t *testing.T) sq.Queue {
	file, err := sq.NewQueueFile(f.cfg.queueFile)
	require.NoError(t, err)
	queue, err := file.Load()
	require.NoError(t, err)
	return queue
}

func statusesOf(queue sq.Queue) map[string]sq.Status {
	out := make(map[string]sq.Status, len(queue))
	for _, item := range queue {
		out[item.ID] = item.Status
	}
	return out
}

func TestRun_DrainsJSONQueue(t *testing.T) {
	f := newRunFixture(t, map[string]int{"file1": 100, "file2": 200, "file3": 300})
	f.cfg.maxBatchBytes = 300
	f.seedJSON(t)

	code := run(context.Background(), f.cfg, f.log, &f.out)
	assert.Equal(t, 0, code)
	assert.Contains(t, f.out.String(), "Finished: all after 2 pass(es)")

	queue := f.loadJSON(t)
	assert.Equal(t, map[string]sq.Status{
		"file1": sq.StatusNewlySynced,
		"file2": sq.StatusNewlySynced,
		"file3": sq.StatusNewlySynced,
	}, statusesOf(queue))
	assert.Equal(t, map[string]int{"file1": 100, "file2": 200, "file3": 300}, f.api.uploaded)

	db, err := sqlite_store.Open(context.Background(), f.cfg.dbPath)
	require.NoError(t, err)
	defer db.Close()
	files, err := db.ListFiles(context.Background(), "")
	require.NoError(t, err)
	assert.Len(t, files, 3)

	_, err = os.Stat(f.cfg.queueFile + ".lock")
	assert.True(t, os.IsNotExist(err), "lock must be released")
}

func TestRun_OnceStopsAtCeiling(t *testing.T) {
	f := newRunFixture(t, map[string]int{"file1": 100, "file2": 200, "file3": 300})
	f.cfg.maxBatchBytes = 300
	f.cfg.once = true
	f.seedJSON(t)

	assert.Equal(t, 0, run(context.Background(), f.cfg, f.log, &f.out))
	assert.Contains(t, f.out.String(), "Finished: batch after 1 pass(es)")
	assert.Equal(t, map[string]sq.Status{
		"file1": sq.StatusNewlySynced,
		"file2": sq.StatusNewlySynced,
		"file3": sq.StatusPending,
	}, statusesOf(f.loadJSON(t)))
}

func TestRun_SQLiteStoreWithPromote(t *testing.T) {
	f := newRunFixture(t, map[string]int{"file1": 10, "file2": 20})
	f.cfg.store = storeSQLite
	f.cfg.promote = true

	db, err := sqlite_store.Open(context.Background(), f.cfg.dbPath)
	require.NoError(t, err)
	require.NoError(t, db.Save(context.Background(), f.queue))
	require.NoError(t, db.Close())

	assert.Equal(t, 0, run(context.Background(), f.cfg, f.log, &f.out))

	db, err = sqlite_store.Open(context.Background(), f.cfg.dbPath)
	require.NoError(t, err)
	defer db.Close()
	queue, err := db.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string]sq.Status{"file1": sq.StatusSynced, "file2": sq.StatusSynced}, statusesOf(queue))
}

func TestRun_ItemErrorSetsExitCode(t *testing.T) {
	f := newRunFixture(t, map[string]int{"file1": 10, "file2": 20})
	f.queue[0].AbsolutePath = filepath.Join(f.dir, "vanished.txt")
	f.seedJSON(t)

	assert.Equal(t, 1, run(context.Background(), f.cfg, f.log, &f.out))
	queue := f.loadJSON(t)
	assert.Equal(t, map[string]sq.Status{"file1": sq.StatusErrored, "file2": sq.StatusNewlySynced}, statusesOf(queue))
	assert.NotEmpty(t, queue[0].ErrorMessage)
}

func TestRun_DryRunLeavesQueue(t *testing.T) {
	f := newRunFixture(t, map[string]int{"file1": 10})
	f.cfg.dryRun = true
	f.cfg.promote = true
	f.seedJSON(t)

	assert.Equal(t, 0, run(context.Background(), f.cfg, f.log, &f.out))
	assert.Empty(t, f.api.uploaded)
	assert.Equal(t, map[string]sq.Status{"file1": sq.StatusPending}, statusesOf(f.loadJSON(t)))
}

func TestRun_LockHeld(t *testing.T) {
	f := newRunFixture(t, map[string]int{"file1": 10})
	f.seedJSON(t)

	unlock, err := filelock.TryLockFor(f.cfg.lockPath(), "other run")
	require.NoError(t, err)
	defer unlock()

	assert.Equal(t, 1, run(context.Background(), f.cfg, f.log, &f.out))
	assert.Empty(t, f.api.uploaded)
}

func TestRun_InvalidQueueFile(t *testing.T) {
	f := newRunFixture(t, nil)
	require.NoError(t, os.WriteFile(f.cfg.queueFile, []byte("not json"), 0o644))

	assert.Equal(t, 1, run(context.Background(), f.cfg, f.log, &f.out))
}

func TestNewTransfer_FilesAPIPrefix(t *testing.T) {
	cfg := &syncConfig{destination: destinationFilesAPI, filesAPIURL: "https://files.example.com", filesAPIPrefix: "/kb/"}

	transfer, err := newTransfer(context.Background(), cfg)
	require.NoError(t, err)
	filesTransfer, ok := transfer.(*files_api.Transfer)
	require.True(t, ok)
	assert.Equal(t, "kb/data/a.txt", filesTransfer.Key(sq.Item{AbsolutePath: "/data/a.txt"}))
}

// failingRepository fails the metadata update of the listed items.
type failingRepository struct {
	fail     map[string]bool
	recorded []string
}

func (r *failingRepository) UpdateMetadata(ctx context.Context, item sq.Item, remoteID string) error {
	if r.fail[item.ID] {
		return errors.New("repository unavailable")
	}
	r.recorded = append(r.recorded, item.ID)
	return nil
}

func TestRun_PromoteHoldsMetadataFailures(t *testing.T) {
	f := newRunFixture(t, map[string]int{"file1": 10, "file2": 20})
	f.cfg.promote = true
	f.seedJSON(t)

	file, err := sq.NewQueueFile(f.cfg.queueFile)
	require.NoError(t, err)
	store := jsonQueueStore{file: file}
	transfer, err := newTransfer(context.Background(), f.cfg)
	require.NoError(t, err)
	repo := &failingRepository{fail: map[string]bool{"file2": true}}

	code := runPasses(context.Background(), f.cfg, f.queue, store, transfer, repo, f.log, &f.out)
	assert.Equal(t, 1, code, "metadata failures are reported in the exit code")
	assert.Equal(t, []string{"file1"}, repo.recorded)

	queue := f.loadJSON(t)
	assert.Equal(t, map[string]sq.Status{"file1": sq.StatusSynced, "file2": sq.StatusNewlySynced}, statusesOf(queue))

	remaining := sq.DropSynced(queue)
	require.Len(t, remaining, 1)
	assert.Equal(t, "file2", remaining[0].ID, "an item without recorded metadata survives pruning")
}
