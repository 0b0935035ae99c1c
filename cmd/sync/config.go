package main

import (
	"errors"
	"flag"
	"fmt"
	"strconv"
	"strings"

	qp "github.com/isseis/go-file-sync-queue/queue_processor"
)

// storeType selects where the queue snapshot is kept.
type storeType string

const (
	storeJSON   storeType = "json"
	storeSQLite storeType = "sqlite"
)

// destinationType selects the transfer capability.
type destinationType string

const (
	destinationS3       destinationType = "s3"
	destinationFilesAPI destinationType = "files_api"
)

// envVars documents the environment variables read by resolveConfig.
var envVars = []struct {
	Name        string
	Description string
}{
	{"SYNC_QUEUE_FILE", "JSON queue file (default: sync_queue.json)"},
	{"SYNC_STORE", "Queue store: json or sqlite (default: json)"},
	{"SYNC_DB_PATH", "SQLite database for file metadata and the sqlite queue store (default: sync.db)"},
	{"SYNC_DESTINATION", "Destination: s3 or files_api"},
	{"SYNC_S3_BUCKET", "S3 bucket"},
	{"SYNC_S3_PREFIX", "S3 key prefix"},
	{"SYNC_S3_REGION", "S3 region"},
	{"SYNC_S3_ENDPOINT", "Custom S3 endpoint (MinIO, LocalStack)"},
	{"SYNC_FILES_API_URL", "Files API base URL"},
	{"SYNC_FILES_API_TOKEN", "Files API bearer token"},
	{"SYNC_FILES_API_PREFIX", "Files API key prefix"},
	{"SYNC_MAX_BATCH_BYTES", "Byte ceiling of one pass (default: 104857600)"},
	{"SYNC_MAX_PASSES", "Maximum passes per run, 0 for no limit (default: 0)"},
}

// flagValues holds the raw command-line values before environment fallback.
type flagValues struct {
	queueFile      *string
	store          *string
	dbPath         *string
	destination    *string
	s3Bucket       *string
	s3Prefix       *string
	s3Region       *string
	s3Endpoint     *string
	filesAPIURL    *string
	filesAPIToken  *string
	filesAPIPrefix *string
	maxBatchBytes  *string
	maxPasses      *string
	once           *bool
	promote        *bool
	pruneSynced    *bool
	dryRun         *bool
}

// syncConfig is the resolved configuration of one run.
type syncConfig struct {
	queueFile      string
	store          storeType
	dbPath         string
	destination    destinationType
	s3Bucket       string
	s3Prefix       string
	s3Region       string
	s3Endpoint     string
	filesAPIURL    string
	filesAPIToken  string
	filesAPIPrefix string
	maxBatchBytes  int64
	maxPasses      int
	once           bool
	promote        bool
	pruneSynced    bool
	dryRun         bool
}

func registerFlags(fs *flag.FlagSet) *flagValues {
	return &flagValues{
		queueFile:      fs.String("queue", "", "JSON queue file"),
		store:          fs.String("store", "", "Queue store (json, sqlite)"),
		dbPath:         fs.String("db", "", "SQLite database path"),
		destination:    fs.String("destination", "", "Destination (s3, files_api)"),
		s3Bucket:       fs.String("s3_bucket", "", "S3 bucket"),
		s3Prefix:       fs.String("s3_prefix", "", "S3 key prefix"),
		s3Region:       fs.String("s3_region", "", "S3 region"),
		s3Endpoint:     fs.String("s3_endpoint", "", "Custom S3 endpoint"),
		filesAPIURL:    fs.String("files_api_url", "", "Files API base URL"),
		filesAPIToken:  fs.String("files_api_token", "", "Files API bearer token"),
		filesAPIPrefix: fs.String("files_api_prefix", "", "Files API key prefix"),
		maxBatchBytes:  fs.String("max_batch_bytes", "", "Byte ceiling of one pass"),
		maxPasses:      fs.String("max_passes", "", "Maximum passes per run (0 for no limit)"),
		once:           fs.Bool("once", false, "Run a single pass"),
		promote:        fs.Bool("promote", false, "Mark newly-synced items as synced after the run"),
		pruneSynced:    fs.Bool("prune_synced", false, "Remove synced items from the queue before the run"),
		dryRun:         fs.Bool("dry_run", false, "If set, perform a dry run (no transfers, only show statistics)"),
	}
}

// resolveConfig applies environment fallbacks and defaults to the parsed flags.
// Flags take precedence over environment variables.
func resolveConfig(v *flagValues, getenv func(string) string) (*syncConfig, error) {
	pick := func(f *string, key, defaultValue string) string {
		if f != nil && *f != "" {
			return *f
		}
		if value := getenv(key); value != "" {
			return value
		}
		return defaultValue
	}

	cfg := &syncConfig{
		queueFile:      pick(v.queueFile, "SYNC_QUEUE_FILE", "sync_queue.json"),
		store:          storeType(strings.ToLower(pick(v.store, "SYNC_STORE", string(storeJSON)))),
		dbPath:         pick(v.dbPath, "SYNC_DB_PATH", "sync.db"),
		destination:    destinationType(strings.ToLower(pick(v.destination, "SYNC_DESTINATION", ""))),
		s3Bucket:       pick(v.s3Bucket, "SYNC_S3_BUCKET", ""),
		s3Prefix:       pick(v.s3Prefix, "SYNC_S3_PREFIX", ""),
		s3Region:       pick(v.s3Region, "SYNC_S3_REGION", ""),
		s3Endpoint:     pick(v.s3Endpoint, "SYNC_S3_ENDPOINT", ""),
		filesAPIURL:    pick(v.filesAPIURL, "SYNC_FILES_API_URL", ""),
		filesAPIToken:  pick(v.filesAPIToken, "SYNC_FILES_API_TOKEN", ""),
		filesAPIPrefix: pick(v.filesAPIPrefix, "SYNC_FILES_API_PREFIX", ""),
		once:           *v.once,
		promote:        *v.promote,
		pruneSynced:    *v.pruneSynced,
		dryRun:         *v.dryRun,
	}

	var err error
	maxBatch := pick(v.maxBatchBytes, "SYNC_MAX_BATCH_BYTES", strconv.FormatInt(qp.MaxBatchSizeBytes, 10))
	if cfg.maxBatchBytes, err = strconv.ParseInt(maxBatch, 10, 64); err != nil || cfg.maxBatchBytes <= 0 {
		return nil, fmt.Errorf("invalid max batch bytes: %q", maxBatch)
	}
	maxPasses := pick(v.maxPasses, "SYNC_MAX_PASSES", "0")
	if cfg.maxPasses, err = strconv.Atoi(maxPasses); err != nil || cfg.maxPasses < 0 {
		return nil, fmt.Errorf("invalid max passes: %q", maxPasses)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *syncConfig) validate() error {
	switch c.store {
	case storeJSON, storeSQLite:
	default:
		return fmt.Errorf("invalid store type: %s", c.store)
	}

	switch c.destination {
	case destinationS3:
		if c.s3Bucket == "" {
			return errors.New("s3 destination requires a bucket")
		}
	case destinationFilesAPI:
		if c.filesAPIURL == "" {
			return errors.New("files_api destination requires a URL")
		}
	case "":
		return errors.New("destination is required")
	default:
		return fmt.Errorf("invalid destination: %s", c.destination)
	}
	return nil
}

// lockPath returns the file guarded by the run lock: the queue snapshot's location.
func (c *syncConfig) lockPath() string {
	if c.store == storeSQLite {
		return c.dbPath
	}
	return c.queueFile
}
