package queue_processor

import (
	"context"
	"errors"
	"fmt"
	"sync"

	sq "github.com/isseis/go-file-sync-queue/sync_queue"
)

// MockTransfer is a function-field mock of Transfer that records every call.
type MockTransfer struct {
	TransferFunc func(ctx context.Context, item sq.Item) (string, error)
	Calls        []sq.Item
}

func (m *MockTransfer) Transfer(ctx context.Context, item sq.Item) (string, error) {
	m.Calls = append(m.Calls, item)
	if m.TransferFunc != nil {
		return m.TransferFunc(ctx, item)
	}
	return "remote-" + item.ID, nil
}

// CalledIDs returns the ids of the transferred items in call order.
func (m *MockTransfer) CalledIDs() []string {
	ids := make([]string, 0, len(m.Calls))
	for _, c := range m.Calls {
		ids = append(ids, c.ID)
	}
	return ids
}

// failingFor returns a TransferFunc that fails for the given ids and succeeds otherwise.
func failingFor(ids ...string) func(context.Context, sq.Item) (string, error) {
	fail := make(map[string]bool, len(ids))
	for _, id := range ids {
		fail[id] = true
	}
	return func(_ context.Context, item sq.Item) (string, error) {
		if fail[item.ID] {
			return "", errors.New("Transfer failed")
		}
		return "remote-" + item.ID, nil
	}
}

type metadataCall struct {
	Item     sq.Item
	RemoteID string
}

// MockMetadataRepository is a function-field mock of MetadataRepository.
type MockMetadataRepository struct {
	UpdateMetadataFunc func(ctx context.Context, item sq.Item, remoteID string) error
	Calls              []metadataCall
}

func (m *MockMetadataRepository) UpdateMetadata(ctx context.Context, item sq.Item, remoteID string) error {
	m.Calls = append(m.Calls, metadataCall{Item: item, RemoteID: remoteID})
	if m.UpdateMetadataFunc != nil {
		return m.UpdateMetadataFunc(ctx, item, remoteID)
	}
	return nil
}

// MockSaver records a copy of every snapshot it is asked to save.
type MockSaver struct {
	SaveFunc  func(ctx context.Context, queue sq.Queue) error
	Snapshots []sq.Queue
}

func (m *MockSaver) Save(ctx context.Context, queue sq.Queue) error {
	m.Snapshots = append(m.Snapshots, queue.Clone())
	if m.SaveFunc != nil {
		return m.SaveFunc(ctx, queue)
	}
	return nil
}

// Last returns the most recently saved snapshot.
func (m *MockSaver) Last() sq.Queue {
	if len(m.Snapshots) == 0 {
		return nil
	}
	return m.Snapshots[len(m.Snapshots)-1]
}

type mocks struct {
	transfer *MockTransfer
	metadata *MockMetadataRepository
	saver    *MockSaver
	logger   *recordingLogger
}

func newMocks() *mocks {
	return &mocks{
		transfer: &MockTransfer{},
		metadata: &MockMetadataRepository{},
		saver:    &MockSaver{},
		logger:   &recordingLogger{},
	}
}

func (m *mocks) processor(opts ...ProcessorOption) *Processor {
	opts = append([]ProcessorOption{WithLogger(m.logger)}, opts...)
	p, err := NewProcessor(m.transfer, m.metadata, m.saver, opts...)
	if err != nil {
		panic(err)
	}
	return p
}

type logEntry struct {
	Level string
	Msg   string
}

// recordingLogger keeps log messages so tests can assert on them.
type recordingLogger struct {
	mu      sync.Mutex
	entries []logEntry
}

func (l *recordingLogger) record(level, msg string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, logEntry{Level: level, Msg: formatLogMessage(msg, args...)})
}

func (l *recordingLogger) Debug(msg string, args ...any) { l.record("DEBUG", msg, args...) }
func (l *recordingLogger) Info(msg string, args ...any)  { l.record("INFO", msg, args...) }
func (l *recordingLogger) Warn(msg string, args ...any)  { l.record("WARN", msg, args...) }
func (l *recordingLogger) Error(msg string, args ...any) { l.record("ERROR", msg, args...) }

func (l *recordingLogger) count(level string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, e := range l.entries {
		if e.Level == level {
			n++
		}
	}
	return n
}

func file(id string, size int64) sq.Item {
	return sq.Item{
		ID:           id,
		Name:         id + ".txt",
		AbsolutePath: fmt.Sprintf("/path/to/%s.txt", id),
		SizeInBytes:  size,
		ContentHash:  "hash-" + id,
		Status:       sq.StatusPending,
		ParentID:     "abcde",
	}
}

func statuses(q sq.Queue) []sq.Status {
	out := make([]sq.Status, 0, len(q))
	for _, item := range q {
		out = append(out, item.Status)
	}
	return out
}
