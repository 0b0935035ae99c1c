package sync_queue

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// FileError reports a failed operation on the queue file.
type FileError struct {
	Op   string
	Path string
	Err  error
}

func (e *FileError) Error() string {
	return fmt.Sprintf("queue file %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *FileError) Unwrap() error {
	return e.Err
}

// QueueFile stores a queue snapshot as a JSON file.
type QueueFile struct {
	path string
}

// NewQueueFile creates a QueueFile for the given path.
// Returns an error if the path cannot name a regular file.
func NewQueueFile(path string) (*QueueFile, error) {
	if path == "" {
		return nil, fmt.Errorf("filename cannot be empty")
	}
	if path == "." || path == ".." || path[len(path)-1] == '/' {
		return nil, fmt.Errorf("invalid filename: %s", path)
	}
	return &QueueFile{path: path}, nil
}

// Path returns the file path of the queue.
func (f *QueueFile) Path() string {
	return f.path
}

// Load reads the queue. A missing file is an empty queue.
func (f *QueueFile) Load() (Queue, error) {
	file, err := os.Open(f.path)
	if os.IsNotExist(err) {
		return Queue{}, nil
	}
	if err != nil {
		return nil, &FileError{Op: "open", Path: f.path, Err: err}
	}
	defer file.Close()

	queue, err := readQueue(file)
	if err != nil {
		return nil, &FileError{Op: "read", Path: f.path, Err: err}
	}
	return queue, nil
}

// Save replaces the queue file with the given snapshot.
// The data is synced to disk and renamed over the old file, so a crash leaves
// either the previous or the new snapshot, never a partial one.
func (f *QueueFile) Save(ctx context.Context, queue Queue) error {
	if err := ctx.Err(); err != nil {
		return &FileError{Op: "save", Path: f.path, Err: err}
	}

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return &FileError{Op: "mkdir", Path: dir, Err: err}
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(f.path)+".*.tmp")
	if err != nil {
		return &FileError{Op: "create", Path: f.path, Err: err}
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			tmp.Close()
			os.Remove(tmpName)
		}
	}()

	if err := writeQueue(tmp, queue); err != nil {
		return &FileError{Op: "write", Path: tmpName, Err: err}
	}
	if err := tmp.Sync(); err != nil {
		return &FileError{Op: "sync", Path: tmpName, Err: err}
	}
	if err := tmp.Close(); err != nil {
		return &FileError{Op: "close", Path: tmpName, Err: err}
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		return &FileError{Op: "rename", Path: f.path, Err: err}
	}
	committed = true
	return nil
}
