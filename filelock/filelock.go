// Package filelock provides a simple file-based mutual exclusion lock.
// It ensures that only one process can hold a lock for a given file at a time,
// even across multiple processes. The lock file records who holds it.
package filelock

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// ErrLockHeld is returned when attempting to acquire a lock that is already held.
var ErrLockHeld = errors.New("lock already held")

// LockInfo is written into the lock file by the holder.
type LockInfo struct {
	PID       int    `json:"pid"`
	Hostname  string `json:"hostname,omitempty"`
	Owner     string `json:"owner,omitempty"`
	Timestamp string `json:"timestamp"`
}

func lockFileName(path string) (string, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("failed to get absolute path: %w", err)
	}
	return absPath + ".lock", nil
}

// TryLock attempts to acquire a lock for the given file.
// Returns a function to release the lock, or an error if the lock could not be acquired.
func TryLock(path string) (func(), error) {
	return TryLockFor(path, "")
}

// TryLockFor is TryLock with an owner description recorded in the lock file.
func TryLockFor(path, owner string) (func(), error) {
	lockFile, err := lockFileName(path)
	if err != nil {
		return nil, err
	}

	// O_EXCL makes creation fail if another holder already created the file.
	f, err := os.OpenFile(lockFile, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		if os.IsExist(err) {
			return nil, ErrLockHeld
		}
		return nil, fmt.Errorf("failed to create lock file: %w", err)
	}

	hostname, _ := os.Hostname()
	info := LockInfo{
		PID:       os.Getpid(),
		Hostname:  hostname,
		Owner:     owner,
		Timestamp: time.Now().Format(time.RFC3339),
	}
	if err := json.NewEncoder(f).Encode(info); err != nil {
		f.Close()
		os.Remove(lockFile)
		return nil, fmt.Errorf("failed to write lock file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(lockFile)
		return nil, fmt.Errorf("failed to close lock file: %w", err)
	}

	unlock := func() {
		os.Remove(lockFile)
	}
	return unlock, nil
}

// ReadLockInfo returns the holder information of the lock for path.
func ReadLockInfo(path string) (*LockInfo, error) {
	lockFile, err := lockFileName(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(lockFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read lock file: %w", err)
	}
	var info LockInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("failed to parse lock file: %w", err)
	}
	return &info, nil
}
