package sync_queue

import (
	"fmt"
	"time"
)

// Status represents the state of an Item (enum-like string type).
type Status string

const (
	StatusPending     Status = "pending"
	StatusNewlySynced Status = "newly-synced"
	StatusErrored     Status = "errored"
	// StatusSynced is written by the promotion step after a pass, never by the processor.
	StatusSynced Status = "synced"
)

// IsTerminal reports whether the processor will leave an item with this status alone.
func (s Status) IsTerminal() bool {
	return s != StatusPending
}

// Item holds one unit of content awaiting or having completed transfer.
type Item struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	AbsolutePath string     `json:"absolutePath"`
	SizeInBytes  int64      `json:"sizeInBytes"`
	LastModified *time.Time `json:"lastModifiedDate,omitempty"`
	ContentHash  string     `json:"contentHash,omitempty"` // used by change detection only
	Status       Status     `json:"status"`
	ErrorMessage string     `json:"errorMessage,omitempty"`
	ParentID     string     `json:"parentId,omitempty"`
	ShouldIndex  bool       `json:"shouldIndex"`
}

// MarkNewlySynced sets the status to newly-synced and clears any error message.
func (i *Item) MarkNewlySynced() {
	i.Status = StatusNewlySynced
	i.ErrorMessage = ""
}

// MarkErrored sets the status to errored with the given message.
// An empty message is replaced so the item still carries a diagnostic.
func (i *Item) MarkErrored(msg string) {
	if msg == "" {
		msg = "unknown error"
	}
	i.Status = StatusErrored
	i.ErrorMessage = msg
}

// SizeMismatchError is returned when a source file no longer has the size recorded on its item.
type SizeMismatchError struct {
	Path     string
	Expected int64
	Actual   int64
}

func (e *SizeMismatchError) Error() string {
	return fmt.Sprintf("size of %s changed: queued %d bytes, found %d bytes", e.Path, e.Expected, e.Actual)
}

// CheckSize returns a *SizeMismatchError when actual differs from the queued size.
func (i Item) CheckSize(actual int64) error {
	if actual != i.SizeInBytes {
		return &SizeMismatchError{Path: i.AbsolutePath, Expected: i.SizeInBytes, Actual: actual}
	}
	return nil
}
