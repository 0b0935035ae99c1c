// Package sync_queue defines the sync queue items processed by a pass and the
// JSON file used to keep the queue between passes.
package sync_queue

import (
	"errors"
	"fmt"
)

// Queue is an ordered list of items. Order is processing priority.
type Queue []Item

// ErrInvalidQueue is returned by Validate when the queue breaks one of its invariants.
var ErrInvalidQueue = errors.New("invalid sync queue")

// Clone returns a deep copy of the queue so the copy can be mutated freely.
func (q Queue) Clone() Queue {
	if q == nil {
		return nil
	}
	out := make(Queue, len(q))
	for i, item := range q {
		if item.LastModified != nil {
			t := *item.LastModified
			item.LastModified = &t
		}
		out[i] = item
	}
	return out
}

// Validate checks item ids are unique, sizes are non-negative and that an error
// message is present exactly when the item is errored.
func (q Queue) Validate() error {
	seen := make(map[string]bool, len(q))
	for idx, item := range q {
		if item.ID == "" {
			return fmt.Errorf("%w: item at index %d has no id", ErrInvalidQueue, idx)
		}
		if seen[item.ID] {
			return fmt.Errorf("%w: duplicate id %q", ErrInvalidQueue, item.ID)
		}
		seen[item.ID] = true
		if item.SizeInBytes < 0 {
			return fmt.Errorf("%w: item %q has negative size %d", ErrInvalidQueue, item.ID, item.SizeInBytes)
		}
		if (item.Status == StatusErrored) != (item.ErrorMessage != "") {
			return fmt.Errorf("%w: item %q has status %q and error message %q", ErrInvalidQueue, item.ID, item.Status, item.ErrorMessage)
		}
	}
	return nil
}

// CountByStatus returns the number of items in each status.
func (q Queue) CountByStatus() map[Status]int {
	counts := make(map[Status]int)
	for _, item := range q {
		counts[item.Status]++
	}
	return counts
}

// Pending returns the pending items in queue order.
func (q Queue) Pending() []Item {
	var pending []Item
	for _, item := range q {
		if item.Status == StatusPending {
			pending = append(pending, item)
		}
	}
	return pending
}

// PendingBytes returns the total size of the pending items.
func (q Queue) PendingBytes() int64 {
	var total int64
	for _, item := range q {
		if item.Status == StatusPending {
			total += item.SizeInBytes
		}
	}
	return total
}

// PromoteNewlySynced returns a copy of the queue where every newly-synced item
// is synced, except the items whose ids are listed in hold.
func PromoteNewlySynced(q Queue, hold ...string) Queue {
	held := make(map[string]bool, len(hold))
	for _, id := range hold {
		held[id] = true
	}
	out := q.Clone()
	for i := range out {
		if out[i].Status == StatusNewlySynced && !held[out[i].ID] {
			out[i].Status = StatusSynced
		}
	}
	return out
}

// DropSynced returns a copy of the queue without synced items.
func DropSynced(q Queue) Queue {
	out := make(Queue, 0, len(q))
	for _, item := range q.Clone() {
		if item.Status != StatusSynced {
			out = append(out, item)
		}
	}
	return out
}
