package queue_processor

import "fmt"

// PassStats holds the statistics of one or more passes.
type PassStats struct {
	Attempted      int   // Number of items a transfer was attempted on
	NewlySynced    int   // Number of successful transfers
	Errored        int   // Number of failed transfers
	Skipped        int   // Number of non-pending items passed over
	Deferred       int   // Number of pending items left for a later pass
	BytesAttempted int64 // Sum of the sizes of attempted items
	MetadataErrs   int   // Number of failed metadata updates after a successful transfer
}

// String returns a string representation of the pass statistics.
func (s PassStats) String() string {
	return fmt.Sprintf("attempted=%d, newly_synced=%d, errored=%d, skipped=%d, deferred=%d, bytes=%d, metadata_errors=%d",
		s.Attempted, s.NewlySynced, s.Errored, s.Skipped, s.Deferred, s.BytesAttempted, s.MetadataErrs)
}

// TotalErrs returns the number of transfer and metadata errors.
func (s PassStats) TotalErrs() int {
	return s.Errored + s.MetadataErrs
}

// add accumulates the counters of a later pass. Skipped and Deferred describe
// the queue as last seen, so they are taken from the later pass.
func (s *PassStats) add(next PassStats) {
	s.Attempted += next.Attempted
	s.NewlySynced += next.NewlySynced
	s.Errored += next.Errored
	s.BytesAttempted += next.BytesAttempted
	s.MetadataErrs += next.MetadataErrs
	s.Skipped = next.Skipped
	s.Deferred = next.Deferred
}
