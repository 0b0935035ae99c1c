package queue_processor

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPassStats(t *testing.T) {
	t.Run("String", func(t *testing.T) {
		s := PassStats{Attempted: 3, NewlySynced: 2, Errored: 1, Skipped: 4, Deferred: 5, BytesAttempted: 600, MetadataErrs: 1}
		assert.Equal(t, "attempted=3, newly_synced=2, errored=1, skipped=4, deferred=5, bytes=600, metadata_errors=1", s.String())
		assert.Equal(t, 2, s.TotalErrs())
	})

	t.Run("add sums counters and keeps the latest queue view", func(t *testing.T) {
		total := PassStats{Attempted: 2, NewlySynced: 2, BytesAttempted: 200, Deferred: 3, Skipped: 1}
		total.add(PassStats{Attempted: 1, Errored: 1, BytesAttempted: 50, Skipped: 3})

		assert.Equal(t, PassStats{Attempted: 3, NewlySynced: 2, Errored: 1, BytesAttempted: 250, Skipped: 3}, total)
	})
}

func TestFormatLogMessage(t *testing.T) {
	assert.Equal(t, "msg", formatLogMessage("msg"))
	assert.Equal(t, "msg a=1 b=two", formatLogMessage("msg", "a", 1, "b", "two"))
	assert.Equal(t, "msg a=1", formatLogMessage("msg", "a", 1, "dangling"))
}
