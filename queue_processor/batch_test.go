package queue_processor

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBatchAccumulator(t *testing.T) {
	t.Run("first attempt is always allowed", func(t *testing.T) {
		b := newBatchAccumulator(100)
		assert.True(t, b.allows(1_000_000))
		b.add(1_000_000)
		assert.False(t, b.allows(0), "nothing fits once the ceiling is exceeded")
	})

	t.Run("zero-size first item still uses the first attempt", func(t *testing.T) {
		b := newBatchAccumulator(100)
		b.add(0)
		assert.False(t, b.allows(101))
		assert.True(t, b.allows(100))
	})

	t.Run("total may reach but not exceed the ceiling", func(t *testing.T) {
		b := newBatchAccumulator(300)
		b.add(100)
		assert.True(t, b.allows(200))
		assert.False(t, b.allows(201))
		b.add(200)
		assert.Equal(t, int64(300), b.total)
		assert.Equal(t, 2, b.attempts)
		assert.False(t, b.allows(1))
	})

	t.Run("large sizes do not overflow", func(t *testing.T) {
		b := newBatchAccumulator(MaxBatchSizeBytes)
		b.add(100)
		assert.False(t, b.allows(1<<62))
	})
}
