package queue_processor

// MaxBatchSizeBytes is the default ceiling on the cumulative size of items attempted in one pass.
const MaxBatchSizeBytes int64 = 100 * 1024 * 1024

// batchAccumulator tracks the bytes attempted during a single pass.
type batchAccumulator struct {
	ceiling  int64
	total    int64
	attempts int
}

func newBatchAccumulator(ceiling int64) *batchAccumulator {
	return &batchAccumulator{ceiling: ceiling}
}

// allows reports whether an item of the given size may be attempted.
//
// The first attempt of a pass is always allowed, even when the item alone is
// larger than the ceiling; otherwise such an item would stay pending forever.
// After that an item is allowed only if the total stays within the ceiling.
func (b *batchAccumulator) allows(size int64) bool {
	if b.attempts == 0 {
		return true
	}
	return size <= b.ceiling-b.total
}

// add counts an attempted item, whatever the outcome of its transfer.
func (b *batchAccumulator) add(size int64) {
	b.total += size
	b.attempts++
}
