package resilience

import "sync"

// BatchFailure is one failed item within a batch.
type BatchFailure struct {
	Item string
	Err  error
}

// BatchSummary reports partial-failure statistics for a batch.
type BatchSummary struct {
	Total       int
	Successful  int
	Failed      int
	SuccessRate float64
	Failures    []BatchFailure
}

// BatchAggregator accumulates per-item outcomes across a batch without
// aborting on the first failure. Safe for concurrent use.
type BatchAggregator struct {
	mu         sync.Mutex
	total      int
	successful int
	failures   []BatchFailure
}

// NewBatchAggregator creates an empty aggregator.
func NewBatchAggregator() *BatchAggregator {
	return &BatchAggregator{}
}

// Record notes the outcome for one item; a nil err counts as success.
func (b *BatchAggregator) Record(item string, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.total++
	if err == nil {
		b.successful++
		return
	}
	b.failures = append(b.failures, BatchFailure{Item: item, Err: err})
}

// Summary snapshots the aggregated outcomes.
func (b *BatchAggregator) Summary() BatchSummary {
	b.mu.Lock()
	defer b.mu.Unlock()

	failed := len(b.failures)
	rate := 0.0
	if b.total > 0 {
		rate = float64(b.successful) / float64(b.total)
	}

	failures := make([]BatchFailure, len(b.failures))
	copy(failures, b.failures)

	return BatchSummary{
		Total:       b.total,
		Successful:  b.successful,
		Failed:      failed,
		SuccessRate: rate,
		Failures:    failures,
	}
}
