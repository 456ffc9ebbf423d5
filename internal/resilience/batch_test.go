package resilience

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBatchAggregatorPartialFailure(t *testing.T) {
	b := NewBatchAggregator()

	b.Record("order-1", nil)
	b.Record("order-2", errors.New("submit failed"))
	b.Record("order-3", nil)
	b.Record("order-4", errors.New("timeout"))

	s := b.Summary()
	assert.Equal(t, 4, s.Total)
	assert.Equal(t, 2, s.Successful)
	assert.Equal(t, 2, s.Failed)
	assert.InDelta(t, 0.5, s.SuccessRate, 1e-9)

	items := []string{s.Failures[0].Item, s.Failures[1].Item}
	assert.ElementsMatch(t, []string{"order-2", "order-4"}, items)
}

func TestBatchAggregatorEmpty(t *testing.T) {
	s := NewBatchAggregator().Summary()
	assert.Equal(t, 0, s.Total)
	assert.Zero(t, s.SuccessRate)
	assert.Empty(t, s.Failures)
}

func TestBatchAggregatorConcurrent(t *testing.T) {
	b := NewBatchAggregator()
	var wg sync.WaitGroup

	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%4 == 0 {
				b.Record(fmt.Sprintf("item-%d", i), errors.New("failed"))
			} else {
				b.Record(fmt.Sprintf("item-%d", i), nil)
			}
		}(i)
	}
	wg.Wait()

	s := b.Summary()
	assert.Equal(t, 100, s.Total)
	assert.Equal(t, 75, s.Successful)
	assert.Equal(t, 25, s.Failed)
}
