// Package batch partitions ordered input into contiguous chunks and splices
// per-chunk results back into the original order.
package batch

import (
	"fmt"

	"github.com/soundprediction/embedkit/pkg/types"
)

// Batch is a contiguous slice of the input together with the index of its
// first item in the original sequence.
type Batch[T any] struct {
	Offset int
	Items  []T
}

// Len returns the number of items in the batch.
func (b Batch[T]) Len() int {
	return len(b.Items)
}

// End returns the index one past the batch's last item.
func (b Batch[T]) End() int {
	return b.Offset + len(b.Items)
}

// Split partitions items into consecutive batches of at most size items. The
// final batch may be shorter. An empty input yields no batches. The batches
// share memory with items.
func Split[T any](items []T, size int) ([]Batch[T], error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: batch size must be positive, got %d", types.ErrInvalidConfiguration, size)
	}

	batches := make([]Batch[T], 0, (len(items)+size-1)/size)
	for start := 0; start < len(items); start += size {
		end := start + size
		if end > len(items) {
			end = len(items)
		}
		batches = append(batches, Batch[T]{Offset: start, Items: items[start:end:end]})
	}
	return batches, nil
}

// Flatten places results[i] at the offsets covered by batches[i] and returns
// the combined sequence. Each result must have exactly one element per item
// of its batch.
func Flatten[T, R any](batches []Batch[T], results [][]R) ([]R, error) {
	if len(results) != len(batches) {
		return nil, fmt.Errorf("result count mismatch: got %d batches of results, want %d", len(results), len(batches))
	}

	total := 0
	for _, b := range batches {
		if b.End() > total {
			total = b.End()
		}
	}

	out := make([]R, total)
	for i, b := range batches {
		if len(results[i]) != b.Len() {
			return nil, fmt.Errorf("batch %d at offset %d: got %d results, want %d", i, b.Offset, len(results[i]), b.Len())
		}
		copy(out[b.Offset:b.End()], results[i])
	}
	return out, nil
}
