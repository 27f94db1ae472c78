// Package weighted implements categorical sampling over a fixed set of
// weighted items.
package weighted

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

// Sampling errors.
var (
	ErrEmptyTable     = errors.New("weighted table has no items")
	ErrInvalidWeights = errors.New("invalid weights")
)

// Tolerance is the accepted deviation of a weight sum from 1.0.
const Tolerance = 1e-9

// Rand is the source of uniform draws in [0, 1).
type Rand interface {
	Float64() float64
}

// Table is a categorical distribution over items of type T.
// A Table is immutable and safe for concurrent reads.
type Table[T any] struct {
	items      []T
	cumulative []float64
}

// NewTable builds a table from parallel item and weight slices.
// Weights must be non-negative and sum to 1 within Tolerance.
func NewTable[T any](items []T, weights []float64) (*Table[T], error) {
	if len(items) == 0 {
		return nil, ErrEmptyTable
	}
	if len(items) != len(weights) {
		return nil, fmt.Errorf("%w: %d items, %d weights", ErrInvalidWeights, len(items), len(weights))
	}

	cumulative := make([]float64, len(weights))
	var sum float64
	for i, w := range weights {
		if w < 0 || math.IsNaN(w) {
			return nil, fmt.Errorf("%w: weight %d is %v", ErrInvalidWeights, i, w)
		}
		sum += w
		cumulative[i] = sum
	}
	if math.Abs(sum-1) > Tolerance {
		return nil, fmt.Errorf("%w: weights sum to %v", ErrInvalidWeights, sum)
	}

	return &Table[T]{
		items:      append([]T(nil), items...),
		cumulative: cumulative,
	}, nil
}

// Pick draws one item using a single uniform draw from r.
func (t *Table[T]) Pick(r Rand) T {
	u := r.Float64() * t.Sum()
	i := sort.Search(len(t.cumulative), func(i int) bool {
		return t.cumulative[i] > u
	})
	if i == len(t.items) {
		i = len(t.items) - 1
	}
	return t.items[i]
}

// Len returns the number of items.
func (t *Table[T]) Len() int {
	return len(t.items)
}

// Item returns the i-th item.
func (t *Table[T]) Item(i int) T {
	return t.items[i]
}

// Sum returns the total weight of the table.
func (t *Table[T]) Sum() float64 {
	return t.cumulative[len(t.cumulative)-1]
}
