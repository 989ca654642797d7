package domain

import "github.com/ctessum/sparse"

// Weights is either NoWeights (none were requested or found) or a concrete
// per-cell area/volume array. A defined array may still be degenerate (all
// zero); callers check that with AllZero.
type Weights struct {
	array *sparse.DenseArray
}

// NoWeights means no weight field was supplied.
var NoWeights = Weights{}

// NewWeights wraps a weight array.
func NewWeights(array *sparse.DenseArray) Weights {
	return Weights{array: array}
}

// Defined reports whether a weight array is present.
func (w Weights) Defined() bool {
	return w.array != nil
}

// Array returns the weight array, nil for NoWeights.
func (w Weights) Array() *sparse.DenseArray {
	return w.array
}

// Shape returns the weight array shape, nil for NoWeights.
func (w Weights) Shape() []int {
	if w.array == nil {
		return nil
	}
	return append([]int(nil), w.array.Shape...)
}

// AllZero reports whether every weight is zero. NoWeights is not all zero.
func (w Weights) AllZero() bool {
	if w.array == nil {
		return false
	}
	for _, v := range w.array.Elements {
		if v != 0 {
			return false
		}
	}
	return true
}
