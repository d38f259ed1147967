// Copyright ©2026 The Compflow Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package compflow

// View is a shaped reference into a flat vector: mutating a View writes
// through to the backing vector. For a scalar variable the view is a
// one-element slice.
type View struct {
	shape []int
	data  []float64
}

// NewView wraps data (a slice of length equal to the product of shape) as
// a shaped view. It does not copy data.
func NewView(shape []int, data []float64) View {
	if n := sizeOf(shape); n != len(data) {
		panic(&SizeMismatchError{Have: len(data), Want: n})
	}
	return View{shape: shape, data: data}
}

// Shape returns the view's shape.
func (v View) Shape() []int { return v.shape }

// Len returns the view's flat length.
func (v View) Len() int { return len(v.data) }

// Flat returns the view's backing slice in native memory order.
// Mutating the returned slice mutates the underlying flat vector.
func (v View) Flat() []float64 { return v.data }

// At returns the element at the given multi-index, in native memory
// order. For a scalar view idx must be empty.
func (v View) At(idx ...int) float64 { return v.data[flatIndex(v.shape, idx)] }

// Set assigns the element at the given multi-index.
func (v View) Set(val float64, idx ...int) { v.data[flatIndex(v.shape, idx)] = val }

func flatIndex(shape []int, idx []int) int {
	flat := 0
	for d := 0; d < len(shape); d++ {
		flat = flat*shape[d] + idx[d]
	}
	return flat
}
