// Copyright ©2026 The Compflow Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package compflow

// Combine allocates a flat vector of width Σ sizes(vars) and writes each
// variable's default into its slice, in declaration order, honoring each
// variable's native memory order.
func Combine(vars []Variable) []float64 {
	l := NewVarLayout(vars)
	v := make([]float64, l.Width())
	for i, vr := range vars {
		r := l.Range(i)
		copy(v[r.Offset:r.Offset+r.Size], vr.Default())
	}
	return v
}

// CombineInto is Combine into a caller-provided buffer. It fails with a
// *SizeMismatchError if len(dst) is smaller than the declared total
// width; dst may be larger, in which case only its prefix is written.
func CombineInto(dst []float64, vars []Variable) error {
	l := NewVarLayout(vars)
	if len(dst) < l.Width() {
		return &SizeMismatchError{Have: len(dst), Want: l.Width()}
	}
	for i, vr := range vars {
		r := l.Range(i)
		copy(dst[r.Offset:r.Offset+r.Size], vr.Default())
	}
	return nil
}

// Separate produces per-variable shaped views into v, in declaration
// order. Mutating a view writes through to v. It panics if len(v) is
// smaller than the declared total width.
func Separate(vars []Variable, v []float64) []View {
	l := NewVarLayout(vars)
	if len(v) < l.Width() {
		panic(&SizeMismatchError{Have: len(v), Want: l.Width()})
	}
	views := make([]View, len(vars))
	for i, vr := range vars {
		r := l.Range(i)
		views[i] = NewView(vr.Shape(), v[r.Offset:r.Offset+r.Size])
	}
	return views
}

// SeparateInto copies, rather than views, the contents of v into
// caller-provided shaped buffers dst, in declaration order. Each dst[i]
// must already have length equal to vars[i].Size().
func SeparateInto(dst [][]float64, vars []Variable, v []float64) error {
	l := NewVarLayout(vars)
	if len(v) < l.Width() {
		return &SizeMismatchError{Have: len(v), Want: l.Width()}
	}
	if len(dst) != len(vars) {
		return &SizeMismatchError{Have: len(dst), Want: len(vars)}
	}
	for i, vr := range vars {
		r := l.Range(i)
		if len(dst[i]) != vr.Size() {
			return &SizeMismatchError{Have: len(dst[i]), Want: vr.Size()}
		}
		copy(dst[i], v[r.Offset:r.Offset+r.Size])
	}
	return nil
}
