// Copyright ©2026 The Compflow Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package compflow

// Range is a contiguous index range [Offset, Offset+Size) inside a flat
// vector.
type Range struct {
	Offset int
	Size   int
}

// VarLayout enumerates the contiguous ranges of an ordered tuple of
// variables inside a flat vector. Layouts are computed once at
// construction and never mutated; layout order equals declaration order,
// never alphabetized or otherwise reordered.
type VarLayout struct {
	vars   []Variable
	ranges []Range
	width  int
}

// NewVarLayout computes the layout for vars, in declaration order.
func NewVarLayout(vars []Variable) VarLayout {
	ranges := make([]Range, len(vars))
	offset := 0
	for i, v := range vars {
		size := v.Size()
		ranges[i] = Range{Offset: offset, Size: size}
		offset += size
	}
	return VarLayout{vars: append([]Variable(nil), vars...), ranges: ranges, width: offset}
}

// Width returns the total flat width: the sum of every variable's size.
func (l VarLayout) Width() int { return l.width }

// Vars returns the layout's variable tuple, in declaration order.
func (l VarLayout) Vars() []Variable { return l.vars }

// Range returns the flat range occupied by the i-th variable.
func (l VarLayout) Range(i int) Range { return l.ranges[i] }

// RangeOf returns the flat range of the named variable and whether it was
// found.
func (l VarLayout) RangeOf(name string) (Range, bool) {
	for i, v := range l.vars {
		if v.name == name {
			return l.ranges[i], true
		}
	}
	return Range{}, false
}

// IndexOf returns the position of the named variable within the layout's
// tuple, or -1 if absent.
func (l VarLayout) IndexOf(name string) int {
	for i, v := range l.vars {
		if v.name == name {
			return i
		}
	}
	return -1
}
