// Copyright ©2026 The Compflow Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package compflow

// Variable is a named value with a default that fixes its shape and
// element type. A Variable carries no value at evaluation time, only a
// layout descriptor: two variables are equal iff their names match.
type Variable struct {
	name    string
	shape   []int
	deflt   []float64
}

// NewVariable declares a variable of the given shape with the given
// default, flattened in native (row-major) memory order. The length of
// deflt must equal the product of shape; for a scalar, shape is nil or
// empty and deflt has length 1.
func NewVariable(name string, shape []int, deflt []float64) Variable {
	size := sizeOf(shape)
	if len(deflt) != size {
		panic(&SizeMismatchError{Have: len(deflt), Want: size})
	}
	sh := append([]int(nil), shape...)
	d := append([]float64(nil), deflt...)
	return Variable{name: name, shape: sh, deflt: d}
}

// Scalar declares a zero-dimensional variable.
func Scalar(name string, deflt float64) Variable {
	return NewVariable(name, nil, []float64{deflt})
}

// Vector declares a 1-D variable of length n.
func Vector(name string, deflt []float64) Variable {
	return NewVariable(name, []int{len(deflt)}, deflt)
}

// Array declares an n-D rectangular variable with the given shape.
func Array(name string, shape []int, deflt []float64) Variable {
	return NewVariable(name, shape, deflt)
}

// Name returns the variable's name.
func (v Variable) Name() string { return v.name }

// Shape returns the variable's shape. A nil or empty shape denotes a
// scalar.
func (v Variable) Shape() []int { return v.shape }

// Size returns the flat width of the variable: the product of its shape
// dimensions (1 for a scalar).
func (v Variable) Size() int { return sizeOf(v.shape) }

// Default returns the variable's default value, flattened in declaration
// (native memory) order.
func (v Variable) Default() []float64 { return v.deflt }

// Equal reports whether v and o are the same variable, i.e. share a name.
func (v Variable) Equal(o Variable) bool { return v.name == o.name }

func sizeOf(shape []int) int {
	n := 1
	for _, d := range shape {
		n *= d
	}
	return n
}
