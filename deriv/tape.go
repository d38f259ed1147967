// Copyright ©2026 The Compflow Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package deriv

import "math"

// Tape records a scalar computation as it runs so that a reverse sweep
// can later accumulate adjoints through it.
type Tape struct {
	nodes []*Node
}

// Node is one scalar value recorded on a Tape: its value, its
// accumulated adjoint (set during the reverse sweep), and the closure
// that propagates that adjoint to its operands.
type Node struct {
	value    float64
	grad     float64
	backward func(grad float64)
}

// Value returns the node's recorded value, for primals that branch on
// intermediate results.
func (n *Node) Value() float64 { return n.value }

// Leaf records an independent input variable on the tape.
func (t *Tape) Leaf(v float64) *Node {
	n := &Node{value: v}
	t.nodes = append(t.nodes, n)
	return n
}

func (t *Tape) push(v float64, backward func(grad float64)) *Node {
	n := &Node{value: v, backward: backward}
	t.nodes = append(t.nodes, n)
	return n
}

// Add returns a+b.
func (t *Tape) Add(a, b *Node) *Node {
	return t.push(a.value+b.value, func(g float64) {
		a.grad += g
		b.grad += g
	})
}

// Sub returns a-b.
func (t *Tape) Sub(a, b *Node) *Node {
	return t.push(a.value-b.value, func(g float64) {
		a.grad += g
		b.grad -= g
	})
}

// Mul returns a*b.
func (t *Tape) Mul(a, b *Node) *Node {
	return t.push(a.value*b.value, func(g float64) {
		a.grad += g * b.value
		b.grad += g * a.value
	})
}

// Div returns a/b.
func (t *Tape) Div(a, b *Node) *Node {
	return t.push(a.value/b.value, func(g float64) {
		a.grad += g / b.value
		b.grad -= g * a.value / (b.value * b.value)
	})
}

// Const records a constant, a leaf with no upstream dependency.
func (t *Tape) Const(v float64) *Node {
	return t.push(v, nil)
}

// Neg returns -a.
func (t *Tape) Neg(a *Node) *Node {
	return t.push(-a.value, func(g float64) { a.grad -= g })
}

// Sin returns sin(a).
func (t *Tape) Sin(a *Node) *Node {
	return t.push(math.Sin(a.value), func(g float64) { a.grad += g * math.Cos(a.value) })
}

// Cos returns cos(a).
func (t *Tape) Cos(a *Node) *Node {
	return t.push(math.Cos(a.value), func(g float64) { a.grad -= g * math.Sin(a.value) })
}

// Exp returns e**a.
func (t *Tape) Exp(a *Node) *Node {
	v := math.Exp(a.value)
	return t.push(v, func(g float64) { a.grad += g * v })
}

// Log returns the natural logarithm of a.
func (t *Tape) Log(a *Node) *Node {
	return t.push(math.Log(a.value), func(g float64) { a.grad += g / a.value })
}

// Sqrt returns the square root of a.
func (t *Tape) Sqrt(a *Node) *Node {
	v := math.Sqrt(a.value)
	return t.push(v, func(g float64) { a.grad += g / (2 * v) })
}

// Pow returns a**p for a constant real exponent p.
func (t *Tape) Pow(a *Node, p float64) *Node {
	v := math.Pow(a.value, p)
	return t.push(v, func(g float64) { a.grad += g * p * math.Pow(a.value, p-1) })
}

// backwardFrom zeroes every recorded adjoint, seeds root's adjoint to 1,
// and sweeps the tape in reverse declaration order (the only valid
// topological order for an eagerly-recorded tape: every node's operands
// were recorded before it).
func (t *Tape) backwardFrom(root *Node) {
	for _, n := range t.nodes {
		n.grad = 0
	}
	root.grad = 1
	for i := len(t.nodes) - 1; i >= 0; i-- {
		n := t.nodes[i]
		if n.backward != nil && n.grad != 0 {
			n.backward(n.grad)
		}
	}
}
