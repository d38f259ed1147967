// Copyright ©2026 The Compflow Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package deriv

import "gonum.org/v1/gonum/mat"

// TapePrimal is a user-supplied output-mapping function written against a
// Tape: it receives one Node per input (in declaration order) and must
// return one Node per output.
type TapePrimal func(t *Tape, x []*Node) []*Node

// ReverseAD computes Jacobians with a tape sweep over the m outputs: one
// forward recording plus one backward sweep per output row, each sweep
// recovering that output's full gradient with respect to every input in a
// single pass.
type ReverseAD struct {
	unsupported
	F      TapePrimal
	nx, ny int
}

// NewReverseAD constructs a reverse-mode AD provider.
func NewReverseAD(nx, ny int, f TapePrimal) *ReverseAD {
	return &ReverseAD{F: f, nx: nx, ny: ny}
}

func (p *ReverseAD) record(x []float64) (*Tape, []*Node, []*Node) {
	t := &Tape{}
	leaves := make([]*Node, p.nx)
	for i, v := range x {
		leaves[i] = t.Leaf(v)
	}
	outs := p.F(t, leaves)
	return t, leaves, outs
}

func (p *ReverseAD) Outputs(x []float64) ([]float64, error) {
	if p.F == nil {
		return nil, ErrProviderUnavailable
	}
	_, _, outs := p.record(x)
	y := make([]float64, len(outs))
	for i, n := range outs {
		y[i] = n.value
	}
	return y, nil
}

func (p *ReverseAD) Jacobian(x []float64) (*mat.Dense, error) {
	if p.F == nil {
		return nil, ErrProviderUnavailable
	}
	t, leaves, outs := p.record(x)
	J := mat.NewDense(p.ny, p.nx, nil)
	for i := range outs {
		t.backwardFrom(outs[i])
		for j := 0; j < p.nx; j++ {
			J.Set(i, j, leaves[j].grad)
		}
	}
	return J, nil
}

func (p *ReverseAD) OutputsAndJacobian(x []float64) ([]float64, *mat.Dense, error) {
	if p.F == nil {
		return nil, nil, ErrProviderUnavailable
	}
	t, leaves, outs := p.record(x)
	y := make([]float64, len(outs))
	for i, n := range outs {
		y[i] = n.value
	}
	J := mat.NewDense(p.ny, p.nx, nil)
	for i := range outs {
		t.backwardFrom(outs[i])
		for j := 0; j < p.nx; j++ {
			J.Set(i, j, leaves[j].grad)
		}
	}
	return y, J, nil
}
