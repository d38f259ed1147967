// Copyright ©2026 The Compflow Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package deriv

import (
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/num/dual"
)

// DualPrimal is a user-supplied output-mapping function written generically
// over dual.Number, the twin gonum's own diff/autofd generates mechanically
// from a float64 primal. One sweep per input column seeds Emag=1 on that
// column and 0 elsewhere, recovering one Jacobian column per sweep.
type DualPrimal func(x []dual.Number) []dual.Number

// ForwardAD computes outputs and Jacobians using first-order dual numbers.
type ForwardAD struct {
	unsupported
	F      DualPrimal
	nx, ny int
}

// NewForwardAD constructs a forward-mode AD provider.
func NewForwardAD(nx, ny int, f DualPrimal) *ForwardAD {
	return &ForwardAD{F: f, nx: nx, ny: ny}
}

func (p *ForwardAD) Outputs(x []float64) ([]float64, error) {
	if p.F == nil {
		return nil, ErrProviderUnavailable
	}
	dx := make([]dual.Number, p.nx)
	for i, v := range x {
		dx[i] = dual.Number{Real: v}
	}
	dy := p.F(dx)
	y := make([]float64, len(dy))
	for i, v := range dy {
		y[i] = v.Real
	}
	return y, nil
}

func (p *ForwardAD) Jacobian(x []float64) (*mat.Dense, error) {
	if p.F == nil {
		return nil, ErrProviderUnavailable
	}
	J := mat.NewDense(p.ny, p.nx, nil)
	dx := make([]dual.Number, p.nx)
	for j := 0; j < p.nx; j++ {
		for i, v := range x {
			e := 0.0
			if i == j {
				e = 1
			}
			dx[i] = dual.Number{Real: v, Emag: e}
		}
		dy := p.F(dx)
		for i := 0; i < p.ny; i++ {
			J.Set(i, j, dy[i].Emag)
		}
	}
	return J, nil
}

func (p *ForwardAD) OutputsAndJacobian(x []float64) ([]float64, *mat.Dense, error) {
	if p.F == nil {
		return nil, nil, ErrProviderUnavailable
	}
	y := make([]float64, p.ny)
	J := mat.NewDense(p.ny, p.nx, nil)
	dx := make([]dual.Number, p.nx)
	for j := 0; j < p.nx; j++ {
		for i, v := range x {
			e := 0.0
			if i == j {
				e = 1
			}
			dx[i] = dual.Number{Real: v, Emag: e}
		}
		dy := p.F(dx)
		for i := 0; i < p.ny; i++ {
			if j == 0 {
				y[i] = dy[i].Real
			}
			J.Set(i, j, dy[i].Emag)
		}
	}
	return y, J, nil
}
