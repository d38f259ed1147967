// Copyright ©2026 The Compflow Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package deriv

import (
	"math"

	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/mat"
)

// machine epsilon for float64, from which the step defaults follow:
// forward differences use √εₘ, central differences εₘ^(1/3).
const epsMach = 2.220446049250313e-16

var defaultForwardStep = math.Sqrt(epsMach)
var defaultCentralStep = math.Cbrt(epsMach)

// FiniteDifference approximates a Jacobian using a gonum/diff/fd stencil:
// ForwardFD uses fd.Forward (one-sided), CentralFD uses fd.Central. The fd
// package itself only exposes scalar-valued Derivative/Gradient, so this
// type drives the stencil over a vector-valued primal one input column at
// a time, reusing the primal's value at the origin when the stencil
// samples it (mirroring fd.Settings.OriginKnown).
type FiniteDifference struct {
	unsupported
	F       Primal
	Formula fd.Formula
	Step    float64
	nx, ny  int
}

// NewForwardFD constructs a one-sided forward-difference provider for a
// primal of the given input/output widths.
func NewForwardFD(nx, ny int, f Primal) *FiniteDifference {
	return &FiniteDifference{F: f, Formula: fd.Forward, Step: defaultForwardStep, nx: nx, ny: ny}
}

// NewCentralFD constructs a centered-difference provider.
func NewCentralFD(nx, ny int, f Primal) *FiniteDifference {
	return &FiniteDifference{F: f, Formula: fd.Central, Step: defaultCentralStep, nx: nx, ny: ny}
}

// WithStep returns a copy of p using the given step size in place of the
// variant's default.
func (p *FiniteDifference) WithStep(step float64) *FiniteDifference {
	q := *p
	q.Step = step
	return &q
}

func (p *FiniteDifference) Outputs(x []float64) ([]float64, error) {
	if p.F == nil {
		return nil, ErrProviderUnavailable
	}
	return p.F(x), nil
}

func (p *FiniteDifference) Jacobian(x []float64) (*mat.Dense, error) {
	if p.F == nil {
		return nil, ErrProviderUnavailable
	}
	var origin []float64
	if p.stencilHasOrigin() {
		origin = p.F(x)
	}
	J := mat.NewDense(p.ny, p.nx, nil)
	xp := make([]float64, p.nx)
	scale := 1 / math.Pow(p.Step, float64(p.Formula.Derivative))
	for j := 0; j < p.nx; j++ {
		col := make([]float64, p.ny)
		for _, pt := range p.Formula.Stencil {
			var fx []float64
			if pt.Loc == 0 {
				fx = origin
			} else {
				copy(xp, x)
				xp[j] += pt.Loc * p.Step
				fx = p.F(xp)
			}
			for i := 0; i < p.ny; i++ {
				col[i] += pt.Coeff * fx[i]
			}
		}
		for i := 0; i < p.ny; i++ {
			J.Set(i, j, col[i]*scale)
		}
	}
	return J, nil
}

func (p *FiniteDifference) OutputsAndJacobian(x []float64) ([]float64, *mat.Dense, error) {
	return sequential(p, x)
}

func (p *FiniteDifference) stencilHasOrigin() bool {
	for _, pt := range p.Formula.Stencil {
		if pt.Loc == 0 {
			return true
		}
	}
	return false
}
