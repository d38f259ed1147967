// Copyright ©2026 The Compflow Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package deriv

import "gonum.org/v1/gonum/mat"

// ComplexPrimal is a user-supplied output-mapping function written over
// complex128, required by ComplexStep.
type ComplexPrimal func(x []complex128) []complex128

// ComplexStep approximates a Jacobian by the complex-step method,
// J[i,j] = Im(f(x + i*h*e_j)) / h. There is no general-purpose complex-step
// package among this module's dependencies, so the perturbation and
// division are done directly; the default step is 1e-20, far below √εₘ,
// which the method tolerates because it involves no subtractive
// cancellation.
type ComplexStep struct {
	unsupported
	F      ComplexPrimal
	Step   float64
	nx, ny int
}

// NewComplexFD constructs a complex-step provider for a primal of the
// given input/output widths.
func NewComplexFD(nx, ny int, f ComplexPrimal) *ComplexStep {
	return &ComplexStep{F: f, Step: 1e-20, nx: nx, ny: ny}
}

// WithStep returns a copy of p using the given step size.
func (p *ComplexStep) WithStep(step float64) *ComplexStep {
	q := *p
	q.Step = step
	return &q
}

func (p *ComplexStep) Outputs(x []float64) (out []float64, err error) {
	if p.F == nil {
		return nil, ErrProviderUnavailable
	}
	defer recoverAsUnavailable(&err)
	cx := make([]complex128, len(x))
	for i, v := range x {
		cx[i] = complex(v, 0)
	}
	cy := p.F(cx)
	out = make([]float64, len(cy))
	for i, v := range cy {
		out[i] = real(v)
	}
	return out, nil
}

func (p *ComplexStep) Jacobian(x []float64) (J *mat.Dense, err error) {
	if p.F == nil {
		return nil, ErrProviderUnavailable
	}
	defer recoverAsUnavailable(&err)
	cx := make([]complex128, len(x))
	for i, v := range x {
		cx[i] = complex(v, 0)
	}
	J = mat.NewDense(p.ny, p.nx, nil)
	for j := 0; j < p.nx; j++ {
		orig := cx[j]
		cx[j] = complex(real(orig), p.Step)
		cy := p.F(cx)
		for i := 0; i < p.ny; i++ {
			J.Set(i, j, imag(cy[i])/p.Step)
		}
		cx[j] = orig
	}
	return J, nil
}

func (p *ComplexStep) OutputsAndJacobian(x []float64) ([]float64, *mat.Dense, error) {
	return sequential(p, x)
}

// recoverAsUnavailable promotes a panic raised by a primal that cannot
// actually accept complex inputs (e.g. a type assertion or a branch that
// assumes a real argument) into ErrProviderUnavailable.
func recoverAsUnavailable(err *error) {
	if r := recover(); r != nil {
		*err = ErrProviderUnavailable
	}
}
