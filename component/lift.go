// Copyright ©2026 The Compflow Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package component

import (
	"gonum.org/v1/gonum/mat"

	"github.com/compflow/compflow"
	"github.com/compflow/compflow/deriv"
)

// Lift converts an explicit component into an implicit one via the
// residual r = y − f(x), so that ∂r/∂x = −J_f and ∂r/∂y = I. The
// lifted component's out_vars are ec's out_vars followed by its out_mut,
// in that order, matching the explicit component's own flat output
// layout.
func Lift(ec *ExplicitComponent) *ImplicitComponent {
	outVars := make([]compflow.Variable, 0, len(ec.OutVars())+len(ec.OutMut()))
	outVars = append(outVars, ec.OutVars()...)
	outVars = append(outVars, ec.OutMut()...)

	fn := func(x, y []compflow.View) []float64 {
		xFlat := make([]float64, ec.NX())
		for i, v := range x {
			copy(xFlat[offsetOf(ec.InVars(), i):], v.Flat())
		}
		yFlat := make([]float64, ec.NY())
		for i, v := range y {
			copy(yFlat[offsetOf(outVars, i):], v.Flat())
		}
		fx, err := ec.Outputs(xFlat)
		if err != nil {
			panic(err)
		}
		r := make([]float64, ec.NY())
		for i := range r {
			r[i] = yFlat[i] - fx[i]
		}
		return r
	}

	ic := NewImplicit(ec.InVars(), outVars, fn, &ImplicitConfig{
		YDeriv: identityProvider{n: ec.NY()},
		XDeriv: negatedJacobianProvider{ec: ec},
	})
	return ic
}

func offsetOf(vars []compflow.Variable, idx int) int {
	off := 0
	for i := 0; i < idx; i++ {
		off += vars[i].Size()
	}
	return off
}

// identityProvider answers ∂r/∂y = I for a lifted explicit component.
type identityProvider struct {
	n int
}

func (p identityProvider) Outputs(x []float64) ([]float64, error) {
	return nil, deriv.ErrProviderUnavailable
}

func (p identityProvider) Jacobian(x []float64) (*mat.Dense, error) {
	I := mat.NewDense(p.n, p.n, nil)
	for i := 0; i < p.n; i++ {
		I.Set(i, i, 1)
	}
	return I, nil
}

func (p identityProvider) OutputsAndJacobian(x []float64) ([]float64, *mat.Dense, error) {
	return nil, nil, deriv.ErrProviderUnavailable
}

// negatedJacobianProvider answers ∂r/∂x = −J_f for a lifted explicit
// component, reusing the wrapped component's own Jacobian provider.
type negatedJacobianProvider struct {
	ec *ExplicitComponent
}

func (p negatedJacobianProvider) Outputs(x []float64) ([]float64, error) {
	return nil, deriv.ErrProviderUnavailable
}

func (p negatedJacobianProvider) Jacobian(x []float64) (*mat.Dense, error) {
	J, err := p.ec.Jacobian(x)
	if err != nil {
		return nil, err
	}
	r, c := J.Dims()
	neg := mat.NewDense(r, c, nil)
	neg.Scale(-1, J)
	return neg, nil
}

func (p negatedJacobianProvider) OutputsAndJacobian(x []float64) ([]float64, *mat.Dense, error) {
	return nil, nil, deriv.ErrProviderUnavailable
}
