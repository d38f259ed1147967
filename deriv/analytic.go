// Copyright ©2026 The Compflow Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package deriv

import "gonum.org/v1/gonum/mat"

// JacobianFunc is a user-supplied analytic Jacobian routine.
type JacobianFunc func(x []float64) *mat.Dense

// CombinedFunc is a user-supplied routine computing outputs and Jacobian
// together in one pass.
type CombinedFunc func(x []float64) ([]float64, *mat.Dense)

// Analytic wraps user-supplied f, df and/or fdf routines. When a combined
// call is requested, Fdf is preferred over composing F and Df separately;
// when only one half of a call is requested, the single-purpose routine
// is preferred, with Fdf serving as fallback and the unused half
// discarded.
type Analytic struct {
	unsupported
	F   Primal
	Df  JacobianFunc
	Fdf CombinedFunc
}

// NewAnalytic constructs an Analytic provider. Any of f, df, fdf may be
// nil; at least one must be non-nil for the provider to answer any call.
func NewAnalytic(f Primal, df JacobianFunc, fdf CombinedFunc) *Analytic {
	return &Analytic{F: f, Df: df, Fdf: fdf}
}

func (a *Analytic) Outputs(x []float64) ([]float64, error) {
	switch {
	case a.F != nil:
		return a.F(x), nil
	case a.Fdf != nil:
		y, _ := a.Fdf(x)
		return y, nil
	default:
		return nil, ErrProviderUnavailable
	}
}

func (a *Analytic) Jacobian(x []float64) (*mat.Dense, error) {
	switch {
	case a.Df != nil:
		return a.Df(x), nil
	case a.Fdf != nil:
		_, J := a.Fdf(x)
		return J, nil
	default:
		return nil, ErrProviderUnavailable
	}
}

func (a *Analytic) OutputsAndJacobian(x []float64) ([]float64, *mat.Dense, error) {
	switch {
	case a.Fdf != nil:
		y, J := a.Fdf(x)
		return y, J, nil
	case a.F != nil && a.Df != nil:
		return sequential(a, x)
	default:
		return nil, nil, ErrProviderUnavailable
	}
}
