// Copyright ©2026 The Compflow Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package solve converts between implicit and explicit components: an
// implicit component is solved in its output by damped Newton iteration
// and exposed as an explicit component whose Jacobian is recovered by
// the implicit function theorem; an explicit component is wrapped as an
// implicit one via component.Lift.
package solve // import "github.com/compflow/compflow/solve"

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/compflow/compflow"
)

// implicitLike is the subset of component.ImplicitComponent (and
// system.ImplicitSystem) that Newton needs: a residual with nr == ny,
// and both Jacobian blocks.
type implicitLike interface {
	NX() int
	NY() int
	InVars() []compflow.Variable
	OutVars() []compflow.Variable
	Residuals(x, y []float64) ([]float64, error)
	ResidualInputJacobian(x, y []float64) (*mat.Dense, error)
	ResidualOutputJacobian(x, y []float64) (*mat.Dense, error)
	InvalidateAll()
}

// Newton configures the damped Newton iteration used to drive an
// implicit component's residual to zero in its output. A zero-valued
// Newton takes every default.
type Newton struct {
	AbsTol  float64
	RelTol  float64
	MaxIter int
	// Damping is the minimum backtracking step size; once the step has
	// shrunk to this floor without decreasing ‖r‖, the solve fails with
	// *SolveDivergedError.
	Damping float64
}

func (n Newton) withDefaults() Newton {
	if n.AbsTol == 0 {
		n.AbsTol = 1e-10
	}
	if n.RelTol == 0 {
		n.RelTol = 1e-10
	}
	if n.MaxIter == 0 {
		n.MaxIter = 50
	}
	if n.Damping == 0 {
		n.Damping = 1e-4
	}
	return n
}

func infNorm(v []float64) float64 {
	m := 0.0
	for _, x := range v {
		if a := math.Abs(x); a > m {
			m = a
		}
	}
	return m
}

// solve drives ic's residual to zero in y, starting from y0, by damped
// Newton iteration using ∂r/∂y as the Jacobian. It
// returns the converged y together with the ∂r/∂y and ∂r/∂x blocks at
// that point, so the caller can recover ∂y/∂x via the implicit function
// theorem without a redundant Jacobian evaluation.
func (n Newton) solve(ic implicitLike, x, y0 []float64) (y []float64, Jy, Jx *mat.Dense, err error) {
	n = n.withDefaults()
	y = append([]float64(nil), y0...)

	for iter := 0; iter < n.MaxIter; iter++ {
		r, err := ic.Residuals(x, y)
		if err != nil {
			return nil, nil, nil, err
		}
		normR := infNorm(r)
		if normR <= n.AbsTol+n.RelTol*infNorm(y) {
			Jy, err := ic.ResidualOutputJacobian(x, y)
			if err != nil {
				return nil, nil, nil, err
			}
			Jx, err := ic.ResidualInputJacobian(x, y)
			if err != nil {
				return nil, nil, nil, err
			}
			return y, Jy, Jx, nil
		}

		Jy, err := ic.ResidualOutputJacobian(x, y)
		if err != nil {
			return nil, nil, nil, err
		}
		neg := make([]float64, len(r))
		for i, ri := range r {
			neg[i] = -ri
		}
		rhs := mat.NewDense(len(r), 1, neg)
		dy := mat.NewDense(len(y), 1, nil)
		if serr := dy.Solve(Jy, rhs); serr != nil {
			return nil, nil, nil, &SingularJacobianError{Cond: serr}
		}

		step := 1.0
		trial := make([]float64, len(y))
		var normTrial float64
		for {
			for i := range y {
				trial[i] = y[i] + step*dy.At(i, 0)
			}
			rTrial, err := ic.Residuals(x, trial)
			if err != nil {
				return nil, nil, nil, err
			}
			normTrial = infNorm(rTrial)
			if normTrial < normR {
				break
			}
			if step <= n.Damping {
				return nil, nil, nil, &SolveDivergedError{Iter: iter, ResidualNorm: normTrial}
			}
			step /= 2
		}
		copy(y, trial)
	}

	r, _ := ic.Residuals(x, y)
	return nil, nil, nil, &SolveDivergedError{Iter: n.MaxIter, ResidualNorm: infNorm(r)}
}
