// Copyright ©2026 The Compflow Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package solve

import (
	"gonum.org/v1/gonum/mat"

	"github.com/compflow/compflow"
)

// Explicit wraps an implicit component as an explicit one: its outputs
// solve the implicit residual to zero by damped Newton iteration, and
// its Jacobian is recovered by the implicit function theorem,
// ∂y/∂x = −(∂r/∂y)⁻¹·∂r/∂x, reusing the converged Newton step's
// Jacobian blocks.
type Explicit struct {
	ic     implicitLike
	newton Newton

	nx, ny int

	xStar  []float64
	yStar  []float64 // also the Newton warm-start seed
	JStar  *mat.Dense
	yValid bool
	jValid bool
}

// ToExplicit converts an implicit component or system into an explicit
// one. newton configures the Newton iteration; a zero-valued Newton
// takes every default.
func ToExplicit(ic implicitLike, newton Newton) *Explicit {
	e := &Explicit{ic: ic, newton: newton, nx: ic.NX(), ny: ic.NY()}
	e.xStar = make([]float64, e.nx)
	e.yStar = compflow.Combine(ic.OutVars())
	e.JStar = mat.NewDense(e.ny, e.nx, nil)
	return e
}

// NX and NY return the wrapped component's flat input and output
// widths.
func (e *Explicit) NX() int { return e.nx }
func (e *Explicit) NY() int { return e.ny }

// InVars and OutVars return the wrapped component's declared variable
// tuples.
func (e *Explicit) InVars() []compflow.Variable  { return e.ic.InVars() }
func (e *Explicit) OutVars() []compflow.Variable { return e.ic.OutVars() }

// OutMut is always empty: a Newton-solved output has no in-place half.
func (e *Explicit) OutMut() []compflow.Variable { return nil }

func (e *Explicit) evalOutputs(x []float64) ([]float64, error) {
	y, _, _, err := e.newton.solve(e.ic, x, e.yStar)
	return y, err
}

func (e *Explicit) evalAll(x []float64) ([]float64, *mat.Dense, error) {
	y, Jy, Jx, err := e.newton.solve(e.ic, x, e.yStar)
	if err != nil {
		return nil, nil, err
	}
	r, c := Jx.Dims()
	negJx := mat.NewDense(r, c, nil)
	negJx.Scale(-1, Jx)
	J := mat.NewDense(e.ny, e.nx, nil)
	if serr := J.Solve(Jy, negJx); serr != nil {
		return nil, nil, &SingularJacobianError{Cond: serr}
	}
	return y, J, nil
}

func equalVec(a, b []float64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func (e *Explicit) sameAsCache(x []float64) bool { return equalVec(x, e.xStar) }

func (e *Explicit) adoptX(x []float64) {
	if !e.sameAsCache(x) {
		copy(e.xStar, x)
		e.yValid, e.jValid = false, false
	}
}

// Outputs allocates and returns a fresh output vector, solved by Newton
// iteration starting from the component's cached output.
func (e *Explicit) Outputs(x []float64) ([]float64, error) {
	return e.evalOutputs(x)
}

// OutputsInto writes the solved output into dst and updates the cache,
// including the Newton warm-start seed for subsequent calls.
func (e *Explicit) OutputsInto(dst, x []float64) error {
	y, err := e.evalOutputs(x)
	if err != nil {
		return err
	}
	copy(dst, y)
	e.adoptX(x)
	copy(e.yStar, y)
	e.yValid = true
	return nil
}

// OutputsCache evaluates into, and returns a reference to, the cache,
// skipping recomputation if x matches the cached input.
func (e *Explicit) OutputsCache(x []float64) ([]float64, error) {
	if e.sameAsCache(x) && e.yValid {
		return e.yStar, nil
	}
	return e.OutputsForce(x)
}

// OutputsForce recomputes unconditionally and updates the cache.
func (e *Explicit) OutputsForce(x []float64) ([]float64, error) {
	y, err := e.evalOutputs(x)
	if err != nil {
		return nil, err
	}
	e.adoptX(x)
	copy(e.yStar, y)
	e.yValid = true
	return e.yStar, nil
}

// CachedOutputs returns the currently cached output.
func (e *Explicit) CachedOutputs() []float64 { return e.yStar }

// Jacobian allocates and returns a fresh ∂y/∂x, recovered by the
// implicit function theorem at the Newton-converged point.
func (e *Explicit) Jacobian(x []float64) (*mat.Dense, error) {
	_, J, err := e.evalAll(x)
	return J, err
}

// JacobianInto writes the Jacobian into dst and updates the cache.
func (e *Explicit) JacobianInto(dst *mat.Dense, x []float64) error {
	y, J, err := e.evalAll(x)
	if err != nil {
		return err
	}
	dst.Copy(J)
	e.adoptX(x)
	copy(e.yStar, y)
	e.JStar.Copy(J)
	e.yValid, e.jValid = true, true
	return nil
}

// JacobianCache evaluates into, and returns a reference to, the cache.
func (e *Explicit) JacobianCache(x []float64) (*mat.Dense, error) {
	if e.sameAsCache(x) && e.jValid {
		return e.JStar, nil
	}
	return e.JacobianForce(x)
}

// JacobianForce recomputes unconditionally and updates the cache.
func (e *Explicit) JacobianForce(x []float64) (*mat.Dense, error) {
	y, J, err := e.evalAll(x)
	if err != nil {
		return nil, err
	}
	e.adoptX(x)
	copy(e.yStar, y)
	e.JStar.Copy(J)
	e.yValid, e.jValid = true, true
	return e.JStar, nil
}

// CachedJacobian returns the currently cached Jacobian.
func (e *Explicit) CachedJacobian() *mat.Dense { return e.JStar }

// OutputsAndJacobian allocates and returns both fresh results from a
// single Newton solve.
func (e *Explicit) OutputsAndJacobian(x []float64) ([]float64, *mat.Dense, error) {
	return e.evalAll(x)
}

// OutputsAndJacobianInto writes both results into the caller's buffers
// and updates the cache.
func (e *Explicit) OutputsAndJacobianInto(dstY []float64, dstJ *mat.Dense, x []float64) error {
	y, J, err := e.evalAll(x)
	if err != nil {
		return err
	}
	copy(dstY, y)
	dstJ.Copy(J)
	e.adoptX(x)
	copy(e.yStar, y)
	e.JStar.Copy(J)
	e.yValid, e.jValid = true, true
	return nil
}

// OutputsAndJacobianCache evaluates into, and returns references to, the
// cache, skipping recomputation if both are already current.
func (e *Explicit) OutputsAndJacobianCache(x []float64) ([]float64, *mat.Dense, error) {
	if e.sameAsCache(x) && e.yValid && e.jValid {
		return e.yStar, e.JStar, nil
	}
	return e.OutputsAndJacobianForce(x)
}

// OutputsAndJacobianForce recomputes both results unconditionally.
func (e *Explicit) OutputsAndJacobianForce(x []float64) ([]float64, *mat.Dense, error) {
	y, J, err := e.evalAll(x)
	if err != nil {
		return nil, nil, err
	}
	e.adoptX(x)
	copy(e.yStar, y)
	e.JStar.Copy(J)
	e.yValid, e.jValid = true, true
	return e.yStar, e.JStar, nil
}

// CachedOutputsAndJacobian returns both currently cached results.
func (e *Explicit) CachedOutputsAndJacobian() ([]float64, *mat.Dense) {
	return e.yStar, e.JStar
}

// InvalidateAll forces the next Cache-variant call to recompute, and
// propagates deep invalidation into the wrapped implicit component.
func (e *Explicit) InvalidateAll() {
	e.yValid, e.jValid = false, false
	e.ic.InvalidateAll()
}
