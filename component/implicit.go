// Copyright ©2026 The Compflow Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package component

import (
	"gonum.org/v1/gonum/mat"

	"github.com/compflow/compflow"
	"github.com/compflow/compflow/deriv"
)

// ImplicitConfig carries the construction options specific to an implicit
// component: independent providers for ∂r/∂x and ∂r/∂y.
type ImplicitConfig struct {
	XDeriv deriv.Provider // ∂r/∂x; defaults to ForwardFD over x with y held fixed
	YDeriv deriv.Provider // ∂r/∂y; defaults to ForwardFD over y with x held fixed
}

// ImplicitComponent wraps a user residual routine r(x, y) as an implicit
// component, with nr == ny, caching the last (x, y), residual and both
// Jacobian blocks.
type ImplicitComponent struct {
	inVars  []compflow.Variable
	outVars []compflow.Variable

	inLayout  compflow.VarLayout
	outLayout compflow.VarLayout

	fn     ResidualFunc
	xDeriv deriv.Provider
	yDeriv deriv.Provider

	nx, ny, nr int

	xStar, yStar   []float64
	rStar          []float64
	JxStar, JyStar *mat.Dense
	rValid         bool
	jxValid        bool
	jyValid        bool
}

// NewImplicit constructs an implicit component. cfg may be nil to take
// every default.
func NewImplicit(inVars, outVars []compflow.Variable, fn ResidualFunc, cfg *ImplicitConfig) *ImplicitComponent {
	if cfg == nil {
		cfg = &ImplicitConfig{}
	}
	inLayout := compflow.NewVarLayout(inVars)
	outLayout := compflow.NewVarLayout(outVars)
	nx, ny := inLayout.Width(), outLayout.Width()

	c := &ImplicitComponent{
		inVars: inVars, outVars: outVars,
		inLayout: inLayout, outLayout: outLayout,
		fn: fn, nx: nx, ny: ny, nr: ny,
	}
	c.xStar = compflow.Combine(inVars)
	c.yStar = compflow.Combine(outVars)
	c.rStar = make([]float64, c.nr)
	c.JxStar = mat.NewDense(c.nr, nx, nil)
	c.JyStar = mat.NewDense(c.nr, ny, nil)

	if cfg.XDeriv != nil {
		c.xDeriv = cfg.XDeriv
	} else {
		c.xDeriv = deriv.NewForwardFD(nx, c.nr, c.flatPrimalX(c.yStar))
	}
	if cfg.YDeriv != nil {
		c.yDeriv = cfg.YDeriv
	} else {
		c.yDeriv = deriv.NewForwardFD(ny, c.nr, c.flatPrimalY(c.xStar))
	}
	return c
}

// NX, NY and NR return the component's flat input, output and residual
// widths; NR always equals NY.
func (c *ImplicitComponent) NX() int { return c.nx }
func (c *ImplicitComponent) NY() int { return c.ny }
func (c *ImplicitComponent) NR() int { return c.nr }

// InVars and OutVars return the component's declared variable tuples.
func (c *ImplicitComponent) InVars() []compflow.Variable  { return c.inVars }
func (c *ImplicitComponent) OutVars() []compflow.Variable { return c.outVars }

func (c *ImplicitComponent) evalResiduals(x, y []float64) ([]float64, error) {
	if len(x) < c.nx {
		return nil, &compflow.SizeMismatchError{Have: len(x), Want: c.nx}
	}
	if len(y) < c.ny {
		return nil, &compflow.SizeMismatchError{Have: len(y), Want: c.ny}
	}
	xv := compflow.Separate(c.inVars, x)
	yv := compflow.Separate(c.outVars, y)
	r := c.fn(xv, yv)
	if len(r) != c.nr {
		return nil, &compflow.SizeMismatchError{Have: len(r), Want: c.nr}
	}
	return r, nil
}

// flatPrimalX fixes y and returns a Primal over x alone, for the default
// ∂r/∂x finite-difference fallback.
func (c *ImplicitComponent) flatPrimalX(yFixed []float64) deriv.Primal {
	return func(x []float64) []float64 {
		r, err := c.evalResiduals(x, yFixed)
		if err != nil {
			panic(err)
		}
		return r
	}
}

// flatPrimalY fixes x and returns a Primal over y alone, for the default
// ∂r/∂y finite-difference fallback.
func (c *ImplicitComponent) flatPrimalY(xFixed []float64) deriv.Primal {
	return func(y []float64) []float64 {
		r, err := c.evalResiduals(xFixed, y)
		if err != nil {
			panic(err)
		}
		return r
	}
}

func (c *ImplicitComponent) sameAsCache(x, y []float64) bool {
	return equalVec(x, c.xStar) && equalVec(y, c.yStar)
}

func (c *ImplicitComponent) adopt(x, y []float64) {
	if !c.sameAsCache(x, y) {
		copy(c.xStar, x)
		copy(c.yStar, y)
		c.rValid, c.jxValid, c.jyValid = false, false, false
	}
}

// Residuals allocates and returns a fresh residual vector.
func (c *ImplicitComponent) Residuals(x, y []float64) ([]float64, error) {
	return c.evalResiduals(x, y)
}

// ResidualsInto writes the residual into dst and updates the cache.
func (c *ImplicitComponent) ResidualsInto(dst, x, y []float64) error {
	r, err := c.evalResiduals(x, y)
	if err != nil {
		return err
	}
	copy(dst, r)
	c.adopt(x, y)
	copy(c.rStar, r)
	c.rValid = true
	return nil
}

// ResidualsCache evaluates into, and returns a reference to, the cache,
// skipping recomputation if (x, y) match the cache and it is current.
func (c *ImplicitComponent) ResidualsCache(x, y []float64) ([]float64, error) {
	if c.sameAsCache(x, y) && c.rValid {
		return c.rStar, nil
	}
	return c.ResidualsForce(x, y)
}

// ResidualsForce recomputes unconditionally and updates the cache.
func (c *ImplicitComponent) ResidualsForce(x, y []float64) ([]float64, error) {
	r, err := c.evalResiduals(x, y)
	if err != nil {
		return nil, err
	}
	c.adopt(x, y)
	copy(c.rStar, r)
	c.rValid = true
	return c.rStar, nil
}

// CachedResiduals returns the currently cached residual without
// recomputation.
func (c *ImplicitComponent) CachedResiduals() []float64 { return c.rStar }

// xDerivAt returns the ∂r/∂x provider to use for a call where y is
// fixed at the given value. Any *deriv.FiniteDifference provider, the
// default fallback or a user-supplied one, is rebuilt per call as a
// ForwardFD over this component's residual with its default step, since
// its closure must capture the current y; the supplied formula and step
// are not kept. Every other provider is used as given.
func (c *ImplicitComponent) xDerivAt(y []float64) deriv.Provider {
	if _, isDefaultShape := c.xDeriv.(*deriv.FiniteDifference); isDefaultShape {
		return deriv.NewForwardFD(c.nx, c.nr, c.flatPrimalX(y))
	}
	return c.xDeriv
}

func (c *ImplicitComponent) yDerivAt(x []float64) deriv.Provider {
	if _, isDefaultShape := c.yDeriv.(*deriv.FiniteDifference); isDefaultShape {
		return deriv.NewForwardFD(c.ny, c.nr, c.flatPrimalY(x))
	}
	return c.yDeriv
}

// ResidualInputJacobian allocates and returns a fresh ∂r/∂x.
func (c *ImplicitComponent) ResidualInputJacobian(x, y []float64) (*mat.Dense, error) {
	return c.xDerivAt(y).Jacobian(x)
}

// ResidualInputJacobianInto writes ∂r/∂x into dst and updates the cache.
func (c *ImplicitComponent) ResidualInputJacobianInto(dst *mat.Dense, x, y []float64) error {
	J, err := c.ResidualInputJacobian(x, y)
	if err != nil {
		return err
	}
	dst.Copy(J)
	c.adopt(x, y)
	c.JxStar.Copy(J)
	c.jxValid = true
	return nil
}

// ResidualInputJacobianCache evaluates into, and returns a reference to,
// the cache, skipping recomputation when current.
func (c *ImplicitComponent) ResidualInputJacobianCache(x, y []float64) (*mat.Dense, error) {
	if c.sameAsCache(x, y) && c.jxValid {
		return c.JxStar, nil
	}
	return c.ResidualInputJacobianForce(x, y)
}

// ResidualInputJacobianForce recomputes ∂r/∂x unconditionally.
func (c *ImplicitComponent) ResidualInputJacobianForce(x, y []float64) (*mat.Dense, error) {
	J, err := c.ResidualInputJacobian(x, y)
	if err != nil {
		return nil, err
	}
	c.adopt(x, y)
	c.JxStar.Copy(J)
	c.jxValid = true
	return c.JxStar, nil
}

// CachedResidualInputJacobian returns the cached ∂r/∂x.
func (c *ImplicitComponent) CachedResidualInputJacobian() *mat.Dense { return c.JxStar }

// ResidualOutputJacobian allocates and returns a fresh ∂r/∂y.
func (c *ImplicitComponent) ResidualOutputJacobian(x, y []float64) (*mat.Dense, error) {
	return c.yDerivAt(x).Jacobian(y)
}

// ResidualOutputJacobianInto writes ∂r/∂y into dst and updates the
// cache.
func (c *ImplicitComponent) ResidualOutputJacobianInto(dst *mat.Dense, x, y []float64) error {
	J, err := c.ResidualOutputJacobian(x, y)
	if err != nil {
		return err
	}
	dst.Copy(J)
	c.adopt(x, y)
	c.JyStar.Copy(J)
	c.jyValid = true
	return nil
}

// ResidualOutputJacobianCache evaluates into, and returns a reference to,
// the cache, skipping recomputation when current.
func (c *ImplicitComponent) ResidualOutputJacobianCache(x, y []float64) (*mat.Dense, error) {
	if c.sameAsCache(x, y) && c.jyValid {
		return c.JyStar, nil
	}
	return c.ResidualOutputJacobianForce(x, y)
}

// ResidualOutputJacobianForce recomputes ∂r/∂y unconditionally.
func (c *ImplicitComponent) ResidualOutputJacobianForce(x, y []float64) (*mat.Dense, error) {
	J, err := c.ResidualOutputJacobian(x, y)
	if err != nil {
		return nil, err
	}
	c.adopt(x, y)
	c.JyStar.Copy(J)
	c.jyValid = true
	return c.JyStar, nil
}

// CachedResidualOutputJacobian returns the cached ∂r/∂y.
func (c *ImplicitComponent) CachedResidualOutputJacobian() *mat.Dense { return c.JyStar }

// ResidualsAndInputJacobian evaluates the residual together with ∂r/∂x.
func (c *ImplicitComponent) ResidualsAndInputJacobian(x, y []float64) ([]float64, *mat.Dense, error) {
	r, err := c.evalResiduals(x, y)
	if err != nil {
		return nil, nil, err
	}
	J, err := c.ResidualInputJacobian(x, y)
	if err != nil {
		return nil, nil, err
	}
	return r, J, nil
}

// ResidualsAndInputJacobianInto writes the residual and ∂r/∂x into the
// caller's buffers and updates the cache.
func (c *ImplicitComponent) ResidualsAndInputJacobianInto(dstR []float64, dstJ *mat.Dense, x, y []float64) error {
	r, J, err := c.ResidualsAndInputJacobian(x, y)
	if err != nil {
		return err
	}
	copy(dstR, r)
	dstJ.Copy(J)
	c.adopt(x, y)
	copy(c.rStar, r)
	c.JxStar.Copy(J)
	c.rValid, c.jxValid = true, true
	return nil
}

// ResidualsAndInputJacobianCache evaluates into, and returns references
// to, the cache, skipping recomputation of whichever piece is already
// current with respect to (x, y).
func (c *ImplicitComponent) ResidualsAndInputJacobianCache(x, y []float64) ([]float64, *mat.Dense, error) {
	if c.sameAsCache(x, y) && c.rValid && c.jxValid {
		return c.rStar, c.JxStar, nil
	}
	return c.ResidualsAndInputJacobianForce(x, y)
}

// ResidualsAndInputJacobianForce recomputes both pieces unconditionally
// and updates the cache.
func (c *ImplicitComponent) ResidualsAndInputJacobianForce(x, y []float64) ([]float64, *mat.Dense, error) {
	r, J, err := c.ResidualsAndInputJacobian(x, y)
	if err != nil {
		return nil, nil, err
	}
	c.adopt(x, y)
	copy(c.rStar, r)
	c.JxStar.Copy(J)
	c.rValid, c.jxValid = true, true
	return c.rStar, c.JxStar, nil
}

// CachedResidualsAndInputJacobian returns both currently cached results
// without recomputation.
func (c *ImplicitComponent) CachedResidualsAndInputJacobian() ([]float64, *mat.Dense) {
	return c.rStar, c.JxStar
}

// ResidualsAndOutputJacobian evaluates the residual together with ∂r/∂y.
func (c *ImplicitComponent) ResidualsAndOutputJacobian(x, y []float64) ([]float64, *mat.Dense, error) {
	r, err := c.evalResiduals(x, y)
	if err != nil {
		return nil, nil, err
	}
	J, err := c.ResidualOutputJacobian(x, y)
	if err != nil {
		return nil, nil, err
	}
	return r, J, nil
}

// ResidualsAndOutputJacobianInto writes the residual and ∂r/∂y into the
// caller's buffers and updates the cache.
func (c *ImplicitComponent) ResidualsAndOutputJacobianInto(dstR []float64, dstJ *mat.Dense, x, y []float64) error {
	r, J, err := c.ResidualsAndOutputJacobian(x, y)
	if err != nil {
		return err
	}
	copy(dstR, r)
	dstJ.Copy(J)
	c.adopt(x, y)
	copy(c.rStar, r)
	c.JyStar.Copy(J)
	c.rValid, c.jyValid = true, true
	return nil
}

// ResidualsAndOutputJacobianCache evaluates into, and returns references
// to, the cache, skipping recomputation of whichever piece is already
// current with respect to (x, y).
func (c *ImplicitComponent) ResidualsAndOutputJacobianCache(x, y []float64) ([]float64, *mat.Dense, error) {
	if c.sameAsCache(x, y) && c.rValid && c.jyValid {
		return c.rStar, c.JyStar, nil
	}
	return c.ResidualsAndOutputJacobianForce(x, y)
}

// ResidualsAndOutputJacobianForce recomputes both pieces unconditionally
// and updates the cache.
func (c *ImplicitComponent) ResidualsAndOutputJacobianForce(x, y []float64) ([]float64, *mat.Dense, error) {
	r, J, err := c.ResidualsAndOutputJacobian(x, y)
	if err != nil {
		return nil, nil, err
	}
	c.adopt(x, y)
	copy(c.rStar, r)
	c.JyStar.Copy(J)
	c.rValid, c.jyValid = true, true
	return c.rStar, c.JyStar, nil
}

// CachedResidualsAndOutputJacobian returns both currently cached results
// without recomputation.
func (c *ImplicitComponent) CachedResidualsAndOutputJacobian() ([]float64, *mat.Dense) {
	return c.rStar, c.JyStar
}

// ResidualsAndJacobians evaluates the residual together with both
// Jacobian blocks, allocating fresh results.
func (c *ImplicitComponent) ResidualsAndJacobians(x, y []float64) ([]float64, *mat.Dense, *mat.Dense, error) {
	r, err := c.evalResiduals(x, y)
	if err != nil {
		return nil, nil, nil, err
	}
	Jx, err := c.ResidualInputJacobian(x, y)
	if err != nil {
		return nil, nil, nil, err
	}
	Jy, err := c.ResidualOutputJacobian(x, y)
	if err != nil {
		return nil, nil, nil, err
	}
	return r, Jx, Jy, nil
}

// ResidualsAndJacobiansInto writes the residual and both Jacobian
// blocks into the caller's buffers and updates every cache.
func (c *ImplicitComponent) ResidualsAndJacobiansInto(dstR []float64, dstJx, dstJy *mat.Dense, x, y []float64) error {
	r, Jx, Jy, err := c.ResidualsAndJacobians(x, y)
	if err != nil {
		return err
	}
	copy(dstR, r)
	dstJx.Copy(Jx)
	dstJy.Copy(Jy)
	c.adopt(x, y)
	copy(c.rStar, r)
	c.JxStar.Copy(Jx)
	c.JyStar.Copy(Jy)
	c.rValid, c.jxValid, c.jyValid = true, true, true
	return nil
}

// ResidualsAndJacobiansCache evaluates into, and returns references to,
// every cache, skipping recomputation of whichever pieces are already
// current with respect to (x, y).
func (c *ImplicitComponent) ResidualsAndJacobiansCache(x, y []float64) ([]float64, *mat.Dense, *mat.Dense, error) {
	if !c.sameAsCache(x, y) {
		return c.ResidualsAndJacobiansForce(x, y)
	}
	if _, err := c.ResidualsCache(x, y); err != nil {
		return nil, nil, nil, err
	}
	if _, err := c.ResidualInputJacobianCache(x, y); err != nil {
		return nil, nil, nil, err
	}
	if _, err := c.ResidualOutputJacobianCache(x, y); err != nil {
		return nil, nil, nil, err
	}
	return c.rStar, c.JxStar, c.JyStar, nil
}

// ResidualsAndJacobiansForce recomputes every piece unconditionally and
// updates every cache.
func (c *ImplicitComponent) ResidualsAndJacobiansForce(x, y []float64) ([]float64, *mat.Dense, *mat.Dense, error) {
	r, Jx, Jy, err := c.ResidualsAndJacobians(x, y)
	if err != nil {
		return nil, nil, nil, err
	}
	c.adopt(x, y)
	copy(c.rStar, r)
	c.JxStar.Copy(Jx)
	c.JyStar.Copy(Jy)
	c.rValid, c.jxValid, c.jyValid = true, true, true
	return c.rStar, c.JxStar, c.JyStar, nil
}

// CachedResidualsAndJacobians returns every currently cached result
// without recomputation.
func (c *ImplicitComponent) CachedResidualsAndJacobians() ([]float64, *mat.Dense, *mat.Dense) {
	return c.rStar, c.JxStar, c.JyStar
}

// InvalidateAll forces the next Cache-variant call to recompute
// regardless of (x, y).
func (c *ImplicitComponent) InvalidateAll() {
	c.rValid, c.jxValid, c.jyValid = false, false, false
}
