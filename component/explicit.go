// Copyright ©2026 The Compflow Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package component

import (
	"gonum.org/v1/gonum/mat"

	"github.com/compflow/compflow"
	"github.com/compflow/compflow/deriv"
)

// Config carries the construction options that apply to a single
// component: which derivative provider to use, and an
// optional pre-sized matrix to hold the component's cached Jacobian.
type Config struct {
	// Deriv supplies the Jacobian; if nil, a ForwardFD provider wrapping
	// the component's own flat primal is used — the framework's
	// transparent default.
	Deriv deriv.Provider
	// Workspace, if non-nil, must already be sized (ny, nx) and is used
	// as the cached Jacobian: the matrix the Into, Cache and Force
	// variants write and CachedJacobian returns. Query-style calls still
	// allocate a fresh result.
	Workspace *mat.Dense
}

// ExplicitComponent wraps a user function func(out_mut…, in…) → out_vars
// as an explicit component y = f(x), caching the last input, output and
// Jacobian and exposing them through the package's call-variant ladder
// (query, Into, Cache, Force, Cached).
type ExplicitComponent struct {
	inVars  []compflow.Variable
	outVars []compflow.Variable
	outMut  []compflow.Variable

	inLayout  compflow.VarLayout
	outVLay   compflow.VarLayout // out_vars sub-layout
	outMLay   compflow.VarLayout // out_mut sub-layout

	fn  Func
	jac deriv.Provider
	ws  *mat.Dense

	nx, ny int

	xStar  []float64
	yStar  []float64
	JStar  *mat.Dense
	yValid bool // yStar is current with respect to xStar
	jValid bool // JStar is current with respect to xStar
}

// NewExplicit constructs an explicit component. cfg may be nil to take
// every default.
func NewExplicit(inVars, outVars, outMut []compflow.Variable, fn Func, cfg *Config) *ExplicitComponent {
	if cfg == nil {
		cfg = &Config{}
	}
	inLayout := compflow.NewVarLayout(inVars)
	outVLay := compflow.NewVarLayout(outVars)
	outMLay := compflow.NewVarLayout(outMut)
	nx := inLayout.Width()
	ny := outVLay.Width() + outMLay.Width()

	c := &ExplicitComponent{
		inVars: inVars, outVars: outVars, outMut: outMut,
		inLayout: inLayout, outVLay: outVLay, outMLay: outMLay,
		fn: fn, nx: nx, ny: ny,
	}

	c.xStar = compflow.Combine(inVars)
	c.yStar = make([]float64, ny)
	copy(c.yStar[:outVLay.Width()], compflow.Combine(outVars))
	copy(c.yStar[outVLay.Width():], compflow.Combine(outMut))

	if cfg.Workspace != nil {
		c.ws = cfg.Workspace
	} else {
		c.ws = mat.NewDense(ny, nx, nil)
	}
	c.JStar = c.ws

	if cfg.Deriv != nil {
		c.jac = cfg.Deriv
	} else {
		c.jac = deriv.NewForwardFD(nx, ny, c.flatPrimal)
	}
	return c
}

// NX returns the component's flat input width.
func (c *ExplicitComponent) NX() int { return c.nx }

// NY returns the component's flat output width.
func (c *ExplicitComponent) NY() int { return c.ny }

// InVars returns the component's declared input variables.
func (c *ExplicitComponent) InVars() []compflow.Variable { return c.inVars }

// OutVars returns the component's declared non-mutating output
// variables.
func (c *ExplicitComponent) OutVars() []compflow.Variable { return c.outVars }

// OutMut returns the component's declared in-place output variables.
func (c *ExplicitComponent) OutMut() []compflow.Variable { return c.outMut }

// flatPrimal adapts Func into the plain flat-vector signature deriv
// providers expect, for use as the component's own fallback Jacobian
// primal.
func (c *ExplicitComponent) flatPrimal(x []float64) []float64 {
	y, err := c.evalOutputs(x)
	if err != nil {
		panic(err)
	}
	return y
}

// evalOutputs unpacks x, invokes fn, and assembles the flat output: all
// non-mutating out_vars first, then all out_mut, each in declaration
// order.
func (c *ExplicitComponent) evalOutputs(x []float64) ([]float64, error) {
	if len(x) < c.nx {
		return nil, &compflow.SizeMismatchError{Have: len(x), Want: c.nx}
	}
	in := compflow.Separate(c.inVars, x)
	y := make([]float64, c.ny)
	outMutViews := compflow.Separate(c.outMut, y[c.outVLay.Width():])
	ret := c.fn(outMutViews, in)
	if len(ret) != c.outVLay.Width() {
		return nil, &compflow.SizeMismatchError{Have: len(ret), Want: c.outVLay.Width()}
	}
	copy(y[:c.outVLay.Width()], ret)
	return y, nil
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

func (c *ExplicitComponent) sameAsCache(x []float64) bool {
	return equalVec(x, c.xStar)
}

func (c *ExplicitComponent) adoptX(x []float64) {
	if !c.sameAsCache(x) {
		copy(c.xStar, x)
		c.yValid = false
		c.jValid = false
	}
}

// --- Outputs: query / Into / Cache / Force / Cached ---

// Outputs allocates and returns a fresh output vector; it does not mutate
// the component's caches.
func (c *ExplicitComponent) Outputs(x []float64) ([]float64, error) {
	return c.evalOutputs(x)
}

// OutputsInto writes the output into dst and updates the cache.
func (c *ExplicitComponent) OutputsInto(dst, x []float64) error {
	y, err := c.evalOutputs(x)
	if err != nil {
		return err
	}
	if len(dst) < c.ny {
		return &compflow.SizeMismatchError{Have: len(dst), Want: c.ny}
	}
	copy(dst, y)
	c.adoptX(x)
	copy(c.yStar, y)
	c.yValid = true
	return nil
}

// OutputsCache evaluates into, and returns a reference to, the
// component's own cache, skipping recomputation if x equals the cached
// input and the cache is already current.
func (c *ExplicitComponent) OutputsCache(x []float64) ([]float64, error) {
	if c.sameAsCache(x) && c.yValid {
		return c.yStar, nil
	}
	return c.OutputsForce(x)
}

// OutputsForce recomputes unconditionally and updates the cache.
func (c *ExplicitComponent) OutputsForce(x []float64) ([]float64, error) {
	y, err := c.evalOutputs(x)
	if err != nil {
		return nil, err
	}
	c.adoptX(x)
	copy(c.yStar, y)
	c.yValid = true
	return c.yStar, nil
}

// CachedOutputs returns the currently cached output without
// recomputation.
func (c *ExplicitComponent) CachedOutputs() []float64 { return c.yStar }

// --- Jacobian: query / Into / Cache / Force / Cached ---

// Jacobian allocates and returns a fresh Jacobian; it does not mutate the
// component's caches.
func (c *ExplicitComponent) Jacobian(x []float64) (*mat.Dense, error) {
	if len(x) < c.nx {
		return nil, &compflow.SizeMismatchError{Have: len(x), Want: c.nx}
	}
	J, err := c.jac.Jacobian(x)
	if err != nil {
		return nil, err
	}
	dst := mat.NewDense(c.ny, c.nx, nil)
	dst.Copy(J)
	return dst, nil
}

// JacobianInto writes the Jacobian into dst and updates the cache.
func (c *ExplicitComponent) JacobianInto(dst *mat.Dense, x []float64) error {
	J, err := c.Jacobian(x)
	if err != nil {
		return err
	}
	dst.Copy(J)
	c.adoptX(x)
	c.JStar.Copy(J)
	c.jValid = true
	return nil
}

// JacobianCache evaluates into, and returns a reference to, the
// component's own cache, skipping recomputation if x equals the cached
// input and the cache is already current.
func (c *ExplicitComponent) JacobianCache(x []float64) (*mat.Dense, error) {
	if c.sameAsCache(x) && c.jValid {
		return c.JStar, nil
	}
	return c.JacobianForce(x)
}

// JacobianForce recomputes unconditionally and updates the cache.
func (c *ExplicitComponent) JacobianForce(x []float64) (*mat.Dense, error) {
	J, err := c.jac.Jacobian(x)
	if err != nil {
		return nil, err
	}
	c.adoptX(x)
	c.JStar.Copy(J)
	c.jValid = true
	return c.JStar, nil
}

// CachedJacobian returns the currently cached Jacobian without
// recomputation.
func (c *ExplicitComponent) CachedJacobian() *mat.Dense { return c.JStar }

// --- OutputsAndJacobian: query / Into / Cache / Force / Cached ---

// OutputsAndJacobian allocates and returns fresh results; it does not
// mutate the component's caches.
func (c *ExplicitComponent) OutputsAndJacobian(x []float64) ([]float64, *mat.Dense, error) {
	y, err := c.evalOutputs(x)
	if err != nil {
		return nil, nil, err
	}
	J, err := c.jac.Jacobian(x)
	if err != nil {
		return nil, nil, err
	}
	dst := mat.NewDense(c.ny, c.nx, nil)
	dst.Copy(J)
	return y, dst, nil
}

// OutputsAndJacobianInto writes both results into the caller's buffers
// and updates the cache.
func (c *ExplicitComponent) OutputsAndJacobianInto(dstY []float64, dstJ *mat.Dense, x []float64) error {
	y, J, err := c.OutputsAndJacobian(x)
	if err != nil {
		return err
	}
	if len(dstY) < c.ny {
		return &compflow.SizeMismatchError{Have: len(dstY), Want: c.ny}
	}
	copy(dstY, y)
	dstJ.Copy(J)
	c.adoptX(x)
	copy(c.yStar, y)
	c.JStar.Copy(J)
	c.yValid, c.jValid = true, true
	return nil
}

// OutputsAndJacobianCache evaluates into, and returns references to, the
// component's own caches, skipping recomputation if both are already
// current with respect to x.
func (c *ExplicitComponent) OutputsAndJacobianCache(x []float64) ([]float64, *mat.Dense, error) {
	if c.sameAsCache(x) && c.yValid && c.jValid {
		return c.yStar, c.JStar, nil
	}
	return c.OutputsAndJacobianForce(x)
}

// OutputsAndJacobianForce recomputes both results unconditionally and
// updates the cache.
func (c *ExplicitComponent) OutputsAndJacobianForce(x []float64) ([]float64, *mat.Dense, error) {
	y, err := c.evalOutputs(x)
	if err != nil {
		return nil, nil, err
	}
	J, err := c.jac.Jacobian(x)
	if err != nil {
		return nil, nil, err
	}
	c.adoptX(x)
	copy(c.yStar, y)
	c.JStar.Copy(J)
	c.yValid, c.jValid = true, true
	return c.yStar, c.JStar, nil
}

// CachedOutputsAndJacobian returns both currently cached results without
// recomputation.
func (c *ExplicitComponent) CachedOutputsAndJacobian() ([]float64, *mat.Dense) {
	return c.yStar, c.JStar
}

// InvalidateAll forces the next Cache-variant call to recompute
// regardless of x; a system's deep invalidation calls it on every inner
// component.
func (c *ExplicitComponent) InvalidateAll() {
	c.yValid = false
	c.jValid = false
}
