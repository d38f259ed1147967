// Copyright ©2026 The Compflow Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package system

import (
	"gonum.org/v1/gonum/mat"

	"github.com/compflow/compflow"
)

// ImplicitInner is the subset of component.ImplicitComponent a system
// needs from its inner components. An inner explicit component is
// admitted by lifting it first (component.Lift), giving it the residual
// y_inner − f_inner(x_inner).
type ImplicitInner interface {
	NX() int
	NY() int
	InVars() []compflow.Variable
	OutVars() []compflow.Variable
	Residuals(x, y []float64) ([]float64, error)
	ResidualInputJacobian(x, y []float64) (*mat.Dense, error)
	ResidualOutputJacobian(x, y []float64) (*mat.Dense, error)
	InvalidateAll()
}

// ImplicitSystem stacks inner components' residuals and outputs,
// resolving inter-component coupling (one component's input sourced from
// another's output) through the same routing table machinery as
// ExplicitSystem, but without the forward-reference restriction: cycles
// between inner components are exactly what an implicit system exists to
// close.
type ImplicitSystem struct {
	components []ImplicitInner
	argin      []compflow.Variable

	inLayout compflow.VarLayout

	reg       *registry
	P         []*mat.Dense // per-component full selector, (nx_k, nx+ny_total)
	compRange []compflow.Range

	nx, nyTotal, nrTotal int

	xStar, yStar   []float64
	rStar          []float64
	JxStar, JyStar *mat.Dense
	rValid         bool
	jxValid        bool
	jyValid        bool
}

// NewImplicitSystem validates the routing between argin and components
// and builds the system's evaluation plan. Unlike NewExplicitSystem, a
// forward reference is not an error here.
func NewImplicitSystem(argin []compflow.Variable, components []ImplicitInner) (*ImplicitSystem, error) {
	reg := newRegistry()
	inLayout := reg.register(argin)
	nx := inLayout.Width()

	compRange := make([]compflow.Range, len(components))
	for k, c := range components {
		before := reg.width
		outLayout := reg.register(c.OutVars())
		compRange[k] = compflow.Range{Offset: before, Size: outLayout.Width()}
	}

	P := make([]*mat.Dense, len(components))
	nrTotal := 0
	for k, c := range components {
		Pk, err := selector(c.InVars(), reg, func(name string) error {
			return &UnresolvedInputError{Component: k, Variable: name}
		})
		if err != nil {
			return nil, err
		}
		P[k] = Pk
		nrTotal += c.NY()
	}

	s := &ImplicitSystem{
		components: components,
		argin:      argin,
		inLayout:   inLayout,
		reg:        reg,
		P:          P,
		compRange:  compRange,
		nx:         nx,
		nyTotal:    reg.width - nx,
		nrTotal:    nrTotal,
	}
	s.xStar = make([]float64, nx)
	s.yStar = make([]float64, s.nyTotal)
	s.rStar = make([]float64, nrTotal)
	s.JxStar = mat.NewDense(nrTotal, nx, nil)
	s.JyStar = mat.NewDense(nrTotal, s.nyTotal, nil)
	return s, nil
}

// NX, NY and NR return the system's flat argin width, concatenated inner
// output width, and concatenated residual width.
func (s *ImplicitSystem) NX() int { return s.nx }
func (s *ImplicitSystem) NY() int { return s.nyTotal }
func (s *ImplicitSystem) NR() int { return s.nrTotal }

// InVars returns the system's declared external inputs.
func (s *ImplicitSystem) InVars() []compflow.Variable { return s.argin }

// OutVars returns the concatenation of every inner component's output
// variable tuple, in component declaration order.
func (s *ImplicitSystem) OutVars() []compflow.Variable {
	vars := make([]compflow.Variable, 0, s.nyTotal)
	for _, c := range s.components {
		vars = append(vars, c.OutVars()...)
	}
	return vars
}

func (s *ImplicitSystem) gather(k int, flat []float64) []float64 {
	flatVec := mat.NewVecDense(len(flat), flat)
	xk := mat.NewVecDense(s.P[k].RawMatrix().Rows, nil)
	xk.MulVec(s.P[k], flatVec)
	return xk.RawVector().Data
}

func (s *ImplicitSystem) yBlock(k int, y []float64) []float64 {
	rg := s.compRange[k]
	return y[rg.Offset-s.nx : rg.Offset-s.nx+rg.Size]
}

func (s *ImplicitSystem) flat(x, y []float64) []float64 {
	flat := make([]float64, s.reg.width)
	copy(flat[:s.nx], x)
	copy(flat[s.nx:], y)
	return flat
}

func (s *ImplicitSystem) evalResiduals(x, y []float64) ([]float64, error) {
	if len(x) < s.nx {
		return nil, &compflow.SizeMismatchError{Have: len(x), Want: s.nx}
	}
	if len(y) < s.nyTotal {
		return nil, &compflow.SizeMismatchError{Have: len(y), Want: s.nyTotal}
	}
	flat := s.flat(x, y)
	r := make([]float64, s.nrTotal)
	off := 0
	for k, c := range s.components {
		xk := s.gather(k, flat)
		yk := s.yBlock(k, y)
		rk, err := c.Residuals(xk, yk)
		if err != nil {
			return nil, err
		}
		copy(r[off:off+c.NY()], rk)
		off += c.NY()
	}
	return r, nil
}

// Residuals allocates and returns a fresh residual vector.
func (s *ImplicitSystem) Residuals(x, y []float64) ([]float64, error) {
	return s.evalResiduals(x, y)
}

func (s *ImplicitSystem) sameAsCache(x, y []float64) bool {
	return equalVec(x, s.xStar) && equalVec(y, s.yStar)
}

func (s *ImplicitSystem) adopt(x, y []float64) {
	if !s.sameAsCache(x, y) {
		copy(s.xStar, x)
		copy(s.yStar, y)
		s.rValid, s.jxValid, s.jyValid = false, false, false
	}
}

// ResidualsInto writes the residual into dst and updates the cache.
func (s *ImplicitSystem) ResidualsInto(dst, x, y []float64) error {
	r, err := s.evalResiduals(x, y)
	if err != nil {
		return err
	}
	copy(dst, r)
	s.adopt(x, y)
	copy(s.rStar, r)
	s.rValid = true
	return nil
}

// ResidualsCache evaluates into, and returns a reference to, the cache.
func (s *ImplicitSystem) ResidualsCache(x, y []float64) ([]float64, error) {
	if s.sameAsCache(x, y) && s.rValid {
		return s.rStar, nil
	}
	return s.ResidualsForce(x, y)
}

// ResidualsForce recomputes unconditionally and updates the cache.
func (s *ImplicitSystem) ResidualsForce(x, y []float64) ([]float64, error) {
	r, err := s.evalResiduals(x, y)
	if err != nil {
		return nil, err
	}
	s.adopt(x, y)
	copy(s.rStar, r)
	s.rValid = true
	return s.rStar, nil
}

// CachedResiduals returns the currently cached residual.
func (s *ImplicitSystem) CachedResiduals() []float64 { return s.rStar }

// ResidualInputJacobian assembles ∂r/∂x: block row k is
// ∂rₖ/∂xₖ · Pₖ,argin, the portion of component k's inputs sourced from
// the system's external inputs.
func (s *ImplicitSystem) ResidualInputJacobian(x, y []float64) (*mat.Dense, error) {
	flat := s.flat(x, y)
	JX := mat.NewDense(s.nrTotal, s.nx, nil)
	off := 0
	for k, c := range s.components {
		xk := s.gather(k, flat)
		yk := s.yBlock(k, y)
		Jxk, err := c.ResidualInputJacobian(xk, yk)
		if err != nil {
			return nil, err
		}
		Parg := s.P[k].Slice(0, c.NX(), 0, s.nx)
		block := mat.NewDense(c.NY(), s.nx, nil)
		block.Mul(Jxk, Parg)
		JX.Slice(off, off+c.NY(), 0, s.nx).(*mat.Dense).Copy(block)
		off += c.NY()
	}
	return JX, nil
}

// ResidualInputJacobianInto writes ∂r/∂x into dst and updates the cache.
func (s *ImplicitSystem) ResidualInputJacobianInto(dst *mat.Dense, x, y []float64) error {
	J, err := s.ResidualInputJacobian(x, y)
	if err != nil {
		return err
	}
	dst.Copy(J)
	s.adopt(x, y)
	s.JxStar.Copy(J)
	s.jxValid = true
	return nil
}

// ResidualInputJacobianCache evaluates into, and returns a reference to,
// the cache, skipping recomputation when current.
func (s *ImplicitSystem) ResidualInputJacobianCache(x, y []float64) (*mat.Dense, error) {
	if s.sameAsCache(x, y) && s.jxValid {
		return s.JxStar, nil
	}
	return s.ResidualInputJacobianForce(x, y)
}

// ResidualInputJacobianForce recomputes ∂r/∂x unconditionally.
func (s *ImplicitSystem) ResidualInputJacobianForce(x, y []float64) (*mat.Dense, error) {
	J, err := s.ResidualInputJacobian(x, y)
	if err != nil {
		return nil, err
	}
	s.adopt(x, y)
	s.JxStar.Copy(J)
	s.jxValid = true
	return s.JxStar, nil
}

// CachedResidualInputJacobian returns the cached ∂r/∂x.
func (s *ImplicitSystem) CachedResidualInputJacobian() *mat.Dense { return s.JxStar }

// ResidualOutputJacobian assembles ∂r/∂y, block diagonal plus coupling:
// block (k, k) is ∂rₖ/∂yₖ; block (k, j≠k) is ∂rₖ/∂xₖ · Pₖⱼ, the portion
// of xₖ sourced from yⱼ.
func (s *ImplicitSystem) ResidualOutputJacobian(x, y []float64) (*mat.Dense, error) {
	flat := s.flat(x, y)
	JY := mat.NewDense(s.nrTotal, s.nyTotal, nil)
	off := 0
	for k, c := range s.components {
		xk := s.gather(k, flat)
		yk := s.yBlock(k, y)

		Jyk, err := c.ResidualOutputJacobian(xk, yk)
		if err != nil {
			return nil, err
		}
		rg := s.compRange[k]
		diag := JY.Slice(off, off+c.NY(), rg.Offset-s.nx, rg.Offset-s.nx+rg.Size).(*mat.Dense)
		diag.Add(diag, Jyk)

		Jxk, err := c.ResidualInputJacobian(xk, yk)
		if err != nil {
			return nil, err
		}
		Pcoupling := s.P[k].Slice(0, c.NX(), s.nx, s.reg.width)
		coupling := mat.NewDense(c.NY(), s.nyTotal, nil)
		coupling.Mul(Jxk, Pcoupling)
		row := JY.Slice(off, off+c.NY(), 0, s.nyTotal).(*mat.Dense)
		row.Add(row, coupling)

		off += c.NY()
	}
	return JY, nil
}

// ResidualOutputJacobianInto writes ∂r/∂y into dst and updates the
// cache.
func (s *ImplicitSystem) ResidualOutputJacobianInto(dst *mat.Dense, x, y []float64) error {
	J, err := s.ResidualOutputJacobian(x, y)
	if err != nil {
		return err
	}
	dst.Copy(J)
	s.adopt(x, y)
	s.JyStar.Copy(J)
	s.jyValid = true
	return nil
}

// ResidualOutputJacobianCache evaluates into, and returns a reference to,
// the cache, skipping recomputation when current.
func (s *ImplicitSystem) ResidualOutputJacobianCache(x, y []float64) (*mat.Dense, error) {
	if s.sameAsCache(x, y) && s.jyValid {
		return s.JyStar, nil
	}
	return s.ResidualOutputJacobianForce(x, y)
}

// ResidualOutputJacobianForce recomputes ∂r/∂y unconditionally.
func (s *ImplicitSystem) ResidualOutputJacobianForce(x, y []float64) (*mat.Dense, error) {
	J, err := s.ResidualOutputJacobian(x, y)
	if err != nil {
		return nil, err
	}
	s.adopt(x, y)
	s.JyStar.Copy(J)
	s.jyValid = true
	return s.JyStar, nil
}

// CachedResidualOutputJacobian returns the cached ∂r/∂y.
func (s *ImplicitSystem) CachedResidualOutputJacobian() *mat.Dense { return s.JyStar }

// ResidualsAndJacobians evaluates the residual together with both
// Jacobian blocks, allocating fresh results.
func (s *ImplicitSystem) ResidualsAndJacobians(x, y []float64) ([]float64, *mat.Dense, *mat.Dense, error) {
	r, err := s.evalResiduals(x, y)
	if err != nil {
		return nil, nil, nil, err
	}
	Jx, err := s.ResidualInputJacobian(x, y)
	if err != nil {
		return nil, nil, nil, err
	}
	Jy, err := s.ResidualOutputJacobian(x, y)
	if err != nil {
		return nil, nil, nil, err
	}
	return r, Jx, Jy, nil
}

// ResidualsAndJacobiansForce recomputes every piece unconditionally and
// updates every cache.
func (s *ImplicitSystem) ResidualsAndJacobiansForce(x, y []float64) ([]float64, *mat.Dense, *mat.Dense, error) {
	r, Jx, Jy, err := s.ResidualsAndJacobians(x, y)
	if err != nil {
		return nil, nil, nil, err
	}
	s.adopt(x, y)
	copy(s.rStar, r)
	s.JxStar.Copy(Jx)
	s.JyStar.Copy(Jy)
	s.rValid, s.jxValid, s.jyValid = true, true, true
	return s.rStar, s.JxStar, s.JyStar, nil
}

// ResidualsAndJacobiansInto writes the residual and both Jacobian blocks
// into the caller's buffers and updates every cache.
func (s *ImplicitSystem) ResidualsAndJacobiansInto(dstR []float64, dstJx, dstJy *mat.Dense, x, y []float64) error {
	r, Jx, Jy, err := s.ResidualsAndJacobians(x, y)
	if err != nil {
		return err
	}
	copy(dstR, r)
	dstJx.Copy(Jx)
	dstJy.Copy(Jy)
	s.adopt(x, y)
	copy(s.rStar, r)
	s.JxStar.Copy(Jx)
	s.JyStar.Copy(Jy)
	s.rValid, s.jxValid, s.jyValid = true, true, true
	return nil
}

// ResidualsAndJacobiansCache evaluates into, and returns references to,
// every cache, skipping recomputation of whichever pieces are already
// current with respect to (x, y).
func (s *ImplicitSystem) ResidualsAndJacobiansCache(x, y []float64) ([]float64, *mat.Dense, *mat.Dense, error) {
	if !s.sameAsCache(x, y) {
		return s.ResidualsAndJacobiansForce(x, y)
	}
	if _, err := s.ResidualsCache(x, y); err != nil {
		return nil, nil, nil, err
	}
	if _, err := s.ResidualInputJacobianCache(x, y); err != nil {
		return nil, nil, nil, err
	}
	if _, err := s.ResidualOutputJacobianCache(x, y); err != nil {
		return nil, nil, nil, err
	}
	return s.rStar, s.JxStar, s.JyStar, nil
}

// CachedResidualsAndJacobians returns every currently cached result.
func (s *ImplicitSystem) CachedResidualsAndJacobians() ([]float64, *mat.Dense, *mat.Dense) {
	return s.rStar, s.JxStar, s.JyStar
}

// InvalidateAll forces every cached result, at both the system level and
// within every inner component, to recompute on the next Cache-variant
// call.
func (s *ImplicitSystem) InvalidateAll() {
	s.rValid, s.jxValid, s.jyValid = false, false, false
	for _, c := range s.components {
		c.InvalidateAll()
	}
}
