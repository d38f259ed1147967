// Copyright ©2026 The Compflow Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package system assembles explicit and implicit components into a
// directed graph, validating the routing between them and computing
// both outputs and Jacobians by forward-sweep evaluation and
// forward-mode/reverse-mode chain rule assembly.
package system // import "github.com/compflow/compflow/system"

import (
	"gonum.org/v1/gonum/mat"

	"github.com/compflow/compflow"
)

// Mode selects the chain rule assembly strategy for an explicit system's
// Jacobian.
type Mode int

const (
	// ModeAuto picks forward when nx <= ny and reverse otherwise.
	ModeAuto Mode = iota
	ModeForward
	ModeReverse
)

// ExplicitInner is the subset of component.ExplicitComponent that a
// system needs from its inner components, so that a converted implicit
// component (solve.ToExplicit) or a nested system can stand in for a
// plain component.ExplicitComponent.
type ExplicitInner interface {
	NX() int
	NY() int
	InVars() []compflow.Variable
	OutVars() []compflow.Variable
	OutMut() []compflow.Variable
	Outputs(x []float64) ([]float64, error)
	Jacobian(x []float64) (*mat.Dense, error)
	OutputsAndJacobian(x []float64) ([]float64, *mat.Dense, error)
	InvalidateAll()
}

// Config carries construction options for an ExplicitSystem.
type Config struct {
	Mode Mode
}

// ExplicitSystem composes inner explicit components into a DAG: argin
// feeds each component's inputs, every component's published output
// feeds later components or the system's argout, and cycles between
// explicit components are rejected at construction.
type ExplicitSystem struct {
	components []ExplicitInner
	argin      []compflow.Variable
	argout     []compflow.Variable

	inLayout  compflow.VarLayout
	outLayout compflow.VarLayout

	reg        *registry
	P          []*mat.Dense // per-component input selector, (nx_k, width)
	outRange   []compflow.Range
	S          *mat.Dense // argout selector, (ny, width)
	nx, ny     int
	mode       Mode

	xStar  []float64
	yStar  []float64
	JStar  *mat.Dense
	yValid bool
	jValid bool
}

// NewExplicitSystem validates the routing between argin, components and
// argout and builds the system's evaluation plan. Construction fails
// with *UnresolvedInputError, *CycleError or *UnresolvedOutputError when
// the graph does not close.
func NewExplicitSystem(argin, argout []compflow.Variable, components []ExplicitInner, cfg *Config) (*ExplicitSystem, error) {
	if cfg == nil {
		cfg = &Config{}
	}
	reg := newRegistry()
	inLayout := reg.register(argin)
	nx := inLayout.Width()

	publish := make([][]compflow.Variable, len(components))
	future := make(map[string]bool)
	for k, c := range components {
		pk := append(append([]compflow.Variable{}, c.OutVars()...), c.OutMut()...)
		publish[k] = pk
		for _, v := range pk {
			future[v.Name()] = true
		}
	}

	P := make([]*mat.Dense, len(components))
	outRange := make([]compflow.Range, len(components))
	for k, c := range components {
		for _, v := range c.InVars() {
			if _, ok := reg.lookup(v.Name()); ok {
				continue
			}
			if future[v.Name()] {
				return nil, &CycleError{Component: k, Variable: v.Name()}
			}
			return nil, &UnresolvedInputError{Component: k, Variable: v.Name()}
		}
		Pk, err := selector(c.InVars(), reg, func(name string) error {
			return &UnresolvedInputError{Component: k, Variable: name}
		})
		if err != nil {
			return nil, err
		}
		P[k] = Pk

		before := reg.width
		outLayoutK := reg.register(publish[k])
		outRange[k] = compflow.Range{Offset: before, Size: outLayoutK.Width()}
	}

	// Each Pₖ above spans only the rows registered before component k;
	// widen it to the final row space so it lines up with flat and D.
	for k, Pk := range P {
		rows, cols := Pk.Dims()
		full := mat.NewDense(rows, reg.width, nil)
		full.Slice(0, rows, 0, cols).(*mat.Dense).Copy(Pk)
		P[k] = full
	}

	outLayout := compflow.NewVarLayout(argout)
	S, err := selector(argout, reg, func(name string) error {
		return &UnresolvedOutputError{Variable: name}
	})
	if err != nil {
		return nil, err
	}

	s := &ExplicitSystem{
		components: components,
		argin:      argin,
		argout:     argout,
		inLayout:   inLayout,
		outLayout:  outLayout,
		reg:        reg,
		P:          P,
		outRange:   outRange,
		S:          S,
		nx:         nx,
		ny:         outLayout.Width(),
		mode:       cfg.Mode,
	}
	s.xStar = make([]float64, nx)
	s.yStar = make([]float64, s.ny)
	s.JStar = mat.NewDense(s.ny, nx, nil)
	return s, nil
}

// An ExplicitSystem satisfies the same contract as its inner components,
// so systems nest arbitrarily.
var _ ExplicitInner = (*ExplicitSystem)(nil)

// NX and NY return the system's flat input and output widths.
func (s *ExplicitSystem) NX() int { return s.nx }
func (s *ExplicitSystem) NY() int { return s.ny }

// InVars returns the system's declared argin tuple.
func (s *ExplicitSystem) InVars() []compflow.Variable { return s.argin }

// OutVars returns the system's declared argout tuple.
func (s *ExplicitSystem) OutVars() []compflow.Variable { return s.argout }

// OutMut is always empty: a system's outputs are gathered, never
// populated in place by a user function.
func (s *ExplicitSystem) OutMut() []compflow.Variable { return nil }

func (s *ExplicitSystem) effectiveMode() Mode {
	if s.mode != ModeAuto {
		return s.mode
	}
	if s.nx <= s.ny {
		return ModeForward
	}
	return ModeReverse
}

// gather extracts component k's flat input vector from the system's
// accumulated row space via its selector Pₖ.
func (s *ExplicitSystem) gather(k int, flat []float64) []float64 {
	flatVec := mat.NewVecDense(len(flat), flat)
	xk := mat.NewVecDense(s.P[k].RawMatrix().Rows, nil)
	xk.MulVec(s.P[k], flatVec)
	return xk.RawVector().Data
}

// evalForwardSweep runs every inner component in declared order,
// publishing outputs into a full-width row-space vector.
func (s *ExplicitSystem) evalForwardSweep(x []float64) ([]float64, error) {
	if len(x) < s.nx {
		return nil, &compflow.SizeMismatchError{Have: len(x), Want: s.nx}
	}
	flat := make([]float64, s.reg.width)
	copy(flat[:s.nx], x)
	for k, c := range s.components {
		xk := s.gather(k, flat)
		yk, err := c.Outputs(xk)
		if err != nil {
			return nil, err
		}
		copy(flat[s.outRange[k].Offset:s.outRange[k].Offset+s.outRange[k].Size], yk)
	}
	return flat, nil
}

func (s *ExplicitSystem) selectOutput(flat []float64) []float64 {
	flatVec := mat.NewVecDense(len(flat), flat)
	y := mat.NewVecDense(s.ny, nil)
	y.MulVec(s.S, flatVec)
	return y.RawVector().Data
}

// Outputs allocates and returns a fresh system output vector.
func (s *ExplicitSystem) Outputs(x []float64) ([]float64, error) {
	flat, err := s.evalForwardSweep(x)
	if err != nil {
		return nil, err
	}
	return s.selectOutput(flat), nil
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

func (s *ExplicitSystem) sameAsCache(x []float64) bool { return equalVec(x, s.xStar) }

func (s *ExplicitSystem) adoptX(x []float64) {
	if !s.sameAsCache(x) {
		copy(s.xStar, x)
		s.yValid, s.jValid = false, false
	}
}

// OutputsInto writes the system output into dst and updates the cache.
func (s *ExplicitSystem) OutputsInto(dst, x []float64) error {
	y, err := s.Outputs(x)
	if err != nil {
		return err
	}
	copy(dst, y)
	s.adoptX(x)
	copy(s.yStar, y)
	s.yValid = true
	return nil
}

// OutputsCache evaluates into, and returns a reference to, the system's
// own cache, skipping recomputation if x matches the cached input.
func (s *ExplicitSystem) OutputsCache(x []float64) ([]float64, error) {
	if s.sameAsCache(x) && s.yValid {
		return s.yStar, nil
	}
	return s.OutputsForce(x)
}

// OutputsForce recomputes unconditionally and updates the cache.
func (s *ExplicitSystem) OutputsForce(x []float64) ([]float64, error) {
	y, err := s.Outputs(x)
	if err != nil {
		return nil, err
	}
	s.adoptX(x)
	copy(s.yStar, y)
	s.yValid = true
	return s.yStar, nil
}

// CachedOutputs returns the currently cached system output.
func (s *ExplicitSystem) CachedOutputs() []float64 { return s.yStar }

// jacobianForward assembles the system Jacobian by forward-mode chain
// rule accumulation: D starts as the identity over the argin rows, and
// each component appends Jₖ·Pₖ·D for its published outputs.
func (s *ExplicitSystem) jacobianForward(flat []float64) (*mat.Dense, error) {
	D := mat.NewDense(s.reg.width, s.nx, nil)
	for i := 0; i < s.nx; i++ {
		D.Set(i, i, 1)
	}
	for k, c := range s.components {
		xk := s.gather(k, flat)
		Jk, err := c.Jacobian(xk)
		if err != nil {
			return nil, err
		}
		Din := mat.NewDense(s.P[k].RawMatrix().Rows, s.nx, nil)
		Din.Mul(s.P[k], D)
		contrib := mat.NewDense(c.NY(), s.nx, nil)
		contrib.Mul(Jk, Din)
		rg := s.outRange[k]
		D.Slice(rg.Offset, rg.Offset+rg.Size, 0, s.nx).(*mat.Dense).Copy(contrib)
	}
	J := mat.NewDense(s.ny, s.nx, nil)
	J.Mul(s.S, D)
	return J, nil
}

// jacobianReverse assembles the system Jacobian by reverse-mode chain
// rule accumulation: adjoints start as the argout row selector and sweep
// the components in reverse declared order, accumulating
// adj_upstream·Jₖ·Pₖ into the full row space so that fan-in sums.
func (s *ExplicitSystem) jacobianReverse(flat []float64) (*mat.Dense, error) {
	adj := mat.NewDense(s.ny, s.reg.width, nil)
	adj.Copy(s.S)
	for k := len(s.components) - 1; k >= 0; k-- {
		c := s.components[k]
		rg := s.outRange[k]
		adjUp := adj.Slice(0, s.ny, rg.Offset, rg.Offset+rg.Size)
		xk := s.gather(k, flat)
		Jk, err := c.Jacobian(xk)
		if err != nil {
			return nil, err
		}
		contrib := mat.NewDense(s.ny, c.NX(), nil)
		contrib.Mul(adjUp, Jk)
		scattered := mat.NewDense(s.ny, s.reg.width, nil)
		scattered.Mul(contrib, s.P[k])
		adj.Add(adj, scattered)
	}
	J := mat.NewDense(s.ny, s.nx, nil)
	J.Copy(adj.Slice(0, s.ny, 0, s.nx))
	return J, nil
}

// Jacobian allocates and returns a fresh system Jacobian, choosing
// forward- or reverse-mode assembly per the system's Mode policy.
func (s *ExplicitSystem) Jacobian(x []float64) (*mat.Dense, error) {
	flat, err := s.evalForwardSweep(x)
	if err != nil {
		return nil, err
	}
	if s.effectiveMode() == ModeForward {
		return s.jacobianForward(flat)
	}
	return s.jacobianReverse(flat)
}

// JacobianInto writes the Jacobian into dst and updates the cache.
func (s *ExplicitSystem) JacobianInto(dst *mat.Dense, x []float64) error {
	J, err := s.Jacobian(x)
	if err != nil {
		return err
	}
	dst.Copy(J)
	s.adoptX(x)
	s.JStar.Copy(J)
	s.jValid = true
	return nil
}

// JacobianCache evaluates into, and returns a reference to, the cache,
// skipping recomputation when current.
func (s *ExplicitSystem) JacobianCache(x []float64) (*mat.Dense, error) {
	if s.sameAsCache(x) && s.jValid {
		return s.JStar, nil
	}
	return s.JacobianForce(x)
}

// JacobianForce recomputes the Jacobian unconditionally.
func (s *ExplicitSystem) JacobianForce(x []float64) (*mat.Dense, error) {
	J, err := s.Jacobian(x)
	if err != nil {
		return nil, err
	}
	s.adoptX(x)
	s.JStar.Copy(J)
	s.jValid = true
	return s.JStar, nil
}

// CachedJacobian returns the currently cached Jacobian.
func (s *ExplicitSystem) CachedJacobian() *mat.Dense { return s.JStar }

// OutputsAndJacobian allocates and returns both fresh results.
func (s *ExplicitSystem) OutputsAndJacobian(x []float64) ([]float64, *mat.Dense, error) {
	flat, err := s.evalForwardSweep(x)
	if err != nil {
		return nil, nil, err
	}
	y := s.selectOutput(flat)
	var J *mat.Dense
	if s.effectiveMode() == ModeForward {
		J, err = s.jacobianForward(flat)
	} else {
		J, err = s.jacobianReverse(flat)
	}
	if err != nil {
		return nil, nil, err
	}
	return y, J, nil
}

// OutputsAndJacobianInto writes both results into the caller's buffers
// and updates the cache.
func (s *ExplicitSystem) OutputsAndJacobianInto(dstY []float64, dstJ *mat.Dense, x []float64) error {
	y, J, err := s.OutputsAndJacobian(x)
	if err != nil {
		return err
	}
	copy(dstY, y)
	dstJ.Copy(J)
	s.adoptX(x)
	copy(s.yStar, y)
	s.JStar.Copy(J)
	s.yValid, s.jValid = true, true
	return nil
}

// OutputsAndJacobianCache evaluates into, and returns references to, the
// cache, skipping recomputation if both are already current with respect
// to x.
func (s *ExplicitSystem) OutputsAndJacobianCache(x []float64) ([]float64, *mat.Dense, error) {
	if s.sameAsCache(x) && s.yValid && s.jValid {
		return s.yStar, s.JStar, nil
	}
	return s.OutputsAndJacobianForce(x)
}

// OutputsAndJacobianForce recomputes both results unconditionally and
// updates the cache.
func (s *ExplicitSystem) OutputsAndJacobianForce(x []float64) ([]float64, *mat.Dense, error) {
	y, J, err := s.OutputsAndJacobian(x)
	if err != nil {
		return nil, nil, err
	}
	s.adoptX(x)
	copy(s.yStar, y)
	s.JStar.Copy(J)
	s.yValid, s.jValid = true, true
	return s.yStar, s.JStar, nil
}

// CachedOutputsAndJacobian returns both currently cached results without
// recomputation.
func (s *ExplicitSystem) CachedOutputsAndJacobian() ([]float64, *mat.Dense) {
	return s.yStar, s.JStar
}

// InvalidateAll forces every cached result, at both the system level and
// within every inner component, to recompute on the next Cache-variant
// call: a deep invalidation, one level stronger than the Force variants,
// which recompute only the system's own results.
func (s *ExplicitSystem) InvalidateAll() {
	s.yValid, s.jValid = false, false
	for _, c := range s.components {
		c.InvalidateAll()
	}
}
