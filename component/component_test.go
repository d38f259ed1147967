// Copyright ©2026 The Compflow Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package component

import (
	"testing"

	"gonum.org/v1/gonum/floats/scalar"
	"gonum.org/v1/gonum/mat"

	"github.com/compflow/compflow"
	"github.com/compflow/compflow/deriv"
)

// paraboloidFn implements f(x, y) = (x-3)^2 + x*y + (y+4)^2 - 3, the
// explicit primal used throughout these tests.
func paraboloidFn(outMut []compflow.View, in []compflow.View) []float64 {
	xv, yv := in[0].At(), in[1].At()
	return []float64{(xv-3)*(xv-3) + xv*yv + (yv+4)*(yv+4) - 3}
}

func paraboloidDf(x []float64) *mat.Dense {
	u, v := x[0], x[1]
	return mat.NewDense(1, 2, []float64{2*(u-3) + v, u + 2*(v+4)})
}

func newParaboloid() *ExplicitComponent {
	in := []compflow.Variable{compflow.Scalar("x", 0), compflow.Scalar("y", 0)}
	out := []compflow.Variable{compflow.Scalar("f", 0)}
	return NewExplicit(in, out, nil, paraboloidFn, nil)
}

// TestParaboloidOutputsAndJacobian pins the paraboloid at x = (0, 0):
// f = 22 and ∂f = [-6, 8].
func TestParaboloidOutputsAndJacobian(t *testing.T) {
	c := newParaboloid()
	y, J, err := c.OutputsAndJacobian([]float64{0, 0})
	if err != nil {
		t.Fatalf("OutputsAndJacobian: %v", err)
	}
	if !scalar.EqualWithinAbsOrRel(y[0], 22, 1e-6, 1e-6) {
		t.Errorf("y = %v, want 22", y[0])
	}
	if !scalar.EqualWithinAbsOrRel(J.At(0, 0), -6, 1e-4, 1e-4) ||
		!scalar.EqualWithinAbsOrRel(J.At(0, 1), 8, 1e-4, 1e-4) {
		t.Errorf("J = [%v %v], want [-6 8]", J.At(0, 0), J.At(0, 1))
	}
}

// TestCallVariantEquivalence checks that for a fixed x the query, Into,
// Cache, Force and Cached variants all agree.
func TestCallVariantEquivalence(t *testing.T) {
	c := newParaboloid()
	x := []float64{1, 2}

	y1, err := c.Outputs(x)
	if err != nil {
		t.Fatal(err)
	}
	dst := make([]float64, 1)
	if err := c.OutputsInto(dst, x); err != nil {
		t.Fatal(err)
	}
	y3, err := c.OutputsCache(x)
	if err != nil {
		t.Fatal(err)
	}
	y4, err := c.OutputsForce(x)
	if err != nil {
		t.Fatal(err)
	}
	y5 := c.CachedOutputs()

	for _, y := range [][]float64{dst, y3, y4, y5} {
		if !scalar.EqualWithinAbsOrRel(y[0], y1[0], 1e-12, 1e-12) {
			t.Errorf("call variants disagree: %v vs %v", y, y1)
		}
	}

	// A second OutputsCache call at the same x must not recompute; the
	// cached slice is returned unchanged.
	y6, err := c.OutputsCache(x)
	if err != nil {
		t.Fatal(err)
	}
	if &y6[0] != &c.yStar[0] {
		t.Errorf("OutputsCache did not return the live cache slice")
	}
}

// TestExplicitComponentWithAnalyticJacobian checks that a user-supplied
// analytic Jacobian is honored instead of the default finite-difference
// fallback.
func TestExplicitComponentWithAnalyticJacobian(t *testing.T) {
	in := []compflow.Variable{compflow.Scalar("x", 0), compflow.Scalar("y", 0)}
	out := []compflow.Variable{compflow.Scalar("f", 0)}
	jac := deriv.NewAnalytic(nil, paraboloidDf, nil)
	c := NewExplicit(in, out, nil, paraboloidFn, &Config{Deriv: jac})

	J, err := c.Jacobian([]float64{0, 0})
	if err != nil {
		t.Fatalf("Jacobian: %v", err)
	}
	if !scalar.EqualWithinAbsOrRel(J.At(0, 0), -6, 1e-12, 1e-12) ||
		!scalar.EqualWithinAbsOrRel(J.At(0, 1), 8, 1e-12, 1e-12) {
		t.Errorf("J = [%v %v], want [-6 8]", J.At(0, 0), J.At(0, 1))
	}
}

// TestOutMutOrdering checks the flat output layout of a component whose
// user function both returns values and populates in-place buffers: all
// non-mutating out_vars come first, then all out_mut, each in declaration
// order.
func TestOutMutOrdering(t *testing.T) {
	in := []compflow.Variable{compflow.Scalar("x", 0)}
	out := []compflow.Variable{compflow.Scalar("double", 0)}
	outMut := []compflow.Variable{compflow.Vector("powers", []float64{0, 0})}

	fn := func(outMut []compflow.View, in []compflow.View) []float64 {
		x := in[0].At()
		outMut[0].Set(x*x, 0)
		outMut[0].Set(x*x*x, 1)
		return []float64{2 * x}
	}
	c := NewExplicit(in, out, outMut, fn, nil)
	if c.NY() != 3 {
		t.Fatalf("NY = %d, want 3", c.NY())
	}

	y, err := c.Outputs([]float64{3})
	if err != nil {
		t.Fatalf("Outputs: %v", err)
	}
	want := []float64{6, 9, 27}
	for i := range want {
		if !scalar.EqualWithinAbsOrRel(y[i], want[i], 1e-12, 1e-12) {
			t.Errorf("y = %v, want %v", y, want)
			break
		}
	}

	// The default finite-difference Jacobian spans the full flat output,
	// returned and mutated halves alike.
	J, err := c.Jacobian([]float64{3})
	if err != nil {
		t.Fatalf("Jacobian: %v", err)
	}
	wantJ := []float64{2, 6, 27}
	for i := range wantJ {
		if !scalar.EqualWithinAbsOrRel(J.At(i, 0), wantJ[i], 1e-4, 1e-4) {
			t.Errorf("J[%d][0] = %v, want %v", i, J.At(i, 0), wantJ[i])
		}
	}
}

// TestLiftParaboloid lifts the paraboloid into an implicit component; at
// x = (1, 2), y = 9:
//
//	r = 9 - ((1-3)^2 + 1*2 + (2+4)^2 - 3) = 9 - 39 = -30
//	∂r/∂y = 1
//	∂r/∂x = [-(2*(1-3)+2), -(1+2*(2+4))] = [2, -13]
func TestLiftParaboloid(t *testing.T) {
	ec := newParaboloid()
	ic := Lift(ec)

	x := []float64{1, 2}
	y := []float64{9}

	r, err := ic.Residuals(x, y)
	if err != nil {
		t.Fatalf("Residuals: %v", err)
	}
	if !scalar.EqualWithinAbsOrRel(r[0], -30, 1e-6, 1e-6) {
		t.Errorf("r = %v, want -30", r[0])
	}

	Jy, err := ic.ResidualOutputJacobian(x, y)
	if err != nil {
		t.Fatalf("ResidualOutputJacobian: %v", err)
	}
	if !scalar.EqualWithinAbsOrRel(Jy.At(0, 0), 1, 1e-12, 1e-12) {
		t.Errorf("∂r/∂y = %v, want 1", Jy.At(0, 0))
	}

	Jx, err := ic.ResidualInputJacobian(x, y)
	if err != nil {
		t.Fatalf("ResidualInputJacobian: %v", err)
	}
	if !scalar.EqualWithinAbsOrRel(Jx.At(0, 0), 2, 1e-4, 1e-4) ||
		!scalar.EqualWithinAbsOrRel(Jx.At(0, 1), -13, 1e-4, 1e-4) {
		t.Errorf("∂r/∂x = [%v %v], want [2 -13]", Jx.At(0, 0), Jx.At(0, 1))
	}
}
