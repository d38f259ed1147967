// Copyright ©2026 The Compflow Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package solve

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/floats/scalar"
	"gonum.org/v1/gonum/mat"

	"github.com/compflow/compflow"
	"github.com/compflow/compflow/component"
	"github.com/compflow/compflow/deriv"
	"github.com/compflow/compflow/system"
)

// sellarDiscipline1 implements y1 = z1² + z2 + x − 0.2·y2 as an implicit
// residual r1 = y1 − (z1² + z2 + x − 0.2·y2), with analytic derivative
// providers for both Jacobian blocks.
func sellarDiscipline1() *component.ImplicitComponent {
	in := []compflow.Variable{
		compflow.Scalar("x", 0), compflow.Scalar("z1", 0), compflow.Scalar("z2", 0),
		compflow.Scalar("y2", 0),
	}
	// The default seeds Newton's warm start; y1 must start positive so
	// that the coupled √y1 discipline's Jacobian is finite at the first
	// iterate.
	out := []compflow.Variable{compflow.Scalar("y1", 1)}

	fn := func(x, y []compflow.View) []float64 {
		xv, z1, z2, y2 := x[0].At(), x[1].At(), x[2].At(), x[3].At()
		y1 := y[0].At()
		return []float64{y1 - (z1*z1 + z2 + xv - 0.2*y2)}
	}
	xDeriv := deriv.NewAnalytic(nil, func(x []float64) *mat.Dense {
		z1 := x[1]
		return mat.NewDense(1, 4, []float64{-1, -2 * z1, -1, 0.2})
	}, nil)
	yDeriv := deriv.NewAnalytic(nil, func(y []float64) *mat.Dense {
		return mat.NewDense(1, 1, []float64{1})
	}, nil)
	return component.NewImplicit(in, out, fn, &component.ImplicitConfig{XDeriv: xDeriv, YDeriv: yDeriv})
}

// sellarDiscipline2 implements y2 = √y1 + z1 + z2 as an implicit residual
// r2 = y2 − (√y1 + z1 + z2), with analytic derivative providers.
func sellarDiscipline2() *component.ImplicitComponent {
	in := []compflow.Variable{
		compflow.Scalar("y1", 1), compflow.Scalar("z1", 0), compflow.Scalar("z2", 0),
	}
	out := []compflow.Variable{compflow.Scalar("y2", 1)}

	fn := func(x, y []compflow.View) []float64 {
		y1, z1, z2 := x[0].At(), x[1].At(), x[2].At()
		y2 := y[0].At()
		return []float64{y2 - (math.Sqrt(y1) + z1 + z2)}
	}
	xDeriv := deriv.NewAnalytic(nil, func(x []float64) *mat.Dense {
		y1 := x[0]
		return mat.NewDense(1, 3, []float64{-1 / (2 * math.Sqrt(y1)), -1, -1})
	}, nil)
	yDeriv := deriv.NewAnalytic(nil, func(y []float64) *mat.Dense {
		return mat.NewDense(1, 1, []float64{1})
	}, nil)
	return component.NewImplicit(in, out, fn, &component.ImplicitConfig{XDeriv: xDeriv, YDeriv: yDeriv})
}

// sellarOutputs implements the objective and constraints
// f = x² + z1 + y1 + e^(−y2), g1 = 3.16 − y1, g2 = y2 − 24, with an
// analytic Jacobian with respect to (x, z1, z2, y1, y2).
func sellarOutputs() *component.ExplicitComponent {
	in := []compflow.Variable{
		compflow.Scalar("x", 0), compflow.Scalar("z1", 0), compflow.Scalar("z2", 0),
		compflow.Scalar("y1", 0), compflow.Scalar("y2", 0),
	}
	out := []compflow.Variable{
		compflow.Scalar("f", 0), compflow.Scalar("g1", 0), compflow.Scalar("g2", 0),
	}
	fn := func(outMut []compflow.View, in []compflow.View) []float64 {
		x, z1, _, y1, y2 := in[0].At(), in[1].At(), in[2].At(), in[3].At(), in[4].At()
		f := x*x + z1 + y1 + math.Exp(-y2)
		g1 := 3.16 - y1
		g2 := y2 - 24
		return []float64{f, g1, g2}
	}
	df := func(x []float64) *mat.Dense {
		xv, _, _, _, y2 := x[0], x[1], x[2], x[3], x[4]
		return mat.NewDense(3, 5, []float64{
			2 * xv, 1, 0, 1, -math.Exp(-y2),
			0, 0, 0, -1, 0,
			0, 0, 0, 0, 1,
		})
	}
	return component.NewExplicit(in, out, nil, fn, &component.Config{Deriv: deriv.NewAnalytic(nil, df, nil)})
}

// sellarSystem assembles the Sellar MDA: the two coupled disciplines
// wrapped into an implicit subsystem, solved by Newton iteration and
// exposed as an explicit inner component of the outer system together
// with the outputs discipline.
func sellarSystem(t *testing.T) *system.ExplicitSystem {
	t.Helper()
	argin := []compflow.Variable{
		compflow.Scalar("x", 0), compflow.Scalar("z1", 0), compflow.Scalar("z2", 0),
	}
	d1 := sellarDiscipline1()
	d2 := sellarDiscipline2()

	mda, err := system.NewImplicitSystem(argin, []system.ImplicitInner{d1, d2})
	if err != nil {
		t.Fatalf("NewImplicitSystem: %v", err)
	}
	mdaExplicit := ToExplicit(mda, Newton{})

	outputs := sellarOutputs()

	argout := []compflow.Variable{
		compflow.Scalar("f", 0), compflow.Scalar("g1", 0), compflow.Scalar("g2", 0),
	}
	sys, err := system.NewExplicitSystem(argin, argout, []system.ExplicitInner{mdaExplicit, outputs}, nil)
	if err != nil {
		t.Fatalf("NewExplicitSystem: %v", err)
	}
	return sys
}

// TestSellarMDA pins the converged Sellar multidisciplinary analysis
// Jacobian at a fixed design point, computed through a Newton-solved
// implicit subsystem nested inside an explicit outer system.
func TestSellarMDA(t *testing.T) {
	sys := sellarSystem(t)
	x := []float64{0.29, 0.78, 0.60}

	_, J, err := sys.OutputsAndJacobian(x)
	if err != nil {
		t.Fatalf("OutputsAndJacobian: %v", err)
	}
	if r, c := J.Dims(); r != 3 || c != 3 {
		t.Fatalf("Jacobian dims = (%d, %d), want (3, 3)", r, c)
	}

	want := [][]float64{
		{1.44865684668, 2.08975601036, 0.60330817622},
		{-0.90992087775, -1.23749239485, -0.72793670331},
		{0.45039561123, 1.61253802570, 1.36031648341},
	}
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			if !scalar.EqualWithinAbsOrRel(J.At(i, j), want[i][j], 1e-6, 1e-6) {
				t.Errorf("J[%d][%d] = %.11f, want %.11f", i, j, J.At(i, j), want[i][j])
			}
		}
	}

	// Cross-check the analytic Jacobian against a one-sided forward finite
	// difference of the whole system's own Outputs call, independent of
	// the Newton/IFT machinery under test.
	h := 1e-6
	base, err := sys.Outputs(x)
	if err != nil {
		t.Fatalf("Outputs: %v", err)
	}
	for j := 0; j < 3; j++ {
		xp := append([]float64(nil), x...)
		xp[j] += h
		yp, err := sys.Outputs(xp)
		if err != nil {
			t.Fatalf("Outputs perturbed: %v", err)
		}
		for i := 0; i < 3; i++ {
			fd := (yp[i] - base[i]) / h
			if !scalar.EqualWithinAbsOrRel(J.At(i, j), fd, 1e-3, 1e-3) {
				t.Errorf("J[%d][%d] = %v, want ≈ %v (finite difference)", i, j, J.At(i, j), fd)
			}
		}
	}
}

// simpleImplicit wraps y² − x = 0 (y = √x for x > 0) for the round-trip
// and implicit-function-theorem consistency checks below.
func simpleImplicit() *component.ImplicitComponent {
	in := []compflow.Variable{compflow.Scalar("x", 1)}
	out := []compflow.Variable{compflow.Scalar("y", 1)}
	fn := func(x, y []compflow.View) []float64 {
		xv, yv := x[0].At(), y[0].At()
		return []float64{yv*yv - xv}
	}
	return component.NewImplicit(in, out, fn, nil)
}

// TestRoundTripExplicitImplicitExplicit checks that converting an
// explicit component to implicit and back (via Newton) reproduces the
// original outputs and Jacobian.
func TestRoundTripExplicitImplicitExplicit(t *testing.T) {
	in := []compflow.Variable{compflow.Scalar("x", 0), compflow.Scalar("y", 0)}
	out := []compflow.Variable{compflow.Scalar("f", 0)}
	fn := func(outMut []compflow.View, in []compflow.View) []float64 {
		x, y := in[0].At(), in[1].At()
		return []float64{(x-3)*(x-3) + x*y + (y+4)*(y+4) - 3}
	}
	ec := component.NewExplicit(in, out, nil, fn, nil)
	ic := ToImplicit(ec)
	back := ToExplicit(ic, Newton{})

	x := []float64{1, 2}
	wantY, wantJ, err := ec.OutputsAndJacobian(x)
	if err != nil {
		t.Fatalf("original OutputsAndJacobian: %v", err)
	}
	gotY, gotJ, err := back.OutputsAndJacobian(x)
	if err != nil {
		t.Fatalf("round-trip OutputsAndJacobian: %v", err)
	}

	for i := range wantY {
		if !scalar.EqualWithinAbsOrRel(wantY[i], gotY[i], 1e-6, 1e-6) {
			t.Errorf("output %d: want %v, got %v", i, wantY[i], gotY[i])
		}
	}
	r, c := wantJ.Dims()
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			if !scalar.EqualWithinAbsOrRel(wantJ.At(i, j), gotJ.At(i, j), 1e-6, 1e-6) {
				t.Errorf("J[%d][%d]: want %v, got %v", i, j, wantJ.At(i, j), gotJ.At(i, j))
			}
		}
	}
}

// TestImplicitFunctionTheoremConsistency checks that at a converged
// Newton solve, ∂r/∂y·∂y/∂x + ∂r/∂x ≈ 0.
func TestImplicitFunctionTheoremConsistency(t *testing.T) {
	ic := simpleImplicit()
	e := ToExplicit(ic, Newton{})

	x := []float64{4}
	y, J, err := e.OutputsAndJacobian(x)
	if err != nil {
		t.Fatalf("OutputsAndJacobian: %v", err)
	}

	Jy, err := ic.ResidualOutputJacobian(x, y)
	if err != nil {
		t.Fatalf("ResidualOutputJacobian: %v", err)
	}
	Jx, err := ic.ResidualInputJacobian(x, y)
	if err != nil {
		t.Fatalf("ResidualInputJacobian: %v", err)
	}

	lhs := mat.NewDense(ic.NR(), ic.NX(), nil)
	lhs.Mul(Jy, J)
	lhs.Add(lhs, Jx)

	r, c := lhs.Dims()
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			if !scalar.EqualWithinAbsOrRel(lhs.At(i, j), 0, 1e-6, 1e-6) {
				t.Errorf("∂r/∂y·∂y/∂x + ∂r/∂x [%d][%d] = %v, want ≈ 0", i, j, lhs.At(i, j))
			}
		}
	}
}
