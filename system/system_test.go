// Copyright ©2026 The Compflow Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package system

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/floats/scalar"

	"github.com/compflow/compflow"
	"github.com/compflow/compflow/component"
)

func paraboloidComponent() *component.ExplicitComponent {
	in := []compflow.Variable{compflow.Scalar("x", 0), compflow.Scalar("y", 0)}
	out := []compflow.Variable{compflow.Scalar("f_p", 0)}
	fn := func(outMut []compflow.View, in []compflow.View) []float64 {
		x, y := in[0].At(), in[1].At()
		return []float64{(x-3)*(x-3) + x*y + (y+4)*(y+4) - 3}
	}
	return component.NewExplicit(in, out, nil, fn, nil)
}

func quadraticComponent() *component.ExplicitComponent {
	in := []compflow.Variable{
		compflow.Scalar("f_p", 0), compflow.Scalar("a", 0),
		compflow.Scalar("b", 0), compflow.Scalar("c", 0),
	}
	out := []compflow.Variable{compflow.Scalar("f_q", 0)}
	fn := func(outMut []compflow.View, in []compflow.View) []float64 {
		fp, a, b, c := in[0].At(), in[1].At(), in[2].At(), in[3].At()
		return []float64{a*fp*fp + (b+c)*fp + 1}
	}
	return component.NewExplicit(in, out, nil, fn, nil)
}

func trigComponent() *component.ExplicitComponent {
	in := []compflow.Variable{compflow.Scalar("f_p", 0), compflow.Scalar("f_q", 0)}
	out := []compflow.Variable{compflow.Scalar("s", 0), compflow.Scalar("co", 0)}
	fn := func(outMut []compflow.View, in []compflow.View) []float64 {
		fp, fq := in[0].At(), in[1].At()
		return []float64{math.Sin(fp), math.Cos(fq)}
	}
	return component.NewExplicit(in, out, nil, fn, nil)
}

// TestExplicitSystemModeEquivalence checks that forward- and
// reverse-mode Jacobians of the trig outputs with respect to the five
// external inputs agree.
func TestExplicitSystemModeEquivalence(t *testing.T) {
	argin := []compflow.Variable{
		compflow.Scalar("x", 0), compflow.Scalar("y", 0),
		compflow.Scalar("a", 0), compflow.Scalar("b", 0), compflow.Scalar("c", 0),
	}
	argout := []compflow.Variable{compflow.Scalar("s", 0), compflow.Scalar("co", 0)}

	newSystem := func(mode Mode) *ExplicitSystem {
		comps := []ExplicitInner{paraboloidComponent(), quadraticComponent(), trigComponent()}
		sys, err := NewExplicitSystem(argin, argout, comps, &Config{Mode: mode})
		if err != nil {
			t.Fatalf("NewExplicitSystem: %v", err)
		}
		return sys
	}

	x := []float64{0.3, 1.2, 0.5, 0.7, -0.2}

	fwd := newSystem(ModeForward)
	rev := newSystem(ModeReverse)

	yFwd, Jfwd, err := fwd.OutputsAndJacobian(x)
	if err != nil {
		t.Fatalf("forward OutputsAndJacobian: %v", err)
	}
	yRev, Jrev, err := rev.OutputsAndJacobian(x)
	if err != nil {
		t.Fatalf("reverse OutputsAndJacobian: %v", err)
	}

	for i := range yFwd {
		if !scalar.EqualWithinAbsOrRel(yFwd[i], yRev[i], 1e-9, 1e-9) {
			t.Errorf("output %d: forward %v vs reverse %v", i, yFwd[i], yRev[i])
		}
	}
	r, c := Jfwd.Dims()
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			if !scalar.EqualWithinAbsOrRel(Jfwd.At(i, j), Jrev.At(i, j), 1e-4, 1e-4) {
				t.Errorf("J[%d][%d]: forward %v vs reverse %v", i, j, Jfwd.At(i, j), Jrev.At(i, j))
			}
		}
	}
}

// TestNestedSystem checks that an ExplicitSystem stands in for an inner
// component of another system: the paraboloid-quadratic pair wrapped as a
// subsystem must yield the same outputs and Jacobian as the flat
// three-component assembly.
func TestNestedSystem(t *testing.T) {
	argin := []compflow.Variable{
		compflow.Scalar("x", 0), compflow.Scalar("y", 0),
		compflow.Scalar("a", 0), compflow.Scalar("b", 0), compflow.Scalar("c", 0),
	}
	argout := []compflow.Variable{compflow.Scalar("s", 0), compflow.Scalar("co", 0)}

	inner, err := NewExplicitSystem(argin,
		[]compflow.Variable{compflow.Scalar("f_p", 0), compflow.Scalar("f_q", 0)},
		[]ExplicitInner{paraboloidComponent(), quadraticComponent()}, nil)
	if err != nil {
		t.Fatalf("inner NewExplicitSystem: %v", err)
	}
	nested, err := NewExplicitSystem(argin, argout, []ExplicitInner{inner, trigComponent()}, nil)
	if err != nil {
		t.Fatalf("outer NewExplicitSystem: %v", err)
	}
	flat, err := NewExplicitSystem(argin, argout,
		[]ExplicitInner{paraboloidComponent(), quadraticComponent(), trigComponent()}, nil)
	if err != nil {
		t.Fatalf("flat NewExplicitSystem: %v", err)
	}

	x := []float64{0.3, 1.2, 0.5, 0.7, -0.2}
	yNested, Jnested, err := nested.OutputsAndJacobian(x)
	if err != nil {
		t.Fatalf("nested OutputsAndJacobian: %v", err)
	}
	yFlat, Jflat, err := flat.OutputsAndJacobian(x)
	if err != nil {
		t.Fatalf("flat OutputsAndJacobian: %v", err)
	}

	for i := range yFlat {
		if !scalar.EqualWithinAbsOrRel(yNested[i], yFlat[i], 1e-9, 1e-9) {
			t.Errorf("output %d: nested %v vs flat %v", i, yNested[i], yFlat[i])
		}
	}
	r, c := Jflat.Dims()
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			if !scalar.EqualWithinAbsOrRel(Jnested.At(i, j), Jflat.At(i, j), 1e-4, 1e-4) {
				t.Errorf("J[%d][%d]: nested %v vs flat %v", i, j, Jnested.At(i, j), Jflat.At(i, j))
			}
		}
	}
}

// TestUnresolvedInput checks that a component whose input matches
// neither argin nor any earlier component's output fails construction
// with *UnresolvedInputError.
func TestUnresolvedInput(t *testing.T) {
	argin := []compflow.Variable{compflow.Scalar("x", 0), compflow.Scalar("y", 0)}
	argout := []compflow.Variable{compflow.Scalar("f_p", 0)}
	comps := []ExplicitInner{paraboloidComponent(), quadraticComponent()}

	_, err := NewExplicitSystem(argin, argout, comps, nil)
	if err == nil {
		t.Fatal("expected an UnresolvedInputError, got nil")
	}
	if _, ok := err.(*UnresolvedInputError); !ok {
		t.Errorf("got %T, want *UnresolvedInputError", err)
	}
}

// TestUnresolvedOutput checks that a declared argout variable that is
// not reachable from argin or any component's output fails construction
// with *UnresolvedOutputError.
func TestUnresolvedOutput(t *testing.T) {
	argin := []compflow.Variable{compflow.Scalar("x", 0), compflow.Scalar("y", 0)}
	argout := []compflow.Variable{compflow.Scalar("f_p", 0), compflow.Scalar("ghost", 0)}
	comps := []ExplicitInner{paraboloidComponent()}

	_, err := NewExplicitSystem(argin, argout, comps, nil)
	if err == nil {
		t.Fatal("expected an UnresolvedOutputError, got nil")
	}
	if _, ok := err.(*UnresolvedOutputError); !ok {
		t.Errorf("got %T, want *UnresolvedOutputError", err)
	}
}

// TestCycle checks that a direct two-explicit-component feedback (each
// consuming the other's output) fails construction with *CycleError;
// closing such a loop takes an implicit system instead.
func TestCycle(t *testing.T) {
	aIn := []compflow.Variable{compflow.Scalar("b_out", 0)}
	aOut := []compflow.Variable{compflow.Scalar("a_out", 0)}
	a := component.NewExplicit(aIn, aOut, nil, func(outMut, in []compflow.View) []float64 {
		return []float64{in[0].At() + 1}
	}, nil)

	bIn := []compflow.Variable{compflow.Scalar("a_out", 0)}
	bOut := []compflow.Variable{compflow.Scalar("b_out", 0)}
	b := component.NewExplicit(bIn, bOut, nil, func(outMut, in []compflow.View) []float64 {
		return []float64{in[0].At() * 2}
	}, nil)

	_, err := NewExplicitSystem(nil, aOut, []ExplicitInner{a, b}, nil)
	if err == nil {
		t.Fatal("expected a CycleError, got nil")
	}
	if _, ok := err.(*CycleError); !ok {
		t.Errorf("got %T, want *CycleError", err)
	}
}
