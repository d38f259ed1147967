// Copyright ©2026 The Compflow Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package compflow

import (
	"math/rand"
	"testing"

	"gonum.org/v1/gonum/floats"
)

func randomDefault(rng *rand.Rand, n int) []float64 {
	d := make([]float64, n)
	for i := range d {
		d[i] = rng.Float64()
	}
	return d
}

// TestPackingRoundTrip checks that Combine then Separate returns
// element-wise-equal values for scalar, 1-D and 4-D variables.
func TestPackingRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	vars := []Variable{
		Scalar("alpha", rng.Float64()),
		Vector("beta", randomDefault(rng, 10)),
		Array("gamma", []int{10, 10, 10, 10}, randomDefault(rng, 10*10*10*10)),
	}

	v := Combine(vars)
	views := Separate(vars, v)
	if len(views) != len(vars) {
		t.Fatalf("got %d views, want %d", len(views), len(vars))
	}
	for i, vr := range vars {
		if !floats.Equal(views[i].Flat(), vr.Default()) {
			t.Errorf("var %q: separate(combine(v)) != default", vr.Name())
		}
		if !shapeEqual(views[i].Shape(), vr.Shape()) {
			t.Errorf("var %q: shape mismatch, got %v want %v", vr.Name(), views[i].Shape(), vr.Shape())
		}
	}

	// combine! into an oversized buffer equals combine.
	big := make([]float64, NewVarLayout(vars).Width()+7)
	if err := CombineInto(big, vars); err != nil {
		t.Fatalf("CombineInto: %v", err)
	}
	if !floats.Equal(big[:len(v)], v) {
		t.Errorf("CombineInto into oversized buffer != Combine")
	}
}

func TestCombineIntoSizeMismatch(t *testing.T) {
	vars := []Variable{Vector("x", []float64{1, 2, 3})}
	dst := make([]float64, 2)
	err := CombineInto(dst, vars)
	if err == nil {
		t.Fatal("expected SizeMismatchError, got nil")
	}
	var smErr *SizeMismatchError
	if !asSizeMismatch(err, &smErr) {
		t.Fatalf("expected *SizeMismatchError, got %T", err)
	}
}

func asSizeMismatch(err error, target **SizeMismatchError) bool {
	e, ok := err.(*SizeMismatchError)
	if ok {
		*target = e
	}
	return ok
}

func shapeEqual(a, b []int) bool {
	if len(a) != len(b) {
		return len(a) == 0 && len(b) == 0
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestSeparateIntoCopies(t *testing.T) {
	vars := []Variable{Scalar("a", 1), Vector("b", []float64{2, 3, 4})}
	v := Combine(vars)
	dst := [][]float64{make([]float64, 1), make([]float64, 3)}
	if err := SeparateInto(dst, vars, v); err != nil {
		t.Fatalf("SeparateInto: %v", err)
	}
	if dst[0][0] != 1 || dst[1][0] != 2 || dst[1][1] != 3 || dst[1][2] != 4 {
		t.Errorf("SeparateInto copied wrong values: %v", dst)
	}
	// Mutating dst must not write through to v (it is a copy, not a view).
	dst[0][0] = 99
	if v[0] == 99 {
		t.Errorf("SeparateInto must copy, not view")
	}
}
