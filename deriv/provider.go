// Copyright ©2026 The Compflow Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package deriv supplies the derivative provider abstraction: analytic,
// automatic (forward and reverse mode) and finite-difference (forward,
// central, complex-step) Jacobian computation behind a single Provider
// interface, with a common fallback and preference policy.
package deriv // import "github.com/compflow/compflow/deriv"

import (
	"errors"

	"gonum.org/v1/gonum/mat"
)

// ErrProviderUnavailable signifies that a requested Jacobian or output
// cannot be produced by a provider: neither an analytic routine nor a
// compatible AD/FD routine applies.
var ErrProviderUnavailable = errors.New("deriv: provider unavailable for this call")

// Primal is a user-supplied output-mapping function operating on plain
// float64 vectors.
type Primal func(x []float64) []float64

// Provider is the common evaluator interface shared by every derivative
// provider variant (Analytic, ForwardAD, ReverseAD, ForwardFD, CentralFD,
// ComplexFD). Each of Outputs, Jacobian and OutputsAndJacobian returns
// ErrProviderUnavailable if the underlying variant cannot answer that
// particular query.
type Provider interface {
	// Outputs evaluates the primal at x.
	Outputs(x []float64) ([]float64, error)
	// Jacobian evaluates d(outputs)/dx at x, shape (ny, nx).
	Jacobian(x []float64) (*mat.Dense, error)
	// OutputsAndJacobian evaluates both in one call.
	OutputsAndJacobian(x []float64) ([]float64, *mat.Dense, error)
}

// unsupported is embedded by concrete providers that cannot answer every
// method of Provider; it answers ErrProviderUnavailable for whichever
// methods the embedder does not override.
type unsupported struct{}

func (unsupported) Outputs(x []float64) ([]float64, error) {
	return nil, ErrProviderUnavailable
}

func (unsupported) Jacobian(x []float64) (*mat.Dense, error) {
	return nil, ErrProviderUnavailable
}

func (unsupported) OutputsAndJacobian(x []float64) ([]float64, *mat.Dense, error) {
	return nil, nil, ErrProviderUnavailable
}

// sequential is the default fallback for OutputsAndJacobian when a
// provider has no cheaper combined path of its own: it calls Outputs then
// Jacobian in sequence, per the framework's combined-call fallback policy.
func sequential(p Provider, x []float64) ([]float64, *mat.Dense, error) {
	y, err := p.Outputs(x)
	if err != nil {
		return nil, nil, err
	}
	J, err := p.Jacobian(x)
	if err != nil {
		return nil, nil, err
	}
	return y, J, nil
}
