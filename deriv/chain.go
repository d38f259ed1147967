// Copyright ©2026 The Compflow Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package deriv

import (
	"errors"

	"gonum.org/v1/gonum/mat"
)

// Chain composes providers into one that tries each, in order, for every
// call: an analytic provider listed first is therefore always preferred
// over an AD/FD provider listed after it, and a provider that only
// supplies half of a capability (say, Jacobian but not Outputs) falls
// through to the next entry rather than failing the whole chain. A member
// failing with anything other than ErrProviderUnavailable aborts the
// chain immediately with that error.
func Chain(providers ...Provider) Provider {
	return chain(providers)
}

type chain []Provider

func (c chain) Outputs(x []float64) ([]float64, error) {
	for _, p := range c {
		y, err := p.Outputs(x)
		if err == nil {
			return y, nil
		}
		if !errors.Is(err, ErrProviderUnavailable) {
			return nil, err
		}
	}
	return nil, ErrProviderUnavailable
}

func (c chain) Jacobian(x []float64) (*mat.Dense, error) {
	for _, p := range c {
		J, err := p.Jacobian(x)
		if err == nil {
			return J, nil
		}
		if !errors.Is(err, ErrProviderUnavailable) {
			return nil, err
		}
	}
	return nil, ErrProviderUnavailable
}

func (c chain) OutputsAndJacobian(x []float64) ([]float64, *mat.Dense, error) {
	for _, p := range c {
		y, J, err := p.OutputsAndJacobian(x)
		if err == nil {
			return y, J, nil
		}
		if !errors.Is(err, ErrProviderUnavailable) {
			return nil, nil, err
		}
	}
	return nil, nil, ErrProviderUnavailable
}
