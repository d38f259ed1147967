// Copyright ©2026 The Compflow Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package solve

import (
	"errors"
	"fmt"
)

// ErrSolveDiverged signifies that a damped Newton iteration exhausted
// its iteration or step-size budget without satisfying its tolerance.
var ErrSolveDiverged = errors.New("solve: diverged")

// SolveDivergedError reports the iteration count and final residual norm
// of a failed Newton solve.
type SolveDivergedError struct {
	Iter         int
	ResidualNorm float64
}

func (e *SolveDivergedError) Error() string {
	return fmt.Sprintf("solve: diverged after %d iterations, ‖r‖∞ = %g", e.Iter, e.ResidualNorm)
}

func (e *SolveDivergedError) Unwrap() error { return ErrSolveDiverged }

// ErrSingularJacobian signifies that ∂r/∂y was singular or near-singular
// at the point the linear solve was attempted.
var ErrSingularJacobian = errors.New("solve: singular jacobian")

// SingularJacobianError wraps the mat.Condition error returned by the
// underlying linear solve.
type SingularJacobianError struct {
	Cond error
}

func (e *SingularJacobianError) Error() string {
	return fmt.Sprintf("solve: singular jacobian: %v", e.Cond)
}

func (e *SingularJacobianError) Unwrap() error { return ErrSingularJacobian }
