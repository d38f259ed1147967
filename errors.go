// Copyright ©2026 The Compflow Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package compflow

import (
	"errors"
	"fmt"
)

// ErrSizeMismatch signifies that a supplied buffer is too small for the
// declared layout, or that a user function returned a value whose
// flattened length differs from the declared outputs.
var ErrSizeMismatch = errors.New("compflow: size mismatch")

// SizeMismatchError reports the widths involved in a failed packing or
// unpacking operation. It wraps ErrSizeMismatch.
type SizeMismatchError struct {
	Have int
	Want int
}

func (e *SizeMismatchError) Error() string {
	return fmt.Sprintf("compflow: size mismatch: have %d, want %d", e.Have, e.Want)
}

func (e *SizeMismatchError) Unwrap() error { return ErrSizeMismatch }
