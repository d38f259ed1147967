// Copyright ©2026 The Compflow Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package component wraps user functions into explicit components
// (y = f(x)) and implicit components (r(x, y) = 0), with cached
// evaluation behind a uniform ladder of call variants: a plain query
// that allocates a fresh result and leaves the cache untouched, an Into
// variant that writes the caller's buffers, a Cache variant that writes
// the component's own cache and returns a reference into it (skipping
// recomputation when the argument matches the cached input), a Force
// variant that recomputes unconditionally, and a Cached accessor that
// returns the last result without recomputation.
package component // import "github.com/compflow/compflow/component"

import "github.com/compflow/compflow"

// Func is the user-supplied primal for an explicit component. outMut
// holds shaped, caller-owned views for the in-place outputs (out_mut, in
// declaration order); in holds the shaped input views (in_vars order),
// also in declaration order. Mutating an outMut view writes the
// corresponding output; the returned slice is the flat concatenation of
// the remaining, non-mutating outputs (out_vars, in declaration order).
//
// Reflecting on a variadic function's arity is not a safe, general
// operation in Go, so the split between in-place and returned outputs is
// declared explicitly in the signature instead of being inferred.
type Func func(outMut []compflow.View, in []compflow.View) []float64

// ResidualFunc is the user-supplied primal for an implicit component:
// r(x, y). x and y are shaped input views, in their respective
// declaration orders; the returned slice is the flat residual, one
// element per flat output scalar (its length equals the flat output
// width).
type ResidualFunc func(x, y []compflow.View) []float64
