// Copyright ©2026 The Compflow Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package solve

import "github.com/compflow/compflow/component"

// ToImplicit wraps an explicit component as an implicit one via its
// residual r = y − f(x), the converse of ToExplicit. It is a thin
// convenience forward to component.Lift so that both directions of the
// conversion live under a common name.
func ToImplicit(ec *component.ExplicitComponent) *component.ImplicitComponent {
	return component.Lift(ec)
}
