// Copyright ©2026 The Compflow Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package compflow provides the variable model and flat-vector packing
// layer shared by every evaluation entry point in the compflow component
// graph framework: named, typed, possibly multidimensional variables, and
// the layout that maps them to contiguous slices of a flat vector.
//
// Subpackages build on top of this one: deriv supplies derivative
// providers (analytic, automatic and finite-difference), component wraps
// user functions into explicit and implicit components, system assembles
// components into a directed acyclic graph with chain-rule Jacobians, and
// solve converts an implicit system into an explicit one by Newton
// iteration.
package compflow // import "github.com/compflow/compflow"
