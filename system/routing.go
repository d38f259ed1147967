// Copyright ©2026 The Compflow Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package system

import (
	"gonum.org/v1/gonum/mat"

	"github.com/compflow/compflow"
)

// registry maps a variable name to the row range it occupies in a
// system's accumulated flat row space: argin first, then every
// component's published output, in the order they were registered.
type registry struct {
	entries map[string]compflow.Range
	width   int
}

func newRegistry() *registry {
	return &registry{entries: make(map[string]compflow.Range)}
}

// register reserves the next width contiguous rows for vars, in
// declaration order, and returns the layout so callers can recover each
// variable's own range within the block.
func (r *registry) register(vars []compflow.Variable) compflow.VarLayout {
	layout := compflow.NewVarLayout(vars)
	for i, v := range vars {
		rg := layout.Range(i)
		r.entries[v.Name()] = compflow.Range{Offset: r.width + rg.Offset, Size: rg.Size}
	}
	r.width += layout.Width()
	return layout
}

func (r *registry) lookup(name string) (compflow.Range, bool) {
	rg, ok := r.entries[name]
	return rg, ok
}

// selector builds the (local.Width(), r.width) sparse 0/1 matrix mapping
// every flat scalar of vars onto its row in the registry's accumulated
// row space. onMissing is invoked, and its error returned, for the first
// name that is not yet registered.
func selector(vars []compflow.Variable, r *registry, onMissing func(name string) error) (*mat.Dense, error) {
	layout := compflow.NewVarLayout(vars)
	P := mat.NewDense(layout.Width(), r.width, nil)
	for i, v := range vars {
		local := layout.Range(i)
		global, ok := r.lookup(v.Name())
		if !ok {
			return nil, onMissing(v.Name())
		}
		for t := 0; t < local.Size; t++ {
			P.Set(local.Offset+t, global.Offset+t, 1)
		}
	}
	return P, nil
}
