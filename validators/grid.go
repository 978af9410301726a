// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package validators

import (
	"sort"

	"github.com/luxfi/jamnp/types"
	"github.com/luxfi/jamnp/utils/math"
)

// Cell is one grid position.
type Cell struct {
	Row int
	Col int
}

// Grid arranges an epoch's validators in a near-square lattice: indices
// sorted ascending, placed row-major into floor(sqrt(V)) columns. Two
// validators are neighbours iff they share a row or a column; that set is
// the fan-out target for block announcements.
type Grid struct {
	cols  int
	rows  int
	cells map[types.ValidatorIndex]Cell
	order []types.ValidatorIndex
}

// NewGrid builds the grid for the given validator indices.
func NewGrid(indices []types.ValidatorIndex) *Grid {
	sorted := make([]types.ValidatorIndex, len(indices))
	copy(sorted, indices)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	g := &Grid{
		cells: make(map[types.ValidatorIndex]Cell, len(sorted)),
		order: sorted,
	}
	v := len(sorted)
	if v == 0 {
		return g
	}
	g.cols = math.ISqrt(v)
	g.rows = math.CeilDiv(v, g.cols)
	for i, idx := range sorted {
		g.cells[idx] = Cell{Row: i / g.cols, Col: i % g.cols}
	}
	return g
}

// GridFromSet builds the grid for a validator set.
func GridFromSet(set SetMap) *Grid {
	indices := make([]types.ValidatorIndex, 0, len(set))
	for idx := range set {
		indices = append(indices, idx)
	}
	return NewGrid(indices)
}

func (g *Grid) Cols() int { return g.cols }
func (g *Grid) Rows() int { return g.rows }
func (g *Grid) Size() int { return len(g.order) }

// Position returns the cell of a validator, if it is in the grid.
func (g *Grid) Position(idx types.ValidatorIndex) (Cell, bool) {
	c, ok := g.cells[idx]
	return c, ok
}

// IsNeighbor reports whether a and b share a row or a column. A validator
// is not its own neighbour.
func (g *Grid) IsNeighbor(a, b types.ValidatorIndex) bool {
	if a == b {
		return false
	}
	ca, ok := g.cells[a]
	if !ok {
		return false
	}
	cb, ok := g.cells[b]
	if !ok {
		return false
	}
	return ca.Row == cb.Row || ca.Col == cb.Col
}

// Neighbors returns every validator sharing a row or column with idx, in
// ascending index order.
func (g *Grid) Neighbors(idx types.ValidatorIndex) []types.ValidatorIndex {
	cell, ok := g.cells[idx]
	if !ok {
		return nil
	}
	var out []types.ValidatorIndex
	for _, other := range g.order {
		if other == idx {
			continue
		}
		c := g.cells[other]
		if c.Row == cell.Row || c.Col == cell.Col {
			out = append(out, other)
		}
	}
	return out
}
