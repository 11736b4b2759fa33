// Package world holds the N x N block grid shared by every client.
package world

import (
	"tilecraft.ai/internal/sim/catalogs"
)

// Grid is a square array of block ids indexed [x][y]. Border cells are bedrock and can never be
// overwritten. Writes are single cell; there is no bulk edit.
type Grid struct {
	size  int
	cells []int
}

func NewGrid(size int) *Grid {
	if size < 3 {
		size = 3
	}
	g := &Grid{size: size, cells: make([]int, size*size)}
	for i := 0; i < size; i++ {
		g.cells[g.idx(i, 0)] = catalogs.Bedrock
		g.cells[g.idx(i, size-1)] = catalogs.Bedrock
		g.cells[g.idx(0, i)] = catalogs.Bedrock
		g.cells[g.idx(size-1, i)] = catalogs.Bedrock
	}
	return g
}

func (g *Grid) Size() int { return g.size }

func (g *Grid) idx(x, y int) int { return x*g.size + y }

func (g *Grid) InBounds(x, y int) bool { return x >= 0 && y >= 0 && x < g.size && y < g.size }

func (g *Grid) IsBorder(x, y int) bool {
	return x == 0 || y == 0 || x == g.size-1 || y == g.size-1
}

// At returns the block at (x, y). Cells outside the grid read as bedrock.
func (g *Grid) At(x, y int) int {
	if !g.InBounds(x, y) {
		return catalogs.Bedrock
	}
	return g.cells[g.idx(x, y)]
}

// Set writes one cell. It reports false for out-of-range or border cells.
func (g *Grid) Set(x, y, id int) bool {
	if !g.InBounds(x, y) || g.IsBorder(x, y) {
		return false
	}
	g.cells[g.idx(x, y)] = id
	return true
}

// Solid reports whether the cell blocks movement. Everything except air is solid.
func (g *Grid) Solid(x, y int) bool { return g.At(x, y) != catalogs.Air }

// SolidAtPixel maps a pixel coordinate to its cell. Negative pixels floor toward the outside.
func (g *Grid) SolidAtPixel(px, py, tile int) bool {
	return g.Solid(floorDiv(px, tile), floorDiv(py, tile))
}

// BoxFree reports whether an axis-aligned square of side size at pixel (px, py) overlaps no solid
// cell. All four corners are tested; size never exceeds one tile.
func (g *Grid) BoxFree(px, py, size, tile int) bool {
	return !g.SolidAtPixel(px, py, tile) &&
		!g.SolidAtPixel(px+size-1, py, tile) &&
		!g.SolidAtPixel(px, py+size-1, tile) &&
		!g.SolidAtPixel(px+size-1, py+size-1, tile)
}

// Counts tallies block ids across the grid.
func (g *Grid) Counts() map[int]int {
	out := map[int]int{}
	for _, id := range g.cells {
		out[id]++
	}
	return out
}
