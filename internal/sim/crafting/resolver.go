// Package crafting matches a 3x3 grid of item ids against an ordered recipe list.
package crafting

import (
	"sort"

	"tilecraft.ai/internal/sim/inventory"
)

const (
	GridSize = 9
	gridW    = 3
)

// Grid is the item id of each crafting cell, row-major.
type Grid [GridSize]int

type Output struct {
	ID    int
	Count int
}

type Resolver struct {
	recipes []Recipe
}

func NewResolver(recipes []Recipe) *Resolver {
	return &Resolver{recipes: recipes}
}

func Default() *Resolver { return NewResolver(DefaultRecipes()) }

// Resolve returns the first recipe in priority order that the grid satisfies.
func (r *Resolver) Resolve(g Grid) (Output, bool) {
	for _, rec := range r.recipes {
		if matches(rec, g) {
			return Output{ID: rec.Out, Count: rec.Count}, true
		}
	}
	return Output{}, false
}

func matches(rec Recipe, g Grid) bool {
	if rec.Shaped() {
		return matchShaped(rec, g)
	}
	return matchShapeless(rec.Ingredients, g)
}

func matchShapeless(want []int, g Grid) bool {
	have := make([]int, 0, GridSize)
	for _, id := range g {
		if id != 0 {
			have = append(have, id)
		}
	}
	if len(have) != len(want) {
		return false
	}
	w := append([]int(nil), want...)
	sort.Ints(have)
	sort.Ints(w)
	for i := range have {
		if have[i] != w[i] {
			return false
		}
	}
	return true
}

func matchShaped(rec Recipe, g Grid) bool {
	if rec.W <= 0 || rec.H <= 0 || rec.W > gridW || rec.H > gridW || len(rec.Pattern) != rec.W*rec.H {
		return false
	}
	for oy := 0; oy+rec.H <= gridW; oy++ {
		for ox := 0; ox+rec.W <= gridW; ox++ {
			if matchAt(rec, g, ox, oy) {
				return true
			}
		}
	}
	return false
}

func matchAt(rec Recipe, g Grid, ox, oy int) bool {
	for y := 0; y < gridW; y++ {
		for x := 0; x < gridW; x++ {
			want := 0
			px, py := x-ox, y-oy
			if px >= 0 && px < rec.W && py >= 0 && py < rec.H {
				want = rec.Pattern[py*rec.W+px]
			}
			if g[y*gridW+x] != want {
				return false
			}
		}
	}
	return true
}

// GridOf reads the nine cells starting at lo.
func GridOf(inv *inventory.Inventory, lo int) Grid {
	var g Grid
	for i := range g {
		g[i] = inv.Get(lo + i).ID
	}
	return g
}

// Refresh recomputes the output slot from the grid at [lo, lo+9).
func (r *Resolver) Refresh(inv *inventory.Inventory, lo, outIdx int) {
	out, ok := r.Resolve(GridOf(inv, lo))
	if !ok {
		inv.Clear(outIdx)
		return
	}
	inv.Set(outIdx, out.ID, out.Count, 0)
}

// Consume takes one unit from every non-empty grid cell and recomputes the output slot. The caller
// has already moved the output stack elsewhere.
func (r *Resolver) Consume(inv *inventory.Inventory, lo, outIdx int) {
	for i := lo; i < lo+GridSize; i++ {
		if !inv.Get(i).Empty() {
			inv.Remove(i, 1)
		}
	}
	r.Refresh(inv, lo, outIdx)
}
