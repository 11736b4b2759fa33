package world

import "tilecraft.ai/internal/sim/catalogs"

// band is one slice of the per-cell permille roll. Bands are checked in order.
type band struct {
	below uint64
	block int
}

var terrain = []band{
	{5, catalogs.DiamondOre},
	{15, catalogs.GoldOre},
	{40, catalogs.IronOre},
	{100, catalogs.Stone},
	{130, catalogs.Wood},
	{250, catalogs.Dirt},
}

// spawnClear is the radius in cells kept empty around the map center so a freshly spawned player
// is never embedded in a block.
const spawnClear = 2

// Generate fills a grid from seed. Every cell is a pure function of (seed, x, y), so all clients
// sharing a seed agree without exchanging the map.
func Generate(size int, seed int64) *Grid {
	g := NewGrid(size)
	c := g.size / 2
	for x := 1; x < g.size-1; x++ {
		for y := 1; y < g.size-1; y++ {
			if withinRadius(x-c, y-c, spawnClear) {
				continue
			}
			roll := hash2(seed, x, y) % 1000
			for _, b := range terrain {
				if roll < b.below {
					g.cells[g.idx(x, y)] = b.block
					break
				}
			}
		}
	}
	return g
}

func withinRadius(dx, dy, r int) bool { return dx*dx+dy*dy <= r*r }

func floorDiv(a, b int) int {
	q := a / b
	if a%b < 0 {
		q--
	}
	return q
}

func mix64(z uint64) uint64 {
	z += 0x9e3779b97f4a7c15
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return z ^ (z >> 31)
}

func hash2(seed int64, x, y int) uint64 {
	ux := uint64(uint32(int32(x)))
	uy := uint64(uint32(int32(y)))
	return mix64(uint64(seed) ^ (ux * 0x9e3779b97f4a7c15) ^ (uy * 0xbf58476d1ce4e5b9))
}
