package crafting

import (
	"fmt"

	"tilecraft.ai/internal/sim/catalogs"
)

// Recipe is either shapeless (Ingredients set) or shaped (Pattern of W x H cells, 0 meaning the
// cell must be empty). A shaped pattern smaller than the grid matches at any offset.
type Recipe struct {
	Name        string
	Ingredients []int
	Pattern     []int
	W, H        int
	Out         int
	Count       int
}

func (r Recipe) Shaped() bool { return len(r.Pattern) > 0 }

// toolLayout gives, per family, which grid cells take the tier material ("m") and which take a
// stick ("s"); everything else must be empty.
var toolLayout = map[catalogs.ToolFamily][GridSize]byte{
	catalogs.FamilySword: {
		0, 'm', 0,
		0, 'm', 0,
		0, 's', 0,
	},
	catalogs.FamilyShovel: {
		0, 'm', 0,
		0, 's', 0,
		0, 's', 0,
	},
	catalogs.FamilyPickaxe: {
		'm', 'm', 'm',
		0, 's', 0,
		0, 's', 0,
	},
	catalogs.FamilyAxe: {
		'm', 'm', 0,
		'm', 's', 0,
		0, 's', 0,
	},
}

var familyNames = map[catalogs.ToolFamily]string{
	catalogs.FamilySword:   "sword",
	catalogs.FamilyShovel:  "shovel",
	catalogs.FamilyPickaxe: "pickaxe",
	catalogs.FamilyAxe:     "axe",
}

func ring(edge, center int) []int {
	return []int{
		edge, edge, edge,
		edge, center, edge,
		edge, edge, edge,
	}
}

// DefaultRecipes returns the recipe list in priority order.
func DefaultRecipes() []Recipe {
	out := []Recipe{
		{Name: "planks", Ingredients: []int{catalogs.Wood}, Out: catalogs.Planks, Count: 4},
		{Name: "sticks", Pattern: []int{catalogs.Planks, catalogs.Planks}, W: 1, H: 2, Out: catalogs.Stick, Count: 4},
	}
	for _, fam := range catalogs.ToolFamilies {
		layout := toolLayout[fam]
		for tier, mat := range catalogs.TierMaterials {
			p := make([]int, GridSize)
			for i, c := range layout {
				switch c {
				case 'm':
					p[i] = mat
				case 's':
					p[i] = catalogs.Stick
				}
			}
			out = append(out, Recipe{
				Name:    fmt.Sprintf("%s_t%d", familyNames[fam], tier),
				Pattern: p,
				W:       3,
				H:       3,
				Out:     catalogs.ToolID(fam, tier),
				Count:   1,
			})
		}
	}
	out = append(out,
		Recipe{Name: "crafter", Pattern: []int{catalogs.Planks, catalogs.Planks, catalogs.Planks, catalogs.Planks}, W: 2, H: 2, Out: catalogs.Crafter, Count: 1},
		Recipe{Name: "furnace", Pattern: ring(catalogs.Stone, catalogs.Air), W: 3, H: 3, Out: catalogs.Furnace, Count: 1},
		Recipe{Name: "chest", Pattern: ring(catalogs.Planks, catalogs.Air), W: 3, H: 3, Out: catalogs.Chest, Count: 1},
		Recipe{Name: "hulcs", Pattern: ring(catalogs.Planks, catalogs.IronIngot), W: 3, H: 3, Out: catalogs.Hulcs, Count: 1},
	)
	return out
}
