package catalogs

import "fmt"

// Block ids. They double as item ids for the placeable form of the block and are shared by every
// peer on the wire, so they are fixed here rather than assigned at load time.
const (
	Air        = 0
	Bedrock    = 1
	Dirt       = 2
	Stone      = 3
	Wood       = 4
	Planks     = 5
	Crafter    = 6
	IronOre    = 7
	GoldOre    = 8
	DiamondOre = 9
	Furnace    = 10
	Chest      = 11
	Hulcs      = 12
)

// Non-block item ids.
const (
	Stick      = 200
	IronIngot  = 201
	GoldIngot  = 202
	Diamond    = 203
	SwordBase  = 100
	PickBase   = 110
	AxeBase    = 120
	ShovelBase = 130
)

// Unbreakable is the toughness sentinel for blocks that can never be mined.
const Unbreakable = -1

// Kind is the closed set of item categories.
type Kind int

const (
	KindAir Kind = iota
	KindBlock
	KindMaterial
	KindSword
	KindPickaxe
	KindAxe
	KindShovel
)

var kindNames = [...]string{
	KindAir:      "AIR",
	KindBlock:    "BLOCK",
	KindMaterial: "MATERIAL",
	KindSword:    "SWORD",
	KindPickaxe:  "PICKAXE",
	KindAxe:      "AXE",
	KindShovel:   "SHOVEL",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("Kind(%d)", int(k))
	}
	return kindNames[k]
}

func ParseKind(s string) (Kind, error) {
	for i, n := range kindNames {
		if n == s {
			return Kind(i), nil
		}
	}
	return KindAir, fmt.Errorf("unknown item kind %q", s)
}

// IsWeapon reports whether the kind triggers melee instead of mining when aimed at air.
func (k Kind) IsWeapon() bool { return k == KindSword }

// Material groups blocks by which tool kind mines them faster.
type Material int

const (
	MaterialNone Material = iota
	MaterialStone
	MaterialWood
	MaterialEarth
)

var materialNames = [...]string{
	MaterialNone:  "NONE",
	MaterialStone: "STONE",
	MaterialWood:  "WOOD",
	MaterialEarth: "EARTH",
}

func (m Material) String() string {
	if m < 0 || int(m) >= len(materialNames) {
		return fmt.Sprintf("Material(%d)", int(m))
	}
	return materialNames[m]
}

func ParseMaterial(s string) (Material, error) {
	for i, n := range materialNames {
		if n == s {
			return Material(i), nil
		}
	}
	return MaterialNone, fmt.Errorf("unknown material %q", s)
}

// effectiveOn maps each tool kind to the material class it is effective against.
var effectiveOn = map[Kind]Material{
	KindPickaxe: MaterialStone,
	KindAxe:     MaterialWood,
	KindShovel:  MaterialEarth,
}

// ToolFamily is one of the four craftable tool families, ordered the way recipes are listed.
type ToolFamily int

const (
	FamilySword ToolFamily = iota
	FamilyShovel
	FamilyPickaxe
	FamilyAxe
)

var ToolFamilies = [...]ToolFamily{FamilySword, FamilyShovel, FamilyPickaxe, FamilyAxe}

// TierMaterials lists the crafting material of each tier, wood first.
var TierMaterials = [...]int{Planks, Stone, IronIngot, GoldIngot, Diamond}

// ToolID returns the item id of the family's tool at tier index t (0 = wood).
func ToolID(f ToolFamily, t int) int {
	switch f {
	case FamilySword:
		return SwordBase + t
	case FamilyShovel:
		return ShovelBase + t
	case FamilyPickaxe:
		return PickBase + t
	case FamilyAxe:
		return AxeBase + t
	}
	return Air
}
