package catalogs

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"sort"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"tilecraft.ai/configs"
)

type Catalogs struct {
	Items    ItemCatalog
	Smelting SmeltingCatalog
}

type ItemCatalog struct {
	Defs         map[int]ItemDef
	BlocksDigest string
	ItemsDigest  string
}

// ItemDef describes both blocks and non-block items. Blocks have Kind == KindBlock.
type ItemDef struct {
	ID        int
	Name      string
	Kind      Kind
	Tier      int
	Toughness int
	Value     int
	Material  Material
	Texture   string
	Drops     int // item spawned when the block is mined; 0 means the block itself
}

type SmeltingCatalog struct {
	CookTicks int
	Results   map[int]int // input item -> output item
	Burn      map[int]int // fuel item -> burn ticks
	Digest    string
}

type blockJSON struct {
	ID        int    `json:"id"`
	Name      string `json:"name"`
	Toughness int    `json:"toughness"`
	Value     int    `json:"value,omitempty"`
	Material  string `json:"material"`
	Texture   string `json:"texture,omitempty"`
	Drops     int    `json:"drops,omitempty"`
}

type itemJSON struct {
	ID      int    `json:"id"`
	Name    string `json:"name"`
	Kind    string `json:"kind"`
	Tier    int    `json:"tier,omitempty"`
	Texture string `json:"texture,omitempty"`
}

type smeltingJSON struct {
	CookTicks int `json:"cook_ticks"`
	Recipes   []struct {
		Input  int `json:"input"`
		Output int `json:"output"`
	} `json:"recipes"`
	Fuels []struct {
		Item      int `json:"item"`
		BurnTicks int `json:"burn_ticks"`
	} `json:"fuels"`
}

var airDef = ItemDef{ID: Air, Name: "AIR", Kind: KindAir}

// Default loads the catalogs embedded in the configs package.
func Default() (*Catalogs, error) {
	return load(configs.FS)
}

// MustDefault is Default for tests and tools where the embedded files are known good.
func MustDefault() *Catalogs {
	c, err := Default()
	if err != nil {
		panic(err)
	}
	return c
}

// Load reads blocks.json, items.json and smelting.json from configDir. Schemas always come from
// the embedded copy so an override directory cannot loosen validation.
func Load(configDir string) (*Catalogs, error) {
	return load(os.DirFS(configDir))
}

func load(fsys fs.FS) (*Catalogs, error) {
	var c Catalogs
	c.Items.Defs = map[int]ItemDef{Air: airDef}

	if err := loadBlocks(fsys, &c.Items); err != nil {
		return nil, err
	}
	if err := loadItems(fsys, &c.Items); err != nil {
		return nil, err
	}
	if err := loadSmelting(fsys, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// readValidated reads name from fsys and validates it against schemas/<base>.schema.json.
func readValidated(fsys fs.FS, name, schemaName string) ([]byte, error) {
	raw, err := fs.ReadFile(fsys, name)
	if err != nil {
		return nil, err
	}
	schemaRaw, err := configs.FS.ReadFile("schemas/" + schemaName)
	if err != nil {
		return nil, err
	}
	url := "https://tilecraft.ai/schemas/" + schemaName
	comp := jsonschema.NewCompiler()
	if err := comp.AddResource(url, bytes.NewReader(schemaRaw)); err != nil {
		return nil, fmt.Errorf("%s: %w", schemaName, err)
	}
	schema, err := comp.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("compile %s: %w", schemaName, err)
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	if err := schema.Validate(doc); err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return raw, nil
}

func loadBlocks(fsys fs.FS, out *ItemCatalog) error {
	raw, err := readValidated(fsys, "blocks.json", "blocks.schema.json")
	if err != nil {
		return err
	}
	out.BlocksDigest = sha256Hex(raw)

	var defs []blockJSON
	if err := json.Unmarshal(raw, &defs); err != nil {
		return fmt.Errorf("blocks.json: %w", err)
	}
	sawAir := false
	for _, d := range defs {
		if d.ID == Air {
			sawAir = true
			continue
		}
		if _, dup := out.Defs[d.ID]; dup {
			return fmt.Errorf("blocks.json: duplicate id %d", d.ID)
		}
		mat, err := ParseMaterial(d.Material)
		if err != nil {
			return fmt.Errorf("blocks.json: %s: %w", d.Name, err)
		}
		out.Defs[d.ID] = ItemDef{
			ID:        d.ID,
			Name:      d.Name,
			Kind:      KindBlock,
			Toughness: d.Toughness,
			Value:     d.Value,
			Material:  mat,
			Texture:   d.Texture,
			Drops:     d.Drops,
		}
	}
	if !sawAir {
		return fmt.Errorf("blocks.json: missing AIR (id 0)")
	}
	return nil
}

func loadItems(fsys fs.FS, out *ItemCatalog) error {
	raw, err := readValidated(fsys, "items.json", "items.schema.json")
	if err != nil {
		return err
	}
	out.ItemsDigest = sha256Hex(raw)

	var defs []itemJSON
	if err := json.Unmarshal(raw, &defs); err != nil {
		return fmt.Errorf("items.json: %w", err)
	}
	for _, d := range defs {
		if _, dup := out.Defs[d.ID]; dup {
			return fmt.Errorf("items.json: duplicate id %d", d.ID)
		}
		kind, err := ParseKind(d.Kind)
		if err != nil {
			return fmt.Errorf("items.json: %s: %w", d.Name, err)
		}
		out.Defs[d.ID] = ItemDef{
			ID:      d.ID,
			Name:    d.Name,
			Kind:    kind,
			Tier:    d.Tier,
			Texture: d.Texture,
		}
	}
	for _, d := range out.Defs {
		if d.Drops != 0 {
			if _, ok := out.Defs[d.Drops]; !ok {
				return fmt.Errorf("blocks.json: %s drops unknown item %d", d.Name, d.Drops)
			}
		}
	}
	return nil
}

func loadSmelting(fsys fs.FS, c *Catalogs) error {
	raw, err := readValidated(fsys, "smelting.json", "smelting.schema.json")
	if err != nil {
		return err
	}
	var doc smeltingJSON
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("smelting.json: %w", err)
	}
	c.Smelting = SmeltingCatalog{
		CookTicks: doc.CookTicks,
		Results:   map[int]int{},
		Burn:      map[int]int{},
		Digest:    sha256Hex(raw),
	}
	for _, r := range doc.Recipes {
		if _, ok := c.Items.Defs[r.Input]; !ok {
			return fmt.Errorf("smelting.json: unknown input item %d", r.Input)
		}
		if _, ok := c.Items.Defs[r.Output]; !ok {
			return fmt.Errorf("smelting.json: unknown output item %d", r.Output)
		}
		if _, dup := c.Smelting.Results[r.Input]; dup {
			return fmt.Errorf("smelting.json: duplicate recipe input %d", r.Input)
		}
		c.Smelting.Results[r.Input] = r.Output
	}
	for _, f := range doc.Fuels {
		if _, ok := c.Items.Defs[f.Item]; !ok {
			return fmt.Errorf("smelting.json: unknown fuel item %d", f.Item)
		}
		c.Smelting.Burn[f.Item] = f.BurnTicks
	}
	return nil
}

// Item returns the definition for id, or the AIR definition when id is unknown.
func (c *Catalogs) Item(id int) ItemDef {
	if d, ok := c.Items.Defs[id]; ok {
		return d
	}
	return airDef
}

func (c *Catalogs) IsBlock(id int) bool { return c.Item(id).Kind == KindBlock }

// IDs returns every known id in ascending order (AIR included).
func (c *Catalogs) IDs() []int {
	out := make([]int, 0, len(c.Items.Defs))
	for id := range c.Items.Defs {
		out = append(out, id)
	}
	sort.Ints(out)
	return out
}

// MiningRate is the per-tick mining progress of holding tool against block.
func (c *Catalogs) MiningRate(tool, block int, baseRate, tierMultiplier float64) float64 {
	t := c.Item(tool)
	mat, ok := effectiveOn[t.Kind]
	if ok && mat == c.Item(block).Material {
		return baseRate * (1 + float64(t.Tier)*tierMultiplier)
	}
	return baseRate
}

// Damage is the melee damage dealt with the held item.
func (c *Catalogs) Damage(held int) int {
	t := c.Item(held)
	if t.Kind == KindSword {
		return 10 + t.Tier*5
	}
	return 2
}

// DropFor is the item a mined block turns into.
func (c *Catalogs) DropFor(block int) int {
	d := c.Item(block)
	if d.Drops != 0 {
		return d.Drops
	}
	return block
}

// CookTime is the number of burning ticks one smelt takes.
func (c *Catalogs) CookTime() int { return c.Smelting.CookTicks }

// BurnTicks is the fuel value of an item; 0 means it cannot be burned.
func (c *Catalogs) BurnTicks(id int) int { return c.Smelting.Burn[id] }

// SmeltResult returns the furnace output for an input item.
func (c *Catalogs) SmeltResult(id int) (int, bool) {
	out, ok := c.Smelting.Results[id]
	return out, ok
}
