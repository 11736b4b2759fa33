package tuning

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"tilecraft.ai/configs"
)

type Tuning struct {
	TickRateHz int    `yaml:"tick_rate_hz"`
	MapSize    int    `yaml:"map_size"`
	TileSize   int    `yaml:"tile_size"`
	Seed       int64  `yaml:"seed"`
	Viewport   [2]int `yaml:"viewport"`

	Player     Player     `yaml:"player"`
	Dash       Dash       `yaml:"dash"`
	Mining     Mining     `yaml:"mining"`
	Drops      Drops      `yaml:"drops"`
	Containers Containers `yaml:"containers"`
	Relay      Relay      `yaml:"relay"`
}

type Player struct {
	Size        int     `yaml:"size"`
	Speed       int     `yaml:"speed"`
	Reach       float64 `yaml:"reach"`
	MaxHealth   int     `yaml:"max_health"`
	MeleeRadius float64 `yaml:"melee_radius"`
}

type Dash struct {
	Speed      float64 `yaml:"speed"`
	DurationMs int     `yaml:"duration_ms"`
	CooldownMs int     `yaml:"cooldown_ms"`
}

type Mining struct {
	BaseRate       float64 `yaml:"base_rate"`
	TierMultiplier float64 `yaml:"tier_multiplier"`
}

type Drops struct {
	Damping       float64 `yaml:"damping"`
	Jitter        float64 `yaml:"jitter"`
	SpawnSpeed    float64 `yaml:"spawn_speed"`
	PickupRadius  float64 `yaml:"pickup_radius"`
	PickupGraceMs int     `yaml:"pickup_grace_ms"`
}

type Containers struct {
	ChestSlots   int `yaml:"chest_slots"`
	StorageSlots int `yaml:"storage_slots"`
}

type Relay struct {
	Port               int  `yaml:"port"`
	AnnounceDepartures bool `yaml:"announce_departures"`
}

// Defaults returns the built-in tuning. It never depends on files on disk.
func Defaults() Tuning {
	return Tuning{
		TickRateHz: 60,
		MapSize:    1024,
		TileSize:   32,
		Seed:       12345,
		Viewport:   [2]int{800, 600},
		Player: Player{
			Size:        20,
			Speed:       5,
			Reach:       200,
			MaxHealth:   100,
			MeleeRadius: 20,
		},
		Dash: Dash{
			Speed:      15,
			DurationMs: 200,
			CooldownMs: 2000,
		},
		Mining: Mining{
			BaseRate:       2.0,
			TierMultiplier: 2.0,
		},
		Drops: Drops{
			Damping:       0.9,
			Jitter:        0.05,
			SpawnSpeed:    3.0,
			PickupRadius:  24,
			PickupGraceMs: 500,
		},
		Containers: Containers{
			ChestSlots:   27,
			StorageSlots: 27,
		},
		Relay: Relay{
			Port: 25565,
		},
	}
}

// Load reads a tuning file. Fields missing from the file keep their Defaults() value.
func Load(path string) (Tuning, error) {
	t := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, t.Validate()
}

// Embedded returns the tuning.yaml shipped in the configs package.
func Embedded() (Tuning, error) {
	t := Defaults()
	raw, err := configs.FS.ReadFile("tuning.yaml")
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("embedded tuning.yaml: %w", err)
	}
	return t, t.Validate()
}

func (t Tuning) Validate() error {
	switch {
	case t.TickRateHz <= 0:
		return fmt.Errorf("tuning: tick_rate_hz must be > 0 (got %d)", t.TickRateHz)
	case t.MapSize < 3:
		return fmt.Errorf("tuning: map_size must be >= 3 (got %d)", t.MapSize)
	case t.TileSize <= 0:
		return fmt.Errorf("tuning: tile_size must be > 0 (got %d)", t.TileSize)
	case t.Player.Size <= 0 || t.Player.Size > t.TileSize:
		return fmt.Errorf("tuning: player.size must be in (0, tile_size] (got %d)", t.Player.Size)
	case t.Drops.Damping <= 0 || t.Drops.Damping >= 1:
		return fmt.Errorf("tuning: drops.damping must be in (0, 1) (got %v)", t.Drops.Damping)
	case t.Containers.ChestSlots <= 0 || t.Containers.StorageSlots <= 0:
		return fmt.Errorf("tuning: container slot counts must be > 0")
	}
	return nil
}
