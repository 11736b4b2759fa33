// Package drops simulates dropped item entities on one client.
package drops

import (
	"math"
	"math/rand"
	"time"

	"github.com/go-gl/mathgl/mgl64"

	"tilecraft.ai/internal/sim/inventory"
	"tilecraft.ai/internal/sim/tuning"
)

// Entity is one dropped unit lying in the world. Positions are world pixels.
type Entity struct {
	ID      int
	Aux     int
	Pos     mgl64.Vec2
	Vel     mgl64.Vec2
	Spawned time.Time
}

type Config struct {
	Damping      float64
	Jitter       float64
	SpawnSpeed   float64
	PickupRadius float64
	Grace        time.Duration
}

func ConfigFrom(t tuning.Drops) Config {
	return Config{
		Damping:      t.Damping,
		Jitter:       t.Jitter,
		SpawnSpeed:   t.SpawnSpeed,
		PickupRadius: t.PickupRadius,
		Grace:        time.Duration(t.PickupGraceMs) * time.Millisecond,
	}
}

// List owns the client's dropped entities. It is not safe for concurrent use; the engine tick owns it.
type List struct {
	cfg   Config
	rng   *rand.Rand
	items []Entity
}

func NewList(cfg Config, rng *rand.Rand) *List {
	return &List{cfg: cfg, rng: rng}
}

func (l *List) Len() int { return len(l.items) }

// Items returns a copy of the live entities.
func (l *List) Items() []Entity {
	out := make([]Entity, len(l.items))
	copy(out, l.items)
	return out
}

// Spawn creates a locally mined drop at pos with a random outward velocity and returns it so the
// caller can announce it.
func (l *List) Spawn(id, aux int, pos mgl64.Vec2, now time.Time) Entity {
	a := l.rng.Float64() * 2 * math.Pi
	e := Entity{
		ID:      id,
		Aux:     aux,
		Pos:     pos,
		Vel:     mgl64.Vec2{math.Cos(a), math.Sin(a)}.Mul(l.cfg.SpawnSpeed),
		Spawned: now,
	}
	l.items = append(l.items, e)
	return e
}

// Append adds an entity announced by a peer. It starts at rest.
func (l *List) Append(id, aux int, pos mgl64.Vec2, now time.Time) {
	l.items = append(l.items, Entity{ID: id, Aux: aux, Pos: pos, Spawned: now})
}

// Step applies damping and jitter to every entity and integrates its position.
func (l *List) Step() {
	for i := range l.items {
		e := &l.items[i]
		jit := mgl64.Vec2{l.jitter(), l.jitter()}
		e.Vel = e.Vel.Mul(l.cfg.Damping).Add(jit)
		e.Pos = e.Pos.Add(e.Vel)
	}
}

func (l *List) jitter() float64 {
	if l.cfg.Jitter == 0 {
		return 0
	}
	return (l.rng.Float64()*2 - 1) * l.cfg.Jitter
}

// Pickup moves every eligible entity within reach of center into inv slots [lo, hi). An entity
// stays in the world when it does not fit. It returns the entities picked up.
func (l *List) Pickup(center mgl64.Vec2, now time.Time, inv *inventory.Inventory, lo, hi int) []Entity {
	var picked []Entity
	kept := l.items[:0]
	for _, e := range l.items {
		if now.Sub(e.Spawned) >= l.cfg.Grace &&
			e.Pos.Sub(center).Len() < l.cfg.PickupRadius &&
			inv.AddRange(lo, hi, e.ID, 1, e.Aux) {
			picked = append(picked, e)
			continue
		}
		kept = append(kept, e)
	}
	for i := len(kept); i < len(l.items); i++ {
		l.items[i] = Entity{}
	}
	l.items = kept
	return picked
}
