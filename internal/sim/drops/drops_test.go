package drops

import (
	"math/rand"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl64"

	"tilecraft.ai/internal/sim/inventory"
	"tilecraft.ai/internal/sim/tuning"
)

func newList(t *testing.T) *List {
	t.Helper()
	return NewList(ConfigFrom(tuning.Defaults().Drops), rand.New(rand.NewSource(7)))
}

func TestStep_VelocityDecays(t *testing.T) {
	l := newList(t)
	t0 := time.Unix(1000, 0)
	l.Spawn(3, 0, mgl64.Vec2{100, 100}, t0)
	start := l.Items()[0].Vel.Len()
	for i := 0; i < 60; i++ {
		l.Step()
	}
	e := l.Items()[0]
	if e.Vel.Len() >= start/2 {
		t.Fatalf("velocity did not decay: start=%v now=%v", start, e.Vel.Len())
	}
	if e.Pos.Sub(mgl64.Vec2{100, 100}).Len() == 0 {
		t.Fatalf("entity never moved")
	}
}

func TestPickup_GraceAndRadius(t *testing.T) {
	l := newList(t)
	t0 := time.Unix(1000, 0)
	center := mgl64.Vec2{50, 50}
	l.Append(3, 0, center, t0)
	l.Append(2, 0, mgl64.Vec2{500, 500}, t0)
	inv := inventory.New(42)

	if got := l.Pickup(center, t0.Add(100*time.Millisecond), inv, 0, 32); len(got) != 0 {
		t.Fatalf("picked up during grace: %+v", got)
	}
	got := l.Pickup(center, t0.Add(time.Second), inv, 0, 32)
	if len(got) != 1 || got[0].ID != 3 {
		t.Fatalf("picked=%+v", got)
	}
	if l.Len() != 1 || inv.CountOf(3, 0) != 1 {
		t.Fatalf("len=%d count=%d", l.Len(), inv.CountOf(3, 0))
	}
}

func TestPickup_FullInventoryKeepsEntity(t *testing.T) {
	l := newList(t)
	t0 := time.Unix(1000, 0)
	l.Append(12, 42, mgl64.Vec2{}, t0)
	inv := inventory.New(42)
	for i := 0; i < 32; i++ {
		inv.Set(i, 3, inventory.MaxStack, 0)
	}
	if got := l.Pickup(mgl64.Vec2{}, t0.Add(time.Second), inv, 0, 32); len(got) != 0 {
		t.Fatalf("picked up into a full inventory: %+v", got)
	}
	if l.Len() != 1 {
		t.Fatalf("entity destroyed on failed pickup")
	}
	if !inv.Get(32).Empty() {
		t.Fatalf("pickup spilled into the crafting grid")
	}

	inv.Clear(5)
	got := l.Pickup(mgl64.Vec2{}, t0.Add(time.Second), inv, 0, 32)
	if len(got) != 1 || inv.Get(5) != (inventory.Slot{ID: 12, Count: 1, Aux: 42}) {
		t.Fatalf("aux not carried: picked=%+v slot=%+v", got, inv.Get(5))
	}
}
