package furnace

import (
	"testing"

	"tilecraft.ai/internal/sim/catalogs"
)

func run(f *Furnace, r Rules, ticks int) {
	for i := 0; i < ticks; i++ {
		f.Tick(r)
	}
}

func TestWoodSmeltsOneIronIngot(t *testing.T) {
	c := catalogs.MustDefault()
	f := New()
	f.Inv.Set(SlotInput, catalogs.IronOre, 5, 0)
	f.Inv.Set(SlotFuel, catalogs.Wood, 1, 0)

	run(f, c, c.CookTime())
	if got := f.Inv.Get(SlotOut); got.ID != catalogs.IronIngot || got.Count != 1 {
		t.Fatalf("after one cook time output=%+v", got)
	}
	if f.State() != Fueling {
		t.Fatalf("state=%v want fueling", f.State())
	}

	run(f, c, 1000)
	if got := f.Inv.Get(SlotOut).Count; got != 1 {
		t.Fatalf("300 burn ticks should yield exactly one ingot, got %d", got)
	}
	if got := f.Inv.Get(SlotInput).Count; got != 4 {
		t.Fatalf("input count=%d want 4", got)
	}
	if f.CookTimer != 0 || f.State() != Idle {
		t.Fatalf("partial cook must be lost once fuel runs out: cook=%d state=%v", f.CookTimer, f.State())
	}
}

func TestUnburnableFuelNeverProduces(t *testing.T) {
	c := catalogs.MustDefault()
	f := New()
	f.Inv.Set(SlotInput, catalogs.GoldOre, 1, 0)
	f.Inv.Set(SlotFuel, catalogs.Dirt, 10, 0)
	run(f, c, 5000)
	if !f.Inv.Get(SlotOut).Empty() {
		t.Fatalf("dirt fuel produced %+v", f.Inv.Get(SlotOut))
	}
	if got := f.Inv.Get(SlotFuel).Count; got != 10 {
		t.Fatalf("unburnable fuel was consumed: %d left", got)
	}
}

func TestNoFuelWithoutValidTarget(t *testing.T) {
	c := catalogs.MustDefault()
	cases := []struct {
		name string
		in   int
		out  int
		outN int
	}{
		{"no smelt result", catalogs.DiamondOre, 0, 0},
		{"output holds other item", catalogs.IronOre, catalogs.GoldIngot, 1},
		{"output full", catalogs.IronOre, catalogs.IronIngot, 64},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := New()
			f.Inv.Set(SlotInput, tc.in, 1, 0)
			f.Inv.Set(SlotFuel, catalogs.Planks, 1, 0)
			f.Inv.Set(SlotOut, tc.out, tc.outN, 0)
			run(f, c, 10)
			if f.Inv.Get(SlotFuel).Count != 1 || f.FuelTimer != 0 || f.CookTimer != 0 {
				t.Fatalf("furnace started without a valid target: %+v", f)
			}
		})
	}
}

func TestCookResetsWhenInputRemoved(t *testing.T) {
	c := catalogs.MustDefault()
	f := New()
	f.Inv.Set(SlotInput, catalogs.IronOre, 1, 0)
	f.Inv.Set(SlotFuel, catalogs.Wood, 1, 0)
	run(f, c, 50)
	if f.CookTimer != 50 {
		t.Fatalf("cook=%d want 50", f.CookTimer)
	}
	f.Inv.Clear(SlotInput)
	f.Tick(c)
	if f.CookTimer != 0 {
		t.Fatalf("cook timer should reset, got %d", f.CookTimer)
	}
	if f.FuelTimer != 300-51 {
		t.Fatalf("fuel keeps burning, got %d", f.FuelTimer)
	}
	if got := f.FuelFraction(); got <= 0 || got >= 1 {
		t.Fatalf("fuel fraction=%v", got)
	}
}
