// Package furnace advances furnace fuel and cook timers.
//
// Furnace state is local to the client that owns the furnace and is never replicated.
package furnace

import "tilecraft.ai/internal/sim/inventory"

const (
	SlotInput = 0
	SlotFuel  = 1
	SlotOut   = 2
	NumSlots  = 3
)

// Rules supplies smelting results and fuel values. *catalogs.Catalogs implements it.
type Rules interface {
	SmeltResult(id int) (int, bool)
	BurnTicks(id int) int
	CookTime() int
}

type State int

const (
	Idle State = iota
	Fueling
	Cooking
)

func (s State) String() string {
	switch s {
	case Fueling:
		return "fueling"
	case Cooking:
		return "cooking"
	default:
		return "idle"
	}
}

type Furnace struct {
	Inv          *inventory.Inventory
	CookTimer    int
	FuelTimer    int
	MaxFuelTimer int
}

func New() *Furnace {
	return &Furnace{Inv: inventory.New(NumSlots)}
}

// State derives the current state from the timers.
func (f *Furnace) State() State {
	switch {
	case f.CookTimer > 0:
		return Cooking
	case f.FuelTimer > 0:
		return Fueling
	default:
		return Idle
	}
}

// target returns the smelt result when the input can be cooked into the output slot.
func (f *Furnace) target(r Rules) (int, bool) {
	in := f.Inv.Get(SlotInput)
	if in.Empty() {
		return 0, false
	}
	res, ok := r.SmeltResult(in.ID)
	if !ok {
		return 0, false
	}
	out := f.Inv.Get(SlotOut)
	if out.Empty() || (out.ID == res && out.Count < inventory.MaxStack) {
		return res, true
	}
	return 0, false
}

// Tick advances the furnace by one simulation tick.
func (f *Furnace) Tick(r Rules) {
	res, valid := f.target(r)

	if f.FuelTimer <= 0 && valid {
		fuel := f.Inv.Get(SlotFuel)
		if burn := r.BurnTicks(fuel.ID); burn > 0 {
			f.Inv.Remove(SlotFuel, 1)
			f.FuelTimer = burn
			f.MaxFuelTimer = burn
		}
	}

	burning := f.FuelTimer > 0
	if burning {
		f.FuelTimer--
	}

	if !valid || !burning {
		f.CookTimer = 0
		return
	}
	f.CookTimer++
	if f.CookTimer < r.CookTime() {
		return
	}
	f.Inv.Remove(SlotInput, 1)
	out := f.Inv.Get(SlotOut)
	f.Inv.Set(SlotOut, res, out.Count+1, 0)
	f.CookTimer = 0
}

// FuelFraction is the remaining fuel as a fraction of the last fuel item's burn time.
func (f *Furnace) FuelFraction() float64 {
	if f.MaxFuelTimer <= 0 {
		return 0
	}
	return float64(f.FuelTimer) / float64(f.MaxFuelTimer)
}

// CookFraction is the progress of the current smelt.
func (f *Furnace) CookFraction(r Rules) float64 {
	ct := r.CookTime()
	if ct <= 0 {
		return 0
	}
	return float64(f.CookTimer) / float64(ct)
}
