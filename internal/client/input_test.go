package client

import (
	"testing"

	"tilecraft.ai/internal/sim/catalogs"
	"tilecraft.ai/internal/sim/furnace"
	"tilecraft.ai/internal/sim/inventory"
)

func TestCraftingThroughMoveSlot(t *testing.T) {
	h := newHarness(t)
	h.e.Grid().Set(9, 8, catalogs.Crafter)
	h.e.Inventory().Set(0, catalogs.Wood, 2, 0)

	if h.e.MoveSlot(0, GridStart) {
		t.Fatalf("grid reachable outside the crafting overlay")
	}

	h.aim(9, 8)
	h.e.PressSecondary()
	h.tick(1)
	if m, _ := h.e.Mode(); m != ModeCrafting {
		t.Fatalf("mode=%v want crafting", m)
	}
	if !h.e.MoveSlot(0, GridStart) {
		t.Fatalf("MoveSlot into grid failed")
	}
	inv := h.e.Inventory()
	if inv.Get(OutputSlot) != (inventory.Slot{ID: catalogs.Planks, Count: 4}) {
		t.Fatalf("output=%+v", inv.Get(OutputSlot))
	}
	if h.e.MoveSlot(1, OutputSlot) {
		t.Fatalf("output slot accepted an item")
	}

	if !h.e.MoveSlot(OutputSlot, 1) {
		t.Fatalf("take output failed")
	}
	if inv.Get(1) != (inventory.Slot{ID: catalogs.Planks, Count: 4}) {
		t.Fatalf("slot1=%+v", inv.Get(1))
	}
	if inv.Get(GridStart).Count != 1 || inv.Get(OutputSlot).Count != 4 {
		t.Fatalf("grid=%+v output=%+v", inv.Get(GridStart), inv.Get(OutputSlot))
	}

	if !h.e.MoveSlot(OutputSlot, 1) {
		t.Fatalf("second take failed")
	}
	if inv.Get(1).Count != 8 || !inv.Get(GridStart).Empty() || !inv.Get(OutputSlot).Empty() {
		t.Fatalf("slot1=%+v grid=%+v output=%+v", inv.Get(1), inv.Get(GridStart), inv.Get(OutputSlot))
	}
}

func TestTakingOutputNeedsRoom(t *testing.T) {
	h := newHarness(t)
	h.e.Grid().Set(9, 8, catalogs.Crafter)
	inv := h.e.Inventory()
	inv.Set(0, catalogs.Wood, 1, 0)
	inv.Set(1, catalogs.Stone, 1, 0)
	h.aim(9, 8)
	h.e.PressSecondary()
	h.tick(1)
	h.e.MoveSlot(0, GridStart)

	if h.e.MoveSlot(OutputSlot, 1) {
		t.Fatalf("output merged onto a different item")
	}
	if inv.Get(GridStart).Count != 1 {
		t.Fatalf("ingredients consumed by a refused take")
	}
}

func TestMoveSlotMergesAndSwaps(t *testing.T) {
	h := newHarness(t)
	inv := h.e.Inventory()
	inv.Set(0, catalogs.Dirt, 60, 0)
	inv.Set(1, catalogs.Dirt, 10, 0)
	inv.Set(2, catalogs.Stone, 1, 0)

	if h.e.MoveSlot(0, 1) {
		t.Fatalf("MoveSlot allowed in normal mode")
	}
	h.e.ToggleInventory()

	if !h.e.MoveSlot(1, 0) {
		t.Fatalf("merge failed")
	}
	if inv.Get(0).Count != inventory.MaxStack || inv.Get(1).Count != 70-inventory.MaxStack {
		t.Fatalf("slot0=%+v slot1=%+v", inv.Get(0), inv.Get(1))
	}
	if !h.e.MoveSlot(2, 1) {
		t.Fatalf("swap failed")
	}
	if inv.Get(1).ID != catalogs.Stone || inv.Get(2).ID != catalogs.Dirt {
		t.Fatalf("slot1=%+v slot2=%+v", inv.Get(1), inv.Get(2))
	}
	if h.e.MoveSlot(0, GridStart) {
		t.Fatalf("grid reachable from the inventory overlay")
	}
}

func TestFurnaceOverlaySmelts(t *testing.T) {
	h := newHarness(t)
	h.e.Grid().Set(9, 8, catalogs.Furnace)
	inv := h.e.Inventory()
	inv.Set(0, catalogs.IronOre, 1, 0)
	inv.Set(1, catalogs.Wood, 1, 0)
	h.aim(9, 8)
	h.e.PressSecondary()
	h.tick(1)
	if m, pos := h.e.Mode(); m != ModeFurnace || pos != [2]int{9, 8} {
		t.Fatalf("mode=%v pos=%v", m, pos)
	}

	if !h.e.MoveSlot(0, OverlaySlot+furnace.SlotInput) || !h.e.MoveSlot(1, OverlaySlot+furnace.SlotFuel) {
		t.Fatalf("loading the furnace failed")
	}
	if h.e.MoveSlot(2, OverlaySlot+furnace.SlotOut) {
		t.Fatalf("furnace output accepted an item")
	}
	f, ok := h.e.Furnace(9, 8)
	if !ok {
		t.Fatalf("furnace missing")
	}

	h.tick(200)
	if f.Inv.Get(furnace.SlotOut) != (inventory.Slot{ID: catalogs.IronIngot, Count: 1}) {
		t.Fatalf("out=%+v state=%v", f.Inv.Get(furnace.SlotOut), f.State())
	}
	if !h.e.MoveSlot(OverlaySlot+furnace.SlotOut, 5) {
		t.Fatalf("taking furnace output failed")
	}
	if inv.Get(5).ID != catalogs.IronIngot || !f.Inv.Get(furnace.SlotOut).Empty() {
		t.Fatalf("slot5=%+v", inv.Get(5))
	}
}

func TestHotbarSelection(t *testing.T) {
	h := newHarness(t)
	h.e.ScrollHotbar(-1)
	if h.e.Selected() != HotbarSize-1 {
		t.Fatalf("selected=%d want %d", h.e.Selected(), HotbarSize-1)
	}
	h.e.ScrollHotbar(2)
	if h.e.Selected() != 1 {
		t.Fatalf("selected=%d want 1", h.e.Selected())
	}
	h.e.SelectHotbar(HotbarSize)
	if h.e.Selected() != 1 {
		t.Fatalf("out-of-range selection applied")
	}
	h.e.CycleColor()
	if h.e.Color() != Palette[1] {
		t.Fatalf("color=%v", h.e.Color())
	}
}
