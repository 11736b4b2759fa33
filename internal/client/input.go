package client

import (
	"tilecraft.ai/internal/protocol"
	"tilecraft.ai/internal/sim/furnace"
	"tilecraft.ai/internal/sim/inventory"
)

type Mode int

const (
	ModeNormal Mode = iota
	ModeInventory
	ModeCrafting
	ModeFurnace
	ModeContainer
)

func (m Mode) String() string {
	switch m {
	case ModeInventory:
		return "inventory"
	case ModeCrafting:
		return "crafting"
	case ModeFurnace:
		return "furnace"
	case ModeContainer:
		return "container"
	default:
		return "normal"
	}
}

// HasPos reports whether the mode is bound to a world position.
func (m Mode) HasPos() bool { return m == ModeFurnace || m == ModeContainer }

// OverlaySlot is the first MoveSlot index addressing the open furnace or container.
const OverlaySlot = PlayerSlots

// Palette is the fixed set of player colors.
var Palette = [10][3]int{
	{230, 57, 70},
	{29, 53, 87},
	{69, 123, 157},
	{42, 157, 143},
	{233, 196, 106},
	{244, 162, 97},
	{231, 111, 81},
	{131, 56, 236},
	{58, 134, 255},
	{255, 190, 11},
}

func paletteIndex(id int) int {
	if id < 0 {
		id = -id
	}
	return id % len(Palette)
}

// Mode returns the active mode and, for furnace and container overlays, the tile it is bound to.
func (e *Engine) Mode() (Mode, [2]int) { return e.mode, e.modePos }

// setMode switches modes. Entering any mode drops pending trigger state.
func (e *Engine) setMode(m Mode, pos [2]int) {
	e.mode = m
	if m.HasPos() {
		e.modePos = pos
	} else {
		e.modePos = [2]int{}
	}
	e.primaryHeld, e.primaryEdge = false, false
	e.secondaryHeld, e.secondaryEdge = false, false
	e.miningProgress = 0
}

// ToggleInventory opens the inventory overlay from normal play and closes any overlay otherwise.
func (e *Engine) ToggleInventory() {
	if e.mode == ModeNormal {
		e.setMode(ModeInventory, [2]int{})
		return
	}
	e.setMode(ModeNormal, [2]int{})
}

func (e *Engine) CloseOverlay() { e.setMode(ModeNormal, [2]int{}) }

// SetDirection sets the held movement direction; each component is clamped to -1..1.
func (e *Engine) SetDirection(dx, dy int) {
	e.dirX, e.dirY = sign(dx), sign(dy)
}

// SetPointer records the pointer position in screen pixels.
func (e *Engine) SetPointer(sx, sy int) { e.pointerX, e.pointerY = sx, sy }

func (e *Engine) PressPrimary() {
	if !e.primaryHeld {
		e.primaryEdge = true
	}
	e.primaryHeld = true
}

func (e *Engine) ReleasePrimary() { e.primaryHeld = false }

func (e *Engine) PressSecondary() {
	if !e.secondaryHeld {
		e.secondaryEdge = true
	}
	e.secondaryHeld = true
}

func (e *Engine) ReleaseSecondary() { e.secondaryHeld = false }

// RequestDash starts a dash on the next tick if the cooldown allows it.
func (e *Engine) RequestDash() { e.dashRequested = true }

// SelectHotbar picks hotbar slot i; out-of-range values are ignored.
func (e *Engine) SelectHotbar(i int) {
	if i >= 0 && i < HotbarSize {
		e.selected = i
	}
}

// ScrollHotbar moves the selection by delta with wrap-around.
func (e *Engine) ScrollHotbar(delta int) {
	e.selected = ((e.selected+delta)%HotbarSize + HotbarSize) % HotbarSize
}

// CycleColor picks the next palette color; it is announced on the next tick.
func (e *Engine) CycleColor() { e.colorIdx = (e.colorIdx + 1) % len(Palette) }

func (e *Engine) held() inventory.Slot { return e.inv.Get(HotbarStart + e.selected) }

type slotRef struct {
	inv *inventory.Inventory
	idx int
}

// ref resolves a MoveSlot index against the current mode. Slots the mode does not show are
// unreachable.
func (e *Engine) ref(i int) (slotRef, bool) {
	switch {
	case i >= HotbarStart && i < BagEnd:
		return slotRef{e.inv, i}, e.mode != ModeNormal
	case i >= GridStart && i <= OutputSlot:
		return slotRef{e.inv, i}, e.mode == ModeCrafting
	case i >= OverlaySlot:
		inv := e.overlayInventory()
		if inv == nil || i-OverlaySlot >= inv.Len() {
			return slotRef{}, false
		}
		return slotRef{inv, i - OverlaySlot}, true
	}
	return slotRef{}, false
}

func (e *Engine) overlayInventory() *inventory.Inventory {
	switch e.mode {
	case ModeFurnace:
		if f, ok := e.furnaces[e.modePos]; ok {
			return f.Inv
		}
	case ModeContainer:
		if c, ok := e.containers[e.modePos]; ok {
			return c.inv
		}
	}
	return nil
}

// MoveSlot moves the stack at from onto to. Identical stacks merge up to the stack cap; anything
// else swaps. Taking the crafting output consumes one unit of every ingredient. The crafting output
// and the furnace output only accept items by being taken from.
func (e *Engine) MoveSlot(from, to int) bool {
	if from == to {
		return false
	}
	src, ok1 := e.ref(from)
	dst, ok2 := e.ref(to)
	if !ok1 || !ok2 || to == OutputSlot || e.isFurnaceOut(to) {
		return false
	}
	s := src.inv.Get(src.idx)
	d := dst.inv.Get(dst.idx)

	switch {
	case from == OutputSlot || e.isFurnaceOut(from):
		if s.Empty() {
			return false
		}
		if !d.Empty() && (d.ID != s.ID || d.Aux != s.Aux || d.Count+s.Count > inventory.MaxStack) {
			return false
		}
		dst.inv.Set(dst.idx, s.ID, d.Count+s.Count, s.Aux)
		src.inv.Clear(src.idx)
		if from == OutputSlot {
			e.craft.Consume(e.inv, GridStart, OutputSlot)
		}
	case !s.Empty() && s.ID == d.ID && s.Aux == d.Aux && d.Count < inventory.MaxStack:
		n := min(s.Count, inventory.MaxStack-d.Count)
		dst.inv.Set(dst.idx, d.ID, d.Count+n, d.Aux)
		src.inv.Remove(src.idx, n)
	default:
		inventory.Exchange(src.inv, src.idx, dst.inv, dst.idx)
	}

	for _, i := range [2]int{from, to} {
		switch {
		case i >= GridStart && i < OutputSlot:
			e.craft.Refresh(e.inv, GridStart, OutputSlot)
		case i >= OverlaySlot && e.mode == ModeContainer:
			e.announceContainerSlot(e.modePos, i-OverlaySlot)
		}
	}
	if from < OverlaySlot || to < OverlaySlot {
		e.dirty = true
	}
	return true
}

func (e *Engine) isFurnaceOut(i int) bool {
	return e.mode == ModeFurnace && i == OverlaySlot+furnace.SlotOut
}

// announceContainerSlot replicates one slot of the container at pos.
func (e *Engine) announceContainerSlot(pos [2]int, slot int) {
	c, ok := e.containers[pos]
	if !ok {
		return
	}
	s := c.inv.Get(slot)
	if c.storage != 0 {
		e.emit(protocol.VerbHulcsData, c.storage, slot, s.ID, s.Count, s.Aux)
		return
	}
	e.emit(protocol.VerbCont, pos[0], pos[1], slot, s.ID, s.Count, s.Aux)
}

func sign(v int) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	}
	return 0
}
