package client

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/sirupsen/logrus"

	"tilecraft.ai/internal/protocol"
	"tilecraft.ai/internal/sim/catalogs"
	"tilecraft.ai/internal/sim/furnace"
	"tilecraft.ai/internal/sim/inventory"
)

// resolveWorldAction runs mining, melee, placing and block interaction for the tile under the
// pointer. Everything is gated by reach; leaving reach resets mining progress.
func (e *Engine) resolveWorldAction() {
	cx, cy := e.center()
	if (mgl64.Vec2{e.aimX - cx, e.aimY - cy}).Len() > e.tune.Player.Reach {
		e.miningProgress = 0
		return
	}
	ts := float64(e.tune.TileSize)
	tx, ty := int(math.Floor(e.aimX/ts)), int(math.Floor(e.aimY/ts))
	block := e.grid.At(tx, ty)
	held := e.held()

	if e.secondaryEdge && e.interact(tx, ty, block) {
		return
	}

	switch {
	case e.primaryHeld && block != catalogs.Air:
		e.mine(tx, ty, block, held)
	case e.primaryHeld && e.primaryEdge && e.cats.Item(held.ID).Kind.IsWeapon():
		e.miningProgress = 0
		e.melee(held)
	default:
		e.miningProgress = 0
	}

	if e.secondaryHeld && block == catalogs.Air && !held.Empty() && e.cats.IsBlock(held.ID) {
		e.place(tx, ty, held)
	}
}

func (e *Engine) mine(tx, ty, block int, held inventory.Slot) {
	if tx != e.miningX || ty != e.miningY {
		e.miningX, e.miningY = tx, ty
		e.miningProgress = 0
	}
	def := e.cats.Item(block)
	if def.Toughness == catalogs.Unbreakable {
		e.miningProgress = 0
		return
	}
	e.miningProgress += e.cats.MiningRate(held.ID, block, e.tune.Mining.BaseRate, e.tune.Mining.TierMultiplier)
	if e.miningProgress >= float64(def.Toughness) {
		e.miningProgress = 0
		e.breakBlock(tx, ty, block)
	}
}

// breakBlock clears the cell, pays out its value and spawns what it leaves behind.
func (e *Engine) breakBlock(tx, ty, block int) {
	if !e.grid.Set(tx, ty, catalogs.Air) {
		return
	}
	pos := [2]int{tx, ty}
	e.money += e.cats.Item(block).Value
	e.dirty = true
	e.emitBlock(tx, ty, catalogs.Air)

	switch block {
	case catalogs.Chest:
		if c, ok := e.containers[pos]; ok {
			for i, s := range c.inv.Slots() {
				if s.Empty() {
					continue
				}
				e.spill(pos, s)
				e.emit(protocol.VerbCont, tx, ty, i, 0, 0, 0)
			}
		}
		e.spawnDrop(pos, catalogs.Chest, 0)
	case catalogs.Furnace:
		if f, ok := e.furnaces[pos]; ok {
			for _, s := range f.Inv.Slots() {
				e.spill(pos, s)
			}
		}
		e.spawnDrop(pos, catalogs.Furnace, 0)
	case catalogs.Hulcs:
		hid := 0
		if c, ok := e.containers[pos]; ok {
			hid = c.storage
		}
		if hid != 0 {
			e.emit(protocol.VerbCont, tx, ty, StorageBindingSlot, 0, 0, 0)
		}
		e.spawnDrop(pos, catalogs.Hulcs, hid)
	default:
		e.spawnDrop(pos, e.cats.DropFor(block), 0)
	}
	delete(e.containers, pos)
	delete(e.furnaces, pos)

	e.log.WithFields(logrus.Fields{"x": tx, "y": ty, "block": block}).Debug("block broken")
}

// spill drops every unit of s as its own entity.
func (e *Engine) spill(pos [2]int, s inventory.Slot) {
	for k := 0; k < s.Count; k++ {
		e.spawnDrop(pos, s.ID, s.Aux)
	}
}

func (e *Engine) spawnDrop(pos [2]int, id, aux int) {
	if id == catalogs.Air {
		return
	}
	ts := float64(e.tune.TileSize)
	at := mgl64.Vec2{float64(pos[0])*ts + ts/2, float64(pos[1])*ts + ts/2}
	ent := e.drops.Spawn(id, aux, at, e.now)
	e.emit(protocol.VerbDrop, id, aux, int(math.Round(ent.Pos.X())), int(math.Round(ent.Pos.Y())))
}

// melee hits the first remote player, by id, whose center is within the melee radius of the
// pointer, then releases the trigger so the next hit needs a new press.
func (e *Engine) melee(held inventory.Slot) {
	half := float64(e.tune.Player.Size) / 2
	aim := mgl64.Vec2{e.aimX, e.aimY}
	for _, r := range e.Remotes() {
		c := mgl64.Vec2{float64(r.X) + half, float64(r.Y) + half}
		if c.Sub(aim).Len() < e.tune.Player.MeleeRadius {
			e.emit(protocol.VerbHit, r.ID, e.cats.Damage(held.ID))
			e.primaryHeld = false
			return
		}
	}
}

func (e *Engine) place(tx, ty int, held inventory.Slot) {
	ts, size := e.tune.TileSize, e.tune.Player.Size
	if overlaps(tx*ts, ty*ts, ts, e.x, e.y, size) {
		return
	}
	if !e.grid.Set(tx, ty, held.ID) {
		return
	}
	e.inv.Remove(HotbarStart+e.selected, 1)
	e.dirty = true
	e.emitBlock(tx, ty, held.ID)

	if held.ID == catalogs.Hulcs {
		e.bindStorage([2]int{tx, ty}, held.Aux)
	}
}

// emitBlock announces a local cell write and remembers it until the relay echoes it back.
func (e *Engine) emitBlock(x, y, id int) {
	if e.send == nil {
		return
	}
	if e.send.Send(protocol.Line(protocol.VerbBlock, x, y, id)) {
		pos := [2]int{x, y}
		e.pendingBlocks[pos] = append(e.pendingBlocks[pos], id)
	}
}

// bindStorage attaches storage hid to the storage block at pos, allocating a fresh id when hid is 0.
func (e *Engine) bindStorage(pos [2]int, hid int) {
	if hid == 0 {
		hid = e.nextStorage
		e.nextStorage++
		e.emit(protocol.VerbHulcsID, hid)
	}
	e.containers[pos] = &container{inv: e.storage(hid), storage: hid}
	e.emit(protocol.VerbCont, pos[0], pos[1], StorageBindingSlot, catalogs.Hulcs, 1, hid)
}

// interact opens the overlay for an interactive block. It reports whether one was opened.
func (e *Engine) interact(tx, ty, block int) bool {
	pos := [2]int{tx, ty}
	switch block {
	case catalogs.Crafter:
		e.setMode(ModeCrafting, pos)
	case catalogs.Furnace:
		if _, ok := e.furnaces[pos]; !ok {
			e.furnaces[pos] = furnace.New()
		}
		e.setMode(ModeFurnace, pos)
	case catalogs.Chest:
		if _, ok := e.containers[pos]; !ok {
			e.newContainer(pos)
		}
		e.setMode(ModeContainer, pos)
	case catalogs.Hulcs:
		if _, ok := e.containers[pos]; !ok {
			e.bindStorage(pos, 0)
		}
		e.setMode(ModeContainer, pos)
	default:
		return false
	}
	return true
}

// overlaps reports whether the tile square at (ax, ay) intersects the player box at (bx, by).
func overlaps(ax, ay, asize, bx, by, bsize int) bool {
	return ax < bx+bsize && bx < ax+asize && ay < by+bsize && by < ay+asize
}
