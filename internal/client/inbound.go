package client

import (
	"github.com/go-gl/mathgl/mgl64"
	"github.com/sirupsen/logrus"

	"tilecraft.ai/internal/protocol"
	"tilecraft.ai/internal/sim/catalogs"
	"tilecraft.ai/internal/sim/inventory"
)

// StorageBindingSlot is the CONT slot index that binds a world position to a movable storage id:
// CONT x y -1 HULCS 1 hid. Clearing it (id 0) unbinds.
const StorageBindingSlot = -1

func (e *Engine) apply(m protocol.Message) {
	a := m.Arg
	switch m.Verb {
	case protocol.VerbLogin:
		clear(e.pendingBlocks)
		e.id = a(0)
		e.nextStorage = a(1)
		e.colorIdx = paletteIndex(e.id)
		e.log.WithFields(logrus.Fields{"id": e.id, "next_storage": e.nextStorage}).Info("logged in")
	case protocol.VerbPlayer:
		r := e.remote(a(0))
		r.X, r.Y = a(1), a(2)
	case protocol.VerbMoney:
		e.remote(a(0)).Money = a(1)
	case protocol.VerbColor:
		e.remote(a(0)).Color = [3]int{a(1), a(2), a(3)}
	case protocol.VerbLeave:
		delete(e.remotes, a(0))
	case protocol.VerbBlock:
		e.applyBlock(a(0), a(1), a(2))
	case protocol.VerbCont:
		e.applyCont(a(0), a(1), a(2), inventory.Slot{ID: a(3), Count: a(4), Aux: a(5)})
	case protocol.VerbHulcsData:
		e.storage(a(0)).Set(a(1), a(2), a(3), a(4))
	case protocol.VerbHulcsID:
		if n := a(0) + 1; n > e.nextStorage {
			e.nextStorage = n
		}
	case protocol.VerbDrop:
		e.drops.Append(a(0), a(1), mgl64.Vec2{float64(a(2)), float64(a(3))}, e.now)
	case protocol.VerbDamage:
		e.takeDamage(a(0))
	}
}

func (e *Engine) remote(id int) *Remote {
	r, ok := e.remotes[id]
	if !ok {
		r = &Remote{ID: id}
		e.remotes[id] = r
	}
	return r
}

// applyBlock writes a cell. Local state attached to the old block goes away when the type changes.
//
// While this client has writes to the cell in flight, the grid already shows the newest of them and
// the relay orders every BLOCK that arrives before their echo ahead of them. Such lines only
// consume the matching echo and leave the cell alone.
func (e *Engine) applyBlock(x, y, id int) {
	pos := [2]int{x, y}
	if q := e.pendingBlocks[pos]; len(q) > 0 {
		if q[0] == id {
			q = q[1:]
		}
		if len(q) == 0 {
			delete(e.pendingBlocks, pos)
		} else {
			e.pendingBlocks[pos] = q
		}
		return
	}
	old := e.grid.At(x, y)
	if !e.grid.Set(x, y, id) {
		return
	}
	if old != id {
		delete(e.containers, pos)
		delete(e.furnaces, pos)
		if e.mode.HasPos() && e.modePos == pos {
			e.setMode(ModeNormal, pos)
		}
	}
}

func (e *Engine) applyCont(x, y, slot int, s inventory.Slot) {
	pos := [2]int{x, y}
	block := e.grid.At(x, y)
	if slot == StorageBindingSlot {
		if block != catalogs.Hulcs {
			return
		}
		if s.ID == catalogs.Air {
			delete(e.containers, pos)
			return
		}
		e.containers[pos] = &container{inv: e.storage(s.Aux), storage: s.Aux}
		return
	}
	if block != catalogs.Chest {
		return
	}
	c, ok := e.containers[pos]
	if !ok {
		if s.Empty() {
			return
		}
		c = e.newContainer(pos)
	}
	c.inv.SetSlot(slot, s)
}

// storage returns the movable storage hid, creating it on first reference.
func (e *Engine) storage(hid int) *inventory.Inventory {
	inv, ok := e.storages[hid]
	if !ok {
		inv = inventory.New(e.tune.Containers.StorageSlots)
		e.storages[hid] = inv
	}
	return inv
}

func (e *Engine) newContainer(pos [2]int) *container {
	c := &container{inv: inventory.New(e.tune.Containers.ChestSlots)}
	e.containers[pos] = c
	return c
}

func (e *Engine) takeDamage(n int) {
	if e.dashing || n <= 0 {
		return
	}
	e.health -= n
	if e.health <= 0 {
		e.respawn()
	}
}

func (e *Engine) respawn() {
	e.health = e.tune.Player.MaxHealth
	e.x, e.y = e.spawnPoint()
	e.dashing = false
	e.miningProgress = 0
	e.log.WithField("id", e.id).Info("respawned")
}
