// Package inventory is a fixed-size array of item stacks.
//
// Every operation is index-range safe: reads outside the array return the empty slot and writes
// outside it are ignored. UI code probes indices derived from screen coordinates and relies on that.
package inventory

const MaxStack = 64

// Slot is one stack. The zero value is the canonical empty slot.
type Slot struct {
	ID    int
	Count int
	Aux   int
}

func (s Slot) Empty() bool { return s.ID == 0 }

type Inventory struct {
	slots []Slot
}

func New(size int) *Inventory {
	if size < 0 {
		size = 0
	}
	return &Inventory{slots: make([]Slot, size)}
}

func (inv *Inventory) Len() int { return len(inv.slots) }

func (inv *Inventory) valid(i int) bool { return i >= 0 && i < len(inv.slots) }

func (inv *Inventory) Get(i int) Slot {
	if !inv.valid(i) {
		return Slot{}
	}
	return inv.slots[i]
}

// Set overwrites slot i. id==0 or count<=0 produce the empty slot; count is capped at MaxStack.
func (inv *Inventory) Set(i, id, count, aux int) {
	if !inv.valid(i) {
		return
	}
	if id == 0 || count <= 0 {
		inv.slots[i] = Slot{}
		return
	}
	if count > MaxStack {
		count = MaxStack
	}
	inv.slots[i] = Slot{ID: id, Count: count, Aux: aux}
}

func (inv *Inventory) SetSlot(i int, s Slot) { inv.Set(i, s.ID, s.Count, s.Aux) }

// Add stores count units of (id, aux) anywhere in the inventory.
func (inv *Inventory) Add(id, count, aux int) bool {
	return inv.AddRange(0, len(inv.slots), id, count, aux)
}

// AddRange is Add restricted to slots [lo, hi). Existing (id, aux) stacks are topped up left to
// right first, then empty slots are filled left to right. It reports whether every unit fit;
// units that fit stay added either way.
func (inv *Inventory) AddRange(lo, hi, id, count, aux int) bool {
	if id == 0 || count <= 0 {
		return true
	}
	if lo < 0 {
		lo = 0
	}
	if hi > len(inv.slots) {
		hi = len(inv.slots)
	}
	for i := lo; i < hi && count > 0; i++ {
		s := &inv.slots[i]
		if s.ID != id || s.Aux != aux || s.Count >= MaxStack {
			continue
		}
		n := min(count, MaxStack-s.Count)
		s.Count += n
		count -= n
	}
	for i := lo; i < hi && count > 0; i++ {
		s := &inv.slots[i]
		if s.ID != 0 {
			continue
		}
		n := min(count, MaxStack)
		*s = Slot{ID: id, Count: n, Aux: aux}
		count -= n
	}
	return count <= 0
}

// Remove takes amount units from slot i, clearing it when nothing is left.
func (inv *Inventory) Remove(i, amount int) {
	if !inv.valid(i) {
		return
	}
	s := &inv.slots[i]
	s.Count -= amount
	if s.Count <= 0 {
		*s = Slot{}
	}
}

// Swap exchanges two slots without merging.
func (inv *Inventory) Swap(i, j int) {
	if !inv.valid(i) || !inv.valid(j) {
		return
	}
	inv.slots[i], inv.slots[j] = inv.slots[j], inv.slots[i]
}

func (inv *Inventory) Clear(i int) {
	if !inv.valid(i) {
		return
	}
	inv.slots[i] = Slot{}
}

// Slots returns a copy of every slot in order.
func (inv *Inventory) Slots() []Slot {
	out := make([]Slot, len(inv.slots))
	copy(out, inv.slots)
	return out
}

// Clone returns an independent copy.
func (inv *Inventory) Clone() *Inventory {
	return &Inventory{slots: inv.Slots()}
}

// CountOf totals the units of (id, aux) across all slots.
func (inv *Inventory) CountOf(id, aux int) int {
	n := 0
	for _, s := range inv.slots {
		if s.ID == id && s.Aux == aux {
			n += s.Count
		}
	}
	return n
}

// Exchange swaps slot i of a with slot j of b. a and b may be the same inventory.
func Exchange(a *Inventory, i int, b *Inventory, j int) {
	if a == nil || b == nil || !a.valid(i) || !b.valid(j) {
		return
	}
	a.slots[i], b.slots[j] = b.slots[j], a.slots[i]
}
