package client

import (
	"math/rand"
	"strings"
	"testing"
	"time"

	"tilecraft.ai/internal/logging"
	"tilecraft.ai/internal/protocol"
	"tilecraft.ai/internal/sim/catalogs"
	"tilecraft.ai/internal/sim/inventory"
	"tilecraft.ai/internal/sim/tuning"
	"tilecraft.ai/internal/sim/world"
)

type recSender struct {
	lines []string
}

func (s *recSender) Send(line string) bool {
	s.lines = append(s.lines, line)
	return true
}

// take returns the recorded lines with the given verb and forgets everything recorded so far.
func (s *recSender) take(verb string) []string {
	var out []string
	for _, l := range s.lines {
		if strings.HasPrefix(l, verb+" ") {
			out = append(out, l)
		}
	}
	s.lines = nil
	return out
}

type harness struct {
	t    *testing.T
	e    *Engine
	out  *recSender
	now  time.Time
	tile int
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	return newHarnessWith(t, nil)
}

func newHarnessWith(t *testing.T, prof ProfileStore) *harness {
	t.Helper()
	out := &recSender{}
	tune := tuning.Defaults()
	cfg := Config{
		Tuning:  tune,
		Grid:    world.NewGrid(16),
		Sender:  out,
		Profile: prof,
		Log:     logging.Discard(),
		Rand:    rand.New(rand.NewSource(1)),
	}
	if q, ok := prof.(ProfileQueue); ok {
		cfg.ProfileSaves = q
	}
	e := New(cfg)
	h := &harness{t: t, e: e, out: out, now: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), tile: tune.TileSize}
	h.tick(1)
	out.lines = nil
	return h
}

func (h *harness) tick(n int) {
	for i := 0; i < n; i++ {
		h.e.Tick(h.now)
	}
}

func (h *harness) advance(d time.Duration) { h.now = h.now.Add(d) }

func (h *harness) deliver(lines ...string) {
	h.t.Helper()
	for _, l := range lines {
		m, err := protocol.Parse(protocol.Downstream, l)
		if err != nil {
			h.t.Fatalf("parse %q: %v", l, err)
		}
		h.e.Deliver(m)
	}
}

// aim points at the center of tile (tx, ty) using the current camera.
func (h *harness) aim(tx, ty int) {
	cx, cy := h.e.Camera()
	h.e.SetPointer(tx*h.tile+h.tile/2-cx, ty*h.tile+h.tile/2-cy)
}

func TestSpawnAtMapCenter(t *testing.T) {
	h := newHarness(t)
	x, y := h.e.Position()
	if x != 262 || y != 262 {
		t.Fatalf("spawn=(%d,%d) want (262,262)", x, y)
	}
	if h.e.Health() != 100 || h.e.Online() != true {
		t.Fatalf("health=%d online=%v", h.e.Health(), h.e.Online())
	}
}

func TestInboundAppliedAtTickStart(t *testing.T) {
	h := newHarness(t)
	h.deliver(
		"LOGIN 3 9",
		"PLAYER 5 10 20",
		"MONEY 5 70",
		"COLOR 5 1 2 3",
		"PLAYER 6 1 1",
		"HULCS_ID 20",
		"HULCS_ID 4",
		"BLOCK 4 4 3",
		"DAMAGE 30",
	)
	if h.e.Grid().At(4, 4) != catalogs.Air {
		t.Fatalf("inbound applied before tick")
	}
	h.tick(1)

	if h.e.ID() != 3 || h.e.NextStorageID() != 21 {
		t.Fatalf("id=%d next=%d", h.e.ID(), h.e.NextStorageID())
	}
	if h.e.Color() != Palette[3] {
		t.Fatalf("color=%v", h.e.Color())
	}
	rs := h.e.Remotes()
	if len(rs) != 2 || rs[0] != (Remote{ID: 5, X: 10, Y: 20, Money: 70, Color: [3]int{1, 2, 3}}) {
		t.Fatalf("remotes=%+v", rs)
	}
	if h.e.Grid().At(4, 4) != catalogs.Stone || h.e.Health() != 70 {
		t.Fatalf("block=%d health=%d", h.e.Grid().At(4, 4), h.e.Health())
	}

	h.deliver("LEAVE 6")
	h.tick(1)
	if rs := h.e.Remotes(); len(rs) != 1 || rs[0].ID != 5 {
		t.Fatalf("remotes after leave=%+v", rs)
	}
}

func TestPresenceFlushedEveryTick(t *testing.T) {
	h := newHarness(t)
	h.tick(3)
	if n := len(h.out.take(protocol.VerbPos)); n != 3 {
		t.Fatalf("POS lines=%d want 3", n)
	}
	h.tick(1)
	lines := h.out.lines
	want := []string{"POS 262 262", "MONEY 0", "COLOR 230 57 70"}
	if len(lines) != 3 {
		t.Fatalf("lines=%v", lines)
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Fatalf("line %d=%q want %q", i, lines[i], want[i])
		}
	}
}

func TestContainerReplication(t *testing.T) {
	h := newHarness(t)
	h.deliver(
		"BLOCK 4 4 11",
		"CONT 4 4 2 3 7 0",
		"CONT 5 5 0 3 7 0", // no chest there
		"BLOCK 3 3 12",
		"CONT 3 3 -1 12 1 8",
		"HULCS_DATA 8 0 3 5 0",
	)
	h.tick(1)

	inv, ok := h.e.Container(4, 4)
	if !ok || inv.Get(2) != (inventory.Slot{ID: catalogs.Stone, Count: 7}) {
		t.Fatalf("chest container=%v ok=%v", inv, ok)
	}
	if _, ok := h.e.Container(5, 5); ok {
		t.Fatalf("container created on air")
	}
	st, ok := h.e.Container(3, 3)
	if !ok || st.Get(0).Count != 5 {
		t.Fatalf("storage container not bound")
	}
	if s8, _ := h.e.Storage(8); s8 != st {
		t.Fatalf("bound container is not storage 8")
	}

	h.deliver("BLOCK 4 4 0", "CONT 4 4 2 0 0 0")
	h.tick(1)
	if _, ok := h.e.Container(4, 4); ok {
		t.Fatalf("container survived block removal")
	}
}

func TestMovementStopsAtSolidCells(t *testing.T) {
	h := newHarness(t)
	h.e.Grid().Set(9, 8, catalogs.Stone)
	h.e.SetDirection(1, 0)
	h.tick(10)
	x, y := h.e.Position()
	if x != 9*32-20 || y != 262 {
		t.Fatalf("pos=(%d,%d) want (%d,262)", x, y, 9*32-20)
	}

	h.e.SetDirection(0, -7)
	h.tick(1)
	if _, y := h.e.Position(); y != 257 {
		t.Fatalf("y=%d want 257", y)
	}
}

func TestOverlaySuspendsMovement(t *testing.T) {
	h := newHarness(t)
	h.e.ToggleInventory()
	h.e.SetDirection(1, 1)
	h.tick(5)
	if x, y := h.e.Position(); x != 262 || y != 262 {
		t.Fatalf("moved while overlay open: (%d,%d)", x, y)
	}
	if m, _ := h.e.Mode(); m != ModeInventory {
		t.Fatalf("mode=%v", m)
	}
	h.e.ToggleInventory()
	h.tick(1)
	if x, _ := h.e.Position(); x != 267 {
		t.Fatalf("x=%d want 267", x)
	}
}

func TestDashAndInvincibility(t *testing.T) {
	h := newHarness(t)
	h.e.SetDirection(1, 0)
	h.e.RequestDash()
	h.advance(16 * time.Millisecond)
	h.tick(1)
	if !h.e.Dashing() {
		t.Fatalf("dash did not start")
	}
	if x, _ := h.e.Position(); x != 262+15 {
		t.Fatalf("x=%d want %d", x, 262+15)
	}

	h.deliver("DAMAGE 50")
	h.tick(1)
	if h.e.Health() != 100 {
		t.Fatalf("damage applied while dashing: %d", h.e.Health())
	}

	h.advance(300 * time.Millisecond)
	h.tick(1)
	if h.e.Dashing() {
		t.Fatalf("dash did not end")
	}
	h.e.RequestDash()
	h.tick(1)
	if h.e.Dashing() {
		t.Fatalf("dash ignored cooldown")
	}
}

func TestLethalDamageRespawns(t *testing.T) {
	h := newHarness(t)
	h.e.SetDirection(-1, 0)
	h.tick(3)
	h.e.SetDirection(0, 0)
	h.deliver("DAMAGE 60", "DAMAGE 60")
	h.tick(1)
	if h.e.Health() != 100 {
		t.Fatalf("health=%d want full after respawn", h.e.Health())
	}
	if x, y := h.e.Position(); x != 262 || y != 262 {
		t.Fatalf("respawn pos=(%d,%d)", x, y)
	}
}

func TestOfflineEngineEmitsNothing(t *testing.T) {
	e := New(Config{Grid: world.NewGrid(8), Log: logging.Discard()})
	if e.Online() {
		t.Fatalf("nil sender should be offline")
	}
	e.Tick(time.Now())
	e.SetSender(&recSender{})
	if !e.Online() {
		t.Fatalf("SetSender did not switch online")
	}
}

type memProfile struct {
	money      int
	slots      []inventory.Slot
	moneySaves int
	queued     []*inventory.Inventory
}

func (m *memProfile) LoadMoney() (int, error) { return m.money, nil }

func (m *memProfile) SaveMoney(n int) error {
	m.money = n
	m.moneySaves++
	return nil
}

func (m *memProfile) LoadInventory(inv *inventory.Inventory) error {
	for i, s := range m.slots {
		inv.SetSlot(i, s)
	}
	return nil
}

func (m *memProfile) SaveInventory(inv *inventory.Inventory) error {
	m.slots = inv.Slots()
	return nil
}

// Queue saves synchronously; the engine only needs the hand-off.
func (m *memProfile) Queue(money int, inv *inventory.Inventory) {
	m.queued = append(m.queued, inv)
	_ = m.SaveMoney(money)
	_ = m.SaveInventory(inv)
}

func TestProfileLoadedAndSavedWhenDirty(t *testing.T) {
	prof := &memProfile{money: 50, slots: []inventory.Slot{{ID: catalogs.PickBase, Count: 1}}}
	h := newHarnessWith(t, prof)
	if h.e.Money() != 50 || h.e.Inventory().Get(0).ID != catalogs.PickBase {
		t.Fatalf("profile not loaded: money=%d slot0=%+v", h.e.Money(), h.e.Inventory().Get(0))
	}
	if prof.moneySaves != 0 {
		t.Fatalf("clean profile saved")
	}

	h.e.Grid().Set(9, 8, catalogs.Dirt)
	h.aim(9, 8)
	h.e.PressPrimary()
	h.tick(15)
	if h.e.Money() != 51 {
		t.Fatalf("money=%d want 51", h.e.Money())
	}
	if prof.moneySaves != 1 || prof.money != 51 {
		t.Fatalf("saves=%d money=%d", prof.moneySaves, prof.money)
	}
	h.tick(5)
	if prof.moneySaves != 1 {
		t.Fatalf("saved again without changes")
	}
	if len(prof.queued) != 1 || prof.queued[0] == h.e.Inventory() {
		t.Fatalf("tick must hand over a copy of the inventory")
	}
}
