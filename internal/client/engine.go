// Package client is the per-player simulation: movement, mining and placing, overlays, furnaces,
// dropped items, and the translation between local actions and protocol lines.
//
// Engine is owned by a single goroutine that calls Tick at a fixed rate and feeds input between
// ticks. The network goroutine only hands decoded lines to Deliver; they are applied at the start of
// the next tick.
package client

import (
	"math/rand"
	"sort"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/sirupsen/logrus"

	"tilecraft.ai/internal/protocol"
	"tilecraft.ai/internal/sim/catalogs"
	"tilecraft.ai/internal/sim/crafting"
	"tilecraft.ai/internal/sim/drops"
	"tilecraft.ai/internal/sim/furnace"
	"tilecraft.ai/internal/sim/inventory"
	"tilecraft.ai/internal/sim/tuning"
	"tilecraft.ai/internal/sim/world"
)

// Player inventory layout.
const (
	HotbarStart = 0
	HotbarSize  = 8
	BagStart    = 8
	BagEnd      = 32
	GridStart   = 32
	OutputSlot  = 41
	PlayerSlots = 42
)

// Sender is the outbound half of a connection. A nil Sender means offline play. Send is called on
// the tick and must not block; a full connection drops the line instead.
type Sender interface {
	Send(line string) bool
}

// ProfileStore persists the balance and inventory. *profile.Store implements it.
type ProfileStore interface {
	LoadMoney() (int, error)
	SaveMoney(n int) error
	LoadInventory(inv *inventory.Inventory) error
	SaveInventory(inv *inventory.Inventory) error
}

// ProfileQueue takes the tick's periodic saves off the tick goroutine. *profile.Writer implements
// it. The engine hands over a copy of the inventory.
type ProfileQueue interface {
	Queue(money int, inv *inventory.Inventory)
}

type Config struct {
	Tuning   tuning.Tuning
	Catalogs *catalogs.Catalogs
	// Grid defaults to world.Generate(Tuning.MapSize, Tuning.Seed).
	Grid    *world.Grid
	Sender  Sender
	Profile ProfileStore
	// ProfileSaves receives throttled saves while the profile is dirty. Without it the tick never
	// writes and callers use SaveProfile.
	ProfileSaves ProfileQueue
	Log          logrus.FieldLogger
	Rand         *rand.Rand

	InboxSize int
	// ProfileEvery throttles profile writes while the profile is dirty.
	ProfileEvery time.Duration
}

// Remote is the last known state of another player. Each field is last write wins.
type Remote struct {
	ID    int
	X, Y  int
	Money int
	Color [3]int
}

type Engine struct {
	cfg   Config
	tune  tuning.Tuning
	cats  *catalogs.Catalogs
	grid  *world.Grid
	craft *crafting.Resolver
	log   logrus.FieldLogger
	send  Sender
	prof  ProfileStore

	inbox  chan protocol.Message
	redraw chan struct{}

	id          int
	nextStorage int

	inv      *inventory.Inventory
	selected int
	money    int
	health   int
	colorIdx int

	x, y     int
	cameraX  int
	cameraY  int
	pointerX int // screen pixels
	pointerY int
	aimX     float64 // world pixels, sampled each tick
	aimY     float64

	dirX, dirY    int
	dashing       bool
	dashUntil     time.Time
	dashReady     time.Time
	dashVel       mgl64.Vec2
	dashRequested bool

	primaryHeld    bool
	primaryEdge    bool
	secondaryHeld  bool
	secondaryEdge  bool
	miningX        int
	miningY        int
	miningProgress float64

	mode    Mode
	modePos [2]int

	remotes    map[int]*Remote
	containers map[[2]int]*container
	storages   map[int]*inventory.Inventory
	furnaces   map[[2]int]*furnace.Furnace
	drops      *drops.List

	// pendingBlocks holds the types this client wrote to a cell and sent, in order, until the
	// relay echoes them back.
	pendingBlocks map[[2]int][]int

	dirty     bool
	lastSaved time.Time
	now       time.Time
	ticks     uint64
}

// container is an inventory at a world position. A placed storage shares its inventory with the
// storages map and records the storage id.
type container struct {
	inv     *inventory.Inventory
	storage int
}

func New(cfg Config) *Engine {
	if cfg.Tuning.TickRateHz == 0 {
		cfg.Tuning = tuning.Defaults()
	}
	if cfg.Catalogs == nil {
		cfg.Catalogs = catalogs.MustDefault()
	}
	if cfg.Grid == nil {
		cfg.Grid = world.Generate(cfg.Tuning.MapSize, cfg.Tuning.Seed)
	}
	if cfg.Log == nil {
		l := logrus.New()
		l.SetLevel(logrus.WarnLevel)
		cfg.Log = l
	}
	if cfg.Rand == nil {
		cfg.Rand = rand.New(rand.NewSource(cfg.Tuning.Seed))
	}
	if cfg.InboxSize <= 0 {
		cfg.InboxSize = 1024
	}
	if cfg.ProfileEvery <= 0 {
		cfg.ProfileEvery = time.Second
	}

	e := &Engine{
		cfg:           cfg,
		tune:          cfg.Tuning,
		cats:          cfg.Catalogs,
		grid:          cfg.Grid,
		craft:         crafting.Default(),
		log:           cfg.Log,
		send:          cfg.Sender,
		prof:          cfg.Profile,
		inbox:         make(chan protocol.Message, cfg.InboxSize),
		redraw:        make(chan struct{}, 1),
		nextStorage:   1,
		inv:           inventory.New(PlayerSlots),
		health:        cfg.Tuning.Player.MaxHealth,
		remotes:       map[int]*Remote{},
		pendingBlocks: map[[2]int][]int{},
		containers:    map[[2]int]*container{},
		storages:      map[int]*inventory.Inventory{},
		furnaces:      map[[2]int]*furnace.Furnace{},
		drops:         drops.NewList(drops.ConfigFrom(cfg.Tuning.Drops), cfg.Rand),
	}
	e.x, e.y = e.spawnPoint()
	e.loadProfile()
	e.craft.Refresh(e.inv, GridStart, OutputSlot)
	return e
}

func (e *Engine) loadProfile() {
	if e.prof == nil {
		return
	}
	if n, err := e.prof.LoadMoney(); err != nil {
		e.log.WithError(err).Warn("load money; using defaults")
	} else {
		e.money = n
	}
	if err := e.prof.LoadInventory(e.inv); err != nil {
		e.log.WithError(err).Warn("load inventory; using defaults")
	}
}

// SaveProfile writes the balance and inventory now. Errors are logged and returned.
func (e *Engine) SaveProfile() error {
	if e.prof == nil {
		return nil
	}
	if err := e.prof.SaveMoney(e.money); err != nil {
		e.log.WithError(err).Warn("save money")
		return err
	}
	if err := e.prof.SaveInventory(e.inv); err != nil {
		e.log.WithError(err).Warn("save inventory")
		return err
	}
	e.dirty = false
	return nil
}

// Deliver queues an inbound message for the next tick. It blocks while the inbox is full.
func (e *Engine) Deliver(m protocol.Message) { e.inbox <- m }

// Inbox is the channel Deliver writes to, for callers that need to select on it.
func (e *Engine) Inbox() chan<- protocol.Message { return e.inbox }

// Redraw is signalled at the end of every tick. It never blocks the tick.
func (e *Engine) Redraw() <-chan struct{} { return e.redraw }

// Online reports whether outbound lines go anywhere.
func (e *Engine) Online() bool { return e.send != nil }

// SetSender switches between online and offline play. Writes still waiting for their echo are
// forgotten; the old connection will not deliver it.
func (e *Engine) SetSender(s Sender) {
	e.send = s
	clear(e.pendingBlocks)
}

// Tick advances the simulation by one step.
func (e *Engine) Tick(now time.Time) {
	e.now = now
	e.ticks++

	e.drainInbox()
	e.tickFurnaces()
	e.tickDrops()
	e.samplePointer()
	e.tickDash()
	if e.mode == ModeNormal && !e.dashing {
		e.moveBy(e.dirX*e.tune.Player.Speed, e.dirY*e.tune.Player.Speed)
	}
	e.updateCamera()
	e.flushPresence()
	if e.mode == ModeNormal {
		e.resolveWorldAction()
	}
	e.primaryEdge, e.secondaryEdge = false, false
	if e.dirty && e.cfg.ProfileSaves != nil && now.Sub(e.lastSaved) >= e.cfg.ProfileEvery {
		e.cfg.ProfileSaves.Queue(e.money, e.inv.Clone())
		e.dirty = false
		e.lastSaved = now
	}

	select {
	case e.redraw <- struct{}{}:
	default:
	}
}

func (e *Engine) drainInbox() {
	for {
		select {
		case m := <-e.inbox:
			e.apply(m)
		default:
			return
		}
	}
}

func (e *Engine) tickFurnaces() {
	for _, f := range e.furnaces {
		f.Tick(e.cats)
	}
}

func (e *Engine) tickDrops() {
	e.drops.Step()
	cx, cy := e.center()
	picked := e.drops.Pickup(mgl64.Vec2{cx, cy}, e.now, e.inv, HotbarStart, BagEnd)
	if len(picked) > 0 {
		e.dirty = true
	}
}

func (e *Engine) flushPresence() {
	e.emit(protocol.VerbPos, e.x, e.y)
	e.emit(protocol.VerbMoney, e.money)
	c := Palette[e.colorIdx]
	e.emit(protocol.VerbColor, c[0], c[1], c[2])
}

func (e *Engine) emit(verb string, args ...int) {
	if e.send == nil {
		return
	}
	e.send.Send(protocol.Line(verb, args...))
}

func (e *Engine) spawnPoint() (int, int) {
	ts := e.tune.TileSize
	c := e.grid.Size() / 2
	off := (ts - e.tune.Player.Size) / 2
	return c*ts + off, c*ts + off
}

func (e *Engine) center() (float64, float64) {
	half := float64(e.tune.Player.Size) / 2
	return float64(e.x) + half, float64(e.y) + half
}

// Accessors for renderers and tests.

func (e *Engine) ID() int                         { return e.id }
func (e *Engine) Position() (int, int)            { return e.x, e.y }
func (e *Engine) Camera() (int, int)              { return e.cameraX, e.cameraY }
func (e *Engine) Money() int                      { return e.money }
func (e *Engine) Health() int                     { return e.health }
func (e *Engine) Selected() int                   { return e.selected }
func (e *Engine) Inventory() *inventory.Inventory { return e.inv }
func (e *Engine) Grid() *world.Grid               { return e.grid }
func (e *Engine) Drops() []drops.Entity           { return e.drops.Items() }
func (e *Engine) NextStorageID() int              { return e.nextStorage }
func (e *Engine) Dashing() bool                   { return e.dashing }
func (e *Engine) Color() [3]int                   { return Palette[e.colorIdx] }
func (e *Engine) MiningProgress() float64         { return e.miningProgress }
func (e *Engine) Ticks() uint64                   { return e.ticks }

// Remotes returns the known remote players ordered by id.
func (e *Engine) Remotes() []Remote {
	out := make([]Remote, 0, len(e.remotes))
	for _, r := range e.remotes {
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Container returns the inventory at (x, y), if one exists.
func (e *Engine) Container(x, y int) (*inventory.Inventory, bool) {
	c, ok := e.containers[[2]int{x, y}]
	if !ok {
		return nil, false
	}
	return c.inv, true
}

// Storage returns the movable storage inventory with id hid, if known.
func (e *Engine) Storage(hid int) (*inventory.Inventory, bool) {
	inv, ok := e.storages[hid]
	return inv, ok
}

// Furnace returns the furnace at (x, y), if one has been opened there.
func (e *Engine) Furnace(x, y int) (*furnace.Furnace, bool) {
	f, ok := e.furnaces[[2]int{x, y}]
	return f, ok
}
