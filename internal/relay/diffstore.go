package relay

import (
	"fmt"
	"sort"
	"sync/atomic"

	"github.com/patrickmn/go-cache"

	"tilecraft.ai/internal/protocol"
)

// FirstStorageID is the storage id handed out before any HULCS_ID has been seen. 0 means "no
// storage" on the wire.
const FirstStorageID = 1

// EntryKind orders replay: blocks first, then container slots, then storage slots.
type EntryKind int

const (
	KindBlock EntryKind = iota
	KindCont
	KindHulcs
)

func (k EntryKind) String() string {
	switch k {
	case KindBlock:
		return "block"
	case KindCont:
		return "cont"
	default:
		return "hulcs"
	}
}

// Entry is one cached mutation, kept in wire form so replay is a straight re-send.
type Entry struct {
	Kind EntryKind
	Msg  protocol.Message
}

// DiffStore is the relay's last-known-state cache of cumulative world mutations. Single-key reads
// and writes are safe without external locking; there is no cross-key ordering.
type DiffStore struct {
	c       *cache.Cache
	storage atomic.Int64
}

func NewDiffStore() *DiffStore {
	d := &DiffStore{c: cache.New(cache.NoExpiration, 0)}
	d.storage.Store(FirstStorageID)
	return d
}

func blockKey(x, y int) string             { return fmt.Sprintf("B:%d:%d", x, y) }
func contKey(x, y, slot int) string        { return fmt.Sprintf("C:%d:%d:%d", x, y, slot) }
func hulcsKey(hid, slot int) string        { return fmt.Sprintf("H:%d:%d", hid, slot) }
func (d *DiffStore) put(k string, e Entry) { d.c.Set(k, e, cache.NoExpiration) }

// Apply caches m if its verb is a cached mutation (BLOCK, CONT, HULCS_DATA) and reports whether it
// did. m must be an upstream message that already passed protocol.Parse.
func (d *DiffStore) Apply(m protocol.Message) bool {
	switch m.Verb {
	case protocol.VerbBlock:
		d.put(blockKey(m.Arg(0), m.Arg(1)), Entry{Kind: KindBlock, Msg: m})
	case protocol.VerbCont:
		d.put(contKey(m.Arg(0), m.Arg(1), m.Arg(2)), Entry{Kind: KindCont, Msg: m})
	case protocol.VerbHulcsData:
		d.put(hulcsKey(m.Arg(0), m.Arg(1)), Entry{Kind: KindHulcs, Msg: m})
	default:
		return false
	}
	return true
}

// Block returns the cached type of cell (x, y).
func (d *DiffStore) Block(x, y int) (int, bool) {
	v, ok := d.c.Get(blockKey(x, y))
	if !ok {
		return 0, false
	}
	return v.(Entry).Msg.Arg(2), true
}

// NextStorageID is the id the next client should allocate for a fresh storage.
func (d *DiffStore) NextStorageID() int { return int(d.storage.Load()) }

// ObserveStorageID raises the counter to n+1 if that is larger than the current value.
func (d *DiffStore) ObserveStorageID(n int) {
	want := int64(n) + 1
	for {
		cur := d.storage.Load()
		if want <= cur || d.storage.CompareAndSwap(cur, want) {
			return
		}
	}
}

func (d *DiffStore) Len() int { return d.c.ItemCount() }

// CountByKind tallies cached entries per kind.
func (d *DiffStore) CountByKind() map[EntryKind]int {
	out := map[EntryKind]int{KindBlock: 0, KindCont: 0, KindHulcs: 0}
	for _, it := range d.c.Items() {
		out[it.Object.(Entry).Kind]++
	}
	return out
}

// Entries returns every cached entry in replay order: by kind, then by arguments.
func (d *DiffStore) Entries() []Entry {
	items := d.c.Items()
	out := make([]Entry, 0, len(items))
	for _, it := range items {
		out = append(out, it.Object.(Entry))
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Kind != b.Kind {
			return a.Kind < b.Kind
		}
		for k := 0; k < len(a.Msg.Args) && k < len(b.Msg.Args); k++ {
			if a.Msg.Args[k] != b.Msg.Args[k] {
				return a.Msg.Args[k] < b.Msg.Args[k]
			}
		}
		return false
	})
	return out
}

// Replace swaps the whole content for entries and counter. Used when loading a snapshot.
func (d *DiffStore) Replace(entries []Entry, nextStorageID int) {
	d.c.Flush()
	for _, e := range entries {
		d.Apply(e.Msg)
	}
	if nextStorageID < FirstStorageID {
		nextStorageID = FirstStorageID
	}
	d.storage.Store(int64(nextStorageID))
}
