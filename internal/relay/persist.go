package relay

import (
	"time"

	"tilecraft.ai/internal/persistence/snapshot"
	"tilecraft.ai/internal/protocol"
)

// Recorders fans every call out to each non-nil recorder in order.
type Recorders []Recorder

func (rs Recorders) SessionJoined(id int, remote string, at time.Time) {
	for _, r := range rs {
		if r != nil {
			r.SessionJoined(id, remote, at)
		}
	}
}

func (rs Recorders) SessionLeft(id int, at time.Time) {
	for _, r := range rs {
		if r != nil {
			r.SessionLeft(id, at)
		}
	}
}

func (rs Recorders) Accepted(session int, m protocol.Message, at time.Time) {
	for _, r := range rs {
		if r != nil {
			r.Accepted(session, m, at)
		}
	}
}

// Export captures the Diff Store as a snapshot.
func (d *DiffStore) Export(run string, at time.Time) snapshot.SnapshotV1 {
	snap := snapshot.SnapshotV1{
		Header:        snapshot.Header{Run: run, TakenAt: at.UTC()},
		NextStorageID: d.NextStorageID(),
	}
	for _, e := range d.Entries() {
		a := e.Msg.Arg
		switch e.Kind {
		case KindBlock:
			snap.Blocks = append(snap.Blocks, snapshot.BlockV1{X: a(0), Y: a(1), Type: a(2)})
		case KindCont:
			snap.Cont = append(snap.Cont, snapshot.ContV1{X: a(0), Y: a(1), Slot: a(2), ID: a(3), Count: a(4), Aux: a(5)})
		case KindHulcs:
			snap.Storage = append(snap.Storage, snapshot.SlotV1{StorageID: a(0), Slot: a(1), ID: a(2), Count: a(3), Aux: a(4)})
		}
	}
	return snap
}

// Import replaces the Diff Store content with snap.
func (d *DiffStore) Import(snap snapshot.SnapshotV1) {
	entries := make([]Entry, 0, snap.Len())
	for _, b := range snap.Blocks {
		entries = append(entries, Entry{Kind: KindBlock, Msg: protocol.New(protocol.VerbBlock, b.X, b.Y, b.Type)})
	}
	for _, c := range snap.Cont {
		entries = append(entries, Entry{Kind: KindCont, Msg: protocol.New(protocol.VerbCont, c.X, c.Y, c.Slot, c.ID, c.Count, c.Aux)})
	}
	for _, s := range snap.Storage {
		entries = append(entries, Entry{Kind: KindHulcs, Msg: protocol.New(protocol.VerbHulcsData, s.StorageID, s.Slot, s.ID, s.Count, s.Aux)})
	}
	d.Replace(entries, snap.NextStorageID)
}

// Replay applies one recorded upstream message the way the relay would have: cached mutations go
// into the store and HULCS_ID advances the storage counter. Other verbs are ignored.
func (d *DiffStore) Replay(m protocol.Message) bool {
	if m.Verb == protocol.VerbHulcsID {
		d.ObserveStorageID(m.Arg(0))
		return true
	}
	return d.Apply(m)
}
