package relay

import (
	"sync"
	"sync/atomic"
)

type stats struct {
	joins    atomic.Uint64
	leaves   atomic.Uint64
	accepted atomic.Uint64
	relayed  atomic.Uint64

	mu       sync.Mutex
	rejected map[string]uint64
}

func (s *stats) reject(code string) {
	s.mu.Lock()
	s.rejected[code]++
	s.mu.Unlock()
}

// Stats is a point-in-time view of relay counters.
type Stats struct {
	Sessions      int               `json:"sessions"`
	Joins         uint64            `json:"joins"`
	Leaves        uint64            `json:"leaves"`
	LinesAccepted uint64            `json:"lines_accepted"`
	LinesRelayed  uint64            `json:"lines_relayed"`
	LinesRejected map[string]uint64 `json:"lines_rejected"`
	DiffEntries   map[string]int    `json:"diff_entries"`
	NextStorageID int               `json:"next_storage_id"`
}

func (r *Relay) Stats() Stats {
	r.mu.Lock()
	n := len(r.sessions)
	r.mu.Unlock()

	st := Stats{
		Sessions:      n,
		Joins:         r.stats.joins.Load(),
		Leaves:        r.stats.leaves.Load(),
		LinesAccepted: r.stats.accepted.Load(),
		LinesRelayed:  r.stats.relayed.Load(),
		LinesRejected: map[string]uint64{},
		DiffEntries:   map[string]int{},
		NextStorageID: r.store.NextStorageID(),
	}
	r.stats.mu.Lock()
	for k, v := range r.stats.rejected {
		st.LinesRejected[k] = v
	}
	r.stats.mu.Unlock()
	for k, v := range r.store.CountByKind() {
		st.DiffEntries[k.String()] = v
	}
	return st
}
