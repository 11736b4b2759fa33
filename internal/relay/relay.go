// Package relay fans protocol lines out between connected clients and caches cumulative world
// mutations so late joiners can be brought up to date.
//
// The relay never simulates or validates gameplay. It assigns session ids, keeps the Diff Store,
// and routes each inbound line according to its verb.
package relay

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"tilecraft.ai/internal/protocol"
)

// Peer is the outbound half of one connection, implemented by the transports.
type Peer interface {
	// Send queues one line (without newline). It blocks while the peer's queue is full and returns
	// false once the peer is gone.
	Send(line string) bool
}

// Recorder observes relay traffic for persistence. Implementations must not block for long; they
// are called on the connection goroutines.
type Recorder interface {
	SessionJoined(id int, remote string, at time.Time)
	SessionLeft(id int, at time.Time)
	Accepted(session int, m protocol.Message, at time.Time)
}

type Config struct {
	AnnounceDepartures bool
}

type Session struct {
	ID       int
	Remote   string
	JoinedAt time.Time

	peer Peer
}

type Relay struct {
	cfg   Config
	log   logrus.FieldLogger
	store *DiffStore
	rec   Recorder
	now   func() time.Time

	nextID atomic.Int64

	// mu guards sessions and serializes every fan-out with join replay.
	mu       sync.Mutex
	sessions map[int]*Session

	stats stats
}

type Option func(*Relay)

func WithRecorder(rec Recorder) Option { return func(r *Relay) { r.rec = rec } }

func WithClock(now func() time.Time) Option { return func(r *Relay) { r.now = now } }

func New(cfg Config, store *DiffStore, log logrus.FieldLogger, opts ...Option) *Relay {
	if store == nil {
		store = NewDiffStore()
	}
	r := &Relay{
		cfg:      cfg,
		log:      log,
		store:    store,
		now:      time.Now,
		sessions: map[int]*Session{},
	}
	r.nextID.Store(1)
	r.stats.rejected = map[string]uint64{}
	for _, o := range opts {
		o(r)
	}
	return r
}

func (r *Relay) Store() *DiffStore { return r.store }

// Join registers a new session for peer, sends it LOGIN and replays the Diff Store. The whole
// sequence runs under the registry lock, so any broadcast that has not started yet is delivered
// after the replay and cannot be overwritten by it.
func (r *Relay) Join(peer Peer, remote string) *Session {
	s := &Session{
		ID:       int(r.nextID.Add(1) - 1),
		Remote:   remote,
		JoinedAt: r.now(),
		peer:     peer,
	}

	r.mu.Lock()
	r.sessions[s.ID] = s
	ok := peer.Send(protocol.Line(protocol.VerbLogin, s.ID, r.store.NextStorageID()))
	replayed := 0
	for _, e := range r.store.Entries() {
		if !ok {
			break
		}
		ok = peer.Send(e.Msg.String())
		replayed++
	}
	r.mu.Unlock()

	r.stats.joins.Add(1)
	if r.rec != nil {
		r.rec.SessionJoined(s.ID, remote, s.JoinedAt)
	}
	r.log.WithFields(logrus.Fields{"session": s.ID, "remote": remote, "replayed": replayed}).Info("session joined")
	return s
}

// Leave deregisters s. With AnnounceDepartures set the remaining sessions receive LEAVE id.
func (r *Relay) Leave(s *Session) {
	r.mu.Lock()
	_, present := r.sessions[s.ID]
	delete(r.sessions, s.ID)
	if present && r.cfg.AnnounceDepartures {
		r.fanoutLocked(protocol.Line(protocol.VerbLeave, s.ID), s.ID)
	}
	r.mu.Unlock()
	if !present {
		return
	}

	r.stats.leaves.Add(1)
	if r.rec != nil {
		r.rec.SessionLeft(s.ID, r.now())
	}
	r.log.WithFields(logrus.Fields{"session": s.ID, "remote": s.Remote}).Info("session left")
}

// Handle processes one inbound line from s. Malformed lines are counted, logged at debug level and
// dropped; they never end the session.
func (r *Relay) Handle(s *Session, line string) {
	m, err := protocol.Parse(protocol.Upstream, line)
	if err != nil {
		r.Reject(s, err)
		return
	}
	r.stats.accepted.Add(1)
	if r.rec != nil {
		r.rec.Accepted(s.ID, m, r.now())
	}

	switch m.Verb {
	case protocol.VerbPos:
		r.broadcast(protocol.Line(protocol.VerbPlayer, s.ID, m.Arg(0), m.Arg(1)), s.ID, nil)
	case protocol.VerbMoney:
		r.broadcast(protocol.Line(protocol.VerbMoney, s.ID, m.Arg(0)), s.ID, nil)
	case protocol.VerbColor:
		r.broadcast(protocol.Line(protocol.VerbColor, s.ID, m.Arg(0), m.Arg(1), m.Arg(2)), s.ID, nil)
	case protocol.VerbDrop:
		r.broadcast(line, s.ID, nil)
	case protocol.VerbCont, protocol.VerbHulcsData:
		r.broadcast(line, s.ID, func() { r.store.Apply(m) })
	case protocol.VerbBlock:
		r.broadcast(line, noExclude, func() { r.store.Apply(m) })
	case protocol.VerbHulcsID:
		r.broadcast(line, s.ID, func() { r.store.ObserveStorageID(m.Arg(0)) })
	case protocol.VerbHit:
		r.unicast(m.Arg(0), protocol.Line(protocol.VerbDamage, m.Arg(1)))
	}
}

// Reject counts a line that was dropped before dispatch, by the error's protocol code. Transports
// call it for lines their framing refused; the session stays open.
func (r *Relay) Reject(s *Session, err error) {
	r.stats.reject(protocol.CodeOf(err))
	r.log.WithFields(logrus.Fields{"session": s.ID, "err": err}).Debug("line rejected")
}

const noExclude = 0

// broadcast runs update (if any) and then sends line to every session except exclude, all under
// the registry lock so the Diff Store and the broadcast order agree.
func (r *Relay) broadcast(line string, exclude int, update func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if update != nil {
		update()
	}
	r.fanoutLocked(line, exclude)
}

func (r *Relay) fanoutLocked(line string, exclude int) {
	for id, s := range r.sessions {
		if id == exclude {
			continue
		}
		if s.peer.Send(line) {
			r.stats.relayed.Add(1)
		}
	}
}

// unicast sends line to one session. Unknown targets are ignored.
func (r *Relay) unicast(target int, line string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[target]
	if !ok {
		return
	}
	if s.peer.Send(line) {
		r.stats.relayed.Add(1)
	}
}

// Sessions returns the ids of connected sessions.
func (r *Relay) Sessions() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]int, 0, len(r.sessions))
	for id := range r.sessions {
		out = append(out, id)
	}
	return out
}
