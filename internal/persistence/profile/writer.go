package profile

import (
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"tilecraft.ai/internal/sim/inventory"
)

// Writer saves profiles on its own goroutine so callers on a tick loop never touch the disk. Queue
// never blocks; a save that has not started yet is replaced by a newer one.
type Writer struct {
	store *Store
	log   logrus.FieldLogger

	mu      sync.Mutex
	pending *pendingSave
	wake    chan struct{}
	done    chan struct{}
	once    sync.Once
	wg      sync.WaitGroup

	saves  atomic.Uint64
	errors atomic.Uint64
}

type pendingSave struct {
	money int
	inv   *inventory.Inventory
}

func NewWriter(store *Store, log logrus.FieldLogger) *Writer {
	w := &Writer{
		store: store,
		log:   log,
		wake:  make(chan struct{}, 1),
		done:  make(chan struct{}),
	}
	w.wg.Add(1)
	go w.loop()
	return w
}

// Queue schedules a save of money and inv. inv must not be modified afterwards; pass a clone.
// Saves queued after Close are ignored.
func (w *Writer) Queue(money int, inv *inventory.Inventory) {
	select {
	case <-w.done:
		return
	default:
	}
	w.mu.Lock()
	w.pending = &pendingSave{money: money, inv: inv}
	w.mu.Unlock()
	select {
	case w.wake <- struct{}{}:
	default:
	}
}

// Close writes any pending save and stops the goroutine.
func (w *Writer) Close() {
	w.once.Do(func() { close(w.done) })
	w.wg.Wait()
}

func (w *Writer) Saves() uint64  { return w.saves.Load() }
func (w *Writer) Errors() uint64 { return w.errors.Load() }

func (w *Writer) loop() {
	defer w.wg.Done()
	for {
		select {
		case <-w.wake:
			w.flush()
		case <-w.done:
			w.flush()
			return
		}
	}
}

func (w *Writer) flush() {
	w.mu.Lock()
	p := w.pending
	w.pending = nil
	w.mu.Unlock()
	if p == nil {
		return
	}
	if err := w.store.SaveMoney(p.money); err != nil {
		w.errors.Add(1)
		w.log.WithError(err).Warn("save money")
		return
	}
	if err := w.store.SaveInventory(p.inv); err != nil {
		w.errors.Add(1)
		w.log.WithError(err).Warn("save inventory")
		return
	}
	w.saves.Add(1)
}
