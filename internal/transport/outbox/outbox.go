// Package outbox is the per-connection outbound line queue shared by the transports. It satisfies
// relay.Peer.
package outbox

import "sync"

const DefaultSize = 256

type Outbox struct {
	out  chan string
	done chan struct{}
	once sync.Once
}

func New(size int) *Outbox {
	if size <= 0 {
		size = DefaultSize
	}
	return &Outbox{out: make(chan string, size), done: make(chan struct{})}
}

// Send queues line. It blocks while the queue is full and returns false once the outbox is closed.
func (o *Outbox) Send(line string) bool {
	select {
	case <-o.done:
		return false
	default:
	}
	select {
	case o.out <- line:
		return true
	case <-o.done:
		return false
	}
}

// TrySend queues line without waiting. It returns false when the queue is full or the outbox is
// closed.
func (o *Outbox) TrySend(line string) bool {
	select {
	case <-o.done:
		return false
	default:
	}
	select {
	case o.out <- line:
		return true
	default:
		return false
	}
}

// Len is the number of queued lines.
func (o *Outbox) Len() int { return len(o.out) }

func (o *Outbox) Cap() int { return cap(o.out) }

// Close unblocks pending senders and stops the pump. Safe to call more than once.
func (o *Outbox) Close() { o.once.Do(func() { close(o.done) }) }

func (o *Outbox) Done() <-chan struct{} { return o.done }

// Pump hands queued lines to write until the outbox is closed or write fails. more reports whether
// another line is already queued, so writers can defer flushing. A write error closes the outbox.
func (o *Outbox) Pump(write func(line string, more bool) error) error {
	for {
		select {
		case <-o.done:
			return nil
		case line := <-o.out:
			if err := write(line, len(o.out) > 0); err != nil {
				o.Close()
				return err
			}
		}
	}
}
