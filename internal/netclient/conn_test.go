package netclient

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"tilecraft.ai/internal/client"
	"tilecraft.ai/internal/logging"
	"tilecraft.ai/internal/protocol"
	"tilecraft.ai/internal/relay"
	"tilecraft.ai/internal/sim/world"
	"tilecraft.ai/internal/transport/tcp"
)

func startRelay(t *testing.T) string {
	t.Helper()
	r := relay.New(relay.Config{}, nil, logging.Discard())
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	srv := tcp.NewServer(r, tcp.Config{}, logging.Discard())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = srv.Serve(ctx, ln)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return ln.Addr().String()
}

func newEngine() *client.Engine {
	return client.New(client.Config{Grid: world.NewGrid(16), Log: logging.Discard()})
}

// tickUntil ticks e every few milliseconds until cond holds.
func tickUntil(t *testing.T, e *client.Engine, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("condition not reached")
		}
		e.Tick(time.Now())
		time.Sleep(5 * time.Millisecond)
	}
}

func TestAttach_EnginesSeeEachOther(t *testing.T) {
	addr := startRelay(t)
	ctx := context.Background()
	opts := Options{Log: logging.Discard()}

	a, b := newEngine(), newEngine()
	ca, err := Attach(ctx, a, addr, time.Second, opts)
	if err != nil {
		t.Fatalf("attach a: %v", err)
	}
	defer ca.Close()
	tickUntil(t, a, func() bool { return a.ID() != 0 })

	cb, err := Attach(ctx, b, addr, time.Second, opts)
	if err != nil {
		t.Fatalf("attach b: %v", err)
	}
	defer cb.Close()
	tickUntil(t, b, func() bool { return b.ID() != 0 })
	if a.ID() == b.ID() {
		t.Fatalf("both engines got id %d", a.ID())
	}

	b.SetDirection(1, 0)
	b.Tick(time.Now())
	bx, _ := b.Position()
	tickUntil(t, a, func() bool {
		for _, r := range a.Remotes() {
			if r.ID == b.ID() && r.X == bx {
				return true
			}
		}
		return false
	})
}

func TestAttach_OfflineWhenRelayUnreachable(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	_ = ln.Close()

	e := newEngine()
	c, err := Attach(context.Background(), e, addr, time.Second, Options{Log: logging.Discard()})
	if err == nil || c != nil {
		t.Fatalf("expected dial failure")
	}
	if e.Online() {
		t.Fatalf("engine online without a relay")
	}
	e.Tick(time.Now())
}

func TestConn_DropsMalformedLines(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()
	go func() {
		nc, err := ln.Accept()
		if err != nil {
			return
		}
		defer nc.Close()
		_, _ = nc.Write([]byte("NOPE 1\nLOGIN 4\nLOGIN 4 2\n"))
		time.Sleep(200 * time.Millisecond)
	}()

	c, err := DialTCP(context.Background(), ln.Addr().String(), Options{Log: logging.Discard()})
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	got := make(chan protocol.Message, 4)
	c.Start(func(m protocol.Message) { got <- m })

	select {
	case m := <-got:
		if m.String() != "LOGIN 4 2" {
			t.Fatalf("got %q", m.String())
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("no message delivered")
	}
	if c.Rejected() != 2 || c.Received() != 1 {
		t.Fatalf("rejected=%d received=%d", c.Rejected(), c.Received())
	}

	select {
	case <-c.Done():
	case <-time.After(2 * time.Second):
		t.Fatalf("conn not closed after relay hung up")
	}
	c.Wait()
	if c.Send("POS 1 1") {
		t.Fatalf("Send succeeded on a closed conn")
	}
}

// stalledLines is a transport whose peer never reads: writes block until Close.
type stalledLines struct {
	closed chan struct{}
	once   sync.Once
}

func newStalledLines() *stalledLines { return &stalledLines{closed: make(chan struct{})} }

func (s *stalledLines) ReadLine() (string, error) {
	<-s.closed
	return "", errEOF
}

func (s *stalledLines) WriteLine(string, bool) error {
	<-s.closed
	return errEOF
}

func (s *stalledLines) SetWriteDeadline(time.Time) error { return nil }

func (s *stalledLines) Close() error {
	s.once.Do(func() { close(s.closed) })
	return nil
}

func TestTickDoesNotBlockOnStalledRelay(t *testing.T) {
	c := newConn(newStalledLines(), Options{QueueSize: 8, Log: logging.Discard()}.withDefaults(), "stalled")
	e := newEngine()
	e.SetSender(c)
	c.Start(e.Deliver)
	defer func() {
		_ = c.Close()
		c.Wait()
	}()

	done := make(chan struct{})
	go func() {
		defer close(done)
		now := time.Now()
		for i := 0; i < 500; i++ {
			e.Tick(now.Add(time.Duration(i) * 16 * time.Millisecond))
		}
	}()
	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatalf("tick blocked on a full outbound queue")
	}
	if c.Dropped() == 0 {
		t.Fatalf("expected dropped lines once the queue filled")
	}
}

func TestSendKeepsRoomForMutations(t *testing.T) {
	c := newConn(newStalledLines(), Options{QueueSize: 8, Log: logging.Discard()}.withDefaults(), "stalled")
	defer c.Close()

	for i := 0; i < 6; i++ {
		if !c.Send("POS 1 2") {
			t.Fatalf("presence line %d refused below the headroom mark", i)
		}
	}
	if c.Send("POS 1 2") {
		t.Fatalf("presence line queued past the headroom mark")
	}
	if !c.Send("BLOCK 1 2 3") || !c.Send("BLOCK 1 2 0") {
		t.Fatalf("mutations refused while the queue had room")
	}
	if c.Send("BLOCK 1 2 3") {
		t.Fatalf("queued past capacity")
	}
	if c.Dropped() != 2 {
		t.Fatalf("dropped=%d want 2", c.Dropped())
	}
}
