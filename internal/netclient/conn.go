// Package netclient connects a client engine to a relay over TCP or WebSocket.
//
// A Conn owns two goroutines: a reader that parses downstream lines and hands them to a sink, and a
// writer that drains the outbound queue. Conn.Send satisfies client.Sender and never blocks.
package netclient

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"tilecraft.ai/internal/protocol"
	"tilecraft.ai/internal/transport/outbox"
)

// lineConn is one line-oriented transport.
type lineConn interface {
	ReadLine() (string, error)
	WriteLine(line string, more bool) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

type Options struct {
	QueueSize    int
	WriteTimeout time.Duration
	Log          logrus.FieldLogger
}

func (o Options) withDefaults() Options {
	if o.QueueSize <= 0 {
		o.QueueSize = outbox.DefaultSize
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = 5 * time.Second
	}
	if o.Log == nil {
		l := logrus.New()
		l.SetLevel(logrus.WarnLevel)
		o.Log = l
	}
	return o
}

type Conn struct {
	lc   lineConn
	ob   *outbox.Outbox
	opts Options
	log  logrus.FieldLogger

	startOnce sync.Once
	closeOnce sync.Once
	done      chan struct{}
	wg        sync.WaitGroup

	received atomic.Uint64
	rejected atomic.Uint64
	dropped  atomic.Uint64
}

// DialTCP connects to a relay speaking newline-delimited lines.
func DialTCP(ctx context.Context, addr string, opts Options) (*Conn, error) {
	var d net.Dialer
	nc, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}
	opts = opts.withDefaults()
	return newConn(&tcpLines{conn: nc, r: protocol.NewLineReader(nc, protocol.MaxLineBytes), w: bufio.NewWriter(nc)}, opts, addr), nil
}

// DialWS connects to a relay's WebSocket endpoint, e.g. ws://host:8080/v1/ws.
func DialWS(ctx context.Context, url string, opts Options) (*Conn, error) {
	wc, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, err
	}
	opts = opts.withDefaults()
	return newConn(&wsLines{conn: wc}, opts, url), nil
}

// Dial picks the transport from the address: ws:// and wss:// URLs use WebSocket, anything else TCP.
func Dial(ctx context.Context, addr string, opts Options) (*Conn, error) {
	if strings.HasPrefix(addr, "ws://") || strings.HasPrefix(addr, "wss://") {
		return DialWS(ctx, addr, opts)
	}
	return DialTCP(ctx, addr, opts)
}

func newConn(lc lineConn, opts Options, remote string) *Conn {
	return &Conn{
		lc:   lc,
		ob:   outbox.New(opts.QueueSize),
		opts: opts,
		log:  opts.Log.WithField("remote", remote),
		done: make(chan struct{}),
	}
}

// Start launches the reader and writer. Every well-formed downstream message is passed to sink from
// the reader goroutine; malformed lines are counted and dropped. Start is a no-op after the first call.
func (c *Conn) Start(sink func(protocol.Message)) {
	c.startOnce.Do(func() {
		c.wg.Add(2)
		go c.writeLoop()
		go c.readLoop(sink)
	})
}

func (c *Conn) writeLoop() {
	defer c.wg.Done()
	err := c.ob.Pump(func(line string, more bool) error {
		_ = c.lc.SetWriteDeadline(time.Now().Add(c.opts.WriteTimeout))
		return c.lc.WriteLine(line, more)
	})
	if err != nil {
		c.log.WithError(err).Warn("write failed; closing")
	}
	c.Close()
}

func (c *Conn) readLoop(sink func(protocol.Message)) {
	defer c.wg.Done()
	for {
		line, err := c.lc.ReadLine()
		if err != nil {
			if code := protocol.CodeOf(err); code != "" {
				c.rejected.Add(1)
				c.log.WithField("code", code).Debug("dropped inbound line")
				continue
			}
			select {
			case <-c.done:
			default:
				c.log.WithError(err).Info("relay connection closed")
			}
			c.Close()
			return
		}
		m, err := protocol.Parse(protocol.Downstream, line)
		if err != nil {
			c.rejected.Add(1)
			c.log.WithFields(logrus.Fields{"line": line, "code": protocol.CodeOf(err)}).Debug("dropped inbound line")
			continue
		}
		c.received.Add(1)
		sink(m)
	}
}

// Send queues an upstream line without waiting, so a stalled relay cannot freeze the tick that
// calls it. Presence lines (POS, MONEY, COLOR) are resent every tick and give way once the queue is
// three quarters full, keeping the rest for world mutations. A line that does not fit is dropped
// and counted. Send reports whether the line was queued.
func (c *Conn) Send(line string) bool {
	if isPresence(line) && c.ob.Len() >= c.ob.Cap()*3/4 {
		c.dropped.Add(1)
		return false
	}
	if !c.ob.TrySend(line) {
		select {
		case <-c.done:
		default:
			c.dropped.Add(1)
		}
		return false
	}
	return true
}

func isPresence(line string) bool {
	verb, _, _ := strings.Cut(line, " ")
	switch verb {
	case protocol.VerbPos, protocol.VerbMoney, protocol.VerbColor:
		return true
	}
	return false
}

// Close tears the connection down. Safe to call from any goroutine, more than once.
func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		c.ob.Close()
		err = c.lc.Close()
	})
	return err
}

// Wait blocks until both goroutines have exited.
func (c *Conn) Wait() { c.wg.Wait() }

// Done is closed when the connection is gone.
func (c *Conn) Done() <-chan struct{} { return c.done }

func (c *Conn) Received() uint64 { return c.received.Load() }
func (c *Conn) Rejected() uint64 { return c.rejected.Load() }

// Dropped counts outbound lines discarded because the queue was full.
func (c *Conn) Dropped() uint64 { return c.dropped.Load() }

type tcpLines struct {
	conn net.Conn
	r    *protocol.LineReader
	w    *bufio.Writer
}

func (t *tcpLines) ReadLine() (string, error) {
	line, err := t.r.ReadLine()
	if errors.Is(err, io.EOF) {
		return "", errEOF
	}
	return line, err
}

func (t *tcpLines) WriteLine(line string, more bool) error {
	if _, err := t.w.WriteString(line); err != nil {
		return err
	}
	if err := t.w.WriteByte('\n'); err != nil {
		return err
	}
	if more {
		return nil
	}
	return t.w.Flush()
}

func (t *tcpLines) SetWriteDeadline(d time.Time) error { return t.conn.SetWriteDeadline(d) }
func (t *tcpLines) Close() error                       { return t.conn.Close() }

type wsLines struct {
	conn *websocket.Conn
}

func (w *wsLines) ReadLine() (string, error) {
	for {
		typ, data, err := w.conn.ReadMessage()
		if err != nil {
			return "", err
		}
		if typ == websocket.TextMessage {
			return string(data), nil
		}
	}
}

func (w *wsLines) WriteLine(line string, _ bool) error {
	return w.conn.WriteMessage(websocket.TextMessage, []byte(line))
}

func (w *wsLines) SetWriteDeadline(d time.Time) error { return w.conn.SetWriteDeadline(d) }
func (w *wsLines) Close() error                       { return w.conn.Close() }

var errEOF = errors.New("netclient: connection closed by relay")
