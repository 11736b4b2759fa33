// Package tcp serves the newline-delimited line protocol over plain TCP.
package tcp

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"tilecraft.ai/internal/protocol"
	"tilecraft.ai/internal/relay"
	"tilecraft.ai/internal/transport/outbox"
)

type Config struct {
	// QueueSize bounds each connection's outbound queue.
	QueueSize int
	// WriteTimeout bounds one socket write. A peer that stops reading is dropped after it.
	WriteTimeout time.Duration
	// MaxLineBytes caps a single inbound line. Longer lines are dropped and counted, the connection
	// stays up.
	MaxLineBytes int
}

func (c Config) withDefaults() Config {
	if c.QueueSize <= 0 {
		c.QueueSize = outbox.DefaultSize
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 5 * time.Second
	}
	if c.MaxLineBytes <= 0 {
		c.MaxLineBytes = protocol.MaxLineBytes
	}
	return c
}

type Server struct {
	relay *relay.Relay
	log   logrus.FieldLogger
	cfg   Config

	mu    sync.Mutex
	conns map[net.Conn]struct{}
	wg    sync.WaitGroup
}

func NewServer(r *relay.Relay, cfg Config, log logrus.FieldLogger) *Server {
	return &Server{
		relay: r,
		log:   log,
		cfg:   cfg.withDefaults(),
		conns: map[net.Conn]struct{}{},
	}
}

// Serve accepts connections on ln until ctx is cancelled, then closes every open connection and
// waits for their goroutines.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()

	var tempDelay time.Duration
	for {
		c, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				s.closeAll()
				s.wg.Wait()
				return nil
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				if tempDelay == 0 {
					tempDelay = 5 * time.Millisecond
				} else if tempDelay *= 2; tempDelay > time.Second {
					tempDelay = time.Second
				}
				s.log.WithError(err).Warn("accept")
				time.Sleep(tempDelay)
				continue
			}
			s.closeAll()
			s.wg.Wait()
			return err
		}
		tempDelay = 0

		s.track(c, true)
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer s.track(c, false)
			s.handle(c)
		}()
	}
}

func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	s.log.WithField("addr", ln.Addr().String()).Info("tcp listening")
	return s.Serve(ctx, ln)
}

func (s *Server) handle(c net.Conn) {
	defer c.Close()

	ob := outbox.New(s.cfg.QueueSize)
	defer ob.Close()

	// Writer goroutine.
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		bw := bufio.NewWriter(c)
		err := ob.Pump(func(line string, more bool) error {
			_ = c.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
			if _, err := bw.WriteString(line); err != nil {
				return err
			}
			if err := bw.WriteByte('\n'); err != nil {
				return err
			}
			if more {
				return nil
			}
			return bw.Flush()
		})
		if err != nil {
			// Unblock the reader too.
			_ = c.Close()
		}
	}()

	sess := s.relay.Join(ob, c.RemoteAddr().String())

	// Reader loop. Oversized lines are rejected one at a time; only IO errors end the session.
	lr := protocol.NewLineReader(c, s.cfg.MaxLineBytes)
	for {
		line, err := lr.ReadLine()
		if err != nil {
			if protocol.CodeOf(err) != "" {
				s.relay.Reject(sess, err)
				continue
			}
			if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
				s.log.WithFields(logrus.Fields{"session": sess.ID, "err": err}).Debug("read ended")
			}
			break
		}
		s.relay.Handle(sess, line)
	}

	s.relay.Leave(sess)
	ob.Close()
	<-writerDone
}

func (s *Server) track(c net.Conn, add bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if add {
		s.conns[c] = struct{}{}
	} else {
		delete(s.conns, c)
	}
}

func (s *Server) closeAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.conns {
		_ = c.Close()
	}
}
