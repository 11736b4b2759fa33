// Package ws bridges WebSocket clients onto the relay. Each text frame carries exactly one protocol
// line in either direction.
package ws

import (
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"tilecraft.ai/internal/protocol"
	"tilecraft.ai/internal/relay"
	"tilecraft.ai/internal/transport/outbox"
)

type Server struct {
	relay *relay.Relay
	log   logrus.FieldLogger

	queueSize    int
	writeTimeout time.Duration
	maxLineBytes int
	upgrader     websocket.Upgrader
}

func NewServer(r *relay.Relay, log logrus.FieldLogger) *Server {
	return &Server{
		relay:        r,
		log:          log,
		queueSize:    outbox.DefaultSize,
		writeTimeout: 5 * time.Second,
		maxLineBytes: protocol.MaxLineBytes,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4 * 1024,
			WriteBufferSize: 16 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		ob := outbox.New(s.queueSize)
		defer ob.Close()

		// Writer goroutine.
		writerDone := make(chan struct{})
		go func() {
			defer close(writerDone)
			err := ob.Pump(func(line string, _ bool) error {
				_ = conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
				return conn.WriteMessage(websocket.TextMessage, []byte(line))
			})
			if err != nil {
				_ = conn.Close()
			}
		}()

		sess := s.relay.Join(ob, r.RemoteAddr)
		s.log.WithFields(logrus.Fields{"session": sess.ID, "remote": r.RemoteAddr}).Debug("ws attached")

		// Reader loop.
		for {
			line, ok, err := readLine(conn, s.maxLineBytes)
			if err != nil {
				if protocol.CodeOf(err) != "" {
					s.relay.Reject(sess, err)
					continue
				}
				break
			}
			if ok {
				s.relay.Handle(sess, line)
			}
		}

		s.relay.Leave(sess)
		ob.Close()
		<-writerDone
	}
}

// readLine reads the next frame as one protocol line. ok is false for non-text frames. A frame
// longer than limit is rejected with E_PROTO_TOO_LONG; the next NextReader call discards its rest.
func readLine(conn *websocket.Conn, limit int) (line string, ok bool, err error) {
	typ, r, err := conn.NextReader()
	if err != nil {
		return "", false, err
	}
	if typ != websocket.TextMessage {
		return "", false, nil
	}
	b, err := io.ReadAll(io.LimitReader(r, int64(limit)+3))
	if err != nil {
		return "", false, err
	}
	line = strings.TrimRight(string(b), "\r\n")
	if len(b) > limit+2 || len(line) > limit {
		return "", false, &protocol.ParseError{Code: protocol.ErrProtoTooLong, Msg: fmt.Sprintf("line exceeds %d bytes", limit)}
	}
	return line, true, nil
}
