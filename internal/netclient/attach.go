package netclient

import (
	"context"
	"time"

	"tilecraft.ai/internal/client"
)

// Attach dials addr and wires the connection to e: downstream messages go to e.Deliver and e sends
// through the connection. When the dial fails the engine is left offline and Attach returns a nil
// Conn with the error, so callers can keep playing locally.
//
// The engine is not safe for concurrent use, so Attach must run before the tick loop starts, or on
// the tick goroutine.
func Attach(ctx context.Context, e *client.Engine, addr string, timeout time.Duration, opts Options) (*Conn, error) {
	opts = opts.withDefaults()
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	c, err := Dial(ctx, addr, opts)
	if err != nil {
		opts.Log.WithError(err).WithField("addr", addr).Warn("relay unreachable; playing offline")
		e.SetSender(nil)
		return nil, err
	}
	e.SetSender(c)
	c.Start(e.Deliver)
	return c, nil
}
