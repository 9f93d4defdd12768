package btserial

import (
	"sync/atomic"

	"go.uber.org/zap"
)

// session is one Handle together with the goroutine draining it.
type session struct {
	handle *Handle
	// pendingClose is set by Disconnect before the handle is closed so the
	// reader can tell a local close from a remote one.
	pendingClose atomic.Bool
	done         chan struct{}
}

func newSession(h *Handle) *session {
	return &session{handle: h, done: make(chan struct{})}
}

// readLoop forwards bytes from s to the read callback until the stream
// fails, then releases the stream and fires the disconnect callback.
// The Conn becomes Disconnected, and done is closed, only after the
// callback returns.
func (c *Conn) readLoop(s *session) {
	defer close(s.done)

	buf := make([]byte, c.opts.readBufferSize)
	var readErr error
	for {
		n, err := s.handle.ReadInto(buf)
		if n > 0 {
			data := make([]byte, n)
			copy(data, buf[:n])
			c.opts.metrics.read(n)
			c.opts.onRead(data)
		}
		if err != nil {
			readErr = err
			break
		}
	}

	if err := s.handle.Close(); err != nil {
		c.log.Debug("close after read loop", zap.Error(err))
	}
	byRemote := !s.pendingClose.Load()

	// The Conn stays in Disconnecting while the callback runs so a Connect
	// from inside it cannot start a second reader next to this one.
	c.mu.Lock()
	if c.cur == s {
		c.state = StateDisconnecting
	}
	c.mu.Unlock()

	c.log.Info("disconnected", zap.Bool("by_remote", byRemote), zap.NamedError("cause", readErr))
	c.opts.metrics.disconnected(byRemote)
	c.opts.onDisconnected(byRemote)

	c.mu.Lock()
	if c.cur == s {
		c.cur = nil
		c.state = StateDisconnected
	}
	c.mu.Unlock()
}
