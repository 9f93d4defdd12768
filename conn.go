package btserial

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Conn manages a single serial connection to a remote peer. It is safe for
// concurrent use by multiple goroutines.
//
// A Conn owns at most one stream and one reader goroutine at a time. After a
// disconnection, local or remote, it can be connected again.
type Conn struct {
	connector Connector
	opts      options
	log       *zap.Logger

	mu    sync.Mutex
	state State
	cur   *session

	// writeMu keeps concurrent writes from interleaving on the stream.
	writeMu sync.Mutex
}

// New returns an idle Conn that opens streams through adapter.
func New(adapter Adapter, opts ...Option) *Conn {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &Conn{
		connector: Connector{
			Adapter:       adapter,
			LegacyChannel: o.legacyChannel,
			Logger:        o.logger,
		},
		opts:  o,
		log:   o.logger,
		state: StateIdle,
	}
}

// Connect opens a stream to address for serviceID (uuid.Nil selects
// DefaultServiceID) and starts the reader. It fails with ErrAlreadyConnected
// unless the Conn is idle or disconnected. On failure the Conn is left in
// the state it was in before the call.
//
// The Conn is not yet disconnected while the OnDisconnected callback runs,
// so a Connect made from inside it fails with ErrAlreadyConnected.
// Reconnect from another goroutine instead.
//
// No timeout is applied beyond ctx and whatever the adapter enforces.
func (c *Conn) Connect(ctx context.Context, address string, serviceID uuid.UUID) error {
	c.mu.Lock()
	if !c.state.canConnect() {
		c.mu.Unlock()
		return ErrAlreadyConnected
	}
	prev := c.state
	c.state = StateConnecting
	c.mu.Unlock()

	h, path, err := c.connector.Connect(ctx, address, serviceID)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.state = prev
		c.opts.metrics.connectResult("failed")
		return err
	}
	s := newSession(h)
	c.cur = s
	c.state = StateConnected
	c.opts.metrics.connectResult(path.String())
	c.log.Info("connected", zap.String("address", address), zap.Stringer("path", path))
	go c.readLoop(s)
	return nil
}

// Write sends all of p or returns an error. Write errors are returned to
// the caller only; the reader decides when the connection is lost.
func (c *Conn) Write(p []byte) error {
	c.mu.Lock()
	s := c.cur
	ok := c.state == StateConnected && s != nil
	c.mu.Unlock()
	if !ok {
		return ErrNotConnected
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	err := s.handle.WriteAll(p)
	c.opts.metrics.wrote(len(p), err)
	return err
}

// Disconnect closes the active connection and waits for the reader to
// finish, including the disconnect callback. It is a no-op unless the Conn
// is connected, so repeated calls are safe.
//
// Disconnect must not be called synchronously from the read callback.
func (c *Conn) Disconnect() {
	c.mu.Lock()
	if c.state != StateConnected {
		c.mu.Unlock()
		return
	}
	s := c.cur
	s.pendingClose.Store(true)
	c.state = StateDisconnecting
	c.mu.Unlock()

	// A write holding the lock gets the grace period to finish instead. The
	// flush runs alongside the grace period and must not hold writeMu: a
	// drain that outlasts the grace period is cut short by the close below.
	if c.writeMu.TryLock() {
		c.writeMu.Unlock()
		go func() {
			if err := s.handle.Flush(); err != nil {
				c.log.Debug("flush before disconnect", zap.Error(err))
			}
		}()
	}

	c.opts.clock.Sleep(c.opts.gracePeriod)

	if err := s.handle.Close(); err != nil {
		c.log.Debug("close on disconnect", zap.Error(err))
	}
	<-s.done
}

// Close disconnects. It always returns nil.
func (c *Conn) Close() error {
	c.Disconnect()
	return nil
}

// IsConnected reports whether the Conn is connected and no disconnect has
// been requested.
func (c *Conn) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == StateConnected && c.cur != nil && !c.cur.pendingClose.Load()
}

// State returns the current lifecycle state.
func (c *Conn) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}
