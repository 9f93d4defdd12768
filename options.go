package btserial

import (
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"
)

const (
	// DefaultGracePeriod is how long Disconnect waits for an in-flight write
	// before closing the stream.
	DefaultGracePeriod = time.Second
	// DefaultReadBufferSize is the size of the reader's buffer.
	DefaultReadBufferSize = 1024
)

// Option configures a Conn.
type Option func(*options)

type options struct {
	logger         *zap.Logger
	clock          clock.Clock
	metrics        *Metrics
	gracePeriod    time.Duration
	readBufferSize int
	legacyChannel  int
	onRead         func([]byte)
	onDisconnected func(byRemote bool)
}

func defaultOptions() options {
	return options{
		logger:         zap.NewNop(),
		clock:          clock.New(),
		gracePeriod:    DefaultGracePeriod,
		readBufferSize: DefaultReadBufferSize,
		legacyChannel:  DefaultLegacyChannel,
		onRead:         func([]byte) {},
		onDisconnected: func(bool) {},
	}
}

// WithLogger sets the logger. Nil is ignored.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithClock replaces the clock used for the disconnect grace period.
func WithClock(c clock.Clock) Option {
	return func(o *options) {
		if c != nil {
			o.clock = c
		}
	}
}

// WithMetrics records connection metrics into m.
func WithMetrics(m *Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithGracePeriod sets the delay between a Disconnect request and the
// forced close of the stream. Negative values are treated as zero.
func WithGracePeriod(d time.Duration) Option {
	return func(o *options) {
		if d < 0 {
			d = 0
		}
		o.gracePeriod = d
	}
}

// WithReadBufferSize sets the reader buffer size. Values below 1 are ignored.
func WithReadBufferSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.readBufferSize = n
		}
	}
}

// WithLegacyChannel sets the RFCOMM channel used by the fallback connect.
func WithLegacyChannel(ch int) Option {
	return func(o *options) {
		if ch > 0 {
			o.legacyChannel = ch
		}
	}
}

// OnRead registers the callback receiving incoming bytes. The slice is
// owned by the callee. It runs on the reader goroutine.
func OnRead(fn func(data []byte)) Option {
	return func(o *options) {
		if fn != nil {
			o.onRead = fn
		}
	}
}

// OnDisconnected registers the callback fired once per connection, after
// the stream has been released. byRemote is false when the disconnection
// was requested with Disconnect. The Conn reports StateDisconnecting until
// the callback returns.
func OnDisconnected(fn func(byRemote bool)) Option {
	return func(o *options) {
		if fn != nil {
			o.onDisconnected = fn
		}
	}
}
