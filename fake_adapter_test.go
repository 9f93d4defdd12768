package btserial

import (
	"context"
	"errors"
	"net"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
)

// fakeAdapter opens in-memory streams; the far end of each one is sent on
// remotes.
type fakeAdapter struct {
	mu          sync.Mutex
	resolveErr  error
	cancelErr   error
	primaryErr  error
	fallbackErr error

	calls    []string
	services []uuid.UUID
	channels []int

	remotes chan net.Conn

	// open, when set, replaces the in-memory pipe for both paths.
	open func() *Handle
}

func newFakeAdapter() *fakeAdapter {
	return &fakeAdapter{remotes: make(chan net.Conn, 4)}
}

func (f *fakeAdapter) record(call string) {
	f.mu.Lock()
	f.calls = append(f.calls, call)
	f.mu.Unlock()
}

func (f *fakeAdapter) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeAdapter) setErrs(primary, fallback error) {
	f.mu.Lock()
	f.primaryErr, f.fallbackErr = primary, fallback
	f.mu.Unlock()
}

func (f *fakeAdapter) ResolvePeer(_ context.Context, address string) (Peer, error) {
	f.record("resolve")
	if f.resolveErr != nil {
		return Peer{}, f.resolveErr
	}
	return Peer{Address: address}, nil
}

func (f *fakeAdapter) CancelDiscovery(context.Context) error {
	f.record("cancel")
	return f.cancelErr
}

func (f *fakeAdapter) OpenStream(_ context.Context, _ Peer, serviceID uuid.UUID) (*Handle, error) {
	f.record("primary")
	f.mu.Lock()
	f.services = append(f.services, serviceID)
	err := f.primaryErr
	f.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return f.pipe(), nil
}

func (f *fakeAdapter) OpenLegacyStream(_ context.Context, _ Peer, channel int) (*Handle, error) {
	f.record("fallback")
	f.mu.Lock()
	f.channels = append(f.channels, channel)
	err := f.fallbackErr
	f.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return f.pipe(), nil
}

func (f *fakeAdapter) pipe() *Handle {
	if f.open != nil {
		return f.open()
	}
	local, remote := net.Pipe()
	f.remotes <- remote
	return NewStreamHandle(local)
}

func (f *fakeAdapter) remote(t *testing.T) net.Conn {
	t.Helper()
	select {
	case c := <-f.remotes:
		t.Cleanup(func() { c.Close() })
		return c
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for remote end")
		return nil
	}
}

var errRefused = errors.New("connection refused")

// stuckFlusher is a write half whose Flush blocks until it is closed, like a
// transmit queue the peer never drains.
type stuckFlusher struct {
	closed    chan struct{}
	closeOnce sync.Once
}

func newStuckFlusher() *stuckFlusher {
	return &stuckFlusher{closed: make(chan struct{})}
}

func (s *stuckFlusher) Write(p []byte) (int, error) { return len(p), nil }

func (s *stuckFlusher) Flush() error {
	<-s.closed
	return os.ErrClosed
}

func (s *stuckFlusher) Close() error {
	s.closeOnce.Do(func() { close(s.closed) })
	return nil
}
