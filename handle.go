package btserial

import (
	"io"
	"os"
	"sync"
	"sync/atomic"

	"go.uber.org/multierr"
)

type flusher interface {
	Flush() error
}

type writeCloser interface {
	CloseWrite() error
}

// Handle owns one live bidirectional byte stream to a peer.
//
// ReadInto is used by a single reader goroutine; WriteAll and Flush by the
// writer. Close may be called from either side any number of times.
type Handle struct {
	in       io.Reader
	out      io.Writer
	closeIn  func() error
	closeOut func() error

	closeOnce sync.Once
	closed    atomic.Bool
}

// NewHandle builds a Handle from separate read and write halves.
func NewHandle(in io.ReadCloser, out io.WriteCloser) *Handle {
	return &Handle{
		in:       in,
		out:      out,
		closeIn:  in.Close,
		closeOut: out.Close,
	}
}

// NewStreamHandle builds a Handle over a single full-duplex stream. The
// write half is shut down with CloseWrite when the stream supports it; the
// stream itself is closed as the read half.
func NewStreamHandle(rwc io.ReadWriteCloser) *Handle {
	h := &Handle{
		in:       rwc,
		out:      rwc,
		closeIn:  rwc.Close,
		closeOut: func() error { return nil },
	}
	if cw, ok := rwc.(writeCloser); ok {
		h.closeOut = cw.CloseWrite
	}
	return h
}

// ReadInto blocks until some bytes are read into buf or the stream fails.
func (h *Handle) ReadInto(buf []byte) (int, error) {
	n, err := h.in.Read(buf)
	return n, ioErr("read", err)
}

// WriteAll writes the whole of p or returns an error.
func (h *Handle) WriteAll(p []byte) error {
	if h.closed.Load() {
		return ioErr("write", os.ErrClosed)
	}
	for len(p) > 0 {
		n, err := h.out.Write(p)
		if err != nil {
			return ioErr("write", err)
		}
		if n == 0 {
			return ioErr("write", io.ErrShortWrite)
		}
		p = p[n:]
	}
	return nil
}

// Flush pushes buffered output to the peer if the write half buffers.
func (h *Handle) Flush() error {
	if h.closed.Load() {
		return nil
	}
	if f, ok := h.out.(flusher); ok {
		return ioErr("flush", f.Flush())
	}
	return nil
}

// Close closes the write half and then the read half. Both halves are
// always closed; their errors are combined. Calls after the first return nil.
func (h *Handle) Close() error {
	var err error
	h.closeOnce.Do(func() {
		h.closed.Store(true)
		err = multierr.Append(
			ioErr("close output", h.closeOut()),
			ioErr("close input", h.closeIn()),
		)
	})
	return err
}

// Closed reports whether Close has been called.
func (h *Handle) Closed() bool { return h.closed.Load() }
