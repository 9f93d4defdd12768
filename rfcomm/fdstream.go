//go:build linux

package rfcomm

import (
	"io"
	"os"
	"sync"
	"time"

	"golang.org/x/sys/unix"
)

// fdStream is a blocking, killable byte stream over a raw file descriptor.
// The fd is non-blocking underneath: Read, Write and Flush wait in poll on
// the fd and a self-pipe, and Close writes to the pipe so a goroutine stuck
// in any of them returns promptly.
//
// Read and Write may run concurrently with each other and with Close.
type fdStream struct {
	fd     int
	name   string
	socket bool

	// mu is held shared by I/O calls and exclusively by Close so the fd is
	// never closed under a running syscall.
	mu        sync.RWMutex
	done      chan struct{}
	closeOnce sync.Once
	pipeR     int // self-pipe read fd
	pipeW     int // self-pipe write fd
}

// drainInterval is how often Flush rechecks the TTY output queue.
const drainInterval = 10 * time.Millisecond

func newFDStream(fd int, name string, socket bool) (*fdStream, error) {
	if err := unix.SetNonblock(fd, true); err != nil {
		return nil, &os.SyscallError{Syscall: "setnonblock", Err: err}
	}
	pipeFds := make([]int, 2)
	if err := unix.Pipe2(pipeFds, unix.O_CLOEXEC); err != nil {
		return nil, &os.SyscallError{Syscall: "pipe2", Err: err}
	}
	return &fdStream{
		fd:     fd,
		name:   name,
		socket: socket,
		done:   make(chan struct{}),
		pipeR:  pipeFds[0],
		pipeW:  pipeFds[1],
	}, nil
}

func (s *fdStream) closed() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

// Read blocks until data is available, the peer hangs up or Close is called.
// A hangup with no pending data is reported as io.EOF.
func (s *fdStream) Read(p []byte) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for {
		if s.closed() {
			return 0, os.ErrClosed
		}
		pfd := []unix.PollFd{
			{Fd: int32(s.fd), Events: unix.POLLIN},
			{Fd: int32(s.pipeR), Events: unix.POLLIN},
		}
		if _, err := unix.Poll(pfd, -1); err != nil {
			if err == unix.EINTR {
				continue
			}
			return 0, &os.SyscallError{Syscall: "poll", Err: err}
		}
		// The pipe is never drained so every later Read sees it too.
		if pfd[1].Revents&unix.POLLIN != 0 {
			return 0, os.ErrClosed
		}
		if pfd[0].Revents&(unix.POLLIN|unix.POLLHUP|unix.POLLERR) == 0 {
			continue
		}
		n, err := unix.Read(s.fd, p)
		switch {
		case err == unix.EINTR || err == unix.EAGAIN:
			continue
		case err != nil:
			return 0, &os.PathError{Op: "read", Path: s.name, Err: err}
		case n == 0 && len(p) > 0:
			return 0, io.EOF
		}
		return n, nil
	}
}

func (s *fdStream) Write(p []byte) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed() {
		return 0, os.ErrClosed
	}
	written := 0
	for written < len(p) {
		n, err := unix.Write(s.fd, p[written:])
		if err == unix.EINTR {
			continue
		}
		if err == unix.EAGAIN {
			if werr := s.waitWritable(); werr != nil {
				return written, werr
			}
			continue
		}
		if err != nil {
			return written, &os.PathError{Op: "write", Path: s.name, Err: err}
		}
		if n == 0 {
			return written, io.ErrShortWrite
		}
		written += n
	}
	return written, nil
}

// waitWritable blocks until the fd accepts more output or Close is called.
func (s *fdStream) waitWritable() error {
	for {
		pfd := []unix.PollFd{
			{Fd: int32(s.fd), Events: unix.POLLOUT},
			{Fd: int32(s.pipeR), Events: unix.POLLIN},
		}
		if _, err := unix.Poll(pfd, -1); err != nil {
			if err == unix.EINTR {
				continue
			}
			return &os.SyscallError{Syscall: "poll", Err: err}
		}
		if pfd[1].Revents&unix.POLLIN != 0 {
			return os.ErrClosed
		}
		if pfd[0].Revents&(unix.POLLOUT|unix.POLLHUP|unix.POLLERR) != 0 {
			return nil
		}
	}
}

// Flush waits until the TTY output queue is empty or Close is called.
// Sockets have no output queue to drain.
func (s *fdStream) Flush() error {
	if s.socket {
		return nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for {
		if s.closed() {
			return os.ErrClosed
		}
		queued, err := unix.IoctlGetInt(s.fd, unix.TIOCOUTQ)
		if err != nil {
			return &os.PathError{Op: "tiocoutq", Path: s.name, Err: err}
		}
		if queued == 0 {
			return nil
		}
		pfd := []unix.PollFd{{Fd: int32(s.pipeR), Events: unix.POLLIN}}
		if _, err := unix.Poll(pfd, int(drainInterval/time.Millisecond)); err != nil && err != unix.EINTR {
			return &os.SyscallError{Syscall: "poll", Err: err}
		}
		if pfd[0].Revents&unix.POLLIN != 0 {
			return os.ErrClosed
		}
	}
}

// CloseWrite shuts down the sending side of a socket. It is a no-op on a TTY.
func (s *fdStream) CloseWrite() error {
	if !s.socket {
		return nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed() {
		return nil
	}
	if err := unix.Shutdown(s.fd, unix.SHUT_WR); err != nil && err != unix.ENOTCONN {
		return &os.SyscallError{Syscall: "shutdown", Err: err}
	}
	return nil
}

// Close releases the fd and unblocks any pending Read, Write or Flush. Safe
// to call multiple times; subsequent calls are no-ops.
func (s *fdStream) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.done)
		// Wake up poll using self-pipe
		_, _ = unix.Write(s.pipeW, []byte{1})
		if s.socket {
			// Unblocks a write stuck on a full send buffer.
			_ = unix.Shutdown(s.fd, unix.SHUT_RDWR)
		}

		s.mu.Lock()
		defer s.mu.Unlock()
		if cerr := unix.Close(s.fd); cerr != nil {
			err = &os.PathError{Op: "close", Path: s.name, Err: cerr}
		}
		unix.Close(s.pipeR)
		unix.Close(s.pipeW)
	})
	return err
}
