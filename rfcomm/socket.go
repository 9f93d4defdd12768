//go:build linux

package rfcomm

import (
	"context"
	"fmt"
	"os"
	"sync"

	"golang.org/x/sys/unix"
)

// MaxChannel is the highest valid RFCOMM server channel.
const MaxChannel = 30

// dialChannel connects an RFCOMM socket to channel on addr. The blocking
// connect is aborted by shutting the socket down when ctx ends.
func dialChannel(ctx context.Context, addr Address, channel int) (*fdStream, error) {
	if channel < 1 || channel > MaxChannel {
		return nil, fmt.Errorf("rfcomm: channel %d out of range 1-%d", channel, MaxChannel)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	fd, err := unix.Socket(unix.AF_BLUETOOTH, unix.SOCK_STREAM|unix.SOCK_CLOEXEC, unix.BTPROTO_RFCOMM)
	if err != nil {
		return nil, &os.SyscallError{Syscall: "socket", Err: err}
	}

	var (
		mu       sync.Mutex
		finished bool
	)
	stop := context.AfterFunc(ctx, func() {
		mu.Lock()
		defer mu.Unlock()
		if !finished {
			_ = unix.Shutdown(fd, unix.SHUT_RDWR)
		}
	})

	err = unix.Connect(fd, &unix.SockaddrRFCOMM{Addr: addr.bdaddr(), Channel: uint8(channel)})

	stop()
	mu.Lock()
	finished = true
	mu.Unlock()

	if cerr := ctx.Err(); cerr != nil {
		unix.Close(fd)
		return nil, cerr
	}
	if err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("rfcomm: connect %s channel %d: %w", addr, channel, err)
	}

	s, err := newFDStream(fd, fmt.Sprintf("rfcomm:%s/%d", addr, channel), true)
	if err != nil {
		unix.Close(fd)
		return nil, err
	}
	return s, nil
}
