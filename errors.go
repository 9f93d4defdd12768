package btserial

import (
	"errors"
	"fmt"

	"go.uber.org/multierr"
)

var (
	// ErrPeerNotFound is returned when an address cannot be resolved to a remote peer.
	ErrPeerNotFound = errors.New("btserial: peer not found")
	// ErrConnectFailed is matched by every *ConnectError.
	ErrConnectFailed = errors.New("btserial: connect failed")
	// ErrAlreadyConnected is returned by Connect while a connection is being
	// established or is active.
	ErrAlreadyConnected = errors.New("btserial: already connected")
	// ErrNotConnected is returned by Write when there is no active connection.
	ErrNotConnected = errors.New("btserial: not connected")
	// ErrIO is matched by every *IOError.
	ErrIO = errors.New("btserial: i/o error")
)

// ConnectError reports that both the primary and the fallback connect
// attempts failed.
type ConnectError struct {
	Address  string
	Primary  error
	Fallback error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("btserial: connect %s failed: %v", e.Address, multierr.Combine(
		prefixErr("primary", e.Primary),
		prefixErr("fallback", e.Fallback),
	))
}

// Is reports whether target is ErrConnectFailed.
func (e *ConnectError) Is(target error) bool { return target == ErrConnectFailed }

// Unwrap returns the primary and fallback errors.
func (e *ConnectError) Unwrap() []error {
	var errs []error
	if e.Primary != nil {
		errs = append(errs, e.Primary)
	}
	if e.Fallback != nil {
		errs = append(errs, e.Fallback)
	}
	return errs
}

// IOError is a read, write, flush or close failure surfaced from the transport.
type IOError struct {
	Op  string
	Err error
}

func (e *IOError) Error() string { return "btserial: " + e.Op + ": " + e.Err.Error() }

func (e *IOError) Is(target error) bool { return target == ErrIO }

func (e *IOError) Unwrap() error { return e.Err }

func ioErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return &IOError{Op: op, Err: err}
}

func prefixErr(prefix string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", prefix, err)
}
