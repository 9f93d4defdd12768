//go:build linux

package rfcomm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	btserial "github.com/luhtfiimanal/go-linux-btserial"
)

// ErrNoRoute is returned by OpenStream when neither a TTY binding nor a
// service channel is configured for the request.
var ErrNoRoute = errors.New("rfcomm: no binding or channel for service")

// Config configures an Adapter.
type Config struct {
	// HCI is the local controller, "hci0" by default.
	HCI string
	// BaudRate applies to bound TTYs.
	BaudRate int
	// Bindings maps a peer address to a TTY already bound to it with
	// rfcomm(1), e.g. "AA:BB:CC:DD:EE:FF" -> "/dev/rfcomm0".
	Bindings map[string]string
	// Services maps a service id to the RFCOMM channel it listens on.
	Services map[uuid.UUID]int
	// DisableDBus skips all BlueZ calls: discovery is not cancelled and
	// peers are not checked.
	DisableDBus bool
	// RequireKnownPeer makes ResolvePeer fail for devices BlueZ has never seen.
	RequireKnownPeer bool
}

// Adapter implements btserial.Adapter on Linux with BlueZ.
type Adapter struct {
	cfg Config
	log *zap.Logger

	busOnce sync.Once
	bus     *bluez
	busErr  error
}

var _ btserial.Adapter = (*Adapter)(nil)

// NewAdapter returns an Adapter. log may be nil.
func NewAdapter(cfg Config, log *zap.Logger) *Adapter {
	if cfg.HCI == "" {
		cfg.HCI = "hci0"
	}
	if cfg.BaudRate == 0 {
		cfg.BaudRate = 115200
	}
	bindings := make(map[string]string, len(cfg.Bindings))
	for addr, dev := range cfg.Bindings {
		if a, err := ParseAddress(addr); err == nil {
			bindings[a.String()] = dev
		} else {
			bindings[strings.ToUpper(addr)] = dev
		}
	}
	cfg.Bindings = bindings
	if log == nil {
		log = zap.NewNop()
	}
	return &Adapter{cfg: cfg, log: log.Named("rfcomm")}
}

func (a *Adapter) blueZ() (*bluez, error) {
	a.busOnce.Do(func() {
		a.bus, a.busErr = connectBlueZ(a.cfg.HCI)
	})
	return a.bus, a.busErr
}

// ResolvePeer parses address. With RequireKnownPeer set, BlueZ must also
// know the device.
func (a *Adapter) ResolvePeer(ctx context.Context, address string) (btserial.Peer, error) {
	addr, err := ParseAddress(address)
	if err != nil {
		return btserial.Peer{}, fmt.Errorf("%w: %w", btserial.ErrPeerNotFound, err)
	}
	if a.cfg.RequireKnownPeer && !a.cfg.DisableDBus {
		bus, err := a.blueZ()
		if err != nil {
			return btserial.Peer{}, fmt.Errorf("%w: %s: system bus: %w", btserial.ErrPeerNotFound, addr, err)
		}
		known, err := bus.knownDevice(ctx, addr)
		if err != nil {
			return btserial.Peer{}, fmt.Errorf("%w: %s: %w", btserial.ErrPeerNotFound, addr, err)
		}
		if !known {
			return btserial.Peer{}, fmt.Errorf("%w: %s unknown to %s", btserial.ErrPeerNotFound, addr, a.cfg.HCI)
		}
	}
	return btserial.Peer{Address: addr.String(), Handle: addr}, nil
}

// CancelDiscovery stops a running inquiry on the controller.
func (a *Adapter) CancelDiscovery(ctx context.Context) error {
	if a.cfg.DisableDBus {
		return nil
	}
	bus, err := a.blueZ()
	if err != nil {
		return fmt.Errorf("rfcomm: system bus: %w", err)
	}
	return bus.stopDiscovery(ctx)
}

// OpenStream opens the TTY bound to the peer if there is one, otherwise an
// RFCOMM socket on the channel registered for serviceID.
func (a *Adapter) OpenStream(ctx context.Context, peer btserial.Peer, serviceID uuid.UUID) (*btserial.Handle, error) {
	addr, err := peerAddress(peer)
	if err != nil {
		return nil, err
	}
	if dev, ok := a.cfg.Bindings[addr.String()]; ok {
		a.log.Debug("opening bound tty", zap.String("device", dev))
		s, err := openTTY(dev, a.cfg.BaudRate)
		if err != nil {
			return nil, err
		}
		return btserial.NewStreamHandle(s), nil
	}
	channel, ok := a.cfg.Services[serviceID]
	if !ok {
		return nil, fmt.Errorf("%w %s on %s", ErrNoRoute, serviceID, addr)
	}
	s, err := dialChannel(ctx, addr, channel)
	if err != nil {
		return nil, err
	}
	return btserial.NewStreamHandle(s), nil
}

// OpenLegacyStream connects an RFCOMM socket straight to channel.
func (a *Adapter) OpenLegacyStream(ctx context.Context, peer btserial.Peer, channel int) (*btserial.Handle, error) {
	addr, err := peerAddress(peer)
	if err != nil {
		return nil, err
	}
	s, err := dialChannel(ctx, addr, channel)
	if err != nil {
		return nil, err
	}
	return btserial.NewStreamHandle(s), nil
}

func peerAddress(peer btserial.Peer) (Address, error) {
	if addr, ok := peer.Handle.(Address); ok {
		return addr, nil
	}
	return ParseAddress(peer.Address)
}
