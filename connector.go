package btserial

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Path tells which connect strategy produced a Handle.
type Path int

const (
	PathPrimary Path = iota
	PathFallback
)

func (p Path) String() string {
	if p == PathFallback {
		return "fallback"
	}
	return "primary"
}

// Connector opens a Handle to a peer: one primary attempt for the service,
// then one fallback attempt on a raw RFCOMM channel. It never retries.
type Connector struct {
	Adapter Adapter
	// LegacyChannel is the channel used by the fallback; zero means
	// DefaultLegacyChannel.
	LegacyChannel int
	Logger        *zap.Logger
}

// Connect resolves address and opens a stream for serviceID. A uuid.Nil
// serviceID selects DefaultServiceID.
//
// Discovery is cancelled before the first attempt; a failure to cancel is
// logged and otherwise ignored.
func (c *Connector) Connect(ctx context.Context, address string, serviceID uuid.UUID) (*Handle, Path, error) {
	log := c.logger().With(zap.String("address", address))
	if serviceID == uuid.Nil {
		serviceID = DefaultServiceID
	}

	peer, err := c.Adapter.ResolvePeer(ctx, address)
	if err != nil {
		if errors.Is(err, ErrPeerNotFound) {
			return nil, PathPrimary, err
		}
		return nil, PathPrimary, fmt.Errorf("%w: %s: %w", ErrPeerNotFound, address, err)
	}

	if err := c.Adapter.CancelDiscovery(ctx); err != nil {
		log.Warn("cancel discovery failed", zap.Error(err))
	}
	if err := ctx.Err(); err != nil {
		return nil, PathPrimary, err
	}

	log.Debug("connecting", zap.Stringer("service", serviceID))
	h, primaryErr := c.Adapter.OpenStream(ctx, peer, serviceID)
	if primaryErr == nil {
		return h, PathPrimary, nil
	}
	log.Warn("primary connect failed, trying fallback", zap.Error(primaryErr))

	channel := c.LegacyChannel
	if channel <= 0 {
		channel = DefaultLegacyChannel
	}
	h, fallbackErr := c.Adapter.OpenLegacyStream(ctx, peer, channel)
	if fallbackErr != nil {
		return nil, PathFallback, &ConnectError{
			Address:  address,
			Primary:  primaryErr,
			Fallback: fallbackErr,
		}
	}
	log.Info("connected through fallback channel", zap.Int("channel", channel))
	return h, PathFallback, nil
}

func (c *Connector) logger() *zap.Logger {
	if c.Logger == nil {
		return zap.NewNop()
	}
	return c.Logger
}
