package btserial

import (
	"context"

	"github.com/google/uuid"
)

// DefaultServiceID is the Serial Port Profile service class, used when
// Connect is given uuid.Nil.
var DefaultServiceID = uuid.MustParse("00001101-0000-1000-8000-00805F9B34FB")

// DefaultLegacyChannel is the RFCOMM channel used by the fallback connect.
const DefaultLegacyChannel = 1

// Peer is a resolved remote device.
type Peer struct {
	// Address is the canonical textual address, e.g. "AA:BB:CC:DD:EE:FF".
	Address string
	// Handle is adapter specific data attached during resolution.
	Handle any
}

// Adapter is the platform side of a connection: peer resolution, discovery
// control and the two ways of opening a stream to a peer.
//
// OpenStream is the primary, service-negotiated connect. OpenLegacyStream
// is the fallback for peers that reject the service handshake; it connects
// straight to an RFCOMM channel.
type Adapter interface {
	ResolvePeer(ctx context.Context, address string) (Peer, error)
	CancelDiscovery(ctx context.Context) error
	OpenStream(ctx context.Context, peer Peer, serviceID uuid.UUID) (*Handle, error)
	OpenLegacyStream(ctx context.Context, peer Peer, channel int) (*Handle, error)
}
