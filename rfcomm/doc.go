// Package rfcomm is the Linux platform adapter for btserial, built on BlueZ.
//
// Streams come from one of two places:
//   - a TTY already bound to the peer with rfcomm(1) (Config.Bindings), or
//   - an AF_BLUETOOTH RFCOMM socket dialed to a channel, either the one
//     registered for the service id (Config.Services) or, on fallback, the
//     legacy channel.
//
// Both are read through poll with a self-pipe so closing the stream from
// another goroutine unblocks a pending read.
//
// Discovery is stopped through the BlueZ D-Bus API before connecting.
//
// This package does **not** support Windows or macOS.
package rfcomm
