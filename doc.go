// Package btserial manages a single serial-over-Bluetooth connection:
// opening a stream to a remote peer, draining incoming bytes on a
// background goroutine, writing outgoing bytes, and tearing everything down
// exactly once.
//
// The payload is an opaque byte stream; no framing is applied.
//
// Features:
//   - Primary connect with one fallback attempt on a raw RFCOMM channel
//   - Reader goroutine delivering bytes through a callback
//   - Idempotent Disconnect with a short grace period for in-flight writes
//   - Exactly one disconnect notification per connection, telling local
//     and remote closes apart
//   - Optional zap logging and Prometheus metrics
//
// Platform specifics live behind the Adapter interface; package rfcomm
// provides the Linux implementation.
//
// Example usage:
//
//	adapter := rfcomm.NewAdapter(rfcomm.Config{}, nil)
//	conn := btserial.New(adapter,
//	    btserial.OnRead(func(data []byte) {
//	        fmt.Printf("Received: %q\n", data)
//	    }),
//	    btserial.OnDisconnected(func(byRemote bool) {
//	        log.Println("Disconnected, by remote:", byRemote)
//	    }),
//	)
//	if err := conn.Connect(ctx, "AA:BB:CC:DD:EE:FF", uuid.Nil); err != nil {
//	    log.Fatal(err)
//	}
//	defer conn.Disconnect()
//
//	if err := conn.Write([]byte("C,START\r\n")); err != nil {
//	    log.Println("Write failed:", err)
//	}
package btserial
