//go:build linux

package rfcomm

import (
	"context"
	"testing"
	"time"

	"github.com/creack/pty"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	btserial "github.com/luhtfiimanal/go-linux-btserial"
)

const testAddress = "AA:BB:CC:DD:EE:FF"

func TestParseAddress(t *testing.T) {
	for _, in := range []string{"AA:BB:CC:DD:EE:FF", "aa:bb:cc:dd:ee:ff", "AA-BB-CC-DD-EE-FF", " AA:BB:CC:DD:EE:FF "} {
		a, err := ParseAddress(in)
		require.NoError(t, err, in)
		assert.Equal(t, testAddress, a.String())
	}

	for _, in := range []string{"", "AA:BB:CC", "zz:bb:cc:dd:ee:ff", "00:00:5e:00:53:01:02:03"} {
		_, err := ParseAddress(in)
		assert.Error(t, err, in)
	}
}

func TestAddress_KernelOrderAndObjectPath(t *testing.T) {
	a, err := ParseAddress("01:02:03:04:05:06")
	require.NoError(t, err)
	assert.Equal(t, [6]byte{6, 5, 4, 3, 2, 1}, a.bdaddr())
	assert.Equal(t, "/org/bluez/hci0/dev_01_02_03_04_05_06", a.devicePath("hci0"))
}

func TestAdapter_ResolvePeer(t *testing.T) {
	a := NewAdapter(Config{DisableDBus: true}, nil)

	peer, err := a.ResolvePeer(context.Background(), "aa:bb:cc:dd:ee:ff")
	require.NoError(t, err)
	assert.Equal(t, testAddress, peer.Address)

	_, err = a.ResolvePeer(context.Background(), "not-an-address")
	require.ErrorIs(t, err, btserial.ErrPeerNotFound)

	require.NoError(t, a.CancelDiscovery(context.Background()))
}

func TestAdapter_OpenStreamWithoutRoute(t *testing.T) {
	a := NewAdapter(Config{DisableDBus: true}, nil)
	peer, err := a.ResolvePeer(context.Background(), testAddress)
	require.NoError(t, err)

	_, err = a.OpenStream(context.Background(), peer, btserial.DefaultServiceID)
	require.ErrorIs(t, err, ErrNoRoute)
}

func TestAdapter_LegacyChannelRange(t *testing.T) {
	a := NewAdapter(Config{DisableDBus: true}, nil)
	peer := btserial.Peer{Address: testAddress}

	for _, ch := range []int{0, -1, MaxChannel + 1} {
		_, err := a.OpenLegacyStream(context.Background(), peer, ch)
		assert.ErrorContains(t, err, "out of range", "channel %d", ch)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := a.OpenLegacyStream(ctx, peer, 1)
	require.ErrorIs(t, err, context.Canceled)
}

func TestConn_OverBoundTTY(t *testing.T) {
	master, slave, err := pty.Open()
	require.NoError(t, err)
	t.Cleanup(func() { master.Close(); slave.Close() })

	adapter := NewAdapter(Config{
		DisableDBus: true,
		Bindings:    map[string]string{"aa:bb:cc:dd:ee:ff": slave.Name()},
	}, nil)

	reads := make(chan []byte, 8)
	disconnects := make(chan bool, 2)
	conn := btserial.New(adapter,
		btserial.WithGracePeriod(10*time.Millisecond),
		btserial.OnRead(func(data []byte) { reads <- data }),
		btserial.OnDisconnected(func(byRemote bool) { disconnects <- byRemote }),
	)
	require.NoError(t, conn.Connect(context.Background(), testAddress, uuid.Nil))
	require.True(t, conn.IsConnected())

	// 1. Remote side writes, the read callback should receive
	_, err = master.Write([]byte("hello"))
	require.NoError(t, err)
	select {
	case b := <-reads:
		require.Equal(t, "hello", string(b))
	case <-time.After(500 * time.Millisecond):
		t.Fatal("timeout waiting for read callback")
	}

	// 2. Conn writes, remote side should receive
	require.NoError(t, conn.Write([]byte("world")))
	buf := make([]byte, 5)
	n, err := master.Read(buf)
	require.NoError(t, err)
	require.Equal(t, "world", string(buf[:n]))

	// 3. Remote hangs up
	require.NoError(t, master.Close())
	select {
	case byRemote := <-disconnects:
		require.True(t, byRemote)
	case <-time.After(500 * time.Millisecond):
		t.Fatal("timeout waiting for disconnect after hangup")
	}
	require.ErrorIs(t, conn.Write([]byte("x")), btserial.ErrNotConnected)
	require.Eventually(t, func() bool { return conn.State() == btserial.StateDisconnected }, time.Second, time.Millisecond)
}

func TestConn_DisconnectDuringBlockedTTYWrite(t *testing.T) {
	master, slave, err := pty.Open()
	require.NoError(t, err)
	t.Cleanup(func() { master.Close(); slave.Close() })

	adapter := NewAdapter(Config{
		DisableDBus: true,
		Bindings:    map[string]string{testAddress: slave.Name()},
	}, nil)
	disconnects := make(chan bool, 2)
	conn := btserial.New(adapter,
		btserial.WithGracePeriod(10*time.Millisecond),
		btserial.OnDisconnected(func(byRemote bool) { disconnects <- byRemote }),
	)
	require.NoError(t, conn.Connect(context.Background(), testAddress, uuid.Nil))

	// Nobody reads the master side: the write fills the pty and blocks.
	writeErr := make(chan error, 1)
	go func() { writeErr <- conn.Write(make([]byte, 1<<20)) }()
	select {
	case err := <-writeErr:
		t.Fatalf("write returned before the peer drained it: %v", err)
	case <-time.After(100 * time.Millisecond):
	}

	disconnected := make(chan struct{})
	go func() {
		conn.Disconnect()
		close(disconnected)
	}()

	select {
	case <-disconnected:
	case <-time.After(2 * time.Second):
		t.Fatalf("Disconnect hung; state=%s", conn.State())
	}
	require.Equal(t, btserial.StateDisconnected, conn.State())
	require.False(t, <-disconnects)

	select {
	case err := <-writeErr:
		require.ErrorIs(t, err, btserial.ErrIO)
	case <-time.After(time.Second):
		t.Fatal("write still blocked after Disconnect")
	}
}

func TestConn_BothPathsFail(t *testing.T) {
	adapter := NewAdapter(Config{DisableDBus: true}, nil)
	conn := btserial.New(adapter, btserial.WithLegacyChannel(MaxChannel+1))

	err := conn.Connect(context.Background(), testAddress, uuid.Nil)
	require.ErrorIs(t, err, btserial.ErrConnectFailed)
	require.ErrorIs(t, err, ErrNoRoute)
	require.Equal(t, btserial.StateIdle, conn.State())
}
