//go:build linux

package main

import (
	"bytes"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	btserial "github.com/luhtfiimanal/go-linux-btserial"
	"github.com/luhtfiimanal/go-linux-btserial/rfcomm"
)

func TestConnectCmd_RequiresAddress(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetArgs([]string{"connect"})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	require.Error(t, cmd.Execute())
}

func TestConnectCmd_RejectsBadService(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("HOME", t.TempDir())
	cmd := newRootCmd()
	cmd.SetArgs([]string{"connect", "AA:BB:CC:DD:EE:FF", "--service", "nope"})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	require.ErrorContains(t, cmd.Execute(), "invalid --service")
}

func TestBridge_PumpWithoutConnection(t *testing.T) {
	b := &bridge{conn: btserial.New(rfcomm.NewAdapter(rfcomm.Config{DisableDBus: true}, nil))}
	require.NoError(t, b.pump(bytes.NewReader(nil)))
	require.ErrorIs(t, b.pump(bytes.NewReader([]byte("data"))), btserial.ErrNotConnected)
}

// chdir changes the working directory for the duration of the test and
// restores it on cleanup (equivalent of testing.T.Chdir, Go 1.24+).
func chdir(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(old); err != nil {
			t.Fatal(err)
		}
	})
}
