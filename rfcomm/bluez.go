package rfcomm

import (
	"context"
	"errors"

	"github.com/godbus/dbus/v5"
)

const (
	bluezService      = "org.bluez"
	bluezErrFailed    = "org.bluez.Error.Failed"
	dbusUnknownObject = "org.freedesktop.DBus.Error.UnknownObject"
)

// bluez talks to the BlueZ daemon on the system bus.
type bluez struct {
	conn *dbus.Conn
	hci  string
}

func connectBlueZ(hci string) (*bluez, error) {
	conn, err := dbus.SystemBus()
	if err != nil {
		return nil, err
	}
	return &bluez{conn: conn, hci: hci}, nil
}

// stopDiscovery stops an inquiry on the adapter. BlueZ answers Failed when
// no discovery is running; that is not an error here.
func (b *bluez) stopDiscovery(ctx context.Context) error {
	obj := b.conn.Object(bluezService, dbus.ObjectPath("/org/bluez/"+b.hci))
	err := obj.CallWithContext(ctx, "org.bluez.Adapter1.StopDiscovery", 0).Err
	var derr dbus.Error
	if errors.As(err, &derr) && derr.Name == bluezErrFailed {
		return nil
	}
	return err
}

// knownDevice reports whether BlueZ has a device object for addr.
func (b *bluez) knownDevice(ctx context.Context, addr Address) (bool, error) {
	obj := b.conn.Object(bluezService, dbus.ObjectPath(addr.devicePath(b.hci)))
	var v dbus.Variant
	err := obj.CallWithContext(ctx, "org.freedesktop.DBus.Properties.Get", 0, "org.bluez.Device1", "Address").Store(&v)
	var derr dbus.Error
	if errors.As(err, &derr) && derr.Name == dbusUnknownObject {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
