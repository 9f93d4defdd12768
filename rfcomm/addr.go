package rfcomm

import (
	"fmt"
	"net"
	"strings"
)

// Address is a Bluetooth device address in display order
// (Address{0xAA, ...} is "AA:...").
type Address [6]byte

// ParseAddress parses "AA:BB:CC:DD:EE:FF" (colon or dash separated, any case).
func ParseAddress(s string) (Address, error) {
	var a Address
	hw, err := net.ParseMAC(strings.TrimSpace(s))
	if err != nil {
		return a, fmt.Errorf("invalid bluetooth address %q: %w", s, err)
	}
	if len(hw) != len(a) {
		return a, fmt.Errorf("invalid bluetooth address %q: want 6 bytes, got %d", s, len(hw))
	}
	copy(a[:], hw)
	return a, nil
}

func (a Address) String() string {
	return strings.ToUpper(net.HardwareAddr(a[:]).String())
}

// bdaddr returns the address in the little-endian order the kernel expects.
func (a Address) bdaddr() [6]byte {
	var b [6]byte
	for i := range a {
		b[i] = a[len(a)-1-i]
	}
	return b
}

// devicePath is the BlueZ D-Bus object path of the device on adapter hci.
func (a Address) devicePath(hci string) string {
	return "/org/bluez/" + hci + "/dev_" + strings.ReplaceAll(a.String(), ":", "_")
}
