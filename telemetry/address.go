package telemetry

import (
	"fmt"
	"strconv"
	"strings"
)

// MacAddress is a 48-bit hardware address.
type MacAddress [6]byte

// ParseMAC parses the colon-separated hex form, e.g. "00:00:00:00:00:01".
func ParseMAC(s string) (MacAddress, error) {
	var mac MacAddress
	parts := strings.Split(s, ":")
	if len(parts) != 6 {
		return mac, fmt.Errorf("malformed hardware address %q", s)
	}
	for i, part := range parts {
		if len(part) != 2 {
			return mac, fmt.Errorf("malformed hardware address %q", s)
		}
		b, err := strconv.ParseUint(part, 16, 8)
		if err != nil {
			return mac, fmt.Errorf("malformed hardware address %q", s)
		}
		mac[i] = byte(b)
	}
	return mac, nil
}

// MustParseMAC is ParseMAC for addresses known at compile time; it panics
// on malformed input.
func MustParseMAC(s string) MacAddress {
	mac, err := ParseMAC(s)
	if err != nil {
		panic(err)
	}
	return mac
}

// String renders the colon-separated hex form.
func (m MacAddress) String() string {
	return fmt.Sprintf("%02x:%02x:%02x:%02x:%02x:%02x", m[0], m[1], m[2], m[3], m[4], m[5])
}

// IsGroup reports whether the address is a group (multicast or broadcast)
// address, i.e. whether the I/G bit of the first octet is set. Group
// destinations are never attributed to a flow.
func (m MacAddress) IsGroup() bool {
	return m[0]&0x01 != 0
}
