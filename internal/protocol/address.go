package protocol

import (
	"encoding/binary"
	"net"
)

// AddressFromIP packs an IPv4 address into the little-endian uint32 used
// on the wire and in the registry. The mapping is exactly the byte order
// of net.IP.To4() reinterpreted as little-endian, so 10.0.0.5 becomes
// 0x0500000A.
func AddressFromIP(ip net.IP) uint32 {
	v4 := ip.To4()
	if v4 == nil {
		return 0
	}
	return binary.LittleEndian.Uint32(v4)
}

// AddressToIP is the inverse of AddressFromIP.
func AddressToIP(addr uint32) net.IP {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, addr)
	return net.IP(b)
}

// AddressToString renders a wire address as a dotted-quad string.
func AddressToString(addr uint32) string {
	return AddressToIP(addr).String()
}
