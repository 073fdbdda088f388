// Package decoder implements protocol decoding.
package decoder

import (
	"encoding/binary"
	"fmt"
	"net/netip"

	"firestige.xyz/tcpsniff/internal/core"
)

// ParseIPv4 decodes an IPv4 header from the bytes following the Ethernet
// header. The IHL-derived length must cover at least the fixed 20 bytes and
// must fit inside data.
func ParseIPv4(data []byte) (core.IPv4Header, error) {
	if len(data) < core.IPv4HdrMinLen {
		return core.IPv4Header{}, fmt.Errorf("%w: ipv4 needs %d bytes, have %d",
			core.ErrBufferTooShort, core.IPv4HdrMinLen, len(data))
	}

	// Version (high nibble) and IHL (low nibble) share byte 0
	ip := core.IPv4Header{
		Version: data[0] >> 4,
		IHL:     data[0] & 0x0F,
	}

	headerLen := ip.HeaderLen()
	if headerLen < core.IPv4HdrMinLen || headerLen > len(data) {
		return ip, fmt.Errorf("%w: ipv4 ihl=%d (%d bytes), have %d",
			core.ErrHeaderLengthInvalid, ip.IHL, headerLen, len(data))
	}

	// Total Length (2 bytes at offset 2)
	ip.TotalLen = binary.BigEndian.Uint16(data[2:4])

	// Protocol (1 byte at offset 9)
	ip.Protocol = data[9]

	// Source IP (4 bytes at offset 12)
	ip.SrcIP = netip.AddrFrom4([4]byte(data[12:16]))

	// Destination IP (4 bytes at offset 16)
	ip.DstIP = netip.AddrFrom4([4]byte(data[16:20]))

	return ip, nil
}
