// Package decoder implements protocol decoding.
package decoder

import (
	"encoding/binary"
	"fmt"

	"firestige.xyz/tcpsniff/internal/core"
)

// ParseEthernet decodes the 14-byte Ethernet II header at the start of data.
// 802.1Q tags are not interpreted; a tagged frame reports EtherType 0x8100.
func ParseEthernet(data []byte) (core.EthernetHeader, error) {
	if len(data) < core.EthernetHdrLen {
		return core.EthernetHeader{}, fmt.Errorf("%w: ethernet needs %d bytes, have %d",
			core.ErrBufferTooShort, core.EthernetHdrLen, len(data))
	}

	eth := core.EthernetHeader{}

	// Destination MAC (6 bytes)
	copy(eth.DstMAC[:], data[0:6])

	// Source MAC (6 bytes)
	copy(eth.SrcMAC[:], data[6:12])

	// EtherType (2 bytes)
	eth.EtherType = binary.BigEndian.Uint16(data[12:14])

	return eth, nil
}
