// Package decoder implements protocol decoding.
package decoder

import (
	"encoding/binary"
	"fmt"

	"firestige.xyz/tcpsniff/internal/core"
)

// ParseTCP decodes a TCP header from the bytes following the IPv4 header.
// Options are covered by the data offset but not parsed.
func ParseTCP(data []byte) (core.TCPHeader, error) {
	if len(data) < core.TCPHdrMinLen {
		return core.TCPHeader{}, fmt.Errorf("%w: tcp needs %d bytes, have %d",
			core.ErrBufferTooShort, core.TCPHdrMinLen, len(data))
	}

	tcp := core.TCPHeader{}

	// Source Port (2 bytes at offset 0)
	tcp.SrcPort = binary.BigEndian.Uint16(data[0:2])

	// Destination Port (2 bytes at offset 2)
	tcp.DstPort = binary.BigEndian.Uint16(data[2:4])

	// Data Offset (upper 4 bits of byte 12), reserved bits ignored
	tcp.DataOffset = data[12] >> 4

	// Flags (byte 13): CWR ECE URG ACK PSH RST SYN FIN
	tcp.Flags = data[13]

	headerLen := tcp.HeaderLen()
	if headerLen < core.TCPHdrMinLen || headerLen > len(data) {
		return tcp, fmt.Errorf("%w: tcp data offset=%d (%d bytes), have %d",
			core.ErrHeaderLengthInvalid, tcp.DataOffset, headerLen, len(data))
	}

	return tcp, nil
}
