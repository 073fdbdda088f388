// Package core defines core data structures with zero external dependencies.
package core

import (
	"net"
	"net/netip"
	"time"
)

// RawPacket is one buffer delivered by a capture source.
type RawPacket struct {
	Data       []byte    // Captured bytes, read-only for the dissection pass
	Timestamp  time.Time // Capture timestamp, zero if the source has none
	CaptureLen uint32    // Bytes actually captured (may be < OrigLen under snaplen)
	OrigLen    uint32    // On-wire frame length
}

// DecodedPacket is the result of the Ethernet -> IPv4 -> TCP dissection chain.
type DecodedPacket struct {
	Ethernet EthernetHeader
	IP       IPv4Header
	TCP      TCPHeader
	// Payload holds the TCP payload bytes present in the buffer, bounded by
	// the declared IP total length.
	Payload []byte
	// Available is the number of bytes after the Ethernet header.
	Available int
}

// PacketReport is the per-packet record emitted to reporters.
type PacketReport struct {
	Timestamp time.Time

	SrcMAC  net.HardwareAddr
	DstMAC  net.HardwareAddr
	SrcIP   netip.Addr
	DstIP   netip.Addr
	SrcPort uint16
	DstPort uint16

	// PayloadSize is ipTotalLength - (ipHeaderBytes + tcpHeaderBytes).
	// It is 0 and Truncated is set when that value would be negative.
	PayloadSize int
	Truncated   bool

	// Snapped is set when the declared IP total length runs past the
	// captured buffer; CapturedPayload is what was actually captured.
	Snapped         bool
	CapturedPayload int

	TCPFlags uint8
}
