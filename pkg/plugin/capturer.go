// Package plugin defines plugin interfaces.
package plugin

import "firestige.xyz/tcpsniff/internal/core"

// Capturer delivers raw packets from an interface or a capture file.
//
// ReadPacket blocks until a packet is available. It returns
// core.ErrReadTimeout when the source's poll timeout expires with nothing
// read, and io.EOF when a finite source is exhausted. The returned Data is
// only valid until the next ReadPacket call.
type Capturer interface {
	Plugin
	ReadPacket() (core.RawPacket, error)
	Stats() CaptureStats
}

// CaptureStats represents capture statistics.
type CaptureStats struct {
	PacketsReceived  uint64
	PacketsDropped   uint64
	PacketsIfDropped uint64
}
