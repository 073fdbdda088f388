// Package decoder implements the Ethernet -> IPv4 -> TCP dissection chain.
//
// Every header is read through explicit offsets on a bounds-checked slice;
// declared lengths (IHL, data offset) are validated against the remaining
// buffer before the next header is addressed.
package decoder

import (
	"errors"
	"fmt"

	"firestige.xyz/tcpsniff/internal/core"
)

// Layer names used in diagnostics and metric labels.
const (
	LayerEthernet = "ethernet"
	LayerIPv4     = "ipv4"
	LayerTCP      = "tcp"
)

// Decoder decodes raw packets into structured format.
type Decoder interface {
	Decode(raw core.RawPacket) (core.DecodedPacket, error)
}

// LayerError records which layer of the chain rejected a packet.
type LayerError struct {
	Layer string
	Err   error
}

func (e *LayerError) Error() string { return e.Layer + ": " + e.Err.Error() }

func (e *LayerError) Unwrap() error { return e.Err }

// IsUnsupported reports whether err is a protocol mismatch rather than a
// malformed header. Mismatches are the normal case for non-TCP traffic.
func IsUnsupported(err error) bool {
	return errors.Is(err, core.ErrUnsupportedProtocol)
}

// StandardDecoder runs the fixed Ethernet -> IPv4 -> TCP chain. It holds no
// state, so one value can serve any number of packets.
type StandardDecoder struct{}

// NewStandardDecoder creates a decoder.
func NewStandardDecoder() *StandardDecoder {
	return &StandardDecoder{}
}

// Decode dissects raw.Data. Errors are *LayerError values wrapping
// core.ErrBufferTooShort, core.ErrHeaderLengthInvalid, core.ErrVersionMismatch
// or core.ErrUnsupportedProtocol. On error the returned packet holds the
// headers decoded so far.
func (d *StandardDecoder) Decode(raw core.RawPacket) (core.DecodedPacket, error) {
	var pkt core.DecodedPacket

	data := raw.Data
	if raw.CaptureLen > 0 && int(raw.CaptureLen) < len(data) {
		data = data[:raw.CaptureLen]
	}

	eth, err := ParseEthernet(data)
	if err != nil {
		return pkt, &LayerError{Layer: LayerEthernet, Err: err}
	}
	pkt.Ethernet = eth

	if eth.EtherType != core.EtherTypeIPv4 {
		return pkt, &LayerError{
			Layer: LayerEthernet,
			Err:   fmt.Errorf("%w: ethertype 0x%04x", core.ErrUnsupportedProtocol, eth.EtherType),
		}
	}

	ipData := data[core.EthernetHdrLen:]
	pkt.Available = len(ipData)

	ip, err := ParseIPv4(ipData)
	if err != nil {
		return pkt, &LayerError{Layer: LayerIPv4, Err: err}
	}
	pkt.IP = ip

	if ip.Version != 4 {
		return pkt, &LayerError{
			Layer: LayerIPv4,
			Err:   fmt.Errorf("%w: version %d", core.ErrVersionMismatch, ip.Version),
		}
	}

	if ip.Protocol != core.IPProtocolTCP {
		return pkt, &LayerError{
			Layer: LayerIPv4,
			Err:   fmt.Errorf("%w: ip protocol %d", core.ErrUnsupportedProtocol, ip.Protocol),
		}
	}

	tcpData := ipData[ip.HeaderLen():]
	tcp, err := ParseTCP(tcpData)
	if err != nil {
		return pkt, &LayerError{Layer: LayerTCP, Err: err}
	}
	pkt.TCP = tcp

	pkt.Payload = payloadBytes(ipData, ip, tcp)
	return pkt, nil
}

// payloadBytes returns the TCP payload present in the buffer, bounded by the
// declared IP total length so Ethernet padding is never counted.
func payloadBytes(ipData []byte, ip core.IPv4Header, tcp core.TCPHeader) []byte {
	start := ip.HeaderLen() + tcp.HeaderLen()
	end := min(int(ip.TotalLen), len(ipData))
	if end <= start {
		return nil
	}
	return ipData[start:end]
}
