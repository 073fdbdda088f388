package core

import (
	"net/netip"
	"time"
)

// Record is the flat, serializable form of a PacketReport shared by the
// structured reporters. Addresses are rendered in their usual text forms.
type Record struct {
	Timestamp       time.Time `json:"timestamp"`
	SrcMAC          string    `json:"src_mac"`
	DstMAC          string    `json:"dst_mac"`
	SrcIP           string    `json:"src_ip"`
	DstIP           string    `json:"dst_ip"`
	SrcPort         uint16    `json:"src_port"`
	DstPort         uint16    `json:"dst_port"`
	PayloadSize     int       `json:"payload_size"`
	Truncated       bool      `json:"truncated,omitempty"`
	Snapped         bool      `json:"snapped,omitempty"`
	CapturedPayload int       `json:"captured_payload"`
	TCPFlags        uint8     `json:"tcp_flags"`
}

// Record flattens r.
func (r *PacketReport) Record() Record {
	return Record{
		Timestamp:       r.Timestamp,
		SrcMAC:          r.SrcMAC.String(),
		DstMAC:          r.DstMAC.String(),
		SrcIP:           r.SrcIP.String(),
		DstIP:           r.DstIP.String(),
		SrcPort:         r.SrcPort,
		DstPort:         r.DstPort,
		PayloadSize:     r.PayloadSize,
		Truncated:       r.Truncated,
		Snapped:         r.Snapped,
		CapturedPayload: r.CapturedPayload,
		TCPFlags:        r.TCPFlags,
	}
}

// FlowKey identifies the connection a report belongs to, as
// "srcIP:srcPort-dstIP:dstPort".
func (r *PacketReport) FlowKey() string {
	return netip.AddrPortFrom(r.SrcIP, r.SrcPort).String() + "-" +
		netip.AddrPortFrom(r.DstIP, r.DstPort).String()
}
