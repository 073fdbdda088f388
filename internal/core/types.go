// Package core defines core types with zero external dependencies.
package core

import "net/netip"

// Protocol numbers and fixed header sizes used by the dissector.
const (
	EtherTypeIPv4  = 0x0800
	EtherTypeARP   = 0x0806
	IPProtocolTCP  = 6
	EthernetHdrLen = 14
	IPv4HdrMinLen  = 20
	TCPHdrMinLen   = 20

	wordLen = 4 // IHL and data offset count 32-bit words
)

// EthernetHeader represents L2 Ethernet frame header.
type EthernetHeader struct {
	DstMAC    [6]byte
	SrcMAC    [6]byte
	EtherType uint16 // 0x0800=IPv4, 0x0806=ARP
}

// IPv4Header represents the fixed part of an IPv4 header. Options are
// skipped, never parsed.
type IPv4Header struct {
	Version  uint8
	IHL      uint8 // header length in 32-bit words, 5~15
	TotalLen uint16
	Protocol uint8 // TCP=6
	SrcIP    netip.Addr
	DstIP    netip.Addr
}

// HeaderLen returns the header length in bytes, options included.
func (h IPv4Header) HeaderLen() int { return int(h.IHL) * wordLen }

// TCPHeader represents the fixed part of a TCP header.
type TCPHeader struct {
	SrcPort    uint16
	DstPort    uint16
	DataOffset uint8 // header length in 32-bit words, 5~15
	Flags      uint8 // CWR ECE URG ACK PSH RST SYN FIN
}

// HeaderLen returns the header length in bytes, options included.
func (h TCPHeader) HeaderLen() int { return int(h.DataOffset) * wordLen }

// TCP flag bits within TCPHeader.Flags.
const (
	TCPFlagFIN uint8 = 1 << iota
	TCPFlagSYN
	TCPFlagRST
	TCPFlagPSH
	TCPFlagACK
	TCPFlagURG
	TCPFlagECE
	TCPFlagCWR
)
