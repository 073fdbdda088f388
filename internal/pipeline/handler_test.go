package pipeline

import (
	"encoding/binary"
	"errors"
	"net"
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firestige.xyz/tcpsniff/internal/core"
	"firestige.xyz/tcpsniff/internal/core/decoder"
)

var (
	testSrcMAC = net.HardwareAddr{0x00, 0x11, 0x22, 0x33, 0x44, 0x55}
	testDstMAC = net.HardwareAddr{0x66, 0x77, 0x88, 0x99, 0xaa, 0xbb}
)

// frame describes a synthetic Ethernet/IPv4/TCP buffer.
type frame struct {
	etherType  uint16
	version    uint8
	ihl        uint8
	totalLen   uint16
	protocol   uint8
	dataOffset uint8
	flags      uint8
	payload    int // bytes appended after the TCP header
	size       int // if > 0, truncate or pad the final buffer to this length
}

func tcpFrame() frame {
	return frame{
		etherType:  core.EtherTypeIPv4,
		version:    4,
		ihl:        5,
		totalLen:   40,
		protocol:   core.IPProtocolTCP,
		dataOffset: 5,
		flags:      core.TCPFlagACK,
	}
}

func (f frame) bytes() []byte {
	ipHdr := int(f.ihl) * 4
	if ipHdr < core.IPv4HdrMinLen {
		ipHdr = core.IPv4HdrMinLen
	}
	tcpHdr := int(f.dataOffset) * 4
	if tcpHdr < core.TCPHdrMinLen {
		tcpHdr = core.TCPHdrMinLen
	}

	buf := make([]byte, core.EthernetHdrLen+ipHdr+tcpHdr+f.payload)
	copy(buf[0:6], testDstMAC)
	copy(buf[6:12], testSrcMAC)
	binary.BigEndian.PutUint16(buf[12:14], f.etherType)

	ip := buf[core.EthernetHdrLen:]
	ip[0] = f.version<<4 | f.ihl&0x0f
	binary.BigEndian.PutUint16(ip[2:4], f.totalLen)
	ip[8] = 64
	ip[9] = f.protocol
	copy(ip[12:16], []byte{192, 168, 1, 10})
	copy(ip[16:20], []byte{10, 0, 0, 1})

	tcp := ip[ipHdr:]
	binary.BigEndian.PutUint16(tcp[0:2], 43512)
	binary.BigEndian.PutUint16(tcp[2:4], 443)
	tcp[12] = f.dataOffset << 4
	tcp[13] = f.flags

	switch {
	case f.size > len(buf):
		buf = append(buf, make([]byte, f.size-len(buf))...)
	case f.size > 0:
		buf = buf[:f.size]
	}
	return buf
}

func raw(data []byte) core.RawPacket {
	return core.RawPacket{Data: data, CaptureLen: uint32(len(data)), OrigLen: uint32(len(data))}
}

func TestHandleZeroPayload(t *testing.T) {
	res := NewHandler(nil).Handle(raw(tcpFrame().bytes()))

	require.Equal(t, OutcomeReported, res.Outcome)
	r := res.Report
	assert.Equal(t, 0, r.PayloadSize)
	assert.False(t, r.Truncated)
	assert.False(t, r.Snapped)
	assert.Equal(t, testSrcMAC, r.SrcMAC)
	assert.Equal(t, testDstMAC, r.DstMAC)
	assert.Equal(t, netip.MustParseAddr("192.168.1.10"), r.SrcIP)
	assert.Equal(t, netip.MustParseAddr("10.0.0.1"), r.DstIP)
	assert.Equal(t, uint16(43512), r.SrcPort)
	assert.Equal(t, uint16(443), r.DstPort)
	assert.Equal(t, core.TCPFlagACK, r.TCPFlags)
}

func TestHandleTwentyBytePayload(t *testing.T) {
	f := tcpFrame()
	f.totalLen = 60
	f.payload = 20

	res := NewHandler(nil).Handle(raw(f.bytes()))

	require.Equal(t, OutcomeReported, res.Outcome)
	assert.Equal(t, 20, res.Report.PayloadSize)
	assert.Equal(t, 20, res.Report.CapturedPayload)
	assert.False(t, res.Report.Truncated)
}

func TestHandleNegativePayloadIsTruncated(t *testing.T) {
	f := tcpFrame()
	f.totalLen = 30

	res := NewHandler(nil).Handle(raw(f.bytes()))

	require.Equal(t, OutcomeReported, res.Outcome)
	assert.True(t, res.Report.Truncated)
	assert.Equal(t, 0, res.Report.PayloadSize)
}

func TestHandleSnappedPacket(t *testing.T) {
	f := tcpFrame()
	f.totalLen = 1500
	f.payload = 20

	res := NewHandler(nil).Handle(raw(f.bytes()))

	require.Equal(t, OutcomeReported, res.Outcome)
	assert.True(t, res.Report.Snapped)
	assert.False(t, res.Report.Truncated)
	assert.Equal(t, 1460, res.Report.PayloadSize)
	assert.Equal(t, 20, res.Report.CapturedPayload)
}

func TestHandleIgnoresEthernetPadding(t *testing.T) {
	f := tcpFrame()
	f.size = 60

	res := NewHandler(nil).Handle(raw(f.bytes()))

	require.Equal(t, OutcomeReported, res.Outcome)
	assert.Equal(t, 0, res.Report.PayloadSize)
	assert.Equal(t, 0, res.Report.CapturedPayload)
}

func TestHandleSkips(t *testing.T) {
	arp := tcpFrame()
	arp.etherType = core.EtherTypeARP

	udp := tcpFrame()
	udp.protocol = 17

	for name, f := range map[string]frame{"arp": arp, "udp": udp} {
		t.Run(name, func(t *testing.T) {
			res := NewHandler(nil).Handle(raw(f.bytes()))
			assert.Equal(t, OutcomeSkipped, res.Outcome)
			assert.Nil(t, res.Report)
			assert.NoError(t, res.Err)
		})
	}
}

func TestHandleMalformed(t *testing.T) {
	ihl15 := tcpFrame()
	ihl15.size = 50
	ihl15.ihl = 15

	shortTCP := tcpFrame()
	shortTCP.size = core.EthernetHdrLen + core.IPv4HdrMinLen + 10

	badOffset := tcpFrame()
	badOffset.dataOffset = 3

	v6 := tcpFrame()
	v6.version = 6

	tests := []struct {
		name   string
		data   []byte
		layer  string
		reason string
		cause  error
	}{
		{"runt", make([]byte, 10), decoder.LayerEthernet, "buffer_too_short", core.ErrBufferTooShort},
		{"ihl 15 in 50 bytes", ihl15.bytes(), decoder.LayerIPv4, "header_length_invalid", core.ErrHeaderLengthInvalid},
		{"version 6", v6.bytes(), decoder.LayerIPv4, "version_mismatch", core.ErrVersionMismatch},
		{"short tcp", shortTCP.bytes(), decoder.LayerTCP, "buffer_too_short", core.ErrBufferTooShort},
		{"tcp offset 3", badOffset.bytes(), decoder.LayerTCP, "header_length_invalid", core.ErrHeaderLengthInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := NewHandler(nil).Handle(raw(tt.data))

			require.Equal(t, OutcomeMalformed, res.Outcome)
			assert.Nil(t, res.Report)
			assert.Equal(t, tt.layer, res.Layer)
			assert.True(t, errors.Is(res.Err, core.ErrMalformedPacket))
			assert.True(t, errors.Is(res.Err, tt.cause))
			assert.Equal(t, tt.reason, Reason(res.Err))
		})
	}
}

func TestHandleIsRepeatable(t *testing.T) {
	h := NewHandler(nil)
	data := tcpFrame().bytes()
	orig := append([]byte(nil), data...)

	first := h.Handle(raw(data))
	second := h.Handle(raw(data))

	assert.Equal(t, first, second)
	assert.Equal(t, orig, data, "handler must not modify the buffer")
}

func TestOutcomeString(t *testing.T) {
	assert.Equal(t, "reported", OutcomeReported.String())
	assert.Equal(t, "skipped", OutcomeSkipped.String())
	assert.Equal(t, "malformed", OutcomeMalformed.String())
	assert.Equal(t, "outcome(9)", Outcome(9).String())
}
