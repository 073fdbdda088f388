package hep

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"net"
	"net/netip"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firestige.xyz/tcpsniff/internal/core"
)

type parsedFrame struct {
	magic  string
	length uint16
	chunks map[uint16][]byte
}

func parseFrame(t *testing.T, data []byte) parsedFrame {
	t.Helper()
	require.GreaterOrEqual(t, len(data), 6, "frame too short")

	pf := parsedFrame{
		magic:  string(data[0:4]),
		length: binary.BigEndian.Uint16(data[4:6]),
		chunks: make(map[uint16][]byte),
	}
	off := 6
	for off < len(data) {
		require.LessOrEqual(t, off+6, len(data), "truncated chunk header at %d", off)
		cType := binary.BigEndian.Uint16(data[off+2 : off+4])
		cLen := int(binary.BigEndian.Uint16(data[off+4 : off+6]))
		require.True(t, cLen >= 6 && off+cLen <= len(data), "invalid chunk length %d at %d", cLen, off)
		pf.chunks[cType] = data[off+6 : off+cLen]
		off += cLen
	}
	return pf
}

func makeReport() *core.PacketReport {
	return &core.PacketReport{
		Timestamp:       time.Date(2024, 6, 1, 12, 0, 0, 500_000_000, time.UTC),
		SrcMAC:          net.HardwareAddr{0x00, 0x11, 0x22, 0x33, 0x44, 0x55},
		DstMAC:          net.HardwareAddr{0x66, 0x77, 0x88, 0x99, 0xaa, 0xbb},
		SrcIP:           netip.MustParseAddr("192.168.1.10"),
		DstIP:           netip.MustParseAddr("10.0.0.1"),
		SrcPort:         43512,
		DstPort:         443,
		PayloadSize:     20,
		CapturedPayload: 20,
		TCPFlags:        core.TCPFlagACK | core.TCPFlagPSH,
	}
}

func TestEncodeHeader(t *testing.T) {
	frame, err := Encode(makeReport(), EncodeOptions{CaptureID: 42})
	require.NoError(t, err)

	pf := parseFrame(t, frame)
	assert.Equal(t, hepMagic, pf.magic)
	assert.Equal(t, len(frame), int(pf.length))
	assert.Equal(t, []byte{ipFamilyV4}, pf.chunks[chunkIPFamily])
	assert.Equal(t, []byte{core.IPProtocolTCP}, pf.chunks[chunkIPProto])
	assert.Equal(t, []byte{protoTypeJSON}, pf.chunks[chunkProtoType])
	assert.Equal(t, uint32(42), binary.BigEndian.Uint32(pf.chunks[chunkCaptureID]))
}

func TestEncodeAddressing(t *testing.T) {
	rep := makeReport()
	frame, err := Encode(rep, EncodeOptions{})
	require.NoError(t, err)
	pf := parseFrame(t, frame)

	src := rep.SrcIP.As4()
	dst := rep.DstIP.As4()
	assert.Equal(t, src[:], pf.chunks[chunkSrcIPv4])
	assert.Equal(t, dst[:], pf.chunks[chunkDstIPv4])
	assert.Equal(t, uint16(43512), binary.BigEndian.Uint16(pf.chunks[chunkSrcPort]))
	assert.Equal(t, uint16(443), binary.BigEndian.Uint16(pf.chunks[chunkDstPort]))
	assert.Equal(t, "192.168.1.10:43512-10.0.0.1:443", string(pf.chunks[chunkCorrID]))
}

func TestEncodeTimestamp(t *testing.T) {
	rep := makeReport()
	frame, err := Encode(rep, EncodeOptions{})
	require.NoError(t, err)
	pf := parseFrame(t, frame)

	assert.Equal(t, uint32(rep.Timestamp.Unix()), binary.BigEndian.Uint32(pf.chunks[chunkTimeSec]))
	assert.Equal(t, uint32(500_000), binary.BigEndian.Uint32(pf.chunks[chunkTimeUsec]))
}

func TestEncodePayloadIsRecord(t *testing.T) {
	rep := makeReport()
	rep.PayloadSize = 0
	rep.Truncated = true

	frame, err := Encode(rep, EncodeOptions{})
	require.NoError(t, err)
	pf := parseFrame(t, frame)

	var rec core.Record
	require.NoError(t, json.Unmarshal(pf.chunks[chunkPayload], &rec))
	assert.Equal(t, "00:11:22:33:44:55", rec.SrcMAC)
	assert.Equal(t, "66:77:88:99:aa:bb", rec.DstMAC)
	assert.True(t, rec.Truncated)
	assert.Zero(t, rec.PayloadSize)
}

func TestEncodeOptionalChunks(t *testing.T) {
	frame, err := Encode(makeReport(), EncodeOptions{})
	require.NoError(t, err)
	pf := parseFrame(t, frame)
	assert.NotContains(t, pf.chunks, chunkAuthKey)
	assert.NotContains(t, pf.chunks, chunkNodeName)

	frame, err = Encode(makeReport(), EncodeOptions{AuthKey: "secret", NodeName: "edge-01"})
	require.NoError(t, err)
	pf = parseFrame(t, frame)
	assert.Equal(t, "secret", string(pf.chunks[chunkAuthKey]))
	assert.Equal(t, "edge-01", string(pf.chunks[chunkNodeName]))
}

func TestEncodeRejects(t *testing.T) {
	_, err := Encode(nil, EncodeOptions{})
	assert.Error(t, err)

	rep := makeReport()
	rep.SrcIP = netip.Addr{}
	_, err = Encode(rep, EncodeOptions{})
	assert.ErrorIs(t, err, core.ErrUnsupportedProtocol)
}

func TestInit(t *testing.T) {
	tests := []struct {
		name    string
		config  map[string]any
		wantErr bool
	}{
		{"nil config", nil, true},
		{"no servers", map[string]any{}, true},
		{"empty servers", map[string]any{"servers": []any{}}, true},
		{"duplicate servers", map[string]any{"servers": []any{"127.0.0.1:9060", "127.0.0.1:9060"}}, true},
		{"valid", map[string]any{
			"servers":    []any{"127.0.0.1:9060", "127.0.0.2:9060"},
			"capture_id": float64(1001),
			"auth_key":   "tok",
			"node_name":  "edge-01",
		}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewHEPReporter().(*HEPReporter)
			err := r.Init(tt.config)
			if tt.wantErr {
				assert.ErrorIs(t, err, core.ErrConfigInvalid)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, uint32(1001), r.opts.CaptureID)
			assert.Equal(t, "tok", r.opts.AuthKey)
			assert.Equal(t, "edge-01", r.opts.NodeName)
		})
	}
}

func TestSelectConnStable(t *testing.T) {
	servers := []string{"10.0.0.1:9060", "10.0.0.2:9060", "10.0.0.3:9060", "10.0.0.4:9060"}
	r := NewHEPReporter().(*HEPReporter)
	require.NoError(t, r.Init(map[string]any{"servers": servers}))

	r.conns = make(map[string]*net.UDPConn, len(servers))
	for _, srv := range servers {
		r.conns[srv] = &net.UDPConn{}
	}

	rep := makeReport()
	first := r.selectConn(rep)
	require.NotNil(t, first)
	for range 20 {
		assert.Same(t, first, r.selectConn(rep))
	}

	seen := make(map[*net.UDPConn]bool)
	for port := uint16(1024); port < 1224; port++ {
		rep := makeReport()
		rep.SrcPort = port
		seen[r.selectConn(rep)] = true
	}
	assert.Len(t, seen, len(servers))
}

func TestReportNotStarted(t *testing.T) {
	r := NewHEPReporter()
	require.NoError(t, r.Init(map[string]any{"servers": []any{"127.0.0.1:9060"}}))
	assert.Error(t, r.Report(context.Background(), makeReport()))
}

func TestReportSendsFrame(t *testing.T) {
	ln, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	defer ln.Close()

	r := NewHEPReporter()
	require.NoError(t, r.Init(map[string]any{
		"servers":    []any{ln.LocalAddr().String()},
		"capture_id": 7777,
	}))
	ctx := context.Background()
	require.NoError(t, r.Start(ctx))
	defer r.Stop(ctx)

	require.NoError(t, r.Report(ctx, makeReport()))

	buf := make([]byte, 4096)
	require.NoError(t, ln.SetReadDeadline(time.Now().Add(2*time.Second)))
	n, _, err := ln.ReadFromUDP(buf)
	require.NoError(t, err)

	pf := parseFrame(t, buf[:n])
	assert.Equal(t, uint16(n), pf.length)
	assert.Equal(t, uint32(7777), binary.BigEndian.Uint32(pf.chunks[chunkCaptureID]))
	assert.Equal(t, "192.168.1.10:43512-10.0.0.1:443", string(pf.chunks[chunkCorrID]))
}
