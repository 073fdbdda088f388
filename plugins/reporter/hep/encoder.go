package hep

// HEPv3 frame layout:
//
//	0  4  magic "HEP3"
//	4  2  total frame length, big-endian, header included
//	6  …  chunks
//
// Chunk layout:
//
//	0  2  vendor ID (0x0000 = HOMER)
//	2  2  chunk type
//	4  2  chunk length, header included
//	6  …  value

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"time"

	"firestige.xyz/tcpsniff/internal/core"
)

const (
	hepMagic       = "HEP3"
	chunkHeaderLen = 6
	vendorHOMER    = uint16(0x0000)
	maxFrameLen    = 0xFFFF
)

// Chunk types written by the encoder.
const (
	chunkIPFamily  = uint16(1)
	chunkIPProto   = uint16(2)
	chunkSrcIPv4   = uint16(3)
	chunkDstIPv4   = uint16(4)
	chunkSrcPort   = uint16(7)
	chunkDstPort   = uint16(8)
	chunkTimeSec   = uint16(9)
	chunkTimeUsec  = uint16(10)
	chunkProtoType = uint16(11)
	chunkCaptureID = uint16(12)
	chunkAuthKey   = uint16(14)
	chunkPayload   = uint16(15)
	chunkCorrID    = uint16(17)
	chunkNodeName  = uint16(19)
)

const (
	ipFamilyV4    = uint8(2)
	protoTypeJSON = uint8(100)
)

// EncodeOptions carries the per-agent chunks taken from reporter config.
type EncodeOptions struct {
	CaptureID uint32 // chunk 12
	AuthKey   string // chunk 14, omitted when empty
	NodeName  string // chunk 19, omitted when empty
}

// Encode serialises rep into a HEPv3 frame. The payload chunk carries the
// JSON record of the report and the correlation chunk its flow key.
func Encode(rep *core.PacketReport, opts EncodeOptions) ([]byte, error) {
	if rep == nil {
		return nil, fmt.Errorf("hep: nil report")
	}
	if !rep.SrcIP.Is4() || !rep.DstIP.Is4() {
		return nil, fmt.Errorf("hep: %w: addresses must be IPv4", core.ErrUnsupportedProtocol)
	}

	payload, err := json.Marshal(rep.Record())
	if err != nil {
		return nil, fmt.Errorf("hep: marshal record: %w", err)
	}

	buf := make([]byte, 0, 160+len(payload))
	buf = append(buf, hepMagic...)
	buf = append(buf, 0, 0) // length, filled below

	buf = appendUint8(buf, chunkIPFamily, ipFamilyV4)
	buf = appendUint8(buf, chunkIPProto, core.IPProtocolTCP)

	src4 := rep.SrcIP.As4()
	dst4 := rep.DstIP.As4()
	buf = appendBytes(buf, chunkSrcIPv4, src4[:])
	buf = appendBytes(buf, chunkDstIPv4, dst4[:])
	buf = appendUint16(buf, chunkSrcPort, rep.SrcPort)
	buf = appendUint16(buf, chunkDstPort, rep.DstPort)

	ts := rep.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	buf = appendUint32(buf, chunkTimeSec, uint32(ts.Unix()))
	buf = appendUint32(buf, chunkTimeUsec, uint32(ts.Nanosecond()/1_000))

	buf = appendUint8(buf, chunkProtoType, protoTypeJSON)
	buf = appendUint32(buf, chunkCaptureID, opts.CaptureID)
	if opts.AuthKey != "" {
		buf = appendBytes(buf, chunkAuthKey, []byte(opts.AuthKey))
	}
	buf = appendBytes(buf, chunkPayload, payload)
	buf = appendBytes(buf, chunkCorrID, []byte(rep.FlowKey()))
	if opts.NodeName != "" {
		buf = appendBytes(buf, chunkNodeName, []byte(opts.NodeName))
	}

	if len(buf) > maxFrameLen {
		return nil, fmt.Errorf("hep: frame too large (%d bytes, max %d)", len(buf), maxFrameLen)
	}
	binary.BigEndian.PutUint16(buf[4:6], uint16(len(buf)))
	return buf, nil
}

func appendChunkHeader(buf []byte, chunkType uint16, valueLen int) []byte {
	var h [chunkHeaderLen]byte
	binary.BigEndian.PutUint16(h[0:2], vendorHOMER)
	binary.BigEndian.PutUint16(h[2:4], chunkType)
	binary.BigEndian.PutUint16(h[4:6], uint16(chunkHeaderLen+valueLen))
	return append(buf, h[:]...)
}

func appendBytes(buf []byte, chunkType uint16, value []byte) []byte {
	buf = appendChunkHeader(buf, chunkType, len(value))
	return append(buf, value...)
}

func appendUint8(buf []byte, chunkType uint16, value uint8) []byte {
	buf = appendChunkHeader(buf, chunkType, 1)
	return append(buf, value)
}

func appendUint16(buf []byte, chunkType uint16, value uint16) []byte {
	buf = appendChunkHeader(buf, chunkType, 2)
	return binary.BigEndian.AppendUint16(buf, value)
}

func appendUint32(buf []byte, chunkType uint16, value uint32) []byte {
	buf = appendChunkHeader(buf, chunkType, 4)
	return binary.BigEndian.AppendUint32(buf, value)
}
