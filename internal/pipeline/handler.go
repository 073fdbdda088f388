package pipeline

import (
	"errors"
	"fmt"
	"net"

	"firestige.xyz/tcpsniff/internal/core"
	"firestige.xyz/tcpsniff/internal/core/decoder"
)

// Outcome is the single result a handled packet ends in.
type Outcome int

const (
	OutcomeReported Outcome = iota
	OutcomeSkipped
	OutcomeMalformed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeReported:
		return "reported"
	case OutcomeSkipped:
		return "skipped"
	case OutcomeMalformed:
		return "malformed"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Result describes how one packet was handled. Report is set only for
// OutcomeReported; Layer and Err only for OutcomeMalformed.
type Result struct {
	Outcome Outcome
	Report  *core.PacketReport
	Layer   string
	Err     error
}

// Handler turns raw buffers into reports. It keeps no per-packet state.
type Handler struct {
	decoder decoder.Decoder
}

// NewHandler creates a handler. A nil decoder selects the standard chain.
func NewHandler(d decoder.Decoder) *Handler {
	if d == nil {
		d = decoder.NewStandardDecoder()
	}
	return &Handler{decoder: d}
}

// Handle dissects raw and classifies the outcome. Protocol mismatches are
// skipped silently; length violations come back as malformed with Err
// wrapping core.ErrMalformedPacket and the layer's cause.
func (h *Handler) Handle(raw core.RawPacket) Result {
	pkt, err := h.decoder.Decode(raw)
	if err != nil {
		if decoder.IsUnsupported(err) {
			return Result{Outcome: OutcomeSkipped}
		}
		layer := "unknown"
		var le *decoder.LayerError
		if errors.As(err, &le) {
			layer = le.Layer
		}
		return Result{
			Outcome: OutcomeMalformed,
			Layer:   layer,
			Err:     fmt.Errorf("%w: %w", core.ErrMalformedPacket, err),
		}
	}

	return Result{Outcome: OutcomeReported, Report: buildReport(raw, &pkt)}
}

func buildReport(raw core.RawPacket, pkt *core.DecodedPacket) *core.PacketReport {
	r := &core.PacketReport{
		Timestamp:       raw.Timestamp,
		SrcMAC:          net.HardwareAddr(pkt.Ethernet.SrcMAC[:]),
		DstMAC:          net.HardwareAddr(pkt.Ethernet.DstMAC[:]),
		SrcIP:           pkt.IP.SrcIP,
		DstIP:           pkt.IP.DstIP,
		SrcPort:         pkt.TCP.SrcPort,
		DstPort:         pkt.TCP.DstPort,
		Snapped:         int(pkt.IP.TotalLen) > pkt.Available,
		CapturedPayload: len(pkt.Payload),
		TCPFlags:        pkt.TCP.Flags,
	}

	size := int(pkt.IP.TotalLen) - (pkt.IP.HeaderLen() + pkt.TCP.HeaderLen())
	if size < 0 {
		r.Truncated = true
	} else {
		r.PayloadSize = size
	}
	return r
}

// Reason maps a malformed-packet error to a short metric label.
func Reason(err error) string {
	switch {
	case errors.Is(err, core.ErrBufferTooShort):
		return "buffer_too_short"
	case errors.Is(err, core.ErrHeaderLengthInvalid):
		return "header_length_invalid"
	case errors.Is(err, core.ErrVersionMismatch):
		return "version_mismatch"
	default:
		return "other"
	}
}
