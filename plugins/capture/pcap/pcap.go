// Package pcap implements the libpcap live capture plugin.
package pcap

import (
	"context"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcap"

	"firestige.xyz/tcpsniff/internal/core"
	"firestige.xyz/tcpsniff/internal/log"
	"firestige.xyz/tcpsniff/pkg/plugin"
)

const (
	pluginName = "pcap"

	defaultSnapLen = 8192
	defaultTimeout = time.Second
	defaultFilter  = "tcp"
)

// Config represents pcap-specific configuration.
type Config struct {
	Interface    string        `mapstructure:"interface"`
	SnapLen      int           `mapstructure:"snap_len"`
	Promiscuous  bool          `mapstructure:"promiscuous"`
	Timeout      time.Duration `mapstructure:"timeout"`
	Filter       string        `mapstructure:"filter"`
	BufferSizeMB int           `mapstructure:"buffer_size_mb"` // 0 keeps the libpcap default
}

// PcapCapturer reads Ethernet frames from a live interface through libpcap.
type PcapCapturer struct {
	config Config
	logger log.Logger
	handle *pcap.Handle

	packetsReceived atomic.Uint64
	lastStats       atomic.Pointer[pcap.Stats]
}

// NewPcapCapturer creates a new pcap capturer instance.
func NewPcapCapturer() plugin.Capturer {
	return &PcapCapturer{}
}

func (c *PcapCapturer) Name() string {
	return pluginName
}

func (c *PcapCapturer) Init(cfg map[string]any) error {
	c.config = Config{
		SnapLen:     defaultSnapLen,
		Promiscuous: true,
		Timeout:     defaultTimeout,
		Filter:      defaultFilter,
	}
	if err := plugin.DecodeConfig(cfg, &c.config); err != nil {
		return fmt.Errorf("pcap: %w", err)
	}
	if c.config.Interface == "" {
		return fmt.Errorf("pcap: %w: interface is required", core.ErrConfigInvalid)
	}

	c.logger = log.GetLogger().WithFields(map[string]interface{}{
		"capturer":  pluginName,
		"interface": c.config.Interface,
	})
	return nil
}

// Start opens the device and installs the filter. Failures wrap
// core.ErrDeviceOpen or core.ErrFilterInvalid.
func (c *PcapCapturer) Start(ctx context.Context) error {
	inactive, err := pcap.NewInactiveHandle(c.config.Interface)
	if err != nil {
		return fmt.Errorf("%w %s: %w", core.ErrDeviceOpen, c.config.Interface, err)
	}
	defer inactive.CleanUp()

	if err := c.configure(inactive); err != nil {
		return fmt.Errorf("%w %s: %w", core.ErrDeviceOpen, c.config.Interface, err)
	}

	handle, err := inactive.Activate()
	if err != nil {
		return fmt.Errorf("%w %s: %w", core.ErrDeviceOpen, c.config.Interface, err)
	}

	if lt := handle.LinkType(); lt != layers.LinkTypeEthernet {
		handle.Close()
		return fmt.Errorf("%w: %s on %s", core.ErrUnsupportedLinkType, lt, c.config.Interface)
	}

	if c.config.Filter != "" {
		if err := handle.SetBPFFilter(c.config.Filter); err != nil {
			handle.Close()
			return fmt.Errorf("%w %q: %w", core.ErrFilterInvalid, c.config.Filter, err)
		}
	}

	c.handle = handle
	c.logger.WithFields(map[string]interface{}{
		"snap_len":    c.config.SnapLen,
		"promiscuous": c.config.Promiscuous,
		"filter":      c.config.Filter,
	}).Info("pcap capture started")
	return nil
}

func (c *PcapCapturer) configure(h *pcap.InactiveHandle) error {
	if err := h.SetSnapLen(c.config.SnapLen); err != nil {
		return fmt.Errorf("set snaplen: %w", err)
	}
	if err := h.SetPromisc(c.config.Promiscuous); err != nil {
		return fmt.Errorf("set promiscuous: %w", err)
	}
	if err := h.SetTimeout(c.config.Timeout); err != nil {
		return fmt.Errorf("set timeout: %w", err)
	}
	if c.config.BufferSizeMB > 0 {
		if err := h.SetBufferSize(c.config.BufferSizeMB * 1024 * 1024); err != nil {
			return fmt.Errorf("set buffer size: %w", err)
		}
	}
	return nil
}

func (c *PcapCapturer) Stop(ctx context.Context) error {
	if c.handle == nil {
		return nil
	}
	c.refreshStats()
	c.handle.Close()
	c.handle = nil
	c.logger.Info("pcap capture stopped")
	return nil
}

// ReadPacket returns core.ErrReadTimeout when the read timeout expires
// without traffic. Data is valid until the next call.
func (c *PcapCapturer) ReadPacket() (core.RawPacket, error) {
	if c.handle == nil {
		return core.RawPacket{}, core.ErrCaptureNotOpen
	}

	data, ci, err := c.handle.ZeroCopyReadPacketData()
	switch err {
	case nil:
	case pcap.NextErrorTimeoutExpired:
		return core.RawPacket{}, core.ErrReadTimeout
	case pcap.NextErrorNoMorePackets, io.EOF:
		return core.RawPacket{}, io.EOF
	default:
		return core.RawPacket{}, fmt.Errorf("pcap read: %w", err)
	}

	if c.packetsReceived.Add(1)%1024 == 0 {
		c.refreshStats()
	}

	return core.RawPacket{
		Data:       data,
		Timestamp:  ci.Timestamp,
		CaptureLen: uint32(ci.CaptureLength),
		OrigLen:    uint32(ci.Length),
	}, nil
}

func (c *PcapCapturer) refreshStats() {
	if s, err := c.handle.Stats(); err == nil {
		c.lastStats.Store(s)
	}
}

func (c *PcapCapturer) Stats() plugin.CaptureStats {
	stats := plugin.CaptureStats{PacketsReceived: c.packetsReceived.Load()}
	if s := c.lastStats.Load(); s != nil {
		stats.PacketsDropped = uint64(s.PacketsDropped)
		stats.PacketsIfDropped = uint64(s.PacketsIfDropped)
	}
	return stats
}
