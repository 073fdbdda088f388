// Package afpacket implements the AF_PACKET (TPACKET_V3) capture plugin.
package afpacket

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync/atomic"
	"time"

	"github.com/google/gopacket/afpacket"

	"firestige.xyz/tcpsniff/internal/core"
	"firestige.xyz/tcpsniff/internal/log"
	"firestige.xyz/tcpsniff/internal/utils"
	"firestige.xyz/tcpsniff/pkg/plugin"
)

const (
	pluginName = "afpacket"

	// Default configuration values
	defaultSnapLen      = 8192
	defaultBufferSizeMB = 8
	defaultTimeout      = time.Second
)

// Config represents afpacket-specific configuration.
type Config struct {
	Interface    string        `mapstructure:"interface"`      // required
	Filter       string        `mapstructure:"filter"`         // optional
	SnapLen      int           `mapstructure:"snap_len"`       // optional, default 8192
	BufferSizeMB int           `mapstructure:"buffer_size_mb"` // optional, default 8
	Timeout      time.Duration `mapstructure:"timeout"`        // optional, default 1s
	FanoutID     uint16        `mapstructure:"fanout_id"`      // optional, 0 = no fanout
}

// AFPacketCapturer implements the Capturer interface using AF_PACKET_V3.
// Promiscuous mode is not configurable here; the ring sees what the
// interface delivers.
type AFPacketCapturer struct {
	config Config
	logger log.Logger

	handle *afpacket.TPacket

	// Statistics (atomic counters)
	packetsReceived atomic.Uint64
	packetsDropped  atomic.Uint64
}

// NewAFPacketCapturer creates a new AF_PACKET capturer instance.
func NewAFPacketCapturer() plugin.Capturer {
	return &AFPacketCapturer{}
}

// Name returns the plugin name.
func (c *AFPacketCapturer) Name() string {
	return pluginName
}

// Init initializes the capturer with configuration.
func (c *AFPacketCapturer) Init(cfg map[string]any) error {
	c.config = Config{
		SnapLen:      defaultSnapLen,
		BufferSizeMB: defaultBufferSizeMB,
		Timeout:      defaultTimeout,
	}
	if err := plugin.DecodeConfig(cfg, &c.config); err != nil {
		return fmt.Errorf("afpacket: %w", err)
	}
	if c.config.Interface == "" {
		return fmt.Errorf("afpacket: %w: interface is required", core.ErrConfigInvalid)
	}

	c.logger = log.GetLogger().WithFields(map[string]interface{}{
		"capturer":  pluginName,
		"interface": c.config.Interface,
	})
	c.logger.WithFields(map[string]interface{}{
		"filter":         c.config.Filter,
		"snap_len":       c.config.SnapLen,
		"buffer_size_mb": c.config.BufferSizeMB,
	}).Debug("afpacket initialized")
	return nil
}

// Start opens the TPACKET_V3 ring and installs the filter.
func (c *AFPacketCapturer) Start(ctx context.Context) error {
	frameSize, blockSize, numBlocks, err := recomputeSize(c.config.BufferSizeMB, c.config.SnapLen, os.Getpagesize())
	if err != nil {
		return fmt.Errorf("afpacket: %w: %w", core.ErrConfigInvalid, err)
	}

	handle, err := afpacket.NewTPacket(
		afpacket.OptInterface(c.config.Interface),
		afpacket.OptFrameSize(frameSize),
		afpacket.OptBlockSize(blockSize),
		afpacket.OptNumBlocks(numBlocks),
		afpacket.OptPollTimeout(c.config.Timeout),
		afpacket.SocketRaw,
		afpacket.TPacketVersion3,
	)
	if err != nil {
		return fmt.Errorf("%w %s: %w", core.ErrDeviceOpen, c.config.Interface, err)
	}

	if c.config.FanoutID > 0 {
		if err := handle.SetFanout(afpacket.FanoutHashWithDefrag, c.config.FanoutID); err != nil {
			handle.Close()
			return fmt.Errorf("afpacket: set fanout: %w", err)
		}
	}

	if c.config.Filter != "" {
		insns, err := utils.CompileBpf(c.config.Filter, c.config.SnapLen)
		if err != nil {
			handle.Close()
			return err
		}
		if err := handle.SetBPF(insns); err != nil {
			handle.Close()
			return fmt.Errorf("%w %q: %w", core.ErrFilterInvalid, c.config.Filter, err)
		}
	}

	if err := handle.InitSocketStats(); err != nil {
		c.logger.WithError(err).Warn("failed to init socket stats")
	}

	c.handle = handle
	c.logger.WithFields(map[string]interface{}{
		"frame_size": frameSize,
		"block_size": blockSize,
		"num_blocks": numBlocks,
	}).Info("afpacket capture started")
	return nil
}

// Stop closes the ring. The pipeline only calls it after its read loop has
// returned, so no ZeroCopyReadPacketData call can be in flight.
func (c *AFPacketCapturer) Stop(ctx context.Context) error {
	if c.handle == nil {
		return nil
	}
	c.refreshDrops()
	c.handle.Close()
	c.handle = nil
	c.logger.Info("afpacket capture stopped")
	return nil
}

// ReadPacket blocks for at most the poll timeout. The returned Data aliases
// the ring and is valid until the next call.
func (c *AFPacketCapturer) ReadPacket() (core.RawPacket, error) {
	if c.handle == nil {
		return core.RawPacket{}, core.ErrCaptureNotOpen
	}

	data, ci, err := c.handle.ZeroCopyReadPacketData()
	if err != nil {
		if errors.Is(err, afpacket.ErrTimeout) || errors.Is(err, afpacket.ErrPoll) {
			return core.RawPacket{}, core.ErrReadTimeout
		}
		return core.RawPacket{}, fmt.Errorf("afpacket read: %w", err)
	}

	if c.packetsReceived.Add(1)%1024 == 0 {
		c.refreshDrops()
	}

	return core.RawPacket{
		Data:       data,
		Timestamp:  ci.Timestamp,
		CaptureLen: uint32(ci.CaptureLength),
		OrigLen:    uint32(ci.Length),
	}, nil
}

func (c *AFPacketCapturer) refreshDrops() {
	if _, v3, err := c.handle.SocketStats(); err == nil {
		c.packetsDropped.Store(uint64(v3.Drops()))
	}
}

// Stats returns capture statistics.
func (c *AFPacketCapturer) Stats() plugin.CaptureStats {
	return plugin.CaptureStats{
		PacketsReceived: c.packetsReceived.Load(),
		PacketsDropped:  c.packetsDropped.Load(),
	}
}
