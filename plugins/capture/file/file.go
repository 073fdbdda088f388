// Package file implements the offline capture plugin that replays pcap and
// pcapng files.
package file

import (
	"bufio"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"

	"firestige.xyz/tcpsniff/internal/core"
	"firestige.xyz/tcpsniff/internal/log"
	"firestige.xyz/tcpsniff/internal/utils"
	"firestige.xyz/tcpsniff/pkg/plugin"
)

const (
	pluginName = "file"

	defaultSnapLen = 65535

	// pcapng files start with a Section Header Block.
	pcapngMagic = 0x0A0D0D0A
)

// Config represents file-source configuration.
type Config struct {
	File    string `mapstructure:"file"`
	Filter  string `mapstructure:"filter"`
	SnapLen int    `mapstructure:"snap_len"`
}

// packetReader is satisfied by both pcapgo.Reader and pcapgo.NgReader.
type packetReader interface {
	ReadPacketData() ([]byte, gopacket.CaptureInfo, error)
	LinkType() layers.LinkType
}

// FileCapturer reads frames from a capture file. The filter, if any, runs in
// a userspace BPF VM since there is no kernel to attach it to.
type FileCapturer struct {
	config Config
	logger log.Logger

	f      *os.File
	reader packetReader
	filter *utils.Filter

	packetsReceived uint64
	packetsFiltered uint64
}

// NewFileCapturer creates a new file capturer instance.
func NewFileCapturer() plugin.Capturer {
	return &FileCapturer{}
}

func (c *FileCapturer) Name() string {
	return pluginName
}

func (c *FileCapturer) Init(cfg map[string]any) error {
	c.config = Config{SnapLen: defaultSnapLen}
	if err := plugin.DecodeConfig(cfg, &c.config); err != nil {
		return fmt.Errorf("file: %w", err)
	}
	if c.config.File == "" {
		return fmt.Errorf("file: %w: file is required", core.ErrConfigInvalid)
	}
	c.logger = log.GetLogger().WithFields(map[string]interface{}{
		"capturer": pluginName,
		"file":     c.config.File,
	})
	return nil
}

// Start opens the file and detects its format from the leading magic.
func (c *FileCapturer) Start(ctx context.Context) error {
	f, err := os.Open(c.config.File)
	if err != nil {
		return fmt.Errorf("%w %s: %w", core.ErrDeviceOpen, c.config.File, err)
	}

	reader, err := newReader(bufio.NewReader(f))
	if err != nil {
		f.Close()
		return fmt.Errorf("%w %s: %w", core.ErrDeviceOpen, c.config.File, err)
	}

	if lt := reader.LinkType(); lt != layers.LinkTypeEthernet {
		f.Close()
		return fmt.Errorf("%w: %s in %s", core.ErrUnsupportedLinkType, lt, c.config.File)
	}

	if c.config.Filter != "" {
		filter, err := utils.NewFilter(c.config.Filter, c.config.SnapLen)
		if err != nil {
			f.Close()
			return err
		}
		c.filter = filter
	}

	c.f = f
	c.reader = reader
	c.logger.WithField("filter", c.config.Filter).Info("replay started")
	return nil
}

func newReader(r *bufio.Reader) (packetReader, error) {
	magic, err := r.Peek(4)
	if err != nil {
		return nil, fmt.Errorf("read file header: %w", err)
	}
	if binary.BigEndian.Uint32(magic) == pcapngMagic {
		return pcapgo.NewNgReader(r, pcapgo.DefaultNgReaderOptions)
	}
	return pcapgo.NewReader(r)
}

func (c *FileCapturer) Stop(ctx context.Context) error {
	if c.f == nil {
		return nil
	}
	err := c.f.Close()
	c.f = nil
	c.reader = nil
	c.logger.WithFields(map[string]interface{}{
		"received": c.packetsReceived,
		"filtered": c.packetsFiltered,
	}).Info("replay finished")
	return err
}

// ReadPacket returns the next frame accepted by the filter, or io.EOF at the
// end of the file.
func (c *FileCapturer) ReadPacket() (core.RawPacket, error) {
	if c.reader == nil {
		return core.RawPacket{}, core.ErrCaptureNotOpen
	}

	for {
		data, ci, err := c.reader.ReadPacketData()
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return core.RawPacket{}, io.EOF
		}
		if err != nil {
			return core.RawPacket{}, fmt.Errorf("file read: %w", err)
		}
		c.packetsReceived++

		if c.filter != nil && !c.filter.Match(data) {
			c.packetsFiltered++
			continue
		}

		return core.RawPacket{
			Data:       data,
			Timestamp:  ci.Timestamp,
			CaptureLen: uint32(ci.CaptureLength),
			OrigLen:    uint32(ci.Length),
		}, nil
	}
}

func (c *FileCapturer) Stats() plugin.CaptureStats {
	return plugin.CaptureStats{PacketsReceived: c.packetsReceived}
}
