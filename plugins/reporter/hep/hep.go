// Package hep implements a HEPv3 UDP reporter plugin.
//
// Every report is encoded as one HEPv3 frame and sent to one of the
// configured collectors (Homer, heplify-server). The collector is picked on a
// consistent hash ring keyed by flow, so all segments of a connection reach
// the same server and adding a collector moves only a share of the flows.
//
//	reporters:
//	  - name: hep
//	    config:
//	      servers: ["10.0.0.1:9060", "10.0.0.2:9060"]
//	      capture_id: 2001
//	      auth_key: mysecret
package hep

import (
	"context"
	"fmt"
	"net"
	"sync/atomic"

	"github.com/serialx/hashring"

	"firestige.xyz/tcpsniff/internal/core"
	"firestige.xyz/tcpsniff/internal/log"
	"firestige.xyz/tcpsniff/pkg/plugin"
)

const pluginName = "hep"

// HEPReporter sends reports as HEPv3 frames over UDP.
type HEPReporter struct {
	config Config
	opts   EncodeOptions
	ring   *hashring.HashRing
	conns  map[string]*net.UDPConn // by server address
	logger log.Logger

	sentCount  atomic.Uint64
	errorCount atomic.Uint64
}

// Config holds HEP reporter configuration.
type Config struct {
	Servers   []string `mapstructure:"servers"`    // required, host:port
	CaptureID uint32   `mapstructure:"capture_id"` // chunk 12
	AuthKey   string   `mapstructure:"auth_key"`   // chunk 14, optional
	NodeName  string   `mapstructure:"node_name"`  // chunk 19, optional
}

// NewHEPReporter creates a new HEP reporter instance.
func NewHEPReporter() plugin.Reporter {
	return &HEPReporter{}
}

// Name returns the plugin name.
func (r *HEPReporter) Name() string { return pluginName }

// Init validates and applies configuration.
func (r *HEPReporter) Init(config map[string]any) error {
	var cfg Config
	if err := plugin.DecodeConfig(config, &cfg); err != nil {
		return fmt.Errorf("hep: %w", err)
	}
	if len(cfg.Servers) == 0 {
		return fmt.Errorf("hep: %w: at least one server is required", core.ErrConfigInvalid)
	}
	seen := make(map[string]bool, len(cfg.Servers))
	for _, srv := range cfg.Servers {
		if seen[srv] {
			return fmt.Errorf("hep: %w: duplicate server %q", core.ErrConfigInvalid, srv)
		}
		seen[srv] = true
	}

	r.config = cfg
	r.opts = EncodeOptions{
		CaptureID: cfg.CaptureID,
		AuthKey:   cfg.AuthKey,
		NodeName:  cfg.NodeName,
	}
	r.ring = hashring.New(cfg.Servers)
	r.logger = log.GetLogger().WithField("reporter", pluginName)
	return nil
}

// Start dials every configured server.
func (r *HEPReporter) Start(_ context.Context) error {
	r.conns = make(map[string]*net.UDPConn, len(r.config.Servers))
	for _, srv := range r.config.Servers {
		addr, err := net.ResolveUDPAddr("udp", srv)
		if err != nil {
			r.closeConns()
			return fmt.Errorf("hep: resolve %q: %w", srv, err)
		}
		conn, err := net.DialUDP("udp", nil, addr)
		if err != nil {
			r.closeConns()
			return fmt.Errorf("hep: dial %q: %w", srv, err)
		}
		r.conns[srv] = conn
	}

	r.logger.WithFields(map[string]interface{}{
		"servers":    r.config.Servers,
		"capture_id": r.config.CaptureID,
	}).Info("hep reporter started")
	return nil
}

// Stop closes all connections.
func (r *HEPReporter) Stop(_ context.Context) error {
	r.closeConns()
	r.logger.WithFields(map[string]interface{}{
		"sent":   r.sentCount.Load(),
		"errors": r.errorCount.Load(),
	}).Info("hep reporter stopped")
	return nil
}

func (r *HEPReporter) closeConns() {
	for _, c := range r.conns {
		_ = c.Close()
	}
	r.conns = nil
}

// Report encodes rep and sends it to the collector owning its flow.
func (r *HEPReporter) Report(_ context.Context, rep *core.PacketReport) error {
	if rep == nil {
		return fmt.Errorf("hep: nil report")
	}
	if len(r.conns) == 0 {
		return fmt.Errorf("hep: reporter not started")
	}

	frame, err := Encode(rep, r.opts)
	if err != nil {
		r.errorCount.Add(1)
		return err
	}

	conn := r.selectConn(rep)
	if _, err := conn.Write(frame); err != nil {
		r.errorCount.Add(1)
		return fmt.Errorf("hep: send to %s: %w", conn.RemoteAddr(), err)
	}
	r.sentCount.Add(1)
	return nil
}

// Flush is a no-op, frames are sent immediately.
func (r *HEPReporter) Flush(_ context.Context) error { return nil }

// selectConn returns the connection of the server owning rep's flow.
func (r *HEPReporter) selectConn(rep *core.PacketReport) *net.UDPConn {
	server, ok := r.ring.GetNode(rep.FlowKey())
	if !ok {
		server = r.config.Servers[0]
	}
	return r.conns[server]
}
