// Package plugins registers all built-in plugins.
package plugins

import (
	"firestige.xyz/tcpsniff/pkg/plugin"
	"firestige.xyz/tcpsniff/plugins/capture/afpacket"
	"firestige.xyz/tcpsniff/plugins/capture/file"
	"firestige.xyz/tcpsniff/plugins/capture/pcap"
	"firestige.xyz/tcpsniff/plugins/reporter/console"
	"firestige.xyz/tcpsniff/plugins/reporter/hep"
	"firestige.xyz/tcpsniff/plugins/reporter/kafka"
)

func init() {
	// Register capture plugins
	plugin.RegisterCapturer("pcap", pcap.NewPcapCapturer)
	plugin.RegisterCapturer("afpacket", afpacket.NewAFPacketCapturer)
	plugin.RegisterCapturer("file", file.NewFileCapturer)

	// Register reporter plugins
	plugin.RegisterReporter("console", console.NewConsoleReporter)
	plugin.RegisterReporter("kafka", kafka.NewKafkaReporter)
	plugin.RegisterReporter("hep", hep.NewHEPReporter)
}
