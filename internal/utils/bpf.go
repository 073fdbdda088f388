// Package utils holds helpers shared by the capture sources.
package utils

import (
	"fmt"

	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcap"
	"golang.org/x/net/bpf"

	"firestige.xyz/tcpsniff/internal/core"
)

// CompileBpf compiles a tcpdump-style expression for Ethernet frames.
func CompileBpf(filter string, snapLen int) ([]bpf.RawInstruction, error) {
	pcapBpf, err := pcap.CompileBPFFilter(layers.LinkTypeEthernet, snapLen, filter)
	if err != nil {
		return nil, fmt.Errorf("%w %q: %w", core.ErrFilterInvalid, filter, err)
	}

	rawBpf := make([]bpf.RawInstruction, len(pcapBpf))
	for i, ins := range pcapBpf {
		rawBpf[i] = bpf.RawInstruction{Op: ins.Code, Jt: ins.Jt, Jf: ins.Jf, K: ins.K}
	}
	return rawBpf, nil
}

// Filter evaluates a compiled program in userspace, for sources that have
// no kernel to attach it to.
type Filter struct {
	vm *bpf.VM
}

// NewFilter compiles filter into a userspace BPF program.
func NewFilter(filter string, snapLen int) (*Filter, error) {
	raw, err := CompileBpf(filter, snapLen)
	if err != nil {
		return nil, err
	}
	insns, ok := bpf.Disassemble(raw)
	if !ok {
		return nil, fmt.Errorf("%w %q: program contains unknown instructions", core.ErrFilterInvalid, filter)
	}
	vm, err := bpf.NewVM(insns)
	if err != nil {
		return nil, fmt.Errorf("%w %q: %w", core.ErrFilterInvalid, filter, err)
	}
	return &Filter{vm: vm}, nil
}

// Match reports whether the program accepts data.
func (f *Filter) Match(data []byte) bool {
	n, err := f.vm.Run(data)
	return err == nil && n > 0
}
