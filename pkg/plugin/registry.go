// Package plugin implements the plugin factory registry.
package plugin

import (
	"fmt"
	"sort"
	"sync"

	"firestige.xyz/tcpsniff/internal/core"
)

// registry maps plugin names to factories for one plugin kind.
type registry[T Plugin] struct {
	mu        sync.RWMutex
	kind      string
	factories map[string]func() T
}

func newRegistry[T Plugin](kind string) *registry[T] {
	return &registry[T]{kind: kind, factories: make(map[string]func() T)}
}

func (r *registry[T]) register(name string, factory func() T) {
	if name == "" {
		panic(fmt.Sprintf("plugin: %s registered with empty name", r.kind))
	}
	if factory == nil {
		panic(fmt.Sprintf("plugin: %s %q registered with nil factory", r.kind, name))
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.factories[name]; exists {
		panic(fmt.Sprintf("plugin: %s %q registered twice", r.kind, name))
	}
	r.factories[name] = factory
}

func (r *registry[T]) get(name string) (func() T, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	factory, ok := r.factories[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s %q", core.ErrPluginNotFound, r.kind, name)
	}
	return factory, nil
}

func (r *registry[T]) names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Reset removes all registrations. Intended for tests.
func (r *registry[T]) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories = make(map[string]func() T)
}

var (
	capturerReg = newRegistry[Capturer]("capturer")
	reporterReg = newRegistry[Reporter]("reporter")
)

// RegisterCapturer registers a capturer factory. It panics on an empty or
// duplicate name and on a nil factory.
func RegisterCapturer(name string, factory func() Capturer) {
	capturerReg.register(name, factory)
}

// GetCapturerFactory returns the factory registered under name.
func GetCapturerFactory(name string) (func() Capturer, error) {
	return capturerReg.get(name)
}

// ListCapturers lists registered capturers in sorted order.
func ListCapturers() []string { return capturerReg.names() }

// RegisterReporter registers a reporter factory, panicking like RegisterCapturer.
func RegisterReporter(name string, factory func() Reporter) {
	reporterReg.register(name, factory)
}

// GetReporterFactory returns the factory registered under name.
func GetReporterFactory(name string) (func() Reporter, error) {
	return reporterReg.get(name)
}

// ListReporters lists registered reporters in sorted order.
func ListReporters() []string { return reporterReg.names() }
