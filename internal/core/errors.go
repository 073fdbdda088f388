// Package core defines sentinel errors.
package core

import "errors"

// Sentinel errors following the ADR-021 error handling pattern.
var (
	// Dissection errors
	ErrBufferTooShort      = errors.New("tcpsniff: buffer too short")
	ErrHeaderLengthInvalid = errors.New("tcpsniff: header length invalid")
	ErrUnsupportedProtocol = errors.New("tcpsniff: unsupported protocol")
	ErrVersionMismatch     = errors.New("tcpsniff: ip version mismatch")

	// ErrMalformedPacket marks a packet the handler rejected with a diagnostic.
	// It is always joined with the dissection error that caused it.
	ErrMalformedPacket = errors.New("tcpsniff: malformed packet")

	// Capture errors
	ErrReadTimeout         = errors.New("tcpsniff: capture read timeout")
	ErrUnsupportedLinkType = errors.New("tcpsniff: unsupported link type")
	ErrCaptureNotOpen      = errors.New("tcpsniff: capture not open")
	ErrDeviceOpen          = errors.New("tcpsniff: couldn't open device")
	ErrFilterInvalid       = errors.New("tcpsniff: couldn't parse filter")

	// Plugin errors
	ErrPluginNotFound = errors.New("tcpsniff: plugin not found")

	// Configuration errors
	ErrConfigInvalid = errors.New("tcpsniff: invalid configuration")
)
