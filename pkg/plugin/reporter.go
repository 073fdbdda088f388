// Package plugin defines plugin interfaces.
package plugin

import (
	"context"

	"firestige.xyz/tcpsniff/internal/core"
)

// Reporter sends packet reports to an output stream.
type Reporter interface {
	Plugin
	Report(ctx context.Context, report *core.PacketReport) error
	Flush(ctx context.Context) error
}
