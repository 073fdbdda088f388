// Package plugin defines the plugin lifecycle interface.
package plugin

import (
	"context"
	"fmt"

	"github.com/mitchellh/mapstructure"
)

// Plugin is the base interface for all plugins.
type Plugin interface {
	Name() string
	Init(cfg map[string]any) error
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// DecodeConfig decodes a plugin config map into out, which must be a pointer
// to a struct with mapstructure tags. Durations may be given as strings
// ("1s") and numbers may arrive as strings or floats from YAML/JSON.
func DecodeConfig(cfg map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return fmt.Errorf("build config decoder: %w", err)
	}
	if err := dec.Decode(cfg); err != nil {
		return fmt.Errorf("decode plugin config: %w", err)
	}
	return nil
}
