package wia

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/unisane/unisane-go/pkg/log"
	"github.com/unisane/unisane-go/pkg/scan"
	"github.com/unisane/unisane-go/pkg/worker"
)

// ErrInvalidConfig indicates an invalid Config.
var ErrInvalidConfig = errors.New("invalid configuration")

// Preset is a property value applied when a device is opened.
type Preset struct {
	Name  string
	Value any
}

// DefaultPresets request BMP transfers of color A4 pages.
var DefaultPresets = []Preset{
	{"current_intent", "image_type_color,maximize_quality"},
	{"format", "bmp"},
	{"preferred_format", "bmp"},
	{"page_size", "a4"},
	{"depth", 24},
}

// Config configures the backend.
type Config struct {
	// Executor runs every driver call and the transfers. Nil runs calls
	// inline and transfers on goroutines.
	Executor worker.Executor

	// Scan configures scan sessions.
	Scan scan.Config

	// Presets are applied in order when a device is opened. Failures are
	// logged and ignored.
	Presets []Preset

	// Logger for operational messages. Nil disables.
	Logger *slog.Logger

	// EventLogger receives session events. Nil disables.
	EventLogger log.Logger
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		Scan:    scan.DefaultConfig(),
		Presets: append([]Preset(nil), DefaultPresets...),
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if err := c.Scan.Validate(); err != nil {
		return fmt.Errorf("%w: scan: %w", ErrInvalidConfig, err)
	}
	for _, p := range c.Presets {
		if p.Name == "" {
			return fmt.Errorf("%w: preset without a name", ErrInvalidConfig)
		}
	}
	return nil
}
