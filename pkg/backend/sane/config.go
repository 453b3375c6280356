package sane

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

// Config configures the backend.
type Config struct {
	// Executor runs every driver call. Nil runs them inline.
	Executor worker.Executor

	// Scan configures scan sessions.
	Scan scan.Config

	// Logger for operational messages. Nil disables.
	Logger *slog.Logger

	// EventLogger receives device and session events. Nil disables.
	EventLogger log.Logger
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		Scan: scan.DefaultConfig(),
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if err := c.Scan.Validate(); err != nil {
		return fmt.Errorf("%w: scan: %w", ErrInvalidConfig, err)
	}
	return nil
}
