package daemon

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/unisane/unisane-go/pkg/log"
	"github.com/unisane/unisane-go/pkg/transport"
)

// Daemon errors.
var (
	// ErrDaemon indicates the channel to the daemon failed. It is fatal
	// for the client that reported it.
	ErrDaemon = errors.New("daemon failure")

	// ErrNoSession indicates a scan command for a device without a session.
	ErrNoSession = errors.New("no scan session")

	// ErrInvalidConfig indicates an invalid Config.
	ErrInvalidConfig = errors.New("invalid configuration")
)

// Observer receives per-command statistics. pkg/metrics implements it.
type Observer interface {
	ObserveCommand(command string, d time.Duration, errKind string)
}

// Config configures both ends of the channel.
type Config struct {
	// Executable is the daemon binary started by Spawn.
	Executable string

	// Args are passed before the channel paths.
	Args []string

	// Env is appended to the daemon's inherited environment.
	Env []string

	// StartTimeout bounds how long Spawn waits for the daemon to open
	// the channel.
	StartTimeout time.Duration

	// MaxMessageSize bounds one framed record in both directions. A
	// response that would exceed it, such as a page larger than the
	// limit, is answered with a too_large error instead, and the
	// channel stays open. Raise it for high resolution 16-bit color
	// pages, which can exceed the default.
	MaxMessageSize uint32

	// ChannelID identifies the channel in event logs. Empty picks a UUID.
	ChannelID string

	// Logger for operational messages. Nil disables.
	Logger *slog.Logger

	// EventLogger receives frame and command events. Nil disables.
	EventLogger log.Logger

	// Observer receives command statistics. Nil disables.
	Observer Observer
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		Executable:     "unisane-daemon",
		StartTimeout:   10 * time.Second,
		MaxMessageSize: transport.DefaultMaxMessageSize,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.StartTimeout <= 0 {
		return fmt.Errorf("%w: start timeout %v", ErrInvalidConfig, c.StartTimeout)
	}
	if c.MaxMessageSize == 0 {
		return fmt.Errorf("%w: zero max message size", ErrInvalidConfig)
	}
	return nil
}

func (c Config) logger() *slog.Logger {
	if c.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return c.Logger
}

// logCommand emits a command event if events is non-nil.
func logCommand(events log.Logger, channelID string, role log.Role, dir log.Direction, typ log.MessageType, cmd, errKind string, d *time.Duration) {
	if events == nil {
		return
	}
	events.Log(log.Event{
		Timestamp: time.Now(),
		SessionID: channelID,
		Direction: dir,
		Layer:     log.LayerWire,
		Category:  log.CategoryMessage,
		Role:      role,
		Command: &log.CommandEvent{
			Type:      typ,
			Command:   cmd,
			ErrorKind: errKind,
			Duration:  d,
		},
	})
}
