package scan

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/unisane/unisane-go/pkg/log"
	"github.com/unisane/unisane-go/pkg/option"
)

// ErrInvalidConfig indicates an invalid Config.
var ErrInvalidConfig = errors.New("invalid configuration")

// Default tuning values.
const (
	// DefaultReadBufferSize is the chunk requested per buffered read.
	DefaultReadBufferSize = 512 * 1024

	// DefaultQueueSize bounds the push event channel.
	DefaultQueueSize = 64

	// DefaultMinPageBytes is the smallest push transfer accepted as a page.
	// Some drivers emit a few header bytes when the feeder is empty.
	DefaultMinPageBytes = 1024
)

// DefaultFeederTokens are matched against the active source name.
var DefaultFeederTokens = []string{"adf", "feeder"}

// Config configures scan state machines.
type Config struct {
	// ReadBufferSize is the buffer passed to each buffered driver read.
	ReadBufferSize int

	// QueueSize is the capacity of the push event channel.
	QueueSize int

	// MinPageBytes is the push transfer size below which a page is
	// treated as "no document".
	MinPageBytes int

	// Feeder decides whether the active source supports multi-page scans.
	Feeder FeederDetector

	// Logger for operational messages. Nil disables.
	Logger *slog.Logger

	// EventLogger receives state transition events. Nil disables.
	EventLogger log.Logger
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		ReadBufferSize: DefaultReadBufferSize,
		QueueSize:      DefaultQueueSize,
		MinPageBytes:   DefaultMinPageBytes,
		Feeder:         NewFeederDetector(DefaultFeederTokens...),
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.ReadBufferSize <= 0 {
		return fmt.Errorf("%w: read buffer size %d", ErrInvalidConfig, c.ReadBufferSize)
	}
	if c.QueueSize <= 0 {
		return fmt.Errorf("%w: queue size %d", ErrInvalidConfig, c.QueueSize)
	}
	if c.MinPageBytes < 0 {
		return fmt.Errorf("%w: min page bytes %d", ErrInvalidConfig, c.MinPageBytes)
	}
	return nil
}

func (c Config) logger() *slog.Logger {
	if c.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return c.Logger
}

// FeederDetector recognizes document feeder sources by case-insensitive
// substring tokens.
type FeederDetector struct {
	tokens []string
}

// NewFeederDetector creates a detector for the given tokens.
func NewFeederDetector(tokens ...string) FeederDetector {
	d := FeederDetector{}
	for _, t := range tokens {
		if t = strings.ToLower(strings.TrimSpace(t)); t != "" {
			d.tokens = append(d.tokens, t)
		}
	}
	return d
}

// Tokens returns the configured tokens.
func (d FeederDetector) Tokens() []string {
	return append([]string(nil), d.tokens...)
}

// IsFeeder reports whether source names a document feeder.
func (d FeederDetector) IsFeeder(source string) bool {
	s := strings.ToLower(source)
	for _, t := range d.tokens {
		if strings.Contains(s, t) {
			return true
		}
	}
	return false
}

// Multiple decides whether a multi-page session may run on source.
// Multi-page logic on a flatbed never receives "no more documents" and
// would loop forever, so a non-feeder source downgrades to single page.
func (d FeederDetector) Multiple(requested bool, source string) bool {
	return requested && d.IsFeeder(source)
}

// ActiveSource returns the value of the "source" option, or "" if the
// option is missing, inactive or unreadable.
func ActiveSource(ctx context.Context, opts *option.Set) string {
	if opts == nil {
		return ""
	}
	o, ok := opts.Get("source")
	if !ok || !o.Descriptor().Capabilities.IsActive() {
		return ""
	}
	v, err := o.Value(ctx)
	if err != nil {
		return ""
	}
	switch s := v.(type) {
	case string:
		return s
	case []byte:
		return string(s)
	}
	return fmt.Sprint(v)
}
