package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/unisane/unisane-go/pkg/backend/virtual"
	"github.com/unisane/unisane-go/pkg/backend/wia"
	"github.com/unisane/unisane-go/pkg/daemon"
	"github.com/unisane/unisane-go/pkg/discovery"
	"github.com/unisane/unisane-go/pkg/log"
	"github.com/unisane/unisane-go/pkg/option"
	"github.com/unisane/unisane-go/pkg/scan"
	"github.com/unisane/unisane-go/pkg/version"
	"github.com/unisane/unisane-go/pkg/worker"
)

// ErrInvalidConfig indicates an invalid configuration file.
var ErrInvalidConfig = errors.New("invalid configuration")

// Backend names.
const (
	BackendSane       = "sane"
	BackendWIA        = "wia"
	BackendVirtual    = "virtual"
	BackendVirtualWIA = "virtual-wia"
	BackendDaemon     = "daemon"
)

// Output formats.
const (
	FormatPNG  = "png"
	FormatJPEG = "jpeg"
	FormatTIFF = "tiff"
)

// Config is the root of a configuration file.
type Config struct {
	// Backend selects the scanner backend.
	Backend string `yaml:"backend"`

	// LogLevel is the operational log level (debug, info, warn, error).
	LogLevel string `yaml:"log_level"`

	// ProtocolLog is a path for the binary event trace. Empty disables.
	ProtocolLog string `yaml:"protocol_log"`

	// ProtocolLogLayers limits the trace to transport, wire or scan
	// events. Empty records every layer.
	ProtocolLogLayers []string `yaml:"protocol_log_layers"`

	// ProtocolLogOmitFrames drops frame payloads from the trace.
	ProtocolLogOmitFrames bool `yaml:"protocol_log_omit_frames"`

	Worker  Worker  `yaml:"worker"`
	Scan    Scan    `yaml:"scan"`
	Daemon  Daemon  `yaml:"daemon"`
	Virtual Virtual `yaml:"virtual"`
	Network Network `yaml:"network"`
	Output  Output  `yaml:"output"`

	// WIAPresets replace the properties applied to push-model devices
	// when they are opened.
	WIAPresets []WIAPreset `yaml:"wia_presets"`

	// Presets are applied to a device before scanning.
	Presets []Preset `yaml:"presets"`

	// MaximizeArea extends the scan area to the device maximum before
	// scanning.
	MaximizeArea bool `yaml:"maximize_area"`
}

// Worker configures the backend worker thread.
type Worker struct {
	Enabled   bool `yaml:"enabled"`
	QueueSize int  `yaml:"queue_size"`
}

// Scan configures scan sessions.
type Scan struct {
	ReadBufferSize int      `yaml:"read_buffer_size"`
	QueueSize      int      `yaml:"queue_size"`
	MinPageBytes   int      `yaml:"min_page_bytes"`
	FeederTokens   []string `yaml:"feeder_tokens"`
}

// Daemon configures the out-of-process backend.
type Daemon struct {
	Executable     string        `yaml:"executable"`
	Args           []string      `yaml:"args"`
	Env            []string      `yaml:"env"`
	StartTimeout   time.Duration `yaml:"start_timeout"`
	MaxMessageSize uint32        `yaml:"max_message_size"`

	// Backend is the backend the daemon hosts.
	Backend string `yaml:"backend"`

	// MetricsAddr is passed to the daemon to expose Prometheus metrics.
	MetricsAddr string `yaml:"metrics_addr"`
}

// Virtual configures the virtual drivers.
type Virtual struct {
	FeederPages int  `yaml:"feeder_pages"`
	Resolution  int  `yaml:"resolution"`
	ReadChunk   int  `yaml:"read_chunk"`
	ChunkSize   int  `yaml:"chunk_size"`
	Unknown     bool `yaml:"unknown_length"`
}

// Network configures mDNS scanner discovery.
type Network struct {
	Interface string        `yaml:"interface"`
	Timeout   time.Duration `yaml:"timeout"`
	Secure    bool          `yaml:"secure"`
}

// Output configures how pages are written.
type Output struct {
	Format string `yaml:"format"`

	// Pattern is a fmt pattern taking the page number. The format's
	// extension is appended when missing.
	Pattern string `yaml:"pattern"`

	// JPEGQuality is used for FormatJPEG.
	JPEGQuality int `yaml:"jpeg_quality"`
}

// Preset sets an option to the first accepted of several values.
type Preset struct {
	Option string `yaml:"option"`
	Values []any  `yaml:"values"`
}

// WIAPreset is a push-model device property set at open time.
type WIAPreset struct {
	Name  string `yaml:"name"`
	Value any    `yaml:"value"`
}

// Default returns the configuration used for missing fields.
func Default() *Config {
	sc := scan.DefaultConfig()
	wc := worker.DefaultConfig()
	dc := daemon.DefaultConfig()
	vs := virtual.DefaultSaneConfig()
	vw := virtual.DefaultWIAConfig()
	return &Config{
		Backend:  BackendSane,
		LogLevel: "info",
		Worker: Worker{
			Enabled:   true,
			QueueSize: wc.QueueSize,
		},
		Scan: Scan{
			ReadBufferSize: sc.ReadBufferSize,
			QueueSize:      sc.QueueSize,
			MinPageBytes:   sc.MinPageBytes,
			FeederTokens:   append([]string(nil), scan.DefaultFeederTokens...),
		},
		Daemon: Daemon{
			Executable:     dc.Executable,
			StartTimeout:   dc.StartTimeout,
			MaxMessageSize: dc.MaxMessageSize,
			Backend:        BackendSane,
		},
		Virtual: Virtual{
			FeederPages: vs.FeederPages,
			Resolution:  vs.Resolution,
			ReadChunk:   vs.ReadChunk,
			ChunkSize:   vw.ChunkSize,
		},
		Network: Network{
			Timeout: discovery.BrowseTimeout,
			Secure:  true,
		},
		Output: Output{
			Format:      FormatPNG,
			Pattern:     "out-%03d",
			JPEGQuality: 90,
		},
	}
}

// Load reads and validates a configuration file. Fields missing from the
// file keep their defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates YAML configuration data.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("%w: YAML parse error: %w", ErrInvalidConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendSane, BackendWIA, BackendVirtual, BackendVirtualWIA, BackendDaemon:
	default:
		return fmt.Errorf("%w: unknown backend %q", ErrInvalidConfig, c.Backend)
	}
	switch c.Daemon.Backend {
	case BackendSane, BackendWIA, BackendVirtual, BackendVirtualWIA:
	default:
		return fmt.Errorf("%w: daemon cannot host backend %q", ErrInvalidConfig, c.Daemon.Backend)
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	switch c.Output.Format {
	case FormatPNG, FormatJPEG, FormatTIFF:
	default:
		return fmt.Errorf("%w: unknown output format %q", ErrInvalidConfig, c.Output.Format)
	}
	if _, err := log.ParseLayers(c.ProtocolLogLayers); err != nil {
		return fmt.Errorf("%w: protocol_log_layers: %w", ErrInvalidConfig, err)
	}
	if c.Output.JPEGQuality < 1 || c.Output.JPEGQuality > 100 {
		return fmt.Errorf("%w: jpeg quality %d", ErrInvalidConfig, c.Output.JPEGQuality)
	}
	for i, p := range c.Presets {
		if p.Option == "" || len(p.Values) == 0 {
			return fmt.Errorf("%w: preset %d needs an option and values", ErrInvalidConfig, i)
		}
	}
	if c.Worker.Enabled {
		if err := c.WorkerConfig().Validate(); err != nil {
			return fmt.Errorf("%w: worker: %w", ErrInvalidConfig, err)
		}
	}
	if err := c.ScanConfig().Validate(); err != nil {
		return fmt.Errorf("%w: scan: %w", ErrInvalidConfig, err)
	}
	if err := c.DaemonConfig().Validate(); err != nil {
		return fmt.Errorf("%w: daemon: %w", ErrInvalidConfig, err)
	}
	if err := c.WIAConfig().Validate(); err != nil {
		return fmt.Errorf("%w: wia: %w", ErrInvalidConfig, err)
	}
	return nil
}

// EventLogOptions returns the trace file options for ProtocolLog.
func (c *Config) EventLogOptions() ([]log.FileOption, error) {
	layers, err := log.ParseLayers(c.ProtocolLogLayers)
	if err != nil {
		return nil, fmt.Errorf("%w: protocol_log_layers: %w", ErrInvalidConfig, err)
	}
	opts := []log.FileOption{log.WithLayers(layers)}
	if c.ProtocolLogOmitFrames {
		opts = append(opts, log.WithoutFrameData())
	}
	return opts, nil
}

// ParseLevel converts a level name to a slog level.
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return 0, fmt.Errorf("%w: log level %q", ErrInvalidConfig, s)
	}
	return level, nil
}

// ScanConfig returns the scan session configuration.
func (c *Config) ScanConfig() scan.Config {
	sc := scan.DefaultConfig()
	sc.ReadBufferSize = c.Scan.ReadBufferSize
	sc.QueueSize = c.Scan.QueueSize
	sc.MinPageBytes = c.Scan.MinPageBytes
	if c.Scan.FeederTokens != nil {
		sc.Feeder = scan.NewFeederDetector(c.Scan.FeederTokens...)
	}
	return sc
}

// WorkerConfig returns the worker configuration.
func (c *Config) WorkerConfig() worker.Config {
	wc := worker.DefaultConfig()
	wc.QueueSize = c.Worker.QueueSize
	return wc
}

// DaemonConfig returns the client side daemon configuration. The protocol
// version, hosted backend and metrics address are passed to the daemon as
// flags.
func (c *Config) DaemonConfig() daemon.Config {
	dc := daemon.DefaultConfig()
	if c.Daemon.Executable != "" {
		dc.Executable = c.Daemon.Executable
	}
	dc.Args = append([]string{version.Flag, version.Current, "-backend", c.Daemon.Backend}, c.Daemon.Args...)
	if c.Daemon.MetricsAddr != "" {
		dc.Args = append(dc.Args, "-metrics-addr", c.Daemon.MetricsAddr)
	}
	dc.Args = append(dc.Args, "-log-level", c.LogLevel)
	dc.Env = c.Daemon.Env
	dc.StartTimeout = c.Daemon.StartTimeout
	dc.MaxMessageSize = c.Daemon.MaxMessageSize
	return dc
}

// WIAConfig returns the push-model backend configuration.
func (c *Config) WIAConfig() wia.Config {
	wc := wia.DefaultConfig()
	wc.Scan = c.ScanConfig()
	if c.WIAPresets != nil {
		wc.Presets = make([]wia.Preset, 0, len(c.WIAPresets))
		for _, p := range c.WIAPresets {
			wc.Presets = append(wc.Presets, wia.Preset{Name: p.Name, Value: p.Value})
		}
	}
	return wc
}

// VirtualSaneConfig returns the virtual buffered driver configuration.
func (c *Config) VirtualSaneConfig() virtual.SaneConfig {
	vc := virtual.DefaultSaneConfig()
	vc.FeederPages = c.Virtual.FeederPages
	vc.Resolution = c.Virtual.Resolution
	vc.ReadChunk = c.Virtual.ReadChunk
	vc.UnknownLength = c.Virtual.Unknown
	return vc
}

// VirtualWIAConfig returns the virtual push driver configuration.
func (c *Config) VirtualWIAConfig() virtual.WIAConfig {
	vc := virtual.DefaultWIAConfig()
	vc.FeederPages = c.Virtual.FeederPages
	vc.Resolution = c.Virtual.Resolution
	vc.ChunkSize = c.Virtual.ChunkSize
	return vc
}

// BrowserConfig returns the mDNS browser configuration.
func (c *Config) BrowserConfig() discovery.BrowserConfig {
	bc := discovery.DefaultBrowserConfig()
	bc.Interface = c.Network.Interface
	bc.BrowseTimeout = c.Network.Timeout
	bc.Secure = c.Network.Secure
	return bc
}

// ApplyPresets sets the configured presets on a device's options and,
// if configured, maximizes the scan area. A preset naming an option the
// device lacks is logged and skipped; a preset no candidate of which is
// accepted fails.
func (c *Config) ApplyPresets(ctx context.Context, logger *slog.Logger, opts *option.Set) error {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	for _, p := range c.Presets {
		err := option.SetPreferred(ctx, logger, opts, p.Option, p.Values...)
		if errors.Is(err, option.ErrNotFound) {
			logger.Warn("preset option not found", "option", p.Option)
			continue
		}
		if err != nil {
			return fmt.Errorf("preset %s: %w", p.Option, err)
		}
	}
	if c.MaximizeArea {
		if err := option.MaximizeScanArea(ctx, logger, opts); err != nil {
			return fmt.Errorf("maximize scan area: %w", err)
		}
	}
	return nil
}
