package config_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unisane/unisane-go/pkg/backend/sane"
	"github.com/unisane/unisane-go/pkg/backend/virtual"
	"github.com/unisane/unisane-go/pkg/config"
	"github.com/unisane/unisane-go/pkg/option"
	"github.com/unisane/unisane-go/pkg/version"
)

const sample = `
backend: virtual
log_level: debug
worker:
  enabled: true
  queue_size: 4
scan:
  feeder_tokens: [adf, feeder, chargeur]
daemon:
  executable: /usr/libexec/unisane-daemon
  start_timeout: 3s
  backend: virtual
  metrics_addr: 127.0.0.1:9310
virtual:
  feeder_pages: 5
presets:
  - option: resolution
    values: [300, 200]
  - option: source
    values: [feeder, flatbed]
maximize_area: true
output:
  format: tiff
  pattern: "page-%03d"
`

func TestParse(t *testing.T) {
	cfg, err := config.Parse([]byte(sample))
	require.NoError(t, err)

	assert.Equal(t, config.BackendVirtual, cfg.Backend)
	assert.Equal(t, 4, cfg.WorkerConfig().QueueSize)
	assert.Equal(t, 3*time.Second, cfg.Daemon.StartTimeout)
	assert.Equal(t, 5, cfg.VirtualSaneConfig().FeederPages)
	assert.Equal(t, 5, cfg.VirtualWIAConfig().FeederPages)
	assert.Equal(t, config.FormatTIFF, cfg.Output.Format)
	assert.True(t, cfg.MaximizeArea)
	require.Len(t, cfg.Presets, 2)
	assert.Equal(t, []any{300, 200}, cfg.Presets[0].Values)

	// Fields missing from the file keep their defaults.
	def := config.Default()
	assert.Equal(t, def.Scan.ReadBufferSize, cfg.Scan.ReadBufferSize)
	assert.Equal(t, def.Output.JPEGQuality, cfg.Output.JPEGQuality)
	assert.Equal(t, def.Virtual.Resolution, cfg.Virtual.Resolution)
}

func TestScanConfigFeederTokens(t *testing.T) {
	cfg, err := config.Parse([]byte(sample))
	require.NoError(t, err)

	sc := cfg.ScanConfig()
	assert.True(t, sc.Feeder.IsFeeder("Chargeur de documents"))
	assert.False(t, sc.Feeder.IsFeeder("Vitre"))
	assert.True(t, cfg.WIAConfig().Scan.Feeder.IsFeeder("chargeur"))
}

func TestDaemonConfig(t *testing.T) {
	cfg, err := config.Parse([]byte(sample))
	require.NoError(t, err)

	dc := cfg.DaemonConfig()
	assert.Equal(t, "/usr/libexec/unisane-daemon", dc.Executable)
	assert.Equal(t, []string{
		"-protocol", version.Current,
		"-backend", "virtual",
		"-metrics-addr", "127.0.0.1:9310",
		"-log-level", "debug",
	}, dc.Args)
	assert.NoError(t, dc.Validate())
}

func TestDefaultIsValid(t *testing.T) {
	require.NoError(t, config.Default().Validate())
	assert.NotEmpty(t, config.Default().WIAConfig().Presets)
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"syntax", "backend: [unclosed"},
		{"unknown backend", "backend: twain"},
		{"daemon hosting daemon", "daemon:\n  backend: daemon"},
		{"log level", "log_level: loud"},
		{"format", "output:\n  format: gif"},
		{"jpeg quality", "output:\n  jpeg_quality: 0"},
		{"preset without values", "presets:\n  - option: mode"},
		{"worker queue", "worker:\n  queue_size: 0"},
		{"scan buffer", "scan:\n  read_buffer_size: -1"},
		{"daemon timeout", "daemon:\n  start_timeout: 0s"},
		{"wia preset", "wia_presets:\n  - value: 1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := config.Parse([]byte(tt.yaml))
			assert.ErrorIs(t, err, config.ErrInvalidConfig)
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "unisane.yaml")
	require.NoError(t, os.WriteFile(path, []byte("backend: wia\n"), 0o600))

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, config.BackendWIA, cfg.Backend)

	_, err = config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestApplyPresets(t *testing.T) {
	ctx := context.Background()
	cfg, err := config.Parse([]byte(sample))
	require.NoError(t, err)
	cfg.Presets = append(cfg.Presets, config.Preset{Option: "no-such-option", Values: []any{1}})

	b, err := sane.New(virtual.NewSaneDriver(virtual.DefaultSaneConfig()), sane.DefaultConfig())
	require.NoError(t, err)
	defer b.Close()
	dev, err := b.Open(ctx, "test:0")
	require.NoError(t, err)
	defer dev.Close()
	opts, err := dev.Options(ctx)
	require.NoError(t, err)

	require.NoError(t, cfg.ApplyPresets(ctx, nil, opts))

	get := func(name string) any {
		o, err := opts.Lookup(name)
		require.NoError(t, err)
		v, err := o.Value(ctx)
		require.NoError(t, err)
		return v
	}
	assert.Equal(t, 300, get("resolution"))
	assert.Equal(t, virtual.SourceADF, get("source"))
	assert.Equal(t, option.FixedFromFloat(215.9), get("br-x"))
	assert.Equal(t, option.FixedFromFloat(297), get("br-y"))
}

func TestApplyPresetsRejected(t *testing.T) {
	ctx := context.Background()
	cfg, err := config.Parse([]byte("presets:\n  - option: mode\n    values: [Infrared]\n"))
	require.NoError(t, err)

	b, err := sane.New(virtual.NewSaneDriver(virtual.DefaultSaneConfig()), sane.DefaultConfig())
	require.NoError(t, err)
	defer b.Close()
	dev, err := b.Open(ctx, "test:0")
	require.NoError(t, err)
	defer dev.Close()
	opts, err := dev.Options(ctx)
	require.NoError(t, err)

	err = cfg.ApplyPresets(ctx, nil, opts)
	assert.ErrorIs(t, err, option.ErrInvalidValue)
}

func TestEventLogOptions(t *testing.T) {
	cfg := config.Default()
	opts, err := cfg.EventLogOptions()
	require.NoError(t, err)
	assert.Len(t, opts, 1)

	cfg.ProtocolLogLayers = []string{"wire", "scan"}
	cfg.ProtocolLogOmitFrames = true
	require.NoError(t, cfg.Validate())
	opts, err = cfg.EventLogOptions()
	require.NoError(t, err)
	assert.Len(t, opts, 2)

	cfg.ProtocolLogLayers = []string{"pixels"}
	assert.ErrorIs(t, cfg.Validate(), config.ErrInvalidConfig)
	_, err = cfg.EventLogOptions()
	assert.ErrorIs(t, err, config.ErrInvalidConfig)
}
