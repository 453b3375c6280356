//go:build unix

package main

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unisane/unisane-go/pkg/config"
	"github.com/unisane/unisane-go/pkg/log"
	"github.com/unisane/unisane-go/pkg/metrics"
)

func TestNewBackend(t *testing.T) {
	ctx := context.Background()
	logger := slog.New(slog.DiscardHandler)

	tests := []struct {
		backend string
		device  string
	}{
		{config.BackendVirtual, "test:0"},
		{config.BackendVirtualWIA, "wia:0"},
	}
	for _, tt := range tests {
		t.Run(tt.backend, func(t *testing.T) {
			cfg := config.Default()
			cfg.Daemon.Backend = tt.backend
			m := metrics.New()

			b, closeFn, err := newBackend(cfg, logger, nil, m)
			require.NoError(t, err)

			devs, err := b.Devices(ctx, false)
			require.NoError(t, err)
			require.NotEmpty(t, devs)
			assert.Equal(t, tt.device, devs[0].Name)
			assert.NoError(t, closeFn())
		})
	}
}

func TestNewBackendWithoutWorker(t *testing.T) {
	cfg := config.Default()
	cfg.Daemon.Backend = config.BackendVirtual
	cfg.Worker.Enabled = false

	b, closeFn, err := newBackend(cfg, slog.New(slog.DiscardHandler), nil, nil)
	require.NoError(t, err)
	_, err = b.Devices(context.Background(), true)
	assert.NoError(t, err)
	assert.NoError(t, closeFn())
}

func TestNewBackendWIAUnavailable(t *testing.T) {
	cfg := config.Default()
	cfg.Daemon.Backend = config.BackendWIA

	_, _, err := newBackend(cfg, slog.New(slog.DiscardHandler), nil, nil)
	assert.ErrorContains(t, err, "virtual-wia")
}

func TestOpenEvents(t *testing.T) {
	logger := slog.New(slog.DiscardHandler)

	t.Run("disabled", func(t *testing.T) {
		events, closeFn, err := openEvents(config.Default(), slog.LevelInfo, logger)
		require.NoError(t, err)
		assert.Nil(t, events)
		closeFn()
	})

	t.Run("trace file with layers", func(t *testing.T) {
		cfg := config.Default()
		cfg.ProtocolLog = filepath.Join(t.TempDir(), "daemon.ulog")
		cfg.ProtocolLogLayers = []string{"wire"}

		events, closeFn, err := openEvents(cfg, slog.LevelDebug, logger)
		require.NoError(t, err)
		require.NotNil(t, events)
		events.Log(log.Event{Layer: log.LayerTransport, Frame: &log.FrameEvent{Size: 4}})
		events.Log(log.Event{Layer: log.LayerWire, Command: &log.CommandEvent{Command: "exit"}})
		closeFn()

		r, err := log.NewReader(cfg.ProtocolLog)
		require.NoError(t, err)
		defer r.Close()
		e, err := r.Next()
		require.NoError(t, err)
		assert.Equal(t, "exit", e.Command.Command)
		_, err = r.Next()
		assert.Error(t, err)
	})

	t.Run("bad layer", func(t *testing.T) {
		cfg := config.Default()
		cfg.ProtocolLog = filepath.Join(t.TempDir(), "daemon.ulog")
		cfg.ProtocolLogLayers = []string{"pixels"}

		_, _, err := openEvents(cfg, slog.LevelInfo, logger)
		assert.ErrorIs(t, err, config.ErrInvalidConfig)
		_, statErr := os.Stat(cfg.ProtocolLog)
		assert.True(t, os.IsNotExist(statErr))
	})
}
