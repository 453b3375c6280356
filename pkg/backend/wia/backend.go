package wia

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/unisane/unisane-go/pkg/backend"
	"github.com/unisane/unisane-go/pkg/worker"
)

// Backend is the push-model backend.
type Backend struct {
	drv    Driver
	cfg    Config
	ex     worker.Executor
	logger *slog.Logger
}

// New creates a backend over drv.
func New(drv Driver, cfg Config) (*Backend, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	ex := cfg.Executor
	if ex == nil {
		ex = worker.Inline()
	}
	cfg.Scan.Logger = logger
	if cfg.Scan.EventLogger == nil {
		cfg.Scan.EventLogger = cfg.EventLogger
	}
	return &Backend{drv: drv, cfg: cfg, ex: ex, logger: logger}, nil
}

// Devices implements backend.Backend. The push model has no notion of
// local devices, so localOnly is ignored.
func (b *Backend) Devices(ctx context.Context, localOnly bool) ([]backend.Info, error) {
	var devs []backend.Info
	err := b.ex.Do(ctx, func() error {
		var err error
		devs, err = b.drv.Devices()
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("list devices: %w", err)
	}
	return devs, nil
}

// Open implements backend.Backend. Options are loaded and the configured
// presets applied before the device is returned.
func (b *Backend) Open(ctx context.Context, name string) (backend.Device, error) {
	var (
		item    Item
		sources []Source
	)
	err := b.ex.Do(ctx, func() error {
		var err error
		if item, err = b.drv.Open(name); err != nil {
			return err
		}
		if sources, err = item.Sources(); err != nil {
			item.Close()
			return err
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", name, err)
	}
	if len(sources) == 0 {
		b.closeItem(item)
		return nil, fmt.Errorf("open %s: %w", name, backend.NewError("get sources", backend.StatusUnsupported))
	}

	d := newDevice(b, name, item, sources)
	if err := d.ReloadOptions(ctx); err != nil {
		b.closeItem(item)
		return nil, err
	}
	d.identify(ctx)
	d.applyPresets(ctx, b.cfg.Presets)
	return d, nil
}

func (b *Backend) closeItem(item Item) {
	_ = b.ex.Do(context.Background(), func() error {
		item.Close()
		return nil
	})
}

// Close implements backend.Backend.
func (b *Backend) Close() error {
	return nil
}

// Compile-time interface satisfaction check.
var _ backend.Backend = (*Backend)(nil)
