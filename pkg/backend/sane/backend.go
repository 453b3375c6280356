package sane

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/unisane/unisane-go/pkg/backend"
	"github.com/unisane/unisane-go/pkg/worker"
)

// Backend is the buffered-model backend.
type Backend struct {
	cfg     Config
	ex      worker.Executor
	handles *HandleManager
	logger  *slog.Logger
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
	return &Backend{
		cfg:     cfg,
		ex:      ex,
		handles: NewHandleManager(drv, logger, cfg.EventLogger),
		logger:  logger,
	}, nil
}

// Devices implements backend.Backend.
func (b *Backend) Devices(ctx context.Context, localOnly bool) ([]backend.Info, error) {
	var devs []backend.Info
	err := b.ex.Do(ctx, func() error {
		return b.handles.WithLibrary(func() error {
			var err error
			devs, err = b.handles.drv.Devices(localOnly)
			return err
		})
	})
	if err != nil {
		return nil, fmt.Errorf("list devices: %w", err)
	}
	return devs, nil
}

// Open implements backend.Backend. The native handle is opened right away
// so a missing device fails here rather than on first use.
func (b *Backend) Open(ctx context.Context, name string) (backend.Device, error) {
	info := backend.Info{Name: name}
	err := b.ex.Do(ctx, func() error {
		if _, err := b.handles.Acquire(name); err != nil {
			return err
		}
		devs, err := b.handles.drv.Devices(false)
		if err != nil {
			b.logger.Debug("cannot list devices for identity", "device", name, "error", err)
			return nil
		}
		for _, d := range devs {
			if d.Name == name {
				info = d
				break
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return newDevice(b, info), nil
}

// Close implements backend.Backend.
func (b *Backend) Close() error {
	return b.ex.Do(context.Background(), func() error {
		b.handles.Close()
		return nil
	})
}

// Handles returns the backend's handle manager.
func (b *Backend) Handles() *HandleManager {
	return b.handles
}

// Compile-time interface satisfaction check.
var _ backend.Backend = (*Backend)(nil)
