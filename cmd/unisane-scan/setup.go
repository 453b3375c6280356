package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/unisane/unisane-go/pkg/backend"
	"github.com/unisane/unisane-go/pkg/backend/sane"
	"github.com/unisane/unisane-go/pkg/backend/sane/native"
	"github.com/unisane/unisane-go/pkg/backend/virtual"
	"github.com/unisane/unisane-go/pkg/backend/wia"
	"github.com/unisane/unisane-go/pkg/config"
	"github.com/unisane/unisane-go/pkg/log"
	"github.com/unisane/unisane-go/pkg/worker"
)

// errNoWIADriver is returned for the wia backend: only the virtual push
// driver ships.
var errNoWIADriver = errors.New("no WIA driver in this build (use virtual-wia)")

// env holds what every command needs: configuration, loggers and the
// cleanup functions run by Close in reverse order.
type env struct {
	cfg    *config.Config
	logger *slog.Logger
	events log.Logger

	closers []func() error
}

// newEnv loads the configuration and applies flag overrides.
func newEnv(cf *commonFlags) (*env, error) {
	cfg := config.Default()
	if cf.configPath != "" {
		var err error
		if cfg, err = config.Load(cf.configPath); err != nil {
			return nil, err
		}
	}
	if cf.backend != "" {
		cfg.Backend = cf.backend
	}
	if cf.logLevel != "" {
		cfg.LogLevel = cf.logLevel
	}
	if cf.protocolLog != "" {
		cfg.ProtocolLog = cf.protocolLog
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	level, err := config.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	e := &env{
		cfg:    cfg,
		logger: slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})),
	}

	var sinks []log.Logger
	if level <= slog.LevelDebug {
		sinks = append(sinks, log.NewSlogAdapter(e.logger))
	}
	if cfg.ProtocolLog != "" {
		opts, err := cfg.EventLogOptions()
		if err != nil {
			return nil, err
		}
		fl, err := log.NewFileLogger(cfg.ProtocolLog, opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create protocol logger: %w", err)
		}
		sinks = append(sinks, fl)
		e.closers = append(e.closers, func() error {
			if n := fl.Dropped(); n > 0 {
				e.logger.Warn("protocol events dropped", "count", n)
			}
			return fl.Close()
		})
		e.logger.Info("protocol logging", "path", cfg.ProtocolLog)
	}
	if m := log.NewMultiLogger(sinks...); m.Len() > 0 {
		e.events = m
	}
	return e, nil
}

// Close runs the cleanup functions in reverse order.
func (e *env) Close() error {
	var errs []error
	for i := len(e.closers) - 1; i >= 0; i-- {
		errs = append(errs, e.closers[i]())
	}
	e.closers = nil
	return errors.Join(errs...)
}

// openBackend builds the configured backend. Backends driving a native
// library get a dedicated worker; its lifetime is tied to env.
func (e *env) openBackend(ctx context.Context) (backend.Backend, error) {
	cfg := e.cfg
	switch cfg.Backend {
	case config.BackendDaemon:
		dc := cfg.DaemonConfig()
		dc.Logger = e.logger
		dc.EventLogger = e.events
		client, err := spawnDaemon(ctx, dc)
		if err != nil {
			return nil, err
		}
		e.closers = append(e.closers, client.Close)
		return client, nil

	case config.BackendSane, config.BackendVirtual:
		var drv sane.Driver
		if cfg.Backend == config.BackendSane {
			var err error
			if drv, err = native.NewDriver(); err != nil {
				return nil, err
			}
		} else {
			drv = virtual.NewSaneDriver(cfg.VirtualSaneConfig())
		}
		sc := sane.DefaultConfig()
		sc.Scan = cfg.ScanConfig()
		sc.Logger = e.logger
		sc.EventLogger = e.events
		exec, err := e.executor()
		if err != nil {
			return nil, err
		}
		sc.Executor = exec
		b, err := sane.New(drv, sc)
		if err != nil {
			return nil, err
		}
		e.closers = append(e.closers, b.Close)
		return b, nil

	case config.BackendVirtualWIA:
		wc := cfg.WIAConfig()
		wc.Logger = e.logger
		wc.EventLogger = e.events
		exec, err := e.executor()
		if err != nil {
			return nil, err
		}
		wc.Executor = exec
		b, err := wia.New(virtual.NewWIADriver(cfg.VirtualWIAConfig()), wc)
		if err != nil {
			return nil, err
		}
		e.closers = append(e.closers, b.Close)
		return b, nil

	case config.BackendWIA:
		return nil, errNoWIADriver
	}
	return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
}

// executor returns the worker running backend calls, or nil to run them
// inline when the worker is disabled.
func (e *env) executor() (worker.Executor, error) {
	if !e.cfg.Worker.Enabled {
		return nil, nil
	}
	wc := e.cfg.WorkerConfig()
	wc.Logger = e.logger
	wc.EventLogger = e.events
	w, err := worker.New(wc)
	if err != nil {
		return nil, err
	}
	e.closers = append(e.closers, w.Close)
	return w, nil
}

// openDevice opens name and applies the configured presets.
func (e *env) openDevice(ctx context.Context, b backend.Backend, name string) (backend.Device, error) {
	dev, err := b.Open(ctx, name)
	if err != nil {
		return nil, err
	}
	opts, err := dev.Options(ctx)
	if err != nil {
		dev.Close()
		return nil, err
	}
	if err := e.cfg.ApplyPresets(ctx, e.logger, opts); err != nil {
		dev.Close()
		return nil, err
	}
	return dev, nil
}
