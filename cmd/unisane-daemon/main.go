//go:build unix

// Command unisane-daemon hosts a scanner backend in its own process and
// serves it over a pair of named pipes. It is started by the daemon
// backend of unisane-scan (and any other daemon.Spawn caller), which
// creates the pipes and appends their paths to the command line.
//
// Usage:
//
//	unisane-daemon [flags] <dir> <c2s> <s2c>
//
// Flags:
//
//	-backend string       sane, wia, virtual or virtual-wia (default "sane")
//	-config string        YAML configuration file
//	-log-level string     debug, info, warn, error (default "info")
//	-metrics-addr string  Serve Prometheus metrics on this address
//	-protocol string      Client protocol version; a different major version is refused
//	-protocol-log string  Write protocol events to this file (CBOR, .ulog)
//
// The daemon exits when the client sends exit, closes its end of the
// channel, or the process receives SIGINT or SIGTERM.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/unisane/unisane-go/pkg/backend"
	"github.com/unisane/unisane-go/pkg/backend/sane"
	"github.com/unisane/unisane-go/pkg/backend/sane/native"
	"github.com/unisane/unisane-go/pkg/backend/virtual"
	"github.com/unisane/unisane-go/pkg/backend/wia"
	"github.com/unisane/unisane-go/pkg/config"
	"github.com/unisane/unisane-go/pkg/daemon"
	"github.com/unisane/unisane-go/pkg/log"
	"github.com/unisane/unisane-go/pkg/metrics"
	"github.com/unisane/unisane-go/pkg/version"
	"github.com/unisane/unisane-go/pkg/worker"
)

var (
	backendName = flag.String("backend", "", "Backend: sane, wia, virtual, virtual-wia (default from config)")
	configPath  = flag.String("config", "", "Configuration file path")
	logLevel    = flag.String("log-level", "", "Log level: debug, info, warn, error")
	metricsAddr = flag.String("metrics-addr", "", "Serve Prometheus metrics on this address (e.g. 127.0.0.1:9310)")
	protocolLog = flag.String("protocol-log", "", "File path for protocol event logging (CBOR format)")
	protocol    = flag.String(strings.TrimPrefix(version.Flag, "-"), "", "Client protocol version (major.minor)")
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, `unisane-daemon - scanner backend host

Usage:
  unisane-daemon [flags] <dir> <c2s> <s2c>

Flags:
`)
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 3 {
		fmt.Fprintln(os.Stderr, "Error: channel directory and both pipe paths required")
		flag.Usage()
		os.Exit(2)
	}

	if err := version.Check(*protocol); err != nil {
		fmt.Fprintf(os.Stderr, "unisane-daemon: %v\n", err)
		os.Exit(2)
	}

	if err := run(flag.Arg(0), flag.Arg(1), flag.Arg(2)); err != nil {
		fmt.Fprintf(os.Stderr, "unisane-daemon: %v\n", err)
		os.Exit(1)
	}
}

func run(dir, c2s, s2c string) (err error) {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	level, err := config.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})).
		With("component", "daemon", "pid", os.Getpid())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	events, closeEvents, err := openEvents(cfg, level, logger)
	if err != nil {
		return err
	}
	defer closeEvents()

	m := metrics.New()
	if cfg.Daemon.MetricsAddr != "" {
		srv := serveMetrics(cfg.Daemon.MetricsAddr, m, logger)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	var obs worker.Observer
	if cfg.Daemon.MetricsAddr != "" {
		obs = m
	}
	b, closeBackend, err := newBackend(cfg, logger, events, obs)
	if err != nil {
		return err
	}
	defer func() { err = errors.Join(err, closeBackend()) }()

	dc := cfg.DaemonConfig()
	dc.ChannelID = filepath.Base(dir)
	dc.Logger = logger
	dc.EventLogger = events
	if obs != nil {
		dc.Observer = m
	}

	logger.Info("serving", "backend", cfg.Daemon.Backend, "channel", dc.ChannelID)
	err = daemon.ServeFIFO(ctx, b, dc, c2s, s2c)
	logger.Info("stopped", "error", err)
	return err
}

// loadConfig reads the optional file and applies flag overrides. The
// daemon's backend is the config's daemon backend.
func loadConfig() (*config.Config, error) {
	cfg := config.Default()
	if *configPath != "" {
		var err error
		if cfg, err = config.Load(*configPath); err != nil {
			return nil, err
		}
	}
	if *backendName != "" {
		cfg.Daemon.Backend = *backendName
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}
	if *metricsAddr != "" {
		cfg.Daemon.MetricsAddr = *metricsAddr
	}
	if *protocolLog != "" {
		cfg.ProtocolLog = *protocolLog
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// openEvents builds the event sink: the trace file when configured, plus
// the operational log at debug level. The sink is nil when neither is on.
func openEvents(cfg *config.Config, level slog.Level, logger *slog.Logger) (log.Logger, func(), error) {
	var sinks []log.Logger
	closeFn := func() {}
	if level <= slog.LevelDebug {
		sinks = append(sinks, log.NewSlogAdapter(logger))
	}
	if cfg.ProtocolLog != "" {
		opts, err := cfg.EventLogOptions()
		if err != nil {
			return nil, nil, err
		}
		fl, err := log.NewFileLogger(cfg.ProtocolLog, opts...)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create protocol logger: %w", err)
		}
		sinks = append(sinks, fl)
		closeFn = func() {
			if n := fl.Dropped(); n > 0 {
				logger.Warn("protocol events dropped", "count", n)
			}
			fl.Close()
		}
	}
	m := log.NewMultiLogger(sinks...)
	if m.Len() == 0 {
		return nil, closeFn, nil
	}
	return m, closeFn, nil
}

func serveMetrics(addr string, m *metrics.Metrics, logger *slog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", "error", err)
		}
	}()
	logger.Info("metrics listening", "addr", addr)
	return srv
}

// newBackend builds the hosted backend on a dedicated worker. The returned
// function closes the backend, then the worker.
func newBackend(cfg *config.Config, logger *slog.Logger, events log.Logger, obs worker.Observer) (backend.Backend, func() error, error) {
	var exec worker.Executor = worker.Inline()
	closeWorker := func() error { return nil }
	if cfg.Worker.Enabled {
		wc := cfg.WorkerConfig()
		wc.Name = "daemon"
		wc.Logger = logger
		wc.EventLogger = events
		wc.Observer = obs
		w, err := worker.New(wc)
		if err != nil {
			return nil, nil, err
		}
		exec = w
		closeWorker = w.Close
	}

	var (
		b   backend.Backend
		err error
	)
	switch cfg.Daemon.Backend {
	case config.BackendSane, config.BackendVirtual:
		var drv sane.Driver
		if cfg.Daemon.Backend == config.BackendSane {
			drv, err = native.NewDriver()
		} else {
			drv = virtual.NewSaneDriver(cfg.VirtualSaneConfig())
		}
		if err == nil {
			sc := sane.DefaultConfig()
			sc.Scan = cfg.ScanConfig()
			sc.Executor = exec
			sc.Logger = logger
			sc.EventLogger = events
			b, err = sane.New(drv, sc)
		}
	case config.BackendVirtualWIA:
		wc := cfg.WIAConfig()
		wc.Executor = exec
		wc.Logger = logger
		wc.EventLogger = events
		b, err = wia.New(virtual.NewWIADriver(cfg.VirtualWIAConfig()), wc)
	case config.BackendWIA:
		err = errors.New("no WIA driver in this build (use virtual-wia)")
	default:
		err = fmt.Errorf("unknown backend %q", cfg.Daemon.Backend)
	}
	if err != nil {
		return nil, nil, errors.Join(err, closeWorker())
	}
	return b, func() error { return errors.Join(b.Close(), closeWorker()) }, nil
}
