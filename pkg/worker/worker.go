package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/unisane/unisane-go/pkg/log"
)

// Worker errors.
var (
	// ErrWorkerDead is returned once a job has panicked on the worker.
	ErrWorkerDead = errors.New("worker is dead")

	// ErrClosed is returned for submissions after Close.
	ErrClosed = errors.New("worker closed")

	// ErrInvalidConfig indicates an invalid Config.
	ErrInvalidConfig = errors.New("invalid configuration")
)

// Executor runs backend calls.
type Executor interface {
	// Do runs fn and returns its error. If ctx ends first Do returns
	// ctx.Err() and fn still runs to completion later.
	Do(ctx context.Context, fn func() error) error

	// Go schedules fn without waiting for it.
	Go(fn func()) error
}

// Observer receives job statistics. pkg/metrics implements it.
type Observer interface {
	ObserveJob(d time.Duration, err error)
	SetQueueDepth(n int)
}

// Config configures a Worker.
type Config struct {
	// Name identifies the worker in logs.
	Name string

	// QueueSize bounds the number of pending jobs.
	QueueSize int

	// Logger for operational messages. Nil disables.
	Logger *slog.Logger

	// EventLogger receives worker state changes. Nil disables.
	EventLogger log.Logger

	// Observer receives job statistics. Nil disables.
	Observer Observer
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		Name:      "backend",
		QueueSize: 16,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.QueueSize <= 0 {
		return fmt.Errorf("%w: queue size %d", ErrInvalidConfig, c.QueueSize)
	}
	return nil
}

type job struct {
	fn   func() error
	done chan error
}

// Worker runs jobs on one dedicated OS thread.
type Worker struct {
	cfg    Config
	id     string
	logger *slog.Logger

	jobs   chan job
	quit   chan struct{}
	exited chan struct{}

	mu        sync.Mutex
	dead      bool
	closeOnce sync.Once
}

// New starts a worker.
func New(cfg Config) (*Worker, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	w := &Worker{
		cfg:    cfg,
		id:     uuid.New().String(),
		logger: logger.With("worker", cfg.Name),
		jobs:   make(chan job, cfg.QueueSize),
		quit:   make(chan struct{}),
		exited: make(chan struct{}),
	}
	ready := make(chan struct{})
	go w.run(ready)
	<-ready
	return w, nil
}

func (w *Worker) run(ready chan<- struct{}) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	defer close(w.exited)

	log.StateChange(w.cfg.EventLogger, w.id, log.StateEntityWorker, "", "RUNNING", w.cfg.Name)
	close(ready)

	for {
		select {
		case j := <-w.jobs:
			if w.cfg.Observer != nil {
				w.cfg.Observer.SetQueueDepth(len(w.jobs))
			}
			if !w.exec(j) {
				return
			}
		case <-w.quit:
			log.StateChange(w.cfg.EventLogger, w.id, log.StateEntityWorker, "RUNNING", "CLOSED", "")
			return
		}
	}
}

// exec runs one job and reports whether the worker survived it.
func (w *Worker) exec(j job) (alive bool) {
	start := time.Now()
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		err := fmt.Errorf("%w: job panicked: %v", ErrWorkerDead, r)
		w.logger.Error("worker job panicked", "panic", r, "stack", string(debug.Stack()))
		w.mu.Lock()
		w.dead = true
		w.mu.Unlock()
		log.StateChange(w.cfg.EventLogger, w.id, log.StateEntityWorker, "RUNNING", "DEAD", fmt.Sprint(r))
		if j.done != nil {
			j.done <- err
		}
		alive = false
	}()

	err := j.fn()
	if w.cfg.Observer != nil {
		w.cfg.Observer.ObserveJob(time.Since(start), err)
	}
	if j.done != nil {
		j.done <- err
	}
	return true
}

// exitErr is the error for jobs that can no longer run.
func (w *Worker) exitErr() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.dead {
		return ErrWorkerDead
	}
	return ErrClosed
}

// Dead reports whether a job has panicked.
func (w *Worker) Dead() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.dead
}

func (w *Worker) submit(ctx context.Context, j job) error {
	select {
	case <-w.exited:
		return w.exitErr()
	case <-w.quit:
		return ErrClosed
	default:
	}
	select {
	case w.jobs <- j:
		return nil
	case <-w.exited:
		return w.exitErr()
	case <-w.quit:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Do implements Executor.
func (w *Worker) Do(ctx context.Context, fn func() error) error {
	j := job{fn: fn, done: make(chan error, 1)}
	if err := w.submit(ctx, j); err != nil {
		return err
	}
	select {
	case err := <-j.done:
		return err
	case <-w.exited:
		select {
		case err := <-j.done:
			return err
		default:
			return w.exitErr()
		}
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Go implements Executor.
func (w *Worker) Go(fn func()) error {
	return w.submit(context.Background(), job{fn: func() error {
		fn()
		return nil
	}})
}

// Close stops the worker after the running job returns. Pending jobs are
// abandoned with ErrClosed.
func (w *Worker) Close() error {
	w.closeOnce.Do(func() {
		close(w.quit)
	})
	<-w.exited
	return nil
}

// inline runs jobs on the caller's goroutine.
type inline struct{}

// Inline returns an Executor without thread affinity. Do runs fn
// directly; Go starts a goroutine.
func Inline() Executor {
	return inline{}
}

func (inline) Do(ctx context.Context, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return fn()
}

func (inline) Go(fn func()) error {
	go fn()
	return nil
}

// Compile-time interface satisfaction checks.
var (
	_ Executor = (*Worker)(nil)
	_ Executor = inline{}
)
