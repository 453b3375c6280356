package scan

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/unisane/unisane-go/pkg/log"
)

// ErrTransferAborted is returned to a push driver whose consumer stopped
// servicing the transfer.
var ErrTransferAborted = errors.New("transfer aborted")

// PushSink receives the events of one push transfer. Calls block while the
// event queue is full.
type PushSink interface {
	Data(ctx context.Context, p []byte) error
	EndOfPage(ctx context.Context) error
	EndOfSession(ctx context.Context) error
}

// PushDriver is a backend transfer that delivers data through callbacks.
type PushDriver interface {
	// Download runs one page transfer, pushing its events into sink, and
	// returns when the transfer is over. Returning nil without signalling
	// means end of page; returning ErrEndOfSession means no documents.
	// ctx is cancelled when the consumer gives up.
	Download(ctx context.Context, sink PushSink) error
}

// PageDecoder decodes the accumulated bytes of a push transfer, tolerating
// truncated data.
type PageDecoder interface {
	Decode(data []byte) (image.Image, error)
	Size(data []byte) (width, height int, ok bool)
	AvailableLines(data []byte) int
}

// Launcher runs background work. worker.Executor satisfies it.
type Launcher interface {
	Go(fn func()) error
}

// goLauncher runs fn on a new goroutine.
type goLauncher struct{}

func (goLauncher) Go(fn func()) error {
	go fn()
	return nil
}

// PushOptions configures the backend-specific parts of a push session.
type PushOptions struct {
	// Decoder decodes transfers. Required.
	Decoder PageDecoder

	// Launcher runs downloads. Nil means a plain goroutine.
	Launcher Launcher

	// FallbackSize supplies the expected page size before any header has
	// arrived. Optional.
	FallbackSize func(ctx context.Context) (width, height int, err error)
}

type pushEventKind uint8

const (
	pushData pushEventKind = iota
	pushEndOfPage
	pushEndOfSession
	pushError
)

type pushEvent struct {
	kind pushEventKind
	data []byte
	err  error
}

// pushSink feeds one download's events into a bounded channel.
type pushSink struct {
	ch       chan pushEvent
	stop     <-chan struct{}
	signaled atomic.Bool
}

func (s *pushSink) send(ctx context.Context, ev pushEvent) error {
	select {
	case s.ch <- ev:
		return nil
	case <-s.stop:
		return ErrTransferAborted
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *pushSink) Data(ctx context.Context, p []byte) error {
	if len(p) == 0 {
		return nil
	}
	return s.send(ctx, pushEvent{kind: pushData, data: append([]byte(nil), p...)})
}

func (s *pushSink) EndOfPage(ctx context.Context) error {
	s.signaled.Store(true)
	return s.send(ctx, pushEvent{kind: pushEndOfPage})
}

func (s *pushSink) EndOfSession(ctx context.Context) error {
	s.signaled.Store(true)
	return s.send(ctx, pushEvent{kind: pushEndOfSession})
}

// Push consumes push transfers. In multi-page mode every page is a new
// download, started by the Read that follows a completed page.
type Push struct {
	drv      PushDriver
	opts     PushOptions
	images   *ImageList
	multiple bool
	id       string
	queue    int
	minBytes int
	logger   *slog.Logger
	events   log.Logger

	mu       sync.Mutex
	state    State
	ch       chan pushEvent
	cancelDL context.CancelFunc
	data     []byte
}

// NewPushSession creates a session over drv and starts the first download.
func NewPushSession(ctx context.Context, drv PushDriver, opts PushOptions, multiple bool, cfg Config) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if opts.Decoder == nil {
		return nil, fmt.Errorf("%w: push session needs a decoder", ErrInvalidConfig)
	}
	if opts.Launcher == nil {
		opts.Launcher = goLauncher{}
	}
	sess := newSessionShell()
	p := &Push{
		drv:      drv,
		opts:     opts,
		images:   sess.images,
		multiple: multiple,
		id:       sess.id,
		queue:    cfg.QueueSize,
		minBytes: cfg.MinPageBytes,
		logger:   cfg.logger(),
		events:   cfg.EventLogger,
	}
	sess.scan = p
	if err := p.startDownload(); err != nil {
		return nil, err
	}
	return sess, nil
}

// startDownload launches the transfer for the next page.
func (p *Push) startDownload() error {
	dctx, cancel := context.WithCancel(context.Background())
	sink := &pushSink{ch: make(chan pushEvent, p.queue), stop: dctx.Done()}

	p.mu.Lock()
	if p.cancelDL != nil {
		p.cancelDL()
	}
	p.ch = sink.ch
	p.cancelDL = cancel
	p.data = nil
	p.mu.Unlock()

	err := p.opts.Launcher.Go(func() {
		err := p.drv.Download(dctx, sink)
		if sink.signaled.Load() || dctx.Err() != nil {
			return
		}
		ev := pushEvent{kind: pushEndOfPage}
		switch {
		case err == nil, errors.Is(err, ErrEndOfPage):
		case errors.Is(err, ErrEndOfSession):
			ev.kind = pushEndOfSession
		default:
			ev = pushEvent{kind: pushError, err: err}
		}
		_ = sink.send(dctx, ev)
	})
	if err != nil {
		cancel()
		return fmt.Errorf("start download: %w", err)
	}
	p.setState(StateScanning, "")
	return nil
}

// Read implements Scan. It blocks until the download produces an event.
func (p *Push) Read(ctx context.Context) (Status, error) {
	switch p.State() {
	case StateSessionDone:
		return StatusSessionComplete, nil
	case StatePageDone:
		if err := p.startDownload(); err != nil {
			return StatusMore, err
		}
	}

	p.mu.Lock()
	ch := p.ch
	p.mu.Unlock()

	var ev pushEvent
	select {
	case ev = <-ch:
	case <-ctx.Done():
		return StatusMore, ctx.Err()
	}

	switch ev.kind {
	case pushData:
		p.mu.Lock()
		p.data = append(p.data, ev.data...)
		p.mu.Unlock()
		return StatusMore, nil

	case pushEndOfPage:
		return p.endOfPage(), nil

	case pushEndOfSession:
		p.finish("no documents")
		return StatusSessionComplete, nil

	default:
		log.Error(p.events, p.id, log.LayerScan, ev.err, "download")
		p.finish("transfer failed")
		return StatusMore, ev.err
	}
}

// endOfPage turns the accumulated transfer into a page. Transfers that are
// too short or undecodable mean the feeder is empty.
func (p *Push) endOfPage() Status {
	p.mu.Lock()
	data := p.data
	p.mu.Unlock()

	if len(data) < p.minBytes {
		p.logger.Info("discarding short transfer", "bytes", len(data), "min", p.minBytes)
		p.finish("short transfer")
		return StatusSessionComplete
	}
	img, err := p.opts.Decoder.Decode(data)
	if err != nil {
		p.logger.Warn("cannot decode transfer, assuming no more pages", "bytes", len(data), "error", err)
		p.finish("undecodable transfer")
		return StatusSessionComplete
	}

	p.images.Append(img)
	if p.multiple {
		p.setState(StatePageDone, "")
	} else {
		p.finish("single page")
	}
	return StatusPageComplete
}

// finish ends the session and stops the producer.
func (p *Push) finish(reason string) bool {
	if !p.setState(StateSessionDone, reason) {
		return false
	}
	p.mu.Lock()
	if p.cancelDL != nil {
		p.cancelDL()
	}
	p.mu.Unlock()
	return true
}

// Cancel implements Scan. The running download's context is cancelled.
func (p *Push) Cancel(ctx context.Context) error {
	p.finish("cancelled")
	return nil
}

// AvailableLines implements Scan. The count is estimated from the bytes
// received.
func (p *Push) AvailableLines(ctx context.Context) (int, int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return 0, p.opts.Decoder.AvailableLines(p.data), nil
}

// ExpectedSize implements Scan.
func (p *Push) ExpectedSize(ctx context.Context) (int, int, error) {
	p.mu.Lock()
	w, h, ok := p.opts.Decoder.Size(p.data)
	p.mu.Unlock()
	if ok {
		return w, h, nil
	}
	if p.opts.FallbackSize != nil {
		return p.opts.FallbackSize(ctx)
	}
	return 0, -1, nil
}

// Image implements Scan. Missing rows of a page in progress are blank.
func (p *Push) Image(ctx context.Context, start, end int) (image.Image, error) {
	p.mu.Lock()
	data := p.data
	p.mu.Unlock()

	img, err := p.opts.Decoder.Decode(data)
	if err != nil {
		return nil, err
	}
	return cropLines(img, start, end), nil
}

// State implements Scan.
func (p *Push) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *Push) setState(s State, reason string) bool {
	p.mu.Lock()
	old := p.state
	if old == s || old == StateSessionDone {
		p.mu.Unlock()
		return false
	}
	p.state = s
	p.mu.Unlock()
	log.StateChange(p.events, p.id, log.StateEntitySession, old.String(), s.String(), reason)
	return true
}

// cropLines restricts img to rows [start, end); a negative end keeps all
// rows from start.
func cropLines(img image.Image, start, end int) image.Image {
	b := img.Bounds()
	h := b.Dy()
	if end < 0 || end > h {
		end = h
	}
	start = max(0, min(start, end))
	if start == 0 && end == h {
		return img
	}
	sub, ok := img.(interface {
		SubImage(r image.Rectangle) image.Image
	})
	if !ok {
		return img
	}
	return sub.SubImage(image.Rect(b.Min.X, b.Min.Y+start, b.Max.X, b.Min.Y+end))
}

// Compile-time interface satisfaction check.
var _ Scan = (*Push)(nil)
