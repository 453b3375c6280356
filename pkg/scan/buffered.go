package scan

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"sync"

	"github.com/unisane/unisane-go/pkg/log"
	"github.com/unisane/unisane-go/pkg/raster"
)

// BufferedDriver is a backend transfer with blocking reads.
type BufferedDriver interface {
	// Start arms the backend for a new page. Returns ErrEndOfSession when
	// the feeder is empty.
	Start(ctx context.Context) error

	// Parameters returns the parameters of the armed page.
	Parameters(ctx context.Context) (raster.Parameters, error)

	// Read fills p with page data. Returns ErrEndOfPage once the page is
	// exhausted and ErrEndOfSession if the backend ran out of documents.
	Read(ctx context.Context, p []byte) (int, error)

	// Cancel aborts the transfer.
	Cancel(ctx context.Context) error
}

// Buffered drives a BufferedDriver through single-page or multi-page
// sessions.
type Buffered struct {
	drv      BufferedDriver
	images   *ImageList
	multiple bool
	id       string
	logger   *slog.Logger
	events   log.Logger

	buf []byte

	mu    sync.Mutex
	state State
	re    *raster.Reassembler
}

// NewBufferedSession creates a session over drv and arms the first page.
// multiple must already account for the feeder rule (FeederDetector).
// An empty feeder at this point yields a session that completes on the
// first Read without images.
func NewBufferedSession(ctx context.Context, drv BufferedDriver, multiple bool, cfg Config) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	sess := newSessionShell()
	b := &Buffered{
		drv:      drv,
		images:   sess.images,
		multiple: multiple,
		id:       sess.id,
		logger:   cfg.logger(),
		events:   cfg.EventLogger,
		buf:      make([]byte, cfg.ReadBufferSize),
	}
	sess.scan = b

	err := b.arm(ctx)
	switch {
	case errors.Is(err, ErrEndOfSession):
		b.setState(StateSessionDone, "no documents")
	case err != nil:
		return nil, err
	}
	return sess, nil
}

// arm starts a page and fetches its parameters.
func (b *Buffered) arm(ctx context.Context) error {
	if err := b.drv.Start(ctx); err != nil {
		if errors.Is(err, ErrEndOfSession) {
			_ = b.drv.Cancel(ctx)
		}
		return err
	}
	params, err := b.drv.Parameters(ctx)
	if err == nil {
		err = params.Validate()
	}
	if err != nil {
		_ = b.drv.Cancel(ctx)
		return fmt.Errorf("get parameters: %w", err)
	}

	b.mu.Lock()
	if b.re == nil {
		b.re = raster.NewReassembler(params, b.logger)
	} else {
		b.re.Reset(params)
	}
	b.mu.Unlock()
	b.setState(StateScanning, "")
	return nil
}

// Read implements Scan.
func (b *Buffered) Read(ctx context.Context) (Status, error) {
	switch b.State() {
	case StateSessionDone:
		return StatusSessionComplete, nil

	case StatePageDone:
		// Multi-page only: re-arm before the next page.
		err := b.arm(ctx)
		if errors.Is(err, ErrEndOfSession) {
			b.setState(StateSessionDone, "no documents")
			return StatusSessionComplete, nil
		}
		if err != nil {
			return StatusMore, err
		}
	}

	n, err := b.drv.Read(ctx, b.buf)

	b.mu.Lock()
	if n > 0 {
		b.re.Feed(b.buf[:n])
	}
	b.mu.Unlock()

	switch {
	case err == nil:
		return StatusMore, nil

	case errors.Is(err, ErrEndOfPage):
		if ferr := b.finishPage(); ferr != nil {
			b.stop(ctx, "invalid page")
			return StatusMore, ferr
		}
		if b.multiple {
			b.setState(StatePageDone, "")
		} else {
			b.stop(ctx, "single page")
		}
		return StatusPageComplete, nil

	case errors.Is(err, ErrEndOfSession):
		// Out of documents mid-read: deliver whatever page data arrived
		// before reporting the end of the session.
		b.mu.Lock()
		hasData := b.re.Size() > 0
		b.mu.Unlock()
		if hasData {
			if ferr := b.finishPage(); ferr != nil {
				b.stop(ctx, "invalid page")
				return StatusMore, ferr
			}
			b.stop(ctx, "no documents")
			return StatusPageComplete, nil
		}
		b.stop(ctx, "no documents")
		return StatusSessionComplete, nil

	default:
		log.Error(b.events, b.id, log.LayerScan, err, "read")
		return StatusMore, err
	}
}

// finishPage materializes the page and appends it to the session.
func (b *Buffered) finishPage() error {
	b.mu.Lock()
	img, err := b.re.Finish()
	b.mu.Unlock()
	if err != nil {
		return fmt.Errorf("materialize page: %w", err)
	}
	b.images.Append(img)
	return nil
}

// stop ends the session and releases the backend transfer.
func (b *Buffered) stop(ctx context.Context, reason string) {
	if !b.setState(StateSessionDone, reason) {
		return
	}
	if err := b.drv.Cancel(ctx); err != nil {
		b.logger.Debug("cancel after end of session failed", "error", err)
	}
}

// Cancel implements Scan.
func (b *Buffered) Cancel(ctx context.Context) error {
	if !b.setState(StateSessionDone, "cancelled") {
		return nil
	}
	b.mu.Lock()
	if b.re != nil {
		b.re.Abandon()
	}
	b.mu.Unlock()
	return b.drv.Cancel(ctx)
}

// AvailableLines implements Scan.
func (b *Buffered) AvailableLines(ctx context.Context) (int, int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.re == nil {
		return 0, 0, nil
	}
	start, end := b.re.AvailableLines()
	return start, end, nil
}

// ExpectedSize implements Scan.
func (b *Buffered) ExpectedSize(ctx context.Context) (int, int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.re == nil {
		return 0, -1, nil
	}
	w, h := b.re.ExpectedSize()
	return w, h, nil
}

// Image implements Scan. After a page completes its lines stay available
// until the next page is armed.
func (b *Buffered) Image(ctx context.Context, start, end int) (image.Image, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.re == nil {
		return nil, fmt.Errorf("%w: no page", ErrEndOfSession)
	}
	return b.re.Image(start, end)
}

// State implements Scan.
func (b *Buffered) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// setState moves to s and reports whether the state changed.
// StateSessionDone is terminal.
func (b *Buffered) setState(s State, reason string) bool {
	b.mu.Lock()
	old := b.state
	if old == s || old == StateSessionDone {
		b.mu.Unlock()
		return false
	}
	b.state = s
	b.mu.Unlock()
	log.StateChange(b.events, b.id, log.StateEntitySession, old.String(), s.String(), reason)
	return true
}

// Compile-time interface satisfaction check.
var _ Scan = (*Buffered)(nil)
