package scan

import (
	"context"
	"fmt"
	"image"
	"sync"

	"github.com/google/uuid"
)

// Scan is a scan state machine. Read must not be called concurrently on
// one Scan; the inspection methods may be called at any time.
type Scan interface {
	// Read advances the transfer by one step.
	Read(ctx context.Context) (Status, error)

	// Cancel aborts the transfer. It is a no-op once the session is done.
	Cancel(ctx context.Context) error

	// AvailableLines returns the half-open range of lines of the current
	// page that can be materialized.
	AvailableLines(ctx context.Context) (start, end int, err error)

	// ExpectedSize returns the current page size. The height is negative
	// when it is not known before the end of the page.
	ExpectedSize(ctx context.Context) (width, height int, err error)

	// Image materializes lines [start, end) of the current page; a
	// negative end means every available line.
	Image(ctx context.Context, start, end int) (image.Image, error)

	// State returns the machine's lifecycle state.
	State() State
}

// ImageList is an append-only, concurrency-safe list of completed pages.
type ImageList struct {
	mu     sync.RWMutex
	images []image.Image
}

// NewImageList creates an empty list.
func NewImageList() *ImageList {
	return &ImageList{}
}

// Append adds a completed page.
func (l *ImageList) Append(img image.Image) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.images = append(l.images, img)
}

// Len returns the number of completed pages.
func (l *ImageList) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.images)
}

// At returns page i.
func (l *ImageList) At(i int) (image.Image, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if i < 0 || i >= len(l.images) {
		return nil, fmt.Errorf("image index %d out of range [0, %d)", i, len(l.images))
	}
	return l.images[i], nil
}

// Snapshot returns a copy of the list.
func (l *ImageList) Snapshot() []image.Image {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]image.Image, len(l.images))
	copy(out, l.images)
	return out
}

// Session is the result of one scan request: completed pages plus the
// machine producing them.
type Session struct {
	id     string
	images *ImageList
	scan   Scan

	closeOnce sync.Once
	closeErr  error
}

// NewSession creates a session around a machine that appends to images.
func NewSession(images *ImageList, s Scan) *Session {
	return &Session{id: uuid.New().String(), images: images, scan: s}
}

// newSessionShell creates a session whose machine is attached later.
func newSessionShell() *Session {
	return &Session{id: uuid.New().String(), images: NewImageList()}
}

// ID returns the session identifier used in event logs.
func (s *Session) ID() string {
	return s.id
}

// Scan returns the session's state machine.
func (s *Session) Scan() Scan {
	return s.scan
}

// Images returns the pages completed so far, in capture order.
func (s *Session) Images() []image.Image {
	return s.images.Snapshot()
}

// Len returns the number of completed pages.
func (s *Session) Len() int {
	return s.images.Len()
}

// ImageList returns the underlying list.
func (s *Session) ImageList() *ImageList {
	return s.images
}

// Close cancels any in-flight page. Repeated calls are no-ops.
func (s *Session) Close(ctx context.Context) error {
	s.closeOnce.Do(func() {
		s.closeErr = s.scan.Cancel(ctx)
	})
	return s.closeErr
}

// Read advances the session's machine.
//
// Deprecated: use Scan().Read.
func (s *Session) Read(ctx context.Context) (Status, error) {
	return s.scan.Read(ctx)
}

// NumImages returns the number of completed pages.
//
// Deprecated: use Len or Images.
func (s *Session) NumImages() int {
	return s.images.Len()
}

// Image returns completed page i.
//
// Deprecated: use Images.
func (s *Session) Image(i int) (image.Image, error) {
	return s.images.At(i)
}
