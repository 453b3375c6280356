package scan

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unisane/unisane-go/pkg/raster"
)

// fakeBuffered serves a fixed list of gray pages.
type fakeBuffered struct {
	mu       sync.Mutex
	width    int
	pages    [][]byte
	next     int
	current  []byte
	started  bool
	cancels  int
	readErr  error
	eosAfter int // return ErrEndOfSession after this many bytes of the first page; 0 disables
}

func newFakeBuffered(width int, pages ...[]byte) *fakeBuffered {
	return &fakeBuffered{width: width, pages: pages}
}

func (f *fakeBuffered) Start(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.next >= len(f.pages) {
		return ErrEndOfSession
	}
	f.current = f.pages[f.next]
	f.next++
	f.started = true
	return nil
}

func (f *fakeBuffered) Parameters(ctx context.Context) (raster.Parameters, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return raster.Parameters{
		Format:        raster.FrameGray,
		LastFrame:     true,
		BytesPerLine:  f.width,
		PixelsPerLine: f.width,
		Lines:         len(f.current) / f.width,
		Depth:         8,
	}, nil
}

func (f *fakeBuffered) Read(ctx context.Context, p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.readErr != nil {
		return 0, f.readErr
	}
	if f.eosAfter > 0 && len(f.current) <= len(f.pages[0])-f.eosAfter {
		return 0, ErrEndOfSession
	}
	if len(f.current) == 0 {
		return 0, ErrEndOfPage
	}
	n := copy(p, f.current)
	f.current = f.current[n:]
	return n, nil
}

func (f *fakeBuffered) Cancel(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancels++
	f.started = false
	return nil
}

func (f *fakeBuffered) cancelCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cancels
}

func page(width, lines int, fill byte) []byte {
	b := make([]byte, width*lines)
	for i := range b {
		b[i] = fill + byte(i%7)
	}
	return b
}

func smallChunks() Config {
	cfg := DefaultConfig()
	cfg.ReadBufferSize = 5
	return cfg
}

// drain reads until a non-More status, failing after limit reads.
func drain(t *testing.T, s Scan, limit int) Status {
	t.Helper()
	for i := 0; i < limit; i++ {
		st, err := s.Read(context.Background())
		require.NoError(t, err)
		if st != StatusMore {
			return st
		}
	}
	t.Fatalf("no page boundary after %d reads", limit)
	return StatusMore
}

func TestBufferedSinglePage(t *testing.T) {
	ctx := context.Background()
	drv := newFakeBuffered(4, page(4, 6, 10))

	sess, err := NewBufferedSession(ctx, drv, false, smallChunks())
	require.NoError(t, err)
	assert.Equal(t, StateScanning, sess.Scan().State())

	w, h, err := sess.Scan().ExpectedSize(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, w)
	assert.Equal(t, 6, h)

	// First read delivers 5 bytes: one complete line.
	st, err := sess.Scan().Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, StatusMore, st)
	start, end, err := sess.Scan().AvailableLines(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, start)
	assert.Equal(t, 1, end)

	assert.Equal(t, StatusPageComplete, drain(t, sess.Scan(), 20))
	assert.Equal(t, StateSessionDone, sess.Scan().State())
	require.Equal(t, 1, sess.Len())

	img := sess.Images()[0]
	assert.Equal(t, 4, img.Bounds().Dx())
	assert.Equal(t, 6, img.Bounds().Dy())

	st, err = sess.Scan().Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, StatusSessionComplete, st)
	assert.Equal(t, 1, drv.cancelCount())
}

func TestBufferedMultiPageUntilFeederEmpty(t *testing.T) {
	ctx := context.Background()
	drv := newFakeBuffered(3, page(3, 2, 0), page(3, 4, 50), page(3, 1, 100))

	sess, err := NewBufferedSession(ctx, drv, true, smallChunks())
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		assert.Equal(t, StatusPageComplete, drain(t, sess.Scan(), 20), "page %d", i)
		assert.Equal(t, StatePageDone, sess.Scan().State())
		assert.Equal(t, i+1, sess.Len())
	}

	st, err := sess.Scan().Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, StatusSessionComplete, st)
	assert.Equal(t, StateSessionDone, sess.Scan().State())

	heights := []int{2, 4, 1}
	for i, img := range sess.Images() {
		assert.Equal(t, heights[i], img.Bounds().Dy())
	}
}

func TestBufferedEmptyFeederAtStart(t *testing.T) {
	ctx := context.Background()
	drv := newFakeBuffered(4)

	sess, err := NewBufferedSession(ctx, drv, true, DefaultConfig())
	require.NoError(t, err)
	assert.Equal(t, StateSessionDone, sess.Scan().State())

	st, err := sess.Scan().Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, StatusSessionComplete, st)
	assert.Zero(t, sess.Len())
}

func TestBufferedEndOfSessionMidPage(t *testing.T) {
	ctx := context.Background()
	drv := newFakeBuffered(4, page(4, 4, 1))
	drv.eosAfter = 8

	sess, err := NewBufferedSession(ctx, drv, true, smallChunks())
	require.NoError(t, err)

	assert.Equal(t, StatusPageComplete, drain(t, sess.Scan(), 20))
	require.Equal(t, 1, sess.Len())
	assert.Equal(t, 2, sess.Images()[0].Bounds().Dy())

	st, err := sess.Scan().Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, StatusSessionComplete, st)
}

func TestBufferedReadErrorKeepsSession(t *testing.T) {
	ctx := context.Background()
	drv := newFakeBuffered(4, page(4, 2, 1))
	drv.readErr = errors.New("device jammed")

	sess, err := NewBufferedSession(ctx, drv, false, DefaultConfig())
	require.NoError(t, err)

	_, err = sess.Scan().Read(ctx)
	require.Error(t, err)
	assert.Equal(t, StateScanning, sess.Scan().State())

	drv.mu.Lock()
	drv.readErr = nil
	drv.mu.Unlock()
	assert.Equal(t, StatusPageComplete, drain(t, sess.Scan(), 5))
}

func TestBufferedCancelIdempotent(t *testing.T) {
	ctx := context.Background()
	drv := newFakeBuffered(4, page(4, 2, 1), page(4, 2, 1))

	sess, err := NewBufferedSession(ctx, drv, true, DefaultConfig())
	require.NoError(t, err)

	require.NoError(t, sess.Scan().Cancel(ctx))
	require.NoError(t, sess.Scan().Cancel(ctx))
	require.NoError(t, sess.Close(ctx))
	assert.Equal(t, 1, drv.cancelCount())

	st, err := sess.Scan().Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, StatusSessionComplete, st)
	assert.Zero(t, sess.Len())
}

func TestBufferedCancelMidLineLogsDroppedBytes(t *testing.T) {
	ctx := context.Background()
	var logs bytes.Buffer
	cfg := smallChunks()
	cfg.Logger = slog.New(slog.NewTextHandler(&logs, nil))
	drv := newFakeBuffered(4, page(4, 3, 20))

	sess, err := NewBufferedSession(ctx, drv, false, cfg)
	require.NoError(t, err)

	// One read of 5 bytes: one closed line plus one byte of the next.
	st, err := sess.Scan().Read(ctx)
	require.NoError(t, err)
	require.Equal(t, StatusMore, st)

	require.NoError(t, sess.Scan().Cancel(ctx))
	assert.Contains(t, logs.String(), "unexpected line size")
	assert.Contains(t, logs.String(), "op=abandon")

	img, err := sess.Scan().Image(ctx, 0, -1)
	require.NoError(t, err)
	assert.Equal(t, 1, img.Bounds().Dy())
}

func TestBufferedImageOfPageInProgress(t *testing.T) {
	ctx := context.Background()
	drv := newFakeBuffered(4, page(4, 3, 20))

	sess, err := NewBufferedSession(ctx, drv, false, smallChunks())
	require.NoError(t, err)

	_, err = sess.Scan().Read(ctx)
	require.NoError(t, err)
	_, err = sess.Scan().Read(ctx)
	require.NoError(t, err)

	img, err := sess.Scan().Image(ctx, 0, -1)
	require.NoError(t, err)
	assert.Equal(t, 2, img.Bounds().Dy())
}

func TestNewBufferedSessionInvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ReadBufferSize = 0
	_, err := NewBufferedSession(context.Background(), newFakeBuffered(4), false, cfg)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}
