package scan

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/bmp"

	"github.com/unisane/unisane-go/pkg/raster"
)

// fakePush delivers one encoded page per download.
type fakePush struct {
	mu        sync.Mutex
	pages     [][]byte
	next      int
	chunk     int
	err       error
	explicit  bool
	downloads int
	block     chan struct{}
}

func (f *fakePush) Download(ctx context.Context, sink PushSink) error {
	f.mu.Lock()
	f.downloads++
	if f.err != nil {
		err := f.err
		f.mu.Unlock()
		return err
	}
	if f.next >= len(f.pages) {
		f.mu.Unlock()
		return ErrEndOfSession
	}
	data := f.pages[f.next]
	f.next++
	block := f.block
	f.mu.Unlock()

	for len(data) > 0 {
		n := min(f.chunk, len(data))
		if err := sink.Data(ctx, data[:n]); err != nil {
			return err
		}
		data = data[n:]
		if block != nil {
			select {
			case <-block:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	if f.explicit {
		return sink.EndOfPage(ctx)
	}
	return nil
}

func (f *fakePush) downloadCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.downloads
}

func bmpPage(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetGray(x, y, color.Gray{Y: uint8(x + y)})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, bmp.Encode(&buf, img))
	return buf.Bytes()
}

func pushOptions() PushOptions {
	return PushOptions{Decoder: raster.BMPDecoder{}}
}

func readUntil(t *testing.T, s Scan, limit int) Status {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for i := 0; i < limit; i++ {
		st, err := s.Read(ctx)
		require.NoError(t, err)
		if st != StatusMore {
			return st
		}
	}
	t.Fatalf("no page boundary after %d reads", limit)
	return StatusMore
}

func TestPushSinglePage(t *testing.T) {
	drv := &fakePush{pages: [][]byte{bmpPage(t, 40, 30)}, chunk: 256}

	sess, err := NewPushSession(context.Background(), drv, pushOptions(), false, DefaultConfig())
	require.NoError(t, err)

	assert.Equal(t, StatusPageComplete, readUntil(t, sess.Scan(), 100))
	assert.Equal(t, StateSessionDone, sess.Scan().State())
	require.Equal(t, 1, sess.Len())
	assert.Equal(t, image.Rect(0, 0, 40, 30), sess.Images()[0].Bounds())

	st, err := sess.Scan().Read(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StatusSessionComplete, st)
	assert.Equal(t, 1, drv.downloadCount())
}

func TestPushMultiPageDownloadsPerPage(t *testing.T) {
	drv := &fakePush{
		pages:    [][]byte{bmpPage(t, 40, 30), bmpPage(t, 40, 30), bmpPage(t, 40, 30)},
		chunk:    1000,
		explicit: true,
	}

	sess, err := NewPushSession(context.Background(), drv, pushOptions(), true, DefaultConfig())
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		assert.Equal(t, StatusPageComplete, readUntil(t, sess.Scan(), 100))
		assert.Equal(t, StatePageDone, sess.Scan().State())
	}
	assert.Equal(t, StatusSessionComplete, readUntil(t, sess.Scan(), 100))
	assert.Equal(t, 3, sess.Len())
	assert.Equal(t, 4, drv.downloadCount())
}

func TestPushShortTransferEndsSession(t *testing.T) {
	drv := &fakePush{pages: [][]byte{bmpPage(t, 40, 30), {'B', 'M', 0, 0}}, chunk: 4096}

	sess, err := NewPushSession(context.Background(), drv, pushOptions(), true, DefaultConfig())
	require.NoError(t, err)

	assert.Equal(t, StatusPageComplete, readUntil(t, sess.Scan(), 100))
	assert.Equal(t, StatusSessionComplete, readUntil(t, sess.Scan(), 100))
	assert.Equal(t, 1, sess.Len())
}

func TestPushUndecodableTransferEndsSession(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MinPageBytes = 4
	drv := &fakePush{pages: [][]byte{bytes.Repeat([]byte{0xff}, 64)}, chunk: 64}

	sess, err := NewPushSession(context.Background(), drv, pushOptions(), true, cfg)
	require.NoError(t, err)

	assert.Equal(t, StatusSessionComplete, readUntil(t, sess.Scan(), 10))
	assert.Zero(t, sess.Len())
}

func TestPushDriverErrorSurfaces(t *testing.T) {
	boom := errors.New("paper jam")
	drv := &fakePush{err: boom}

	sess, err := NewPushSession(context.Background(), drv, pushOptions(), false, DefaultConfig())
	require.NoError(t, err)

	_, err = sess.Scan().Read(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, StateSessionDone, sess.Scan().State())
}

func TestPushProgressInspection(t *testing.T) {
	data := bmpPage(t, 40, 30)
	drv := &fakePush{pages: [][]byte{data}, chunk: 1078 + 40*10, block: make(chan struct{})}
	fallbackCalls := 0
	opts := pushOptions()
	opts.FallbackSize = func(ctx context.Context) (int, int, error) {
		fallbackCalls++
		return 100, 200, nil
	}

	sess, err := NewPushSession(context.Background(), drv, opts, false, DefaultConfig())
	require.NoError(t, err)

	w, h, err := sess.Scan().ExpectedSize(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 100, w)
	assert.Equal(t, 200, h)
	assert.Equal(t, 1, fallbackCalls)

	st, err := sess.Scan().Read(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StatusMore, st)

	w, h, err = sess.Scan().ExpectedSize(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 40, w)
	assert.Equal(t, 30, h)

	_, end, err := sess.Scan().AvailableLines(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 10, end)

	img, err := sess.Scan().Image(context.Background(), 0, 10)
	require.NoError(t, err)
	assert.Equal(t, 10, img.Bounds().Dy())

	require.NoError(t, sess.Close(context.Background()))
	assert.Equal(t, StateSessionDone, sess.Scan().State())
}

func TestPushReadHonorsContext(t *testing.T) {
	drv := &fakePush{pages: [][]byte{bmpPage(t, 40, 30)}, chunk: 100, block: make(chan struct{})}

	sess, err := NewPushSession(context.Background(), drv, pushOptions(), false, DefaultConfig())
	require.NoError(t, err)

	_, err = sess.Scan().Read(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = sess.Scan().Read(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	require.NoError(t, sess.Scan().Cancel(context.Background()))
}

func TestNewPushSessionRequiresDecoder(t *testing.T) {
	_, err := NewPushSession(context.Background(), &fakePush{}, PushOptions{}, false, DefaultConfig())
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

type failingLauncher struct{}

func (failingLauncher) Go(func()) error { return errors.New("worker dead") }

func TestNewPushSessionLauncherFailure(t *testing.T) {
	opts := pushOptions()
	opts.Launcher = failingLauncher{}
	_, err := NewPushSession(context.Background(), &fakePush{}, opts, false, DefaultConfig())
	assert.Error(t, err)
}
