//go:build unix

package transport

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sys/unix"
)

// FIFO names inside the channel directory.
const (
	ClientToServerName = "c2s"
	ServerToClientName = "s2c"
)

// ErrChannelClosed is returned when using a closed channel.
var ErrChannelClosed = errors.New("channel closed")

// FIFOPair is a pair of named pipes in a private temporary directory.
type FIFOPair struct {
	Dir string
	C2S string
	S2C string
}

// NewFIFOPair creates the directory and both FIFOs. The directory is
// removed again if any step fails.
func NewFIFOPair() (*FIFOPair, error) {
	dir := filepath.Join(os.TempDir(), "unisane-"+uuid.NewString())
	if err := os.Mkdir(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create channel dir: %w", err)
	}
	p := &FIFOPair{
		Dir: dir,
		C2S: filepath.Join(dir, ClientToServerName),
		S2C: filepath.Join(dir, ServerToClientName),
	}
	for _, path := range []string{p.C2S, p.S2C} {
		if err := unix.Mkfifo(path, 0o600); err != nil {
			os.RemoveAll(dir)
			return nil, fmt.Errorf("mkfifo %s: %w", path, err)
		}
	}
	return p, nil
}

// OpenClient opens the client ends: write c2s, read s2c.
// Blocks until the server opens its ends or ctx is done.
func (p *FIFOPair) OpenClient(ctx context.Context) (*Channel, error) {
	w, err := openFIFO(ctx, p.C2S, os.O_WRONLY)
	if err != nil {
		return nil, err
	}
	r, err := openFIFO(ctx, p.S2C, os.O_RDONLY)
	if err != nil {
		w.Close()
		return nil, err
	}
	return newChannel(r, w), nil
}

// Remove deletes both FIFOs and the directory.
func (p *FIFOPair) Remove() error {
	return os.RemoveAll(p.Dir)
}

// OpenServer opens the server ends of an existing pair: read c2s, write s2c.
func OpenServer(ctx context.Context, c2s, s2c string) (*Channel, error) {
	r, err := openFIFO(ctx, c2s, os.O_RDONLY)
	if err != nil {
		return nil, err
	}
	w, err := openFIFO(ctx, s2c, os.O_WRONLY)
	if err != nil {
		r.Close()
		return nil, err
	}
	return newChannel(r, w), nil
}

// openFIFO opens one end of a FIFO. Opening a FIFO blocks until the peer
// opens the other end; if ctx ends first the pending open is released by
// opening the FIFO read-write, which never blocks.
func openFIFO(ctx context.Context, path string, flag int) (*os.File, error) {
	type result struct {
		f   *os.File
		err error
	}
	done := make(chan result, 1)
	go func() {
		f, err := os.OpenFile(path, flag, 0)
		done <- result{f, err}
	}()

	select {
	case res := <-done:
		if res.err != nil {
			return nil, fmt.Errorf("open %s: %w", path, res.err)
		}
		return res.f, nil
	case <-ctx.Done():
		if unblock, err := os.OpenFile(path, os.O_RDWR, 0); err == nil {
			res := <-done
			if res.f != nil {
				res.f.Close()
			}
			unblock.Close()
		}
		return nil, fmt.Errorf("open %s: %w", path, ctx.Err())
	}
}

// Channel is one side of an open FIFO pair.
type Channel struct {
	*Framer

	r, w *os.File

	closeOnce sync.Once
	closeErr  error
}

func newChannel(r, w *os.File) *Channel {
	return &Channel{Framer: NewFramer(r, w), r: r, w: w}
}

// Close closes both ends. Safe to call multiple times.
func (c *Channel) Close() error {
	c.closeOnce.Do(func() {
		c.closeErr = errors.Join(c.w.Close(), c.r.Close())
	})
	return c.closeErr
}

var _ FrameReadWriter = (*Channel)(nil)
