//go:build unix

package transport

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewFIFOPair(t *testing.T) {
	p, err := NewFIFOPair()
	require.NoError(t, err)
	defer p.Remove()

	assert.True(t, strings.HasPrefix(filepath.Base(p.Dir), "unisane-"))
	for _, path := range []string{p.C2S, p.S2C} {
		fi, err := os.Stat(path)
		require.NoError(t, err)
		assert.NotZero(t, fi.Mode()&os.ModeNamedPipe, "%s is not a FIFO", path)
	}

	require.NoError(t, p.Remove())
	_, err = os.Stat(p.Dir)
	assert.True(t, os.IsNotExist(err))
}

func TestFIFOChannelRoundTrip(t *testing.T) {
	p, err := NewFIFOPair()
	require.NoError(t, err)
	defer p.Remove()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	serverErr := make(chan error, 1)
	go func() {
		ch, err := OpenServer(ctx, p.C2S, p.S2C)
		if err != nil {
			serverErr <- err
			return
		}
		defer ch.Close()
		req, err := ch.ReadFrame()
		if err != nil {
			serverErr <- err
			return
		}
		serverErr <- ch.WriteFrame(append(req, '!'))
	}()

	client, err := p.OpenClient(ctx)
	require.NoError(t, err)
	defer client.Close()

	require.NoError(t, client.WriteFrame([]byte("get_devices")))
	resp, err := client.ReadFrame()
	require.NoError(t, err)
	assert.Equal(t, "get_devices!", string(resp))
	require.NoError(t, <-serverErr)

	require.NoError(t, client.Close())
	require.NoError(t, client.Close())
}

func TestFIFOOpenHonorsContext(t *testing.T) {
	p, err := NewFIFOPair()
	require.NoError(t, err)
	defer p.Remove()

	// Nobody opens the server side.
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err = p.OpenClient(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}
