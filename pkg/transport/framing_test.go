package transport

import (
	"bytes"
	"encoding/binary"
	"io"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unisane/unisane-go/pkg/log"
)

// prefix returns a native-endian length prefix.
func prefix(n uint32) []byte {
	var b [LengthPrefixSize]byte
	binary.NativeEndian.PutUint32(b[:], n)
	return b[:]
}

func TestFrameRoundTrip(t *testing.T) {
	payloads := map[string][]byte{
		"command":     []byte("get_devices"),
		"one byte":    {0x01},
		"gray line":   bytes.Repeat([]byte{0x80}, 2550),
		"rgb page":    bytes.Repeat([]byte{0x10, 0x20, 0x30}, 64*1024),
		"binary data": {0x00, 0xff, 0x00, 0xff},
	}
	for name, payload := range payloads {
		t.Run(name, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, NewFrameWriter(&buf).WriteFrame(payload))
			assert.Equal(t, FrameSize(len(payload)), buf.Len())
			assert.Equal(t, prefix(uint32(len(payload))), buf.Bytes()[:LengthPrefixSize])

			got, err := NewFrameReader(&buf).ReadFrame()
			require.NoError(t, err)
			assert.Equal(t, payload, got)
		})
	}
}

func TestFrameSequence(t *testing.T) {
	var buf bytes.Buffer
	w := NewFrameWriter(&buf)
	cmds := []string{"open", "get_options", "scan", "scan_read", "exit"}
	for _, c := range cmds {
		require.NoError(t, w.WriteFrame([]byte(c)))
	}

	r := NewFrameReader(&buf)
	for _, c := range cmds {
		got, err := r.ReadFrame()
		require.NoError(t, err)
		assert.Equal(t, c, string(got))
	}
	_, err := r.ReadFrame()
	assert.Equal(t, io.EOF, err)
}

func TestFrameWriterErrors(t *testing.T) {
	var buf bytes.Buffer
	w := NewFrameWriterWithMaxSize(&buf, 8)

	assert.ErrorIs(t, w.WriteFrame(nil), ErrMessageEmpty)
	assert.ErrorIs(t, w.WriteFrame(make([]byte, 9)), ErrMessageTooLarge)
	assert.Zero(t, buf.Len(), "rejected frames must not be written")

	w.SetMaxMessageSize(16)
	assert.NoError(t, w.WriteFrame(make([]byte, 9)))
}

func TestFrameReaderErrors(t *testing.T) {
	tests := []struct {
		name  string
		input []byte
		max   uint32
		want  error
	}{
		{"zero length", prefix(0), DefaultMaxMessageSize, ErrMessageEmpty},
		{"over limit", prefix(1000), 100, ErrMessageTooLarge},
		{"short prefix", []byte{0x01, 0x00}, DefaultMaxMessageSize, ErrFrameTruncated},
		{"short payload", append(prefix(10), "abc"...), DefaultMaxMessageSize, ErrFrameTruncated},
		{"prefix only", prefix(4), DefaultMaxMessageSize, ErrFrameTruncated},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewFrameReaderWithMaxSize(bytes.NewReader(tt.input), tt.max)
			_, err := r.ReadFrame()
			assert.ErrorIs(t, err, tt.want)
		})
	}

	_, err := NewFrameReader(bytes.NewReader(nil)).ReadFrame()
	assert.Equal(t, io.EOF, err, "clean EOF between frames is not an error kind")
}

func TestFramerRequestResponse(t *testing.T) {
	c2sR, c2sW := io.Pipe()
	s2cR, s2cW := io.Pipe()
	defer c2sR.Close()
	defer s2cR.Close()

	client := NewFramer(s2cR, c2sW)
	server := NewFramer(c2sR, s2cW)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			req, err := server.ReadFrame()
			if err != nil {
				s2cW.Close()
				return
			}
			if err := server.WriteFrame(append([]byte("ok "), req...)); err != nil {
				return
			}
		}
	}()

	for _, cmd := range []string{"open", "scan_read"} {
		require.NoError(t, client.WriteFrame([]byte(cmd)))
		got, err := client.ReadFrame()
		require.NoError(t, err)
		assert.Equal(t, "ok "+cmd, string(got))
	}

	c2sW.Close()
	wg.Wait()
	_, err := client.ReadFrame()
	assert.Equal(t, io.EOF, err)
}

func TestFramerSetMaxMessageSize(t *testing.T) {
	var buf bytes.Buffer
	f := NewFramerWithMaxSize(&buf, &buf, 4)
	assert.ErrorIs(t, f.WriteFrame([]byte("scan_read")), ErrMessageTooLarge)

	f.SetMaxMessageSize(64)
	require.NoError(t, f.WriteFrame([]byte("scan_read")))
	got, err := f.ReadFrame()
	require.NoError(t, err)
	assert.Equal(t, "scan_read", string(got))
}

type eventRecorder struct {
	mu     sync.Mutex
	events []log.Event
}

func (r *eventRecorder) Log(event log.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *eventRecorder) all() []log.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]log.Event(nil), r.events...)
}

func TestFrameEvents(t *testing.T) {
	rec := &eventRecorder{}
	var buf bytes.Buffer

	w := NewFrameWriter(&buf)
	w.SetLogger(rec, "chan-1", log.RoleClient)
	r := NewFrameReader(&buf)
	r.SetLogger(rec, "chan-1", log.RoleDaemon)

	require.NoError(t, w.WriteFrame([]byte("get_devices")))
	_, err := r.ReadFrame()
	require.NoError(t, err)

	events := rec.all()
	require.Len(t, events, 2)

	out, in := events[0], events[1]
	assert.Equal(t, log.DirectionOut, out.Direction)
	assert.Equal(t, log.RoleClient, out.Role)
	assert.Equal(t, log.DirectionIn, in.Direction)
	assert.Equal(t, log.RoleDaemon, in.Role)
	for _, e := range events {
		assert.Equal(t, "chan-1", e.SessionID)
		assert.Equal(t, log.LayerTransport, e.Layer)
		assert.Equal(t, log.CategoryMessage, e.Category)
		assert.False(t, e.Timestamp.IsZero())
		require.NotNil(t, e.Frame)
		assert.Equal(t, FrameSize(len("get_devices")), e.Frame.Size)
		assert.Equal(t, []byte("get_devices"), e.Frame.Data)
		assert.False(t, e.Frame.Truncated)
	}
}

func TestFrameEventsTruncateLargePayloads(t *testing.T) {
	rec := &eventRecorder{}
	var buf bytes.Buffer
	f := NewFramer(&buf, &buf)
	f.SetLogger(rec, "chan-2", log.RoleDaemon)

	page := bytes.Repeat([]byte{0xAB}, MaxLogFrameDataSize*3)
	require.NoError(t, f.WriteFrame(page))

	events := rec.all()
	require.Len(t, events, 1)
	assert.True(t, events[0].Frame.Truncated)
	assert.Len(t, events[0].Frame.Data, MaxLogFrameDataSize)
	assert.Equal(t, FrameSize(len(page)), events[0].Frame.Size)
}

func TestFramerWithoutLogger(t *testing.T) {
	var buf bytes.Buffer
	f := NewFramer(&buf, &buf)
	f.SetLogger(nil, "chan-3", log.RoleLocal)

	require.NoError(t, f.WriteFrame([]byte("exit")))
	got, err := f.ReadFrame()
	require.NoError(t, err)
	assert.Equal(t, "exit", string(got))
}

func BenchmarkFrameRoundTrip(b *testing.B) {
	line := bytes.Repeat([]byte{0x7f}, 3*2550)
	var buf bytes.Buffer
	w := NewFrameWriter(&buf)
	r := NewFrameReader(&buf)

	b.SetBytes(int64(len(line)))
	b.ResetTimer()
	for b.Loop() {
		if err := w.WriteFrame(line); err != nil {
			b.Fatal(err)
		}
		if _, err := r.ReadFrame(); err != nil {
			b.Fatal(err)
		}
	}
}
