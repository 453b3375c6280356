package daemon_test

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/unisane/unisane-go/pkg/backend"
	"github.com/unisane/unisane-go/pkg/backend/sane"
	"github.com/unisane/unisane-go/pkg/backend/virtual"
	"github.com/unisane/unisane-go/pkg/daemon"
	"github.com/unisane/unisane-go/pkg/log"
	"github.com/unisane/unisane-go/pkg/option"
	"github.com/unisane/unisane-go/pkg/raster"
	"github.com/unisane/unisane-go/pkg/scan"
	"github.com/unisane/unisane-go/pkg/transport"
	"github.com/unisane/unisane-go/pkg/wire"
)

type pipeDaemon struct {
	client *daemon.Client
	served chan error

	// c2sW is the client's request stream; closing it hangs up.
	c2sW *io.PipeWriter
}

// startDaemon serves b over in-memory pipes and returns a connected client.
func startDaemon(t *testing.T, b backend.Backend, cfg daemon.Config) *pipeDaemon {
	t.Helper()
	c2sR, c2sW := io.Pipe()
	s2cR, s2cW := io.Pipe()

	srv, err := daemon.NewServer(b, cfg)
	require.NoError(t, err)

	d := &pipeDaemon{served: make(chan error, 1), c2sW: c2sW}
	go func() {
		err := srv.Serve(context.Background(), transport.NewFramer(c2sR, s2cW))
		s2cW.Close()
		d.served <- err
	}()

	d.client, err = daemon.NewClient(transport.NewFramer(s2cR, c2sW), cfg)
	require.NoError(t, err)
	d.client.OnClose(func() error { return c2sW.Close() })
	t.Cleanup(func() { _ = d.client.Close() })
	return d
}

func newVirtual(t *testing.T, vcfg virtual.SaneConfig) *sane.Backend {
	t.Helper()
	b, err := sane.New(virtual.NewSaneDriver(vcfg), sane.DefaultConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })
	return b
}

func open(t *testing.T, c *daemon.Client, name string) backend.Device {
	t.Helper()
	dev, err := c.Open(context.Background(), name)
	require.NoError(t, err)
	return dev
}

func lookup(t *testing.T, dev backend.Device, name string) option.Option {
	t.Helper()
	opts, err := dev.Options(context.Background())
	require.NoError(t, err)
	o, err := opts.Lookup(name)
	require.NoError(t, err)
	return o
}

func TestRemoteDevices(t *testing.T) {
	d := startDaemon(t, newVirtual(t, virtual.DefaultSaneConfig()), daemon.DefaultConfig())
	ctx := context.Background()

	devs, err := d.client.Devices(ctx, false)
	require.NoError(t, err)
	require.Len(t, devs, 2)
	assert.Equal(t, "test:0", devs[0].Name)

	dev := open(t, d.client, "test:1")
	assert.Equal(t, "frontend-tester", dev.Info().Model)

	_, err = d.client.Open(ctx, "missing")
	assert.ErrorIs(t, err, backend.ErrBackend)
	assert.NoError(t, d.client.Err(), "backend errors must not break the channel")
}

func TestRemoteOptionsMatchLocal(t *testing.T) {
	ctx := context.Background()
	local := newVirtual(t, virtual.DefaultSaneConfig())
	ldev, err := local.Open(ctx, "test:0")
	require.NoError(t, err)
	lopts, err := ldev.Options(ctx)
	require.NoError(t, err)
	require.NoError(t, ldev.Close())

	d := startDaemon(t, newVirtual(t, virtual.DefaultSaneConfig()), daemon.DefaultConfig())
	dev := open(t, d.client, "test:0")
	ropts, err := dev.Options(ctx)
	require.NoError(t, err)

	assert.Equal(t, lopts.Names(), ropts.Names())

	v, err := lookup(t, dev, "resolution").Value(ctx)
	require.NoError(t, err)
	assert.Equal(t, 50, v)
}

func TestRemoteInactiveOption(t *testing.T) {
	ctx := context.Background()
	d := startDaemon(t, newVirtual(t, virtual.DefaultSaneConfig()), daemon.DefaultConfig())
	dev := open(t, d.client, "test:0")

	threePass := lookup(t, dev, "three-pass")
	_, err := threePass.Value(ctx)
	assert.ErrorIs(t, err, option.ErrInactive)

	// Color activates three-pass; the descriptors follow without a reload.
	require.NoError(t, lookup(t, dev, "mode").SetValue(ctx, "Color"))
	assert.True(t, threePass.Descriptor().Capabilities.IsActive())
	v, err := threePass.Value(ctx)
	require.NoError(t, err)
	assert.Equal(t, false, v)
}

func TestRemoteInvalidValue(t *testing.T) {
	ctx := context.Background()
	d := startDaemon(t, newVirtual(t, virtual.DefaultSaneConfig()), daemon.DefaultConfig())
	dev := open(t, d.client, "test:0")

	err := lookup(t, dev, "resolution").SetValue(ctx, 5000)
	require.ErrorIs(t, err, option.ErrInvalidValue)

	var ive *option.InvalidValueError
	require.True(t, errors.As(err, &ive))
	assert.Equal(t, "resolution", ive.Option)
	assert.Equal(t, 5000, ive.Value)
	assert.Equal(t, option.ConstraintRange, ive.Constraint.Kind)

	require.NoError(t, lookup(t, dev, "tl-x").SetValue(ctx, 10.5))
	v, err := lookup(t, dev, "tl-x").Value(ctx)
	require.NoError(t, err)
	assert.Equal(t, option.FixedFromFloat(10.5), v)
}

func TestRemoteFeederScan(t *testing.T) {
	ctx := context.Background()
	d := startDaemon(t, newVirtual(t, virtual.DefaultSaneConfig()), daemon.DefaultConfig())
	dev := open(t, d.client, "test:0")
	require.NoError(t, lookup(t, dev, "source").SetValue(ctx, virtual.SourceADF))
	require.NoError(t, lookup(t, dev, "mode").SetValue(ctx, "Color"))

	sess, err := dev.Scan(ctx, true)
	require.NoError(t, err)

	pages := 0
	for i := 0; i < 10000; i++ {
		st, err := sess.Scan().Read(ctx)
		require.NoError(t, err)
		if st == scan.StatusPageComplete {
			pages++
			// Mirrored as soon as the page completes.
			assert.Equal(t, pages, sess.Len())
		}
		if st == scan.StatusSessionComplete {
			break
		}
	}

	assert.Equal(t, 3, pages)
	require.Equal(t, 3, sess.Len())
	assert.Equal(t, scan.StateSessionDone, sess.Scan().State())
	for _, img := range sess.Images() {
		assert.False(t, raster.IsGray(img))
		assert.Equal(t, 157, img.Bounds().Dx())
		assert.Equal(t, 196, img.Bounds().Dy())
	}

	st, err := sess.Scan().Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, scan.StatusSessionComplete, st)
}

func colorFeederSession(t *testing.T, cfg daemon.Config) (*pipeDaemon, *scan.Session) {
	t.Helper()
	ctx := context.Background()
	d := startDaemon(t, newVirtual(t, virtual.DefaultSaneConfig()), cfg)
	dev := open(t, d.client, "test:0")
	require.NoError(t, lookup(t, dev, "source").SetValue(ctx, virtual.SourceADF))
	require.NoError(t, lookup(t, dev, "mode").SetValue(ctx, "Color"))
	sess, err := dev.Scan(ctx, true)
	require.NoError(t, err)
	return d, sess
}

func TestRemotePagesLargerThanOneResponse(t *testing.T) {
	ctx := context.Background()
	// One 157x196 RGB page is 92316 bytes; two do not fit together.
	cfg := daemon.DefaultConfig()
	cfg.MaxMessageSize = 150_000
	d, sess := colorFeederSession(t, cfg)

	pages := 0
	for i := 0; i < 10000; i++ {
		st, err := sess.Scan().Read(ctx)
		require.NoError(t, err)
		if st == scan.StatusPageComplete {
			pages++
			assert.Equal(t, pages, sess.Len())
		}
		if st == scan.StatusSessionComplete {
			break
		}
	}
	assert.Equal(t, 3, pages)
	assert.NoError(t, d.client.Err())
}

func TestRemotePageTooLarge(t *testing.T) {
	ctx := context.Background()
	cfg := daemon.DefaultConfig()
	cfg.MaxMessageSize = 64 << 10
	d, sess := colorFeederSession(t, cfg)

	var err error
	for i := 0; i < 10000; i++ {
		var st scan.Status
		st, err = sess.Scan().Read(ctx)
		if err != nil || st != scan.StatusMore {
			break
		}
	}
	require.Error(t, err)
	assert.ErrorIs(t, err, transport.ErrMessageTooLarge)
	assert.NotErrorIs(t, err, daemon.ErrDaemon)
	assert.NoError(t, d.client.Err(), "an oversized page must not break the channel")

	// Oversized single responses are refused the same way.
	_, err = sess.Scan().Image(ctx, 0, -1)
	assert.ErrorIs(t, err, transport.ErrMessageTooLarge)

	img, err := sess.Scan().Image(ctx, 0, 10)
	require.NoError(t, err)
	assert.Equal(t, 10, img.Bounds().Dy())

	_, err = d.client.Devices(ctx, false)
	assert.NoError(t, err)
}

func TestRemoteProgress(t *testing.T) {
	ctx := context.Background()
	vcfg := virtual.DefaultSaneConfig()
	vcfg.ReadChunk = 157 * 10
	d := startDaemon(t, newVirtual(t, vcfg), daemon.DefaultConfig())
	dev := open(t, d.client, "test:0")

	sess, err := dev.Scan(ctx, false)
	require.NoError(t, err)

	st, err := sess.Scan().Read(ctx)
	require.NoError(t, err)
	require.Equal(t, scan.StatusMore, st)

	start, end, err := sess.Scan().AvailableLines(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, start)
	assert.Equal(t, 10, end)

	w, h, err := sess.Scan().ExpectedSize(ctx)
	require.NoError(t, err)
	assert.Equal(t, 157, w)
	assert.Equal(t, 196, h)

	img, err := sess.Scan().Image(ctx, 0, -1)
	require.NoError(t, err)
	assert.Equal(t, 10, img.Bounds().Dy())

	require.NoError(t, sess.Close(ctx))
	assert.Equal(t, scan.StateSessionDone, sess.Scan().State())
	require.NoError(t, sess.Close(ctx))
}

func TestRemoteNoSession(t *testing.T) {
	d := startDaemon(t, newVirtual(t, virtual.DefaultSaneConfig()), daemon.DefaultConfig())

	err := d.client.Call(context.Background(), wire.CommandScanRead, nil, "test:0")
	require.Error(t, err)
	assert.ErrorIs(t, err, wire.ErrRemote)
	assert.Contains(t, err.Error(), "no scan session")
}

func TestExitStopsServer(t *testing.T) {
	d := startDaemon(t, newVirtual(t, virtual.DefaultSaneConfig()), daemon.DefaultConfig())
	open(t, d.client, "test:0")

	require.NoError(t, d.client.Close())
	select {
	case err := <-d.served:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}

	_, err := d.client.Devices(context.Background(), false)
	assert.ErrorIs(t, err, daemon.ErrDaemon)
	assert.NoError(t, d.client.Close())
}

func TestHangupStopsServer(t *testing.T) {
	d := startDaemon(t, newVirtual(t, virtual.DefaultSaneConfig()), daemon.DefaultConfig())
	require.NoError(t, d.c2sW.Close())

	select {
	case err := <-d.served:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestChannelFailureIsFatal(t *testing.T) {
	d := startDaemon(t, newVirtual(t, virtual.DefaultSaneConfig()), daemon.DefaultConfig())
	require.NoError(t, d.c2sW.Close())

	_, err := d.client.Devices(context.Background(), false)
	require.ErrorIs(t, err, daemon.ErrDaemon)
	assert.ErrorIs(t, d.client.Err(), daemon.ErrDaemon)

	// Sticky: no further exchange is attempted.
	_, err = d.client.Open(context.Background(), "test:0")
	assert.ErrorIs(t, err, daemon.ErrDaemon)
}

// mockObserver records command statistics.
type mockObserver struct {
	mock.Mock
}

func (m *mockObserver) ObserveCommand(command string, d time.Duration, errKind string) {
	m.Called(command, errKind)
}

// capturingLogger collects events.
type capturingLogger struct {
	mu     sync.Mutex
	events []log.Event
}

func (l *capturingLogger) Log(e log.Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, e)
}

func (l *capturingLogger) commands(role log.Role) []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []string
	for _, e := range l.events {
		if e.Command != nil && e.Role == role && e.Command.Type == log.MessageTypeResponse {
			out = append(out, e.Command.Command)
		}
	}
	return out
}

func TestObserverAndEvents(t *testing.T) {
	obs := &mockObserver{}
	obs.On("ObserveCommand", "get_devices", "").Once()
	obs.On("ObserveCommand", "open", "backend").Once()
	obs.On("ObserveCommand", "exit", "").Once()

	events := &capturingLogger{}
	cfg := daemon.DefaultConfig()
	cfg.Observer = obs
	cfg.EventLogger = events
	cfg.ChannelID = "chan-1"

	d := startDaemon(t, newVirtual(t, virtual.DefaultSaneConfig()), cfg)
	_, err := d.client.Devices(context.Background(), true)
	require.NoError(t, err)
	_, err = d.client.Open(context.Background(), "missing")
	require.Error(t, err)
	require.NoError(t, d.client.Close())
	<-d.served

	obs.AssertExpectations(t)
	assert.Equal(t, []string{"get_devices", "open", "exit"}, events.commands(log.RoleDaemon))
	assert.Equal(t, []string{"get_devices", "open", "exit"}, events.commands(log.RoleClient))
}

func TestConfigValidate(t *testing.T) {
	cfg := daemon.DefaultConfig()
	require.NoError(t, cfg.Validate())

	cfg.StartTimeout = 0
	assert.ErrorIs(t, cfg.Validate(), daemon.ErrInvalidConfig)

	cfg = daemon.DefaultConfig()
	cfg.MaxMessageSize = 0
	_, err := daemon.NewServer(nil, cfg)
	assert.ErrorIs(t, err, daemon.ErrInvalidConfig)
}
