package sane_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unisane/unisane-go/pkg/backend"
	"github.com/unisane/unisane-go/pkg/backend/sane"
	"github.com/unisane/unisane-go/pkg/option"
	"github.com/unisane/unisane-go/pkg/raster"
	"github.com/unisane/unisane-go/pkg/scan"
)

// renamedDriver is a device that uses non-standard option names.
type renamedDriver struct {
	values []any
}

func (d *renamedDriver) Init() error { return nil }
func (d *renamedDriver) Exit()       {}

func (d *renamedDriver) Devices(bool) ([]backend.Info, error) {
	return []backend.Info{{Name: "lexmark:0"}}, nil
}

func (d *renamedDriver) Open(string) (sane.Handle, error) { return d, nil }

func (d *renamedDriver) Close() {}

func (d *renamedDriver) Descriptors() ([]option.Descriptor, error) {
	return []option.Descriptor{
		{Type: option.TypeInt, Capabilities: option.CapReadOnly},
		{Name: "scan-resolution", Type: option.TypeInt, Unit: option.UnitDPI, Capabilities: option.CapReadWrite,
			Constraint: option.NewWordList(150, 300)},
		{Name: "doc-source", Type: option.TypeString, Capabilities: option.CapReadWrite,
			Constraint: option.NewStringList("Flatbed", "ADF Simplex")},
	}, nil
}

func (d *renamedDriver) Value(i int) (any, error) { return d.values[i], nil }

func (d *renamedDriver) SetValue(i int, v any) (sane.SetInfo, error) {
	d.values[i] = v
	return 0, nil
}

func (d *renamedDriver) Parameters() (raster.Parameters, error) {
	return raster.Parameters{}, nil
}

func (d *renamedDriver) Start() error             { return scan.ErrEndOfSession }
func (d *renamedDriver) Read([]byte) (int, error) { return 0, scan.ErrEndOfPage }
func (d *renamedDriver) Cancel()                  {}

func TestStandardNameAliases(t *testing.T) {
	ctx := context.Background()
	drv := &renamedDriver{values: []any{3, 150, "Flatbed"}}
	b, err := sane.New(drv, sane.DefaultConfig())
	require.NoError(t, err)
	dev, err := b.Open(ctx, "lexmark:0")
	require.NoError(t, err)

	opts, err := dev.Options(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"scan-resolution", "doc-source", "resolution", "source"}, opts.Names())

	res, err := opts.Lookup("resolution")
	require.NoError(t, err)
	require.NoError(t, res.SetValue(ctx, 300))
	assert.Equal(t, 300, drv.values[1])
	assert.Equal(t, "resolution", res.Descriptor().Name)

	// The feeder rule sees the aliased source.
	src, err := opts.Lookup("source")
	require.NoError(t, err)
	require.NoError(t, src.SetValue(ctx, "ADF Simplex"))
	assert.Equal(t, "ADF Simplex", scan.ActiveSource(ctx, opts))

	// An empty feeder yields an empty, finished session.
	sess, err := dev.Scan(ctx, true)
	require.NoError(t, err)
	st, err := sess.Scan().Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, scan.StatusSessionComplete, st)
	assert.Zero(t, sess.Len())
}
