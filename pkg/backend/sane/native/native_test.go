//go:build sane

package native_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/unisane/unisane-go/pkg/backend/sane"
	"github.com/unisane/unisane-go/pkg/backend/sane/native"
)

// TestSystemLibrary lists the devices the system library reports and
// loads the options of the first one. It skips on machines without
// scanners.
func TestSystemLibrary(t *testing.T) {
	ctx := context.Background()
	drv, err := native.NewDriver()
	require.NoError(t, err)

	b, err := sane.New(drv, sane.DefaultConfig())
	require.NoError(t, err)
	defer b.Close()

	devs, err := b.Devices(ctx, true)
	require.NoError(t, err)
	if len(devs) == 0 {
		t.Skip("no SANE devices")
	}

	dev, err := b.Open(ctx, devs[0].Name)
	require.NoError(t, err)
	defer dev.Close()

	opts, err := dev.Options(ctx)
	require.NoError(t, err)
	require.NotZero(t, opts.Len())
}
