package wire

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unisane/unisane-go/pkg/backend"
	"github.com/unisane/unisane-go/pkg/option"
	"github.com/unisane/unisane-go/pkg/raster"
)

func TestRequestRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		cmd  Command
		args []any
	}{
		{"no arguments", CommandGetDevices, nil},
		{"device name", CommandGetOptions, []any{"test:0"}},
		{"set value", CommandSetOptionValue, []any{"test:0", "mode", Value{Kind: KindString, Str: "Color"}}},
		{"image range", CommandScanGetImage, []any{"test:0", 0, -1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := NewRequest(tt.cmd, tt.args...)
			if err != nil {
				t.Fatalf("NewRequest failed: %v", err)
			}

			data, err := EncodeRequest(req)
			if err != nil {
				t.Fatalf("EncodeRequest failed: %v", err)
			}

			decoded, err := DecodeRequest(data)
			if err != nil {
				t.Fatalf("DecodeRequest failed: %v", err)
			}

			if decoded.Command != tt.cmd {
				t.Errorf("Command mismatch: got %q, want %q", decoded.Command, tt.cmd)
			}
			if len(decoded.Args) != len(tt.args) {
				t.Errorf("Args length mismatch: got %d, want %d", len(decoded.Args), len(tt.args))
			}
		})
	}
}

func TestRequestArgs(t *testing.T) {
	req, err := NewRequest(CommandScanGetImage, "test:0", 3, -1)
	require.NoError(t, err)
	require.NoError(t, req.SetKwarg("multiple", true))

	data, err := EncodeRequest(req)
	require.NoError(t, err)
	decoded, err := DecodeRequest(data)
	require.NoError(t, err)

	var name string
	var start, end int
	require.NoError(t, decoded.Arg(0, &name))
	require.NoError(t, decoded.Arg(1, &start))
	require.NoError(t, decoded.Arg(2, &end))
	assert.Equal(t, "test:0", name)
	assert.Equal(t, 3, start)
	assert.Equal(t, -1, end)

	err = decoded.Arg(3, &end)
	assert.True(t, errors.Is(err, ErrMissingArgument))

	var multiple bool
	found, err := decoded.OptionalArg(4, "multiple", &multiple)
	require.NoError(t, err)
	assert.True(t, found)
	assert.True(t, multiple)

	found, err = decoded.OptionalArg(5, "local_only", &multiple)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestUnknownCommandRejected(t *testing.T) {
	_, err := EncodeRequest(&Request{Command: "format_disk"})
	assert.True(t, errors.Is(err, ErrUnknownCommand))

	data, err := Marshal(&Request{Command: "format_disk"})
	require.NoError(t, err)
	_, err = DecodeRequest(data)
	assert.True(t, errors.Is(err, ErrUnknownCommand))
}

func TestResponseResult(t *testing.T) {
	frame := raster.Frame{Mode: raster.ModeGray, Width: 2, Height: 2, Pix: []byte{0, 64, 128, 255}}
	resp, err := NewResult([]raster.Frame{frame})
	require.NoError(t, err)
	assert.True(t, resp.IsSuccess())

	data, err := EncodeResponse(resp)
	require.NoError(t, err)
	decoded, err := DecodeResponse(data)
	require.NoError(t, err)

	var frames []raster.Frame
	require.NoError(t, decoded.Decode(&frames))
	require.Len(t, frames, 1)
	assert.Equal(t, frame, frames[0])
}

func TestResponseEmptyResult(t *testing.T) {
	resp, err := NewResult(nil)
	require.NoError(t, err)

	data, err := EncodeResponse(resp)
	require.NoError(t, err)
	decoded, err := DecodeResponse(data)
	require.NoError(t, err)

	assert.True(t, decoded.IsSuccess())
	var n int
	assert.NoError(t, decoded.Decode(&n))
	assert.NoError(t, decoded.Decode(nil))
}

func TestDescriptorRoundTrip(t *testing.T) {
	descs := []option.Descriptor{
		{Name: "mode", Type: option.TypeString, Capabilities: option.CapReadWrite,
			Constraint: option.NewStringList("Lineart", "Gray", "Color")},
		{Name: "tl-x", Type: option.TypeFixed, Unit: option.UnitMM, Capabilities: option.CapReadWrite,
			Constraint: option.NewRange(0, int(option.FixedFromFloat(215.9)), 0)},
		{Name: "three-pass", Type: option.TypeBool, Capabilities: option.CapReadWrite | option.CapInactive | option.CapAdvanced},
	}
	resp, err := NewResult(descs)
	require.NoError(t, err)
	data, err := EncodeResponse(resp)
	require.NoError(t, err)
	decoded, err := DecodeResponse(data)
	require.NoError(t, err)

	var got []option.Descriptor
	require.NoError(t, decoded.Decode(&got))
	assert.Equal(t, descs, got)
}

func TestDeviceInfoRoundTrip(t *testing.T) {
	infos := []backend.Info{{Name: "test:0", Vendor: "Noname", Model: "frontend-tester", Type: "virtual device"}}
	resp, err := NewResult(infos)
	require.NoError(t, err)

	var got []backend.Info
	require.NoError(t, resp.Decode(&got))
	assert.Equal(t, infos, got)
}

func TestValueKinds(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want any
	}{
		{"bool", true, true},
		{"int", 300, 300},
		{"int64", int64(75), 75},
		{"fixed", option.FixedFromFloat(12.5), option.FixedFromFloat(12.5)},
		{"float", 215.9, 215.9},
		{"string", "ADF", "ADF"},
		{"bytes", []byte("Gray"), "Gray"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := ValueOf(tt.in)
			require.NoError(t, err)

			data, err := Marshal(v)
			require.NoError(t, err)
			var decoded Value
			require.NoError(t, Unmarshal(data, &decoded))
			assert.Equal(t, tt.want, decoded.Any())
		})
	}

	_, err := ValueOf(struct{}{})
	assert.True(t, errors.Is(err, option.ErrInvalidValue))
}
