//go:build sane

package native

import (
	"errors"
	"fmt"
	"io"

	tjsane "github.com/tjgq/sane"

	"github.com/unisane/unisane-go/pkg/backend"
	"github.com/unisane/unisane-go/pkg/backend/sane"
	"github.com/unisane/unisane-go/pkg/option"
	"github.com/unisane/unisane-go/pkg/raster"
	"github.com/unisane/unisane-go/pkg/scan"
)

// Available reports whether the binding was compiled in.
const Available = true

// Driver is the system SANE library.
type Driver struct{}

// NewDriver returns the system library driver.
func NewDriver() (sane.Driver, error) {
	return Driver{}, nil
}

// Init implements sane.Driver.
func (Driver) Init() error {
	if err := tjsane.Init(); err != nil {
		return statusError("sane_init", err)
	}
	return nil
}

// Exit implements sane.Driver.
func (Driver) Exit() {
	tjsane.Exit()
}

// Devices implements sane.Driver.
func (Driver) Devices(localOnly bool) ([]backend.Info, error) {
	devs, err := tjsane.Devices()
	if err != nil {
		return nil, statusError("sane_get_devices", err)
	}
	out := make([]backend.Info, 0, len(devs))
	for _, d := range devs {
		out = append(out, backend.Info{Name: d.Name, Vendor: d.Vendor, Model: d.Model, Type: d.Type})
	}
	return out, nil
}

// Open implements sane.Driver.
func (Driver) Open(name string) (sane.Handle, error) {
	c, err := tjsane.Open(name)
	if err != nil {
		return nil, statusError("sane_open", err)
	}
	return &handle{conn: c}, nil
}

// handle maps option indices onto the library's name-based calls. Index 0
// is the synthesized option count; index i is the library's option i-1.
type handle struct {
	conn *tjsane.Conn
	opts []tjsane.Option
}

func (h *handle) Close() {
	h.conn.Close()
}

func (h *handle) Descriptors() ([]option.Descriptor, error) {
	h.opts = h.conn.Options()
	descs := make([]option.Descriptor, 0, len(h.opts)+1)
	descs = append(descs, option.Descriptor{
		Title: "Number of options", Type: option.TypeInt, Size: 4, Capabilities: option.CapReadOnly,
	})
	for _, o := range h.opts {
		descs = append(descs, descriptor(o))
	}
	return descs, nil
}

func (h *handle) lookup(index int) (tjsane.Option, error) {
	if h.opts == nil {
		h.opts = h.conn.Options()
	}
	if index <= 0 || index > len(h.opts) {
		return tjsane.Option{}, backend.NewError("sane_control_option", backend.StatusInvalid)
	}
	return h.opts[index-1], nil
}

func (h *handle) Value(index int) (any, error) {
	if index == 0 {
		if h.opts == nil {
			h.opts = h.conn.Options()
		}
		return len(h.opts) + 1, nil
	}
	o, err := h.lookup(index)
	if err != nil {
		return nil, err
	}
	v, err := h.conn.GetOption(o.Name)
	if err != nil {
		return nil, statusError("sane_control_option", err)
	}
	return fromNative(v), nil
}

func (h *handle) SetValue(index int, v any) (sane.SetInfo, error) {
	o, err := h.lookup(index)
	if err != nil {
		return 0, err
	}
	info, err := h.conn.SetOption(o.Name, toNative(v))
	if err != nil {
		return 0, statusError("sane_control_option", err)
	}
	var si sane.SetInfo
	if info.Inexact {
		si |= sane.InfoInexact
	}
	if info.ReloadOpts {
		si |= sane.InfoReloadOptions
		h.opts = nil
	}
	if info.ReloadParams {
		si |= sane.InfoReloadParams
	}
	return si, nil
}

func (h *handle) Parameters() (raster.Parameters, error) {
	p, err := h.conn.Params()
	if err != nil {
		return raster.Parameters{}, statusError("sane_get_parameters", err)
	}
	return raster.Parameters{
		Format:        format(p.Format),
		LastFrame:     p.IsLast,
		BytesPerLine:  p.BytesPerLine,
		PixelsPerLine: p.PixelsPerLine,
		Lines:         p.Lines,
		Depth:         p.Depth,
	}, nil
}

func (h *handle) Start() error {
	err := h.conn.Start()
	if errors.Is(err, tjsane.ErrEmpty) {
		return fmt.Errorf("sane_start: %w", scan.ErrEndOfSession)
	}
	if err != nil {
		return statusError("sane_start", err)
	}
	return nil
}

func (h *handle) Read(p []byte) (int, error) {
	n, err := h.conn.Read(p)
	switch {
	case err == nil:
		return n, nil
	case errors.Is(err, io.EOF):
		return n, scan.ErrEndOfPage
	case errors.Is(err, tjsane.ErrEmpty):
		return n, fmt.Errorf("sane_read: %w", scan.ErrEndOfSession)
	default:
		return n, statusError("sane_read", err)
	}
}

func (h *handle) Cancel() {
	h.conn.Cancel()
}

func descriptor(o tjsane.Option) option.Descriptor {
	d := option.Descriptor{
		Name:        o.Name,
		Title:       o.Title,
		Description: o.Desc,
		Type:        valueType(o.Type),
		Unit:        unit(o.Unit),
		Size:        4 * max(o.Length, 1),
	}
	if d.Type == option.TypeString {
		d.Size = o.Length
	}
	if o.IsSettable {
		d.Capabilities |= option.CapSoftSelect
	}
	if o.IsDetectable {
		d.Capabilities |= option.CapSoftDetect
	}
	if o.IsEmulated {
		d.Capabilities |= option.CapEmulated
	}
	if o.IsAutomatic {
		d.Capabilities |= option.CapAutomatic
	}
	if !o.IsActive {
		d.Capabilities |= option.CapInactive
	}
	if o.IsAdvanced {
		d.Capabilities |= option.CapAdvanced
	}
	d.Constraint = constraint(o, d.Type)
	return d
}

func constraint(o tjsane.Option, t option.ValueType) option.Constraint {
	if r := o.ConstrRange; r != nil {
		return option.NewRange(rawNumber(r.Min), rawNumber(r.Max), rawNumber(r.Quant))
	}
	if len(o.ConstrSet) == 0 {
		return option.NoConstraint()
	}
	if t == option.TypeString {
		strs := make([]string, 0, len(o.ConstrSet))
		for _, v := range o.ConstrSet {
			if s, ok := v.(string); ok {
				strs = append(strs, s)
			}
		}
		return option.NewStringList(strs...)
	}
	words := make([]int, 0, len(o.ConstrSet))
	for _, v := range o.ConstrSet {
		words = append(words, rawNumber(v))
	}
	return option.NewWordList(words...)
}

// rawNumber converts a library number to the representation used by
// constraints: ints as is, floats as raw fixed-point.
func rawNumber(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case float64:
		return int(option.FixedFromFloat(n))
	}
	return 0
}

func fromNative(v any) any {
	if f, ok := v.(float64); ok {
		return option.FixedFromFloat(f)
	}
	return v
}

func toNative(v any) any {
	if f, ok := v.(option.Fixed); ok {
		return f.Float()
	}
	return v
}

func valueType(t tjsane.Type) option.ValueType {
	switch t {
	case tjsane.TypeBool:
		return option.TypeBool
	case tjsane.TypeInt:
		return option.TypeInt
	case tjsane.TypeFloat:
		return option.TypeFixed
	case tjsane.TypeString:
		return option.TypeString
	default:
		return option.TypeButton
	}
}

func unit(u tjsane.Unit) option.Unit {
	switch u {
	case tjsane.UnitPixel:
		return option.UnitPixel
	case tjsane.UnitBit:
		return option.UnitBit
	case tjsane.UnitMm:
		return option.UnitMM
	case tjsane.UnitDpi:
		return option.UnitDPI
	case tjsane.UnitPercent:
		return option.UnitPercent
	case tjsane.UnitUsec:
		return option.UnitMicrosecond
	default:
		return option.UnitNone
	}
}

func format(f tjsane.Format) raster.Format {
	switch f {
	case tjsane.FrameRgb:
		return raster.FrameRGB
	case tjsane.FrameRed:
		return raster.FrameRed
	case tjsane.FrameGreen:
		return raster.FrameGreen
	case tjsane.FrameBlue:
		return raster.FrameBlue
	default:
		return raster.FrameGray
	}
}

var statusByError = []struct {
	err    error
	status backend.Status
}{
	{tjsane.ErrUnsupported, backend.StatusUnsupported},
	{tjsane.ErrCancelled, backend.StatusCancelled},
	{tjsane.ErrBusy, backend.StatusDeviceBusy},
	{tjsane.ErrInvalid, backend.StatusInvalid},
	{tjsane.ErrJammed, backend.StatusJammed},
	{tjsane.ErrEmpty, backend.StatusNoDocs},
	{tjsane.ErrCoverOpen, backend.StatusCoverOpen},
	{tjsane.ErrIo, backend.StatusIOError},
	{tjsane.ErrNoMem, backend.StatusNoMem},
	{tjsane.ErrDenied, backend.StatusAccessDenied},
}

// statusError converts a library error to a *backend.Error.
func statusError(op string, err error) error {
	for _, m := range statusByError {
		if errors.Is(err, m.err) {
			return backend.NewError(op, m.status)
		}
	}
	return &backend.Error{Status: backend.StatusIOError, Op: op, Err: err}
}

// Compile-time interface satisfaction checks.
var (
	_ sane.Driver = Driver{}
	_ sane.Handle = (*handle)(nil)
)
