package sane

import (
	"context"
	"fmt"
	"sync"

	"github.com/unisane/unisane-go/pkg/backend"
	"github.com/unisane/unisane-go/pkg/option"
	"github.com/unisane/unisane-go/pkg/raster"
	"github.com/unisane/unisane-go/pkg/scan"
)

// optionAliases maps a standard option name to the name some backends use
// instead. The alias is only added when the standard name is missing.
var optionAliases = []struct{ name, target string }{
	{"resolution", "scan-resolution"},
	{"source", "doc-source"},
}

// Device is an opened buffered-model device.
type Device struct {
	b    *Backend
	info backend.Info

	mu      sync.Mutex
	descs   []option.Descriptor
	opts    *option.Set
	session *scan.Session
	closed  bool
}

func newDevice(b *Backend, info backend.Info) *Device {
	return &Device{b: b, info: info}
}

// Info implements backend.Device.
func (d *Device) Info() backend.Info {
	return d.info
}

// do runs fn on the executor with this device's handle.
func (d *Device) do(ctx context.Context, fn func(h Handle) error) error {
	return d.b.ex.Do(ctx, func() error {
		h, err := d.b.handles.Acquire(d.info.Name)
		if err != nil {
			return err
		}
		return fn(h)
	})
}

// Options implements backend.Device.
func (d *Device) Options(ctx context.Context) (*option.Set, error) {
	d.mu.Lock()
	opts := d.opts
	d.mu.Unlock()
	if opts != nil {
		return opts, nil
	}
	if err := d.ReloadOptions(ctx); err != nil {
		return nil, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.opts, nil
}

// ReloadOptions implements backend.Device.
func (d *Device) ReloadOptions(ctx context.Context) error {
	if err := d.refreshDescriptors(ctx); err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	set := option.NewSet()
	for i := 1; i < len(d.descs); i++ {
		if !d.descs[i].Type.IsExposed() || d.descs[i].Name == "" {
			continue
		}
		set.Add(&saneOption{dev: d, index: i})
	}
	for _, a := range optionAliases {
		if set.Has(a.name) {
			continue
		}
		if target, ok := set.Get(a.target); ok {
			set.Add(option.NewAlias(a.name, []option.Option{target}, d.b.logger))
		}
	}
	d.opts = set
	return nil
}

func (d *Device) refreshDescriptors(ctx context.Context) error {
	var descs []option.Descriptor
	err := d.do(ctx, func(h Handle) error {
		var err error
		descs, err = h.Descriptors()
		return err
	})
	if err != nil {
		return fmt.Errorf("load options of %s: %w", d.info.Name, err)
	}
	d.mu.Lock()
	d.descs = descs
	d.mu.Unlock()
	return nil
}

func (d *Device) descriptor(i int) option.Descriptor {
	d.mu.Lock()
	defer d.mu.Unlock()
	if i < len(d.descs) {
		return d.descs[i]
	}
	return option.Descriptor{Capabilities: option.CapInactive}
}

// Scan implements backend.Device. A scan still in flight is cancelled.
func (d *Device) Scan(ctx context.Context, multiple bool) (*scan.Session, error) {
	opts, err := d.Options(ctx)
	if err != nil {
		return nil, err
	}
	source := scan.ActiveSource(ctx, opts)
	if m := d.b.cfg.Scan.Feeder.Multiple(multiple, source); m != multiple {
		d.b.logger.Info("source is not a document feeder, scanning a single page",
			"device", d.info.Name, "source", source)
		multiple = m
	}

	d.mu.Lock()
	prev := d.session
	d.session = nil
	d.mu.Unlock()
	if prev != nil {
		_ = prev.Close(ctx)
	}

	sess, err := scan.NewBufferedSession(ctx, &transfer{dev: d}, multiple, d.b.cfg.Scan)
	if err != nil {
		return nil, fmt.Errorf("start scan on %s: %w", d.info.Name, err)
	}
	d.mu.Lock()
	d.session = sess
	d.mu.Unlock()
	return sess, nil
}

// Close implements backend.Device.
func (d *Device) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	sess := d.session
	d.session = nil
	d.mu.Unlock()

	ctx := context.Background()
	if sess != nil {
		_ = sess.Close(ctx)
	}
	return d.b.ex.Do(ctx, func() error {
		d.b.handles.Release(d.info.Name)
		return nil
	})
}

// saneOption is an option addressed by index.
type saneOption struct {
	dev   *Device
	index int
}

func (o *saneOption) Descriptor() option.Descriptor {
	return o.dev.descriptor(o.index)
}

// Value fails with option.ErrInactive for inactive options even where the
// backend would answer.
func (o *saneOption) Value(ctx context.Context) (any, error) {
	desc := o.Descriptor()
	if err := option.CheckReadable(desc); err != nil {
		return nil, err
	}
	var v any
	err := o.dev.do(ctx, func(h Handle) error {
		var err error
		v, err = h.Value(o.index)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("get option %s: %w", desc.Name, err)
	}
	return v, nil
}

func (o *saneOption) SetValue(ctx context.Context, v any) error {
	desc := o.Descriptor()
	cv, err := option.Validate(desc, v)
	if err != nil {
		return err
	}
	var info SetInfo
	err = o.dev.do(ctx, func(h Handle) error {
		var err error
		info, err = h.SetValue(o.index, cv)
		return err
	})
	if err != nil {
		return fmt.Errorf("set option %s: %w", desc.Name, err)
	}
	if info.Has(InfoInexact) {
		o.dev.b.logger.Debug("backend rounded option value", "option", desc.Name, "value", cv)
	}
	if info.Has(InfoReloadOptions) {
		return o.dev.refreshDescriptors(ctx)
	}
	return nil
}

// transfer adapts the device handle to scan.BufferedDriver.
type transfer struct {
	dev *Device
}

func (t *transfer) Start(ctx context.Context) error {
	return t.dev.do(ctx, func(h Handle) error { return h.Start() })
}

func (t *transfer) Parameters(ctx context.Context) (raster.Parameters, error) {
	var p raster.Parameters
	err := t.dev.do(ctx, func(h Handle) error {
		var err error
		p, err = h.Parameters()
		return err
	})
	return p, err
}

func (t *transfer) Read(ctx context.Context, p []byte) (int, error) {
	var n int
	err := t.dev.do(ctx, func(h Handle) error {
		var err error
		n, err = h.Read(p)
		return err
	})
	return n, err
}

func (t *transfer) Cancel(ctx context.Context) error {
	return t.dev.do(ctx, func(h Handle) error {
		h.Cancel()
		return nil
	})
}

// Compile-time interface satisfaction checks.
var (
	_ backend.Device      = (*Device)(nil)
	_ option.Option       = (*saneOption)(nil)
	_ scan.BufferedDriver = (*transfer)(nil)
)
