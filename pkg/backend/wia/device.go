package wia

import (
	"context"
	"fmt"
	"reflect"
	"sync"

	"github.com/unisane/unisane-go/pkg/backend"
	"github.com/unisane/unisane-go/pkg/option"
	"github.com/unisane/unisane-go/pkg/raster"
	"github.com/unisane/unisane-go/pkg/scan"
)

// property is a merged property with the objects it is written to.
type property struct {
	Property
	constraint option.Constraint
	objects    []Object
}

// Device is an opened push-model device.
type Device struct {
	b       *Backend
	name    string
	item    Item
	sources []Source

	mu      sync.Mutex
	info    backend.Info
	props   map[string]*property
	order   []string
	source  string
	opts    *option.Set
	session *scan.Session
	closed  bool
}

func newDevice(b *Backend, name string, item Item, sources []Source) *Device {
	return &Device{
		b:       b,
		name:    name,
		item:    item,
		sources: sources,
		info:    backend.Info{Name: name},
		source:  sources[0].ID(),
	}
}

// Info implements backend.Device.
func (d *Device) Info() backend.Info {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.info
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

type objectState struct {
	props []Property
	cons  []Constraint
}

func readObject(o Object) (objectState, error) {
	props, err := o.Properties()
	if err != nil {
		return objectState{}, err
	}
	cons, err := o.Constraints()
	if err != nil {
		return objectState{}, err
	}
	return objectState{props: props, cons: cons}, nil
}

// ReloadOptions implements backend.Device. Device properties are written
// to the device root; source properties are written to every source.
func (d *Device) ReloadOptions(ctx context.Context) error {
	var root objectState
	srcs := make([]objectState, len(d.sources))
	err := d.b.ex.Do(ctx, func() error {
		var err error
		if root, err = readObject(d.item); err != nil {
			return err
		}
		for i, s := range d.sources {
			if srcs[i], err = readObject(s); err != nil {
				return fmt.Errorf("source %s: %w", s.ID(), err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("load options of %s: %w", d.name, err)
	}

	props := make(map[string]*property)
	var order []string
	merge := func(st objectState, objects []Object) {
		cons := make(map[string]Constraint, len(st.cons))
		for _, c := range st.cons {
			cons[c.Name] = c
		}
		for _, p := range st.props {
			np := &property{Property: p, objects: objects}
			c, hasCons := cons[p.Name]
			np.constraint = buildConstraint(valueType(p.Value), c, hasCons, p.Possible)
			delete(cons, p.Name)

			if old, ok := props[p.Name]; ok {
				if !reflect.DeepEqual(old.Value, np.Value) || !reflect.DeepEqual(old.constraint, np.constraint) {
					d.b.logger.Warn("property reported more than once with different values", "property", p.Name)
				}
			} else {
				order = append(order, p.Name)
			}
			props[p.Name] = np
		}
		for name := range cons {
			d.b.logger.Warn("constraint on unknown property", "property", name)
		}
	}

	merge(root, []Object{d.item})
	srcObjects := make([]Object, len(d.sources))
	for i, s := range d.sources {
		srcObjects[i] = s
	}
	for _, st := range srcs {
		merge(st, srcObjects)
	}

	d.mu.Lock()
	d.props = props
	d.order = order
	d.mu.Unlock()

	d.buildSet()
	return nil
}

// buildSet creates the option set: raw properties followed by the
// standard names synthesized from them.
func (d *Device) buildSet() {
	d.mu.Lock()
	names := append([]string(nil), d.order...)
	has := func(n string) bool { _, ok := d.props[n]; return ok }
	hasX := has("xpos") && has("xextent")
	hasY := has("ypos") && has("yextent")
	d.mu.Unlock()

	set := option.NewSet()
	for _, n := range names {
		set.Add(&propOption{dev: d, name: n})
	}
	if hasX {
		set.Add(&areaOption{dev: d, optName: "tl-x", axis: axisX})
		set.Add(&areaOption{dev: d, optName: "br-x", axis: axisX, end: true})
	}
	if hasY {
		set.Add(&areaOption{dev: d, optName: "tl-y", axis: axisY})
		set.Add(&areaOption{dev: d, optName: "br-y", axis: axisY, end: true})
	}
	var res []option.Option
	for _, n := range []string{"xres", "yres"} {
		if o, ok := set.Get(n); ok {
			res = append(res, o)
		}
	}
	if len(res) > 0 {
		set.Add(option.NewAlias("resolution", res, d.b.logger))
	}
	set.Add(&sourceOption{dev: d})
	set.Add(&modeOption{dev: d})

	d.mu.Lock()
	d.opts = set
	d.mu.Unlock()
}

// identify fills Info from the descriptive device properties.
func (d *Device) identify(ctx context.Context) {
	str := func(name string) string {
		v, ok := d.propValue(name)
		if !ok {
			return ""
		}
		return fmt.Sprint(v)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.info.Vendor = str("vend_desc")
	d.info.Model = str("dev_desc")
	d.info.Type = str("dev_type")
}

// applyPresets sets each preset the device knows about.
func (d *Device) applyPresets(ctx context.Context, presets []Preset) {
	set, err := d.Options(ctx)
	if err != nil {
		return
	}
	for _, p := range presets {
		o, ok := set.Get(p.Name)
		if !ok {
			continue
		}
		if err := o.SetValue(ctx, p.Value); err != nil {
			d.b.logger.Warn("cannot preset option", "device", d.name, "option", p.Name, "value", p.Value, "error", err)
			continue
		}
		d.b.logger.Info("option preset", "device", d.name, "option", p.Name, "value", p.Value)
	}
}

func (d *Device) prop(name string) (property, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	p, ok := d.props[name]
	if !ok {
		return property{}, false
	}
	return *p, true
}

// propValue does not take d.mu when called with it held.
func (d *Device) propValue(name string) (any, bool) {
	p, ok := d.props[name]
	if !ok {
		return nil, false
	}
	return p.Value, true
}

func (d *Device) intProp(name string) (int, bool) {
	p, ok := d.prop(name)
	if !ok {
		return 0, false
	}
	return toInt(p.Value)
}

// setProperty writes v to every object holding the property. It fails
// only if every write failed. Options are reloaded afterwards because
// one property may change the constraints of others.
func (d *Device) setProperty(ctx context.Context, name string, v any) error {
	p, ok := d.prop(name)
	if !ok {
		return fmt.Errorf("%w: %s", option.ErrNotFound, name)
	}
	if !p.Writable {
		return fmt.Errorf("%w: %s", option.ErrNotSettable, name)
	}

	var (
		succeeded bool
		lastErr   error
	)
	err := d.b.ex.Do(ctx, func() error {
		for _, o := range p.objects {
			if err := o.SetProperty(name, v); err != nil {
				d.b.logger.Warn("cannot set property", "property", name, "value", v, "error", err)
				lastErr = err
				continue
			}
			succeeded = true
		}
		return nil
	})
	if err != nil {
		return err
	}

	d.mu.Lock()
	if cur, ok := d.props[name]; ok {
		cur.Value = v
	}
	d.mu.Unlock()

	if err := d.ReloadOptions(ctx); err != nil {
		d.b.logger.Debug("reload after set failed", "property", name, "error", err)
	}
	if !succeeded {
		return fmt.Errorf("set property %s: %w", name, lastErr)
	}
	return nil
}

func (d *Device) sourceByID(id string) Source {
	for _, s := range d.sources {
		if s.ID() == id {
			return s
		}
	}
	return d.sources[0]
}

// extentSize reports the configured scan area in pixels, used until the
// transfer headers arrive.
func (d *Device) extentSize(ctx context.Context) (int, int, error) {
	w, okW := d.intProp("xextent")
	h, okH := d.intProp("yextent")
	if !okW || !okH {
		return 0, -1, nil
	}
	return w, h, nil
}

// Scan implements backend.Device. Pages are always requested one at a
// time; multi-page sessions start a new transfer for every page.
func (d *Device) Scan(ctx context.Context, multiple bool) (*scan.Session, error) {
	opts, err := d.Options(ctx)
	if err != nil {
		return nil, err
	}
	src := scan.ActiveSource(ctx, opts)
	if m := d.b.cfg.Scan.Feeder.Multiple(multiple, src); m != multiple {
		d.b.logger.Info("source is not a document feeder, scanning a single page",
			"device", d.name, "source", src)
		multiple = m
	}
	if o, ok := opts.Get("pages"); ok {
		if err := o.SetValue(ctx, 1); err != nil {
			d.b.logger.Warn("cannot set page count", "device", d.name, "error", err)
		}
	}

	d.mu.Lock()
	prev := d.session
	d.session = nil
	d.mu.Unlock()
	if prev != nil {
		_ = prev.Close(ctx)
	}

	popts := scan.PushOptions{
		Decoder:      raster.BMPDecoder{},
		Launcher:     d.b.ex,
		FallbackSize: d.extentSize,
	}
	sess, err := scan.NewPushSession(ctx, &transfer{src: d.sourceByID(src)}, popts, multiple, d.b.cfg.Scan)
	if err != nil {
		return nil, fmt.Errorf("start scan on %s: %w", d.name, err)
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
		d.item.Close()
		return nil
	})
}

// transfer adapts a source item to scan.PushDriver. It already runs on
// the executor via the session's launcher.
type transfer struct {
	src Source
}

func (t *transfer) Download(ctx context.Context, sink scan.PushSink) error {
	return t.src.Download(ctx, sink)
}

// Compile-time interface satisfaction checks.
var (
	_ backend.Device  = (*Device)(nil)
	_ scan.PushDriver = (*transfer)(nil)
)
