package virtual

import (
	"bytes"
	"context"
	"fmt"
	"sync"

	"golang.org/x/image/bmp"

	"github.com/unisane/unisane-go/pkg/backend"
	"github.com/unisane/unisane-go/pkg/backend/wia"
	"github.com/unisane/unisane-go/pkg/scan"
)

// Source names of the virtual push devices.
const (
	WIASourceFlatbed = "Flatbed"
	WIASourceFeeder  = "Feeder"
)

// WIAConfig configures WIADriver.
type WIAConfig struct {
	// FeederPages is the number of pages in the document feeder.
	FeederPages int

	// ChunkSize is the size of each pushed data block.
	ChunkSize int

	// Resolution is the initial resolution in DPI.
	Resolution int

	// ShortTransferOnEmpty makes an empty feeder push a few header bytes
	// and end the page instead of reporting "no documents", as some
	// drivers do.
	ShortTransferOnEmpty bool
}

// DefaultWIAConfig returns a small, fast configuration.
func DefaultWIAConfig() WIAConfig {
	return WIAConfig{
		FeederPages: 3,
		ChunkSize:   16 * 1024,
		Resolution:  50,
	}
}

// Page dimensions in thousandths of an inch.
const (
	maxHorizontal = 8500
	maxVertical   = 11690
)

// WIADriver is a virtual push-model library with one device, "wia:0".
type WIADriver struct {
	cfg WIAConfig
}

// NewWIADriver creates a driver.
func NewWIADriver(cfg WIAConfig) *WIADriver {
	return &WIADriver{cfg: cfg}
}

// Devices implements wia.Driver.
func (d *WIADriver) Devices() ([]backend.Info, error) {
	return []backend.Info{{Name: "wia:0", Vendor: "Noname", Model: "push-tester", Type: "virtual device"}}, nil
}

// Open implements wia.Driver.
func (d *WIADriver) Open(id string) (wia.Item, error) {
	if id != "wia:0" {
		return nil, backend.NewError("open", backend.StatusInvalid)
	}
	root := &wiaObject{props: map[string]*wia.Property{}}
	root.add(wia.Property{Name: "dev_name", Value: "Virtual push scanner"})
	root.add(wia.Property{Name: "vend_desc", Value: "Noname"})
	root.add(wia.Property{Name: "dev_desc", Value: "push-tester"})
	root.add(wia.Property{Name: "dev_type", Value: "virtual device"})
	root.add(wia.Property{Name: "current_intent", Value: "none", Writable: true})
	root.add(wia.Property{Name: "max_horizontal_size", Value: maxHorizontal})
	root.add(wia.Property{Name: "max_vertical_size", Value: maxVertical})

	feeder := &feederState{cfg: d.cfg, pagesLeft: d.cfg.FeederPages}
	item := &wiaItem{wiaObject: root}
	for _, id := range []string{WIASourceFlatbed, WIASourceFeeder} {
		item.sources = append(item.sources, newWIASource(id, d.cfg, feeder))
	}
	return item, nil
}

// wiaObject is a property bag.
type wiaObject struct {
	mu    sync.Mutex
	order []string
	props map[string]*wia.Property
	cons  map[string]wia.Constraint
	// onSet adjusts dependent properties; called with mu held.
	onSet func(name string)
}

func (o *wiaObject) add(p wia.Property) {
	o.order = append(o.order, p.Name)
	o.props[p.Name] = &p
}

func (o *wiaObject) constrain(c wia.Constraint) {
	if o.cons == nil {
		o.cons = make(map[string]wia.Constraint)
	}
	o.cons[c.Name] = c
}

func (o *wiaObject) Properties() ([]wia.Property, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]wia.Property, 0, len(o.order))
	for _, n := range o.order {
		out = append(out, *o.props[n])
	}
	return out, nil
}

func (o *wiaObject) Constraints() ([]wia.Constraint, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]wia.Constraint, 0, len(o.cons))
	for _, n := range o.order {
		if c, ok := o.cons[n]; ok {
			out = append(out, c)
		}
	}
	return out, nil
}

func (o *wiaObject) SetProperty(name string, v any) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	p, ok := o.props[name]
	if !ok {
		return backend.NewError("set property "+name, backend.StatusUnsupported)
	}
	if !p.Writable {
		return backend.NewError("set property "+name, backend.StatusAccessDenied)
	}
	p.Value = v
	if o.onSet != nil {
		o.onSet(name)
	}
	return nil
}

func (o *wiaObject) intValue(name string) int {
	if n, ok := o.props[name].Value.(int); ok {
		return n
	}
	return 0
}

type wiaItem struct {
	*wiaObject
	sources []wia.Source
}

func (i *wiaItem) Sources() ([]wia.Source, error) {
	return i.sources, nil
}

func (i *wiaItem) Close() {}

// feederState is shared by the sources of one device.
type feederState struct {
	mu        sync.Mutex
	cfg       WIAConfig
	pagesLeft int
	pageNo    int
}

// take consumes a page. ok is false when the feeder is empty.
func (f *feederState) take(fromFeeder bool) (page int, ok bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if fromFeeder {
		if f.pagesLeft <= 0 {
			f.pagesLeft = f.cfg.FeederPages
			return 0, false
		}
		f.pagesLeft--
	}
	f.pageNo++
	return f.pageNo - 1, true
}

type wiaSource struct {
	*wiaObject
	id     string
	cfg    WIAConfig
	feeder *feederState
}

func newWIASource(id string, cfg WIAConfig, feeder *feederState) *wiaSource {
	o := &wiaObject{props: map[string]*wia.Property{}}
	o.add(wia.Property{Name: "format", Value: "bmp", Writable: true})
	o.add(wia.Property{Name: "preferred_format", Value: "bmp", Writable: true})
	o.add(wia.Property{Name: "page_size", Value: "letter", Writable: true, Possible: []any{"letter", "a4", "custom"}})
	o.add(wia.Property{Name: "depth", Value: 24, Writable: true})
	o.add(wia.Property{Name: "bits_per_channel", Value: 8})
	o.add(wia.Property{Name: "channels_per_pixel", Value: 3})
	o.add(wia.Property{Name: "xres", Value: cfg.Resolution, Writable: true})
	o.add(wia.Property{Name: "yres", Value: cfg.Resolution, Writable: true})
	o.add(wia.Property{Name: "xpos", Value: 0, Writable: true})
	o.add(wia.Property{Name: "ypos", Value: 0, Writable: true})
	o.add(wia.Property{Name: "xextent", Value: maxHorizontal * cfg.Resolution / 1000, Writable: true})
	o.add(wia.Property{Name: "yextent", Value: maxVertical * cfg.Resolution / 1000, Writable: true})
	o.add(wia.Property{Name: "pages", Value: 0, Writable: true})
	o.constrain(wia.Constraint{Name: "format", List: []any{"png", "bmp"}})
	o.constrain(wia.Constraint{Name: "preferred_format", List: []any{"png", "bmp"}})
	o.constrain(wia.Constraint{Name: "depth", List: []any{24, 8, 1}})
	o.constrain(wia.Constraint{Name: "xres", Range: []int{25, 50, 600, 1}})
	o.constrain(wia.Constraint{Name: "yres", Range: []int{25, 50, 600, 1}})
	o.constrain(wia.Constraint{Name: "pages", Range: []int{0, 1, 100, 1}})

	o.onSet = func(name string) {
		switch name {
		case "depth":
			depth := o.intValue("depth")
			o.props["bits_per_channel"].Value = min(depth, 8)
			o.props["channels_per_pixel"].Value = max(1, depth/8)
		case "xres":
			o.props["xpos"].Value = 0
			o.props["xextent"].Value = maxHorizontal * o.intValue("xres") / 1000
		case "yres":
			o.props["ypos"].Value = 0
			o.props["yextent"].Value = maxVertical * o.intValue("yres") / 1000
		}
	}
	return &wiaSource{wiaObject: o, id: id, cfg: cfg, feeder: feeder}
}

func (s *wiaSource) ID() string {
	return s.id
}

// Download encodes one page as BMP and pushes it in chunks.
func (s *wiaSource) Download(ctx context.Context, sink scan.PushSink) error {
	s.mu.Lock()
	w, h := max(1, s.intValue("xextent")), max(1, s.intValue("yextent"))
	depth := s.intValue("depth")
	s.mu.Unlock()

	page, ok := s.feeder.take(s.id == WIASourceFeeder)
	if !ok {
		if s.cfg.ShortTransferOnEmpty {
			if err := sink.Data(ctx, []byte("BM\x38\x00\x00\x00")); err != nil {
				return err
			}
			return sink.EndOfPage(ctx)
		}
		return sink.EndOfSession(ctx)
	}

	var buf bytes.Buffer
	if err := bmp.Encode(&buf, pageImage(w, h, depth, page)); err != nil {
		return fmt.Errorf("encode page: %w", err)
	}
	data := buf.Bytes()
	chunk := s.cfg.ChunkSize
	if chunk <= 0 {
		chunk = len(data)
	}
	for len(data) > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}
		n := min(chunk, len(data))
		if err := sink.Data(ctx, data[:n]); err != nil {
			return err
		}
		data = data[n:]
	}
	return sink.EndOfPage(ctx)
}

// Compile-time interface satisfaction checks.
var (
	_ wia.Driver = (*WIADriver)(nil)
	_ wia.Item   = (*wiaItem)(nil)
	_ wia.Source = (*wiaSource)(nil)
)
