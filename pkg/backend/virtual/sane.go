package virtual

import (
	"fmt"
	"sync"

	"github.com/unisane/unisane-go/pkg/backend"
	"github.com/unisane/unisane-go/pkg/backend/sane"
	"github.com/unisane/unisane-go/pkg/option"
	"github.com/unisane/unisane-go/pkg/raster"
	"github.com/unisane/unisane-go/pkg/scan"
)

// Source names of the virtual buffered devices.
const (
	SourceFlatbed = "Flatbed"
	SourceADF     = "Automatic Document Feeder"
)

// SaneConfig configures SaneDriver.
type SaneConfig struct {
	// FeederPages is the number of pages in the document feeder.
	FeederPages int

	// ReadChunk caps the bytes returned by one read.
	ReadChunk int

	// Resolution is the initial resolution in DPI.
	Resolution int

	// UnknownLength reports -1 lines in the parameters, as hand-held
	// scanners do.
	UnknownLength bool

	// SingleHandle makes Open fail while another handle is open.
	SingleHandle bool
}

// DefaultSaneConfig returns a small, fast configuration.
func DefaultSaneConfig() SaneConfig {
	return SaneConfig{
		FeederPages: 3,
		ReadChunk:   32 * 1024,
		Resolution:  50,
	}
}

// Option indices of the virtual device.
const (
	optCount = iota
	optModeGroup
	optMode
	optDepth
	optResolution
	optSource
	optThreePass
	optGeometryGroup
	optTLX
	optTLY
	optBRX
	optBRY
	optCalibrate
	numOptions
)

// SaneDriver is a virtual buffered-model library.
type SaneDriver struct {
	cfg SaneConfig

	mu      sync.Mutex
	inits   int
	exits   int
	opens   int
	open    map[string]*saneHandle
	devices map[string]*saneDevice
}

// NewSaneDriver creates a driver with the devices "test:0" and "test:1".
func NewSaneDriver(cfg SaneConfig) *SaneDriver {
	d := &SaneDriver{
		cfg:     cfg,
		open:    make(map[string]*saneHandle),
		devices: make(map[string]*saneDevice),
	}
	for _, name := range []string{"test:0", "test:1"} {
		d.devices[name] = newSaneDevice(cfg)
	}
	return d
}

// Init implements sane.Driver.
func (d *SaneDriver) Init() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.inits++
	return nil
}

// Exit implements sane.Driver.
func (d *SaneDriver) Exit() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.exits++
}

// Devices implements sane.Driver.
func (d *SaneDriver) Devices(localOnly bool) ([]backend.Info, error) {
	return []backend.Info{
		{Name: "test:0", Vendor: "Noname", Model: "frontend-tester", Type: "virtual device"},
		{Name: "test:1", Vendor: "Noname", Model: "frontend-tester", Type: "virtual device"},
	}, nil
}

// Open implements sane.Driver.
func (d *SaneDriver) Open(name string) (sane.Handle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	dev, ok := d.devices[name]
	if !ok {
		return nil, backend.NewError("sane_open", backend.StatusInvalid)
	}
	if d.cfg.SingleHandle && len(d.open) > 0 {
		return nil, backend.NewError("sane_open", backend.StatusIOError)
	}
	h := &saneHandle{drv: d, name: name, dev: dev}
	d.open[name] = h
	d.opens++
	return h, nil
}

// Stats returns call counters: library inits and exits, handle opens and
// handles currently open.
func (d *SaneDriver) Stats() (inits, exits, opens, open int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.inits, d.exits, d.opens, len(d.open)
}

// saneDevice is the persistent state of one virtual device.
type saneDevice struct {
	mu        sync.Mutex
	cfg       SaneConfig
	descs     []option.Descriptor
	values    []any
	pagesLeft int
	pageNo    int
	data      []byte
	started   bool
}

func newSaneDevice(cfg SaneConfig) *saneDevice {
	mm := func(f float64) option.Fixed { return option.FixedFromFloat(f) }
	fixedRange := func(max float64) option.Constraint {
		return option.NewRange(0, int(mm(max)), 0)
	}
	descs := make([]option.Descriptor, numOptions)
	descs[optCount] = option.Descriptor{Title: "Number of options", Type: option.TypeInt, Size: 4, Capabilities: option.CapReadOnly}
	descs[optModeGroup] = option.Descriptor{Title: "Scan Mode", Type: option.TypeGroup}
	descs[optMode] = option.Descriptor{
		Name: "mode", Title: "Scan mode", Description: "Selects the scan mode.",
		Type: option.TypeString, Size: 32, Capabilities: option.CapReadWrite,
		Constraint: option.NewStringList("Lineart", "Gray", "Color"),
	}
	descs[optDepth] = option.Descriptor{
		Name: "depth", Title: "Bit depth", Description: "Number of bits per sample.",
		Type: option.TypeInt, Unit: option.UnitBit, Size: 4, Capabilities: option.CapReadWrite,
		Constraint: option.NewWordList(8, 16),
	}
	descs[optResolution] = option.Descriptor{
		Name: "resolution", Title: "Scan resolution", Description: "Sets the resolution of the scanned image.",
		Type: option.TypeInt, Unit: option.UnitDPI, Size: 4, Capabilities: option.CapReadWrite,
		Constraint: option.NewRange(25, 600, 1),
	}
	descs[optSource] = option.Descriptor{
		Name: "source", Title: "Scan source", Description: "Selects the scan source.",
		Type: option.TypeString, Size: 32, Capabilities: option.CapReadWrite,
		Constraint: option.NewStringList(SourceFlatbed, SourceADF),
	}
	descs[optThreePass] = option.Descriptor{
		Name: "three-pass", Title: "Three-pass simulation", Description: "Simulate a three-pass color scanner.",
		Type: option.TypeBool, Size: 4, Capabilities: option.CapReadWrite | option.CapInactive | option.CapAdvanced,
	}
	descs[optGeometryGroup] = option.Descriptor{Title: "Geometry", Type: option.TypeGroup}
	geometry := []struct {
		idx   int
		name  string
		title string
		max   float64
	}{
		{optTLX, "tl-x", "Top-left x", 215.9},
		{optTLY, "tl-y", "Top-left y", 297},
		{optBRX, "br-x", "Bottom-right x", 215.9},
		{optBRY, "br-y", "Bottom-right y", 297},
	}
	for _, g := range geometry {
		descs[g.idx] = option.Descriptor{
			Name: g.name, Title: g.title,
			Type: option.TypeFixed, Unit: option.UnitMM, Size: 4, Capabilities: option.CapReadWrite,
			Constraint: fixedRange(g.max),
		}
	}
	descs[optCalibrate] = option.Descriptor{
		Name: "calibrate", Title: "Calibrate", Type: option.TypeButton, Capabilities: option.CapReadWrite,
	}

	values := make([]any, numOptions)
	values[optCount] = int(numOptions)
	values[optMode] = "Gray"
	values[optDepth] = 8
	values[optResolution] = cfg.Resolution
	values[optSource] = SourceFlatbed
	values[optThreePass] = false
	values[optTLX] = mm(0)
	values[optTLY] = mm(0)
	values[optBRX] = mm(80)
	values[optBRY] = mm(100)

	return &saneDevice{cfg: cfg, descs: descs, values: values, pagesLeft: cfg.FeederPages}
}

// setCaps updates the capabilities that depend on the mode.
func (d *saneDevice) setCaps() {
	mode := d.values[optMode].(string)
	setInactive := func(i int, inactive bool) {
		if inactive {
			d.descs[i].Capabilities |= option.CapInactive
		} else {
			d.descs[i].Capabilities &^= option.CapInactive
		}
	}
	setInactive(optDepth, mode == "Lineart")
	setInactive(optThreePass, mode != "Color")
}

// saneHandle is an open virtual device.
type saneHandle struct {
	drv    *SaneDriver
	name   string
	dev    *saneDevice
	closed bool
}

func (h *saneHandle) Close() {
	h.drv.mu.Lock()
	defer h.drv.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	delete(h.drv.open, h.name)
}

func (h *saneHandle) Descriptors() ([]option.Descriptor, error) {
	h.dev.mu.Lock()
	defer h.dev.mu.Unlock()
	return append([]option.Descriptor(nil), h.dev.descs...), nil
}

func (h *saneHandle) Value(index int) (any, error) {
	h.dev.mu.Lock()
	defer h.dev.mu.Unlock()
	if index < 0 || index >= len(h.dev.descs) || !h.dev.descs[index].Type.IsExposed() {
		return nil, backend.NewError("sane_control_option", backend.StatusInvalid)
	}
	return h.dev.values[index], nil
}

func (h *saneHandle) SetValue(index int, v any) (sane.SetInfo, error) {
	h.dev.mu.Lock()
	defer h.dev.mu.Unlock()
	if index <= 0 || index >= len(h.dev.descs) {
		return 0, backend.NewError("sane_control_option", backend.StatusInvalid)
	}
	desc := h.dev.descs[index]
	if !desc.Type.IsExposed() || !desc.Capabilities.IsActive() || !desc.Capabilities.IsSettable() {
		return 0, backend.NewError("sane_control_option", backend.StatusInvalid)
	}
	cv, err := option.Coerce(desc.Type, v)
	if err != nil || !desc.Constraint.Allows(cv) {
		return 0, backend.NewError("sane_control_option", backend.StatusInvalid)
	}
	h.dev.values[index] = cv

	switch index {
	case optMode:
		h.dev.setCaps()
		return sane.InfoReloadOptions | sane.InfoReloadParams, nil
	case optDepth, optResolution, optTLX, optTLY, optBRX, optBRY:
		return sane.InfoReloadParams, nil
	}
	return 0, nil
}

// geometry returns the page size in pixels and the sample layout.
func (d *saneDevice) geometry() (width, height, depth, channels int) {
	res := d.values[optResolution].(int)
	px := func(lo, hi int) int {
		span := d.values[hi].(option.Fixed).Float() - d.values[lo].(option.Fixed).Float()
		return max(1, int(span*float64(res)/25.4))
	}
	width, height = px(optTLX, optBRX), px(optTLY, optBRY)
	channels = 1
	switch d.values[optMode].(string) {
	case "Lineart":
		depth = 1
	case "Color":
		depth, channels = d.values[optDepth].(int), 3
	default:
		depth = d.values[optDepth].(int)
	}
	return width, height, depth, channels
}

func (h *saneHandle) Parameters() (raster.Parameters, error) {
	h.dev.mu.Lock()
	defer h.dev.mu.Unlock()
	w, lines, depth, channels := h.dev.geometry()
	_, bpl := rawPage(w, 0, depth, channels, 0)
	p := raster.Parameters{
		Format:        raster.FrameGray,
		LastFrame:     true,
		BytesPerLine:  bpl,
		PixelsPerLine: w,
		Lines:         lines,
		Depth:         depth,
	}
	if channels == 3 {
		p.Format = raster.FrameRGB
	}
	if h.dev.cfg.UnknownLength {
		p.Lines = -1
	}
	return p, nil
}

func (h *saneHandle) Start() error {
	h.dev.mu.Lock()
	defer h.dev.mu.Unlock()
	if h.dev.values[optSource] == SourceADF {
		if h.dev.pagesLeft <= 0 {
			h.dev.pagesLeft = h.dev.cfg.FeederPages
			h.dev.started = false
			return fmt.Errorf("sane_start: %w", scan.ErrEndOfSession)
		}
		h.dev.pagesLeft--
	}
	w, lines, depth, channels := h.dev.geometry()
	h.dev.data, _ = rawPage(w, lines, depth, channels, h.dev.pageNo)
	h.dev.pageNo++
	h.dev.started = true
	return nil
}

func (h *saneHandle) Read(p []byte) (int, error) {
	h.dev.mu.Lock()
	defer h.dev.mu.Unlock()
	if !h.dev.started {
		return 0, backend.NewError("sane_read", backend.StatusInvalid)
	}
	if len(h.dev.data) == 0 {
		return 0, scan.ErrEndOfPage
	}
	n := len(p)
	if c := h.dev.cfg.ReadChunk; c > 0 && n > c {
		n = c
	}
	n = copy(p[:n], h.dev.data)
	h.dev.data = h.dev.data[n:]
	return n, nil
}

func (h *saneHandle) Cancel() {
	h.dev.mu.Lock()
	defer h.dev.mu.Unlock()
	h.dev.started = false
	h.dev.data = nil
}

// Compile-time interface satisfaction checks.
var (
	_ sane.Driver = (*SaneDriver)(nil)
	_ sane.Handle = (*saneHandle)(nil)
)
