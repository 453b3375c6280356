package wia

import (
	"context"
	"fmt"
	"slices"

	"github.com/unisane/unisane-go/pkg/option"
)

// valueType maps a property value to an option type.
func valueType(v any) option.ValueType {
	switch v.(type) {
	case bool:
		return option.TypeBool
	case float32, float64:
		return option.TypeFixed
	case string, []byte:
		return option.TypeString
	}
	if _, ok := toInt(v); ok {
		return option.TypeInt
	}
	return option.TypeString
}

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int32:
		return int(n), true
	case int64:
		return int(n), true
	case uint32:
		return int(n), true
	case uint64:
		return int(n), true
	}
	return 0, false
}

// buildConstraint converts driver constraint data. Lists gathered from
// several items have no meaningful order, so they are sorted.
func buildConstraint(t option.ValueType, c Constraint, hasCons bool, possible []any) option.Constraint {
	if hasCons && len(c.Range) > 0 {
		if r, err := option.NormalizeRange(c.Range, option.RangeMinNominalMaxStep); err == nil {
			return option.Constraint{Kind: option.ConstraintRange, Range: r}
		}
	}
	list := possible
	if hasCons && len(c.List) > 0 {
		list = c.List
	}
	if len(list) == 0 {
		return option.NoConstraint()
	}
	switch t {
	case option.TypeInt:
		words := make([]int, 0, len(list))
		for _, v := range list {
			if n, ok := toInt(v); ok {
				words = append(words, n)
			}
		}
		return option.NewWordList(words...).Sorted()
	case option.TypeString:
		strs := make([]string, 0, len(list))
		for _, v := range list {
			strs = append(strs, fmt.Sprint(v))
		}
		return option.NewStringList(strs...).Sorted()
	default:
		return option.NoConstraint()
	}
}

func capsFor(writable bool) option.Capabilities {
	if writable {
		return option.CapReadWrite
	}
	return option.CapReadOnly
}

// propOption exposes one merged property.
type propOption struct {
	dev  *Device
	name string
}

func (o *propOption) Descriptor() option.Descriptor {
	p, ok := o.dev.prop(o.name)
	if !ok {
		return option.Descriptor{Name: o.name, Type: option.TypeString, Capabilities: option.CapInactive}
	}
	return option.Descriptor{
		Name:         o.name,
		Title:        o.name,
		Type:         valueType(p.Value),
		Size:         4,
		Capabilities: capsFor(p.Writable),
		Constraint:   p.constraint,
	}
}

func (o *propOption) Value(ctx context.Context) (any, error) {
	if err := option.CheckReadable(o.Descriptor()); err != nil {
		return nil, err
	}
	p, _ := o.dev.prop(o.name)
	return p.Value, nil
}

func (o *propOption) SetValue(ctx context.Context, v any) error {
	cv, err := option.Validate(o.Descriptor(), v)
	if err != nil {
		return err
	}
	return o.dev.setProperty(ctx, o.name, cv)
}

type axis struct {
	pos, extent, res, max string
}

var (
	axisX = axis{pos: "xpos", extent: "xextent", res: "xres", max: "max_horizontal_size"}
	axisY = axis{pos: "ypos", extent: "yextent", res: "yres", max: "max_vertical_size"}
)

// areaOption exposes the scan area corners in pixels on top of the
// position and extent properties.
type areaOption struct {
	dev     *Device
	optName string
	axis    axis
	end     bool
}

func (o *areaOption) Descriptor() option.Descriptor {
	pos, _ := o.dev.prop(o.axis.pos)
	ext, _ := o.dev.prop(o.axis.extent)

	c := option.NoConstraint()
	maxSize, okMax := o.dev.intProp(o.axis.max)
	res, okRes := o.dev.intProp(o.axis.res)
	if okMax && okRes {
		// Sizes are in thousandths of an inch.
		c = option.NewRange(0, maxSize*res/1000, 0)
	}
	return option.Descriptor{
		Name:         o.optName,
		Title:        o.optName,
		Type:         option.TypeInt,
		Unit:         option.UnitPixel,
		Size:         4,
		Capabilities: capsFor(pos.Writable && ext.Writable),
		Constraint:   c,
	}
}

func (o *areaOption) Value(ctx context.Context) (any, error) {
	pos, _ := o.dev.intProp(o.axis.pos)
	if !o.end {
		return pos, nil
	}
	ext, _ := o.dev.intProp(o.axis.extent)
	return pos + ext, nil
}

// SetValue moves one corner and keeps the other in place.
func (o *areaOption) SetValue(ctx context.Context, v any) error {
	cv, err := option.Validate(o.Descriptor(), v)
	if err != nil {
		return err
	}
	n := cv.(int)
	pos, _ := o.dev.intProp(o.axis.pos)
	ext, _ := o.dev.intProp(o.axis.extent)

	if o.end {
		return o.dev.setProperty(ctx, o.axis.extent, n-pos)
	}
	if err := o.dev.setProperty(ctx, o.axis.pos, n); err != nil {
		return err
	}
	return o.dev.setProperty(ctx, o.axis.extent, ext-(n-pos))
}

// sourceOption selects the source item used by Scan.
type sourceOption struct {
	dev *Device
}

func (o *sourceOption) Descriptor() option.Descriptor {
	ids := make([]string, len(o.dev.sources))
	for i, s := range o.dev.sources {
		ids[i] = s.ID()
	}
	return option.Descriptor{
		Name:         "source",
		Title:        "Scan source",
		Type:         option.TypeString,
		Capabilities: option.CapReadWrite,
		Constraint:   option.NewStringList(ids...),
	}
}

func (o *sourceOption) Value(ctx context.Context) (any, error) {
	o.dev.mu.Lock()
	defer o.dev.mu.Unlock()
	return o.dev.source, nil
}

func (o *sourceOption) SetValue(ctx context.Context, v any) error {
	cv, err := option.Validate(o.Descriptor(), v)
	if err != nil {
		return err
	}
	o.dev.mu.Lock()
	o.dev.source = cv.(string)
	o.dev.mu.Unlock()
	return nil
}

// modeDepth is a scan mode and the depth it requests.
type modeDepth struct {
	mode  string
	depth int
}

var modeDepths = []modeDepth{
	{"Color", 24},
	{"Gray", 8},
	{"BW", 1},
}

// modeOption maps the common mode names onto the depth property.
type modeOption struct {
	dev *Device
}

func (o *modeOption) Descriptor() option.Descriptor {
	depth, _ := o.dev.prop("depth")
	modes := make([]string, len(modeDepths))
	for i, m := range modeDepths {
		modes[i] = m.mode
	}
	return option.Descriptor{
		Name:         "mode",
		Title:        "Scan mode",
		Type:         option.TypeString,
		Capabilities: capsFor(depth.Writable),
		Constraint:   option.NewStringList(modes...),
	}
}

func (o *modeOption) Value(ctx context.Context) (any, error) {
	if bits, ok := o.dev.intProp("bits_per_channel"); ok && bits == 1 {
		return "BW", nil
	}
	if ch, ok := o.dev.intProp("channels_per_pixel"); ok {
		if ch == 1 {
			return "Gray", nil
		}
		return "Color", nil
	}
	switch depth, _ := o.dev.intProp("depth"); depth {
	case 1:
		return "BW", nil
	case 8:
		return "Gray", nil
	}
	return "Color", nil
}

func (o *modeOption) SetValue(ctx context.Context, v any) error {
	cv, err := option.Validate(o.Descriptor(), v)
	if err != nil {
		return err
	}
	i := slices.IndexFunc(modeDepths, func(m modeDepth) bool { return m.mode == cv })
	return o.dev.setProperty(ctx, "depth", modeDepths[i].depth)
}

// Compile-time interface satisfaction checks.
var (
	_ option.Option = (*propOption)(nil)
	_ option.Option = (*areaOption)(nil)
	_ option.Option = (*sourceOption)(nil)
	_ option.Option = (*modeOption)(nil)
)
