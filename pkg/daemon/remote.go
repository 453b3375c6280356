package daemon

import (
	"context"
	"fmt"
	"image"
	"sync"

	"github.com/unisane/unisane-go/pkg/backend"
	"github.com/unisane/unisane-go/pkg/option"
	"github.com/unisane/unisane-go/pkg/raster"
	"github.com/unisane/unisane-go/pkg/scan"
	"github.com/unisane/unisane-go/pkg/wire"
)

// remoteDevice is a device living in the daemon.
type remoteDevice struct {
	client *Client
	info   backend.Info

	mu      sync.Mutex
	descs   map[string]option.Descriptor
	opts    *option.Set
	session *remoteScan
}

func (d *remoteDevice) Info() backend.Info {
	return d.info
}

func (d *remoteDevice) Options(ctx context.Context) (*option.Set, error) {
	d.mu.Lock()
	opts := d.opts
	d.mu.Unlock()
	if opts != nil {
		return opts, nil
	}
	if err := d.loadOptions(ctx); err != nil {
		return nil, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.opts, nil
}

func (d *remoteDevice) ReloadOptions(ctx context.Context) error {
	if err := d.client.Call(ctx, wire.CommandReloadOptions, nil, d.info.Name); err != nil {
		return err
	}
	return d.loadOptions(ctx)
}

// loadOptions fetches the descriptors and rebuilds the option set.
// Options handed out earlier keep working: they resolve their
// descriptor by name on every call.
func (d *remoteDevice) loadOptions(ctx context.Context) error {
	var list []option.Descriptor
	if err := d.client.Call(ctx, wire.CommandGetOptions, &list, d.info.Name); err != nil {
		return err
	}
	descs := make(map[string]option.Descriptor, len(list))
	set := option.NewSet()
	for _, desc := range list {
		descs[desc.Name] = desc
		set.Add(&remoteOption{dev: d, name: desc.Name})
	}
	d.mu.Lock()
	d.descs = descs
	d.opts = set
	d.mu.Unlock()
	return nil
}

func (d *remoteDevice) descriptor(name string) option.Descriptor {
	d.mu.Lock()
	defer d.mu.Unlock()
	if desc, ok := d.descs[name]; ok {
		return desc
	}
	// Gone after a reload.
	return option.Descriptor{Name: name, Capabilities: option.CapInactive}
}

func (d *remoteDevice) Scan(ctx context.Context, multiple bool) (*scan.Session, error) {
	if err := d.client.Call(ctx, wire.CommandScan, nil, d.info.Name, multiple); err != nil {
		return nil, err
	}
	images := scan.NewImageList()
	rs := &remoteScan{dev: d, images: images, state: scan.StateScanning}

	d.mu.Lock()
	if prev := d.session; prev != nil {
		prev.setState(scan.StateSessionDone)
	}
	d.session = rs
	d.mu.Unlock()

	return scan.NewSession(images, rs), nil
}

func (d *remoteDevice) Close() error {
	d.mu.Lock()
	if d.session != nil {
		d.session.setState(scan.StateSessionDone)
		d.session = nil
	}
	d.mu.Unlock()
	ctx, cancel := context.WithTimeout(context.Background(), exitTimeout)
	defer cancel()
	return d.client.Call(ctx, wire.CommandClose, nil, d.info.Name)
}

// remoteOption forwards reads and writes to the daemon.
type remoteOption struct {
	dev  *remoteDevice
	name string
}

func (o *remoteOption) Descriptor() option.Descriptor {
	return o.dev.descriptor(o.name)
}

func (o *remoteOption) Value(ctx context.Context) (any, error) {
	if err := option.CheckReadable(o.Descriptor()); err != nil {
		return nil, err
	}
	var v wire.Value
	if err := o.dev.client.Call(ctx, wire.CommandGetOptionValue, &v, o.dev.info.Name, o.name); err != nil {
		return nil, err
	}
	return v.Any(), nil
}

// SetValue sends v to the daemon, which validates it. Setting one option
// can change others, so the descriptors are fetched again afterwards.
func (o *remoteOption) SetValue(ctx context.Context, v any) error {
	wv, err := wire.ValueOf(v)
	if err != nil {
		return fmt.Errorf("option %q: %w", o.name, err)
	}
	if err := o.dev.client.Call(ctx, wire.CommandSetOptionValue, nil, o.dev.info.Name, o.name, wv); err != nil {
		return err
	}
	return o.dev.loadOptions(ctx)
}

// remoteScan mirrors a daemon-side scan. Completed pages are copied into
// the local image list whenever the remote machine finishes one.
type remoteScan struct {
	dev    *remoteDevice
	images *scan.ImageList

	mu    sync.Mutex
	state scan.State
}

func (s *remoteScan) setState(st scan.State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != scan.StateSessionDone {
		s.state = st
	}
}

func (s *remoteScan) State() scan.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *remoteScan) Read(ctx context.Context) (scan.Status, error) {
	if s.State() == scan.StateSessionDone {
		return scan.StatusSessionComplete, nil
	}
	var st scan.Status
	err := s.dev.client.Call(ctx, wire.CommandScanRead, &st, s.dev.info.Name)
	if err != nil {
		// Older daemons may still answer with a signal error.
		if st, err = scan.StatusFromError(err); err != nil {
			return scan.StatusMore, err
		}
	}

	switch st {
	case scan.StatusPageComplete:
		if err := s.mirror(ctx); err != nil {
			return scan.StatusMore, err
		}
		s.setState(scan.StatePageDone)
	case scan.StatusSessionComplete:
		if err := s.mirror(ctx); err != nil {
			return scan.StatusMore, err
		}
		s.setState(scan.StateSessionDone)
	default:
		s.setState(scan.StateScanning)
	}
	return st, nil
}

// mirror fetches the pages completed since the last call. The daemon
// bounds each answer, so it asks until nothing new comes back.
func (s *remoteScan) mirror(ctx context.Context) error {
	for {
		var frames []raster.Frame
		if err := s.dev.client.Call(ctx, wire.CommandGetImages, &frames, s.dev.info.Name, s.images.Len()); err != nil {
			return err
		}
		if len(frames) == 0 {
			return nil
		}
		for _, f := range frames {
			img, err := raster.FromFrame(f)
			if err != nil {
				return fmt.Errorf("%w: get_images: %w", ErrDaemon, err)
			}
			s.images.Append(img)
		}
	}
}

func (s *remoteScan) Cancel(ctx context.Context) error {
	if s.State() == scan.StateSessionDone {
		return nil
	}
	s.setState(scan.StateSessionDone)
	return s.dev.client.Call(ctx, wire.CommandScanCancel, nil, s.dev.info.Name)
}

func (s *remoteScan) AvailableLines(ctx context.Context) (int, int, error) {
	var r wire.LineRange
	if err := s.dev.client.Call(ctx, wire.CommandScanAvailable, &r, s.dev.info.Name); err != nil {
		return 0, 0, err
	}
	return r.Start, r.End, nil
}

func (s *remoteScan) ExpectedSize(ctx context.Context) (int, int, error) {
	var sz wire.Size
	if err := s.dev.client.Call(ctx, wire.CommandScanExpectedSize, &sz, s.dev.info.Name); err != nil {
		return 0, 0, err
	}
	return sz.Width, sz.Height, nil
}

func (s *remoteScan) Image(ctx context.Context, start, end int) (image.Image, error) {
	var f raster.Frame
	if err := s.dev.client.Call(ctx, wire.CommandScanGetImage, &f, s.dev.info.Name, start, end); err != nil {
		return nil, err
	}
	return raster.FromFrame(f)
}

// Compile-time interface satisfaction checks.
var (
	_ backend.Device = (*remoteDevice)(nil)
	_ option.Option  = (*remoteOption)(nil)
	_ scan.Scan      = (*remoteScan)(nil)
)
