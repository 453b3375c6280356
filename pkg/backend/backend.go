package backend

import (
	"context"
	"fmt"

	"github.com/unisane/unisane-go/pkg/option"
	"github.com/unisane/unisane-go/pkg/scan"
)

// Info identifies a device.
type Info struct {
	Name   string `cbor:"1,keyasint"`
	Vendor string `cbor:"2,keyasint,omitempty"`
	Model  string `cbor:"3,keyasint,omitempty"`
	Type   string `cbor:"4,keyasint,omitempty"`
}

// String returns a one-line description.
func (i Info) String() string {
	return fmt.Sprintf("%q (%s, %s, %s)", i.Name, orUnknown(i.Vendor), orUnknown(i.Model), orUnknown(i.Type))
}

func orUnknown(s string) string {
	if s == "" {
		return "Unknown"
	}
	return s
}

// Backend enumerates and opens devices.
type Backend interface {
	// Devices lists available devices. localOnly excludes network devices
	// where the backend can tell them apart.
	Devices(ctx context.Context, localOnly bool) ([]Info, error)

	// Open opens the named device.
	Open(ctx context.Context, name string) (Device, error)

	// Close releases the backend library.
	Close() error
}

// Device is an opened scanner.
type Device interface {
	// Info returns the device identity.
	Info() Info

	// Options returns the device options, loading them on first use.
	Options(ctx context.Context) (*option.Set, error)

	// ReloadOptions refreshes the options after a change that altered
	// other options' capabilities or constraints.
	ReloadOptions(ctx context.Context) error

	// Scan starts a session. multiple requests a multi-page session; it is
	// downgraded to a single page unless the active source is a feeder.
	Scan(ctx context.Context, multiple bool) (*scan.Session, error)

	// Close releases the device, cancelling any scan in flight.
	Close() error
}
