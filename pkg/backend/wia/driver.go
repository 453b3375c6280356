package wia

import (
	"context"

	"github.com/unisane/unisane-go/pkg/backend"
	"github.com/unisane/unisane-go/pkg/scan"
)

// Property is one item property as reported by the driver.
type Property struct {
	Name     string
	Value    any
	Writable bool

	// Possible lists the accepted values when the driver reports them
	// alongside the property.
	Possible []any
}

// Constraint is the valid-value description of a property. Exactly one of
// List and Range is set. Range is (min, nominal, max, step).
type Constraint struct {
	Name  string
	List  []any
	Range []int
}

// Object is a property-bearing item: the device root or a source.
type Object interface {
	Properties() ([]Property, error)
	Constraints() ([]Constraint, error)
	SetProperty(name string, v any) error
}

// Source is a scan source item.
type Source interface {
	Object

	// ID is the source name, e.g. "Flatbed" or "Feeder".
	ID() string

	// Download transfers one page into sink. Returning
	// scan.ErrEndOfSession means the feeder is empty.
	Download(ctx context.Context, sink scan.PushSink) error
}

// Item is an opened device root.
type Item interface {
	Object
	Sources() ([]Source, error)
	Close()
}

// Driver is the native library entry point.
type Driver interface {
	Devices() ([]backend.Info, error)
	Open(id string) (Item, error)
}
