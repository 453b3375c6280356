package sane

import (
	"github.com/unisane/unisane-go/pkg/backend"
	"github.com/unisane/unisane-go/pkg/option"
	"github.com/unisane/unisane-go/pkg/raster"
)

// SetInfo reports side effects of setting an option.
type SetInfo uint8

const (
	// InfoInexact means the backend rounded the value.
	InfoInexact SetInfo = 1 << iota

	// InfoReloadOptions means other options' descriptors changed.
	InfoReloadOptions

	// InfoReloadParams means the scan parameters changed.
	InfoReloadParams
)

// Has reports whether all flags in f are set.
func (i SetInfo) Has(f SetInfo) bool { return i&f == f }

// Driver is the native library entry point.
type Driver interface {
	Init() error
	Exit()
	Devices(localOnly bool) ([]backend.Info, error)
	Open(name string) (Handle, error)
}

// Handle is an open native device. Failures are *backend.Error values.
//
// Start returns scan.ErrEndOfSession when the feeder is empty. Read
// returns scan.ErrEndOfPage at the end of a frame and
// scan.ErrEndOfSession when the backend ran out of documents.
type Handle interface {
	Close()

	// Descriptors returns every option descriptor indexed by option
	// number. Index 0 is the option count.
	Descriptors() ([]option.Descriptor, error)

	Value(index int) (any, error)
	SetValue(index int, v any) (SetInfo, error)

	Parameters() (raster.Parameters, error)
	Start() error
	Read(p []byte) (int, error)
	Cancel()
}
