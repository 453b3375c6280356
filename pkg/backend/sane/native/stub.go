//go:build !sane

package native

import "github.com/unisane/unisane-go/pkg/backend/sane"

// Available reports whether the binding was compiled in.
const Available = false

// NewDriver fails with ErrUnavailable.
func NewDriver() (sane.Driver, error) {
	return nil, ErrUnavailable
}
