// Package native binds the buffered backend to the system SANE library
// through github.com/tjgq/sane.
//
// The binding needs cgo and the SANE development headers, so it is only
// compiled with the "sane" build tag:
//
//	go build -tags sane ./cmd/...
//
// Without the tag Available is false and NewDriver fails with
// ErrUnavailable.
//
// The library exposes fixed-point options as float64; the driver converts
// them to option.Fixed in both directions. Group options are folded into
// their members by the library and do not appear in the descriptors.
// The library cannot tell local and network devices apart, so the
// localOnly filter is ignored.
package native
