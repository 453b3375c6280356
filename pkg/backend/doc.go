// Package backend defines the device model shared by every scanner backend.
//
// A Backend enumerates devices and opens them. A Device exposes its
// options as an option.Set and starts scan sessions. Implementations live
// in sub-packages: sane (buffered reads), wia (push transfers) and the
// daemon client, which forwards everything to a backend in another
// process.
//
// Failures reported by a backend library are *Error values carrying a
// Status. Use errors.Is(err, ErrBackend) to recognize them and
// Status.IsTransient to decide whether retrying makes sense.
package backend
