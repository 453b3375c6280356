package native

import "errors"

// ErrUnavailable is returned by NewDriver when the binding was not
// compiled in.
var ErrUnavailable = errors.New("SANE binding not compiled in (build with -tags sane)")
