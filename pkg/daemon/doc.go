// Package daemon runs a scanner backend in a separate process.
//
// Some backend libraries are not safe to load into every process, or
// crash on the wrong device. The daemon hosts the backend and answers
// commands over a FIFO pair; the Client implements backend.Backend on
// top of that channel so callers cannot tell the difference.
//
// # Commands
//
// Devices and sessions are addressed by device name, one session per
// device:
//
//	get_devices               [local_only]         -> []backend.Info
//	open                      name                 -> backend.Info
//	close                     name
//	get_options               name                 -> []option.Descriptor
//	get_option_value          name, option         -> wire.Value
//	set_option_value          name, option, value
//	reload_options            name
//	scan                      name, [multiple]
//	get_images                name, [from]         -> []raster.Frame
//	scan_read                 name                 -> scan.Status
//	scan_get_available_lines  name                 -> wire.LineRange
//	scan_get_expected_size    name                 -> wire.Size
//	scan_get_image            name, start, end     -> raster.Frame
//	scan_cancel               name
//	exit
//
// The server handles one request at a time in arrival order.
//
// No response exceeds Config.MaxMessageSize. get_images returns as many
// pages as fit and the client asks again for the rest; a response that
// cannot fit is answered with a too_large error, which leaves the
// channel usable.
//
// # Failure
//
// Errors raised by the backend travel back and are rebuilt on the client
// (see package wire). A failure of the channel itself is different: the
// stream can no longer be trusted, so the client reports ErrDaemon for
// that call and every later one.
package daemon
