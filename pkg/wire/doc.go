// Package wire defines the CBOR records exchanged with the scanning daemon.
//
// Records use CBOR (RFC 8949) with integer keys for compactness. Every
// request names a command and carries positional and keyword arguments,
// each encoded independently so the daemon decodes them into the types the
// command expects.
//
// # Records
//
// There are two record types:
//   - Request: client to daemon (command, args, kwargs)
//   - Response: daemon to client (result or error)
//
// # Errors
//
// A failed command answers with an ErrorInfo whose Kind tells the client
// which local error to rebuild, so errors.Is and errors.As work the same
// on both sides of the channel:
//
//	inactive        option.ErrInactive
//	invalid_value   *option.InvalidValueError
//	not_settable    option.ErrNotSettable
//	not_found       option.ErrNotFound
//	backend         *backend.Error
//	end_of_page     scan.ErrEndOfPage
//	end_of_session  scan.ErrEndOfSession
//	too_large       transport.ErrMessageTooLarge
//	internal        ErrRemote
//
// # Values
//
// Option values cross the channel as Value records that remember their
// Go type, so fixed-point values stay distinct from integers.
package wire
