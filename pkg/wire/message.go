package wire

import (
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// Request errors.
var (
	// ErrUnknownCommand indicates a command the daemon does not implement.
	ErrUnknownCommand = errors.New("unknown command")

	// ErrMissingArgument indicates a positional argument was not supplied.
	ErrMissingArgument = errors.New("missing argument")
)

// Command names a daemon operation.
type Command string

const (
	CommandGetDevices       Command = "get_devices"
	CommandOpen             Command = "open"
	CommandClose            Command = "close"
	CommandGetOptions       Command = "get_options"
	CommandGetOptionValue   Command = "get_option_value"
	CommandSetOptionValue   Command = "set_option_value"
	CommandReloadOptions    Command = "reload_options"
	CommandScan             Command = "scan"
	CommandGetImages        Command = "get_images"
	CommandScanRead         Command = "scan_read"
	CommandScanAvailable    Command = "scan_get_available_lines"
	CommandScanExpectedSize Command = "scan_get_expected_size"
	CommandScanGetImage     Command = "scan_get_image"
	CommandScanCancel       Command = "scan_cancel"
	CommandExit             Command = "exit"
)

var commands = map[Command]bool{
	CommandGetDevices:       true,
	CommandOpen:             true,
	CommandClose:            true,
	CommandGetOptions:       true,
	CommandGetOptionValue:   true,
	CommandSetOptionValue:   true,
	CommandReloadOptions:    true,
	CommandScan:             true,
	CommandGetImages:        true,
	CommandScanRead:         true,
	CommandScanAvailable:    true,
	CommandScanExpectedSize: true,
	CommandScanGetImage:     true,
	CommandScanCancel:       true,
	CommandExit:             true,
}

// IsValid reports whether c is a known command.
func (c Command) IsValid() bool {
	return commands[c]
}

// Request is a command sent by the client.
//
// CBOR encoding:
//
//	{
//	  1: command,   // text
//	  2: args,      // array of encoded values
//	  3: kwargs     // map text -> encoded value
//	}
type Request struct {
	Command Command                    `cbor:"1,keyasint"`
	Args    []cbor.RawMessage          `cbor:"2,keyasint,omitempty"`
	Kwargs  map[string]cbor.RawMessage `cbor:"3,keyasint,omitempty"`
}

// NewRequest creates a request with the given positional arguments.
func NewRequest(cmd Command, args ...any) (*Request, error) {
	req := &Request{Command: cmd}
	for i, a := range args {
		raw, err := Marshal(a)
		if err != nil {
			return nil, fmt.Errorf("encode %s arg %d: %w", cmd, i, err)
		}
		req.Args = append(req.Args, raw)
	}
	return req, nil
}

// SetKwarg adds a keyword argument.
func (r *Request) SetKwarg(name string, v any) error {
	raw, err := Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s kwarg %s: %w", r.Command, name, err)
	}
	if r.Kwargs == nil {
		r.Kwargs = make(map[string]cbor.RawMessage)
	}
	r.Kwargs[name] = raw
	return nil
}

// Validate checks if the request is valid.
func (r *Request) Validate() error {
	if !r.Command.IsValid() {
		return fmt.Errorf("%w: %q", ErrUnknownCommand, r.Command)
	}
	return nil
}

// Arg decodes positional argument i into v.
func (r *Request) Arg(i int, v any) error {
	if i >= len(r.Args) {
		return fmt.Errorf("%w: %s needs argument %d", ErrMissingArgument, r.Command, i)
	}
	if err := Unmarshal(r.Args[i], v); err != nil {
		return fmt.Errorf("decode %s arg %d: %w", r.Command, i, err)
	}
	return nil
}

// OptionalArg decodes positional argument i into v if present, falling
// back to keyword argument name. It reports whether a value was found.
func (r *Request) OptionalArg(i int, name string, v any) (bool, error) {
	if i < len(r.Args) {
		return true, r.Arg(i, v)
	}
	raw, ok := r.Kwargs[name]
	if !ok {
		return false, nil
	}
	if err := Unmarshal(raw, v); err != nil {
		return false, fmt.Errorf("decode %s kwarg %s: %w", r.Command, name, err)
	}
	return true, nil
}

// Response is the daemon's answer to one request. Exactly one of Result
// and Error is set.
//
// CBOR encoding:
//
//	{
//	  1: result,   // encoded value, absent on error
//	  2: error     // ErrorInfo, absent on success
//	}
type Response struct {
	Result cbor.RawMessage `cbor:"1,keyasint,omitempty"`
	Error  *ErrorInfo      `cbor:"2,keyasint,omitempty"`
}

// NewResult creates a success response carrying v. A nil v produces an
// empty result.
func NewResult(v any) (*Response, error) {
	if v == nil {
		return &Response{}, nil
	}
	raw, err := Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode result: %w", err)
	}
	return &Response{Result: raw}, nil
}

// NewErrorResponse creates a failure response describing err.
func NewErrorResponse(err error) *Response {
	return &Response{Error: FromError(err)}
}

// IsSuccess returns true if the response carries no error.
func (r *Response) IsSuccess() bool {
	return r.Error == nil
}

// Decode returns the rebuilt remote error, or decodes the result into v.
// A nil v discards the result.
func (r *Response) Decode(v any) error {
	if r.Error != nil {
		return r.Error.Err()
	}
	if v == nil || len(r.Result) == 0 {
		return nil
	}
	if err := Unmarshal(r.Result, v); err != nil {
		return fmt.Errorf("decode result: %w", err)
	}
	return nil
}

// LineRange is the result of scan_get_available_lines.
type LineRange struct {
	Start int `cbor:"1,keyasint"`
	End   int `cbor:"2,keyasint"`
}

// Size is the result of scan_get_expected_size.
type Size struct {
	Width  int `cbor:"1,keyasint"`
	Height int `cbor:"2,keyasint"`
}
