package wire

import (
	"errors"

	"github.com/unisane/unisane-go/pkg/backend"
	"github.com/unisane/unisane-go/pkg/option"
	"github.com/unisane/unisane-go/pkg/scan"
	"github.com/unisane/unisane-go/pkg/transport"
)

// ErrRemote matches daemon failures that have no local counterpart.
var ErrRemote = errors.New("remote error")

// ErrorKind classifies a remote failure.
type ErrorKind string

const (
	KindInactive     ErrorKind = "inactive"
	KindInvalidValue ErrorKind = "invalid_value"
	KindNotSettable  ErrorKind = "not_settable"
	KindNotFound     ErrorKind = "not_found"
	KindBackend      ErrorKind = "backend"
	KindEndOfPage    ErrorKind = "end_of_page"
	KindEndOfSession ErrorKind = "end_of_session"
	KindTooLarge     ErrorKind = "too_large"
	KindInternal     ErrorKind = "internal"
)

// sentinels maps kinds without a typed error to the error they rebuild.
var sentinels = map[ErrorKind]error{
	KindInactive:     option.ErrInactive,
	KindInvalidValue: option.ErrInvalidValue,
	KindNotSettable:  option.ErrNotSettable,
	KindNotFound:     option.ErrNotFound,
	KindEndOfPage:    scan.ErrEndOfPage,
	KindEndOfSession: scan.ErrEndOfSession,
	KindTooLarge:     transport.ErrMessageTooLarge,
	KindInternal:     ErrRemote,
}

// ErrorInfo describes a failed command.
//
// CBOR encoding:
//
//	{
//	  1: kind,         // text
//	  2: message,      // text, the daemon-side error string
//	  3: option,       // invalid_value: option name
//	  4: type,         // invalid_value: option value type
//	  5: constraint,   // invalid_value: what would have been valid
//	  6: value,        // invalid_value: the rejected value
//	  7: reason,       // invalid_value: why it was rejected
//	  8: status,       // backend: status code
//	  9: op            // backend: failed operation
//	}
type ErrorInfo struct {
	Kind       ErrorKind          `cbor:"1,keyasint"`
	Message    string             `cbor:"2,keyasint"`
	Option     string             `cbor:"3,keyasint,omitempty"`
	Type       option.ValueType   `cbor:"4,keyasint,omitempty"`
	Constraint *option.Constraint `cbor:"5,keyasint,omitempty"`
	Value      *Value             `cbor:"6,keyasint,omitempty"`
	Reason     string             `cbor:"7,keyasint,omitempty"`
	Status     int                `cbor:"8,keyasint,omitempty"`
	Op         string             `cbor:"9,keyasint,omitempty"`
}

// FromError classifies err. Typed errors carry their payload.
func FromError(err error) *ErrorInfo {
	if err == nil {
		return nil
	}
	info := &ErrorInfo{Kind: KindInternal, Message: err.Error()}

	var ive *option.InvalidValueError
	var be *backend.Error
	switch {
	case errors.As(err, &ive):
		info.Kind = KindInvalidValue
		info.Option = ive.Option
		info.Type = ive.Type
		info.Reason = ive.Reason
		if ive.Constraint.Kind != option.ConstraintNone {
			c := ive.Constraint
			info.Constraint = &c
		}
		if v, verr := ValueOf(ive.Value); verr == nil {
			info.Value = &v
		}
	case errors.As(err, &be):
		info.Kind = KindBackend
		info.Status = int(be.Status)
		info.Op = be.Op
	case errors.Is(err, option.ErrInactive):
		info.Kind = KindInactive
	case errors.Is(err, option.ErrInvalidValue):
		info.Kind = KindInvalidValue
	case errors.Is(err, option.ErrNotSettable):
		info.Kind = KindNotSettable
	case errors.Is(err, option.ErrNotFound):
		info.Kind = KindNotFound
	case errors.Is(err, scan.ErrEndOfPage):
		info.Kind = KindEndOfPage
	case errors.Is(err, scan.ErrEndOfSession):
		info.Kind = KindEndOfSession
	case errors.Is(err, transport.ErrMessageTooLarge):
		info.Kind = KindTooLarge
	}
	return info
}

// Err rebuilds the local error for e.
func (e *ErrorInfo) Err() error {
	switch e.Kind {
	case KindBackend:
		return &backend.Error{Status: backend.Status(e.Status), Op: e.Op}
	case KindInvalidValue:
		if e.Option != "" {
			ive := &option.InvalidValueError{Option: e.Option, Type: e.Type, Reason: e.Reason}
			if e.Constraint != nil {
				ive.Constraint = *e.Constraint
			}
			if e.Value != nil {
				ive.Value = e.Value.Any()
			}
			return ive
		}
	}
	sentinel, ok := sentinels[e.Kind]
	if !ok {
		sentinel = ErrRemote
	}
	return &RemoteError{Kind: e.Kind, Message: e.Message, sentinel: sentinel}
}

// RemoteError is a daemon failure rebuilt on the client. It matches the
// sentinel for its kind with errors.Is.
type RemoteError struct {
	Kind    ErrorKind
	Message string

	sentinel error
}

// Error implements error.
func (e *RemoteError) Error() string {
	return e.Message
}

// Unwrap returns the sentinel for the error kind.
func (e *RemoteError) Unwrap() error {
	return e.sentinel
}
