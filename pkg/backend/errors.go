package backend

import (
	"errors"
	"fmt"
)

// ErrBackend matches every *Error.
var ErrBackend = errors.New("backend error")

// Status is a backend library status code.
type Status int

const (
	StatusGood         Status = 0
	StatusUnsupported  Status = 1
	StatusCancelled    Status = 2
	StatusDeviceBusy   Status = 3
	StatusInvalid      Status = 4
	StatusEOF          Status = 5
	StatusJammed       Status = 6
	StatusNoDocs       Status = 7
	StatusCoverOpen    Status = 8
	StatusIOError      Status = 9
	StatusNoMem        Status = 10
	StatusAccessDenied Status = 11
	StatusWarmingUp    Status = 12
	StatusHWLocked     Status = 13
)

var statusText = map[Status]string{
	StatusGood:         "no error",
	StatusUnsupported:  "operation is not supported",
	StatusCancelled:    "operation was cancelled",
	StatusDeviceBusy:   "device is busy",
	StatusInvalid:      "data is invalid",
	StatusEOF:          "no more data available",
	StatusJammed:       "document feeder jammed",
	StatusNoDocs:       "document feeder out of documents",
	StatusCoverOpen:    "scanner cover is open",
	StatusIOError:      "error during device I/O",
	StatusNoMem:        "out of memory",
	StatusAccessDenied: "access to resource has been denied",
	StatusWarmingUp:    "lamp is not ready yet",
	StatusHWLocked:     "scanner mechanism locked for transport",
}

// String returns the status description.
func (s Status) String() string {
	if t, ok := statusText[s]; ok {
		return t
	}
	return fmt.Sprintf("status %d", int(s))
}

// IsTransient reports whether the condition may clear without a code change.
func (s Status) IsTransient() bool {
	switch s {
	case StatusDeviceBusy, StatusWarmingUp, StatusCoverOpen, StatusJammed:
		return true
	default:
		return false
	}
}

// Error is a failure reported by a backend library.
type Error struct {
	Status Status
	Op     string
	Err    error
}

// NewError creates an Error for op.
func NewError(op string, status Status) *Error {
	return &Error{Status: status, Op: op}
}

// Error implements error.
func (e *Error) Error() string {
	msg := e.Status.String()
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if e.Op == "" {
		return msg
	}
	return e.Op + ": " + msg
}

// Is makes errors.Is(err, ErrBackend) succeed.
func (e *Error) Is(target error) bool {
	return target == ErrBackend
}

// Unwrap returns the underlying error, if any.
func (e *Error) Unwrap() error {
	return e.Err
}

// StatusOf returns the status carried by err, if any.
func StatusOf(err error) (Status, bool) {
	var be *Error
	if errors.As(err, &be) {
		return be.Status, true
	}
	return 0, false
}

// IsTransient reports whether err is a backend failure worth retrying.
func IsTransient(err error) bool {
	s, ok := StatusOf(err)
	return ok && s.IsTransient()
}
