package scan

import "errors"

// Driver signals. They mark normal page and session boundaries.
var (
	// ErrEndOfPage signals that the current page has no more data.
	ErrEndOfPage = errors.New("end of page")

	// ErrEndOfSession signals that no further pages are available.
	ErrEndOfSession = errors.New("end of session")
)

// Status is the outcome of a successful Read.
type Status uint8

const (
	// StatusMore means data was consumed and the page continues.
	StatusMore Status = iota

	// StatusPageComplete means a page finished; for buffered and push
	// backends the image is already on the session.
	StatusPageComplete

	// StatusSessionComplete means no further pages will be produced.
	StatusSessionComplete
)

// String returns the status name.
func (s Status) String() string {
	switch s {
	case StatusMore:
		return "MORE"
	case StatusPageComplete:
		return "PAGE_COMPLETE"
	case StatusSessionComplete:
		return "SESSION_COMPLETE"
	default:
		return "UNKNOWN"
	}
}

// Err returns the driver signal matching s, or nil for StatusMore.
func (s Status) Err() error {
	switch s {
	case StatusPageComplete:
		return ErrEndOfPage
	case StatusSessionComplete:
		return ErrEndOfSession
	default:
		return nil
	}
}

// StatusFromError maps a driver signal to its Status. Any other non-nil
// error is returned unchanged with StatusMore.
func StatusFromError(err error) (Status, error) {
	switch {
	case err == nil:
		return StatusMore, nil
	case errors.Is(err, ErrEndOfPage):
		return StatusPageComplete, nil
	case errors.Is(err, ErrEndOfSession):
		return StatusSessionComplete, nil
	default:
		return StatusMore, err
	}
}

// State is the lifecycle state of a Scan.
type State uint8

const (
	StateNotStarted State = iota
	StateScanning
	StatePageDone
	StateSessionDone
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateNotStarted:
		return "NOT_STARTED"
	case StateScanning:
		return "SCANNING"
	case StatePageDone:
		return "PAGE_DONE"
	case StateSessionDone:
		return "SESSION_DONE"
	default:
		return "UNKNOWN"
	}
}
