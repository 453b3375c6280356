package log

import "time"

// Event is one captured engine event. CBOR encoding uses integer keys.
type Event struct {
	// Timestamp when the event occurred (nanosecond precision).
	Timestamp time.Time `cbor:"1,keyasint"`

	// SessionID identifies the scan session or IPC channel (UUID).
	SessionID string `cbor:"2,keyasint"`

	// Direction indicates message flow for transport and wire events.
	Direction Direction `cbor:"3,keyasint"`

	// Layer where the event was captured.
	Layer Layer `cbor:"4,keyasint"`

	// Category classifies the event type.
	Category Category `cbor:"5,keyasint"`

	// Role is the side of the IPC channel that logged the event.
	Role Role `cbor:"6,keyasint,omitempty"`

	// Device is the backend device name, when known.
	Device string `cbor:"7,keyasint,omitempty"`

	// Type-specific payload (one of these will be set).
	Frame       *FrameEvent       `cbor:"10,keyasint,omitempty"`
	Command     *CommandEvent     `cbor:"11,keyasint,omitempty"`
	StateChange *StateChangeEvent `cbor:"12,keyasint,omitempty"`
	Error       *ErrorEventData   `cbor:"14,keyasint,omitempty"`
}

// Direction indicates the direction of message flow.
type Direction uint8

const (
	DirectionIn  Direction = 0
	DirectionOut Direction = 1
)

// String returns the direction name.
func (d Direction) String() string {
	switch d {
	case DirectionIn:
		return "IN"
	case DirectionOut:
		return "OUT"
	default:
		return "UNKNOWN"
	}
}

// Layer indicates which layer captured the event.
type Layer uint8

const (
	// LayerTransport is the framing layer (raw bytes).
	LayerTransport Layer = 0
	// LayerWire is the command layer (decoded records).
	LayerWire Layer = 1
	// LayerScan is the scan state machine.
	LayerScan Layer = 2
)

// String returns the layer name.
func (l Layer) String() string {
	switch l {
	case LayerTransport:
		return "TRANSPORT"
	case LayerWire:
		return "WIRE"
	case LayerScan:
		return "SCAN"
	default:
		return "UNKNOWN"
	}
}

// Category classifies the event type.
type Category uint8

const (
	CategoryMessage Category = 0
	CategoryState   Category = 1
	CategoryError   Category = 2
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryMessage:
		return "MESSAGE"
	case CategoryState:
		return "STATE"
	case CategoryError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Role identifies the side of the out-of-process channel.
type Role uint8

const (
	RoleLocal  Role = 0
	RoleClient Role = 1
	RoleDaemon Role = 2
)

// String returns the role name.
func (r Role) String() string {
	switch r {
	case RoleLocal:
		return "LOCAL"
	case RoleClient:
		return "CLIENT"
	case RoleDaemon:
		return "DAEMON"
	default:
		return "UNKNOWN"
	}
}

// FrameEvent captures a raw frame at the transport layer.
type FrameEvent struct {
	// Size is the frame size in bytes (including length prefix).
	Size int `cbor:"1,keyasint"`

	// Data is the raw frame bytes (may be truncated for large frames).
	Data []byte `cbor:"2,keyasint,omitempty"`

	// Truncated indicates if Data was truncated.
	Truncated bool `cbor:"3,keyasint,omitempty"`
}

// CommandEvent captures a daemon request or response.
type CommandEvent struct {
	Type MessageType `cbor:"1,keyasint"`

	// Command is the command name, e.g. "scan_read".
	Command string `cbor:"2,keyasint"`

	// ErrorKind is set on failed responses.
	ErrorKind string `cbor:"3,keyasint,omitempty"`

	// Duration from request receipt to response (responses only).
	Duration *time.Duration `cbor:"4,keyasint,omitempty"`
}

// MessageType distinguishes requests from responses.
type MessageType uint8

const (
	MessageTypeRequest  MessageType = 0
	MessageTypeResponse MessageType = 1
)

// String returns the message type name.
func (m MessageType) String() string {
	switch m {
	case MessageTypeRequest:
		return "REQUEST"
	case MessageTypeResponse:
		return "RESPONSE"
	default:
		return "UNKNOWN"
	}
}

// StateChangeEvent captures lifecycle transitions.
type StateChangeEvent struct {
	Entity   StateEntity `cbor:"1,keyasint"`
	OldState string      `cbor:"2,keyasint,omitempty"`
	NewState string      `cbor:"3,keyasint"`
	Reason   string      `cbor:"4,keyasint,omitempty"`
}

// StateEntity indicates what changed state.
type StateEntity uint8

const (
	StateEntitySession StateEntity = 0
	StateEntityChannel StateEntity = 1
	StateEntityWorker  StateEntity = 2
	StateEntityDevice  StateEntity = 3
)

// String returns the state entity name.
func (s StateEntity) String() string {
	switch s {
	case StateEntitySession:
		return "SESSION"
	case StateEntityChannel:
		return "CHANNEL"
	case StateEntityWorker:
		return "WORKER"
	case StateEntityDevice:
		return "DEVICE"
	default:
		return "UNKNOWN"
	}
}

// ErrorEventData captures an error at any layer.
type ErrorEventData struct {
	Layer   Layer  `cbor:"1,keyasint"`
	Message string `cbor:"2,keyasint"`

	// Code is the backend status code, if any.
	Code *int `cbor:"3,keyasint,omitempty"`

	// Context describes the operation in progress.
	Context string `cbor:"4,keyasint,omitempty"`
}
