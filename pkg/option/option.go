package option

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Option errors.
var (
	// ErrInactive indicates a read of an option flagged inactive.
	ErrInactive = errors.New("option is not active")

	// ErrInvalidValue indicates a value rejected by type coercion or constraint.
	ErrInvalidValue = errors.New("invalid option value")

	// ErrNotFound indicates no option with the requested name exists.
	ErrNotFound = errors.New("option not found")

	// ErrNotSettable indicates a write to a read-only option.
	ErrNotSettable = errors.New("option is not settable")
)

// Descriptor describes an option. It is a snapshot: capabilities and
// constraints may change after other options are set, so callers reload.
type Descriptor struct {
	Name         string       `cbor:"1,keyasint"`
	Title        string       `cbor:"2,keyasint,omitempty"`
	Description  string       `cbor:"3,keyasint,omitempty"`
	Type         ValueType    `cbor:"4,keyasint"`
	Unit         Unit         `cbor:"5,keyasint,omitempty"`
	Size         int          `cbor:"6,keyasint,omitempty"`
	Capabilities Capabilities `cbor:"7,keyasint"`
	Constraint   Constraint   `cbor:"8,keyasint"`
}

// Option is a scanner setting bound to a backend.
type Option interface {
	// Descriptor returns the option's current metadata.
	Descriptor() Descriptor

	// Value returns the current value in its natural Go type.
	// Fails with ErrInactive if the option is inactive.
	Value(ctx context.Context) (any, error)

	// SetValue coerces and validates v, then writes it to the backend.
	SetValue(ctx context.Context, v any) error
}

// InvalidValueError carries the rejected value and what would have been valid.
type InvalidValueError struct {
	Option     string
	Value      any
	Type       ValueType
	Constraint Constraint
	Reason     string
}

// Error implements error.
func (e *InvalidValueError) Error() string {
	msg := fmt.Sprintf("%v for option %q", e.Value, e.Option)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if c := e.Constraint.String(); c != "" {
		msg += " (valid: " + c + ")"
	}
	return fmt.Sprintf("%s: %s", ErrInvalidValue, msg)
}

// Is makes errors.Is(err, ErrInvalidValue) succeed.
func (e *InvalidValueError) Is(target error) bool {
	return target == ErrInvalidValue
}

// CheckReadable returns ErrInactive if d is flagged inactive.
func CheckReadable(d Descriptor) error {
	if !d.Capabilities.IsActive() {
		return fmt.Errorf("%w: %s", ErrInactive, d.Name)
	}
	return nil
}

// Validate coerces v to d's type and checks it against d's constraint.
// The returned value is in the backend representation.
func Validate(d Descriptor, v any) (any, error) {
	if !d.Capabilities.IsSettable() {
		return nil, fmt.Errorf("%w: %s", ErrNotSettable, d.Name)
	}
	cv, err := Coerce(d.Type, v)
	if err != nil {
		return nil, &InvalidValueError{Option: d.Name, Value: v, Type: d.Type, Constraint: d.Constraint, Reason: err.Error()}
	}
	if !d.Constraint.Allows(cv) {
		return nil, &InvalidValueError{Option: d.Name, Value: v, Type: d.Type, Constraint: d.Constraint}
	}
	return cv, nil
}

// Coerce converts v into the Go representation used for type t:
// bool, int, Fixed or string.
func Coerce(t ValueType, v any) (any, error) {
	switch t {
	case TypeBool:
		if b, ok := v.(bool); ok {
			return b, nil
		}
	case TypeInt:
		if f, ok := v.(float64); ok {
			if f != math.Trunc(f) {
				return nil, fmt.Errorf("%v is not an integer", f)
			}
			return int(f), nil
		}
		if n, ok := toInt(v); ok {
			return n, nil
		}
	case TypeFixed:
		switch n := v.(type) {
		case Fixed:
			return n, nil
		case float64:
			return FixedFromFloat(n), nil
		case float32:
			return FixedFromFloat(float64(n)), nil
		}
		if n, ok := toInt(v); ok {
			return FixedFromInt(n), nil
		}
	case TypeString:
		switch s := v.(type) {
		case string:
			return s, nil
		case []byte:
			return string(s), nil
		}
	default:
		return nil, fmt.Errorf("type %s has no value", t)
	}
	return nil, fmt.Errorf("cannot use %T as %s", v, t)
}

// Parse converts user text (command line, configuration) to a value of type t.
func Parse(t ValueType, s string) (any, error) {
	s = strings.TrimSpace(s)
	switch t {
	case TypeBool:
		switch strings.ToLower(s) {
		case "yes", "on":
			return true, nil
		case "no", "off":
			return false, nil
		}
		return strconv.ParseBool(s)
	case TypeInt:
		return strconv.Atoi(s)
	case TypeFixed:
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, err
		}
		return FixedFromFloat(f), nil
	case TypeString:
		return s, nil
	default:
		return nil, fmt.Errorf("type %s has no value", t)
	}
}

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int8:
		return int(n), true
	case int16:
		return int(n), true
	case int32:
		return int(n), true
	case int64:
		return int(n), true
	case uint:
		return int(n), true
	case uint8:
		return int(n), true
	case uint16:
		return int(n), true
	case uint32:
		return int(n), true
	case uint64:
		return int(n), true
	}
	return 0, false
}
