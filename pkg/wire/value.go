package wire

import (
	"fmt"

	"github.com/unisane/unisane-go/pkg/option"
)

// ValueKind is the Go type a Value decodes back to.
type ValueKind uint8

const (
	KindBool ValueKind = iota
	KindInt
	KindFixed
	KindFloat
	KindString
)

// Value is an option value that keeps its Go type across the channel.
type Value struct {
	Kind  ValueKind `cbor:"1,keyasint"`
	Bool  bool      `cbor:"2,keyasint,omitempty"`
	Int   int64     `cbor:"3,keyasint,omitempty"`
	Float float64   `cbor:"4,keyasint,omitempty"`
	Str   string    `cbor:"5,keyasint,omitempty"`
}

// ValueOf wraps v. Accepted types are the ones option.Coerce accepts.
func ValueOf(v any) (Value, error) {
	switch x := v.(type) {
	case bool:
		return Value{Kind: KindBool, Bool: x}, nil
	case option.Fixed:
		return Value{Kind: KindFixed, Int: int64(x)}, nil
	case int:
		return Value{Kind: KindInt, Int: int64(x)}, nil
	case int8:
		return Value{Kind: KindInt, Int: int64(x)}, nil
	case int16:
		return Value{Kind: KindInt, Int: int64(x)}, nil
	case int32:
		return Value{Kind: KindInt, Int: int64(x)}, nil
	case int64:
		return Value{Kind: KindInt, Int: x}, nil
	case uint8:
		return Value{Kind: KindInt, Int: int64(x)}, nil
	case uint16:
		return Value{Kind: KindInt, Int: int64(x)}, nil
	case uint32:
		return Value{Kind: KindInt, Int: int64(x)}, nil
	case float32:
		return Value{Kind: KindFloat, Float: float64(x)}, nil
	case float64:
		return Value{Kind: KindFloat, Float: x}, nil
	case string:
		return Value{Kind: KindString, Str: x}, nil
	case []byte:
		return Value{Kind: KindString, Str: string(x)}, nil
	default:
		return Value{}, fmt.Errorf("%w: unsupported type %T", option.ErrInvalidValue, v)
	}
}

// Any returns the value in its natural Go type.
func (v Value) Any() any {
	switch v.Kind {
	case KindBool:
		return v.Bool
	case KindInt:
		return int(v.Int)
	case KindFixed:
		return option.Fixed(v.Int)
	case KindFloat:
		return v.Float
	default:
		return v.Str
	}
}
