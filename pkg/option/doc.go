// Package option models typed, constrained scanner settings.
//
// An Option is a named setting exposed by a scanner backend (resolution,
// color mode, document source, scan area). Each option carries a
// Descriptor with its value type, physical unit, capability flags and
// constraint, and delegates get/set to the backend that owns it.
//
// # Value Types
//
// Only the gettable/settable kinds are exposed:
//
//	TypeBool   -> bool
//	TypeInt    -> int
//	TypeFixed  -> Fixed (16.16 fixed point)
//	TypeString -> string
//
// Button and group descriptors are filtered out by the backends.
//
// # Inactive Options
//
// Reading the value of an option whose capabilities include CapInactive
// fails with ErrInactive, regardless of what the backend would return.
// Backends call CheckReadable before touching the native layer.
//
// # Constraints
//
// Constraints are a closed tagged variant: none, range (min, max, quant),
// word list, or string list. NormalizeRange converts a raw range in a
// caller-stated RangeLayout into the canonical (min, max, quant) order.
//
// # Aliases
//
// Alias exposes one logical name for several physical options. Reads go to
// the first target, writes go to every target.
package option
