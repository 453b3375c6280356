package option

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// ErrInvalidConstraint indicates raw constraint data that cannot be decoded.
var ErrInvalidConstraint = errors.New("invalid constraint")

// ConstraintKind identifies the variant held by a Constraint.
type ConstraintKind uint8

const (
	ConstraintNone ConstraintKind = iota
	ConstraintRange
	ConstraintWordList
	ConstraintStringList
)

// String returns the constraint kind name.
func (k ConstraintKind) String() string {
	switch k {
	case ConstraintNone:
		return "none"
	case ConstraintRange:
		return "range"
	case ConstraintWordList:
		return "word_list"
	case ConstraintStringList:
		return "string_list"
	default:
		return "unknown"
	}
}

// Range is a numeric range in canonical (min, max, quant) order.
// For fixed-point options the bounds are raw Fixed values.
type Range struct {
	Min   int `cbor:"1,keyasint"`
	Max   int `cbor:"2,keyasint"`
	Quant int `cbor:"3,keyasint,omitempty"`
}

// Contains reports whether v lies within the bounds.
// Quantization is not enforced; backends round to the nearest step.
func (r Range) Contains(v int) bool {
	return v >= r.Min && v <= r.Max
}

// Constraint restricts the values an option accepts.
// Exactly one of Range, Words or Strings is meaningful, selected by Kind.
type Constraint struct {
	Kind    ConstraintKind `cbor:"1,keyasint"`
	Range   Range          `cbor:"2,keyasint,omitempty"`
	Words   []int          `cbor:"3,keyasint,omitempty"`
	Strings []string       `cbor:"4,keyasint,omitempty"`
}

// NoConstraint returns the empty constraint.
func NoConstraint() Constraint {
	return Constraint{Kind: ConstraintNone}
}

// NewRange returns a range constraint.
func NewRange(min, max, quant int) Constraint {
	return Constraint{Kind: ConstraintRange, Range: Range{Min: min, Max: max, Quant: quant}}
}

// NewWordList returns a word list constraint preserving the given order.
func NewWordList(words ...int) Constraint {
	return Constraint{Kind: ConstraintWordList, Words: slices.Clone(words)}
}

// NewStringList returns a string list constraint preserving the given order.
func NewStringList(values ...string) Constraint {
	return Constraint{Kind: ConstraintStringList, Strings: slices.Clone(values)}
}

// RangeLayout names the order of the values in a raw range.
type RangeLayout uint8

const (
	// RangeMinMaxQuant is [min, max] or [min, max, quant].
	RangeMinMaxQuant RangeLayout = iota

	// RangeMinQuantMax is [min, quant, max].
	RangeMinQuantMax

	// RangeMinNominalMaxStep is [min, nominal, max, step], as reported by
	// property-style ranges.
	RangeMinNominalMaxStep
)

// NormalizeRange decodes a raw range in the given layout into canonical
// (min, max, quant) order. The layout is fixed by the source of the
// values; it is never guessed from the values themselves.
func NormalizeRange(raw []int, layout RangeLayout) (Range, error) {
	var r Range
	switch {
	case layout == RangeMinMaxQuant && len(raw) == 2:
		r = Range{Min: raw[0], Max: raw[1]}
	case layout == RangeMinMaxQuant && len(raw) == 3:
		r = Range{Min: raw[0], Max: raw[1], Quant: raw[2]}
	case layout == RangeMinQuantMax && len(raw) == 3:
		r = Range{Min: raw[0], Max: raw[2], Quant: raw[1]}
	case layout == RangeMinNominalMaxStep && len(raw) == 4:
		r = Range{Min: raw[0], Max: raw[2], Quant: raw[3]}
	default:
		return Range{}, fmt.Errorf("%w: range with %d values in layout %d", ErrInvalidConstraint, len(raw), layout)
	}
	if r.Max < r.Min || r.Quant < 0 {
		return Range{}, fmt.Errorf("%w: range %v", ErrInvalidConstraint, raw)
	}
	return r, nil
}

// Sorted returns a copy of c with list values in ascending order.
func (c Constraint) Sorted() Constraint {
	out := c
	switch c.Kind {
	case ConstraintWordList:
		out.Words = slices.Sorted(slices.Values(c.Words))
	case ConstraintStringList:
		out.Strings = slices.Sorted(slices.Values(c.Strings))
	}
	return out
}

// IsList reports whether c is a discrete list constraint.
func (c Constraint) IsList() bool {
	return c.Kind == ConstraintWordList || c.Kind == ConstraintStringList
}

// Values returns the list members in natural Go types, or nil for
// non-list constraints.
func (c Constraint) Values(t ValueType) []any {
	switch c.Kind {
	case ConstraintWordList:
		out := make([]any, len(c.Words))
		for i, w := range c.Words {
			if t == TypeFixed {
				out[i] = Fixed(w)
			} else {
				out[i] = w
			}
		}
		return out
	case ConstraintStringList:
		out := make([]any, len(c.Strings))
		for i, s := range c.Strings {
			out[i] = s
		}
		return out
	}
	return nil
}

// Allows reports whether the coerced value v satisfies c.
func (c Constraint) Allows(v any) bool {
	switch c.Kind {
	case ConstraintRange:
		n, ok := numeric(v)
		return ok && c.Range.Contains(n)
	case ConstraintWordList:
		n, ok := numeric(v)
		return ok && slices.Contains(c.Words, n)
	case ConstraintStringList:
		s, ok := v.(string)
		return ok && slices.Contains(c.Strings, s)
	default:
		return true
	}
}

// Bounds returns the smallest and largest acceptable numeric values.
func (c Constraint) Bounds() (lo, hi int, ok bool) {
	switch c.Kind {
	case ConstraintRange:
		return c.Range.Min, c.Range.Max, true
	case ConstraintWordList:
		if len(c.Words) == 0 {
			return 0, 0, false
		}
		return slices.Min(c.Words), slices.Max(c.Words), true
	}
	return 0, 0, false
}

// String formats the constraint for display.
func (c Constraint) String() string {
	switch c.Kind {
	case ConstraintRange:
		if c.Range.Quant != 0 {
			return fmt.Sprintf("%d..%d/%d", c.Range.Min, c.Range.Max, c.Range.Quant)
		}
		return fmt.Sprintf("%d..%d", c.Range.Min, c.Range.Max)
	case ConstraintWordList:
		parts := make([]string, len(c.Words))
		for i, w := range c.Words {
			parts[i] = strconv.Itoa(w)
		}
		return "[" + strings.Join(parts, "|") + "]"
	case ConstraintStringList:
		return "[" + strings.Join(c.Strings, "|") + "]"
	default:
		return ""
	}
}

// numeric extracts the integer representation of a coerced value.
func numeric(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case Fixed:
		return int(n), true
	}
	return 0, false
}
