package option

import (
	"math"
	"strconv"
	"strings"
)

// ValueType is the type of an option value.
type ValueType uint8

const (
	TypeBool ValueType = iota
	TypeInt
	TypeFixed
	TypeString
	TypeButton
	TypeGroup
)

// String returns the value type name.
func (t ValueType) String() string {
	switch t {
	case TypeBool:
		return "bool"
	case TypeInt:
		return "int"
	case TypeFixed:
		return "fixed"
	case TypeString:
		return "string"
	case TypeButton:
		return "button"
	case TypeGroup:
		return "group"
	default:
		return "unknown"
	}
}

// IsExposed reports whether values of this type can be read and written.
func (t ValueType) IsExposed() bool {
	return t <= TypeString
}

// Unit is the physical unit of an option value.
type Unit uint8

const (
	UnitNone Unit = iota
	UnitPixel
	UnitBit
	UnitMM
	UnitDPI
	UnitPercent
	UnitMicrosecond
)

// String returns the unit symbol.
func (u Unit) String() string {
	switch u {
	case UnitNone:
		return ""
	case UnitPixel:
		return "px"
	case UnitBit:
		return "bit"
	case UnitMM:
		return "mm"
	case UnitDPI:
		return "dpi"
	case UnitPercent:
		return "%"
	case UnitMicrosecond:
		return "us"
	default:
		return "?"
	}
}

// Capabilities is a set of option capability flags.
type Capabilities uint16

const (
	// CapSoftSelect means the value can be set in software.
	CapSoftSelect Capabilities = 1 << iota

	// CapHardSelect means the value is set by a physical switch.
	CapHardSelect

	// CapSoftDetect means the value can be read in software.
	CapSoftDetect

	// CapEmulated means the backend emulates the option.
	CapEmulated

	// CapAutomatic means the backend can pick the value itself.
	CapAutomatic

	// CapInactive means the option currently has no effect.
	CapInactive

	// CapAdvanced marks expert-level options.
	CapAdvanced

	// CapReadWrite is the usual set for a plain settable option.
	CapReadWrite = CapSoftSelect | CapSoftDetect

	// CapReadOnly is the usual set for a read-only option.
	CapReadOnly = CapSoftDetect
)

// Has reports whether all flags in c2 are set.
func (c Capabilities) Has(c2 Capabilities) bool { return c&c2 == c2 }

// IsActive reports whether the option is active.
func (c Capabilities) IsActive() bool { return c&CapInactive == 0 }

// IsSettable reports whether the option can be set in software.
func (c Capabilities) IsSettable() bool { return c&CapSoftSelect != 0 }

// String returns the flags as a compact string.
func (c Capabilities) String() string {
	names := []struct {
		flag Capabilities
		name string
	}{
		{CapSoftSelect, "soft_select"},
		{CapHardSelect, "hard_select"},
		{CapSoftDetect, "soft_detect"},
		{CapEmulated, "emulated"},
		{CapAutomatic, "automatic"},
		{CapInactive, "inactive"},
		{CapAdvanced, "advanced"},
	}
	var parts []string
	for _, n := range names {
		if c&n.flag != 0 {
			parts = append(parts, n.name)
		}
	}
	if len(parts) == 0 {
		return "-"
	}
	return strings.Join(parts, ",")
}

// Fixed is a 16.16 fixed-point number as used by SANE.
type Fixed int32

// fixedOne is 1.0 in fixed-point representation.
const fixedOne = 1 << 16

// FixedFromFloat converts f to the nearest fixed-point value.
func FixedFromFloat(f float64) Fixed {
	return Fixed(math.Round(f * fixedOne))
}

// FixedFromInt converts an integer to fixed point.
func FixedFromInt(i int) Fixed {
	return Fixed(i * fixedOne)
}

// Float returns f as a float64.
func (f Fixed) Float() float64 {
	return float64(f) / fixedOne
}

// String formats f with up to four decimals.
func (f Fixed) String() string {
	s := strconv.FormatFloat(f.Float(), 'f', 4, 64)
	s = strings.TrimRight(s, "0")
	return strings.TrimSuffix(s, ".")
}
