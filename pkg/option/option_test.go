package option

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memOption is an in-memory option used by the tests.
type memOption struct {
	desc   Descriptor
	value  any
	setErr error
	sets   int
}

func newMemOption(name string, t ValueType, c Constraint, value any) *memOption {
	return &memOption{
		desc: Descriptor{
			Name:         name,
			Type:         t,
			Capabilities: CapReadWrite,
			Constraint:   c,
		},
		value: value,
	}
}

func (m *memOption) Descriptor() Descriptor { return m.desc }

func (m *memOption) Value(ctx context.Context) (any, error) {
	if err := CheckReadable(m.desc); err != nil {
		return nil, err
	}
	return m.value, nil
}

func (m *memOption) SetValue(ctx context.Context, v any) error {
	m.sets++
	if m.setErr != nil {
		return m.setErr
	}
	cv, err := Validate(m.desc, v)
	if err != nil {
		return err
	}
	m.value = cv
	return nil
}

func TestNormalizeRange(t *testing.T) {
	tests := []struct {
		name   string
		raw    []int
		layout RangeLayout
		want   Range
	}{
		{"min max", []int{0, 100}, RangeMinMaxQuant, Range{Min: 0, Max: 100}},
		{"canonical", []int{50, 1200, 1}, RangeMinMaxQuant, Range{Min: 50, Max: 1200, Quant: 1}},
		{"canonical step above max", []int{0, 1, 100}, RangeMinMaxQuant, Range{Min: 0, Max: 1, Quant: 100}},
		{"negative bounds", []int{-100, -10, 1}, RangeMinMaxQuant, Range{Min: -100, Max: -10, Quant: 1}},
		{"min step max", []int{50, 25, 1200}, RangeMinQuantMax, Range{Min: 50, Max: 1200, Quant: 25}},
		{"min nominal max step", []int{75, 300, 1200, 25}, RangeMinNominalMaxStep, Range{Min: 75, Max: 1200, Quant: 25}},
		{"negative nominal", []int{-50, -20, -10, 5}, RangeMinNominalMaxStep, Range{Min: -50, Max: -10, Quant: 5}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeRange(tt.raw, tt.layout)
			if err != nil {
				t.Fatalf("NormalizeRange failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("NormalizeRange(%v) = %+v, want %+v", tt.raw, got, tt.want)
			}
		})
	}

	invalid := []struct {
		name   string
		raw    []int
		layout RangeLayout
	}{
		{"one value", []int{1}, RangeMinMaxQuant},
		{"wrong length for layout", []int{0, 1, 100}, RangeMinNominalMaxStep},
		{"max below min", []int{10, -10, 1}, RangeMinMaxQuant},
		{"negative step", []int{0, -1, 10}, RangeMinQuantMax},
	}
	for _, tt := range invalid {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NormalizeRange(tt.raw, tt.layout)
			if !errors.Is(err, ErrInvalidConstraint) {
				t.Errorf("expected ErrInvalidConstraint, got %v", err)
			}
		})
	}
}

func TestNegativeRangeRejectsAboveMax(t *testing.T) {
	r, err := NormalizeRange([]int{-100, -10, 1}, RangeMinMaxQuant)
	require.NoError(t, err)
	c := Constraint{Kind: ConstraintRange, Range: r}
	assert.True(t, c.Allows(-10))
	assert.True(t, c.Allows(-100))
	assert.False(t, c.Allows(-9))
	assert.False(t, c.Allows(1))
}

func TestConstraintAllows(t *testing.T) {
	rng := NewRange(50, 600, 1)
	assert.True(t, rng.Allows(50))
	assert.True(t, rng.Allows(600))
	assert.False(t, rng.Allows(601))
	assert.False(t, rng.Allows("300"))

	words := NewWordList(75, 150, 300)
	assert.True(t, words.Allows(150))
	assert.False(t, words.Allows(200))

	strs := NewStringList("Flatbed", "ADF")
	assert.True(t, strs.Allows("ADF"))
	assert.False(t, strs.Allows("adf"))

	assert.True(t, NoConstraint().Allows(12345))
}

func TestConstraintSorted(t *testing.T) {
	c := NewStringList("b", "c", "a").Sorted()
	assert.Equal(t, []string{"a", "b", "c"}, c.Strings)

	w := NewWordList(300, 75, 150).Sorted()
	assert.Equal(t, []int{75, 150, 300}, w.Words)
}

func TestCoerce(t *testing.T) {
	tests := []struct {
		name    string
		typ     ValueType
		in      any
		want    any
		wantErr bool
	}{
		{"bool", TypeBool, true, true, false},
		{"int from int64", TypeInt, int64(300), 300, false},
		{"int from integral float", TypeInt, 300.0, 300, false},
		{"int from fractional float", TypeInt, 1.5, nil, true},
		{"fixed from float", TypeFixed, 1.5, Fixed(98304), false},
		{"fixed from int", TypeFixed, 2, Fixed(131072), false},
		{"string from bytes", TypeString, []byte("Color"), "Color", false},
		{"string from int", TypeString, 3, nil, true},
		{"button", TypeButton, true, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Coerce(tt.typ, tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParse(t *testing.T) {
	v, err := Parse(TypeBool, "yes")
	require.NoError(t, err)
	assert.Equal(t, true, v)

	v, err = Parse(TypeInt, " 300 ")
	require.NoError(t, err)
	assert.Equal(t, 300, v)

	v, err = Parse(TypeFixed, "215.9")
	require.NoError(t, err)
	assert.InDelta(t, 215.9, v.(Fixed).Float(), 0.0001)

	_, err = Parse(TypeInt, "abc")
	assert.Error(t, err)
}

func TestFixed(t *testing.T) {
	f := FixedFromFloat(297.0)
	assert.Equal(t, 297.0, f.Float())
	assert.Equal(t, "297", f.String())
	assert.Equal(t, "0.5", FixedFromFloat(0.5).String())
	assert.Equal(t, FixedFromInt(3), FixedFromFloat(3))
}

func TestValidate(t *testing.T) {
	d := Descriptor{Name: "resolution", Type: TypeInt, Capabilities: CapReadWrite, Constraint: NewWordList(75, 150, 300)}

	v, err := Validate(d, int32(150))
	require.NoError(t, err)
	assert.Equal(t, 150, v)

	_, err = Validate(d, 200)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidValue))

	var ive *InvalidValueError
	require.True(t, errors.As(err, &ive))
	assert.Equal(t, 200, ive.Value)
	assert.Equal(t, []int{75, 150, 300}, ive.Constraint.Words)

	d.Capabilities = CapReadOnly
	_, err = Validate(d, 150)
	assert.True(t, errors.Is(err, ErrNotSettable))
}

func TestInactiveOptionAlwaysFails(t *testing.T) {
	// The backend still has a value; the read must fail anyway.
	var called bool
	o := &Funcs{
		Desc: func() Descriptor {
			return Descriptor{Name: "threshold", Type: TypeInt, Capabilities: CapReadWrite | CapInactive}
		},
		Get: func(ctx context.Context) (any, error) {
			called = true
			return 128, nil
		},
		Set: func(ctx context.Context, v any) error { return nil },
	}

	_, err := o.Value(context.Background())
	assert.True(t, errors.Is(err, ErrInactive))
	assert.False(t, called, "backend must not be consulted for inactive options")
}

func TestCapabilities(t *testing.T) {
	c := CapReadWrite | CapAdvanced
	assert.True(t, c.IsActive())
	assert.True(t, c.IsSettable())
	assert.True(t, c.Has(CapSoftDetect))
	assert.Equal(t, "soft_select,soft_detect,advanced", c.String())

	assert.False(t, (c | CapInactive).IsActive())
	assert.False(t, CapReadOnly.IsSettable())
	assert.Equal(t, "-", Capabilities(0).String())
}
