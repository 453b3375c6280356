package option

import "context"

// Funcs adapts plain functions to the Option interface. Value enforces the
// inactive check and SetValue validates against the descriptor before the
// functions run.
type Funcs struct {
	Desc func() Descriptor
	Get  func(ctx context.Context) (any, error)
	Set  func(ctx context.Context, v any) error
}

// Descriptor returns the current descriptor.
func (f *Funcs) Descriptor() Descriptor {
	return f.Desc()
}

// Value returns the current value.
func (f *Funcs) Value(ctx context.Context) (any, error) {
	if err := CheckReadable(f.Desc()); err != nil {
		return nil, err
	}
	return f.Get(ctx)
}

// SetValue validates v and passes the coerced value to Set.
func (f *Funcs) SetValue(ctx context.Context, v any) error {
	cv, err := Validate(f.Desc(), v)
	if err != nil {
		return err
	}
	return f.Set(ctx, cv)
}

var _ Option = (*Funcs)(nil)
