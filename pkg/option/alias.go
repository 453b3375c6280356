package option

import (
	"context"
	"log/slog"
)

// Alias exposes one logical name for one or more physical options.
// Value reads the first target; SetValue writes every target.
type Alias struct {
	name    string
	targets []Option
	logger  *slog.Logger
}

// NewAlias creates an alias over targets. targets must not be empty.
func NewAlias(name string, targets []Option, logger *slog.Logger) *Alias {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Alias{name: name, targets: targets, logger: logger}
}

// Targets returns the underlying options.
func (a *Alias) Targets() []Option {
	return a.targets
}

// Descriptor returns the first target's descriptor under the alias name.
func (a *Alias) Descriptor() Descriptor {
	d := a.targets[0].Descriptor()
	d.Name = a.name
	return d
}

// Value reads the first target.
func (a *Alias) Value(ctx context.Context) (any, error) {
	return a.targets[0].Value(ctx)
}

// SetValue writes v to every target. A failing target does not stop the
// remaining ones; the last failure is returned once all were attempted.
func (a *Alias) SetValue(ctx context.Context, v any) error {
	var lastErr error
	for _, t := range a.targets {
		if err := t.SetValue(ctx, v); err != nil {
			a.logger.Warn("alias target rejected value",
				"alias", a.name,
				"target", t.Descriptor().Name,
				"value", v,
				"error", err)
			lastErr = err
		}
	}
	return lastErr
}

// Compile-time interface satisfaction check.
var _ Option = (*Alias)(nil)
