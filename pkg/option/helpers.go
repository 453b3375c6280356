package option

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// SetPreferred sets the named option to the first of values the backend
// accepts. The name is resolved case-insensitively. Against list
// constraints each candidate is matched exactly (ignoring case) and then
// by substring, so "feeder" selects "Automatic Document Feeder".
// Candidates outside a list constraint are never sent to the backend.
//
// An inactive option is logged and skipped without error.
func SetPreferred(ctx context.Context, logger *slog.Logger, set *Set, name string, values ...any) error {
	if len(values) == 0 {
		return fmt.Errorf("%w: no candidate values for %s", ErrInvalidValue, name)
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	opt, err := set.Lookup(name)
	if err != nil {
		return err
	}
	desc := opt.Descriptor()
	if !desc.Capabilities.IsActive() {
		logger.Error("cannot set option: not active", "option", desc.Name)
		return nil
	}

	var lastErr error
	for _, v := range values {
		if desc.Constraint.IsList() {
			match, ok := matchListValue(desc, v)
			if !ok {
				lastErr = &InvalidValueError{Option: desc.Name, Value: v, Type: desc.Type, Constraint: desc.Constraint}
				continue
			}
			if match != v {
				logger.Info("option value resolved", "option", desc.Name, "requested", v, "value", match)
			}
			v = match
		}
		if err := opt.SetValue(ctx, v); err != nil {
			logger.Info("option rejected value", "option", desc.Name, "value", v, "error", err)
			lastErr = err
			continue
		}
		logger.Info("option set", "option", desc.Name, "value", v)
		return nil
	}
	logger.Warn("failed to set option", "option", desc.Name, "values", values, "error", lastErr)
	return lastErr
}

func matchListValue(d Descriptor, v any) (any, bool) {
	candidates := d.Constraint.Values(d.Type)
	want := normalize(v)
	for _, c := range candidates {
		if normalize(c) == want {
			return c, true
		}
	}
	ws, ok := want.(string)
	if !ok {
		return nil, false
	}
	for _, c := range candidates {
		if cs, ok := c.(string); ok && strings.Contains(strings.ToLower(cs), ws) {
			return c, true
		}
	}
	return nil, false
}

func normalize(v any) any {
	switch x := v.(type) {
	case string:
		return strings.ToLower(x)
	case Fixed:
		return int(x)
	}
	if n, ok := toInt(v); ok {
		return n
	}
	return v
}

// MaximizeScanArea moves the top-left corner to its minimum and the
// bottom-right corner (and page size, when present) to its maximum.
// Set the resolution first: some backends express geometry in pixels.
func MaximizeScanArea(ctx context.Context, logger *slog.Logger, set *Set) error {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	var missing []string
	var errs []error
	for _, g := range []struct {
		name     string
		max      bool
		required bool
	}{
		{"tl-x", false, true},
		{"tl-y", false, true},
		{"br-x", true, true},
		{"br-y", true, true},
		{"page-height", true, false},
		{"page-width", true, false},
	} {
		opt, ok := set.Get(g.name)
		if !ok {
			if g.required {
				missing = append(missing, g.name)
			}
			continue
		}
		d := opt.Descriptor()
		if !d.Capabilities.IsActive() {
			logger.Warn("cannot set option: not active", "option", g.name)
			continue
		}
		lo, hi, ok := d.Constraint.Bounds()
		if !ok {
			continue
		}
		target := lo
		if g.max {
			target = hi
		}
		var v any = target
		if d.Type == TypeFixed {
			v = Fixed(target)
		}
		if err := opt.SetValue(ctx, v); err != nil {
			errs = append(errs, err)
		}
	}
	if len(missing) > 0 {
		logger.Warn("failed to maximize the scan area", "missing", strings.Join(missing, ", "))
	}
	return errors.Join(errs...)
}

// Describe renders a one-line summary of d.
func Describe(d Descriptor) string {
	var b strings.Builder
	b.WriteString(d.Name)
	b.WriteString(" (")
	b.WriteString(d.Type.String())
	if u := d.Unit.String(); u != "" {
		b.WriteString(", ")
		b.WriteString(u)
	}
	b.WriteString(")")
	if c := formatConstraint(d); c != "" {
		b.WriteString(" ")
		b.WriteString(c)
	}
	if !d.Capabilities.IsActive() {
		b.WriteString(" inactive")
	}
	if !d.Capabilities.IsSettable() {
		b.WriteString(" read-only")
	}
	if d.Capabilities&CapAdvanced != 0 {
		b.WriteString(" advanced")
	}
	return b.String()
}

func formatConstraint(d Descriptor) string {
	if d.Type != TypeFixed {
		return d.Constraint.String()
	}
	c := d.Constraint
	switch c.Kind {
	case ConstraintRange:
		s := Fixed(c.Range.Min).String() + ".." + Fixed(c.Range.Max).String()
		if c.Range.Quant != 0 {
			s += "/" + Fixed(c.Range.Quant).String()
		}
		return s
	case ConstraintWordList:
		parts := make([]string, len(c.Words))
		for i, w := range c.Words {
			parts[i] = Fixed(w).String()
		}
		return "[" + strings.Join(parts, "|") + "]"
	}
	return c.String()
}
