package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/unisane/unisane-go/pkg/backend"
	"github.com/unisane/unisane-go/pkg/option"
	"github.com/unisane/unisane-go/pkg/scan"
)

// assignment is a name=value pair from the command line.
type assignment struct {
	name  string
	value string
}

// assignments collects repeated -o flags.
type assignments []assignment

func (a *assignments) String() string {
	parts := make([]string, len(*a))
	for i, as := range *a {
		parts[i] = as.name + "=" + as.value
	}
	return strings.Join(parts, ",")
}

func (a *assignments) Set(s string) error {
	name, value, ok := strings.Cut(s, "=")
	if !ok || name == "" {
		return fmt.Errorf("expected name=value, got %q", s)
	}
	*a = append(*a, assignment{name: strings.TrimSpace(name), value: value})
	return nil
}

// setOption parses raw according to the option's type and sets it.
func setOption(ctx context.Context, opts *option.Set, name, raw string) error {
	o, err := opts.Lookup(name)
	if err != nil {
		return err
	}
	d := o.Descriptor()
	v, err := option.Parse(d.Type, raw)
	if err != nil {
		return fmt.Errorf("%s: %w: %w", name, option.ErrInvalidValue, err)
	}
	return o.SetValue(ctx, v)
}

// formatValue renders an option value for display.
func formatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return "-"
	case string:
		return fmt.Sprintf("%q", x)
	default:
		return fmt.Sprint(x)
	}
}

// printOptions writes one line per exposed option with its current value.
// Values of inactive options are not read.
func printOptions(ctx context.Context, w io.Writer, opts *option.Set) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, o := range opts.All() {
		d := o.Descriptor()
		if !d.Type.IsExposed() {
			continue
		}
		value := "-"
		if d.Capabilities.IsActive() {
			v, err := o.Value(ctx)
			switch {
			case err == nil:
				value = formatValue(v)
			case errors.Is(err, option.ErrInactive):
			default:
				value = "error: " + err.Error()
			}
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", d.Name, value, option.Describe(d))
	}
	tw.Flush()
}

// scanPages runs one scan session on dev and saves every completed page
// with pages. It returns the number of pages written.
func scanPages(ctx context.Context, dev backend.Device, multiple bool, pages *pageWriter, out io.Writer) (int, error) {
	sess, err := dev.Scan(ctx, multiple)
	if err != nil {
		return 0, err
	}
	defer sess.Close(ctx)

	written := 0
	flush := func() error {
		for ; written < sess.Len(); written++ {
			img, err := sess.ImageList().At(written)
			if err != nil {
				return err
			}
			path, err := pages.Write(img)
			if err != nil {
				return err
			}
			b := img.Bounds()
			fmt.Fprintf(out, "page %d: %dx%d -> %s\n", written+1, b.Dx(), b.Dy(), path)
		}
		return nil
	}

	for {
		st, err := sess.Scan().Read(ctx)
		if err != nil {
			if ferr := flush(); ferr != nil {
				err = errors.Join(err, ferr)
			}
			return written, err
		}
		switch st {
		case scan.StatusPageComplete:
			if err := flush(); err != nil {
				return written, err
			}
		case scan.StatusSessionComplete:
			return written, flush()
		}
	}
}
