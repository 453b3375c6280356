package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/unisane/unisane-go/pkg/discovery"
)

func runList(ctx context.Context, args []string) (err error) {
	fs, cf := newFlagSet("list", "List devices", "")
	localOnly := fs.Bool("local", false, "Exclude network devices where the backend can tell")
	network := fs.Bool("network", false, "Also browse the network for eSCL scanners")
	source := fs.String("source", "", "With -network, only list scanners offering this source (platen, adf, camera)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	e, err := newEnv(cf)
	if err != nil {
		return err
	}
	defer func() { err = errors.Join(err, e.Close()) }()

	b, err := e.openBackend(ctx)
	if err != nil {
		return err
	}
	devs, err := b.Devices(ctx, *localOnly)
	if err != nil {
		return err
	}
	if len(devs) == 0 {
		fmt.Println("No devices found.")
	}
	for _, d := range devs {
		fmt.Println(d.String())
	}

	if !*network {
		return nil
	}
	return listNetwork(ctx, e, *source)
}

func listNetwork(ctx context.Context, e *env, source string) error {
	browser, err := discovery.NewMDNSBrowser(e.cfg.BrowserConfig(), e.logger)
	if err != nil {
		return err
	}
	defer browser.Stop()

	services, err := browser.Collect(ctx)
	if err != nil {
		return err
	}
	fmt.Println()
	fmt.Println("Network scanners:")
	n := 0
	for _, s := range services {
		if source != "" && !s.HasSource(source) {
			continue
		}
		n++
		fmt.Printf("  %s\n", s.InstanceName)
		fmt.Printf("    Model:   %s\n", s.Model)
		fmt.Printf("    URL:     %s\n", s.URL())
		if len(s.Sources) > 0 {
			fmt.Printf("    Sources: %s\n", strings.Join(s.Sources, ", "))
		}
		if len(s.ColorSpaces) > 0 {
			fmt.Printf("    Color:   %s\n", strings.Join(s.ColorSpaces, ", "))
		}
		if s.Duplex {
			fmt.Println("    Duplex:  yes")
		}
	}
	if n == 0 {
		fmt.Println("  (none)")
	}
	return nil
}

func runOptions(ctx context.Context, args []string) (err error) {
	fs, cf := newFlagSet("options", "Print a device's options", "<device>")
	if err := fs.Parse(args); err != nil {
		return err
	}
	name := deviceArg(fs)

	e, err := newEnv(cf)
	if err != nil {
		return err
	}
	defer func() { err = errors.Join(err, e.Close()) }()

	b, err := e.openBackend(ctx)
	if err != nil {
		return err
	}
	dev, err := e.openDevice(ctx, b, name)
	if err != nil {
		return err
	}
	defer dev.Close()

	opts, err := dev.Options(ctx)
	if err != nil {
		return err
	}
	printOptions(ctx, os.Stdout, opts)
	return nil
}

func runScan(ctx context.Context, args []string) (err error) {
	fs, cf := newFlagSet("scan", "Scan pages to image files", "<device>")
	var sets assignments
	fs.Var(&sets, "o", "Set an option before scanning (name=value, repeatable)")
	multiple := fs.Bool("multiple", false, "Scan every page in the feeder")
	pattern := fs.String("out", "", "Output file pattern without extension (default from config)")
	format := fs.String("format", "", "Output format: png, jpeg, tiff (default from config)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	name := deviceArg(fs)

	e, err := newEnv(cf)
	if err != nil {
		return err
	}
	defer func() { err = errors.Join(err, e.Close()) }()
	if *pattern != "" {
		e.cfg.Output.Pattern = *pattern
	}
	if *format != "" {
		e.cfg.Output.Format = *format
		if err := e.cfg.Validate(); err != nil {
			return err
		}
	}

	b, err := e.openBackend(ctx)
	if err != nil {
		return err
	}
	dev, err := e.openDevice(ctx, b, name)
	if err != nil {
		return err
	}
	defer dev.Close()

	if len(sets) > 0 {
		opts, err := dev.Options(ctx)
		if err != nil {
			return err
		}
		for _, s := range sets {
			if err := setOption(ctx, opts, s.name, s.value); err != nil {
				return err
			}
		}
	}

	n, err := scanPages(ctx, dev, *multiple, newPageWriter(e.cfg.Output), os.Stdout)
	if err != nil {
		return err
	}
	e.logger.Info("scan finished", "device", name, "pages", n)
	return nil
}

func runInteractive(ctx context.Context, args []string) (err error) {
	fs, cf := newFlagSet("interactive", "Open a device in an interactive shell", "<device>")
	if err := fs.Parse(args); err != nil {
		return err
	}
	name := deviceArg(fs)

	e, err := newEnv(cf)
	if err != nil {
		return err
	}
	defer func() { err = errors.Join(err, e.Close()) }()

	b, err := e.openBackend(ctx)
	if err != nil {
		return err
	}
	dev, err := e.openDevice(ctx, b, name)
	if err != nil {
		return err
	}
	defer dev.Close()

	sh, err := newShell(dev, newPageWriter(e.cfg.Output))
	if err != nil {
		return err
	}
	return sh.Run(ctx)
}
