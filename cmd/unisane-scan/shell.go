package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/chzyer/readline"

	"github.com/unisane/unisane-go/pkg/backend"
)

// shell is the interactive command loop for one open device.
type shell struct {
	dev   backend.Device
	pages *pageWriter
	rl    *readline.Instance
}

func newShell(dev backend.Device, pages *pageWriter) (*shell, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          dev.Info().Name + "> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create readline: %w", err)
	}
	return &shell{dev: dev, pages: pages, rl: rl}, nil
}

// Run reads commands until quit, EOF or ctx ends.
func (s *shell) Run(ctx context.Context) error {
	defer s.rl.Close()

	out := s.rl.Stdout()
	printHelp(out)

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		line, err := s.rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				continue
			}
			fmt.Fprintln(out, "Exiting...")
			return nil
		}
		if s.exec(ctx, out, line) {
			return nil
		}
	}
}

// exec runs one command line and reports whether the shell should exit.
func (s *shell) exec(ctx context.Context, w io.Writer, line string) (quit bool) {
	parts := strings.Fields(line)
	if len(parts) == 0 {
		return false
	}
	cmd := strings.ToLower(parts[0])
	args := parts[1:]

	var err error
	switch cmd {
	case "help", "?":
		printHelp(w)
	case "options", "o":
		err = s.cmdOptions(ctx, w)
	case "get", "g":
		err = s.cmdGet(ctx, w, args)
	case "set", "s":
		err = s.cmdSet(ctx, w, args)
	case "reload":
		err = s.dev.ReloadOptions(ctx)
	case "scan":
		err = s.cmdScan(ctx, w, args)
	case "quit", "exit", "q":
		return true
	default:
		fmt.Fprintf(w, "Unknown command: %s (type 'help' for commands)\n", cmd)
	}
	if err != nil {
		fmt.Fprintf(w, "Error: %v\n", err)
	}
	return false
}

func printHelp(w io.Writer) {
	fmt.Fprint(w, `Commands:
  options             List options and current values
  get <name>          Print one option
  set <name> <value>  Set an option
  reload              Reload options from the device
  scan [multiple]     Scan one page, or every page in the feeder
  help                Show this help
  quit                Close the device and exit
`)
}

func (s *shell) cmdOptions(ctx context.Context, w io.Writer) error {
	opts, err := s.dev.Options(ctx)
	if err != nil {
		return err
	}
	printOptions(ctx, w, opts)
	return nil
}

func (s *shell) cmdGet(ctx context.Context, w io.Writer, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: get <name>")
	}
	opts, err := s.dev.Options(ctx)
	if err != nil {
		return err
	}
	o, err := opts.Lookup(args[0])
	if err != nil {
		return err
	}
	v, err := o.Value(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "%s = %s\n", args[0], formatValue(v))
	return nil
}

func (s *shell) cmdSet(ctx context.Context, w io.Writer, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: set <name> <value>")
	}
	opts, err := s.dev.Options(ctx)
	if err != nil {
		return err
	}
	// Values may contain spaces ("Color Lineart").
	if err := setOption(ctx, opts, args[0], strings.Join(args[1:], " ")); err != nil {
		return err
	}
	return s.cmdGet(ctx, w, args[:1])
}

func (s *shell) cmdScan(ctx context.Context, w io.Writer, args []string) error {
	multiple := len(args) > 0 && strings.EqualFold(args[0], "multiple")
	n, err := scanPages(ctx, s.dev, multiple, s.pages, w)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "%d page(s) scanned\n", n)
	return nil
}
