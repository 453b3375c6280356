// Command unisane-scan lists scanners, inspects their options and scans
// pages to image files.
//
// Usage:
//
//	unisane-scan <command> [flags] [device]
//
// Commands:
//
//	list         List devices (and, with -network, eSCL scanners)
//	options      Print a device's options
//	scan         Scan one page, or every page in the feeder with -multiple
//	interactive  Open a device in an interactive shell
//
// Flags shared by all commands:
//
//	-backend string       sane, wia, virtual, virtual-wia or daemon (default from config)
//	-config string        YAML configuration file
//	-log-level string     debug, info, warn or error
//	-protocol-log string  Write protocol events to this file (CBOR, .ulog)
//
// Examples:
//
//	# List the virtual test devices
//	unisane-scan list -backend virtual
//
//	# Scan every page in the feeder to TIFF through the daemon
//	unisane-scan scan -backend daemon -multiple -format tiff -o source=ADF test:0
//
//	# Browse the network for eSCL scanners
//	unisane-scan list -network
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

const usage = `unisane-scan - scanner command-line client

Usage:
  unisane-scan <command> [flags] [device]

Commands:
  list         List devices
  options      Print a device's options
  scan         Scan pages to image files
  interactive  Open a device in an interactive shell

Use "unisane-scan <command> -help" for more information about a command.
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cmd := os.Args[1]
	args := os.Args[2:]

	var err error
	switch cmd {
	case "list":
		err = runList(ctx, args)
	case "options":
		err = runOptions(ctx, args)
	case "scan":
		err = runScan(ctx, args)
	case "interactive":
		err = runInteractive(ctx, args)
	case "-h", "-help", "--help", "help":
		fmt.Print(usage)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

// commonFlags are registered on every command's flag set.
type commonFlags struct {
	backend     string
	configPath  string
	logLevel    string
	protocolLog string
}

func newFlagSet(name, synopsis, args string) (*flag.FlagSet, *commonFlags) {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `unisane-scan %s - %s

Usage:
  unisane-scan %s [flags] %s

Flags:
`, name, synopsis, name, args)
		fs.PrintDefaults()
	}

	cf := &commonFlags{}
	fs.StringVar(&cf.backend, "backend", "", "Backend: sane, wia, virtual, virtual-wia, daemon (default from config)")
	fs.StringVar(&cf.configPath, "config", "", "Configuration file path")
	fs.StringVar(&cf.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	fs.StringVar(&cf.protocolLog, "protocol-log", "", "File path for protocol event logging (CBOR format)")
	return fs, cf
}

// deviceArg returns the single positional device name or exits.
func deviceArg(fs *flag.FlagSet) string {
	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Error: device name required")
		fs.Usage()
		os.Exit(1)
	}
	return fs.Arg(0)
}
