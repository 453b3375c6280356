// Package log provides structured event logging for scan sessions and the
// out-of-process channel.
//
// This package defines the Logger interface and Event types for capturing
// engine-level events at several layers (transport, wire, scan). It is
// separate from operational logging (slog): event capture produces a
// machine-readable trace of every frame, daemon command and state
// transition, useful when a backend misbehaves.
//
// # Basic Usage
//
//	// For development: log to console via slog
//	cfg.EventLogger = log.NewSlogAdapter(slog.Default())
//
//	// For field debugging: write a binary trace
//	cfg.EventLogger, _ = log.NewFileLogger("/tmp/scan.ulog")
//
//	// Both
//	cfg.EventLogger = log.NewMultiLogger(console, file)
//
// # Event Types
//
//   - Transport: IPC frames (FrameEvent)
//   - Wire: daemon requests and responses (CommandEvent)
//   - Scan: session and page state transitions (StateChangeEvent)
//
// # File Format
//
// Trace files are a sequence of CBOR-encoded events with the .ulog
// extension. The unisane-log tool prints and filters them.
package log
