// Package sane implements the buffered backend model: a handle and
// option-index protocol with blocking reads.
//
// The native library is reached through the Driver and Handle interfaces.
// A cgo implementation lives in the native sub-package; the virtual
// package provides a deterministic one for tests and demos.
//
// Some native backends fail when more than one device handle is open in
// a process. The HandleManager keeps at most one handle open and closes
// it when another device is used. Devices re-acquire their handle on
// every call, so switching between devices is transparent apart from the
// cost of reopening.
//
// Every driver call is routed through the configured worker.Executor.
package sane
