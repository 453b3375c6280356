// Package worker serializes backend calls onto a single OS thread.
//
// Native scanner libraries are often thread-affine: every call for a
// device must come from the thread that opened it. A Worker owns one
// goroutine locked to its OS thread and runs submitted jobs in FIFO
// order. Backends take an Executor so the same code runs either inline
// on the caller's goroutine or through a Worker.
//
// A job that panics kills the worker. Later submissions fail fast with
// ErrWorkerDead instead of hanging.
package worker
