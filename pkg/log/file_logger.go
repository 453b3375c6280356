package log

import (
	"os"
	"sync"

	"github.com/fxamacker/cbor/v2"
)

// FileOption configures a FileLogger.
type FileOption func(*FileLogger)

// WithLayers records only events of the given layers.
func WithLayers(layers LayerSet) FileOption {
	return func(l *FileLogger) { l.layers = layers }
}

// WithoutFrameData drops frame payloads and keeps their sizes.
func WithoutFrameData() FileOption {
	return func(l *FileLogger) { l.omitFrameData = true }
}

// FileLogger appends CBOR-encoded events to a trace file.
// It is safe for concurrent use.
type FileLogger struct {
	mu      sync.Mutex
	file    *os.File
	encoder *cbor.Encoder
	closed  bool
	dropped int

	layers        LayerSet
	omitFrameData bool
}

// NewFileLogger opens path for appending, creating it with mode 0644.
// Without options every event is recorded as captured.
func NewFileLogger(path string, opts ...FileOption) (*FileLogger, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, err
	}
	l := &FileLogger{
		file:    f,
		encoder: NewEncoder(f),
		layers:  AllLayers,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Log writes an event of a selected layer. Encoding failures are counted,
// never returned: tracing must not disturb a scan.
func (l *FileLogger) Log(event Event) {
	if !l.layers.Has(event.Layer) {
		return
	}
	if l.omitFrameData {
		event = withoutFrameData(event)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return
	}
	if err := l.encoder.Encode(event); err != nil {
		l.dropped++
	}
}

// Dropped returns the number of events that failed to encode.
func (l *FileLogger) Dropped() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.dropped
}

// Close closes the file. Later Log calls are ignored; Close is idempotent.
func (l *FileLogger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil
	}
	l.closed = true
	return l.file.Close()
}

// Compile-time interface satisfaction check.
var _ Logger = (*FileLogger)(nil)
