package log

import (
	"fmt"
	"strings"
)

// Logger receives engine events. Pass nil or NoopLogger to disable.
type Logger interface {
	// Log records an event. Implementations must be thread-safe and
	// should not block: events are emitted from the scan read path.
	Log(event Event)
}

// NoopLogger discards all events.
type NoopLogger struct{}

// Log discards the event.
func (NoopLogger) Log(Event) {}

// LayerSet is a set of layers. The zero value holds no layer.
type LayerSet uint8

// AllLayers selects transport, wire and scan events.
const AllLayers = LayerSet(1<<LayerTransport | 1<<LayerWire | 1<<LayerScan)

// Layers returns the set holding the given layers.
func Layers(layers ...Layer) LayerSet {
	var s LayerSet
	for _, l := range layers {
		s |= 1 << l
	}
	return s
}

// Has reports whether l is in the set.
func (s LayerSet) Has(l Layer) bool {
	return s&(1<<l) != 0
}

// ParseLayer parses a layer name (case-insensitive).
func ParseLayer(s string) (Layer, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "transport":
		return LayerTransport, nil
	case "wire":
		return LayerWire, nil
	case "scan":
		return LayerScan, nil
	default:
		return 0, fmt.Errorf("invalid layer: %s (must be transport, wire, or scan)", s)
	}
}

// ParseLayers parses layer names into a set. An empty list selects every
// layer.
func ParseLayers(names []string) (LayerSet, error) {
	if len(names) == 0 {
		return AllLayers, nil
	}
	var s LayerSet
	for _, name := range names {
		l, err := ParseLayer(name)
		if err != nil {
			return 0, err
		}
		s |= Layers(l)
	}
	return s, nil
}

// Compile-time interface satisfaction check.
var _ Logger = NoopLogger{}
