package commands

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/unisane/unisane-go/pkg/log"
)

func TestRunStats(t *testing.T) {
	base := time.Date(2026, 1, 28, 10, 0, 0, 0, time.UTC)
	d := 3 * time.Millisecond
	events := []log.Event{
		{
			Timestamp: base, SessionID: "channel-a", Role: log.RoleDaemon,
			Layer: log.LayerWire, Direction: log.DirectionIn, Device: "test:0",
			Command: &log.CommandEvent{Type: log.MessageTypeRequest, Command: "open"},
		},
		{
			Timestamp: base.Add(time.Millisecond), SessionID: "channel-a", Role: log.RoleDaemon,
			Layer: log.LayerWire, Direction: log.DirectionOut,
			Command: &log.CommandEvent{Type: log.MessageTypeResponse, Command: "open", Duration: &d},
		},
		{
			Timestamp: base.Add(2 * time.Millisecond), SessionID: "channel-a", Role: log.RoleDaemon,
			Layer: log.LayerWire, Direction: log.DirectionIn,
			Command: &log.CommandEvent{Type: log.MessageTypeRequest, Command: "set_option_value"},
		},
		{
			Timestamp: base.Add(3 * time.Millisecond), SessionID: "channel-a", Role: log.RoleDaemon,
			Layer: log.LayerWire, Direction: log.DirectionOut,
			Command: &log.CommandEvent{Type: log.MessageTypeResponse, Command: "set_option_value", ErrorKind: "inactive"},
		},
		{
			Timestamp: base.Add(time.Second), SessionID: "session-b", Role: log.RoleLocal,
			Layer: log.LayerScan, Category: log.CategoryError,
			Error: &log.ErrorEventData{Layer: log.LayerScan, Message: "jammed"},
		},
	}
	path := createTestLogFile(t, events)

	var buf bytes.Buffer
	if err := RunStats(path, &buf); err != nil {
		t.Fatalf("RunStats failed: %v", err)
	}
	output := buf.String()

	checks := []string{
		"Total Events: 5",
		"WIRE:",
		"SCAN:",
		"DAEMON:",
		"LOCAL:",
		"Sessions: 2",
		"[channel-] 4 events",
		"Device: test:0",
		"Commands: open=1 set_option_value=1",
		"Failures: inactive=1",
		"Slowest response: 3.000ms",
		"Errors: 1",
	}
	for _, want := range checks {
		if !strings.Contains(output, want) {
			t.Errorf("expected %q in output, got:\n%s", want, output)
		}
	}
}

func TestRunStatsEmpty(t *testing.T) {
	path := createTestLogFile(t, nil)

	var buf bytes.Buffer
	if err := RunStats(path, &buf); err != nil {
		t.Fatalf("RunStats failed: %v", err)
	}
	output := buf.String()

	if !strings.Contains(output, "Total Events: 0") {
		t.Errorf("expected zero events, got:\n%s", output)
	}
	if strings.Contains(output, "Time Range") {
		t.Errorf("expected no time range for empty file, got:\n%s", output)
	}
}

func TestFormatCounts(t *testing.T) {
	got := formatCounts(map[string]int{"scan": 2, "open": 1})
	if got != "open=1 scan=2" {
		t.Errorf("expected sorted counts, got %q", got)
	}
}
