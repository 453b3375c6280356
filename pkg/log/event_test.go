package log

import "testing"

func TestEnumStrings(t *testing.T) {
	tests := []struct {
		name string
		got  string
		want string
	}{
		{"direction in", DirectionIn.String(), "IN"},
		{"direction out", DirectionOut.String(), "OUT"},
		{"direction unknown", Direction(99).String(), "UNKNOWN"},
		{"layer transport", LayerTransport.String(), "TRANSPORT"},
		{"layer wire", LayerWire.String(), "WIRE"},
		{"layer scan", LayerScan.String(), "SCAN"},
		{"layer unknown", Layer(99).String(), "UNKNOWN"},
		{"category state", CategoryState.String(), "STATE"},
		{"category error", CategoryError.String(), "ERROR"},
		{"role daemon", RoleDaemon.String(), "DAEMON"},
		{"message response", MessageTypeResponse.String(), "RESPONSE"},
		{"entity worker", StateEntityWorker.String(), "WORKER"},
		{"entity unknown", StateEntity(42).String(), "UNKNOWN"},
	}

	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s: got %q, want %q", tt.name, tt.got, tt.want)
		}
	}
}

func TestEncodeDecodeEvent(t *testing.T) {
	code := 3
	event := Event{
		SessionID: "sess-1",
		Layer:     LayerScan,
		Category:  CategoryError,
		Device:    "test:0",
		Error:     &ErrorEventData{Layer: LayerScan, Message: "device busy", Code: &code},
	}

	data, err := EncodeEvent(event)
	if err != nil {
		t.Fatalf("EncodeEvent failed: %v", err)
	}
	got, err := DecodeEvent(data)
	if err != nil {
		t.Fatalf("DecodeEvent failed: %v", err)
	}
	if got.SessionID != "sess-1" || got.Device != "test:0" {
		t.Errorf("identity mismatch: %+v", got)
	}
	if got.Error == nil || got.Error.Code == nil || *got.Error.Code != 3 {
		t.Errorf("error payload mismatch: %+v", got.Error)
	}
}
