package event

import (
	"errors"
	"testing"
)

func TestDecodeValid(t *testing.T) {
	data := []byte(`{
		"event_id": 1,
		"alert_name": "disk_full",
		"source": "srv1",
		"monitoring_system": "nagios",
		"additional_fields": {"dc": "east", "shard": 12, "canary": true}
	}`)

	ev, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	if ev.EventID != "1" {
		t.Errorf("EventID = %q, want %q", ev.EventID, "1")
	}
	if ev.AlertName != "disk_full" {
		t.Errorf("AlertName = %q", ev.AlertName)
	}
	if ev.Source != "srv1" {
		t.Errorf("Source = %q", ev.Source)
	}
	if ev.MonitoringSystem != "nagios" {
		t.Errorf("MonitoringSystem = %q", ev.MonitoringSystem)
	}
	if ev.AdditionalFields["dc"] != "east" {
		t.Errorf("AdditionalFields[dc] = %q", ev.AdditionalFields["dc"])
	}
	if ev.AdditionalFields["shard"] != "12" {
		t.Errorf("AdditionalFields[shard] = %q, want %q", ev.AdditionalFields["shard"], "12")
	}
	if ev.AdditionalFields["canary"] != "true" {
		t.Errorf("AdditionalFields[canary] = %q, want %q", ev.AdditionalFields["canary"], "true")
	}
}

func TestDecodeStringEventID(t *testing.T) {
	ev, err := Decode([]byte(`{"event_id":"abc-123","alert_name":"a","source":"b","monitoring_system":"c"}`))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if ev.EventID != "abc-123" {
		t.Errorf("EventID = %q, want %q", ev.EventID, "abc-123")
	}
}

func TestDecodeMalformedJSON(t *testing.T) {
	_, err := Decode([]byte(`{not json`))
	if err == nil {
		t.Fatal("expected error for malformed JSON")
	}
	var decErr *DecodeError
	if !errors.As(err, &decErr) {
		t.Fatalf("error type = %T, want *DecodeError", err)
	}
}

func TestDecodeMissingRequiredFields(t *testing.T) {
	cases := []struct {
		name string
		data string
	}{
		{"missing alert_name", `{"source":"s","monitoring_system":"m"}`},
		{"missing source", `{"alert_name":"a","monitoring_system":"m"}`},
		{"missing monitoring_system", `{"alert_name":"a","source":"s"}`},
		{"empty alert_name", `{"alert_name":"","source":"s","monitoring_system":"m"}`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Decode([]byte(tc.data))
			var decErr *DecodeError
			if !errors.As(err, &decErr) {
				t.Fatalf("error = %v, want *DecodeError", err)
			}
		})
	}
}

func TestDecodeNonScalarAdditionalField(t *testing.T) {
	data := []byte(`{
		"alert_name": "a", "source": "s", "monitoring_system": "m",
		"additional_fields": {"nested": {"x": 1}}
	}`)
	_, err := Decode(data)
	var decErr *DecodeError
	if !errors.As(err, &decErr) {
		t.Fatalf("error = %v, want *DecodeError for non-scalar field", err)
	}
}

func TestNormalizeFixedFields(t *testing.T) {
	ev, err := Decode([]byte(`{"alert_name":"disk_full","source":"srv1","monitoring_system":"nagios"}`))
	if err != nil {
		t.Fatal(err)
	}

	labels := ev.Normalize()
	if len(labels) != 3 {
		t.Fatalf("label count = %d, want 3", len(labels))
	}
	if labels["alert_name"] != "disk_full" {
		t.Errorf("alert_name = %q", labels["alert_name"])
	}
	if labels["source"] != "srv1" {
		t.Errorf("source = %q", labels["source"])
	}
	if labels["monitoring_system"] != "nagios" {
		t.Errorf("monitoring_system = %q", labels["monitoring_system"])
	}
}

func TestNormalizePrecedence(t *testing.T) {
	// Additional fields win key collisions with the fixed three.
	ev, err := Decode([]byte(`{
		"alert_name": "a", "source": "A", "monitoring_system": "m",
		"additional_fields": {"source": "B", "dc": "east"}
	}`))
	if err != nil {
		t.Fatal(err)
	}

	labels := ev.Normalize()
	if labels["source"] != "B" {
		t.Errorf("source = %q, want %q (additional field wins)", labels["source"], "B")
	}
	if labels["dc"] != "east" {
		t.Errorf("dc = %q", labels["dc"])
	}
	if len(labels) != 4 {
		t.Errorf("label count = %d, want 4", len(labels))
	}
}
