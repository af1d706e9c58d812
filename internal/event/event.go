// Package event defines the decorated alert event consumed from Kafka
// and its normalization into a flat label map.
package event

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Raw is a decoded queue message. It is transient: the consumer decodes
// it, normalizes it into a label map, and discards it.
type Raw struct {
	// EventID is used only for log correlation. The wire value may be a
	// string or a number.
	EventID          string    `json:"event_id"`
	AlertName        string    `json:"alert_name"`
	Source           string    `json:"source"`
	MonitoringSystem string    `json:"monitoring_system"`
	AdditionalFields scalarMap `json:"additional_fields"`
}

// DecodeError reports a message payload that cannot be turned into a
// Raw event. Callers skip the offending message; decode failures are
// never retried.
type DecodeError struct {
	Reason string
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("decoding event: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("decoding event: %s", e.Reason)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Decode parses a queue message payload into a Raw event. It fails with
// a DecodeError if the payload is not a JSON object of the expected
// shape or if any of the three required fields (alert_name, source,
// monitoring_system) is missing or empty.
func Decode(data []byte) (*Raw, error) {
	var raw struct {
		EventID          json.RawMessage `json:"event_id"`
		AlertName        string          `json:"alert_name"`
		Source           string          `json:"source"`
		MonitoringSystem string          `json:"monitoring_system"`
		AdditionalFields scalarMap       `json:"additional_fields"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, &DecodeError{Reason: "malformed JSON", Err: err}
	}

	required := map[string]string{
		"alert_name":        raw.AlertName,
		"source":            raw.Source,
		"monitoring_system": raw.MonitoringSystem,
	}
	for _, field := range []string{"alert_name", "source", "monitoring_system"} {
		if required[field] == "" {
			return nil, &DecodeError{Reason: fmt.Sprintf("missing required field %q", field)}
		}
	}

	ev := &Raw{
		AlertName:        raw.AlertName,
		Source:           raw.Source,
		MonitoringSystem: raw.MonitoringSystem,
		AdditionalFields: raw.AdditionalFields,
	}
	if len(raw.EventID) > 0 {
		var id any
		if err := json.Unmarshal(raw.EventID, &id); err == nil {
			if s, ok := scalarString(id); ok {
				ev.EventID = s
			}
		}
	}
	return ev, nil
}

// Normalize produces the flat label map handed to the aggregator. The
// three fixed fields are always present under their exact keys;
// additional fields are merged second and win key collisions.
func (r *Raw) Normalize() map[string]string {
	labels := make(map[string]string, len(r.AdditionalFields)+3)
	labels["alert_name"] = r.AlertName
	labels["source"] = r.Source
	labels["monitoring_system"] = r.MonitoringSystem
	for name, value := range r.AdditionalFields {
		labels[name] = value
	}
	return labels
}

// scalarMap decodes a JSON object whose values are scalars (string,
// number, bool, null) into strings. A non-scalar value makes the whole
// payload undecodable.
type scalarMap map[string]string

func (m *scalarMap) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make(map[string]string, len(raw))
	for name, value := range raw {
		s, ok := scalarString(value)
		if !ok {
			return fmt.Errorf("field %q: value must be a scalar", name)
		}
		out[name] = s
	}
	*m = out
	return nil
}

func scalarString(v any) (string, bool) {
	switch v := v.(type) {
	case string:
		return v, true
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), true
	case bool:
		return strconv.FormatBool(v), true
	case nil:
		return "", true
	default:
		return "", false
	}
}
