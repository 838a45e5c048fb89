// Package mqtt publishes latency measurements to a broker, with an
// abstraction for testing.
package mqtt

import (
	"encoding/json"
	"time"
)

// DefaultTopicPrefix is prepended to the measurement and system topics
// unless the configuration overrides it.
const DefaultTopicPrefix = "latency/tester"

// Publisher publishes measurement events to MQTT.
type Publisher interface {
	// PublishMeasurement sends one latency measurement to the broker.
	// Returns error if publishing fails (should not crash the process).
	PublishMeasurement(m Measurement) error

	// PublishSystem sends a system lifecycle event to the broker.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// Measurement is the payload published for each summary report.
type Measurement struct {
	SessionID     string    `json:"session_id,omitempty"`
	Timestamp     time.Time `json:"-"`
	LatencyMicros uint64    `json:"latency_us"`
	LatencyMs     float64   `json:"latency_ms"`
	Threshold     uint16    `json:"threshold"`
}

// SystemEvent represents a service lifecycle event (startup, shutdown).
type SystemEvent struct {
	Timestamp time.Time
	Event     string // e.g. "STARTUP", "SHUTDOWN"
	Reason    string // e.g. "SIGTERM" (shutdown only)
}

type measurementPayload struct {
	Timestamp string `json:"timestamp"`
	Measurement
}

// FormatMeasurement creates the JSON payload for a measurement.
func FormatMeasurement(m Measurement) ([]byte, error) {
	return json.Marshal(measurementPayload{
		Timestamp:   m.Timestamp.UTC().Format(time.RFC3339Nano),
		Measurement: m,
	})
}

type systemPayload struct {
	System systemPayloadInner `json:"system"`
}

type systemPayloadInner struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a system event.
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	return json.Marshal(systemPayload{
		System: systemPayloadInner{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     event.Event,
			Reason:    event.Reason,
		},
	})
}
