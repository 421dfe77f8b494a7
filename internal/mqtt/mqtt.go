// Package mqtt publishes scale and system events to an MQTT broker.
package mqtt

import (
	"encoding/json"
	"time"

	"github.com/sweeney/load-scale/internal/scale"
)

// Topic is the MQTT topic for scale events.
const Topic = "home/scale/events"

// TopicSystem is the MQTT topic for system lifecycle events.
const TopicSystem = "home/scale/system"

// System event names.
const (
	EventStartup     = "STARTUP"
	EventShutdown    = "SHUTDOWN"
	EventHeartbeat   = "HEARTBEAT"
	EventOffline     = "OFFLINE"
	EventReconnected = "RECONNECTED"
)

// Publisher publishes events to MQTT.
type Publisher interface {
	// Publish sends a scale event. Failures are reported, never fatal.
	Publish(event scale.Event) error

	// PublishSystem sends a system lifecycle event.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// SystemEvent is a lifecycle event (startup, shutdown, heartbeat).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string
	Reason     string // shutdown only, e.g. "SIGTERM"
	RawPayload []byte // pre-formatted payload; returned as-is by FormatSystemPayload
	Retained   bool
}

// Payload is the JSON envelope for scale events.
type Payload struct {
	Scale ScalePayload `json:"scale"`
}

// ScalePayload carries the event details. Fields that do not apply to the
// event type are omitted.
type ScalePayload struct {
	Timestamp  string   `json:"timestamp"`
	Event      string   `json:"event"`
	Grams      *float32 `json:"grams,omitempty"`
	Factor     *float32 `json:"factor,omitempty"`
	AverageRaw *float32 `json:"average_raw,omitempty"`
	Persisted  *bool    `json:"persisted,omitempty"`
}

// FormatPayload creates the JSON payload for a scale event.
func FormatPayload(event scale.Event) ([]byte, error) {
	inner := ScalePayload{
		Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
		Event:     string(event.Type),
	}
	switch event.Type {
	case scale.EventWeight:
		inner.Grams = &event.Grams
	case scale.EventCalibrationComplete:
		inner.Factor = &event.Factor
		inner.AverageRaw = &event.AverageRaw
		inner.Persisted = &event.Persisted
	}
	return json.Marshal(Payload{Scale: inner})
}

// SystemPayload is the envelope for system events that carry no status
// snapshot (LWT, RECONNECTED).
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a system event.
// RawPayload, when set, wins.
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}
	return json.Marshal(SystemPayload{
		System: SystemPayloadInner{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     event.Event,
			Reason:    event.Reason,
		},
	})
}
