package status

import (
	"encoding/json"
	"time"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string       `json:"event,omitempty"`
	Reason        string       `json:"reason,omitempty"`
	Phase         string       `json:"phase"`
	Ready         bool         `json:"ready"`
	Display       string       `json:"display"`
	WeightGrams   *float32     `json:"weight_grams,omitempty"`
	Factor        *float32     `json:"factor,omitempty"`
	UptimeSeconds int64        `json:"uptime_seconds"`
	StartTime     string       `json:"start_time"`
	Timestamp     string       `json:"timestamp"`
	MQTT          MQTTStatus   `json:"mqtt"`
	Counts        CountsJSON   `json:"event_counts"`
	Network       *NetworkJSON `json:"network,omitempty"`
	Config        ConfigJSON   `json:"config"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// CountsJSON is the JSON representation of protocol counters.
type CountsJSON struct {
	Tares               int `json:"tares"`
	Calibrations        int `json:"calibrations"`
	CalibrationFailures int `json:"calibration_failures"`
}

// NetworkJSON is the JSON representation of network info.
type NetworkJSON struct {
	Type       string `json:"type"`
	IP         string `json:"ip"`
	Status     string `json:"status"`
	Gateway    string `json:"gateway"`
	WifiStatus string `json:"wifi_status"`
	SSID       string `json:"ssid"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	PollMs         int64   `json:"poll_ms"`
	LongPressMs    int64   `json:"long_press_ms"`
	LoopMs         int64   `json:"loop_ms"`
	HeartbeatMs    int64   `json:"heartbeat_ms"`
	ReferenceGrams float32 `json:"reference_grams"`
	Broker         string  `json:"broker"`
	HTTPPort       string  `json:"http_port"`
	WSBroker       string  `json:"ws_broker,omitempty"`
}

func buildInner(snap Snapshot) StatusInner {
	phase := string(snap.Phase)
	if phase == "" {
		phase = "UNKNOWN"
	}

	inner := StatusInner{
		Phase:         phase,
		Ready:         snap.Calibrated,
		Display:       snap.Display,
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Counts: CountsJSON{
			Tares:               snap.Counts.Tares,
			Calibrations:        snap.Counts.Calibrations,
			CalibrationFailures: snap.Counts.CalibrationFailures,
		},
		Config: ConfigJSON{
			PollMs:         snap.Config.PollMs,
			LongPressMs:    snap.Config.LongPressMs,
			LoopMs:         snap.Config.LoopMs,
			HeartbeatMs:    snap.Config.HeartbeatMs,
			ReferenceGrams: snap.Config.ReferenceGrams,
			Broker:         snap.Config.Broker,
			HTTPPort:       snap.Config.HTTPPort,
			WSBroker:       snap.Config.WSBroker,
		},
	}
	if snap.HasWeight {
		g := snap.Grams
		inner.WeightGrams = &g
	}
	if snap.Calibrated {
		f := snap.Factor
		inner.Factor = &f
	}
	if snap.Network != nil {
		inner.Network = &NetworkJSON{
			Type:       snap.Network.Type,
			IP:         snap.Network.IP,
			Status:     snap.Network.Status,
			Gateway:    snap.Network.Gateway,
			WifiStatus: snap.Network.WifiStatus,
			SSID:       snap.Network.SSID,
		}
	}
	return inner
}

// FormatJSON returns the indented JSON status for the web endpoint.
func FormatJSON(snap Snapshot) []byte {
	data, _ := json.MarshalIndent(StatusJSON{Status: buildInner(snap)}, "", "  ")
	return data
}

// FormatStatusEvent returns the compact JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
