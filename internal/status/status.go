// Package status provides a thread-safe status tracker for the load-scale
// daemon. It is written by the control loop and read by HTTP handlers.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/load-scale/internal/scale"
)

// NetworkInfo contains network state as reported by pi-helper.
type NetworkInfo struct {
	Type       string
	IP         string
	Status     string
	Gateway    string
	WifiStatus string
	SSID       string
}

// Config contains daemon configuration for display.
type Config struct {
	PollMs         int64
	LongPressMs    int64
	LoopMs         int64
	HeartbeatMs    int64
	ReferenceGrams float32
	Broker         string
	HTTPPort       string
	WSBroker       string // empty disables the live view
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type, safe to use after the lock is released.
type Snapshot struct {
	Phase         scale.Phase
	Grams         float32
	HasWeight     bool
	Display       string
	Factor        float32
	Calibrated    bool
	Counts        scale.Counts
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	Network       *NetworkInfo
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
	now  func() time.Time
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			Phase:     scale.PhaseIdle,
			StartTime: startTime,
			Config:    cfg,
		},
		now: time.Now,
	}
}

// Update records the protocol state. Called from the control loop.
func (t *Tracker) Update(phase scale.Phase, factor float32, calibrated bool, counts scale.Counts) {
	t.mu.Lock()
	t.snap.Phase = phase
	t.snap.Factor = factor
	t.snap.Calibrated = calibrated
	t.snap.Counts = counts
	t.mu.Unlock()
}

// SetPhase records a phase change on its own; used while calibration blocks
// the control loop.
func (t *Tracker) SetPhase(phase scale.Phase) {
	t.mu.Lock()
	t.snap.Phase = phase
	t.mu.Unlock()
}

// SetWeight records the latest weight reading.
func (t *Tracker) SetWeight(grams float32) {
	t.mu.Lock()
	t.snap.Grams = grams
	t.snap.HasWeight = true
	t.mu.Unlock()
}

// SetDisplay records the text currently on the display.
func (t *Tracker) SetDisplay(text string) {
	t.mu.Lock()
	t.snap.Display = text
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// SetNetwork sets the network info.
func (t *Tracker) SetNetwork(info *NetworkInfo) {
	t.mu.Lock()
	t.snap.Network = info
	t.mu.Unlock()
}

// Snapshot returns a copy of the daemon state with Now set to the time of
// the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	t.mu.RUnlock()
	s.Now = t.now()
	return s
}

// Heartbeat gates periodic status publication.
type Heartbeat struct {
	interval time.Duration
	last     time.Time
}

// NewHeartbeat returns a gate that first fires interval after start.
// A non-positive interval never fires.
func NewHeartbeat(interval time.Duration, start time.Time) *Heartbeat {
	return &Heartbeat{interval: interval, last: start}
}

// Due reports whether a heartbeat is due at now, and if so restarts the
// interval from now.
func (h *Heartbeat) Due(now time.Time) bool {
	if h.interval <= 0 {
		return false
	}
	if now.Sub(h.last) < h.interval {
		return false
	}
	h.last = now
	return true
}
