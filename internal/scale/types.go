// Package scale implements the tare and calibration protocol on top of the
// button event channel, the load cell and the persistent store.
package scale

import (
	"time"

	"github.com/sweeney/load-scale/internal/button"
)

// FactorKey is the store key holding the factor's IEEE-754 bit pattern.
const FactorKey = "scale_factor"

// Phase is the protocol state, for status reporting.
type Phase string

const (
	PhaseIdle             Phase = "IDLE"
	PhaseNeedsCalibration Phase = "NEEDS_CALIBRATION"
	PhaseTaring           Phase = "TARING"
	PhaseAwaitEmpty       Phase = "AWAIT_EMPTY"
	PhaseAwaitReference   Phase = "AWAIT_REFERENCE"
	PhaseSampling         Phase = "SAMPLING"
	PhaseReady            Phase = "READY"
)

// EventType identifies a scale event for telemetry.
type EventType string

const (
	EventTare                EventType = "TARE"
	EventCalibrationStarted  EventType = "CALIBRATION_STARTED"
	EventCalibrationComplete EventType = "CALIBRATION_COMPLETE"
	EventCalibrationFailed   EventType = "CALIBRATION_FAILED"
	EventWeight              EventType = "WEIGHT"
)

// Event is a notable occurrence in the protocol.
type Event struct {
	Timestamp  time.Time
	Type       EventType
	Grams      float32 // EventWeight
	Factor     float32 // EventCalibrationComplete
	AverageRaw float32 // calibration results
	Persisted  bool    // EventCalibrationComplete
}

// Counts tracks protocol outcomes since startup.
type Counts struct {
	Tares               int
	Calibrations        int
	CalibrationFailures int
}

// Events is the consumer side of the button channel.
type Events interface {
	Poll() (button.Event, bool)
	WaitFor(want button.Event) error
	Drain() int
}

// Config holds the protocol constants.
type Config struct {
	ReferenceGrams     float32
	TareSamples        int
	CalibrationSamples int
	SampleDelay        time.Duration // after each good calibration sample
	RetryDelay         time.Duration // after each failed calibration read
}

// DefaultConfig matches the stock appliance: 2 kg reference, 16 samples.
func DefaultConfig() Config {
	return Config{
		ReferenceGrams:     2000,
		TareSamples:        16,
		CalibrationSamples: 16,
		SampleDelay:        5 * time.Millisecond,
		RetryDelay:         10 * time.Millisecond,
	}
}
