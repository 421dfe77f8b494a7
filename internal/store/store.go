// Package store persists the scale's calibration in a namespaced key-value
// table and keeps a history of calibration runs.
package store

import "time"

// KV is a persistent store of unsigned 32-bit values.
type KV interface {
	// GetU32 returns the value for key; ok is false if the key is unset.
	GetU32(key string) (value uint32, ok bool, err error)

	// SetU32 writes value under key, replacing any previous value.
	SetU32(key string, value uint32) error
}

// Calibration is one completed or failed calibration run.
type Calibration struct {
	ID         string    `json:"id"`
	Timestamp  time.Time `json:"timestamp"`
	Factor     float32   `json:"factor"`
	AverageRaw float32   `json:"average_raw"`
	Succeeded  bool      `json:"succeeded"`
	Persisted  bool      `json:"persisted"`
}

// History records calibration runs.
type History interface {
	RecordCalibration(c Calibration) error
	Calibrations(limit int) ([]Calibration, error)
}
