package store

import (
	"sort"
	"sync"

	"github.com/google/uuid"
)

// MemoryStore is an in-memory KV and History for tests and for running
// without a database.
type MemoryStore struct {
	mu     sync.Mutex
	values map[string]uint32
	runs   []Calibration

	// GetError and SetError, if set, are returned by GetU32 and SetU32.
	GetError error
	SetError error

	// SetCalls counts SetU32 invocations, failed ones included.
	SetCalls int
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[string]uint32)}
}

// GetU32 returns the value for key.
func (m *MemoryStore) GetU32(key string) (uint32, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.GetError != nil {
		return 0, false, m.GetError
	}
	v, ok := m.values[key]
	return v, ok, nil
}

// SetU32 stores value under key.
func (m *MemoryStore) SetU32(key string, value uint32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SetCalls++
	if m.SetError != nil {
		return m.SetError
	}
	m.values[key] = value
	return nil
}

// RecordCalibration appends c to the history.
func (m *MemoryStore) RecordCalibration(c Calibration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	m.runs = append(m.runs, c)
	return nil
}

// Calibrations returns up to limit runs, newest first.
func (m *MemoryStore) Calibrations(limit int) ([]Calibration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Calibration, len(m.runs))
	copy(out, m.runs)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	if limit >= 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
