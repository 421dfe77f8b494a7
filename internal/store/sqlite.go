package store

import (
	"database/sql"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS kv (
    namespace   TEXT NOT NULL,
    key         TEXT NOT NULL,
    value       INTEGER NOT NULL,
    updated_ns  INTEGER NOT NULL,
    PRIMARY KEY (namespace, key)
);

CREATE TABLE IF NOT EXISTS calibrations (
    id            TEXT PRIMARY KEY,
    namespace     TEXT NOT NULL,
    timestamp_ns  INTEGER NOT NULL,
    factor_bits   INTEGER NOT NULL,
    average_raw   REAL NOT NULL,
    succeeded     INTEGER NOT NULL,
    persisted     INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_calibrations_timestamp ON calibrations(namespace, timestamp_ns);
`

// SQLiteStore is a KV and History backed by a SQLite database.
type SQLiteStore struct {
	db        *sql.DB
	namespace string
}

// Open opens or creates the database at path and applies the schema.
// All keys are scoped to namespace.
func Open(path, namespace string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_synchronous=FULL")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &SQLiteStore{db: db, namespace: namespace}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// GetU32 returns the value stored under key.
func (s *SQLiteStore) GetU32(key string) (uint32, bool, error) {
	var v int64
	err := s.db.QueryRow(`SELECT value FROM kv WHERE namespace = ? AND key = ?`, s.namespace, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("get %s: %w", key, err)
	}
	return uint32(v), true, nil
}

// SetU32 upserts value under key.
func (s *SQLiteStore) SetU32(key string, value uint32) error {
	_, err := s.db.Exec(`
		INSERT INTO kv (namespace, key, value, updated_ns) VALUES (?, ?, ?, ?)
		ON CONFLICT(namespace, key) DO UPDATE SET value = excluded.value, updated_ns = excluded.updated_ns`,
		s.namespace, key, int64(value), time.Now().UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

// RecordCalibration appends c to the history, assigning an ID if empty.
func (s *SQLiteStore) RecordCalibration(c Calibration) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	_, err := s.db.Exec(`
		INSERT INTO calibrations (id, namespace, timestamp_ns, factor_bits, average_raw, succeeded, persisted)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		c.ID, s.namespace, c.Timestamp.UnixNano(), int64(math.Float32bits(c.Factor)), float64(c.AverageRaw), c.Succeeded, c.Persisted,
	)
	if err != nil {
		return fmt.Errorf("record calibration: %w", err)
	}
	return nil
}

// Calibrations returns up to limit runs, newest first.
func (s *SQLiteStore) Calibrations(limit int) ([]Calibration, error) {
	rows, err := s.db.Query(`
		SELECT id, timestamp_ns, factor_bits, average_raw, succeeded, persisted
		FROM calibrations WHERE namespace = ?
		ORDER BY timestamp_ns DESC LIMIT ?`, s.namespace, limit)
	if err != nil {
		return nil, fmt.Errorf("query calibrations: %w", err)
	}
	defer rows.Close()

	var out []Calibration
	for rows.Next() {
		var (
			c      Calibration
			ts     int64
			bits   int64
			avgRaw float64
		)
		if err := rows.Scan(&c.ID, &ts, &bits, &avgRaw, &c.Succeeded, &c.Persisted); err != nil {
			return nil, fmt.Errorf("scan calibration: %w", err)
		}
		c.Timestamp = time.Unix(0, ts).UTC()
		c.Factor = math.Float32frombits(uint32(bits))
		c.AverageRaw = float32(avgRaw)
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate calibrations: %w", err)
	}
	return out, nil
}
