// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package store keeps a SQLite history of polled readings, state
// transitions and device snapshots.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/Thermoquad/heatmiser/internal/snapshot"
)

// timeFormat is fixed width so stored times sort as text.
const timeFormat = "2006-01-02T15:04:05.000000000Z07:00"

// ErrNotFound is returned when a lookup matches nothing.
var ErrNotFound = errors.New("store: not found")

var schema = []string{
	`CREATE TABLE IF NOT EXISTS readings (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		device TEXT NOT NULL,
		field TEXT NOT NULL,
		value REAL,
		text TEXT NOT NULL,
		read_at TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS readings_device_field ON readings (device, field, read_at)`,
	`CREATE TABLE IF NOT EXISTS transitions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		device TEXT NOT NULL,
		from_state TEXT NOT NULL,
		to_state TEXT NOT NULL,
		at TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS snapshots (
		device TEXT PRIMARY KEY,
		taken_at TEXT NOT NULL,
		data BLOB NOT NULL
	)`,
}

// Store is the history database.
type Store struct {
	db *sql.DB
}

// Reading is one stored field reading.
type Reading struct {
	Device string
	Field  string
	Value  *float64
	Text   string
	ReadAt time.Time
}

// Transition is one stored state change.
type Transition struct {
	Device string
	From   string
	To     string
	At     time.Time
}

// Open opens or creates the database at path and applies the schema.
// ":memory:" gives a private in-memory database.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection keeps an in-memory database alive and serialises
	// writers.
	db.SetMaxOpenConns(1)

	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// RecordReading stores one reading. A nil value stores a non-numeric or
// unknown reading by its text alone.
func (s *Store) RecordReading(r Reading) error {
	var value interface{}
	if r.Value != nil {
		value = *r.Value
	}
	_, err := s.db.Exec(`INSERT INTO readings (device, field, value, text, read_at) VALUES (?, ?, ?, ?, ?)`,
		r.Device, r.Field, value, r.Text, r.ReadAt.UTC().Format(timeFormat))
	if err != nil {
		return fmt.Errorf("failed to record %s %s: %w", r.Device, r.Field, err)
	}
	return nil
}

// Readings returns a device field's readings at or after since, oldest
// first.
func (s *Store) Readings(device, field string, since time.Time) ([]Reading, error) {
	rows, err := s.db.Query(`SELECT device, field, value, text, read_at FROM readings
		WHERE device = ? AND field = ? AND read_at >= ? ORDER BY read_at, id`,
		device, field, since.UTC().Format(timeFormat))
	if err != nil {
		return nil, fmt.Errorf("failed to query readings: %w", err)
	}
	defer rows.Close()

	var out []Reading
	for rows.Next() {
		var r Reading
		var value sql.NullFloat64
		var at string
		if err := rows.Scan(&r.Device, &r.Field, &value, &r.Text, &at); err != nil {
			return nil, fmt.Errorf("failed to scan reading: %w", err)
		}
		if value.Valid {
			v := value.Float64
			r.Value = &v
		}
		if r.ReadAt, err = time.Parse(timeFormat, at); err != nil {
			return nil, fmt.Errorf("failed to parse read_at %q: %w", at, err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// RecordTransition stores a state change.
func (s *Store) RecordTransition(t Transition) error {
	_, err := s.db.Exec(`INSERT INTO transitions (device, from_state, to_state, at) VALUES (?, ?, ?, ?)`,
		t.Device, t.From, t.To, t.At.UTC().Format(timeFormat))
	if err != nil {
		return fmt.Errorf("failed to record transition for %s: %w", t.Device, err)
	}
	return nil
}

// Transitions returns a device's state changes, oldest first.
func (s *Store) Transitions(device string) ([]Transition, error) {
	rows, err := s.db.Query(`SELECT device, from_state, to_state, at FROM transitions
		WHERE device = ? ORDER BY id`, device)
	if err != nil {
		return nil, fmt.Errorf("failed to query transitions: %w", err)
	}
	defer rows.Close()

	var out []Transition
	for rows.Next() {
		var t Transition
		var at string
		if err := rows.Scan(&t.Device, &t.From, &t.To, &at); err != nil {
			return nil, fmt.Errorf("failed to scan transition: %w", err)
		}
		if t.At, err = time.Parse(timeFormat, at); err != nil {
			return nil, fmt.Errorf("failed to parse at %q: %w", at, err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// SaveSnapshot replaces the device's stored snapshot.
func (s *Store) SaveSnapshot(snap snapshot.Snapshot) error {
	data, err := snapshot.Encode(snap)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`INSERT OR REPLACE INTO snapshots (device, taken_at, data) VALUES (?, ?, ?)`,
		snap.Device, snap.TakenAt.UTC().Format(timeFormat), data)
	if err != nil {
		return fmt.Errorf("failed to save snapshot for %s: %w", snap.Device, err)
	}
	return nil
}

// Snapshot returns the device's stored snapshot.
func (s *Store) Snapshot(device string) (snapshot.Snapshot, error) {
	var data []byte
	err := s.db.QueryRow(`SELECT data FROM snapshots WHERE device = ?`, device).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return snapshot.Snapshot{}, fmt.Errorf("%w: snapshot for %s", ErrNotFound, device)
	}
	if err != nil {
		return snapshot.Snapshot{}, fmt.Errorf("failed to get snapshot for %s: %w", device, err)
	}
	return snapshot.Decode(data)
}
