// moose-detector - detect moose and other warm wildlife in thermal video
//  Copyright (C) 2026, Mooseworks
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

// Package eventstore persists detection events to a local SQLite
// database so detections survive restarts and can be queried later.
package eventstore

import (
	"database/sql"
	"log"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/mooseworks/moose-detector/aggregate"
)

const schema = `
	CREATE TABLE IF NOT EXISTS detections (
		id TEXT PRIMARY KEY,
		started_at TIMESTAMP NOT NULL,
		ended_at TIMESTAMP,
		label TEXT NOT NULL,
		score DOUBLE NOT NULL,
		x INTEGER NOT NULL,
		y INTEGER NOT NULL,
		width INTEGER NOT NULL,
		height INTEGER NOT NULL,
		first_seq BIGINT NOT NULL,
		last_seq BIGINT
	);
	CREATE INDEX IF NOT EXISTS detections_started_at ON detections (started_at);
`

// Open creates or opens the detection database at path. Use ":memory:"
// for an ephemeral store.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// Store writes each detection event as one row, inserted when the
// detection starts and completed when it ends. It plugs in as a
// detection event listener.
type Store struct {
	mu sync.Mutex
	db *sql.DB
}

// Record is one persisted detection.
type Record struct {
	ID        string
	StartedAt time.Time
	EndedAt   time.Time
	Label     string
	Score     float64
	X         int
	Y         int
	Width     int
	Height    int
	FirstSeq  uint64
	LastSeq   uint64
}

func (s *Store) DetectionStarted(e aggregate.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(`
		INSERT INTO detections (id, started_at, label, score, x, y, width, height, first_seq)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Timestamp, e.Label, e.Score, e.X, e.Y, e.Width, e.Height, e.FirstSeq)
	if err != nil {
		log.Printf("failed to store detection %s: %v", e.ID, err)
	}
}

func (s *Store) DetectionEnded(e aggregate.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(`
		UPDATE detections SET ended_at = ?, last_seq = ?, score = ?
		WHERE id = ?`,
		time.Now(), e.LastSeq, e.Score, e.ID)
	if err != nil {
		log.Printf("failed to finalise detection %s: %v", e.ID, err)
	}
}

// Recent returns up to limit detections, newest first.
func (s *Store) Recent(limit int) ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows, err := s.db.Query(`
		SELECT id, started_at, ended_at, label, score, x, y, width, height, first_seq, last_seq
		FROM detections ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var r Record
		var endedAt sql.NullTime
		var lastSeq sql.NullInt64
		err := rows.Scan(&r.ID, &r.StartedAt, &endedAt, &r.Label, &r.Score,
			&r.X, &r.Y, &r.Width, &r.Height, &r.FirstSeq, &lastSeq)
		if err != nil {
			return nil, err
		}
		if endedAt.Valid {
			r.EndedAt = endedAt.Time
		}
		if lastSeq.Valid {
			r.LastSeq = uint64(lastSeq.Int64)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}
