// Package store provides the SQLite reference implementation of the
// pipeline's persistence collaborator.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/chromaprobe/chromaprobe/classify"
	"github.com/chromaprobe/chromaprobe/colorspace"
	"github.com/chromaprobe/chromaprobe/pipeline"
)

const schema = `
CREATE TABLE IF NOT EXISTS readings (
	id             TEXT PRIMARY KEY,
	captured_at    TEXT NOT NULL,
	ph_average     REAL NOT NULL,
	score          INTEGER NOT NULL,
	confidence     REAL NOT NULL,
	r              INTEGER NOT NULL,
	g              INTEGER NOT NULL,
	b              INTEGER NOT NULL,
	lab_l          REAL NOT NULL,
	lab_a          REAL NOT NULL,
	lab_b          REAL NOT NULL,
	recommendation TEXT NOT NULL,
	alerts_json    TEXT NOT NULL,
	label_score    INTEGER
);

CREATE INDEX IF NOT EXISTS idx_readings_captured_at
	ON readings (captured_at DESC);
`

// Store persists processed readings in SQLite and serves labeled readings
// back to the retraining trigger.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the reading database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open reading store: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("reading store pragma: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("reading store migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveReading persists one processed reading with its alert set and
// recommendation.
func (s *Store) SaveReading(
	ctx context.Context,
	reading pipeline.ProcessedReading,
	alerts []pipeline.Alert,
	recommendation string,
) error {
	if alerts == nil {
		alerts = []pipeline.Alert{}
	}
	alertsJSON, err := json.Marshal(alerts)
	if err != nil {
		return fmt.Errorf("encode alerts: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO readings (
			id, captured_at, ph_average, score, confidence,
			r, g, b, lab_l, lab_a, lab_b,
			recommendation, alerts_json
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		reading.ID.String(),
		reading.CapturedAt.UTC().Format(time.RFC3339Nano),
		reading.PHAverage,
		reading.Score,
		reading.Confidence,
		reading.Color.R,
		reading.Color.G,
		reading.Color.B,
		reading.Lab.L,
		reading.Lab.A,
		reading.Lab.B,
		recommendation,
		string(alertsJSON),
	)
	if err != nil {
		return fmt.Errorf("insert reading: %w", err)
	}
	return nil
}

// Label records an operator-assigned score for a stored reading, making it
// available to retraining.
func (s *Store) Label(ctx context.Context, id uuid.UUID, score int) error {
	if score < 1 || score > 10 {
		return fmt.Errorf("label score %d outside 1..10", score)
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE readings SET label_score = ? WHERE id = ?`,
		score, id.String(),
	)
	if err != nil {
		return fmt.Errorf("label reading: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("label reading: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("no reading with id %s", id)
	}
	return nil
}

// LabeledReadings returns up to limit of the most recent labeled readings as
// classifier training samples.
func (s *Store) LabeledReadings(
	ctx context.Context,
	limit int,
) ([]classify.LabeledSample, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT lab_l, lab_a, lab_b, label_score
		FROM readings
		WHERE label_score IS NOT NULL
		ORDER BY captured_at DESC
		LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query labeled readings: %w", err)
	}
	defer rows.Close()

	var samples []classify.LabeledSample
	for rows.Next() {
		var lab colorspace.Lab
		var score int
		if err := rows.Scan(&lab.L, &lab.A, &lab.B, &score); err != nil {
			return nil, fmt.Errorf("scan labeled reading: %w", err)
		}
		samples = append(samples, classify.LabeledSample{Lab: lab, Score: score})
	}
	return samples, rows.Err()
}
