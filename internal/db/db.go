// Package db persists measurement sessions and their reports in sqlite.
package db

import (
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
	"tailscale.com/tsweb"

	"github.com/banshee-data/latency.report/internal/wire"
)

type DB struct {
	*sql.DB
}

func NewDB(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS sessions (
			session_id        TEXT PRIMARY KEY,
			started_at        TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			ended_at          TIMESTAMP,
			poll_rate_hz      INTEGER,
			report_mode       INTEGER,
			threshold_bias    INTEGER,
			action_kind       INTEGER,
			action_code       INTEGER,
			notes             TEXT
		);
		CREATE TABLE IF NOT EXISTS raw_samples (
			session_id        TEXT,
			timestamp_us      BIGINT,
			brightness        INTEGER,
			trigger           INTEGER,
			FOREIGN KEY(session_id) REFERENCES sessions(session_id)
		);
		CREATE TABLE IF NOT EXISTS measurements (
			session_id        TEXT,
			latency_us        BIGINT,
			threshold         INTEGER,
			recorded_at       TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY(session_id) REFERENCES sessions(session_id)
		);
		CREATE INDEX IF NOT EXISTS idx_raw_samples_session ON raw_samples(session_id);
		CREATE INDEX IF NOT EXISTS idx_measurements_session ON measurements(session_id);
	`)
	if err != nil {
		return nil, err
	}

	return &DB{db}, nil
}

// Session describes one measurement run and the device settings it ran with.
type Session struct {
	ID            string     `json:"session_id"`
	StartedAt     time.Time  `json:"started_at"`
	EndedAt       *time.Time `json:"ended_at,omitempty"`
	PollRateHz    uint16     `json:"poll_rate_hz"`
	ReportMode    uint8      `json:"report_mode"`
	ThresholdBias int16      `json:"threshold_bias"`
	ActionKind    uint8      `json:"action_kind"`
	ActionCode    uint8      `json:"action_code"`
	Notes         string     `json:"notes,omitempty"`
}

func (s *Session) String() string {
	return fmt.Sprintf(
		"Session: %s, Started: %s, PollRate: %d Hz, Mode: %d, Bias: %d",
		s.ID, s.StartedAt.Format(time.RFC3339), s.PollRateHz, s.ReportMode, s.ThresholdBias,
	)
}

// CreateSession records a new session and returns its generated ID.
func (db *DB) CreateSession(s Session) (string, error) {
	id := s.ID
	if id == "" {
		id = uuid.NewString()
	}
	_, err := db.Exec(
		`INSERT INTO sessions (
			session_id, poll_rate_hz, report_mode, threshold_bias,
			action_kind, action_code, notes
		) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, s.PollRateHz, s.ReportMode, s.ThresholdBias,
		s.ActionKind, s.ActionCode, s.Notes,
	)
	if err != nil {
		return "", err
	}
	return id, nil
}

// EndSession stamps a session's end time.
func (db *DB) EndSession(id string) error {
	res, err := db.Exec(
		`UPDATE sessions SET ended_at = CURRENT_TIMESTAMP WHERE session_id = ? AND ended_at IS NULL`,
		id,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("no open session with id %s", id)
	}
	return nil
}

func (db *DB) Sessions() ([]Session, error) {
	rows, err := db.Query(
		`SELECT session_id, started_at, ended_at, poll_rate_hz, report_mode,
			threshold_bias, action_kind, action_code, notes
		FROM sessions ORDER BY started_at DESC LIMIT 100`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		var s Session
		var ended sql.NullTime
		if err := rows.Scan(
			&s.ID, &s.StartedAt, &ended, &s.PollRateHz, &s.ReportMode,
			&s.ThresholdBias, &s.ActionKind, &s.ActionCode, &s.Notes,
		); err != nil {
			return nil, err
		}
		if ended.Valid {
			t := ended.Time
			s.EndedAt = &t
		}
		sessions = append(sessions, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return sessions, nil
}

func (db *DB) Session(id string) (*Session, error) {
	var s Session
	var ended sql.NullTime
	err := db.QueryRow(
		`SELECT session_id, started_at, ended_at, poll_rate_hz, report_mode,
			threshold_bias, action_kind, action_code, notes
		FROM sessions WHERE session_id = ?`, id,
	).Scan(
		&s.ID, &s.StartedAt, &ended, &s.PollRateHz, &s.ReportMode,
		&s.ThresholdBias, &s.ActionKind, &s.ActionCode, &s.Notes,
	)
	if err != nil {
		return nil, err
	}
	if ended.Valid {
		t := ended.Time
		s.EndedAt = &t
	}
	return &s, nil
}

// RecordRawSample appends one raw report to a session.
func (db *DB) RecordRawSample(sessionID string, r wire.RawReport) error {
	_, err := db.Exec(
		`INSERT INTO raw_samples (session_id, timestamp_us, brightness, trigger) VALUES (?, ?, ?, ?)`,
		sessionID, int64(r.TimestampMicros), r.Brightness, r.Trigger,
	)
	return err
}

// RecordMeasurement appends one latency measurement to a session.
func (db *DB) RecordMeasurement(sessionID string, r wire.SummaryReport) error {
	_, err := db.Exec(
		`INSERT INTO measurements (session_id, latency_us, threshold) VALUES (?, ?, ?)`,
		sessionID, int64(r.LatencyMicros), r.Threshold,
	)
	return err
}

// RawSample mirrors one row of the raw_samples table.
type RawSample struct {
	TimestampMicros uint64 `json:"timestamp_us"`
	Brightness      uint16 `json:"brightness"`
	Trigger         bool   `json:"trigger"`
}

func (db *DB) RawSamples(sessionID string, limit int) ([]RawSample, error) {
	if limit <= 0 {
		limit = 1000
	}
	rows, err := db.Query(
		`SELECT timestamp_us, brightness, trigger FROM raw_samples
		WHERE session_id = ? ORDER BY timestamp_us DESC LIMIT ?`,
		sessionID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var samples []RawSample
	for rows.Next() {
		var s RawSample
		var ts int64
		if err := rows.Scan(&ts, &s.Brightness, &s.Trigger); err != nil {
			return nil, err
		}
		s.TimestampMicros = uint64(ts)
		samples = append(samples, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return samples, nil
}

// Measurement mirrors one row of the measurements table.
type Measurement struct {
	LatencyMicros uint64    `json:"latency_us"`
	Threshold     uint16    `json:"threshold"`
	RecordedAt    time.Time `json:"recorded_at"`
}

func (db *DB) Measurements(sessionID string, limit int) ([]Measurement, error) {
	if limit <= 0 {
		limit = 1000
	}
	rows, err := db.Query(
		`SELECT latency_us, threshold, recorded_at FROM measurements
		WHERE session_id = ? ORDER BY recorded_at ASC LIMIT ?`,
		sessionID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var measurements []Measurement
	for rows.Next() {
		var m Measurement
		var latency int64
		if err := rows.Scan(&latency, &m.Threshold, &m.RecordedAt); err != nil {
			return nil, err
		}
		m.LatencyMicros = uint64(latency)
		measurements = append(measurements, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return measurements, nil
}

// Latencies returns every latency in a session, in microseconds, oldest first.
func (db *DB) Latencies(sessionID string) ([]float64, error) {
	rows, err := db.Query(
		`SELECT latency_us FROM measurements WHERE session_id = ? ORDER BY recorded_at ASC`,
		sessionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var latencies []float64
	for rows.Next() {
		var latency int64
		if err := rows.Scan(&latency); err != nil {
			return nil, err
		}
		latencies = append(latencies, float64(latency))
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return latencies, nil
}

func (db *DB) AttachAdminRoutes(mux *http.ServeMux) {
	debug := tsweb.Debugger(mux)

	debug.Handle("backup", "Create and download a backup of the database now", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		backupPath := fmt.Sprintf("backup-%d.db", time.Now().Unix())
		if _, err := db.DB.Exec("VACUUM INTO ?", backupPath); err != nil {
			http.Error(w, fmt.Sprintf("Failed to create backup: %v", err), http.StatusInternalServerError)
			return
		}
		defer os.Remove(backupPath)

		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", backupPath))
		w.Header().Set("Content-Type", "application/octet-stream")
		http.ServeFile(w, r, backupPath)
	}))
}
