package device

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// History query bounds.
const (
	DefaultHistoryLimit = 50
	MaxHistoryLimit     = 200
)

// storedAtLayout is fixed width so created_at compares correctly as text.
const storedAtLayout = "2006-01-02T15:04:05.000000Z"

// HistoryEntry is one stored telemetry sample.
type HistoryEntry struct {
	ID         int64   `json:"id"`
	DeviceID   string  `json:"device_id"`
	SensorType string  `json:"sensor_type"`
	Value      float64 `json:"value"`
	Unit       string  `json:"unit"`

	// SampleTime is the agent's own timestamp, unix seconds.
	SampleTime int64 `json:"timestamp"`

	// CreatedAt is when the gateway stored the row.
	CreatedAt time.Time `json:"created_at"`
}

// HistoryQuery selects samples for one device, newest first.
type HistoryQuery struct {
	DeviceID string

	// Limit is clamped to 1..MaxHistoryLimit; zero means
	// DefaultHistoryLimit.
	Limit int

	// Since, when set, keeps only rows stored strictly after it.
	Since time.Time
}

func (q HistoryQuery) limit() int {
	switch {
	case q.Limit <= 0:
		return DefaultHistoryLimit
	case q.Limit > MaxHistoryLimit:
		return MaxHistoryLimit
	default:
		return q.Limit
	}
}

// TelemetryHistory is the per-device sample log behind
// GET /api/v1/devices/{id}/history. Implementations are safe for
// concurrent use.
type TelemetryHistory interface {
	RecordSample(ctx context.Context, deviceID string, t Telemetry) error
	GetHistory(ctx context.Context, q HistoryQuery) ([]HistoryEntry, error)
}

// SQLiteTelemetryHistory keeps samples in the telemetry_history table.
type SQLiteTelemetryHistory struct {
	db *sql.DB
}

// NewSQLiteTelemetryHistory wraps a database that has been migrated.
func NewSQLiteTelemetryHistory(db *sql.DB) *SQLiteTelemetryHistory {
	return &SQLiteTelemetryHistory{db: db}
}

var errNoDeviceID = fmt.Errorf("%w: empty", ErrInvalidID)

// RecordSample stores t for deviceID, stamped with t.ReceivedAt (or now).
func (h *SQLiteTelemetryHistory) RecordSample(ctx context.Context, deviceID string, t Telemetry) error {
	if deviceID == "" {
		return errNoDeviceID
	}
	at := t.ReceivedAt
	if at.IsZero() {
		at = time.Now()
	}

	const insert = `INSERT INTO telemetry_history
		(device_id, sensor_type, value, unit, sample_ts, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`
	if _, err := h.db.ExecContext(ctx, insert,
		deviceID, t.SensorType, t.Value, t.Unit, t.Timestamp, formatStoredAt(at),
	); err != nil {
		return fmt.Errorf("recording telemetry for %s: %w", deviceID, err)
	}
	return nil
}

// GetHistory runs q. An unknown device yields an empty slice.
func (h *SQLiteTelemetryHistory) GetHistory(ctx context.Context, q HistoryQuery) ([]HistoryEntry, error) {
	if q.DeviceID == "" {
		return nil, errNoDeviceID
	}

	// The empty string sorts before every stored timestamp.
	after := ""
	if !q.Since.IsZero() {
		after = formatStoredAt(q.Since)
	}

	rows, err := h.db.QueryContext(ctx, `
		SELECT id, device_id, sensor_type, value, unit, sample_ts, created_at
		FROM telemetry_history
		WHERE device_id = ? AND created_at > ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?`,
		q.DeviceID, after, q.limit(),
	)
	if err != nil {
		return nil, fmt.Errorf("querying telemetry history: %w", err)
	}
	defer rows.Close()

	out := []HistoryEntry{}
	for rows.Next() {
		var (
			e      HistoryEntry
			stored string
		)
		if err := rows.Scan(&e.ID, &e.DeviceID, &e.SensorType, &e.Value, &e.Unit, &e.SampleTime, &stored); err != nil {
			return nil, fmt.Errorf("scanning telemetry history: %w", err)
		}
		if e.CreatedAt, err = time.Parse(storedAtLayout, stored); err != nil {
			return nil, fmt.Errorf("row %d: bad created_at %q: %w", e.ID, stored, err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// PruneHistory deletes rows stored more than olderThan ago and returns how
// many went.
func (h *SQLiteTelemetryHistory) PruneHistory(ctx context.Context, olderThan time.Duration) (int64, error) {
	if olderThan <= 0 {
		return 0, errors.New("device: prune window must be positive")
	}
	res, err := h.db.ExecContext(ctx,
		"DELETE FROM telemetry_history WHERE created_at < ?",
		formatStoredAt(time.Now().Add(-olderThan)),
	)
	if err != nil {
		return 0, fmt.Errorf("pruning telemetry history: %w", err)
	}
	return res.RowsAffected()
}

func formatStoredAt(t time.Time) string {
	return t.UTC().Format(storedAtLayout)
}
