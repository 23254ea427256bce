package repository

import (
	"context"
	"time"

	"floorpulse-backend/internal/db"
	"floorpulse-backend/internal/domain"
	"github.com/google/uuid"
)

type ScanLogRepository struct {
	DB *db.Postgres
}

// EnsureSchema creates the audit table when it does not exist yet.
func (r ScanLogRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.DB.Pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS scan_events (
			id UUID PRIMARY KEY,
			employee_id TEXT NOT NULL DEFAULT '',
			outcome TEXT NOT NULL,
			payload TEXT NOT NULL DEFAULT '',
			detail TEXT NOT NULL DEFAULT '',
			scanned_at TIMESTAMPTZ NOT NULL
		)
	`); err != nil {
		return err
	}
	_, err := r.DB.Pool.Exec(ctx, `
		CREATE INDEX IF NOT EXISTS scan_events_scanned_at_idx ON scan_events (scanned_at DESC)
	`)
	return err
}

func (r ScanLogRepository) Record(ctx context.Context, ev domain.ScanEvent) error {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	_, err := r.DB.Pool.Exec(ctx, `
		INSERT INTO scan_events (id, employee_id, outcome, payload, detail, scanned_at)
		VALUES ($1,$2,$3,$4,$5,$6)
	`, ev.ID, ev.EmployeeID, string(ev.Outcome), ev.Payload, ev.Detail, ev.ScannedAt)
	return err
}

func (r ScanLogRepository) Recent(ctx context.Context, limit int) ([]domain.ScanEvent, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.DB.Pool.Query(ctx, `
		SELECT id::text, employee_id, outcome, payload, detail, scanned_at
		FROM scan_events
		ORDER BY scanned_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.ScanEvent
	for rows.Next() {
		var ev domain.ScanEvent
		var outcome string
		if err := rows.Scan(&ev.ID, &ev.EmployeeID, &outcome, &ev.Payload, &ev.Detail, &ev.ScannedAt); err != nil {
			return nil, err
		}
		ev.Outcome = domain.ScanOutcome(outcome)
		out = append(out, ev)
	}
	return out, rows.Err()
}

// Prune deletes events scanned before the cutoff and reports how many went.
func (r ScanLogRepository) Prune(ctx context.Context, before time.Time) (int64, error) {
	tag, err := r.DB.Pool.Exec(ctx, `DELETE FROM scan_events WHERE scanned_at < $1`, before)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
