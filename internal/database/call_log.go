package database

import (
	"context"
	"fmt"

	"github.com/forrestsmith-sys/Twilio-call-server-completed/internal/database/models"
	"github.com/forrestsmith-sys/Twilio-call-server-completed/internal/router"
)

// CallLogRepository persists relay call log entries. It satisfies the
// router's CallSink; the voice path only ever appends. List and Count exist
// for the metrics collector and operator tooling.
type CallLogRepository struct {
	db *DB
}

// NewCallLogRepository creates a CallLogRepository.
func NewCallLogRepository(db *DB) *CallLogRepository {
	return &CallLogRepository{db: db}
}

// Record appends one relay call entry.
func (r *CallLogRepository) Record(ctx context.Context, entry router.LogEntry) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO call_log (agent_number, patient_number, call_sid, duration_secs, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		entry.AgentNumber, entry.PatientNumber, entry.CallSID, entry.DurationSecs, entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting call log entry: %w", err)
	}
	return nil
}

// Count returns the total number of logged relay calls.
func (r *CallLogRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM call_log`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting call log entries: %w", err)
	}
	return n, nil
}

// List returns the most recent entries, newest first.
func (r *CallLogRepository) List(ctx context.Context, limit int) ([]models.CallLogRecord, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, agent_number, patient_number, call_sid, duration_secs, created_at
		 FROM call_log ORDER BY created_at DESC, id DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying call log: %w", err)
	}
	defer rows.Close()

	var out []models.CallLogRecord
	for rows.Next() {
		var rec models.CallLogRecord
		if err := rows.Scan(&rec.ID, &rec.AgentNumber, &rec.PatientNumber,
			&rec.CallSID, &rec.DurationSecs, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning call log row: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating call log rows: %w", err)
	}
	return out, nil
}

// Ensure the repository satisfies the router's sink interface.
var _ router.CallSink = (*CallLogRepository)(nil)
