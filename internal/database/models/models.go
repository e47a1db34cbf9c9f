// Package models defines the database row types.
package models

import "time"

// CallLogRecord is one persisted agent-to-patient relay call.
type CallLogRecord struct {
	ID            int64
	AgentNumber   string
	PatientNumber string
	CallSID       string
	DurationSecs  int
	CreatedAt     time.Time
}
