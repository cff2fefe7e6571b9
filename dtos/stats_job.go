package dtos

import (
	"time"

	"reelclub-backend/ledger"

	"github.com/google/uuid"
)

// StatsJob tracks an async dashboard aggregation over many members.
type StatsJob struct {
	ID          uuid.UUID            `json:"id"`
	Status      string               `json:"status"` // pending, processing, completed, failed
	Total       int                  `json:"total"`
	Failed      int                  `json:"failed"`
	Stats       []ledger.MemberStats `json:"stats,omitempty"`
	Failures    []ledger.StatsError  `json:"failures,omitempty"`
	StartedAt   time.Time            `json:"started_at"`
	CompletedAt *time.Time           `json:"completed_at"`
}

// Job status constants
const (
	JobStatusPending    = "pending"
	JobStatusProcessing = "processing"
	JobStatusCompleted  = "completed"
	JobStatusFailed     = "failed"
)
