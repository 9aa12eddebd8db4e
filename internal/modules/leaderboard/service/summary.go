package service

import (
	"time"

	mention "anoa.com/bountyboard/internal/modules/mention/service"
	"github.com/google/uuid"
)

type OutcomeStatus string

const (
	OutcomeScored OutcomeStatus = "scored"
	OutcomeFailed OutcomeStatus = "failed"
)

// ReferrerOutcome records what happened to one referrer during a rebuild.
// Warnings are degraded-but-scored conditions such as a missing display name.
type ReferrerOutcome struct {
	Handle     string        `json:"handle"`
	Status     OutcomeStatus `json:"status"`
	TotalScore float64       `json:"total_score"`
	Warnings   []string      `json:"warnings,omitempty"`
	Error      string        `json:"error,omitempty"`
}

type RunSummary struct {
	EventID   *uuid.UUID             `json:"event_id,omitempty"`
	NoEvent   bool                   `json:"no_active_event"`
	Referrers int                    `json:"referrers"`
	Scored    int                    `json:"scored"`
	Failed    int                    `json:"failed"`
	Mentions  *mention.ProcessResult `json:"mentions,omitempty"`
	Outcomes  []ReferrerOutcome      `json:"outcomes"`
	Hooks     map[string]string      `json:"hooks,omitempty"`
	StartedAt time.Time              `json:"started_at"`
	Duration  time.Duration          `json:"duration"`
}
