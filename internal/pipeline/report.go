package pipeline

import (
	"time"

	"mediawatch/internal/media"
)

// Report summarizes a run.
type Report struct {
	RunID             string        `json:"run_id"`
	StartedAt         time.Time     `json:"started_at"`
	Duration          time.Duration `json:"duration_ns"`
	SubjectsProcessed int           `json:"subjects_processed"`
	SubjectsSkipped   int           `json:"subjects_skipped"`
	// SubjectsCached counts subjects whose catalog fetch was suppressed by a
	// live catalog_fetch record.
	SubjectsCached int `json:"subjects_cached"`
	FactsAccepted  int `json:"facts_accepted"`
	FactsDuplicate int `json:"facts_duplicate"`
	FactsFailed    int `json:"facts_failed"`
	// CategoryCounts maps classification category to accepted facts.
	CategoryCounts map[string]int `json:"category_counts"`
	Delivered      bool           `json:"delivered"`
	DeliveryError  string         `json:"delivery_error,omitempty"`
	// Accepted lists the facts that made it into the digest.
	Accepted []media.CandidateFact `json:"accepted,omitempty"`
}
