package domain

import "time"

// Progress is the resumable record of a tour session. It is cached so that a
// reload can resume at the step the learner last saw.
type Progress struct {
	SessionID string    `json:"session_id"`
	TourID    string    `json:"tour_id"`
	StepIndex int       `json:"step_index"`
	Phase     Phase     `json:"phase"`
	UpdatedAt time.Time `json:"updated_at"`
}
