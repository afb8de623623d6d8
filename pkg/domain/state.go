package domain

// Phase is the coarse lifecycle position of a tour session.
type Phase string

const (
	PhaseIdle      Phase = "idle"
	PhaseActive    Phase = "active"
	PhaseCompleted Phase = "completed"
	PhaseSkipped   Phase = "skipped"
)

// Terminal reports whether the phase ends the session.
func (p Phase) Terminal() bool {
	return p == PhaseCompleted || p == PhaseSkipped
}

// TourState is the runtime snapshot of one tour session.
type TourState struct {
	// CurrentIndex is the step being shown. It is 0 while idle.
	CurrentIndex int `json:"current_index"`

	// Running is true while a step may be displayed.
	Running bool `json:"running"`

	// Navigating is true while a transition waits for a route change or a target.
	Navigating bool `json:"navigating"`

	Phase Phase `json:"phase"`
}

// NewTourState returns the idle state.
func NewTourState() TourState {
	return TourState{Phase: PhaseIdle}
}
