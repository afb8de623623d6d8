package domain

import (
	"context"
	"time"
)

// EventType defines the category of the event.
type EventType string

const (
	EventStepEnter   EventType = "step_enter"
	EventStepSkipped EventType = "step_skipped"
	EventNavigate    EventType = "navigate"
	EventComplete    EventType = "tour_complete"
	EventSkip        EventType = "tour_skip"
)

// EventBase contains common fields for all events.
type EventBase struct {
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`
	SessionID string    `json:"session_id"`
	TourID    string    `json:"tour_id"`
}

// StepEvent reports a step being shown or skipped.
type StepEvent struct {
	EventBase
	Index    int           `json:"index"`
	Target   string        `json:"target"`
	Route    string        `json:"route,omitempty"`
	Reason   string        `json:"reason,omitempty"`
	Duration time.Duration `json:"duration,omitempty"`
}

// NavigationEvent reports a route change requested by the engine.
type NavigationEvent struct {
	EventBase
	From    string `json:"from"`
	To      string `json:"to"`
	IsError bool   `json:"is_error,omitempty"`
}

// TourEvent reports the end of a session.
type TourEvent struct {
	EventBase
	Index int   `json:"index"`
	Steps int   `json:"steps"`
	Phase Phase `json:"phase"`
}

// NewEventBase stamps an event with the current time.
func NewEventBase(t EventType, sessionID, tourID string) EventBase {
	return EventBase{Timestamp: time.Now(), Type: t, SessionID: sessionID, TourID: tourID}
}

// LifecycleHooks defines callbacks for engine observability.
type LifecycleHooks struct {
	OnStepEnter   func(context.Context, *StepEvent)
	OnStepSkipped func(context.Context, *StepEvent)
	OnNavigate    func(context.Context, *NavigationEvent)
	OnComplete    func(context.Context, *TourEvent)
	OnSkip        func(context.Context, *TourEvent)
}

// Merge returns hooks that call h first and then other.
func (h LifecycleHooks) Merge(other LifecycleHooks) LifecycleHooks {
	return LifecycleHooks{
		OnStepEnter:   chain(h.OnStepEnter, other.OnStepEnter),
		OnStepSkipped: chain(h.OnStepSkipped, other.OnStepSkipped),
		OnNavigate:    chain(h.OnNavigate, other.OnNavigate),
		OnComplete:    chain(h.OnComplete, other.OnComplete),
		OnSkip:        chain(h.OnSkip, other.OnSkip),
	}
}

func chain[E any](a, b func(context.Context, *E)) func(context.Context, *E) {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	return func(ctx context.Context, e *E) {
		a(ctx, e)
		b(ctx, e)
	}
}
