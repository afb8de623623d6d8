package domain

import (
	"errors"
	"fmt"
)

// ErrTargetNotFound is returned when a step target does not appear before the wait timeout.
var ErrTargetNotFound = errors.New("target not found")

// ErrTargetHidden is returned when a target exists but never becomes visible.
// It wraps ErrTargetNotFound so callers can treat both the same way.
var ErrTargetHidden = fmt.Errorf("target not visible: %w", ErrTargetNotFound)

// ErrNavigation is returned when a route change could not be requested.
var ErrNavigation = errors.New("navigation failed")

// ErrCleanup is returned when a protected style could not be reverted.
var ErrCleanup = errors.New("side-effect cleanup failed")

// ErrNotRunning is returned when an operation needs an active tour.
var ErrNotRunning = errors.New("tour is not running")

// ErrInvalidStep is returned when a step index is out of range.
var ErrInvalidStep = errors.New("invalid step index")

// ErrInvalidDefinition is returned when a tour definition fails validation.
var ErrInvalidDefinition = errors.New("invalid tour definition")

// ErrProgressNotFound is returned when no progress exists for a session.
var ErrProgressNotFound = errors.New("progress not found")
