package ports

import (
	"context"

	"github.com/aretw0/waypoint/pkg/domain"
)

// ProgressStore caches resumable tour progress.
// This allows a reload to resume the tour at the step the learner last saw.
type ProgressStore interface {
	// Save persists the progress for a given session ID.
	Save(ctx context.Context, sessionID string, progress *domain.Progress) error

	// Load retrieves the progress for a given session ID.
	// Returns domain.ErrProgressNotFound if the session does not exist.
	Load(ctx context.Context, sessionID string) (*domain.Progress, error)

	// Delete removes the progress for a given session ID.
	Delete(ctx context.Context, sessionID string) error

	// List returns the IDs of all sessions with saved progress.
	List(ctx context.Context) ([]string, error)
}

// CompletionRecorder persists the per-learner "tour completed" flag.
type CompletionRecorder interface {
	MarkCompleted(ctx context.Context, userID, tourID string) error
	IsCompleted(ctx context.Context, userID, tourID string) (bool, error)

	// Reset clears the flag so the tour may be shown again.
	Reset(ctx context.Context, userID, tourID string) error
}
