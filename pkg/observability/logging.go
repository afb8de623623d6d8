package observability

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/aretw0/waypoint/pkg/domain"
)

// LoggingHooks returns lifecycle hooks that write one structured record per event.
func LoggingHooks(logger *slog.Logger) domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnStepEnter: func(ctx context.Context, e *domain.StepEvent) {
			logger.InfoContext(ctx, string(e.Type),
				"session_id", e.SessionID,
				"tour", e.TourID,
				"step", e.Index,
				"selector", e.Target,
				"wait", e.Duration,
			)
		},
		OnStepSkipped: func(ctx context.Context, e *domain.StepEvent) {
			logger.WarnContext(ctx, string(e.Type),
				"session_id", e.SessionID,
				"tour", e.TourID,
				"step", e.Index,
				"selector", e.Target,
				"reason", e.Reason,
			)
		},
		OnNavigate: func(ctx context.Context, e *domain.NavigationEvent) {
			logger.InfoContext(ctx, string(e.Type),
				"session_id", e.SessionID,
				"from", e.From,
				"to", e.To,
				"is_error", e.IsError,
			)
		},
		OnComplete: func(ctx context.Context, e *domain.TourEvent) {
			logger.InfoContext(ctx, string(e.Type), "session_id", e.SessionID, "tour", e.TourID, "steps", e.Steps)
		},
		OnSkip: func(ctx context.Context, e *domain.TourEvent) {
			logger.InfoContext(ctx, string(e.Type), "session_id", e.SessionID, "tour", e.TourID, "step", e.Index)
		},
	}
}

func stepLabel(i int) string {
	return strconv.Itoa(i)
}
